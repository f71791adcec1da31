package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientHelloRoundTrip(t *testing.T) {
	ch := &ClientHello{
		LegacyVersion:     VersionTLS12,
		LegacySessionID:   []byte{1, 2, 3},
		CipherSuites:      []CipherSuite{0x1301, 0xc02f},
		LegacyCompression: []byte{0},
		Extensions:        NewExtensionList(),
	}
	ch.Extensions.Add(ExtSupportedVersions, []byte{2, 0x03, 0x04})

	encoded, err := ch.Encode()
	require.NoError(t, err)

	var decoded ClientHello
	require.NoError(t, decoded.Decode(VersionTLS12, encoded))
	require.Equal(t, ch.CipherSuites, decoded.CipherSuites)
	require.Equal(t, ch.LegacySessionID, decoded.LegacySessionID)
	require.True(t, decoded.Extensions.Has(ExtSupportedVersions))

	reencoded, err := decoded.Encode()
	require.NoError(t, err)
	require.Equal(t, encoded, reencoded)
}

func TestClientHelloRejectsDuplicateExtension(t *testing.T) {
	ch := &ClientHello{
		LegacyVersion:     VersionTLS12,
		CipherSuites:      []CipherSuite{0x1301},
		LegacyCompression: []byte{0},
	}
	body, err := ch.Encode()
	require.NoError(t, err)

	// Hand-craft a duplicate extensions block and splice it in place of
	// the (empty) one Encode produced, to exercise DecodeExtensionList's
	// duplicate rejection independent of the rest of ClientHello.
	dup := []byte{
		0x00, 0x08, // extensions block length
		0x00, 0x00, 0x00, 0x00, // server_name, empty
		0x00, 0x00, 0x00, 0x00, // server_name again
	}
	body = append(body[:len(body)-2], dup...)

	var decoded ClientHello
	err = decoded.Decode(VersionTLS12, body)
	require.Error(t, err)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	require.Equal(t, KindDuplicateExtension, decErr.Kind)
}

func TestClientHelloTruncatedHelloLenMatchesBinderOffset(t *testing.T) {
	ch := &ClientHello{
		LegacyVersion:     VersionTLS13,
		CipherSuites:      []CipherSuite{0x1301},
		LegacyCompression: []byte{0},
		Extensions:        NewExtensionList(),
	}
	// identities: one 2-byte identity, obfuscated_ticket_age; binders: one 32-byte binder.
	identities := []byte{0x00, 0x08, 0x00, 0x02, 0xAA, 0xBB, 0x00, 0x00, 0x00, 0x00}
	binders := make([]byte, 2+33)
	binders[0], binders[1] = 0x00, 33
	binders[2] = 32
	psk := append(append([]byte(nil), identities...), binders...)
	ch.Extensions.Add(ExtPreSharedKey, psk)

	encoded, err := ch.Encode()
	require.NoError(t, err)
	require.NotZero(t, ch.TruncatedHelloLen)
	require.Less(t, ch.TruncatedHelloLen, len(encoded))

	var decoded ClientHello
	require.NoError(t, decoded.Decode(VersionTLS13, encoded))
	require.Equal(t, ch.TruncatedHelloLen, decoded.TruncatedHelloLen)
}

func TestClientHelloDTLSCookieRoundTrip(t *testing.T) {
	ch := &ClientHello{
		LegacyVersion:     VersionDTLS12,
		LegacySessionID:   []byte{9, 9},
		Cookie:            []byte{1, 2, 3, 4, 5},
		CipherSuites:      []CipherSuite{0xc02f},
		LegacyCompression: []byte{0},
		Extensions:        NewExtensionList(),
	}

	encoded, err := ch.Encode()
	require.NoError(t, err)

	var decoded ClientHello
	require.NoError(t, decoded.Decode(VersionDTLS12, encoded))
	require.Equal(t, ch.Cookie, decoded.Cookie)
	require.Equal(t, ch.LegacySessionID, decoded.LegacySessionID)
	require.Equal(t, ch.CipherSuites, decoded.CipherSuites)
}

func TestClientHelloTLSIgnoresCookieField(t *testing.T) {
	ch := &ClientHello{
		LegacyVersion:     VersionTLS12,
		CipherSuites:      []CipherSuite{0x1301},
		LegacyCompression: []byte{0},
		Extensions:        NewExtensionList(),
		Cookie:            []byte{1, 2, 3},
	}
	encoded, err := ch.Encode()
	require.NoError(t, err)

	var decoded ClientHello
	require.NoError(t, decoded.Decode(VersionTLS12, encoded))
	require.Empty(t, decoded.Cookie)
}

func TestHelloVerifyRequestRoundTrip(t *testing.T) {
	hvr := &HelloVerifyRequest{ServerVersion: VersionDTLS12, Cookie: []byte("0123456789012345678")}
	encoded := hvr.Encode()

	var decoded HelloVerifyRequest
	require.NoError(t, decoded.Decode(encoded))
	require.Equal(t, hvr.ServerVersion, decoded.ServerVersion)
	require.Equal(t, hvr.Cookie, decoded.Cookie)
}

func TestHelloVerifyRequestRejectsOversizedCookie(t *testing.T) {
	var decoded HelloVerifyRequest
	oversized := make([]byte, 33)
	buf := append([]byte{0xfe, 0xfd, byte(len(oversized))}, oversized...)
	require.Error(t, decoded.Decode(buf))
}

func TestRenegotiationInfoRoundTrip(t *testing.T) {
	value := []byte{0xAA, 0xBB, 0xCC}
	encoded := EncodeRenegotiationInfo(value)

	decoded, err := DecodeRenegotiationInfo(encoded)
	require.NoError(t, err)
	require.Equal(t, value, decoded)
}

func TestRenegotiationInfoEmptyOnInitialHandshake(t *testing.T) {
	encoded := EncodeRenegotiationInfo(nil)
	decoded, err := DecodeRenegotiationInfo(encoded)
	require.NoError(t, err)
	require.Empty(t, decoded)
}

func TestServerHelloIsHelloRetryRequest(t *testing.T) {
	sh := &ServerHello{
		LegacyVersion: VersionTLS12,
		Random:        HelloRetryRequestRandom,
		CipherSuite:   0x1301,
		Extensions:    NewExtensionList(),
	}
	require.True(t, sh.IsHelloRetryRequest())

	encoded, err := sh.Encode()
	require.NoError(t, err)
	var decoded ServerHello
	require.NoError(t, decoded.Decode(encoded))
	require.True(t, decoded.IsHelloRetryRequest())
}

func TestCertificateRoundTripTLS13(t *testing.T) {
	c := &Certificate{
		CertificateRequestContext: []byte{0xAA},
		Entries: []CertificateEntry{
			{Data: []byte("fake-der-cert"), Extensions: NewExtensionList()},
		},
	}
	encoded, err := c.Encode(VersionTLS13)
	require.NoError(t, err)

	var decoded Certificate
	require.NoError(t, decoded.Decode(VersionTLS13, encoded))
	require.Equal(t, c.CertificateRequestContext, decoded.CertificateRequestContext)
	require.Len(t, decoded.Entries, 1)
	require.Equal(t, []byte("fake-der-cert"), decoded.Entries[0].Data)
}

func TestClientKeyExchangeTLCPRoundTrip(t *testing.T) {
	cke := &ClientKeyExchange{
		Kind:        CKETLCP,
		TLCPCurveID: 0x0041,
		ECPoint:     []byte{0x04, 0x01, 0x02, 0x03},
	}
	encoded, err := cke.Encode()
	require.NoError(t, err)
	require.Equal(t, ECCurveTypeNamedCurve, encoded[0])

	var decoded ClientKeyExchange
	require.NoError(t, decoded.Decode(CKETLCP, encoded))
	require.Equal(t, cke.TLCPCurveID, decoded.TLCPCurveID)
	require.Equal(t, cke.ECPoint, decoded.ECPoint)
}

func TestServerKeyExchangeRejectsUnsetGroup(t *testing.T) {
	ske := &ServerKeyExchangeECDHE{}
	_, err := ske.Encode(VersionTLS12, true)
	require.Error(t, err)
	var encErr *EncodeError
	require.ErrorAs(t, err, &encErr)
	require.Equal(t, KindInconsistentMessage, encErr.Kind)
}

func TestKeyUpdateRejectsIllegalValue(t *testing.T) {
	var ku KeyUpdate
	err := ku.Decode([]byte{7})
	require.Error(t, err)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	require.Equal(t, KindIllegalTag, decErr.Kind)
}

func TestDecodeMessageDispatchesByType(t *testing.T) {
	ch := &ClientHello{
		LegacyVersion:     VersionTLS12,
		CipherSuites:      []CipherSuite{0x1301},
		LegacyCompression: []byte{0},
	}
	body, err := ch.Encode()
	require.NoError(t, err)

	msg, err := DecodeMessage(DecodeContext{Version: VersionTLS12}, TypeClientHello, body)
	require.NoError(t, err)
	require.NotNil(t, msg.ClientHello)
	require.Equal(t, ch.CipherSuites, msg.ClientHello.CipherSuites)

	reencoded, err := msg.Encode(DecodeContext{Version: VersionTLS12})
	require.NoError(t, err)
	require.Equal(t, body, reencoded)
}

func TestMessageHashEntry(t *testing.T) {
	hash := make([]byte, 32)
	for i := range hash {
		hash[i] = byte(i)
	}
	entry := MessageHashEntry(hash)
	require.Equal(t, byte(TypeMessageHash), entry[0])
	require.Equal(t, hash, entry[4:])
}
