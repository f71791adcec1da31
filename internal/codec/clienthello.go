package codec

import (
	"golang.org/x/crypto/cryptobyte"
)

// CipherSuite is the two-byte cipher suite identifier.
type CipherSuite uint16

// CipherSuiteEmptyRenegotiationInfoSCSV is the signaling cipher suite
// value (RFC 5746 §3.3) a client offers in cipher_suites, instead of or
// alongside an empty renegotiation_info extension, to announce secure
// renegotiation support to a server that predates the extension.
const CipherSuiteEmptyRenegotiationInfoSCSV CipherSuite = 0x00ff

// EncodeRenegotiationInfo packs the renegotiation_info extension_data
// (RFC 5746 §3.2): an opaque, 1-byte-length-prefixed
// renegotiated_connection value, empty on an initial handshake.
func EncodeRenegotiationInfo(value []byte) []byte {
	var b cryptobyte.Builder
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(value) })
	out, _ := b.Bytes()
	return out
}

// DecodeRenegotiationInfo parses a renegotiation_info extension_data
// payload back into its renegotiated_connection value.
func DecodeRenegotiationInfo(ext []byte) ([]byte, error) {
	s := cryptobyte.String(ext)
	var value cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&value) || !s.Empty() {
		return nil, newDecodeErr(KindTruncated, "renegotiation_info")
	}
	return append([]byte(nil), value...), nil
}

// ClientHello is the decoded ClientHello body (handshake header already
// stripped).
type ClientHello struct {
	LegacyVersion      Version
	Random             [32]byte
	LegacySessionID    []byte // <=32 bytes
	// Cookie carries the DTLS anti-amplification cookie (RFC 6347
	// §4.2.1): empty on ClientHello1, populated on the retry that
	// echoes a HelloVerifyRequest. TLS's wire format has no such field;
	// Decode/Encode only touch it when the version is DTLS.
	Cookie             []byte
	CipherSuites       []CipherSuite
	LegacyCompression  []byte // SSLv3-TLS1.2 carries this; must be [0] for 1.3
	Extensions         *ExtensionList

	// TruncatedHelloLen is the byte offset, within the *encoded*
	// ClientHello body (handshake header not included), of the binder-list length
	// field inside the pre_shared_key extension. It is filled in by
	// Encode/Decode so the key schedule can recompute PSK binders over
	// exactly this prefix, per RFC 8446 §4.2.11.2. Zero if the
	// ClientHello carries no pre_shared_key extension.
	TruncatedHelloLen int
}

func (c *ClientHello) Decode(version Version, buf []byte) error {
	s := cryptobyte.String(buf)
	var legacyVer uint16
	if !s.ReadUint16(&legacyVer) {
		return newDecodeErr(KindTruncated, "client_hello.legacy_version")
	}
	c.LegacyVersion = Version(legacyVer)

	var random []byte
	if !s.ReadBytes(&random, 32) {
		return newDecodeErr(KindTruncated, "client_hello.random")
	}
	copy(c.Random[:], random)

	var sessID cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&sessID) {
		return newDecodeErr(KindTruncated, "client_hello.legacy_session_id")
	}
	if len(sessID) > 32 {
		return newDecodeErr(KindLengthOverflow, "client_hello.legacy_session_id too long")
	}
	c.LegacySessionID = append([]byte(nil), sessID...)

	if version.IsDTLS() {
		var cookie cryptobyte.String
		if !s.ReadUint8LengthPrefixed(&cookie) {
			return newDecodeErr(KindTruncated, "client_hello.cookie")
		}
		if len(cookie) > 32 {
			return newDecodeErr(KindLengthOverflow, "client_hello.cookie too long")
		}
		c.Cookie = append([]byte(nil), cookie...)
	}

	var cipherSuites cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&cipherSuites) {
		return newDecodeErr(KindTruncated, "client_hello.cipher_suites")
	}
	if len(cipherSuites)%2 != 0 {
		return newDecodeErr(KindLengthOverflow, "client_hello.cipher_suites odd length")
	}
	for !cipherSuites.Empty() {
		var cs uint16
		if !cipherSuites.ReadUint16(&cs) {
			return newDecodeErr(KindTruncated, "client_hello.cipher_suites entry")
		}
		c.CipherSuites = append(c.CipherSuites, CipherSuite(cs))
	}
	if len(c.CipherSuites) == 0 {
		return newDecodeErr(KindEmptyRequiredField, "client_hello.cipher_suites empty")
	}

	var compression cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&compression) {
		return newDecodeErr(KindTruncated, "client_hello.legacy_compression_methods")
	}
	if len(compression) == 0 {
		return newDecodeErr(KindEmptyRequiredField, "client_hello.legacy_compression_methods empty")
	}
	c.LegacyCompression = append([]byte(nil), compression...)

	if s.Empty() {
		c.Extensions = NewExtensionList()
		return nil
	}

	// The binder-list length field sits at the tail of the
	// pre_shared_key extension; the offset is the total consumed
	// length so far, plus the 2-byte extensions-block length, plus
	// walking to just before the binder list. We compute it below
	// after parsing, by re-scanning for the pre_shared_key extension.
	consumedBeforeExt := len(buf) - len(s)
	ext, err := DecodeExtensionList(&s)
	if err != nil {
		return err
	}
	c.Extensions = ext

	if pskData, ok := ext.Get(ExtPreSharedKey); ok {
		off, err := pskBinderListOffset(buf, consumedBeforeExt, pskData)
		if err != nil {
			return err
		}
		c.TruncatedHelloLen = off
	}

	if !s.Empty() {
		return newDecodeErr(KindLengthOverflow, "trailing bytes after client_hello extensions")
	}
	return nil
}

// pskBinderListOffset locates where, within the full encoded
// ClientHello buffer, the pre_shared_key extension's binder-list length
// field begins. consumedBeforeExt is the offset of the extensions
// block's own length prefix; pskData is the already-extracted extension
// payload (identities list followed by binders list).
func pskBinderListOffset(fullBuf []byte, consumedBeforeExt int, pskData []byte) (int, error) {
	// Re-walk the extension block to find pre_shared_key's byte range,
	// since DecodeExtensionList gives us the payload but not its
	// absolute position.
	s := cryptobyte.String(fullBuf[consumedBeforeExt:])
	var block cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&block) {
		return 0, newDecodeErr(KindTruncated, "re-scan extensions block")
	}
	pos := consumedBeforeExt + 2 // past the 2-byte block length
	for !block.Empty() {
		startLen := len(block)
		var typ uint16
		var data cryptobyte.String
		if !block.ReadUint16(&typ) || !block.ReadUint16LengthPrefixed(&data) {
			return 0, newDecodeErr(KindTruncated, "re-scan extension entry")
		}
		consumedThisEntry := startLen - len(block)
		if ExtensionType(typ) == ExtPreSharedKey {
			// data = identities(u16-prefixed) || binders(u16-prefixed)
			identitiesLen := int(data[0])<<8 | int(data[1])
			binderListOffsetWithinData := 2 + identitiesLen
			return pos + (consumedThisEntry - len(data)) + binderListOffsetWithinData, nil
		}
		pos += consumedThisEntry
	}
	_ = pskData
	return 0, newDecodeErr(KindInconsistentMessage, "pre_shared_key extension vanished on re-scan")
}

// Encode packs c into the handshake body (no header). It returns the
// body and fills TruncatedHelloLen as a side effect when c carries a
// pre_shared_key extension, so the key schedule can binder-sign it
// before the binder bytes are finalized (the caller is expected to
// encode once with zeroed binders, compute the binder, then re-encode
// with the real binder of identical length so the offsets don't move).
func (c *ClientHello) Encode() ([]byte, error) {
	var b cryptobyte.Builder
	b.AddUint16(uint16(c.LegacyVersion))
	b.AddBytes(c.Random[:])
	if len(c.LegacySessionID) > 32 {
		return nil, newEncodeErr(KindLengthOverflow, "legacy_session_id too long")
	}
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(c.LegacySessionID) })
	if c.LegacyVersion.IsDTLS() {
		if len(c.Cookie) > 32 {
			return nil, newEncodeErr(KindLengthOverflow, "cookie too long")
		}
		b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(c.Cookie) })
	}
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, cs := range c.CipherSuites {
			b.AddUint16(uint16(cs))
		}
	})
	comp := c.LegacyCompression
	if len(comp) == 0 {
		comp = []byte{0}
	}
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(comp) })

	extStart := len(b.BytesOrPanic())
	EncodeExtensionList(&b, c.Extensions)

	out, err := b.Bytes()
	if err != nil {
		return nil, newEncodeErr(KindBufferTooSmall, "%v", err)
	}

	if c.Extensions != nil {
		if pskData, ok := c.Extensions.Get(ExtPreSharedKey); ok {
			off, err := pskBinderListOffset(out, extStart, pskData)
			if err == nil {
				c.TruncatedHelloLen = off
			}
		}
	}
	return out, nil
}
