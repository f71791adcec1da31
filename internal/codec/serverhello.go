package codec

import (
	"bytes"

	"golang.org/x/crypto/cryptobyte"
)

// HelloRetryRequestRandom is the RFC 8446 §4.1.3 sentinel value that
// marks a ServerHello as a HelloRetryRequest rather than a real one.
var HelloRetryRequestRandom = [32]byte{
	0xCF, 0x21, 0xAD, 0x74, 0xE5, 0x9A, 0x61, 0x11,
	0xBE, 0x1D, 0x8C, 0x02, 0x1E, 0x65, 0xB8, 0x91,
	0xC2, 0xA2, 0x11, 0x16, 0x7A, 0xBB, 0x8C, 0x5E,
	0x07, 0x9E, 0x09, 0xE2, 0xC8, 0xA8, 0x33, 0x9C,
}

// ServerHello is the decoded ServerHello/HelloRetryRequest body (they
// share a wire shape per RFC 8446 §4.1.4; IsHelloRetryRequest distinguishes them by
// checking Random against HelloRetryRequestRandom).
type ServerHello struct {
	LegacyVersion     Version
	Random            [32]byte
	LegacySessionIDEcho []byte
	CipherSuite       CipherSuite
	LegacyCompression uint8
	Extensions        *ExtensionList
}

// IsHelloRetryRequest reports whether sh's random field is the RFC
// 8446 §4.1.4 sentinel.
func (sh *ServerHello) IsHelloRetryRequest() bool {
	return bytes.Equal(sh.Random[:], HelloRetryRequestRandom[:])
}

func (sh *ServerHello) Decode(buf []byte) error {
	s := cryptobyte.String(buf)
	var legacyVer uint16
	if !s.ReadUint16(&legacyVer) {
		return newDecodeErr(KindTruncated, "server_hello.legacy_version")
	}
	sh.LegacyVersion = Version(legacyVer)

	var random []byte
	if !s.ReadBytes(&random, 32) {
		return newDecodeErr(KindTruncated, "server_hello.random")
	}
	copy(sh.Random[:], random)

	var sessID cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&sessID) {
		return newDecodeErr(KindTruncated, "server_hello.legacy_session_id_echo")
	}
	if len(sessID) > 32 {
		return newDecodeErr(KindLengthOverflow, "server_hello.legacy_session_id_echo too long")
	}
	sh.LegacySessionIDEcho = append([]byte(nil), sessID...)

	var cs uint16
	if !s.ReadUint16(&cs) {
		return newDecodeErr(KindTruncated, "server_hello.cipher_suite")
	}
	sh.CipherSuite = CipherSuite(cs)

	var comp uint8
	if !s.ReadUint8(&comp) {
		return newDecodeErr(KindTruncated, "server_hello.legacy_compression_method")
	}
	sh.LegacyCompression = comp

	if s.Empty() {
		sh.Extensions = NewExtensionList()
		return nil
	}
	ext, err := DecodeExtensionList(&s)
	if err != nil {
		return err
	}
	sh.Extensions = ext
	if !s.Empty() {
		return newDecodeErr(KindLengthOverflow, "trailing bytes after server_hello extensions")
	}
	return nil
}

func (sh *ServerHello) Encode() ([]byte, error) {
	var b cryptobyte.Builder
	b.AddUint16(uint16(sh.LegacyVersion))
	b.AddBytes(sh.Random[:])
	if len(sh.LegacySessionIDEcho) > 32 {
		return nil, newEncodeErr(KindLengthOverflow, "legacy_session_id_echo too long")
	}
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(sh.LegacySessionIDEcho) })
	b.AddUint16(uint16(sh.CipherSuite))
	b.AddUint8(sh.LegacyCompression)
	EncodeExtensionList(&b, sh.Extensions)
	out, err := b.Bytes()
	if err != nil {
		return nil, newEncodeErr(KindBufferTooSmall, "%v", err)
	}
	return out, nil
}
