package codec

import (
	"golang.org/x/crypto/cryptobyte"
)

// HandshakeType is the one-byte msg_type field of a handshake message
// (RFC 8446 §4; DTLS adds message_seq/fragment fields, not a new type
// space).
type HandshakeType uint8

const (
	TypeHelloRequest       HandshakeType = 0
	TypeClientHello        HandshakeType = 1
	TypeServerHello        HandshakeType = 2
	TypeHelloVerifyRequest HandshakeType = 3 // DTLS only
	TypeNewSessionTicket   HandshakeType = 4
	TypeEndOfEarlyData     HandshakeType = 5
	TypeEncryptedExtensions HandshakeType = 8
	TypeCertificate        HandshakeType = 11
	TypeServerKeyExchange  HandshakeType = 12
	TypeCertificateRequest HandshakeType = 13
	TypeServerHelloDone    HandshakeType = 14
	TypeCertificateVerify  HandshakeType = 15
	TypeClientKeyExchange  HandshakeType = 16
	TypeFinished           HandshakeType = 20
	TypeCertificateStatus  HandshakeType = 22
	TypeKeyUpdate          HandshakeType = 24
	TypeMessageHash        HandshakeType = 254 // RFC 8446 §4.4.1 synthetic transcript entry
)

// Header is the decoded common handshake header. For TLS, Seq/
// FragmentOffset/FragmentLength are unused (zero); for DTLS they carry
// the reassembly coordinates.
type Header struct {
	Type            HandshakeType
	Length          uint32 // 24-bit on the wire
	MessageSeq      uint16 // DTLS only
	FragmentOffset  uint32 // DTLS only, 24-bit
	FragmentLength  uint32 // DTLS only, 24-bit
}

// DecodeHeader reads a handshake header from buf (TLS: 4 bytes; DTLS: 12
// bytes) and returns the header plus the remaining body bytes.
func DecodeHeader(version Version, buf []byte) (Header, []byte, error) {
	s := cryptobyte.String(buf)
	var typ uint8
	var length uint32
	if !s.ReadUint8(&typ) || !s.ReadUint24(&length) {
		return Header{}, nil, newDecodeErr(KindTruncated, "handshake header")
	}
	h := Header{Type: HandshakeType(typ), Length: length}

	if version.IsDTLS() {
		var seq uint16
		var fragOff, fragLen uint32
		if !s.ReadUint16(&seq) || !s.ReadUint24(&fragOff) || !s.ReadUint24(&fragLen) {
			return Header{}, nil, newDecodeErr(KindTruncated, "dtls handshake header")
		}
		h.MessageSeq = seq
		h.FragmentOffset = fragOff
		h.FragmentLength = fragLen
	}

	if uint32(len(s)) < h.bodyLen(version) {
		return Header{}, nil, newDecodeErr(KindTruncated, "handshake body shorter than declared length")
	}
	return h, []byte(s), nil
}

func (h Header) bodyLen(version Version) uint32 {
	if version.IsDTLS() {
		return h.FragmentLength
	}
	return h.Length
}

// EncodeHeader writes b's handshake header, followed by body, into a
// fresh buffer and returns it.
func EncodeHeader(version Version, typ HandshakeType, body []byte, dtlsSeq uint16, fragOffset uint32) []byte {
	var b cryptobyte.Builder
	b.AddUint8(uint8(typ))
	bodyLen := uint32(len(body))
	b.AddUint24(bodyLen)
	if version.IsDTLS() {
		b.AddUint16(dtlsSeq)
		b.AddUint24(fragOffset)
		b.AddUint24(bodyLen) // no fragmentation performed by the codec; record layer may refragment
	}
	b.AddBytes(body)
	return b.BytesOrPanic()
}

// MessageHashEntry builds the synthetic "message_hash" handshake
// message used to replace a buffered ClientHello1 in the transcript
// after a HelloRetryRequest (RFC 8446 §4.4.1): a TypeMessageHash header
// whose body is the hash of the original message.
func MessageHashEntry(hash []byte) []byte {
	var b cryptobyte.Builder
	b.AddUint8(uint8(TypeMessageHash))
	b.AddUint24(uint32(len(hash)))
	b.AddBytes(hash)
	return b.BytesOrPanic()
}
