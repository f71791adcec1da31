package codec

import (
	"golang.org/x/crypto/cryptobyte"
)

// ECCurveType is the legacy curve_type tag preceding a named curve in
// ServerKeyExchange/ClientKeyExchange (RFC 8422 §5.4). named_curve(3)
// is the only value the core emits or accepts.
const ECCurveTypeNamedCurve uint8 = 3

// ServerKeyExchangeECDHE is the ServerKeyExchange body for ECDHE_*
// cipher suites (<=1.2). RSA/DHE key exchanges are out of the core's
// "interesting" surface beyond Non-goals (raw DH params); only the
// named_curve ECDHE form is modeled, and this package has no DHE
// ServerKeyExchange codec.
type ServerKeyExchangeECDHE struct {
	Group        uint16 // NamedGroup
	PublicKey    []byte
	SignatureAlg SignatureSchemeWire // absent (zero) pre-1.2
	Signature    []byte
}

func (ske *ServerKeyExchangeECDHE) Decode(version Version, hasSignature bool) func([]byte) error {
	return func(buf []byte) error {
		s := cryptobyte.String(buf)
		var curveType uint8
		if !s.ReadUint8(&curveType) {
			return newDecodeErr(KindTruncated, "server_key_exchange.curve_type")
		}
		if curveType != ECCurveTypeNamedCurve {
			return newDecodeErr(KindIllegalTag, "server_key_exchange.curve_type %d not named_curve", curveType)
		}
		var group uint16
		if !s.ReadUint16(&group) {
			return newDecodeErr(KindTruncated, "server_key_exchange.named_curve")
		}
		ske.Group = group

		var pub cryptobyte.String
		if !s.ReadUint8LengthPrefixed(&pub) {
			return newDecodeErr(KindTruncated, "server_key_exchange.public")
		}
		if len(pub) == 0 {
			return newDecodeErr(KindEmptyRequiredField, "server_key_exchange.public empty")
		}
		ske.PublicKey = append([]byte(nil), pub...)

		if hasSignature {
			if version == VersionTLS12 || version == VersionDTLS12 {
				var alg uint16
				if !s.ReadUint16(&alg) {
					return newDecodeErr(KindTruncated, "server_key_exchange.algorithm")
				}
				ske.SignatureAlg = SignatureSchemeWire(alg)
			}
			var sig cryptobyte.String
			if !s.ReadUint16LengthPrefixed(&sig) {
				return newDecodeErr(KindTruncated, "server_key_exchange.signature")
			}
			ske.Signature = append([]byte(nil), sig...)
		}
		if !s.Empty() {
			return newDecodeErr(KindLengthOverflow, "trailing bytes after server_key_exchange")
		}
		return nil
	}
}

func (ske *ServerKeyExchangeECDHE) Encode(version Version, hasSignature bool) ([]byte, error) {
	if ske.Group == 0 {
		return nil, newEncodeErr(KindInconsistentMessage, "server_key_exchange: ECDHE keyshare with unset group")
	}
	var b cryptobyte.Builder
	b.AddUint8(ECCurveTypeNamedCurve)
	b.AddUint16(ske.Group)
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(ske.PublicKey) })
	if hasSignature {
		if version == VersionTLS12 || version == VersionDTLS12 {
			b.AddUint16(uint16(ske.SignatureAlg))
		}
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(ske.Signature) })
	}
	out, err := b.Bytes()
	if err != nil {
		return nil, newEncodeErr(KindBufferTooSmall, "%v", err)
	}
	return out, nil
}

// ClientKeyExchangeKind distinguishes the three ClientKeyExchange wire
// shapes the core supports.
type ClientKeyExchangeKind int

const (
	CKERSA   ClientKeyExchangeKind = iota // RSA: u16-length-prefixed EncryptedPreMasterSecret
	CKEECDHE                              // ECDHE: u8-length-prefixed point
	CKETLCP                               // TLCP: 3-byte namedcurve prefix + u8-length-prefixed ECDH point, per GM/T 0024
)

// ClientKeyExchange is the decoded ClientKeyExchange body.
type ClientKeyExchange struct {
	Kind                  ClientKeyExchangeKind
	EncryptedPreMasterSecret []byte // CKERSA
	ECPoint               []byte    // CKEECDHE, CKETLCP
	TLCPCurveID           uint16    // CKETLCP only
}

func (cke *ClientKeyExchange) Decode(kind ClientKeyExchangeKind, buf []byte) error {
	cke.Kind = kind
	s := cryptobyte.String(buf)
	switch kind {
	case CKERSA:
		var pms cryptobyte.String
		if !s.ReadUint16LengthPrefixed(&pms) {
			return newDecodeErr(KindTruncated, "client_key_exchange.encrypted_pre_master_secret")
		}
		cke.EncryptedPreMasterSecret = append([]byte(nil), pms...)
	case CKEECDHE:
		var point cryptobyte.String
		if !s.ReadUint8LengthPrefixed(&point) {
			return newDecodeErr(KindTruncated, "client_key_exchange.ecdh_yc")
		}
		if len(point) == 0 {
			return newDecodeErr(KindEmptyRequiredField, "client_key_exchange.ecdh_yc empty")
		}
		cke.ECPoint = append([]byte(nil), point...)
	case CKETLCP:
		// GM/T 0024 legacy wire format: namedcurve_type || curve_id_hi
		// || curve_id_lo precede the ECDH point, mirroring the
		// ServerKeyExchange curve descriptor instead of omitting it.
		var curveType uint8
		if !s.ReadUint8(&curveType) {
			return newDecodeErr(KindTruncated, "tlcp client_key_exchange.namedcurve_type")
		}
		if curveType != ECCurveTypeNamedCurve {
			return newDecodeErr(KindIllegalTag, "tlcp client_key_exchange.namedcurve_type %d not named_curve", curveType)
		}
		var curveID uint16
		if !s.ReadUint16(&curveID) {
			return newDecodeErr(KindTruncated, "tlcp client_key_exchange.curve_id")
		}
		cke.TLCPCurveID = curveID
		var point cryptobyte.String
		if !s.ReadUint8LengthPrefixed(&point) {
			return newDecodeErr(KindTruncated, "tlcp client_key_exchange.ecdh point")
		}
		cke.ECPoint = append([]byte(nil), point...)
	default:
		return newDecodeErr(KindInconsistentMessage, "unknown client_key_exchange kind %d", kind)
	}
	if !s.Empty() {
		return newDecodeErr(KindLengthOverflow, "trailing bytes after client_key_exchange")
	}
	return nil
}

func (cke *ClientKeyExchange) Encode() ([]byte, error) {
	var b cryptobyte.Builder
	switch cke.Kind {
	case CKERSA:
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(cke.EncryptedPreMasterSecret) })
	case CKEECDHE:
		b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(cke.ECPoint) })
	case CKETLCP:
		b.AddUint8(ECCurveTypeNamedCurve)
		b.AddUint16(cke.TLCPCurveID)
		b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(cke.ECPoint) })
	default:
		return nil, newEncodeErr(KindInconsistentMessage, "unknown client_key_exchange kind %d", cke.Kind)
	}
	out, err := b.Bytes()
	if err != nil {
		return nil, newEncodeErr(KindBufferTooSmall, "%v", err)
	}
	return out, nil
}
