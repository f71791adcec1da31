package codec

import "golang.org/x/crypto/cryptobyte"

// sniHostNameType is the only entry type RFC 6066 §3 defines for
// server_name; DecodeServerName skips entries of any other type (the
// wire allows future name types we do not parse).
const sniHostNameType = 0

// DecodeServerName parses a ClientHello's server_name extension_data
// and returns the first host_name entry's DNS name, or ok=false if the
// list is empty or carries no host_name entry.
func DecodeServerName(data []byte) (name string, ok bool, err error) {
	s := cryptobyte.String(data)
	var list cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&list) {
		return "", false, newDecodeErr(KindTruncated, "server_name.server_name_list")
	}
	for !list.Empty() {
		var nameType uint8
		var hostName cryptobyte.String
		if !list.ReadUint8(&nameType) || !list.ReadUint16LengthPrefixed(&hostName) {
			return "", false, newDecodeErr(KindTruncated, "server_name.entry")
		}
		if nameType == sniHostNameType && !ok {
			name, ok = string(hostName), true
		}
	}
	return name, ok, nil
}

// EncodeServerName packs a ClientHello's server_name extension_data
// with a single host_name entry.
func EncodeServerName(name string) []byte {
	var b cryptobyte.Builder
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddUint8(sniHostNameType)
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes([]byte(name)) })
	})
	return b.BytesOrPanic()
}

// DecodeALPNProtocolList parses an application_layer_protocol_negotiation
// extension_data into its ordered protocol name list.
func DecodeALPNProtocolList(data []byte) ([]string, error) {
	s := cryptobyte.String(data)
	var list cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&list) {
		return nil, newDecodeErr(KindTruncated, "alpn.protocol_name_list")
	}
	var out []string
	for !list.Empty() {
		var proto cryptobyte.String
		if !list.ReadUint8LengthPrefixed(&proto) {
			return nil, newDecodeErr(KindTruncated, "alpn.entry")
		}
		out = append(out, string(proto))
	}
	if len(out) == 0 {
		return nil, newDecodeErr(KindEmptyRequiredField, "alpn.protocol_name_list empty")
	}
	return out, nil
}

// EncodeALPNProtocolList packs an ALPN extension_data carrying protos
// in order; ServerHello's EncryptedExtensions ALPN response carries
// exactly one entry, ClientHello's may carry several.
func EncodeALPNProtocolList(protos []string) []byte {
	var b cryptobyte.Builder
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, p := range protos {
			b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes([]byte(p)) })
		}
	})
	return b.BytesOrPanic()
}
