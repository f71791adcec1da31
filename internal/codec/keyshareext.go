package codec

import "golang.org/x/crypto/cryptobyte"

// KeyShareEntry is one (group, key_exchange) pair from a key_share
// extension (RFC 8446 §4.2.8).
type KeyShareEntry struct {
	Group      uint16
	KeyExchange []byte
}

// EncodeKeyShareClientHello packs a ClientHello's key_share
// extension_data: a list of entries.
func EncodeKeyShareClientHello(entries []KeyShareEntry) []byte {
	var b cryptobyte.Builder
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, e := range entries {
			b.AddUint16(e.Group)
			b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(e.KeyExchange) })
		}
	})
	return b.BytesOrPanic()
}

// DecodeKeyShareClientHello parses a ClientHello's key_share
// extension_data.
func DecodeKeyShareClientHello(data []byte) ([]KeyShareEntry, error) {
	s := cryptobyte.String(data)
	var list cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&list) {
		return nil, newDecodeErr(KindTruncated, "key_share.client_shares")
	}
	var out []KeyShareEntry
	for !list.Empty() {
		var group uint16
		var ke cryptobyte.String
		if !list.ReadUint16(&group) || !list.ReadUint16LengthPrefixed(&ke) {
			return nil, newDecodeErr(KindTruncated, "key_share.client_shares entry")
		}
		out = append(out, KeyShareEntry{Group: group, KeyExchange: append([]byte(nil), ke...)})
	}
	return out, nil
}

// EncodeKeyShareServerHello packs a ServerHello's key_share
// extension_data, a single entry. The HelloRetryRequest form (a bare
// NamedGroup selection) is packed by EncodeHelloRetryRequestKeyShare.
func EncodeKeyShareServerHello(e KeyShareEntry) []byte {
	var b cryptobyte.Builder
	b.AddUint16(e.Group)
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(e.KeyExchange) })
	return b.BytesOrPanic()
}

// DecodeKeyShareServerHello parses a ServerHello's key_share
// extension_data (a single entry).
func DecodeKeyShareServerHello(data []byte) (KeyShareEntry, error) {
	s := cryptobyte.String(data)
	var group uint16
	var ke cryptobyte.String
	if !s.ReadUint16(&group) || !s.ReadUint16LengthPrefixed(&ke) {
		return KeyShareEntry{}, newDecodeErr(KindTruncated, "key_share.server_share")
	}
	return KeyShareEntry{Group: group, KeyExchange: append([]byte(nil), ke...)}, nil
}

// EncodeHelloRetryRequestKeyShare packs the HRR form of key_share: just
// the selected group, no key_exchange bytes.
func EncodeHelloRetryRequestKeyShare(group uint16) []byte {
	var b cryptobyte.Builder
	b.AddUint16(group)
	return b.BytesOrPanic()
}

// DecodeHelloRetryRequestKeyShare parses the HRR form of key_share.
func DecodeHelloRetryRequestKeyShare(data []byte) (uint16, error) {
	s := cryptobyte.String(data)
	var group uint16
	if !s.ReadUint16(&group) {
		return 0, newDecodeErr(KindTruncated, "hello_retry_request key_share.selected_group")
	}
	return group, nil
}
