package codec

import "golang.org/x/crypto/cryptobyte"

// PSKIdentityEntry is one entry of a pre_shared_key extension's
// identities list (RFC 8446 §4.2.11).
type PSKIdentityEntry struct {
	Identity            []byte
	ObfuscatedTicketAge uint32
}

// PSKExtension is the decoded payload of a ClientHello's
// pre_shared_key extension: an identities list and a parallel binders
// list, validated to have the same cardinality.
type PSKExtension struct {
	Identities []PSKIdentityEntry
	Binders    [][]byte
}

// DecodePSKExtension parses ext (the raw pre_shared_key extension_data
// from a ClientHello, as returned by ExtensionList.Get).
func DecodePSKExtension(ext []byte) (*PSKExtension, error) {
	s := cryptobyte.String(ext)
	var identities cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&identities) {
		return nil, newDecodeErr(KindTruncated, "pre_shared_key.identities")
	}
	p := &PSKExtension{}
	for !identities.Empty() {
		var id cryptobyte.String
		var age uint32
		if !identities.ReadUint16LengthPrefixed(&id) || !identities.ReadUint32(&age) {
			return nil, newDecodeErr(KindTruncated, "pre_shared_key.identities entry")
		}
		p.Identities = append(p.Identities, PSKIdentityEntry{Identity: append([]byte(nil), id...), ObfuscatedTicketAge: age})
	}
	if len(p.Identities) == 0 {
		return nil, newDecodeErr(KindEmptyRequiredField, "pre_shared_key.identities empty")
	}

	var binders cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&binders) {
		return nil, newDecodeErr(KindTruncated, "pre_shared_key.binders")
	}
	for !binders.Empty() {
		var b cryptobyte.String
		if !binders.ReadUint8LengthPrefixed(&b) {
			return nil, newDecodeErr(KindTruncated, "pre_shared_key.binders entry")
		}
		p.Binders = append(p.Binders, append([]byte(nil), b...))
	}
	if len(p.Binders) != len(p.Identities) {
		return nil, newDecodeErr(KindInconsistentMessage, "pre_shared_key binders/identities count mismatch")
	}
	if !s.Empty() {
		return nil, newDecodeErr(KindLengthOverflow, "trailing bytes after pre_shared_key")
	}
	return p, nil
}

// Encode packs p back into a pre_shared_key extension_data payload.
func (p *PSKExtension) Encode() ([]byte, error) {
	var b cryptobyte.Builder
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, id := range p.Identities {
			b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(id.Identity) })
			b.AddUint32(id.ObfuscatedTicketAge)
		}
	})
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, binder := range p.Binders {
			b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(binder) })
		}
	})
	out, err := b.Bytes()
	if err != nil {
		return nil, newEncodeErr(KindBufferTooSmall, "%v", err)
	}
	return out, nil
}

// EncodePSKSelectedIdentity packs a ServerHello's pre_shared_key
// extension_data: just the index, into the client's offered identities
// list, that the server chose to resume (RFC 8446 §4.2.11).
func EncodePSKSelectedIdentity(index uint16) []byte {
	var b cryptobyte.Builder
	b.AddUint16(index)
	out, _ := b.Bytes()
	return out
}

// DecodePSKSelectedIdentity parses a ServerHello's pre_shared_key
// extension_data.
func DecodePSKSelectedIdentity(ext []byte) (uint16, error) {
	s := cryptobyte.String(ext)
	var index uint16
	if !s.ReadUint16(&index) || !s.Empty() {
		return 0, newDecodeErr(KindTruncated, "pre_shared_key.selected_identity")
	}
	return index, nil
}

// PSKKeyExchangeMode is one entry of the psk_key_exchange_modes
// extension (RFC 8446 §4.2.9).
type PSKKeyExchangeMode uint8

const (
	PSKKE    PSKKeyExchangeMode = 0
	PSKDHEKE PSKKeyExchangeMode = 1
)

// EncodePSKKeyExchangeModes packs a ClientHello's psk_key_exchange_modes
// extension_data payload.
func EncodePSKKeyExchangeModes(modes []PSKKeyExchangeMode) []byte {
	var b cryptobyte.Builder
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, m := range modes {
			b.AddUint8(uint8(m))
		}
	})
	out, _ := b.Bytes()
	return out
}

// DecodePSKKeyExchangeModes parses the psk_key_exchange_modes
// extension_data payload.
func DecodePSKKeyExchangeModes(ext []byte) ([]PSKKeyExchangeMode, error) {
	s := cryptobyte.String(ext)
	var modes cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&modes) {
		return nil, newDecodeErr(KindTruncated, "psk_key_exchange_modes")
	}
	var out []PSKKeyExchangeMode
	for !modes.Empty() {
		var m uint8
		if !modes.ReadUint8(&m) {
			return nil, newDecodeErr(KindTruncated, "psk_key_exchange_modes entry")
		}
		out = append(out, PSKKeyExchangeMode(m))
	}
	if len(out) == 0 {
		return nil, newDecodeErr(KindEmptyRequiredField, "psk_key_exchange_modes empty")
	}
	return out, nil
}
