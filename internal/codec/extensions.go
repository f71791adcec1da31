package codec

import (
	"golang.org/x/crypto/cryptobyte"
)

// ExtensionType is the IANA TLS ExtensionType registry value.
type ExtensionType uint16

const (
	ExtServerName                    ExtensionType = 0
	ExtStatusRequest                 ExtensionType = 5
	ExtSupportedGroups                ExtensionType = 10
	ExtECPointFormats                 ExtensionType = 11
	ExtSignatureAlgorithms             ExtensionType = 13
	ExtALPN                           ExtensionType = 16
	ExtSignedCertificateTimestamp     ExtensionType = 18
	ExtEncryptThenMAC                 ExtensionType = 22
	ExtExtendedMasterSecret           ExtensionType = 23
	ExtSessionTicket                  ExtensionType = 35
	ExtPreSharedKey                   ExtensionType = 41
	ExtEarlyData                      ExtensionType = 42
	ExtSupportedVersions              ExtensionType = 43
	ExtCookie                         ExtensionType = 44
	ExtPSKKeyExchangeModes            ExtensionType = 45
	ExtCertificateAuthorities         ExtensionType = 47
	ExtSignatureAlgorithmsCert        ExtensionType = 50
	ExtKeyShare                       ExtensionType = 51
	ExtRenegotiationInfo              ExtensionType = 0xff01
	ExtPostHandshakeAuth              ExtensionType = 49
)

// Extension is one raw, still-encoded extension entry.
type Extension struct {
	Type ExtensionType
	Data []byte
}

// ExtensionList is a position-insensitive mapping that preserves
// insertion order for re-encoding parity, since some middleboxes hash
// the extension block verbatim. Decoding an inbound message fills a
// List from the wire in order; packing an outbound message iterates
// the List in the order entries were added.
type ExtensionList struct {
	order   []ExtensionType
	entries map[ExtensionType]Extension
}

func NewExtensionList() *ExtensionList {
	return &ExtensionList{entries: make(map[ExtensionType]Extension)}
}

// Add appends an extension, preserving first-seen order; re-adding an
// existing type overwrites its data but keeps its original position.
func (l *ExtensionList) Add(t ExtensionType, data []byte) {
	if l.entries == nil {
		l.entries = make(map[ExtensionType]Extension)
	}
	if _, ok := l.entries[t]; !ok {
		l.order = append(l.order, t)
	}
	l.entries[t] = Extension{Type: t, Data: data}
}

func (l *ExtensionList) Get(t ExtensionType) ([]byte, bool) {
	e, ok := l.entries[t]
	if !ok {
		return nil, false
	}
	return e.Data, true
}

func (l *ExtensionList) Has(t ExtensionType) bool {
	_, ok := l.entries[t]
	return ok
}

// Ordered returns the extensions in insertion (wire) order.
func (l *ExtensionList) Ordered() []Extension {
	out := make([]Extension, 0, len(l.order))
	for _, t := range l.order {
		out = append(out, l.entries[t])
	}
	return out
}

func (l *ExtensionList) Len() int { return len(l.order) }

// DecodeExtensionList reads a uint16-length-prefixed extension block,
// rejecting duplicate extension types (illegal_parameter per spec.md's
// codec error table).
func DecodeExtensionList(s *cryptobyte.String) (*ExtensionList, error) {
	var block cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&block) {
		return nil, newDecodeErr(KindTruncated, "extensions block")
	}
	list := NewExtensionList()
	for !block.Empty() {
		var typ uint16
		var data cryptobyte.String
		if !block.ReadUint16(&typ) || !block.ReadUint16LengthPrefixed(&data) {
			return nil, newDecodeErr(KindTruncated, "extension entry")
		}
		et := ExtensionType(typ)
		if list.Has(et) {
			return nil, newDecodeErr(KindDuplicateExtension, "extension type %d appears twice", typ)
		}
		list.Add(et, append([]byte(nil), data...))
	}
	return list, nil
}

// EncodeExtensionList writes list into b as a uint16-length-prefixed
// extension block, in list's insertion order. A nil or empty list is
// still written, as an empty block (the two length bytes 0x00 0x00).
func EncodeExtensionList(b *cryptobyte.Builder, list *ExtensionList) {
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		if list == nil {
			return
		}
		for _, e := range list.Ordered() {
			b.AddUint16(uint16(e.Type))
			b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
				b.AddBytes(e.Data)
			})
		}
	})
}
