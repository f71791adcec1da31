package codec

import (
	"golang.org/x/crypto/cryptobyte"
)

// CertificateEntry is one entry in a TLS 1.3 Certificate message; for
// <=1.2 the Extensions field is always nil/empty (legacy Certificate is
// a plain opaque cert list).
type CertificateEntry struct {
	Data       []byte // DER-encoded certificate (or raw key for raw-public-key types, not used here)
	Extensions *ExtensionList
}

// Certificate is the decoded Certificate message body.
type Certificate struct {
	// CertificateRequestContext is TLS 1.3 only: echoes the context
	// from CertificateRequest, or empty for the server's initial
	// Certificate.
	CertificateRequestContext []byte
	Entries                   []CertificateEntry
}

func (c *Certificate) Decode(version Version, buf []byte) error {
	s := cryptobyte.String(buf)
	if version == VersionTLS13 {
		var ctx cryptobyte.String
		if !s.ReadUint8LengthPrefixed(&ctx) {
			return newDecodeErr(KindTruncated, "certificate.certificate_request_context")
		}
		c.CertificateRequestContext = append([]byte(nil), ctx...)
	}

	var certList cryptobyte.String
	if !s.ReadUint24LengthPrefixed(&certList) {
		return newDecodeErr(KindTruncated, "certificate.certificate_list")
	}
	for !certList.Empty() {
		var certData cryptobyte.String
		if !certList.ReadUint24LengthPrefixed(&certData) {
			return newDecodeErr(KindTruncated, "certificate_entry.cert_data")
		}
		entry := CertificateEntry{Data: append([]byte(nil), certData...)}
		if version == VersionTLS13 {
			ext, err := DecodeExtensionList(&certList)
			if err != nil {
				return err
			}
			entry.Extensions = ext
		}
		c.Entries = append(c.Entries, entry)
	}
	if !s.Empty() {
		return newDecodeErr(KindLengthOverflow, "trailing bytes after certificate message")
	}
	return nil
}

func (c *Certificate) Encode(version Version) ([]byte, error) {
	var b cryptobyte.Builder
	if version == VersionTLS13 {
		b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(c.CertificateRequestContext) })
	}
	b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, e := range c.Entries {
			b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(e.Data) })
			if version == VersionTLS13 {
				EncodeExtensionList(b, e.Extensions)
			}
		}
	})
	out, err := b.Bytes()
	if err != nil {
		return nil, newEncodeErr(KindBufferTooSmall, "%v", err)
	}
	return out, nil
}
