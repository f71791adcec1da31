package codec

import (
	"golang.org/x/crypto/cryptobyte"
)

// CertificateRequest is the decoded CertificateRequest body, covering
// both the TLS 1.3 shape (context + extensions) and <=1.2 (cert types +
// supported_signature_algorithms + CA list), since the field layouts
// are disjoint enough that one struct can hold either's parsed result.
type CertificateRequest struct {
	// TLS 1.3
	CertificateRequestContext []byte
	Extensions                *ExtensionList

	// <=1.2
	CertificateTypes        []byte
	SupportedSignatureAlgos []SignatureSchemeWire
	CertificateAuthorities  [][]byte
}

type SignatureSchemeWire uint16

func (cr *CertificateRequest) Decode(version Version, buf []byte) error {
	s := cryptobyte.String(buf)
	if version == VersionTLS13 {
		var ctx cryptobyte.String
		if !s.ReadUint8LengthPrefixed(&ctx) {
			return newDecodeErr(KindTruncated, "certificate_request.context")
		}
		cr.CertificateRequestContext = append([]byte(nil), ctx...)
		ext, err := DecodeExtensionList(&s)
		if err != nil {
			return err
		}
		cr.Extensions = ext
		return nil
	}

	var certTypes cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&certTypes) {
		return newDecodeErr(KindTruncated, "certificate_request.certificate_types")
	}
	cr.CertificateTypes = append([]byte(nil), certTypes...)

	if version == VersionTLS12 || version == VersionDTLS12 || version.IsTLCP() {
		var sigAlgos cryptobyte.String
		if !s.ReadUint16LengthPrefixed(&sigAlgos) {
			return newDecodeErr(KindTruncated, "certificate_request.supported_signature_algorithms")
		}
		for !sigAlgos.Empty() {
			var v uint16
			if !sigAlgos.ReadUint16(&v) {
				return newDecodeErr(KindTruncated, "certificate_request.supported_signature_algorithms entry")
			}
			cr.SupportedSignatureAlgos = append(cr.SupportedSignatureAlgos, SignatureSchemeWire(v))
		}
	}

	var caList cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&caList) {
		return newDecodeErr(KindTruncated, "certificate_request.certificate_authorities")
	}
	for !caList.Empty() {
		var name cryptobyte.String
		if !caList.ReadUint16LengthPrefixed(&name) {
			return newDecodeErr(KindTruncated, "certificate_request.certificate_authorities entry")
		}
		cr.CertificateAuthorities = append(cr.CertificateAuthorities, append([]byte(nil), name...))
	}
	if !s.Empty() {
		return newDecodeErr(KindLengthOverflow, "trailing bytes after certificate_request")
	}
	return nil
}

func (cr *CertificateRequest) Encode(version Version) ([]byte, error) {
	var b cryptobyte.Builder
	if version == VersionTLS13 {
		b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(cr.CertificateRequestContext) })
		EncodeExtensionList(&b, cr.Extensions)
		out, err := b.Bytes()
		if err != nil {
			return nil, newEncodeErr(KindBufferTooSmall, "%v", err)
		}
		return out, nil
	}

	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(cr.CertificateTypes) })
	if version == VersionTLS12 || version == VersionDTLS12 || version.IsTLCP() {
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			for _, s := range cr.SupportedSignatureAlgos {
				b.AddUint16(uint16(s))
			}
		})
	}
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, ca := range cr.CertificateAuthorities {
			b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(ca) })
		}
	})
	out, err := b.Bytes()
	if err != nil {
		return nil, newEncodeErr(KindBufferTooSmall, "%v", err)
	}
	return out, nil
}

// CertificateVerify carries the signature over the handshake
// transcript (1.3) or handshake messages (<=1.2 client auth).
type CertificateVerify struct {
	Algorithm SignatureSchemeWire
	Signature []byte
}

func (cv *CertificateVerify) Decode(buf []byte) error {
	s := cryptobyte.String(buf)
	var algo uint16
	if !s.ReadUint16(&algo) {
		return newDecodeErr(KindTruncated, "certificate_verify.algorithm")
	}
	cv.Algorithm = SignatureSchemeWire(algo)
	var sig cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&sig) {
		return newDecodeErr(KindTruncated, "certificate_verify.signature")
	}
	cv.Signature = append([]byte(nil), sig...)
	if !s.Empty() {
		return newDecodeErr(KindLengthOverflow, "trailing bytes after certificate_verify")
	}
	return nil
}

func (cv *CertificateVerify) Encode() ([]byte, error) {
	var b cryptobyte.Builder
	b.AddUint16(uint16(cv.Algorithm))
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(cv.Signature) })
	out, err := b.Bytes()
	if err != nil {
		return nil, newEncodeErr(KindBufferTooSmall, "%v", err)
	}
	return out, nil
}

// Finished carries verify_data: 12 bytes for <=1.2 (PRF-based), or
// Hash.Size() bytes for TLS 1.3 (HMAC-based over the finished_key).
type Finished struct {
	VerifyData []byte
}

func (f *Finished) Decode(buf []byte) error {
	if len(buf) == 0 {
		return newDecodeErr(KindEmptyRequiredField, "finished.verify_data empty")
	}
	f.VerifyData = append([]byte(nil), buf...)
	return nil
}

func (f *Finished) Encode() []byte {
	return append([]byte(nil), f.VerifyData...)
}

// CertificateStatus carries an OCSP response (RFC 6066 §8).
type CertificateStatus struct {
	StatusType uint8 // 1 = ocsp
	Response   []byte
}

func (cs *CertificateStatus) Decode(buf []byte) error {
	s := cryptobyte.String(buf)
	var typ uint8
	if !s.ReadUint8(&typ) {
		return newDecodeErr(KindTruncated, "certificate_status.status_type")
	}
	cs.StatusType = typ
	var resp cryptobyte.String
	if !s.ReadUint24LengthPrefixed(&resp) {
		return newDecodeErr(KindTruncated, "certificate_status.response")
	}
	cs.Response = append([]byte(nil), resp...)
	return nil
}

func (cs *CertificateStatus) Encode() []byte {
	var b cryptobyte.Builder
	b.AddUint8(cs.StatusType)
	b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(cs.Response) })
	return b.BytesOrPanic()
}

// EncryptedExtensions is the TLS 1.3 encrypted extension block sent
// right after ServerHello.
type EncryptedExtensions struct {
	Extensions *ExtensionList
}

func (ee *EncryptedExtensions) Decode(buf []byte) error {
	s := cryptobyte.String(buf)
	ext, err := DecodeExtensionList(&s)
	if err != nil {
		return err
	}
	ee.Extensions = ext
	if !s.Empty() {
		return newDecodeErr(KindLengthOverflow, "trailing bytes after encrypted_extensions")
	}
	return nil
}

func (ee *EncryptedExtensions) Encode() []byte {
	var b cryptobyte.Builder
	EncodeExtensionList(&b, ee.Extensions)
	return b.BytesOrPanic()
}

// KeyUpdate is the TLS 1.3 post-handshake rekey trigger.
type KeyUpdate struct {
	UpdateRequested bool
}

func (ku *KeyUpdate) Decode(buf []byte) error {
	if len(buf) != 1 {
		return newDecodeErr(KindLengthOverflow, "key_update must be exactly 1 byte")
	}
	switch buf[0] {
	case 0:
		ku.UpdateRequested = false
	case 1:
		ku.UpdateRequested = true
	default:
		return newDecodeErr(KindIllegalTag, "key_update.request_update has illegal value %d", buf[0])
	}
	return nil
}

func (ku *KeyUpdate) Encode() []byte {
	if ku.UpdateRequested {
		return []byte{1}
	}
	return []byte{0}
}

// NewSessionTicket is the TLS 1.3 post-handshake ticket issuance
// message (distinct wire shape from the <=1.2 NewSessionTicket, which
// is handled by NewSessionTicketLegacy).
type NewSessionTicket struct {
	LifetimeSeconds uint32
	AgeAdd          uint32
	Nonce           []byte
	Ticket          []byte
	Extensions      *ExtensionList
}

func (t *NewSessionTicket) Decode(buf []byte) error {
	s := cryptobyte.String(buf)
	var lifetime, ageAdd uint32
	if !s.ReadUint32(&lifetime) || !s.ReadUint32(&ageAdd) {
		return newDecodeErr(KindTruncated, "new_session_ticket lifetime/age_add")
	}
	t.LifetimeSeconds, t.AgeAdd = lifetime, ageAdd

	var nonce, ticket cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&nonce) {
		return newDecodeErr(KindTruncated, "new_session_ticket.ticket_nonce")
	}
	t.Nonce = append([]byte(nil), nonce...)
	if !s.ReadUint16LengthPrefixed(&ticket) {
		return newDecodeErr(KindTruncated, "new_session_ticket.ticket")
	}
	if len(ticket) == 0 {
		return newDecodeErr(KindEmptyRequiredField, "new_session_ticket.ticket empty")
	}
	t.Ticket = append([]byte(nil), ticket...)

	ext, err := DecodeExtensionList(&s)
	if err != nil {
		return err
	}
	t.Extensions = ext
	if !s.Empty() {
		return newDecodeErr(KindLengthOverflow, "trailing bytes after new_session_ticket")
	}
	return nil
}

func (t *NewSessionTicket) Encode() []byte {
	var b cryptobyte.Builder
	b.AddUint32(t.LifetimeSeconds)
	b.AddUint32(t.AgeAdd)
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(t.Nonce) })
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(t.Ticket) })
	EncodeExtensionList(&b, t.Extensions)
	return b.BytesOrPanic()
}

// NewSessionTicketLegacy is the <=1.2 NewSessionTicket message (RFC
// 5077): a lifetime hint and an opaque ticket, no extensions.
type NewSessionTicketLegacy struct {
	LifetimeHintSeconds uint32
	Ticket              []byte
}

func (t *NewSessionTicketLegacy) Decode(buf []byte) error {
	s := cryptobyte.String(buf)
	var hint uint32
	if !s.ReadUint32(&hint) {
		return newDecodeErr(KindTruncated, "new_session_ticket.lifetime_hint")
	}
	t.LifetimeHintSeconds = hint
	var ticket cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&ticket) {
		return newDecodeErr(KindTruncated, "new_session_ticket.ticket")
	}
	t.Ticket = append([]byte(nil), ticket...)
	if !s.Empty() {
		return newDecodeErr(KindLengthOverflow, "trailing bytes after legacy new_session_ticket")
	}
	return nil
}

func (t *NewSessionTicketLegacy) Encode() []byte {
	var b cryptobyte.Builder
	b.AddUint32(t.LifetimeHintSeconds)
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(t.Ticket) })
	return b.BytesOrPanic()
}

// HelloVerifyRequest is the DTLS cookie-exchange message (RFC 6347 §4.2.1).
type HelloVerifyRequest struct {
	ServerVersion Version
	Cookie        []byte
}

func (h *HelloVerifyRequest) Decode(buf []byte) error {
	s := cryptobyte.String(buf)
	var ver uint16
	if !s.ReadUint16(&ver) {
		return newDecodeErr(KindTruncated, "hello_verify_request.server_version")
	}
	h.ServerVersion = Version(ver)
	var cookie cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&cookie) {
		return newDecodeErr(KindTruncated, "hello_verify_request.cookie")
	}
	if len(cookie) > 32 {
		return newDecodeErr(KindLengthOverflow, "hello_verify_request.cookie too long")
	}
	h.Cookie = append([]byte(nil), cookie...)
	return nil
}

func (h *HelloVerifyRequest) Encode() []byte {
	var b cryptobyte.Builder
	b.AddUint16(uint16(h.ServerVersion))
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(h.Cookie) })
	return b.BytesOrPanic()
}
