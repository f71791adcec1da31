package codec

// Role distinguishes which side of the connection is decoding/encoding,
// since a few message shapes (ServerKeyExchange's optional signature,
// ClientKeyExchange's three wire shapes) cannot be told apart from the
// handshake type byte alone — the negotiated cipher suite decides them,
// and that decision lives one layer up in internal/handshake.
type Role uint8

const (
	RoleClient Role = iota
	RoleServer
)

// DecodeContext carries the extra, connection-scoped facts the codec
// itself cannot infer from a message's bytes: the negotiated version,
// and (for the two variable-shape messages) which variant applies.
// internal/handshake fills this in from its own negotiated state before
// calling DecodeMessage/Message.Encode.
type DecodeContext struct {
	Version Version
	Role    Role

	// ServerKeyExchangeHasSignature is false only for the anonymous
	// Diffie-Hellman suites the core does not offer by default; present
	// so the type remains correct if such a suite is ever configured.
	ServerKeyExchangeHasSignature bool

	// ClientKeyExchangeKind selects which of the three ClientKeyExchange
	// wire shapes (RSA/ECDHE/TLCP) to parse, decided by the negotiated
	// cipher suite's key exchange method.
	ClientKeyExchangeKind ClientKeyExchangeKind
}

// Message is the tagged-variant envelope for every handshake message
// kind the core exchanges. Exactly one of the pointer fields is
// non-nil, selected by Type. This mirrors how the teacher dispatches
// heterogeneous, JSON-tagged payloads through a single envelope keyed
// by a discriminator field (caddy.ModuleMap / json.RawMessage module
// dispatch) rather than an interface with a large method set — a type
// switch on Type is simpler to exhaust-check than an interface here,
// since every handshake type must be handled somewhere in the state
// machine regardless.
type Message struct {
	Type HandshakeType

	ClientHello         *ClientHello
	ServerHello         *ServerHello // also covers HelloRetryRequest; check IsHelloRetryRequest()
	HelloVerifyRequest  *HelloVerifyRequest
	EncryptedExtensions *EncryptedExtensions
	Certificate         *Certificate
	CertificateRequest  *CertificateRequest
	ServerKeyExchange   *ServerKeyExchangeECDHE
	ClientKeyExchange   *ClientKeyExchange
	CertificateVerify   *CertificateVerify
	Finished            *Finished
	NewSessionTicket    *NewSessionTicket
	NewSessionTicketLegacy *NewSessionTicketLegacy
	CertificateStatus   *CertificateStatus
	KeyUpdate           *KeyUpdate
}

// DecodeMessage parses a single handshake message body (header already
// stripped by DecodeHeader) into its typed variant.
func DecodeMessage(ctx DecodeContext, typ HandshakeType, body []byte) (*Message, error) {
	m := &Message{Type: typ}
	switch typ {
	case TypeClientHello:
		v := &ClientHello{}
		if err := v.Decode(ctx.Version, body); err != nil {
			return nil, err
		}
		m.ClientHello = v
	case TypeServerHello:
		v := &ServerHello{}
		if err := v.Decode(body); err != nil {
			return nil, err
		}
		m.ServerHello = v
	case TypeHelloVerifyRequest:
		v := &HelloVerifyRequest{}
		if err := v.Decode(body); err != nil {
			return nil, err
		}
		m.HelloVerifyRequest = v
	case TypeEncryptedExtensions:
		v := &EncryptedExtensions{}
		if err := v.Decode(body); err != nil {
			return nil, err
		}
		m.EncryptedExtensions = v
	case TypeCertificate:
		v := &Certificate{}
		if err := v.Decode(ctx.Version, body); err != nil {
			return nil, err
		}
		m.Certificate = v
	case TypeCertificateRequest:
		v := &CertificateRequest{}
		if err := v.Decode(ctx.Version, body); err != nil {
			return nil, err
		}
		m.CertificateRequest = v
	case TypeServerKeyExchange:
		v := &ServerKeyExchangeECDHE{}
		if err := v.Decode(ctx.Version, ctx.ServerKeyExchangeHasSignature)(body); err != nil {
			return nil, err
		}
		m.ServerKeyExchange = v
	case TypeClientKeyExchange:
		v := &ClientKeyExchange{}
		if err := v.Decode(ctx.ClientKeyExchangeKind, body); err != nil {
			return nil, err
		}
		m.ClientKeyExchange = v
	case TypeCertificateVerify:
		v := &CertificateVerify{}
		if err := v.Decode(body); err != nil {
			return nil, err
		}
		m.CertificateVerify = v
	case TypeFinished:
		v := &Finished{}
		if err := v.Decode(body); err != nil {
			return nil, err
		}
		m.Finished = v
	case TypeNewSessionTicket:
		if ctx.Version == VersionTLS13 {
			v := &NewSessionTicket{}
			if err := v.Decode(body); err != nil {
				return nil, err
			}
			m.NewSessionTicket = v
		} else {
			v := &NewSessionTicketLegacy{}
			if err := v.Decode(body); err != nil {
				return nil, err
			}
			m.NewSessionTicketLegacy = v
		}
	case TypeCertificateStatus:
		v := &CertificateStatus{}
		if err := v.Decode(body); err != nil {
			return nil, err
		}
		m.CertificateStatus = v
	case TypeKeyUpdate:
		v := &KeyUpdate{}
		if err := v.Decode(body); err != nil {
			return nil, err
		}
		m.KeyUpdate = v
	case TypeHelloRequest, TypeServerHelloDone, TypeEndOfEarlyData:
		// bodyless messages; nothing to decode beyond the header.
	default:
		return nil, newDecodeErr(KindIllegalTag, "unknown handshake type %d", typ)
	}
	return m, nil
}

// Encode packs m's active variant back into a handshake body.
func (m *Message) Encode(ctx DecodeContext) ([]byte, error) {
	switch m.Type {
	case TypeClientHello:
		return m.ClientHello.Encode()
	case TypeServerHello:
		return m.ServerHello.Encode()
	case TypeHelloVerifyRequest:
		return m.HelloVerifyRequest.Encode(), nil
	case TypeEncryptedExtensions:
		return m.EncryptedExtensions.Encode(), nil
	case TypeCertificate:
		return m.Certificate.Encode(ctx.Version)
	case TypeCertificateRequest:
		return m.CertificateRequest.Encode(ctx.Version)
	case TypeServerKeyExchange:
		return m.ServerKeyExchange.Encode(ctx.Version, ctx.ServerKeyExchangeHasSignature)
	case TypeClientKeyExchange:
		return m.ClientKeyExchange.Encode()
	case TypeCertificateVerify:
		return m.CertificateVerify.Encode()
	case TypeFinished:
		return m.Finished.Encode(), nil
	case TypeNewSessionTicket:
		if m.NewSessionTicket != nil {
			return m.NewSessionTicket.Encode(), nil
		}
		return m.NewSessionTicketLegacy.Encode(), nil
	case TypeCertificateStatus:
		return m.CertificateStatus.Encode(), nil
	case TypeKeyUpdate:
		return m.KeyUpdate.Encode(), nil
	case TypeHelloRequest, TypeServerHelloDone, TypeEndOfEarlyData:
		return nil, nil
	default:
		return nil, newEncodeErr(KindInconsistentMessage, "unknown handshake type %d", m.Type)
	}
}
