package handshake

import "github.com/go-hitls/tlscore/internal/collab"

// NotePostHandshakeAuthExtension transitions PHA_NONE -> PHA_EXTENSION
// when a TLS 1.3 client advertises post_handshake_auth; called during
// ClientHello processing, before the connection reaches ESTABLISHED.
func NotePostHandshakeAuthExtension(n *NegotiatedState, clientAdvertised bool) {
	if clientAdvertised && n.PHA == PHANone {
		n.PHA = PHAExtension
	}
}

// RequestPostHandshakeAuth transitions PHA_EXTENSION -> PHA_REQUESTED,
// the server's app_signal(request_pha) event. It is an error to request
// PHA before the client advertised support, or while a request is
// already outstanding.
func RequestPostHandshakeAuth(n *NegotiatedState) error {
	switch n.PHA {
	case PHAExtension:
		n.PHA = PHARequested
		return nil
	case PHANone:
		return configErr("post-handshake auth requested but client did not advertise post_handshake_auth")
	case PHAPending, PHARequested:
		return configErr("post-handshake auth already outstanding")
	default:
		return internalErr(nil, "unknown PHA state %d", n.PHA)
	}
}

// NotePostHandshakeCertificateRequestSent transitions PHA_REQUESTED ->
// PHA_PENDING once the server has actually emitted the
// CertificateRequest (a separate event from the decision to request
// it, since emission can be deferred behind other outbound traffic).
func NotePostHandshakeCertificateRequestSent(n *NegotiatedState) error {
	if n.PHA != PHARequested {
		return internalErr(nil, "certificate_request sent without a pending PHA request")
	}
	n.PHA = PHAPending
	return nil
}

// CompletePostHandshakeAuth transitions PHA_PENDING back to
// PHA_EXTENSION once the client's post-handshake Certificate/
// CertificateVerify/Finished have all verified, allowing a further PHA
// round later in the connection's lifetime.
func CompletePostHandshakeAuth(n *NegotiatedState) error {
	if n.PHA != PHAPending {
		return protocolErr(collab.AlertUnexpectedMessage, "post-handshake client Certificate received without a pending request")
	}
	n.PHA = PHAExtension
	return nil
}
