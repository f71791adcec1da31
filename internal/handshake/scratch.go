package handshake

import (
	"github.com/go-hitls/tlscore/internal/codec"
	"github.com/go-hitls/tlscore/internal/collab"
	"github.com/go-hitls/tlscore/internal/keyschedule"
)

// HandshakeScratch is the ephemeral per-handshake data the spec's data
// model calls out explicitly: transcript state, randoms, the HRR memo,
// key-exchange context, and pending secrets. It is allocated fresh at
// handshake start and discarded (its secrets zeroized by the ladder's
// owner) on completion or abort — never reused across a renegotiation,
// which gets its own HandshakeScratch even though it shares the
// ConnectionContext.
type HandshakeScratch struct {
	Transcript *keyschedule.Transcript
	Ladder     *keyschedule.TLS13Ladder // nil until the hash algorithm (and so the ladder's alg) is known

	ClientRandom [32]byte
	ServerRandom [32]byte

	// ClientHelloSessionIDEcho is the legacy_session_id the client
	// sent; <=1.2 echoes it back verbatim in ServerHello when resuming.
	ClientHelloSessionIDEcho []byte

	// FirstClientHello/FirstClientHelloBytes hold ClientHello1 so the
	// transcript can be rewritten per RFC 8446 §4.4.1 if a
	// HelloRetryRequest follows. The client records both (the message
	// itself, not a copy) on its first ClientHello whether or not an HRR
	// follows; the server records only the bytes.
	FirstClientHello     *codec.ClientHello
	FirstClientHelloBytes []byte
	HelloRetryRequestSent bool
	// MiddleboxCCSSeen tracks the single plaintext CCS the middlebox
	// compatibility mode allows after an HRR; a second one is fatal.
	MiddleboxCCSSeen bool

	// KeyExchange holds the local ephemeral private handle and the
	// peer's public key-share value for the negotiated group.
	KeyExchangePrivate collab.KeyExchangePrivate
	PeerKeyShare       []byte
	SharedSecret       []byte

	// PeerCertificate is set once the peer's chain has validated.
	PeerCertificate *collab.PeerIdentity

	// PendingMasterSecret/PendingHandshakeSecret hold secrets that have
	// been derived but whose corresponding keys are not yet installed
	// (TLS <=1.2 gates install on CCS; 1.3 gates on ServerHello
	// emission/receipt), per the data model's key-install invariant.
	PendingMasterSecret    []byte
	PendingHandshakeSecret []byte
}

// NewHandshakeScratch allocates a fresh scratch with an uninitialized
// transcript; transcript_init is deferred until the cipher suite (and
// so the hash algorithm) is chosen, per spec.md §4.2.
func NewHandshakeScratch() *HandshakeScratch {
	return &HandshakeScratch{Transcript: keyschedule.NewTranscript()}
}
