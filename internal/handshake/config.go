package handshake

import (
	"github.com/go-hitls/tlscore/internal/codec"
	"github.com/go-hitls/tlscore/internal/collab"
	"github.com/go-hitls/tlscore/internal/extension"
	"github.com/go-hitls/tlscore/internal/keyschedule"
)

// Config is the immutable-per-handshake Configuration the data model
// describes: referenced, never copied, shared read-only across however
// many connections a host application runs concurrently — the same
// contract caddy's own *Config carries into every request.
type Config struct {
	Policy *extension.Policy

	CipherSuites       []codec.CipherSuite
	TLS13CipherSuites  []codec.CipherSuite

	Certificates collab.CertificateManager
	PSK          collab.PSKProvider
	TicketKeys   collab.TicketKeySource
	Sessions     SessionBackingStore

	// KeyExchangers holds one collab.KeyExchanger per group the local
	// side can actually perform, keyed by NamedGroup; extension.Policy
	// .Groups is the ordered *preference* list, this is the set that's
	// actually wired and usable.
	KeyExchangers map[collab.NamedGroup]collab.KeyExchanger

	SupportClientVerify      bool
	SupportPostHandshakeAuth bool
	SupportSessionTicket     bool

	// ResumptionOnRenego allows resuming a session while a
	// renegotiation is in progress (spec.md §6 is_resumption_on_renego).
	ResumptionOnRenego bool

	// NoSecRenegotiationPolicy decides what happens when a peer
	// supports only insecure renegotiation (no renegotiation_info, no
	// SCSV). Returning true proceeds anyway; false aborts with
	// handshake_failure. Per spec.md §9's open question, the secure
	// path dominates: a nil policy is treated as always-false (abort).
	NoSecRenegotiationPolicy func() bool

	// SessionIDContext scopes sessions to a virtual host (spec.md §6
	// session_id_ctx), folded into session-id-ctx matching on resume.
	SessionIDContext []byte

	// SessionLifetimeSeconds is how long a newly established session
	// may later be resumed; zero disables caching completed sessions
	// for <=1.2 session-id resumption (the server still answers
	// whatever is already in Sessions, it just won't add to it).
	SessionLifetimeSeconds int64

	// CookieSecret keys the stateless DTLS HelloVerifyRequest cookie
	// (RFC 6347 §4.2.1). Required on any Config a DTLS ServerHandshake
	// is built from; rotate it periodically so cookies issued before a
	// rotation stop verifying.
	CookieSecret []byte

	DRBG collab.DRBG
}

// SessionBackingStore is the narrow slice of internal/session.Store
// the handshake core calls: find-by-id, insert, and ticket
// encrypt/decrypt. Declared here (rather than imported from
// internal/session) to keep the dependency direction the same way
// collab keeps it — handshake depends on a small interface, not on
// internal/session's concrete types.
type SessionBackingStore interface {
	FindByID(id []byte) (*SessionView, bool)
	Insert(s *SessionView)
	DecryptTicket(blob []byte) (*SessionView, bool, error)
	EncryptTicket(s *SessionView) ([]byte, error)
}

// cipherSuiteHash, cipherSuiteIsECDHE and cipherSuiteAEAD are small
// per-suite lookups the state machine needs repeatedly; kept here
// beside Config since they read from no per-connection state.

func cipherSuiteHash(cs codec.CipherSuite) keyschedule.HashAlg {
	switch cs {
	case 0x1302, 0xc030, 0xc02c, 0xc028, 0x009d, 0x009f: // *_SHA384 suites
		return keyschedule.HashSHA384
	default:
		return keyschedule.HashSHA256
	}
}

// cipherSuiteIsECDHE reports whether cs is one of the ECDHE_* <=1.2
// suites this core negotiates, as opposed to a static RSA key exchange
// suite; the client needs this to know whether to expect a
// ServerKeyExchange message before ServerHelloDone.
func cipherSuiteIsECDHE(cs codec.CipherSuite) bool {
	switch cs {
	case 0xc02f, 0xc02b, 0xc030, 0xc02c:
		return true
	default:
		return false
	}
}

// cipherSuiteAEAD names the AEAD a negotiated suite expands its
// traffic secret into, for collab.TrafficSecret.AEAD; the record layer
// owns the actual cipher, this is just the label it dispatches on.
func cipherSuiteAEAD(cs codec.CipherSuite) string {
	switch cs {
	case 0x1301, 0xc02f, 0xc02b, 0x009c, 0x009e:
		return "aes-128-gcm"
	case 0x1302, 0xc030, 0xc02c, 0x009d, 0x009f:
		return "aes-256-gcm"
	case 0x1303, 0xcca8, 0xcca9:
		return "chacha20-poly1305"
	default:
		return "aes-128-gcm"
	}
}
