// Package handshake implements the handshake state machine: the core
// that drives a connection's ClientHello-through-Finished exchange (and
// post-handshake KeyUpdate/PHA) by calling into internal/codec,
// internal/keyschedule, internal/extension, internal/session, and the
// external collaborators in internal/collab. It owns no I/O of its own;
// every byte crosses collab.RecordLayer.
package handshake

import (
	"time"

	"github.com/go-hitls/tlscore/internal/codec"
	"github.com/go-hitls/tlscore/internal/collab"
)

// Role mirrors codec.Role; kept distinct so the handshake package's
// exported surface doesn't force callers to import codec just to name
// a role.
type Role = codec.Role

const (
	RoleClient = codec.RoleClient
	RoleServer = codec.RoleServer
)

// PHAState tracks post-handshake client authentication (TLS 1.3 only),
// per spec's PHA_NONE/PHA_EXTENSION/PHA_PENDING/PHA_REQUESTED states.
type PHAState int

const (
	PHANone PHAState = iota
	PHAExtension
	PHAPending
	PHARequested
)

// ResumptionState records what, if anything, this connection resumed
// from, so the cipher-suite/version/session-id-ctx matching rule and
// the RFC 7627 EMS matrix can be applied.
type ResumptionState struct {
	Attempted  bool
	Resumed    bool
	Session    *SessionView
	PSKIndex   int // index into the client's pre_shared_key.identities that matched, -1 if none
	IsExternal bool
}

// SessionView is the subset of internal/session.Session the handshake
// core needs; kept as its own type so this package does not import
// internal/session only for a struct shape (internal/session instead
// depends downward on nothing from handshake).
type SessionView struct {
	Version                    codec.Version
	CipherSuite                codec.CipherSuite
	MasterSecret               []byte
	SessionID                  []byte
	ExtendedMasterSecret       bool
	SessionIDContext           []byte
	CreatedAt                  time.Time
	LifetimeSeconds            int64
}

// NegotiatedState is the durable, post-selection half of the
// connection context: everything that stops changing once negotiation
// completes.
type NegotiatedState struct {
	Version          codec.Version
	CipherSuite      codec.CipherSuite
	Group            collab.NamedGroup
	SignatureScheme  collab.SignatureScheme
	ALPNProtocol     string
	ServerName       string
	SNIOK            bool
	ExtendedMasterSecret bool
	EncryptThenMAC   bool
	Resumption       ResumptionState
	PHA              PHAState
	// DowngradeSentinelExpected is set on the client when it offered
	// 1.3 but negotiated <=1.2, so it knows to check the sentinel.
	DowngradeSentinelExpected bool
}

// ConnectionContext is the per-connection, single-threaded handshake
// state: role, negotiated state, and the collaborators it drives.
// Exactly one handshake advances at a time per ConnectionContext; it
// carries no synchronization of its own; a caller driving it from two
// goroutines concurrently is a programming error, the same contract
// caddy's own per-request context assumes.
type ConnectionContext struct {
	Role   Role
	Config *Config

	Negotiated NegotiatedState
	Scratch    *HandshakeScratch

	// IsRenegotiation is true once at least one full handshake has
	// completed on this connection and a new ClientHello has been
	// sent/received on top of it.
	IsRenegotiation bool
	// SavedClientVerifyData/SavedServerVerifyData are the prior
	// handshake's Finished payloads, required to validate
	// renegotiation_info on the next handshake.
	SavedClientVerifyData []byte
	SavedServerVerifyData []byte
}

// Completed reports whether negotiated.version is set, which per the
// data model gates entry into renegotiation.
func (c *ConnectionContext) Completed() bool {
	return c.Negotiated.Version != 0
}
