// Package extension implements server-side extension negotiation:
// deciding version, cipher suite, group, signature scheme, ALPN, SNI,
// EMS/EtM/renegotiation policy from a ClientHello plus local Policy.
// It only decides; the response extensions are packed by its caller
// (internal/handshake, through internal/codec). The selection
// rules are table-driven functions over plain data, the same shape the
// teacher gives its Caddyfile-to-JSON adapters (small, independently
// testable transforms feeding a shared context) rather than one
// monolithic negotiate() doing everything inline.
package extension

import (
	"fmt"

	"github.com/go-hitls/tlscore/internal/codec"
	"github.com/go-hitls/tlscore/internal/collab"
)

// NegotiationError pairs a failure with the alert the caller must send.
type NegotiationError struct {
	Alert collab.AlertDescription
	Msg   string
}

func (e *NegotiationError) Error() string { return fmt.Sprintf("extension: %s", e.Msg) }

func errf(alert collab.AlertDescription, format string, args ...any) *NegotiationError {
	return &NegotiationError{Alert: alert, Msg: fmt.Sprintf(format, args...)}
}

// ALPNResult is the user ALPN callback's outcome.
type ALPNResult int

const (
	ALPNOK ALPNResult = iota
	ALPNNoAck
	ALPNError
)

// SNIResult is the user SNI callback's outcome.
type SNIResult int

const (
	SNIOK SNIResult = iota
	SNINoAck
	SNIFatal
)

// Policy is the local, immutable-per-handshake negotiation
// configuration (spec.md §3 Configuration, restricted to what
// extension negotiation itself consumes; the rest — PSK/cert stores —
// lives in internal/handshake and internal/session).
type Policy struct {
	MinVersion, MaxVersion codec.Version

	// ServerPreference selects whose preference list iteration order
	// wins: ServerCipherSuites' order when true, the client's offered
	// order when false (spec.md §4.4 "isSupportServerPreference").
	ServerCipherSuites []codec.CipherSuite
	ServerPreference   bool

	Groups            []collab.NamedGroup
	SignatureSchemes  []collab.SignatureScheme

	RequireExtendedMasterSecret bool
	AllowEncryptThenMAC         bool

	ALPNProtocols []string
	ALPNCallback  func(offered []string) (chosen string, result ALPNResult)
	SNICallback   func(serverName string) SNIResult
}

// CipherSuiteFeasibility reports whether a candidate cipher suite can
// be selected given the current connection's available certificate and
// negotiated group — supplied by internal/handshake, which knows the
// certificate store and key-share state extension negotiation does not.
type CipherSuiteFeasibility func(suite codec.CipherSuite) bool
