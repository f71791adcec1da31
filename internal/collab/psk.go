package collab

import "crypto"

// ResolvedPSK is what a PSK source returns once an identity is
// resolved: the raw PSK secret plus the hash algorithm bound to it at
// establishment time (RFC 8446 §4.2.11 — a PSK's hash does not change
// across uses, unlike a cipher suite's).
type ResolvedPSK struct {
	Secret     []byte
	Hash       crypto.Hash
	IsExternal bool
}

// ClientPSKOffer is one entry the client places in pre_shared_key,
// carrying everything the key schedule needs to compute its binder.
type ClientPSKOffer struct {
	Identity            []byte
	Secret              []byte
	Hash                crypto.Hash
	ObfuscatedTicketAge uint32
	IsExternal          bool
}

// PSKProvider resolves PSK identities a peer offers, and supplies the
// identities a client should offer, the same way the teacher's module
// holds a PSK/TLS-client-credential-providing interface instead of the
// source's psk_server_cb/psk_client_cb function-pointer pair.
type PSKProvider interface {
	// ResolveExternal looks up an out-of-band (non-ticket) PSK by
	// identity. The ticket case is handled separately by
	// internal/session; the handshake core tries ResolveExternal first
	// and a ticket decrypt second.
	ResolveExternal(identity []byte) (*ResolvedPSK, bool)

	// ClientIdentities returns the PSK identities the client should
	// offer, in order; index 0 is tried first by the server.
	ClientIdentities() []ClientPSKOffer
}
