package extension

import (
	"github.com/go-hitls/tlscore/internal/codec"
	"github.com/go-hitls/tlscore/internal/collab"
)

// SelectGroup intersects the server's configured group preference with
// the client's offered list (supported_groups, or the key_share list
// for the actual ephemeral selection), in server-preference order, and
// checks the winner is legal for the negotiated version via legalFor.
func SelectGroup(p *Policy, clientGroups []collab.NamedGroup, legalFor func(collab.NamedGroup) bool) (collab.NamedGroup, error) {
	offered := make(map[collab.NamedGroup]bool, len(clientGroups))
	for _, g := range clientGroups {
		offered[g] = true
	}
	for _, g := range p.Groups {
		if offered[g] && legalFor(g) {
			return g, nil
		}
	}
	return 0, errf(collab.AlertHandshakeFailure, "no mutually supported group")
}

// SelectSignatureScheme picks the first scheme in server preference
// order that the client advertised and that matches keyKind (the
// selected certificate's key algorithm family). For TLS 1.3, the
// caller must treat an empty clientSchemes as a hard failure
// (missing_extension) before calling this, per spec.md §4.4 ("TLS 1.3
// requires the client to advertise signature_algorithms").
func SelectSignatureScheme(p *Policy, clientSchemes []collab.SignatureScheme, keyKind collab.KeyKind) (collab.SignatureScheme, error) {
	offered := make(map[collab.SignatureScheme]bool, len(clientSchemes))
	for _, s := range clientSchemes {
		offered[s] = true
	}
	for _, s := range p.SignatureSchemes {
		if offered[s] && s.KeyKind() == keyKind {
			return s, nil
		}
	}
	return 0, errf(collab.AlertHandshakeFailure, "no signature scheme compatible with certificate key type")
}

// RequireSignatureAlgorithms enforces spec.md §4.4's TLS 1.3 rule that
// signature_algorithms must be present; <=1.2 handshakes that omit it
// fall back to an implicit RSA-PKCS1-SHA1-equivalent default the core
// does not offer, so absence is rejected there too rather than silently
// assumed.
func RequireSignatureAlgorithms(version codec.Version, clientSchemes []collab.SignatureScheme) error {
	if len(clientSchemes) == 0 {
		return errf(collab.AlertMissingExtension, "signature_algorithms required but absent")
	}
	return nil
}
