package extension

import (
	"github.com/go-hitls/tlscore/internal/codec"
	"github.com/go-hitls/tlscore/internal/collab"
)

// SelectCipherSuite implements spec.md §4.4's condensed cipher-suite
// rule: iterate whichever list should take precedence (server's when
// p.ServerPreference, otherwise the client's, in the client's offered
// order), and return the first suite the feasibility callback accepts.
// feasible is supplied by internal/handshake, which alone knows
// whether a certificate of the right key type and a usable group are
// actually available for a given suite.
func SelectCipherSuite(p *Policy, clientOffered []codec.CipherSuite, feasible CipherSuiteFeasibility) (codec.CipherSuite, error) {
	offeredSet := make(map[codec.CipherSuite]bool, len(clientOffered))
	for _, cs := range clientOffered {
		offeredSet[cs] = true
	}

	var order []codec.CipherSuite
	if p.ServerPreference {
		order = p.ServerCipherSuites
	} else {
		order = clientOffered
	}

	for _, cs := range order {
		if p.ServerPreference && !offeredSet[cs] {
			continue
		}
		if !p.ServerPreference && !serverAllows(p, cs) {
			continue
		}
		if feasible(cs) {
			return cs, nil
		}
	}
	return 0, errf(collab.AlertHandshakeFailure, "no mutually acceptable cipher suite")
}

func serverAllows(p *Policy, cs codec.CipherSuite) bool {
	for _, s := range p.ServerCipherSuites {
		if s == cs {
			return true
		}
	}
	return false
}
