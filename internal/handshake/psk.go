package handshake

import (
	"crypto"

	"github.com/go-hitls/tlscore/internal/codec"
	"github.com/go-hitls/tlscore/internal/collab"
	"github.com/go-hitls/tlscore/internal/keyschedule"
)

// pskCandidate is one resolved-or-not identity from the client's
// pre_shared_key extension, in offered order.
type pskCandidate struct {
	secret     []byte
	alg        keyschedule.HashAlg
	isExternal bool
	session    *SessionView
}

// ResolvePSKBinder implements spec.md §4.5's binder verification order:
// walk the client's identities list and, for the first one that
// resolves (external PSK callback tried first, then ticket decrypt per
// the order internal/session and internal/handshake.Config compose),
// recompute its binder over the truncated ClientHello and compare in
// constant time. The first resolvable identity wins regardless of
// whether its binder later fails — RFC 8446 §4.2.11.2 forbids trying a
// second one.
func ResolvePSKBinder(cfg *Config, psk *codec.PSKExtension, truncatedHello []byte) (ResumptionState, error) {
	for i, entry := range psk.Identities {
		cand, ok := resolveIdentity(cfg, entry.Identity)
		if !ok {
			continue
		}
		if i >= len(psk.Binders) {
			return ResumptionState{}, protocolErr(collab.AlertDecodeError, "pre_shared_key identity %d has no matching binder", i)
		}
		expected := keyschedule.ComputePSKBinder(cand.alg, cand.secret, cand.isExternal, truncatedHello)
		if !keyschedule.ConstantTimeCompare(expected, psk.Binders[i]) {
			return ResumptionState{}, protocolErr(collab.AlertDecryptError, "pre_shared_key binder mismatch for identity %d", i)
		}
		return ResumptionState{
			Attempted:  true,
			Resumed:    true,
			Session:    cand.session,
			PSKIndex:   i,
			IsExternal: cand.isExternal,
		}, nil
	}
	return ResumptionState{Attempted: len(psk.Identities) > 0, Resumed: false, PSKIndex: -1}, nil
}

func resolveIdentity(cfg *Config, identity []byte) (pskCandidate, bool) {
	if cfg.PSK != nil {
		if r, ok := cfg.PSK.ResolveExternal(identity); ok {
			return pskCandidate{secret: r.Secret, alg: hashAlgFromCrypto(r.Hash), isExternal: true}, true
		}
	}
	if cfg.Sessions != nil {
		if sv, ok, err := cfg.Sessions.DecryptTicket(identity); err == nil && ok {
			return pskCandidate{secret: sv.MasterSecret, alg: cipherSuiteHash(sv.CipherSuite), isExternal: false, session: sv}, true
		}
	}
	return pskCandidate{}, false
}

func hashAlgFromCrypto(h crypto.Hash) keyschedule.HashAlg {
	if h == crypto.SHA384 {
		return keyschedule.HashSHA384
	}
	return keyschedule.HashSHA256
}
