package handshake

import (
	"github.com/go-hitls/tlscore/internal/collab"
	"github.com/go-hitls/tlscore/internal/extension"
)

// CheckRenegotiationAllowed combines extension.CheckRenegotiationInfo's
// value-matching rule with the local no_sec_renegotiation_cb policy
// (spec.md §6): a peer that supports only insecure renegotiation (no
// renegotiation_info, no SCSV) is rejected unless the configured
// policy explicitly permits it. Per spec.md §9's open question, an
// unset policy means the secure path dominates: insecure peers are
// always rejected.
func CheckRenegotiationAllowed(cfg *Config, isRenegotiation bool, peerSupportsSecureRenegotiation bool, clientValue, savedClientVerifyData []byte) error {
	if !peerSupportsSecureRenegotiation {
		allow := false
		if cfg.NoSecRenegotiationPolicy != nil {
			allow = cfg.NoSecRenegotiationPolicy()
		}
		if !allow {
			return protocolErr(collab.AlertHandshakeFailure, "peer does not support secure renegotiation")
		}
		return nil
	}
	if nerr := extension.CheckRenegotiationInfo(isRenegotiation, clientValue, savedClientVerifyData); nerr != nil {
		return protocolErr(nerr.Alert, "%s", nerr.Error())
	}
	return nil
}

// CanResumeWhileRenegotiating gates spec.md §6's
// is_resumption_on_renego flag: a session may only be resumed as part
// of a renegotiation when the configuration explicitly allows it.
func CanResumeWhileRenegotiating(cfg *Config, isRenegotiation bool) bool {
	if !isRenegotiation {
		return true
	}
	return cfg.ResumptionOnRenego
}
