package extension

import (
	"github.com/go-hitls/tlscore/internal/collab"
	"github.com/go-hitls/tlscore/internal/keyschedule"
)

// ResumptionEMSState records whether extended_master_secret was
// negotiated on the original full handshake being resumed, so
// CheckResumptionEMS can apply RFC 7627 §5.3's asymmetric matrix.
type ResumptionEMSState struct {
	Original bool
	Current  bool
}

// CheckResumptionEMS enforces RFC 7627 §5.3: a session originally
// negotiated with EMS may only resume into a handshake that also
// negotiates EMS. When the original session lacks EMS and the current
// handshake offers it, it returns resumeWithEMS=true with no error, and
// the caller falls back to a full handshake with EMS instead of
// resuming. Abstaining from EMS on both sides is only acceptable when
// the policy doesn't mandate it. resumeWithEMS reports
// whether the resumed connection is binding to the EMS master secret
// derivation (the caller still needs it even when abort is false, to
// pick the right PRF input).
func CheckResumptionEMS(p *Policy, st ResumptionEMSState) (resumeWithEMS bool, err error) {
	switch {
	case st.Original && !st.Current:
		return false, errf(collab.AlertHandshakeFailure, "session negotiated extended_master_secret but resumption did not")
	case st.Original && st.Current:
		return true, nil
	case !st.Original && st.Current:
		// Falling back to a full handshake (with EMS) is the caller's
		// responsibility; extension negotiation only reports the fact.
		return true, nil
	default: // !st.Original && !st.Current
		if p.RequireExtendedMasterSecret {
			return false, errf(collab.AlertHandshakeFailure, "extended_master_secret required but absent on both original session and resumption")
		}
		return false, nil
	}
}

// CheckEncryptThenMAC implements spec.md §4.4's Encrypt-then-MAC rule:
// the extension is only meaningful for CBC-mode suites, and once
// negotiated on the initial handshake it cannot be dropped on a
// renegotiation of the same connection.
func CheckEncryptThenMAC(p *Policy, clientOffered bool, suiteIsCBC bool, wasNegotiatedBefore bool) (negotiate bool, err error) {
	if wasNegotiatedBefore && !clientOffered {
		return false, errf(collab.AlertHandshakeFailure, "encrypt_then_mac may not be downgraded on renegotiation")
	}
	if !p.AllowEncryptThenMAC || !clientOffered || !suiteIsCBC {
		return false, nil
	}
	return true, nil
}

// CheckRenegotiationInfo implements spec.md §4.4's renegotiation_info
// rule: on an initial handshake the client's value must be empty; on a
// renegotiation it must equal the verify_data the server saved from
// the prior handshake's Finished messages. A bare SCSV
// (TLS_EMPTY_RENEGOTIATION_INFO_SCSV) in cipher_suites is equivalent to
// an empty renegotiation_info extension.
func CheckRenegotiationInfo(isRenegotiation bool, clientValue []byte, savedClientVerifyData []byte) error {
	if !isRenegotiation {
		if len(clientValue) != 0 {
			return errf(collab.AlertHandshakeFailure, "renegotiation_info must be empty on initial handshake")
		}
		return nil
	}
	if !keyschedule.ConstantTimeCompare(clientValue, savedClientVerifyData) {
		return errf(collab.AlertHandshakeFailure, "renegotiation_info does not match saved verify_data")
	}
	return nil
}
