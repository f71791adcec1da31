package handshake

import (
	"bytes"

	"github.com/go-hitls/tlscore/internal/codec"
	"github.com/go-hitls/tlscore/internal/keyschedule"
)

// MatchResumption implements spec.md §4.5's <=1.2 resumption rule: a
// session-id or ticket that decrypts to a valid session may only be
// resumed if its cipher suite is still in the client's offered list,
// its version matches the currently negotiating version, and its
// session_id_ctx matches the server's configured scope. Any mismatch
// falls through to a full handshake rather than aborting.
func MatchResumption(sess *SessionView, offeredCipherSuites []codec.CipherSuite, negotiatingVersion codec.Version, sessionIDContext []byte) bool {
	if sess == nil {
		return false
	}
	if sess.Version != negotiatingVersion {
		return false
	}
	if !bytes.Equal(sess.SessionIDContext, sessionIDContext) {
		return false
	}
	found := false
	for _, cs := range offeredCipherSuites {
		if cs == sess.CipherSuite {
			found = true
			break
		}
	}
	return found
}

// FindSessionByID implements the <=1.2 session-id half of lookup: the
// store comparison must be constant-time (spec.md §4.3).
func FindSessionByID(store SessionBackingStore, id []byte) (*SessionView, bool) {
	if store == nil || len(id) == 0 {
		return nil, false
	}
	sv, ok := store.FindByID(id)
	if !ok {
		return nil, false
	}
	if !keyschedule.ConstantTimeCompare(id, sv.SessionID) {
		return nil, false
	}
	return sv, true
}
