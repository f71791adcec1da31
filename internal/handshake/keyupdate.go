package handshake

import "github.com/go-hitls/tlscore/internal/keyschedule"

// KeyUpdateRequested mirrors codec.KeyUpdate's request_update field
// without importing codec into every caller of Ratchet*.
type KeyUpdateRequested bool

// RatchetTrafficSecret implements RFC 8446 §7.2's application traffic
// secret update: the next secret is HKDF-Expand-Label(secret, "traffic
// upd", "", Hash.length). The sender ratchets immediately after emitting its
// KeyUpdate; the receiver ratchets immediately after processing one,
// and if update_requested was set must also send its own KeyUpdate and
// ratchet its own send-direction secret in turn — the caller (the
// state machine) sequences those two ratchets and the reply, this
// function only ever advances one direction's secret by one step.
func RatchetTrafficSecret(ladder *keyschedule.TLS13Ladder, currentSecret []byte) []byte {
	return ladder.ExpandLabel(currentSecret, "traffic upd", nil, len(currentSecret))
}
