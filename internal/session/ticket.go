package session

import (
	"crypto/rand"
	"encoding/json"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/go-hitls/tlscore/internal/collab"
)

const keyNameLen = 16

// ticketPayload is the plaintext a ticket key encrypts. It is kept
// separate from Session so the wire shape of a ticket (what travels to
// the client) can evolve without touching the cache's in-memory
// Session representation.
type ticketPayload struct {
	Version              uint16 `json:"v"`
	CipherSuite          uint16 `json:"cs"`
	MasterSecret         []byte `json:"ms"`
	SessionID            []byte `json:"sid"`
	ServerNameEcho       string `json:"sni"`
	ExtendedMasterSecret bool   `json:"ems"`
	CreatedUnix          int64  `json:"ca"`
	LifetimeSeconds      uint32 `json:"life"`
	TicketAgeAdd         uint32 `json:"aa"`
	SessionIDContext     []byte `json:"sctx"`
}

// EncryptTicket implements spec.md §4.3's encrypt_ticket: returns a
// self-describing blob key_name(16) || nonce || ciphertext||tag. The
// AEAD is ChaCha20-Poly1305 (golang.org/x/crypto/chacha20poly1305) —
// chosen over AES-GCM to put another already-required x/crypto
// subpackage to work, since tickets are exactly the
// encrypt-small-blob-with-AEAD shape that primitive targets and the
// core has no hardware-AES-affinity requirement spec.md calls out.
func EncryptTicket(source collab.TicketKeySource, s *Session, now time.Time) ([]byte, error) {
	name, secret := source.CurrentKey()

	payload := ticketPayload{
		Version:              s.Version,
		CipherSuite:          s.CipherSuite,
		MasterSecret:         s.MasterSecret,
		SessionID:            s.SessionID,
		ServerNameEcho:       s.ServerNameEcho,
		ExtendedMasterSecret: s.ExtendedMasterSecret,
		CreatedUnix:          s.CreatedAt.Unix(),
		LifetimeSeconds:      s.LifetimeSeconds,
		TicketAgeAdd:         s.TicketAgeAdd,
		SessionIDContext:     s.SessionIDContext,
	}
	plaintext, err := json.Marshal(&payload)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.New(secret)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	sealed := aead.Seal(nil, nonce, plaintext, name[:])

	blob := make([]byte, 0, keyNameLen+len(nonce)+len(sealed))
	blob = append(blob, name[:]...)
	blob = append(blob, nonce...)
	blob = append(blob, sealed...)
	return blob, nil
}

// DecryptTicket implements spec.md §4.3's decrypt_ticket: parses the
// key_name prefix to select a (possibly retired, decrypt-only) key
// from ring, authenticates and decrypts the remainder, and reports
// whether the caller should mint a fresh ticket even though this one
// decrypted (key_name belongs to a retired key, or the session is past
// its renewal threshold).
func DecryptTicket(source collab.TicketKeySource, blob []byte, now time.Time) (sess *Session, expectRenewedTicket bool, err error) {
	if len(blob) < keyNameLen {
		return nil, false, codecTicketError("ticket shorter than key_name")
	}
	var name [keyNameLen]byte
	copy(name[:], blob[:keyNameLen])

	secret, ok := source.Key(name)
	if !ok {
		return nil, false, codecTicketError("unknown ticket key_name")
	}
	currentName, _ := source.CurrentKey()
	retired := currentName != name

	aead, err := chacha20poly1305.New(secret)
	if err != nil {
		return nil, false, err
	}
	rest := blob[keyNameLen:]
	if len(rest) < aead.NonceSize() {
		return nil, false, codecTicketError("ticket shorter than nonce")
	}
	nonce, sealed := rest[:aead.NonceSize()], rest[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, sealed, name[:])
	if err != nil {
		return nil, false, codecTicketError("ticket authentication failed")
	}

	var payload ticketPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, false, err
	}

	s := &Session{
		Version:              payload.Version,
		CipherSuite:          payload.CipherSuite,
		MasterSecret:         payload.MasterSecret,
		SessionID:            payload.SessionID,
		ServerNameEcho:       payload.ServerNameEcho,
		ExtendedMasterSecret: payload.ExtendedMasterSecret,
		CreatedAt:            time.Unix(payload.CreatedUnix, 0),
		LifetimeSeconds:      payload.LifetimeSeconds,
		TicketAgeAdd:         payload.TicketAgeAdd,
		SessionIDContext:     payload.SessionIDContext,
	}

	renew := retired || nearExpiry(s, now)
	return s, renew, nil
}

// nearExpiry reports whether s has used up more than three quarters of
// its lifetime, the point past which the core proactively reissues a
// ticket on the next successful resumption.
func nearExpiry(s *Session, now time.Time) bool {
	total := time.Duration(s.LifetimeSeconds) * time.Second
	elapsed := now.Sub(s.CreatedAt)
	return elapsed*4 >= total*3
}

type ticketError string

func (e ticketError) Error() string { return "session: " + string(e) }

func codecTicketError(msg string) error { return ticketError(msg) }
