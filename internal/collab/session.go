package collab

// SessionRecord is the opaque byte-level persisted form of a session
// (already encoded by internal/session; this package does not know the
// session schema, only how to move bytes in and out of a backing store).
type SessionRecord struct {
	SessionID []byte
	Data      []byte
}

// SessionBackingStore abstracts where session cache entries live.
// internal/session provides no implementation of it: its Store keeps a
// size-bounded in-memory LRU Cache in front of an optional
// SessionBackingStore, which a host application may back with shared storage
// for multi-process resumption, the same way caddytls.Storage abstracts
// where certificates live instead of assuming the local filesystem.
type SessionBackingStore interface {
	Load(sessionID []byte) (*SessionRecord, bool, error)
	Store(rec *SessionRecord) error
	Delete(sessionID []byte) error
}

// TicketKeySource supplies the symmetric keys used to encrypt/decrypt
// stateless session tickets, and rotates them. Old keys remain
// decrypt-only for a grace period (see internal/session.TicketKeyRing).
type TicketKeySource interface {
	// CurrentKey returns the key currently used to encrypt new
	// tickets, named by a 16-byte key_name for self-description.
	CurrentKey() (name [16]byte, key []byte)

	// Key looks up a (possibly rotated-out) key by name, for
	// decrypting an older ticket. ok is false once the key has aged
	// out of the grace period.
	Key(name [16]byte) (key []byte, ok bool)
}
