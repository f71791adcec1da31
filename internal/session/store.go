package session

import (
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/go-hitls/tlscore/internal/collab"
)

// Store composes the in-memory Cache with an optional external
// collab.SessionBackingStore (e.g. a shared cache across a server
// fleet). Concurrent misses for the same session-id are collapsed with
// golang.org/x/sync/singleflight so a burst of connections resuming
// the same session doesn't stampede the backing store — the same
// coordination shape the teacher's certificate-obtain path uses its
// own hand-rolled wait-channel map for (caddytls's
// obtainCertWaitChans); singleflight is the library-backed version of
// exactly that pattern.
type Store struct {
	cache   *Cache
	backing collab.SessionBackingStore
	group   singleflight.Group
}

// NewStore builds a Store around an in-memory cache of the given
// capacity, optionally backed by an external store (nil for a purely
// in-memory deployment).
func NewStore(capacity int, backing collab.SessionBackingStore) *Store {
	return &Store{cache: NewCache(capacity), backing: backing}
}

// Find looks up a session by id, checking the in-memory cache first
// and falling back to the backing store (if configured) on a miss,
// populating the cache on a backing-store hit.
func (st *Store) Find(id []byte) (*Session, bool) {
	if s, ok := st.cache.Find(id); ok {
		return s, true
	}
	if st.backing == nil {
		return nil, false
	}

	v, err, _ := st.group.Do(string(id), func() (any, error) {
		rec, ok, err := st.backing.Load(id)
		if err != nil || !ok {
			return nil, err
		}
		var payload ticketPayload
		if err := json.Unmarshal(rec.Data, &payload); err != nil {
			return nil, err
		}
		return sessionFromPayload(&payload), nil
	})
	if err != nil || v == nil {
		return nil, false
	}
	s := v.(*Session)
	st.cache.Insert(s)
	return s.clone(), true
}

// Insert stores s in the in-memory cache and, if a backing store is
// configured, persists it there as well.
func (st *Store) Insert(s *Session) error {
	st.cache.Insert(s)
	if st.backing == nil {
		return nil
	}
	data, err := json.Marshal(payloadFromSession(s))
	if err != nil {
		return err
	}
	return st.backing.Store(&collab.SessionRecord{SessionID: s.SessionID, Data: data})
}

// Delete removes a session from the in-memory cache and, if
// configured, the backing store.
func (st *Store) Delete(id []byte) error {
	st.cache.Delete(id)
	if st.backing == nil {
		return nil
	}
	return st.backing.Delete(id)
}

// PurgeExpired sweeps the in-memory cache for lapsed sessions; the
// backing store (if any) is expected to apply its own TTL policy
// independently, since it may be shared infrastructure the core does
// not own.
func (st *Store) PurgeExpired(now time.Time) {
	st.cache.PurgeExpired(now)
}

func payloadFromSession(s *Session) *ticketPayload {
	return &ticketPayload{
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
}

func sessionFromPayload(p *ticketPayload) *Session {
	return &Session{
		Version:              p.Version,
		CipherSuite:          p.CipherSuite,
		MasterSecret:         p.MasterSecret,
		SessionID:            p.SessionID,
		ServerNameEcho:       p.ServerNameEcho,
		ExtendedMasterSecret: p.ExtendedMasterSecret,
		CreatedAt:            time.Unix(p.CreatedUnix, 0),
		LifetimeSeconds:      p.LifetimeSeconds,
		TicketAgeAdd:         p.TicketAgeAdd,
		SessionIDContext:     p.SessionIDContext,
	}
}
