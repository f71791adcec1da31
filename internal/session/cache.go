package session

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/go-hitls/tlscore/internal/keyschedule"
)

// defaultCapacity bounds the in-memory session cache when a Config
// does not specify one explicitly.
const defaultCapacity = 4096

// Cache is the in-memory, LRU-bounded session-id → Session store
// (spec.md §4.3). The LRU itself (github.com/hashicorp/golang-lru/v2)
// is the same eviction structure caddy pulls in transitively for its
// QUIC certificate cache; here it is the primary resumption cache
// rather than an incidental dependency.
type Cache struct {
	mu  sync.RWMutex
	lru *lru.Cache[string, *Session]
}

// NewCache builds a Cache with the given capacity (defaultCapacity if
// capacity <= 0).
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	l, err := lru.New[string, *Session](capacity)
	if err != nil {
		// Only returns an error for a non-positive size, which cannot
		// happen given the guard above.
		panic("session: lru.New: " + err.Error())
	}
	return &Cache{lru: l}
}

// Find looks up a session by id. The candidate pulled from the LRU is
// re-checked against id with a constant-time comparison before being
// returned, per spec.md §4.3's "find(session_id) — constant-time
// comparison" — the map lookup itself is an O(1) index operation, but
// the actual identity check that decides whether the cache produced a
// hit is done without a data-dependent early return.
func (c *Cache) Find(id []byte) (*Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.lru.Get(string(id))
	if !ok {
		return nil, false
	}
	if !keyschedule.ConstantTimeCompare(s.SessionID, id) {
		return nil, false
	}
	return s.clone(), true
}

// Insert adds (or replaces) s in the cache, keyed by its SessionID. A
// deep copy is stored so a caller's later mutation of s cannot leak
// into the cache (spec.md §4.3 "copies, never borrows"). The LRU
// evicts the least-recently-used entry once capacity is reached.
func (c *Cache) Insert(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(string(s.SessionID), s.clone())
}

// Delete removes a session by id, e.g. on explicit invalidation after
// a fatal alert tied to that session.
func (c *Cache) Delete(id []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(string(id))
}

// Len reports the current entry count, mostly useful for metrics.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}

// PurgeExpired removes every entry whose lifetime has elapsed as of
// now. The LRU library has no TTL sweep of its own, so the core drives
// this explicitly (e.g. from a periodic caddy.Context-style background
// task) rather than paying a per-access expiry check.
func (c *Cache) PurgeExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.lru.Keys() {
		s, ok := c.lru.Peek(key)
		if ok && !s.Valid(now) {
			c.lru.Remove(key)
		}
	}
}
