// Package session implements the Session & Ticket Store: an in-memory,
// LRU-bounded cache of resumable sessions keyed by session-id, and a
// symmetric, self-describing ticket codec for stateless resumption.
// Both halves are generalized from how the teacher shapes a small,
// mutex-guarded, reference-holding cache (caddy's certificate cache)
// and a rotating-key encrypted blob format (caddy's session-ticket-key
// adjacent ACME account key handling), rather than copied verbatim
// from either.
package session

import "time"

// Session is the persisted record of a completed handshake, per
// spec.md §3.2. It is immutable once created — callers that need a
// derived copy (e.g. a renewed ticket) build a new Session rather than
// mutating one in place.
type Session struct {
	Version          uint16
	CipherSuite      uint16
	MasterSecret     []byte
	SessionID        []byte
	Ticket           []byte
	ServerNameEcho   string
	ExtendedMasterSecret bool
	CreatedAt        time.Time
	LifetimeSeconds  uint32
	TicketAgeAdd     uint32 // TLS 1.3 only

	// SessionIDContext scopes resumption to a virtual host/application
	// (spec.md §6 "session_id_ctx | scope sessions to a virtual host").
	SessionIDContext []byte
}

// Valid reports whether s has not outlived its lifetime as of now.
func (s *Session) Valid(now time.Time) bool {
	return !now.After(s.CreatedAt.Add(time.Duration(s.LifetimeSeconds) * time.Second))
}

// clone returns a deep copy of s, so Store.Insert/Find never hand out
// a Session another goroutine can mutate through a shared backing
// array (spec.md §4.3 "insert(Session) — ... copies, never borrows").
func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.MasterSecret = append([]byte(nil), s.MasterSecret...)
	cp.SessionID = append([]byte(nil), s.SessionID...)
	cp.Ticket = append([]byte(nil), s.Ticket...)
	cp.SessionIDContext = append([]byte(nil), s.SessionIDContext...)
	return &cp
}
