package handshake

import (
	"time"

	"github.com/go-hitls/tlscore/internal/codec"
	"github.com/go-hitls/tlscore/internal/collab"
	"github.com/go-hitls/tlscore/internal/session"
)

// SessionStoreAdapter satisfies Config.Sessions (SessionBackingStore)
// on top of the concrete internal/session.Store, translating between
// this package's SessionView (kept interface-local so handshake does
// not import internal/session's concrete Session type into its
// exported surface) and session.Session.
type SessionStoreAdapter struct {
	Store  *session.Store
	Tickets collab.TicketKeySource
}

func (a *SessionStoreAdapter) FindByID(id []byte) (*SessionView, bool) {
	s, ok := a.Store.Find(id)
	if !ok {
		return nil, false
	}
	return viewFromSession(s), true
}

func (a *SessionStoreAdapter) Insert(v *SessionView) {
	_ = a.Store.Insert(sessionFromView(v))
}

func (a *SessionStoreAdapter) DecryptTicket(blob []byte) (*SessionView, bool, error) {
	if a.Tickets == nil {
		return nil, false, nil
	}
	s, _, err := session.DecryptTicket(a.Tickets, blob, time.Now())
	if err != nil {
		return nil, false, nil
	}
	if !s.Valid(time.Now()) {
		return nil, false, nil
	}
	return viewFromSession(s), true, nil
}

func (a *SessionStoreAdapter) EncryptTicket(v *SessionView) ([]byte, error) {
	if a.Tickets == nil {
		return nil, configErr("no ticket key source configured")
	}
	return session.EncryptTicket(a.Tickets, sessionFromView(v), time.Now())
}

func viewFromSession(s *session.Session) *SessionView {
	return &SessionView{
		Version:              codec.Version(s.Version),
		CipherSuite:          codec.CipherSuite(s.CipherSuite),
		MasterSecret:         s.MasterSecret,
		SessionID:            s.SessionID,
		ExtendedMasterSecret: s.ExtendedMasterSecret,
		SessionIDContext:     s.SessionIDContext,
		CreatedAt:            s.CreatedAt,
		LifetimeSeconds:      int64(s.LifetimeSeconds),
	}
}

func sessionFromView(v *SessionView) *session.Session {
	return &session.Session{
		Version:              uint16(v.Version),
		CipherSuite:          uint16(v.CipherSuite),
		MasterSecret:         v.MasterSecret,
		SessionID:            v.SessionID,
		ExtendedMasterSecret: v.ExtendedMasterSecret,
		SessionIDContext:     v.SessionIDContext,
		CreatedAt:            v.CreatedAt,
		LifetimeSeconds:      uint32(v.LifetimeSeconds),
	}
}
