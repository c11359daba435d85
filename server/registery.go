package server

import (
	"sync"
)

// SessionRegistry owns the single current device session. It is the only
// writer of that reference; everyone else looks it up through Current.
type SessionRegistry struct {
	mu      sync.RWMutex
	current Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{}
}

// SetCurrent makes session the current one unconditionally and returns the
// session it replaced, if any.
func (r *SessionRegistry) SetCurrent(session Session) Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous := r.current
	r.current = session
	return previous
}

// ClearCurrent forgets session if it is still the current one. A stale
// channel closing after a reconnect leaves the newer session in place.
func (r *SessionRegistry) ClearCurrent(session Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil || session == nil || r.current.Meta().Id != session.Meta().Id {
		return false
	}
	r.current = nil
	return true
}

func (r *SessionRegistry) Current() (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current, r.current != nil
}
