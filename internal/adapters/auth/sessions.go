package auth

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"reliefportal/internal/domain/identity"
)

// sessionTable is an in-memory session store with a fixed lifetime.
type sessionTable struct {
	mu       sync.RWMutex
	sessions map[string]identity.Session
}

func newSessionTable() *sessionTable {
	return &sessionTable{sessions: make(map[string]identity.Session)}
}

// put stores s under s.ID, replacing any previous value.
func (st *sessionTable) put(s identity.Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
}

// get returns the session if it exists and has not expired at now. Expired
// sessions stay in the table until expire or sweep removes them.
func (st *sessionTable) get(id string, now time.Time) (identity.Session, bool, bool) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	switch {
	case !ok:
		return identity.Session{}, false, false
	case !now.Before(s.ExpiresAt):
		return s, false, true
	default:
		return s, true, false
	}
}

// remove deletes the session and reports whether it existed.
func (st *sessionTable) remove(id string) (identity.Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	return s, ok
}

// sweep drops every session expired at now and returns them.
func (st *sessionTable) sweep(now time.Time) []identity.Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	var expired []identity.Session
	for id, s := range st.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(st.sessions, id)
			expired = append(expired, s)
		}
	}
	return expired
}

func (st *sessionTable) len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
