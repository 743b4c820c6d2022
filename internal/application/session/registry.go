package session

import (
	"context"
	"sync"

	"reliefportal/internal/domain/identity"
)

// Registry owns one Manager per live session.
type Registry struct {
	deps Deps

	mu       sync.Mutex
	managers map[string]*Manager

	unsubscribe func()
}

// NewRegistry creates a Registry that drops managers when their session signs out.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{deps: deps, managers: make(map[string]*Manager)}
	if deps.Auth != nil {
		r.unsubscribe = deps.Auth.OnAuthStateChange(func(ev identity.AuthEvent) {
			if ev.Type == identity.EventSignedOut {
				r.Remove(ev.Session.ID)
			}
		})
	}
	return r
}

// New returns a fresh Manager that is not yet attached to a session.
// POST: The caller must Attach it after SignIn or Close it
func (r *Registry) New() *Manager {
	return NewManager(r.deps)
}

// Attach registers m under its session id, replacing any previous manager.
func (r *Registry) Attach(m *Manager) {
	id := m.SessionID()
	if id == "" {
		return
	}
	r.mu.Lock()
	prev := r.managers[id]
	r.managers[id] = m
	r.mu.Unlock()
	if prev != nil && prev != m {
		prev.Close()
	}
}

// Get returns the manager for sessionID, restoring one from the provider's
// session table when this process has not seen it yet.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Manager, bool) {
	sess, live := r.deps.Auth.GetSession(sessionID)
	r.mu.Lock()
	m, ok := r.managers[sessionID]
	r.mu.Unlock()
	if !live {
		if ok {
			r.Remove(sessionID)
		}
		return nil, false
	}
	if ok {
		return m, true
	}

	m = NewManager(r.deps)
	if err := m.Restore(ctx, sess); err != nil {
		m.Close()
		return nil, false
	}
	r.Attach(m)
	return m, true
}

// Remove closes and forgets the manager for sessionID.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	m, ok := r.managers[sessionID]
	delete(r.managers, sessionID)
	r.mu.Unlock()
	if ok {
		m.Close()
	}
}

// Len returns the number of attached managers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.managers)
}

// Close closes every manager and stops listening for sign-outs.
func (r *Registry) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
	r.mu.Lock()
	managers := r.managers
	r.managers = make(map[string]*Manager)
	r.mu.Unlock()
	for _, m := range managers {
		m.Close()
	}
}
