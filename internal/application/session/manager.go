// Package session keeps the reactive per-client auth state: who is signed in,
// which roles they hold and whether that lookup is still loading. A Manager is
// created per client, subscribes to auth events and role changes on
// construction, and must be closed on teardown.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"reliefportal/internal/domain/account"
	"reliefportal/internal/domain/apperr"
	"reliefportal/internal/domain/change"
	"reliefportal/internal/domain/identity"
)

// ErrRoleNotAllowed is returned when sign-up asks for a role outside the self-service set.
var ErrRoleNotAllowed = errors.New("role is not available for self sign-up")

// reloadTimeout bounds a role reload triggered by a pushed change.
const reloadTimeout = 5 * time.Second

// AuthProvider is the identity provider the manager drives.
type AuthProvider interface {
	SignUp(ctx context.Context, email, password string, profile account.Profile, roles ...account.Role) (identity.Identity, error)
	SignIn(ctx context.Context, email, password string) (identity.Session, error)
	SignOut(ctx context.Context, sessionID string)
	GetSession(id string) (identity.Session, bool)
	GetUser(ctx context.Context, userID string) (identity.Identity, error)
	OnAuthStateChange(fn func(identity.AuthEvent)) func()
}

// RoleStore reads role rows.
type RoleStore interface {
	ListForUser(ctx context.Context, userID string) ([]account.RoleAssignment, error)
}

// ChangeFeed delivers committed row changes.
type ChangeFeed interface {
	Subscribe(table string, fn func(change.Change)) func()
}

// Deps holds dependencies for a Manager.
type Deps struct {
	Auth             AuthProvider
	Roles            RoleStore
	Feed             ChangeFeed
	AllowAdminSignUp bool
}

// State is the snapshot consumers render from.
type State struct {
	User    *identity.Identity
	Role    account.Role
	Roles   []account.Role
	Loading bool
}

// SignedIn reports whether a user is present.
func (s State) SignedIn() bool {
	return s.User != nil
}

// SignUpInput carries the sign-up form.
type SignUpInput struct {
	Email    string
	Password string
	FullName string
	Phone    string
	Location string
	Role     account.Role
}

// Manager owns one client's auth state.
type Manager struct {
	deps Deps

	mu        sync.RWMutex
	state     State
	sessionID string
	selected  account.Role
	closed    bool

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(State)

	unsubscribe []func()
}

// NewManager creates a Manager and subscribes it to auth events and to
// user_roles changes.
// POST: Close must be called to release the subscriptions
func NewManager(deps Deps) *Manager {
	m := &Manager{deps: deps, subs: make(map[int]func(State))}
	if deps.Auth != nil {
		m.unsubscribe = append(m.unsubscribe, deps.Auth.OnAuthStateChange(m.onAuthEvent))
	}
	if deps.Feed != nil {
		m.unsubscribe = append(m.unsubscribe, deps.Feed.Subscribe(change.TableUserRoles, m.onRoleChange))
	}
	return m
}

// Close releases the subscriptions. Later pushes are ignored.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
	m.subMu.Lock()
	m.subs = make(map[int]func(State))
	m.subMu.Unlock()
}

// State returns the current snapshot.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.clone()
}

// SessionID returns the session this manager is attached to, if any.
func (m *Manager) SessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionID
}

// Subscribe registers fn to receive every new State.
// POST: The returned function unregisters fn
func (m *Manager) Subscribe(fn func(State)) func() {
	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
		})
	}
}

// SignUp validates the requested role and creates the identity holding it.
// The account and its role are written together, so a failed sign-up can be
// retried with the same email.
// PRE: none
// POST: Fails with ValidationError for a role outside the allowed set,
// CredentialError from the provider, or StoreError on a failed write
func (m *Manager) SignUp(ctx context.Context, input SignUpInput) (identity.Identity, error) {
	if err := m.checkSignUpRole(input.Role); err != nil {
		return identity.Identity{}, err
	}
	user, err := m.deps.Auth.SignUp(ctx, input.Email, input.Password, account.Profile{
		FullName: input.FullName,
		Phone:    input.Phone,
		Location: input.Location,
	}, input.Role)
	if err != nil {
		return identity.Identity{}, err
	}
	zap.L().Info("auth_event",
		zap.String("event", "signup"),
		zap.String("user_id", user.ID),
		zap.String("role", string(input.Role)),
	)
	return user, nil
}

func (m *Manager) checkSignUpRole(role account.Role) error {
	if !role.Valid() {
		return apperr.Validation(account.ErrInvalidRole)
	}
	if role == account.RoleAdmin && !m.deps.AllowAdminSignUp {
		return apperr.Validation(ErrRoleNotAllowed)
	}
	return nil
}

// SignIn opens a session and loads the user's roles.
// POST: State is loading until the role lookup resolves; on failure the
// previous state is restored
func (m *Manager) SignIn(ctx context.Context, email, password string) (identity.Session, error) {
	previous := m.State()
	m.setState(func(s *State) { s.Loading = true })

	sess, err := m.deps.Auth.SignIn(ctx, email, password)
	if err != nil {
		m.setState(func(s *State) { *s = previous })
		return identity.Session{}, err
	}
	m.mu.Lock()
	m.sessionID = sess.ID
	m.mu.Unlock()

	if err := m.load(ctx, sess.UserID); err != nil {
		return sess, err
	}
	return sess, nil
}

// Restore attaches the manager to an existing session and loads its user.
func (m *Manager) Restore(ctx context.Context, sess identity.Session) error {
	m.mu.Lock()
	m.sessionID = sess.ID
	m.mu.Unlock()
	m.setState(func(s *State) { s.Loading = true })
	return m.load(ctx, sess.UserID)
}

// load fetches user and roles and publishes the new state. A failed lookup
// leaves the user signed in with no role, so every gated page refuses them.
func (m *Manager) load(ctx context.Context, userID string) error {
	user, err := m.deps.Auth.GetUser(ctx, userID)
	if err != nil {
		m.setState(func(s *State) { *s = State{} })
		return err
	}
	roles, roleErr := m.roles(ctx, userID)
	if roleErr != nil {
		zap.L().Warn("auth_event", zap.String("event", "role_lookup_failed"), zap.String("user_id", userID), zap.Error(roleErr))
	}
	m.mu.RLock()
	selected := m.selected
	m.mu.RUnlock()
	m.setState(func(s *State) {
		s.User = &user
		s.Roles = roles
		s.Role = account.PrimaryRole(roles, selected)
		s.Loading = false
	})
	return nil
}

func (m *Manager) roles(ctx context.Context, userID string) ([]account.Role, error) {
	rows, err := m.deps.Roles.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return account.SortByPrivilege(account.RolesOf(rows)), nil
}

// SignOut ends the session. It always clears local state, whatever the provider does.
func (m *Manager) SignOut(ctx context.Context) {
	m.mu.Lock()
	sessionID := m.sessionID
	m.sessionID = ""
	m.selected = account.NoRole
	m.mu.Unlock()

	m.setState(func(s *State) { *s = State{} })
	if sessionID != "" {
		m.deps.Auth.SignOut(ctx, sessionID)
	}
}

// CurrentRole looks up every role row for userID and returns the primary one,
// or NoRole when the user holds none. It does not change State.
func (m *Manager) CurrentRole(ctx context.Context, userID string) (account.Role, error) {
	roles, err := m.roles(ctx, userID)
	if err != nil {
		return account.NoRole, err
	}
	m.mu.RLock()
	selected := m.selected
	m.mu.RUnlock()
	return account.PrimaryRole(roles, selected), nil
}

// SelectRole makes role the primary role for navigation.
// PRE: the signed-in user holds role
func (m *Manager) SelectRole(role account.Role) error {
	st := m.State()
	if !st.SignedIn() {
		return apperr.Credential(errors.New("sign in first"))
	}
	if !account.HasRole(st.Roles, role) {
		return apperr.Validation(account.ErrRoleNotHeld)
	}
	m.mu.Lock()
	m.selected = role
	m.mu.Unlock()
	m.setState(func(s *State) { s.Role = account.PrimaryRole(s.Roles, role) })
	return nil
}

func (m *Manager) onAuthEvent(ev identity.AuthEvent) {
	m.mu.RLock()
	mine := !m.closed && m.sessionID != "" && ev.Session.ID == m.sessionID
	m.mu.RUnlock()
	if !mine {
		return
	}
	switch ev.Type {
	case identity.EventSignedOut:
		m.mu.Lock()
		m.sessionID = ""
		m.selected = account.NoRole
		m.mu.Unlock()
		m.setState(func(s *State) { *s = State{} })
	case identity.EventTokenRefreshed:
		m.reload(ev.Session.UserID)
	}
}

func (m *Manager) onRoleChange(c change.Change) {
	st := m.State()
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed || !st.SignedIn() {
		return
	}
	if c.OwnerID != "" && c.OwnerID != st.User.ID {
		return
	}
	m.reload(st.User.ID)
}

func (m *Manager) reload(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	defer cancel()
	roles, err := m.roles(ctx, userID)
	if err != nil {
		zap.L().Warn("auth_event", zap.String("event", "role_reload_failed"), zap.String("user_id", userID), zap.Error(err))
		return
	}
	m.mu.RLock()
	selected := m.selected
	m.mu.RUnlock()
	m.setState(func(s *State) {
		if s.User == nil || s.User.ID != userID {
			return
		}
		s.Roles = roles
		s.Role = account.PrimaryRole(roles, selected)
	})
}

// setState applies fn under the lock and pushes the result to subscribers.
func (m *Manager) setState(fn func(*State)) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	fn(&m.state)
	snapshot := m.state.clone()
	m.mu.Unlock()

	m.subMu.Lock()
	fns := make([]func(State), 0, len(m.subs))
	for _, f := range m.subs {
		fns = append(fns, f)
	}
	m.subMu.Unlock()
	for _, f := range fns {
		f(snapshot)
	}
}

func (s State) clone() State {
	out := s
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	out.Roles = append([]account.Role(nil), s.Roles...)
	return out
}
