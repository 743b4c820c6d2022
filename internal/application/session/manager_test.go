package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reliefportal/internal/domain/account"
	"reliefportal/internal/domain/apperr"
	"reliefportal/internal/domain/change"
	"reliefportal/internal/domain/identity"
)

var fixedNow = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

// --- Mock AuthProvider ---

type mockAuth struct {
	mu        sync.Mutex
	users     map[string]identity.Identity // by email
	passwords map[string]string
	sessions  map[string]identity.Session
	listeners map[int]func(identity.AuthEvent)
	nextID    int
	signUpErr error
	roles     *mockRoles
}

func newMockAuth() *mockAuth {
	return &mockAuth{
		users:     make(map[string]identity.Identity),
		passwords: make(map[string]string),
		sessions:  make(map[string]identity.Session),
		listeners: make(map[int]func(identity.AuthEvent)),
	}
}

// SignUp writes the identity and its roles together, or nothing when
// signUpErr is set.
func (m *mockAuth) SignUp(_ context.Context, email, password string, profile account.Profile, roles ...account.Role) (identity.Identity, error) {
	if m.signUpErr != nil {
		return identity.Identity{}, m.signUpErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[email]; ok {
		return identity.Identity{}, apperr.Credential(errors.New("email taken"))
	}
	u := identity.Identity{ID: "user-" + email, Email: email, Profile: profile, CreatedAt: fixedNow}
	m.users[email] = u
	m.passwords[email] = password
	if m.roles != nil {
		m.roles.set(u.ID, roles...)
	}
	return u, nil
}

func (m *mockAuth) SignIn(_ context.Context, email, password string) (identity.Session, error) {
	m.mu.Lock()
	u, ok := m.users[email]
	if !ok || m.passwords[email] != password {
		m.mu.Unlock()
		return identity.Session{}, apperr.Credential(errors.New("invalid login credentials"))
	}
	m.nextID++
	s := identity.Session{ID: fmt.Sprintf("sess-%d", m.nextID), UserID: u.ID, Email: email, CreatedAt: fixedNow, ExpiresAt: fixedNow.Add(time.Hour)}
	m.sessions[s.ID] = s
	m.mu.Unlock()
	m.emit(identity.AuthEvent{Type: identity.EventSignedIn, Session: s})
	return s, nil
}

func (m *mockAuth) SignOut(_ context.Context, sessionID string) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if ok {
		m.emit(identity.AuthEvent{Type: identity.EventSignedOut, Session: s})
	}
}

func (m *mockAuth) GetSession(id string) (identity.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *mockAuth) GetUser(_ context.Context, userID string) (identity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return identity.Identity{}, apperr.NotFound(apperr.ErrNotFound)
}

func (m *mockAuth) OnAuthStateChange(fn func(identity.AuthEvent)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *mockAuth) listenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

func (m *mockAuth) emit(ev identity.AuthEvent) {
	m.mu.Lock()
	fns := make([]func(identity.AuthEvent), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// --- Mock RoleStore ---

type mockRoles struct {
	mu      sync.Mutex
	rows    map[string][]account.RoleAssignment
	listErr error
}

func newMockRoles() *mockRoles {
	return &mockRoles{rows: make(map[string][]account.RoleAssignment)}
}

func (m *mockRoles) ListForUser(_ context.Context, userID string) ([]account.RoleAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]account.RoleAssignment(nil), m.rows[userID]...), nil
}

func (m *mockRoles) set(userID string, roles ...account.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[userID] = nil
	for _, r := range roles {
		m.rows[userID] = append(m.rows[userID], account.RoleAssignment{ID: string(r), UserID: userID, Role: r, CreatedAt: fixedNow})
	}
}

// --- Mock ChangeFeed ---

type mockFeed struct {
	mu   sync.Mutex
	subs map[int]func(change.Change)
	next int
}

func newMockFeed() *mockFeed {
	return &mockFeed{subs: make(map[int]func(change.Change))}
}

func (f *mockFeed) Subscribe(table string, fn func(change.Change)) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *mockFeed) publish(c change.Change) {
	f.mu.Lock()
	fns := make([]func(change.Change), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

func (f *mockFeed) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// --- Helpers ---

type fixture struct {
	auth  *mockAuth
	roles *mockRoles
	feed  *mockFeed
	deps  Deps
}

func newFixture() *fixture {
	f := &fixture{auth: newMockAuth(), roles: newMockRoles(), feed: newMockFeed()}
	f.auth.roles = f.roles
	f.deps = Deps{
		Auth:  f.auth,
		Roles: f.roles,
		Feed:  f.feed,
	}
	return f
}

func signUp(t *testing.T, m *Manager, email string, role account.Role) identity.Identity {
	t.Helper()
	u, err := m.SignUp(context.Background(), SignUpInput{Email: email, Password: "password123", FullName: "Thandi", Role: role})
	require.NoError(t, err)
	return u
}

// --- Tests ---

func TestSignUp_RoleValidation(t *testing.T) {
	tests := []struct {
		name       string
		role       account.Role
		allowAdmin bool
		wantErr    bool
	}{
		{"volunteer", account.RoleVolunteer, false, false},
		{"donor", account.RoleDonor, false, false},
		{"admin refused", account.RoleAdmin, false, true},
		{"admin allowed", account.RoleAdmin, true, false},
		{"unknown role", account.Role("superuser"), true, true},
		{"empty role", account.NoRole, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.deps.AllowAdminSignUp = tt.allowAdmin
			m := NewManager(f.deps)
			defer m.Close()

			u, err := m.SignUp(context.Background(), SignUpInput{Email: "a@x.org", Password: "password123", Role: tt.role})
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperr.Is(err, apperr.KindValidation))
				assert.Empty(t, f.auth.users, "no identity created for a refused role")
				return
			}
			require.NoError(t, err)
			rows, _ := f.roles.ListForUser(context.Background(), u.ID)
			require.Len(t, rows, 1)
			assert.Equal(t, tt.role, rows[0].Role)
			assert.Equal(t, fixedNow, rows[0].CreatedAt)
		})
	}
}

func TestSignUp_ProviderErrorPropagates(t *testing.T) {
	f := newFixture()
	f.auth.signUpErr = apperr.Credential(errors.New("password should be at least 8 characters"))
	m := NewManager(f.deps)
	defer m.Close()

	_, err := m.SignUp(context.Background(), SignUpInput{Email: "a@x.org", Password: "short", Role: account.RoleDonor})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindCredential))
	assert.Empty(t, f.roles.rows)
}

func TestSignUp_FailedWriteCanBeRetried(t *testing.T) {
	f := newFixture()
	f.auth.signUpErr = apperr.Store(errors.New("store unavailable"))
	m := NewManager(f.deps)
	defer m.Close()

	in := SignUpInput{Email: "a@x.org", Password: "password123", Role: account.RoleVolunteer}
	_, err := m.SignUp(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, apperr.KindStore, apperr.KindOf(err))
	assert.Empty(t, f.auth.users)
	assert.Empty(t, f.roles.rows)

	f.auth.signUpErr = nil
	u, err := m.SignUp(context.Background(), in)
	require.NoError(t, err)
	_, err = m.SignIn(context.Background(), "a@x.org", "password123")
	require.NoError(t, err)
	st := m.State()
	require.True(t, st.SignedIn())
	assert.Equal(t, u.ID, st.User.ID)
	assert.Equal(t, account.RoleVolunteer, st.Role)
}

func TestSignUp_DoesNotSignIn(t *testing.T) {
	f := newFixture()
	m := NewManager(f.deps)
	defer m.Close()

	signUp(t, m, "a@x.org", account.RoleVolunteer)
	assert.False(t, m.State().SignedIn())
}

func TestSignIn_LoadsPrimaryRole(t *testing.T) {
	f := newFixture()
	m := NewManager(f.deps)
	defer m.Close()
	u := signUp(t, m, "a@x.org", account.RoleDonor)
	f.roles.set(u.ID, account.RoleDonor, account.RoleAdmin, account.RoleVolunteer)

	var seen []State
	m.Subscribe(func(s State) { seen = append(seen, s) })

	sess, err := m.SignIn(context.Background(), "a@x.org", "password123")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, m.SessionID())

	st := m.State()
	require.True(t, st.SignedIn())
	assert.Equal(t, u.ID, st.User.ID)
	assert.Equal(t, account.RoleAdmin, st.Role)
	assert.Equal(t, []account.Role{account.RoleAdmin, account.RoleVolunteer, account.RoleDonor}, st.Roles)
	assert.False(t, st.Loading)

	require.GreaterOrEqual(t, len(seen), 2)
	assert.True(t, seen[0].Loading, "first push is the loading state")
	assert.False(t, seen[len(seen)-1].Loading)
}

func TestSignIn_FailureRestoresState(t *testing.T) {
	f := newFixture()
	m := NewManager(f.deps)
	defer m.Close()

	_, err := m.SignIn(context.Background(), "nobody@x.org", "password123")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindCredential))
	st := m.State()
	assert.False(t, st.SignedIn())
	assert.False(t, st.Loading)
}

func TestSignIn_RoleLookupFailureLeavesNoRole(t *testing.T) {
	f := newFixture()
	m := NewManager(f.deps)
	defer m.Close()
	signUp(t, m, "a@x.org", account.RoleVolunteer)
	f.roles.listErr = errors.New("store unavailable")

	_, err := m.SignIn(context.Background(), "a@x.org", "password123")
	require.NoError(t, err)
	st := m.State()
	assert.True(t, st.SignedIn())
	assert.Equal(t, account.NoRole, st.Role)
	assert.False(t, st.Loading)
}

func TestSignOut_ClearsState(t *testing.T) {
	f := newFixture()
	m := NewManager(f.deps)
	defer m.Close()
	signUp(t, m, "a@x.org", account.RoleVolunteer)
	sess, err := m.SignIn(context.Background(), "a@x.org", "password123")
	require.NoError(t, err)

	m.SignOut(context.Background())
	st := m.State()
	assert.False(t, st.SignedIn())
	assert.Equal(t, account.NoRole, st.Role)
	assert.Empty(t, m.SessionID())
	_, live := f.auth.GetSession(sess.ID)
	assert.False(t, live)

	// Signing out twice is harmless.
	m.SignOut(context.Background())
}

func TestSignedOutEventFromElsewhere(t *testing.T) {
	f := newFixture()
	m := NewManager(f.deps)
	defer m.Close()
	signUp(t, m, "a@x.org", account.RoleVolunteer)
	sess, err := m.SignIn(context.Background(), "a@x.org", "password123")
	require.NoError(t, err)

	// Another session's sign-out is ignored.
	f.auth.emit(identity.AuthEvent{Type: identity.EventSignedOut, Session: identity.Session{ID: "other"}})
	assert.True(t, m.State().SignedIn())

	f.auth.SignOut(context.Background(), sess.ID)
	assert.False(t, m.State().SignedIn())
}

func TestRoleChange_ReloadsOwnUserOnly(t *testing.T) {
	f := newFixture()
	m := NewManager(f.deps)
	defer m.Close()
	u := signUp(t, m, "a@x.org", account.RoleVolunteer)
	_, err := m.SignIn(context.Background(), "a@x.org", "password123")
	require.NoError(t, err)
	require.Equal(t, account.RoleVolunteer, m.State().Role)

	f.roles.set(u.ID, account.RoleVolunteer, account.RoleAdmin)
	f.feed.publish(change.Change{Table: change.TableUserRoles, Op: change.OpInsert, OwnerID: "someone-else"})
	assert.Equal(t, account.RoleVolunteer, m.State().Role, "other users' changes are ignored")

	f.feed.publish(change.Change{Table: change.TableUserRoles, Op: change.OpInsert, OwnerID: u.ID})
	assert.Equal(t, account.RoleAdmin, m.State().Role)

	f.roles.set(u.ID)
	f.feed.publish(change.Change{Table: change.TableUserRoles, Op: change.OpDelete, OwnerID: u.ID})
	assert.Equal(t, account.NoRole, m.State().Role, "revoked role takes effect without re-login")
}

func TestSelectRole(t *testing.T) {
	f := newFixture()
	m := NewManager(f.deps)
	defer m.Close()
	u := signUp(t, m, "a@x.org", account.RoleDonor)
	f.roles.set(u.ID, account.RoleDonor, account.RoleVolunteer)

	require.Error(t, m.SelectRole(account.RoleDonor), "must be signed in")

	_, err := m.SignIn(context.Background(), "a@x.org", "password123")
	require.NoError(t, err)
	assert.Equal(t, account.RoleVolunteer, m.State().Role)

	require.NoError(t, m.SelectRole(account.RoleDonor))
	assert.Equal(t, account.RoleDonor, m.State().Role)

	err = m.SelectRole(account.RoleAdmin)
	require.Error(t, err)
	assert.ErrorIs(t, err, account.ErrRoleNotHeld)

	// Selection survives a role reload while still held.
	f.feed.publish(change.Change{Table: change.TableUserRoles, OwnerID: u.ID})
	assert.Equal(t, account.RoleDonor, m.State().Role)

	// Falls back to most privileged once the selected role is revoked.
	f.roles.set(u.ID, account.RoleVolunteer)
	f.feed.publish(change.Change{Table: change.TableUserRoles, OwnerID: u.ID})
	assert.Equal(t, account.RoleVolunteer, m.State().Role)
}

func TestCurrentRole(t *testing.T) {
	f := newFixture()
	m := NewManager(f.deps)
	defer m.Close()

	role, err := m.CurrentRole(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, account.NoRole, role)

	f.roles.set("u1", account.RoleDonor, account.RoleAdmin)
	role, err = m.CurrentRole(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, account.RoleAdmin, role)
	assert.False(t, m.State().SignedIn(), "CurrentRole does not touch State")
}

func TestClose_Unsubscribes(t *testing.T) {
	f := newFixture()
	m := NewManager(f.deps)
	assert.Equal(t, 1, f.auth.listenerCount())
	assert.Equal(t, 1, f.feed.len())

	m.Close()
	m.Close()
	assert.Equal(t, 0, f.auth.listenerCount())
	assert.Equal(t, 0, f.feed.len())
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	f := newFixture()
	m := NewManager(f.deps)
	defer m.Close()
	signUp(t, m, "a@x.org", account.RoleVolunteer)

	calls := 0
	unsubscribe := m.Subscribe(func(State) { calls++ })
	unsubscribe()
	unsubscribe()
	_, err := m.SignIn(context.Background(), "a@x.org", "password123")
	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestRegistry_Lifecycle(t *testing.T) {
	f := newFixture()
	r := NewRegistry(f.deps)
	defer r.Close()

	m := r.New()
	signUp(t, m, "a@x.org", account.RoleVolunteer)
	sess, err := m.SignIn(context.Background(), "a@x.org", "password123")
	require.NoError(t, err)
	r.Attach(m)
	assert.Equal(t, 1, r.Len())

	got, ok := r.Get(context.Background(), sess.ID)
	require.True(t, ok)
	assert.Same(t, m, got)

	f.auth.SignOut(context.Background(), sess.ID)
	assert.Equal(t, 0, r.Len())
	_, ok = r.Get(context.Background(), sess.ID)
	assert.False(t, ok)
}

func TestRegistry_RestoresKnownSession(t *testing.T) {
	f := newFixture()
	r := NewRegistry(f.deps)
	defer r.Close()

	// A session opened by a different manager set (another process).
	seed := NewManager(f.deps)
	u := signUp(t, seed, "a@x.org", account.RoleDonor)
	sess, err := f.auth.SignIn(context.Background(), "a@x.org", "password123")
	require.NoError(t, err)
	seed.Close()

	m, ok := r.Get(context.Background(), sess.ID)
	require.True(t, ok)
	st := m.State()
	require.True(t, st.SignedIn())
	assert.Equal(t, u.ID, st.User.ID)
	assert.Equal(t, account.RoleDonor, st.Role)
	assert.Equal(t, 1, r.Len())

	_, ok = r.Get(context.Background(), "missing")
	assert.False(t, ok)
}
