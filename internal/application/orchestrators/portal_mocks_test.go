package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reliefportal/internal/domain/account"
	"reliefportal/internal/domain/alert"
	"reliefportal/internal/domain/apperr"
	"reliefportal/internal/domain/donation"
	"reliefportal/internal/domain/identity"
	"reliefportal/internal/domain/shift"
)

var fixedNow = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// sequentialIDs returns a generator yielding prefix-1, prefix-2, ...
func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

var errDown = errors.New("store unavailable")

type mockAlertStore struct {
	alerts  map[string]alert.Alert
	saveErr error
	saves   int
}

func newMockAlertStore() *mockAlertStore {
	return &mockAlertStore{alerts: make(map[string]alert.Alert)}
}

func (m *mockAlertStore) GetByID(_ context.Context, id string) (alert.Alert, error) {
	a, ok := m.alerts[id]
	if !ok {
		return alert.Alert{}, apperr.NotFound(apperr.ErrNotFound)
	}
	return a, nil
}

func (m *mockAlertStore) Save(_ context.Context, a alert.Alert) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.alerts[a.ID] = a
	return nil
}

type mockShiftStore struct {
	shifts  map[string]shift.Shift
	batches int
	err     error
}

func newMockShiftStore() *mockShiftStore {
	return &mockShiftStore{shifts: make(map[string]shift.Shift)}
}

func (m *mockShiftStore) GetByID(_ context.Context, id string) (shift.Shift, error) {
	s, ok := m.shifts[id]
	if !ok {
		return shift.Shift{}, apperr.NotFound(apperr.ErrNotFound)
	}
	return s, nil
}

func (m *mockShiftStore) Create(_ context.Context, s shift.Shift) error {
	if m.err != nil {
		return m.err
	}
	m.shifts[s.ID] = s
	return nil
}

func (m *mockShiftStore) CreateMany(_ context.Context, values []shift.Shift) error {
	if m.err != nil {
		return m.err
	}
	m.batches++
	for _, s := range values {
		m.shifts[s.ID] = s
	}
	return nil
}

func (m *mockShiftStore) Cancel(_ context.Context, id string, now time.Time) (shift.Shift, error) {
	if m.err != nil {
		return shift.Shift{}, m.err
	}
	s, ok := m.shifts[id]
	if !ok {
		return shift.Shift{}, apperr.NotFound(apperr.ErrNotFound)
	}
	if err := s.Cancel(now); err != nil {
		return shift.Shift{}, apperr.Validation(err)
	}
	m.shifts[id] = s
	return s, nil
}

type mockDonationStore struct {
	donations []donation.Donation
	err       error
}

func (m *mockDonationStore) Create(_ context.Context, d donation.Donation) error {
	if m.err != nil {
		return m.err
	}
	m.donations = append(m.donations, d)
	return nil
}

type mockAccountStore struct {
	byID map[string]account.Account
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{byID: make(map[string]account.Account)}
}

func (m *mockAccountStore) GetByID(_ context.Context, id string) (account.Account, error) {
	a, ok := m.byID[id]
	if !ok {
		return account.Account{}, apperr.NotFound(apperr.ErrNotFound)
	}
	return a, nil
}

func (m *mockAccountStore) GetByEmail(_ context.Context, email string) (account.Account, error) {
	for _, a := range m.byID {
		if a.Email == email {
			return a, nil
		}
	}
	return account.Account{}, apperr.NotFound(apperr.ErrNotFound)
}

type mockRoleStore struct {
	roles map[string]map[account.Role]bool
	err   error
}

func newMockRoleStore() *mockRoleStore {
	return &mockRoleStore{roles: make(map[string]map[account.Role]bool)}
}

func (m *mockRoleStore) Add(_ context.Context, a account.RoleAssignment) error {
	if m.err != nil {
		return m.err
	}
	if m.roles[a.UserID] == nil {
		m.roles[a.UserID] = make(map[account.Role]bool)
	}
	m.roles[a.UserID][a.Role] = true
	return nil
}

func (m *mockRoleStore) Remove(_ context.Context, userID string, role account.Role) error {
	if m.err != nil {
		return m.err
	}
	delete(m.roles[userID], role)
	return nil
}

// mockAuth creates accounts in the shared mockAccountStore and grants the
// sign-up roles in the shared mockRoleStore.
type mockAuth struct {
	accounts *mockAccountStore
	roles    *mockRoleStore
	signUps  int
}

func (m *mockAuth) SignUp(_ context.Context, email, password string, profile account.Profile, roles ...account.Role) (identity.Identity, error) {
	if len(password) < account.MinPasswordLength {
		return identity.Identity{}, apperr.Credential(account.ErrPasswordTooShort)
	}
	m.signUps++
	id := fmt.Sprintf("user-%d", m.signUps)
	m.accounts.byID[id] = account.Account{ID: id, Email: account.NormalizeEmail(email), CreatedAt: fixedNow}
	if len(roles) > 0 {
		m.roles.roles[id] = make(map[account.Role]bool)
		for _, r := range roles {
			m.roles.roles[id][r] = true
		}
	}
	return identity.Identity{ID: id, Email: email, Profile: profile}, nil
}
