package orchestrators

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reliefportal/internal/domain/account"
	"reliefportal/internal/domain/apperr"
)

const fixtureYAML = `
users:
  - email: admin@relief.org
    password: admin-password
    full_name: Nomsa Dlamini
    roles: [admin]
  - email: vol@relief.org
    password: volunteer-pass
    roles: [volunteer, donor]
alerts:
  - title: Flash flooding
    description: Avoid the N2 near Borcherds Quarry
    severity: critical
    location: Cape Town
    created_by: admin@relief.org
  - title: Smoke advisory
    description: Keep windows closed
    severity: low
    location: Stellenbosch
    active: false
    created_by: admin@relief.org
shifts:
  - title: Food parcels
    location: Khayelitsha
    start: 2026-03-02T08:00:00Z
    end: 2026-03-02T12:00:00Z
    max_volunteers: 5
    recurrence: FREQ=WEEKLY;COUNT=3
    created_by: admin@relief.org
donations:
  - donor: vol@relief.org
    type: one-time
    amount: "150.00"
  - donor: vol@relief.org
    type: in-kind
    description: Tinned food
`

type seedFixture struct {
	accounts  *mockAccountStore
	roles     *mockRoleStore
	alerts    *mockAlertStore
	shifts    *mockShiftStore
	donations *mockDonationStore
	deps      SeedFixturesDeps
}

func newSeedFixture() *seedFixture {
	f := &seedFixture{
		accounts:  newMockAccountStore(),
		roles:     newMockRoleStore(),
		alerts:    newMockAlertStore(),
		shifts:    newMockShiftStore(),
		donations: &mockDonationStore{},
	}
	f.deps = SeedFixturesDeps{
		Auth:          &mockAuth{accounts: f.accounts, roles: f.roles},
		AccountStore:  f.accounts,
		RoleStore:     f.roles,
		AlertStore:    f.alerts,
		ShiftStore:    f.shifts,
		DonationStore: f.donations,
		Now:           fixedClock,
		GenerateID:    sequentialIDs("seed"),
	}
	return f
}

func TestExecuteSeedFixtures(t *testing.T) {
	f := newSeedFixture()

	got, err := ExecuteSeedFixtures(context.Background(), SeedFixturesInput{Data: []byte(fixtureYAML)}, f.deps)
	require.NoError(t, err)
	assert.Equal(t, SeedFixturesResult{UsersCreated: 2, Alerts: 2, Shifts: 3, Donations: 2}, got)

	vol, err := f.accounts.GetByEmail(context.Background(), "vol@relief.org")
	require.NoError(t, err)
	assert.True(t, f.roles.roles[vol.ID][account.RoleVolunteer])
	assert.True(t, f.roles.roles[vol.ID][account.RoleDonor])

	active := 0
	for _, a := range f.alerts.alerts {
		if a.IsActive {
			active++
		}
	}
	assert.Equal(t, 1, active)
	assert.Len(t, f.shifts.shifts, 3)
	require.Len(t, f.donations.donations, 2)
	assert.False(t, f.donations.donations[1].Amount.Valid)

	// Users are reused on a second run.
	again, err := ExecuteSeedFixtures(context.Background(), SeedFixturesInput{Data: []byte(fixtureYAML)}, f.deps)
	require.NoError(t, err)
	assert.Zero(t, again.UsersCreated)
}

func TestParseFixtures_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "users:\n  - email: a@x.org\n    password: longenough\n    roles: [donor]\n    nickname: A\n"},
		{"bad role", "users:\n  - email: a@x.org\n    password: longenough\n    roles: [owner]\n"},
		{"no roles", "users:\n  - email: a@x.org\n    password: longenough\n"},
		{"bad email", "alerts:\n  - title: t\n    description: d\n    severity: low\n    location: l\n    created_by: nobody\n"},
		{"not yaml", "users: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFixtures([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
		})
	}
}

func TestParseFixtures_Empty(t *testing.T) {
	file, err := ParseFixtures(nil)
	require.NoError(t, err)
	assert.Empty(t, file.Users)
}

func TestExecuteSeedFixtures_UnknownCreator(t *testing.T) {
	f := newSeedFixture()
	doc := "alerts:\n  - title: t\n    description: d\n    severity: low\n    location: l\n    created_by: ghost@x.org\n"
	_, err := ExecuteSeedFixtures(context.Background(), SeedFixturesInput{Data: []byte(doc)}, f.deps)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Contains(t, err.Error(), "alerts[0]")
}
