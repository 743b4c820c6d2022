package projections

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accountstore "reliefportal/internal/adapters/storage/account"
	shiftstore "reliefportal/internal/adapters/storage/shift"
	"reliefportal/internal/application/listutil"
	"reliefportal/internal/domain/account"
	"reliefportal/internal/domain/alert"
	"reliefportal/internal/domain/donation"
	"reliefportal/internal/domain/shift"
	"reliefportal/internal/domain/signup"
)

var fixedNow = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

var errStore = errors.New("connection refused")

// --- Mock stores ---

type mockAccountStore struct {
	users []account.User
	names map[string]string
	err   error
}

func (m *mockAccountStore) List(_ context.Context, f accountstore.ListFilter) ([]account.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	start := min(f.Offset, len(m.users))
	end := len(m.users)
	if f.Limit > 0 {
		end = min(start+f.Limit, len(m.users))
	}
	return m.users[start:end], nil
}

func (m *mockAccountStore) Count(context.Context) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return len(m.users), nil
}

func (m *mockAccountStore) ProfileNames(_ context.Context, ids []string) (map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]string)
	for _, id := range ids {
		if n, ok := m.names[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

type mockRoleStore struct {
	rows []account.RoleAssignment
	err  error
}

func (m *mockRoleStore) ListAll(context.Context) ([]account.RoleAssignment, error) {
	return m.rows, m.err
}

type mockAlertStore struct {
	active []alert.Alert
	recent []alert.Alert
	err    error
}

func (m *mockAlertStore) ListActive(_ context.Context, limit int) ([]alert.Alert, error) {
	if m.err != nil {
		return nil, m.err
	}
	if limit > 0 && limit < len(m.active) {
		return m.active[:limit], nil
	}
	return m.active, nil
}

func (m *mockAlertStore) ListRecent(context.Context, int) ([]alert.Alert, error) {
	return m.recent, m.err
}

func (m *mockAlertStore) CountActive(context.Context) (int, error) {
	return len(m.active), m.err
}

type mockShiftStore struct {
	shifts []shift.Shift
	err    error
}

func (m *mockShiftStore) List(_ context.Context, f shiftstore.ListFilter) ([]shift.Shift, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []shift.Shift
	for _, s := range m.shifts {
		if !f.StartsFrom.IsZero() && s.StartTime.Before(f.StartsFrom) {
			continue
		}
		out = append(out, s)
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *mockShiftStore) Count(ctx context.Context, f shiftstore.ListFilter) (int, error) {
	out, err := m.List(ctx, f)
	return len(out), err
}

type mockSignupStore struct {
	bookings map[string][]signup.Booking
	recent   []signup.Booking
	active   int
	err      error
}

func (m *mockSignupStore) ListForVolunteer(_ context.Context, id string, _ bool) ([]signup.Booking, error) {
	return m.bookings[id], m.err
}

func (m *mockSignupStore) ListRecent(context.Context, int) ([]signup.Booking, error) {
	return m.recent, m.err
}

func (m *mockSignupStore) CountActive(context.Context) (int, error) {
	return m.active, m.err
}

type mockDonationStore struct {
	byDonor map[string][]donation.Donation
	recent  []donation.Donation
	err     error
}

func (m *mockDonationStore) ListForDonor(_ context.Context, id string, _ int) ([]donation.Donation, error) {
	return m.byDonor[id], m.err
}

func (m *mockDonationStore) ListRecent(context.Context, int) ([]donation.Donation, error) {
	return m.recent, m.err
}

func (m *mockDonationStore) SumAmounts(_ context.Context, donorID string) (decimal.Decimal, error) {
	if m.err != nil {
		return decimal.Zero, m.err
	}
	total := decimal.Zero
	for id, ds := range m.byDonor {
		if donorID != "" && id != donorID {
			continue
		}
		for _, d := range ds {
			total = total.Add(d.AmountOrZero())
		}
	}
	return total, nil
}

// --- Fixtures ---

func money(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func testShift(id string, start time.Time, status shift.Status) shift.Shift {
	return shift.Shift{ID: id, Title: "Shift " + id, Location: "Depot", StartTime: start, EndTime: start.Add(2 * time.Hour), MaxVolunteers: 3, Status: status}
}

// --- Volunteer dashboard ---

func TestQueryGetVolunteerDashboard(t *testing.T) {
	s1 := testShift("s1", fixedNow.Add(-48*time.Hour), shift.StatusCompleted)
	s2 := testShift("s2", fixedNow.Add(24*time.Hour), shift.StatusOpen)
	s3 := testShift("s3", fixedNow.Add(48*time.Hour), shift.StatusOpen)
	s4 := testShift("s4", fixedNow.Add(-24*time.Hour), shift.StatusCompleted)
	deps := GetVolunteerDashboardDeps{
		ShiftStore: &mockShiftStore{shifts: []shift.Shift{s1, s4, s2, s3}},
		SignupStore: &mockSignupStore{bookings: map[string][]signup.Booking{
			"v1": {
				{Signup: signup.Signup{ID: "a", ShiftID: "s1", Status: signup.StatusConfirmed}, Shift: s1},
				{Signup: signup.Signup{ID: "b", ShiftID: "s2", Status: signup.StatusConfirmed}, Shift: s2},
				{Signup: signup.Signup{ID: "c", ShiftID: "s4", Status: signup.StatusConfirmed}, Shift: s4},
			},
		}},
	}

	got, err := QueryGetVolunteerDashboard(context.Background(), GetVolunteerDashboardQuery{VolunteerID: "v1"}, deps)
	require.NoError(t, err)
	assert.Len(t, got.AvailableShifts, 4)
	require.Len(t, got.MyShifts, 3)
	assert.Equal(t, "s2", got.MyShifts[0].Shift.ID, "completed bookings sort last")
	assert.True(t, got.SignedUp("s1"))
	assert.False(t, got.SignedUp("s3"))
	assert.Equal(t, signup.PairCompleted, got.PairState("s1"))
	assert.Equal(t, signup.PairSignedUp, got.PairState("s2"))
	assert.Equal(t, signup.PairNone, got.PairState("s3"))
	assert.Equal(t, VolunteerStats{TotalShifts: 4, CompletedShifts: 2, BadgesEarned: 1}, got.Stats)
}

func TestQueryGetVolunteerDashboard_Degrades(t *testing.T) {
	deps := GetVolunteerDashboardDeps{
		ShiftStore:  &mockShiftStore{err: errStore},
		SignupStore: &mockSignupStore{err: errStore},
	}
	got, err := QueryGetVolunteerDashboard(context.Background(), GetVolunteerDashboardQuery{VolunteerID: "v1"}, deps)
	assert.ErrorIs(t, err, errStore)
	assert.NotNil(t, got.AvailableShifts)
	assert.NotNil(t, got.MyShifts)
	assert.Zero(t, got.Stats)
}

// --- Donor dashboard ---

func TestQueryGetDonorDashboard(t *testing.T) {
	deps := GetDonorDashboardDeps{DonationStore: &mockDonationStore{byDonor: map[string][]donation.Donation{
		"d1": {
			{ID: "x", Type: donation.TypeOneTime, Amount: money("250.50")},
			{ID: "y", Type: donation.TypeInKind, Description: "Blankets"},
			{ID: "z", Type: donation.TypeRecurring, Amount: money("100")},
		},
	}}}

	got, err := QueryGetDonorDashboard(context.Background(), GetDonorDashboardQuery{DonorID: "d1"}, deps)
	require.NoError(t, err)
	assert.Len(t, got.Donations, 3)
	assert.True(t, decimal.RequireFromString("350.50").Equal(got.TotalDonated))

	got, err = QueryGetDonorDashboard(context.Background(), GetDonorDashboardQuery{DonorID: "nobody"}, deps)
	require.NoError(t, err)
	assert.Empty(t, got.Donations)
	assert.NotNil(t, got.Donations)
	assert.True(t, got.TotalDonated.IsZero())
}

func TestQueryGetDonorDashboard_Error(t *testing.T) {
	deps := GetDonorDashboardDeps{DonationStore: &mockDonationStore{err: errStore}}
	got, err := QueryGetDonorDashboard(context.Background(), GetDonorDashboardQuery{DonorID: "d1"}, deps)
	assert.ErrorIs(t, err, errStore)
	assert.Empty(t, got.Donations)
	assert.True(t, got.TotalDonated.IsZero())
}

// --- Public stats ---

func TestQueryGetPublicStats(t *testing.T) {
	deps := GetPublicStatsDeps{
		RoleStore: &mockRoleStore{rows: []account.RoleAssignment{
			{UserID: "a", Role: account.RoleVolunteer},
			{UserID: "b", Role: account.RoleVolunteer},
			{UserID: "b", Role: account.RoleAdmin},
			{UserID: "c", Role: account.RoleDonor},
		}},
		AlertStore:    &mockAlertStore{active: []alert.Alert{{ID: "1", IsActive: true}}},
		DonationStore: &mockDonationStore{byDonor: map[string][]donation.Donation{"c": {{Amount: money("75")}}}},
	}
	got := QueryGetPublicStats(context.Background(), deps)
	assert.Equal(t, 2, got.ActiveVolunteers)
	assert.Equal(t, 1, got.ActiveEmergencies)
	assert.True(t, decimal.NewFromInt(75).Equal(got.TotalDonations))
}

func TestQueryGetPublicStats_FailuresShowZero(t *testing.T) {
	deps := GetPublicStatsDeps{
		RoleStore:     &mockRoleStore{err: errStore},
		AlertStore:    &mockAlertStore{err: errStore},
		DonationStore: &mockDonationStore{err: errStore},
	}
	got := QueryGetPublicStats(context.Background(), deps)
	assert.Zero(t, got.ActiveVolunteers)
	assert.Zero(t, got.ActiveEmergencies)
	assert.True(t, got.TotalDonations.IsZero())
}

// --- Active alerts ---

func TestQueryGetActiveAlerts(t *testing.T) {
	store := &mockAlertStore{active: []alert.Alert{
		{ID: "1", Title: "Flood", Severity: alert.SeverityCritical, Location: "Cape Town", IsActive: true, Description: "Evacuate **now**"},
		{ID: "2", Title: "Smoke", Severity: alert.SeverityLow, IsActive: true, Description: "<script>alert(1)</script>"},
	}}
	deps := GetActiveAlertsDeps{AlertStore: store}

	got, err := QueryGetActiveAlerts(context.Background(), GetActiveAlertsQuery{}, deps)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Contains(t, string(got[0].DescriptionHTML), "<strong>now</strong>")
	assert.NotContains(t, string(got[1].DescriptionHTML), "<script>")

	got, err = QueryGetActiveAlerts(context.Background(), GetActiveAlertsQuery{MinSeverity: alert.SeverityHigh}, deps)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Cape Town", got[0].Location)
}

func TestQueryGetActiveAlerts_Empty(t *testing.T) {
	got, err := QueryGetActiveAlerts(context.Background(), GetActiveAlertsQuery{}, GetActiveAlertsDeps{AlertStore: &mockAlertStore{}})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

// --- Admin dashboard ---

func adminDeps() GetAdminDashboardDeps {
	upcoming := testShift("s2", fixedNow.Add(time.Hour), shift.StatusOpen)
	return GetAdminDashboardDeps{
		AccountStore: &mockAccountStore{
			users: []account.User{
				{Account: account.Account{ID: "u1", Email: "admin@x.org"}},
				{Account: account.Account{ID: "u2", Email: "vol@x.org"}, Profile: account.Profile{FullName: "Sipho"}},
				{Account: account.Account{ID: "u3", Email: "donor@x.org"}},
			},
			names: map[string]string{"u2": "Sipho", "u3": "donor@x.org"},
		},
		RoleStore: &mockRoleStore{rows: []account.RoleAssignment{
			{UserID: "u1", Role: account.RoleVolunteer},
			{UserID: "u1", Role: account.RoleAdmin},
			{UserID: "u2", Role: account.RoleVolunteer},
			{UserID: "u3", Role: account.RoleDonor},
		}},
		AlertStore: &mockAlertStore{
			active: []alert.Alert{{ID: "a1", IsActive: true}},
			recent: []alert.Alert{{ID: "a1", IsActive: true}, {ID: "a0"}},
		},
		ShiftStore: &mockShiftStore{shifts: []shift.Shift{
			testShift("s1", fixedNow.Add(-time.Hour), shift.StatusCompleted),
			upcoming,
		}},
		SignupStore: &mockSignupStore{
			active: 4,
			recent: []signup.Booking{
				{Signup: signup.Signup{ID: "su1", VolunteerID: "u2", CreatedAt: fixedNow.Add(-time.Minute)}, Shift: upcoming},
				{Signup: signup.Signup{ID: "su2", VolunteerID: "ghost", CreatedAt: fixedNow.Add(-3 * time.Minute)}, Shift: upcoming},
			},
		},
		DonationStore: &mockDonationStore{
			byDonor: map[string][]donation.Donation{"u3": {{Amount: money("200")}, {Amount: money("50.25")}}},
			recent: []donation.Donation{
				{ID: "d1", DonorID: "u3", Currency: "ZAR", Amount: money("200"), CreatedAt: fixedNow.Add(-2 * time.Minute)},
			},
		},
	}
}

func TestQueryGetAdminDashboard(t *testing.T) {
	got := QueryGetAdminDashboard(context.Background(), GetAdminDashboardQuery{
		Now:   fixedNow,
		Users: listutil.PageParams{Page: 1, PerPage: 2},
	}, adminDeps())

	assert.Len(t, got.RecentAlerts, 2)
	require.Len(t, got.UpcomingShifts, 1)
	assert.Equal(t, "s2", got.UpcomingShifts[0].ID)

	require.Len(t, got.Users, 2)
	assert.Equal(t, []account.Role{account.RoleAdmin, account.RoleVolunteer}, got.Users[0].Roles)
	assert.Equal(t, 2, got.UsersPage.TotalPages)

	assert.Equal(t, AdminStats{
		TotalUsers:        3,
		RoleCounts:        map[account.Role]int{account.RoleAdmin: 1, account.RoleVolunteer: 2, account.RoleDonor: 1},
		TotalDonations:    got.Stats.TotalDonations,
		ActiveAlerts:      1,
		UpcomingShifts:    1,
		TotalShiftSignups: 4,
	}, got.Stats)
	assert.True(t, decimal.RequireFromString("250.25").Equal(got.Stats.TotalDonations))

	require.Len(t, got.RecentActivity, 3)
	assert.Equal(t, "su1", got.RecentActivity[0].ID, "newest first")
	assert.Equal(t, "Sipho", got.RecentActivity[0].UserName)
	assert.Equal(t, ActivityDonation, got.RecentActivity[1].Kind)
	assert.Equal(t, "donated ZAR 200.00", got.RecentActivity[1].Action)
	assert.Equal(t, unknownName, got.RecentActivity[2].UserName)
	assert.True(t, strings.HasPrefix(got.RecentActivity[2].Action, "signed up for"))
}

func TestQueryGetAdminDashboard_ActivityCappedAtTen(t *testing.T) {
	deps := adminDeps()
	var recent []signup.Booking
	var donations []donation.Donation
	for i := 0; i < 5; i++ {
		at := fixedNow.Add(-time.Duration(i) * time.Minute)
		recent = append(recent, signup.Booking{Signup: signup.Signup{ID: "s", VolunteerID: "u2", CreatedAt: at}})
		donations = append(donations, donation.Donation{ID: "d", DonorID: "u3", Amount: money("1"), Currency: "ZAR", CreatedAt: at.Add(-30 * time.Second)})
	}
	recent = append(recent, signup.Booking{Signup: signup.Signup{ID: "extra", CreatedAt: fixedNow.Add(-time.Hour)}})
	deps.SignupStore = &mockSignupStore{recent: recent}
	deps.DonationStore = &mockDonationStore{recent: donations}

	got := QueryGetAdminDashboard(context.Background(), GetAdminDashboardQuery{Now: fixedNow, Users: listutil.PageParams{Page: 1, PerPage: 10}}, deps)
	require.Len(t, got.RecentActivity, AdminActivityTotal)
	for i := 1; i < len(got.RecentActivity); i++ {
		assert.False(t, got.RecentActivity[i].At.After(got.RecentActivity[i-1].At))
	}
}

func TestQueryGetRecentActivity_MatchesDashboard(t *testing.T) {
	deps := adminDeps()
	dash := QueryGetAdminDashboard(context.Background(), GetAdminDashboardQuery{Now: fixedNow, Users: listutil.PageParams{Page: 1, PerPage: 10}}, deps)
	got := QueryGetRecentActivity(context.Background(), deps)
	assert.Equal(t, dash.RecentActivity, got)
}

func TestQueryGetAdminDashboard_SectionsDegrade(t *testing.T) {
	deps := GetAdminDashboardDeps{
		AccountStore:  &mockAccountStore{err: errStore},
		RoleStore:     &mockRoleStore{err: errStore},
		AlertStore:    &mockAlertStore{err: errStore},
		ShiftStore:    &mockShiftStore{err: errStore},
		SignupStore:   &mockSignupStore{err: errStore},
		DonationStore: &mockDonationStore{err: errStore},
	}
	got := QueryGetAdminDashboard(context.Background(), GetAdminDashboardQuery{Now: fixedNow}, deps)
	assert.Empty(t, got.RecentAlerts)
	assert.Empty(t, got.UpcomingShifts)
	assert.Empty(t, got.Users)
	assert.Empty(t, got.RecentActivity)
	assert.NotNil(t, got.RecentActivity)
	assert.Zero(t, got.Stats.TotalUsers)
	assert.True(t, got.Stats.TotalDonations.IsZero())
}

// --- User directory ---

func TestQueryGetUsers(t *testing.T) {
	deps := adminDeps()
	got, err := QueryGetUsers(context.Background(), GetUsersQuery{Page: listutil.PageParams{Page: 2, PerPage: 2}},
		GetUsersDeps{AccountStore: deps.AccountStore, RoleStore: deps.RoleStore})
	require.NoError(t, err)

	assert.Equal(t, listutil.PageInfo{Page: 2, PerPage: 2, Total: 3, TotalPages: 2}, got.Page)
	require.Len(t, got.Users, 1)
	assert.Equal(t, "u3", got.Users[0].Account.ID)
	assert.Equal(t, []account.Role{account.RoleDonor}, got.Users[0].Roles)
}

func TestQueryGetUsers_Errors(t *testing.T) {
	_, err := QueryGetUsers(context.Background(), GetUsersQuery{Page: listutil.PageParams{Page: 1, PerPage: 10}},
		GetUsersDeps{AccountStore: &mockAccountStore{err: errStore}, RoleStore: &mockRoleStore{}})
	assert.ErrorIs(t, err, errStore)

	_, err = QueryGetUsers(context.Background(), GetUsersQuery{Page: listutil.PageParams{Page: 1, PerPage: 10}},
		GetUsersDeps{AccountStore: &mockAccountStore{}, RoleStore: &mockRoleStore{err: errStore}})
	assert.ErrorIs(t, err, errStore)
}
