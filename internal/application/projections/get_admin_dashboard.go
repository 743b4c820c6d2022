package projections

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	accountstore "reliefportal/internal/adapters/storage/account"
	shiftstore "reliefportal/internal/adapters/storage/shift"
	"reliefportal/internal/application/listutil"
	"reliefportal/internal/domain/account"
	"reliefportal/internal/domain/activity"
	"reliefportal/internal/domain/alert"
	"reliefportal/internal/domain/shift"
	"reliefportal/internal/domain/stats"
)

// Section sizes on the admin dashboard.
const (
	AdminRecentAlerts    = 10
	AdminUpcomingShifts  = 10
	AdminActivityPerKind = activity.PerSourceLimit
	AdminActivityTotal   = activity.FeedSize
)

// Activity kinds.
const (
	ActivityDonation = activity.KindDonation
	ActivitySignup   = activity.KindSignup
)

// unknownName is shown when an activity's user has no profile or account.
const unknownName = "Unknown"

// GetAdminDashboardQuery carries input for the admin dashboard projection.
type GetAdminDashboardQuery struct {
	Now   time.Time
	Users listutil.PageParams
}

// GetAdminDashboardDeps holds dependencies for the admin dashboard projection.
type GetAdminDashboardDeps struct {
	AccountStore  AccountStore
	RoleStore     RoleStore
	AlertStore    AlertStore
	ShiftStore    ShiftStore
	SignupStore   SignupStore
	DonationStore DonationStore
}

// AdminStats carries the admin dashboard counters.
type AdminStats struct {
	TotalUsers        int
	RoleCounts        map[account.Role]int
	TotalDonations    decimal.Decimal
	ActiveAlerts      int
	UpcomingShifts    int
	TotalShiftSignups int
}

// ActivityItem is one line of the recent activity feed.
type ActivityItem = activity.Item

// AdminDashboardResult carries the output of the admin dashboard projection.
type AdminDashboardResult struct {
	RecentAlerts   []alert.Alert
	UpcomingShifts []shift.Shift
	Users          []account.User
	UsersPage      listutil.PageInfo
	Stats          AdminStats
	RecentActivity []ActivityItem
}

// QueryGetAdminDashboard loads every admin dashboard section. A section whose
// store call fails is logged and shown empty; the rest of the page still loads.
// PRE: Now is set
// POST: Every slice in the result is non-nil
func QueryGetAdminDashboard(ctx context.Context, query GetAdminDashboardQuery, deps GetAdminDashboardDeps) AdminDashboardResult {
	result := AdminDashboardResult{
		RecentAlerts:   []alert.Alert{},
		UpcomingShifts: []shift.Shift{},
		Users:          []account.User{},
		RecentActivity: []ActivityItem{},
	}

	if alerts, err := deps.AlertStore.ListRecent(ctx, AdminRecentAlerts); err != nil {
		sectionFailed("recent_alerts", err)
	} else if alerts != nil {
		result.RecentAlerts = alerts
	}

	upcoming := shiftstore.ListFilter{StartsFrom: query.Now, Limit: AdminUpcomingShifts}
	if shifts, err := deps.ShiftStore.List(ctx, upcoming); err != nil {
		sectionFailed("upcoming_shifts", err)
	} else if shifts != nil {
		result.UpcomingShifts = shifts
	}

	assignments, err := deps.RoleStore.ListAll(ctx)
	if err != nil {
		sectionFailed("roles", err)
	}
	result.Stats = loadAdminStats(ctx, query.Now, assignments, deps)
	result.Users, result.UsersPage = loadUsers(ctx, query.Users, result.Stats.TotalUsers, assignments, deps)
	result.RecentActivity = loadRecentActivity(ctx, deps)
	return result
}

func loadAdminStats(ctx context.Context, now time.Time, assignments []account.RoleAssignment, deps GetAdminDashboardDeps) AdminStats {
	s := AdminStats{
		RoleCounts:     stats.RoleCounts(assignments),
		TotalDonations: decimal.Zero,
	}
	if n, err := deps.AccountStore.Count(ctx); err == nil {
		s.TotalUsers = n
	} else {
		sectionFailed("total_users", err)
	}
	if total, err := deps.DonationStore.SumAmounts(ctx, ""); err == nil {
		s.TotalDonations = total
	} else {
		sectionFailed("total_donations", err)
	}
	if n, err := deps.AlertStore.CountActive(ctx); err == nil {
		s.ActiveAlerts = n
	} else {
		sectionFailed("active_alerts", err)
	}
	if n, err := deps.ShiftStore.Count(ctx, shiftstore.ListFilter{StartsFrom: now}); err == nil {
		s.UpcomingShifts = n
	} else {
		sectionFailed("upcoming_shift_count", err)
	}
	if n, err := deps.SignupStore.CountActive(ctx); err == nil {
		s.TotalShiftSignups = n
	} else {
		sectionFailed("total_signups", err)
	}
	return s
}

func loadUsers(ctx context.Context, page listutil.PageParams, total int, assignments []account.RoleAssignment, deps GetAdminDashboardDeps) ([]account.User, listutil.PageInfo) {
	info := listutil.NewPageInfo(page.Page, page.PerPage, total)
	users, err := deps.AccountStore.List(ctx, accountstore.ListFilter{Limit: info.PerPage, Offset: info.Offset()})
	if err != nil {
		sectionFailed("users", err)
		return []account.User{}, info
	}

	return attachRoles(users, assignments), info
}

// QueryGetRecentActivity returns the admin activity feed on its own.
func QueryGetRecentActivity(ctx context.Context, deps GetAdminDashboardDeps) []ActivityItem {
	return loadRecentActivity(ctx, deps)
}

// loadRecentActivity merges the newest donations and signups, newest first.
func loadRecentActivity(ctx context.Context, deps GetAdminDashboardDeps) []ActivityItem {
	var donated, signedUp []ActivityItem
	var userIDs []string

	if donations, err := deps.DonationStore.ListRecent(ctx, AdminActivityPerKind); err != nil {
		sectionFailed("recent_donations", err)
	} else {
		for _, d := range donations {
			donated = append(donated, ActivityItem{ID: d.ID, Kind: ActivityDonation, UserName: d.DonorID, Action: d.Label(), At: d.CreatedAt})
			userIDs = append(userIDs, d.DonorID)
		}
	}
	if bookings, err := deps.SignupStore.ListRecent(ctx, AdminActivityPerKind); err != nil {
		sectionFailed("recent_signups", err)
	} else {
		for _, b := range bookings {
			signedUp = append(signedUp, ActivityItem{ID: b.Signup.ID, Kind: ActivitySignup, UserName: b.Signup.VolunteerID, Action: "signed up for " + b.Shift.Title, At: b.Signup.CreatedAt})
			userIDs = append(userIDs, b.Signup.VolunteerID)
		}
	}
	items := activity.Merge(AdminActivityTotal, donated, signedUp)
	if len(items) == 0 {
		return []ActivityItem{}
	}

	names, err := deps.AccountStore.ProfileNames(ctx, userIDs)
	if err != nil {
		sectionFailed("activity_names", err)
	}
	for i := range items {
		if name, ok := names[items[i].UserName]; ok && name != "" {
			items[i].UserName = name
		} else {
			items[i].UserName = unknownName
		}
	}
	return items
}

func sectionFailed(section string, err error) {
	zap.L().Warn("dashboard_event",
		zap.String("event", "section_failed"),
		zap.String("section", section),
		zap.Error(err),
	)
}
