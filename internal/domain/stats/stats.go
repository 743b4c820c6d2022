// Package stats holds pure reducers over already-loaded collections. Nothing
// here touches a store; every function is deterministic.
package stats

import (
	"time"

	"github.com/shopspring/decimal"

	"reliefportal/internal/domain/account"
	"reliefportal/internal/domain/alert"
	"reliefportal/internal/domain/donation"
	"reliefportal/internal/domain/shift"
	"reliefportal/internal/domain/signup"
)

// ShiftsPerBadge is how many completed shifts earn one badge.
const ShiftsPerBadge = 2

// TotalDonated sums donation amounts, counting in-kind donations as zero.
func TotalDonated(donations []donation.Donation) decimal.Decimal {
	total := decimal.Zero
	for _, d := range donations {
		total = total.Add(d.AmountOrZero())
	}
	return total
}

// CompletedShiftCount counts shifts whose status is completed.
func CompletedShiftCount(shifts []shift.Shift) int {
	n := 0
	for _, s := range shifts {
		if s.Status == shift.StatusCompleted {
			n++
		}
	}
	return n
}

// BadgeCount is floor(completed / ShiftsPerBadge). Negative input yields 0.
func BadgeCount(completed int) int {
	if completed <= 0 {
		return 0
	}
	return completed / ShiftsPerBadge
}

// ActiveAlertCount counts alerts with the active flag set.
func ActiveAlertCount(alerts []alert.Alert) int {
	n := 0
	for _, a := range alerts {
		if a.IsActive {
			n++
		}
	}
	return n
}

// UpcomingShiftCount counts shifts starting at or after now.
func UpcomingShiftCount(shifts []shift.Shift, now time.Time) int {
	n := 0
	for _, s := range shifts {
		if s.IsUpcoming(now) {
			n++
		}
	}
	return n
}

// TotalSignupCount counts confirmed signups.
func TotalSignupCount(signups []signup.Signup) int {
	n := 0
	for _, s := range signups {
		if s.IsActive() {
			n++
		}
	}
	return n
}

// RoleCounts tallies role assignments per role.
func RoleCounts(assignments []account.RoleAssignment) map[account.Role]int {
	out := make(map[account.Role]int, len(account.ValidRoles))
	for _, r := range account.ValidRoles {
		out[r] = 0
	}
	for _, a := range assignments {
		if a.Role.Valid() {
			out[a.Role]++
		}
	}
	return out
}
