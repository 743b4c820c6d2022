package projections

import (
	"context"
	"sort"

	shiftstore "reliefportal/internal/adapters/storage/shift"
	"reliefportal/internal/domain/shift"
	"reliefportal/internal/domain/signup"
	"reliefportal/internal/domain/stats"
)

// GetVolunteerDashboardQuery carries input for the volunteer dashboard projection.
type GetVolunteerDashboardQuery struct {
	VolunteerID string
}

// GetVolunteerDashboardDeps holds dependencies for the volunteer dashboard projection.
type GetVolunteerDashboardDeps struct {
	ShiftStore  ShiftStore
	SignupStore SignupStore
}

// VolunteerStats carries the numbers on the volunteer dashboard header.
type VolunteerStats struct {
	TotalShifts     int
	CompletedShifts int
	BadgesEarned    int
}

// VolunteerDashboardResult carries the output of the volunteer dashboard projection.
type VolunteerDashboardResult struct {
	AvailableShifts []shift.Shift
	MyShifts        []signup.Booking
	SignupIDs       map[string]bool // shift ids with an active signup
	Stats           VolunteerStats
}

// SignedUp reports whether the volunteer holds an active signup for shiftID.
func (r VolunteerDashboardResult) SignedUp(shiftID string) bool {
	return r.SignupIDs[shiftID]
}

// PairState returns the derived state of the volunteer's pair with shiftID.
func (r VolunteerDashboardResult) PairState(shiftID string) signup.PairState {
	for _, b := range r.MyShifts {
		if b.Shift.ID == shiftID {
			return b.State()
		}
	}
	return signup.PairNone
}

// QueryGetVolunteerDashboard loads every shift in start order plus the
// volunteer's active bookings. Completed bookings sort last.
// PRE: VolunteerID is non-empty
// POST: Each section degrades to empty on a store error; the first error is returned alongside
func QueryGetVolunteerDashboard(ctx context.Context, query GetVolunteerDashboardQuery, deps GetVolunteerDashboardDeps) (VolunteerDashboardResult, error) {
	result := VolunteerDashboardResult{
		AvailableShifts: []shift.Shift{},
		MyShifts:        []signup.Booking{},
		SignupIDs:       make(map[string]bool),
	}
	var firstErr error

	shifts, err := deps.ShiftStore.List(ctx, shiftstore.ListFilter{})
	if err != nil {
		firstErr = err
	} else if shifts != nil {
		result.AvailableShifts = shifts
	}
	result.Stats.TotalShifts = len(result.AvailableShifts)

	bookings, err := deps.SignupStore.ListForVolunteer(ctx, query.VolunteerID, true)
	if err != nil {
		if firstErr == nil {
			firstErr = err
		}
	} else if bookings != nil {
		result.MyShifts = bookings
	}
	sort.SliceStable(result.MyShifts, func(i, j int) bool {
		ci := result.MyShifts[i].Shift.Status == shift.StatusCompleted
		cj := result.MyShifts[j].Shift.Status == shift.StatusCompleted
		return !ci && cj
	})

	mine := make([]shift.Shift, 0, len(result.MyShifts))
	for _, b := range result.MyShifts {
		result.SignupIDs[b.Shift.ID] = true
		mine = append(mine, b.Shift)
	}
	result.Stats.CompletedShifts = stats.CompletedShiftCount(mine)
	result.Stats.BadgesEarned = stats.BadgeCount(result.Stats.CompletedShifts)

	return result, firstErr
}
