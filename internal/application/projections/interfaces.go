package projections

import (
	"context"

	"github.com/shopspring/decimal"

	accountstore "reliefportal/internal/adapters/storage/account"
	shiftstore "reliefportal/internal/adapters/storage/shift"
	"reliefportal/internal/domain/account"
	"reliefportal/internal/domain/alert"
	"reliefportal/internal/domain/donation"
	"reliefportal/internal/domain/shift"
	"reliefportal/internal/domain/signup"
)

// AccountStore interface for user directory queries.
type AccountStore interface {
	List(ctx context.Context, filter accountstore.ListFilter) ([]account.User, error)
	Count(ctx context.Context) (int, error)
	ProfileNames(ctx context.Context, userIDs []string) (map[string]string, error)
}

// RoleStore interface for role queries.
type RoleStore interface {
	ListAll(ctx context.Context) ([]account.RoleAssignment, error)
}

// AlertStore interface for alert queries.
type AlertStore interface {
	ListActive(ctx context.Context, limit int) ([]alert.Alert, error)
	ListRecent(ctx context.Context, limit int) ([]alert.Alert, error)
	CountActive(ctx context.Context) (int, error)
}

// ShiftStore interface for shift queries.
type ShiftStore interface {
	List(ctx context.Context, filter shiftstore.ListFilter) ([]shift.Shift, error)
	Count(ctx context.Context, filter shiftstore.ListFilter) (int, error)
}

// SignupStore interface for signup queries.
type SignupStore interface {
	ListForVolunteer(ctx context.Context, volunteerID string, activeOnly bool) ([]signup.Booking, error)
	ListRecent(ctx context.Context, limit int) ([]signup.Booking, error)
	CountActive(ctx context.Context) (int, error)
}

// DonationStore interface for donation queries.
type DonationStore interface {
	ListForDonor(ctx context.Context, donorID string, limit int) ([]donation.Donation, error)
	ListRecent(ctx context.Context, limit int) ([]donation.Donation, error)
	SumAmounts(ctx context.Context, donorID string) (decimal.Decimal, error)
}
