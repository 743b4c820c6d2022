package signup

import (
	"context"
	"time"

	domain "reliefportal/internal/domain/signup"
)

// Store persists shift signups and owns the shift's volunteer counter.
// Every mutation is a single constrained write: a partial unique index keeps
// one confirmed row per (shift, volunteer), and the counter moves in the same
// transaction as the row.
type Store interface {
	SignUp(ctx context.Context, value domain.Signup, enforceCapacity bool) error
	Cancel(ctx context.Context, shiftID, volunteerID string, now time.Time) (bool, error)
	CompleteShift(ctx context.Context, shiftID, actorID string, isAdmin bool, now time.Time) error
	ActiveFor(ctx context.Context, shiftID, volunteerID string) (*domain.Signup, error)
	ListForVolunteer(ctx context.Context, volunteerID string, activeOnly bool) ([]domain.Booking, error)
	ListForShift(ctx context.Context, shiftID string) ([]domain.Signup, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Booking, error)
	CountActive(ctx context.Context) (int, error)
}
