package donation

import (
	"context"

	"github.com/shopspring/decimal"

	domain "reliefportal/internal/domain/donation"
)

// Store persists donation records. Donations are append-only.
type Store interface {
	Create(ctx context.Context, value domain.Donation) error
	ListForDonor(ctx context.Context, donorID string, limit int) ([]domain.Donation, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Donation, error)
	Count(ctx context.Context) (int, error)
	SumAmounts(ctx context.Context, donorID string) (decimal.Decimal, error)
}
