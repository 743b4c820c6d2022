package alert

import (
	"context"

	domain "reliefportal/internal/domain/alert"
)

// Store persists emergency alerts.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Alert, error)
	Save(ctx context.Context, value domain.Alert) error
	ListActive(ctx context.Context, limit int) ([]domain.Alert, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Alert, error)
	CountActive(ctx context.Context) (int, error)
}
