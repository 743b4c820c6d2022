package shift

import (
	"context"
	"time"

	domain "reliefportal/internal/domain/shift"
)

// Store persists volunteer shifts. The current_volunteers counter is owned
// by the signup store; Cancel never writes it.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Shift, error)
	Create(ctx context.Context, value domain.Shift) error
	CreateMany(ctx context.Context, values []domain.Shift) error
	Cancel(ctx context.Context, id string, now time.Time) (domain.Shift, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Shift, error)
	Count(ctx context.Context, filter ListFilter) (int, error)
}

// ListFilter carries filtering parameters for List operations.
// Zero values disable a filter.
type ListFilter struct {
	StartsFrom time.Time
	Statuses   []domain.Status
	SeriesID   string
	Limit      int
	Offset     int
}
