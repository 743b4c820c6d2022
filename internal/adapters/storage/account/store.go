package account

import (
	"context"

	domain "reliefportal/internal/domain/account"
)

// Store persists accounts and their profiles.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	Create(ctx context.Context, acct domain.Account, profile domain.Profile, roles ...domain.RoleAssignment) error
	Save(ctx context.Context, acct domain.Account) error
	List(ctx context.Context, filter ListFilter) ([]domain.User, error)
	Count(ctx context.Context) (int, error)
	GetProfile(ctx context.Context, userID string) (domain.Profile, error)
	SaveProfile(ctx context.Context, profile domain.Profile) error
	ProfileNames(ctx context.Context, userIDs []string) (map[string]string, error)
}

// ListFilter carries filtering parameters for List operations.
type ListFilter struct {
	Limit  int
	Offset int
}
