package role

import (
	"context"

	domain "reliefportal/internal/domain/account"
)

// Store persists role assignments. A user may hold several roles.
type Store interface {
	ListForUser(ctx context.Context, userID string) ([]domain.RoleAssignment, error)
	Add(ctx context.Context, assignment domain.RoleAssignment) error
	Remove(ctx context.Context, userID string, role domain.Role) error
	ListAll(ctx context.Context) ([]domain.RoleAssignment, error)
}
