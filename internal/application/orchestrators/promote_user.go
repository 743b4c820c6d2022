package orchestrators

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"reliefportal/internal/domain/account"
	"reliefportal/internal/domain/apperr"
)

// ErrSelfDemotion is returned when an admin tries to drop their own admin role.
var ErrSelfDemotion = errors.New("you cannot remove your own admin role")

// AccountLookupStore defines the account store interface needed to resolve users.
type AccountLookupStore interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
	GetByEmail(ctx context.Context, email string) (account.Account, error)
}

// RoleStoreForGrant defines the role store interface needed to grant and revoke roles.
type RoleStoreForGrant interface {
	Add(ctx context.Context, assignment account.RoleAssignment) error
	Remove(ctx context.Context, userID string, role account.Role) error
}

// PromoteUserInput carries input for the orchestrator. Exactly one of
// UserID and Email identifies the user.
type PromoteUserInput struct {
	UserID string `json:"user_id" validate:"required_without=Email"`
	Email  string `json:"email" validate:"omitempty,email"`
}

// PromoteUserDeps holds dependencies for PromoteUser.
type PromoteUserDeps struct {
	AccountStore AccountLookupStore
	RoleStore    RoleStoreForGrant
	Now          func() time.Time
	GenerateID   func() string
}

// ExecutePromoteUser grants the admin role. The user keeps their other roles.
// POST: User holds admin; promoting an admin again changes nothing
func ExecutePromoteUser(ctx context.Context, input PromoteUserInput, deps PromoteUserDeps) (account.Account, error) {
	if err := validateInput(input); err != nil {
		return account.Account{}, err
	}
	acct, err := resolveAccount(ctx, deps.AccountStore, input.UserID, input.Email)
	if err != nil {
		return account.Account{}, err
	}
	err = deps.RoleStore.Add(ctx, account.RoleAssignment{
		ID:        newID(deps.GenerateID),
		UserID:    acct.ID,
		Role:      account.RoleAdmin,
		CreatedAt: clock(deps.Now),
	})
	if err != nil {
		return account.Account{}, apperr.Store(err)
	}

	zap.L().Info("auth_event", zap.String("event", "user_promoted"), zap.String("user_id", acct.ID))
	return acct, nil
}

// RevokeRoleInput carries input for RevokeRole.
type RevokeRoleInput struct {
	UserID  string `json:"user_id" validate:"required"`
	Role    string `json:"role" validate:"required"`
	ActorID string `json:"-" validate:"required"`
}

// RevokeRoleDeps holds dependencies for RevokeRole.
type RevokeRoleDeps struct {
	RoleStore RoleStoreForGrant
}

// ExecuteRevokeRole removes one role row. Signed-in sessions of the user see
// the change through the role feed and lose access on their next navigation.
// PRE: an admin may not revoke their own admin role
// POST: The role row is gone; revoking a role not held is a no-op
func ExecuteRevokeRole(ctx context.Context, input RevokeRoleInput, deps RevokeRoleDeps) error {
	if err := validateInput(input); err != nil {
		return err
	}
	role, err := account.ParseRole(input.Role)
	if err != nil {
		return apperr.Validation(err)
	}
	if role == account.RoleAdmin && input.UserID == input.ActorID {
		return apperr.Validation(ErrSelfDemotion)
	}
	if err := deps.RoleStore.Remove(ctx, input.UserID, role); err != nil {
		return apperr.Store(err)
	}

	zap.L().Info("auth_event",
		zap.String("event", "role_revoked"),
		zap.String("user_id", input.UserID),
		zap.String("role", string(role)),
	)
	return nil
}

func resolveAccount(ctx context.Context, store AccountLookupStore, userID, email string) (account.Account, error) {
	if userID != "" {
		return store.GetByID(ctx, userID)
	}
	return store.GetByEmail(ctx, account.NormalizeEmail(email))
}
