package orchestrators

import (
	"context"
	"time"

	"go.uber.org/zap"

	"reliefportal/internal/domain/account"
	"reliefportal/internal/domain/apperr"
	"reliefportal/internal/domain/identity"
)

// IdentitySignUp defines the identity provider interface needed to create users.
type IdentitySignUp interface {
	SignUp(ctx context.Context, email, password string, profile account.Profile, roles ...account.Role) (identity.Identity, error)
}

// SeedAdminInput carries input for the orchestrator.
type SeedAdminInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
	FullName string
}

// SeedAdminDeps holds dependencies for SeedAdmin.
type SeedAdminDeps struct {
	Auth         IdentitySignUp
	AccountStore AccountLookupStore
	RoleStore    RoleStoreForGrant
	Now          func() time.Time
	GenerateID   func() string
}

// SeedAdminResult reports what SeedAdmin did.
type SeedAdminResult struct {
	UserID  string
	Created bool
}

// ExecuteSeedAdmin makes sure an admin account exists for Email.
// POST: The account exists and holds admin; running it again is a no-op
func ExecuteSeedAdmin(ctx context.Context, input SeedAdminInput, deps SeedAdminDeps) (SeedAdminResult, error) {
	if err := validateInput(input); err != nil {
		return SeedAdminResult{}, err
	}
	profile := account.Profile{FullName: input.FullName}
	userID, created, err := ensureUser(ctx, input.Email, input.Password, profile, []account.Role{account.RoleAdmin}, deps.Auth, deps.AccountStore)
	if err != nil {
		return SeedAdminResult{}, err
	}
	if !created {
		err = deps.RoleStore.Add(ctx, account.RoleAssignment{
			ID:        newID(deps.GenerateID),
			UserID:    userID,
			Role:      account.RoleAdmin,
			CreatedAt: clock(deps.Now),
		})
		if err != nil {
			return SeedAdminResult{}, apperr.Store(err)
		}
	}

	zap.L().Info("auth_event",
		zap.String("event", "admin_seeded"),
		zap.String("user_id", userID),
		zap.Bool("created", created),
	)
	return SeedAdminResult{UserID: userID, Created: created}, nil
}

// ensureUser returns the id of the account for email, creating it with roles
// when missing. An existing account is returned untouched.
func ensureUser(ctx context.Context, email, password string, profile account.Profile, roles []account.Role, auth IdentitySignUp, accounts AccountLookupStore) (string, bool, error) {
	existing, err := accounts.GetByEmail(ctx, account.NormalizeEmail(email))
	if err == nil {
		return existing.ID, false, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return "", false, err
	}
	user, err := auth.SignUp(ctx, email, password, profile, roles...)
	if err != nil {
		return "", false, err
	}
	return user.ID, true, nil
}
