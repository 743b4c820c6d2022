// Package auth is the portal's authentication provider: email/password
// accounts, revocable server-side sessions, HS256 access tokens and push
// notifications of auth-state changes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"reliefportal/internal/domain/account"
	"reliefportal/internal/domain/apperr"
	"reliefportal/internal/domain/identity"
)

// Errors returned inside CredentialError.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account is temporarily locked after repeated failed sign-ins")
	ErrSessionExpired     = errors.New("session has expired, please sign in again")
	ErrInvalidToken       = errors.New("invalid access token")
	ErrEmailTaken         = errors.New("email already registered")
)

// Default lifetimes.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultSessionTTL = 24 * time.Hour
)

// AccountStore is the persistence the provider needs.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
	GetByEmail(ctx context.Context, email string) (account.Account, error)
	Create(ctx context.Context, acct account.Account, profile account.Profile, roles ...account.RoleAssignment) error
	Save(ctx context.Context, acct account.Account) error
	GetProfile(ctx context.Context, userID string) (account.Profile, error)
}

// Config tunes a Provider. Zero durations take the defaults.
type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	SessionTTL time.Duration
	Now        func() time.Time
	GenerateID func() string
}

// Provider implements sign-up, sign-in, sign-out and token handling.
type Provider struct {
	accounts   AccountStore
	sessions   *sessionTable
	secret     []byte
	accessTTL  time.Duration
	sessionTTL time.Duration
	now        func() time.Time
	generateID func() string

	mu        sync.RWMutex
	nextID    int
	listeners map[int]func(identity.AuthEvent)
}

// NewProvider creates a provider over accounts.
// PRE: cfg.Secret is non-empty and cfg.GenerateID is set
func NewProvider(accounts AccountStore, cfg Config) *Provider {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Provider{
		accounts:   accounts,
		sessions:   newSessionTable(),
		secret:     cfg.Secret,
		accessTTL:  cfg.AccessTTL,
		sessionTTL: cfg.SessionTTL,
		now:        cfg.Now,
		generateID: cfg.GenerateID,
		listeners:  make(map[int]func(identity.AuthEvent)),
	}
}

// SignUp creates an account, its profile and the given roles together.
// PRE: none; all input is validated here
// POST: Returns the new identity, or a CredentialError for a bad email,
// weak password or an email already in use. A StoreError leaves nothing
// behind, so the same sign-up can be retried
func (p *Provider) SignUp(ctx context.Context, email, password string, profile account.Profile, roles ...account.Role) (identity.Identity, error) {
	now := p.now()
	acct := account.Account{
		ID:        p.generateID(),
		Email:     account.NormalizeEmail(email),
		CreatedAt: now,
	}
	if err := acct.Validate(); err != nil {
		return identity.Identity{}, apperr.Credential(err)
	}
	if err := acct.SetPassword(password); err != nil {
		return identity.Identity{}, apperr.Credential(err)
	}
	if err := profile.Validate(); err != nil {
		return identity.Identity{}, apperr.Validation(err)
	}
	profile.UserID = acct.ID
	profile.CreatedAt = now
	profile.UpdatedAt = now

	grants := make([]account.RoleAssignment, 0, len(roles))
	for _, r := range roles {
		if !r.Valid() {
			return identity.Identity{}, apperr.Validation(account.ErrInvalidRole)
		}
		grants = append(grants, account.RoleAssignment{ID: p.generateID(), UserID: acct.ID, Role: r, CreatedAt: now})
	}

	if _, err := p.accounts.GetByEmail(ctx, acct.Email); err == nil {
		return identity.Identity{}, apperr.Credential(ErrEmailTaken)
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return identity.Identity{}, asStoreError(err)
	}
	if err := p.accounts.Create(ctx, acct, profile, grants...); err != nil {
		if apperr.Is(err, apperr.KindValidation) {
			return identity.Identity{}, apperr.Credential(fmt.Errorf("%w: %w", ErrEmailTaken, err))
		}
		return identity.Identity{}, asStoreError(err)
	}

	zap.L().Info("auth_event", zap.String("event", "account_created"), zap.String("user_id", acct.ID))
	return identity.Identity{ID: acct.ID, Email: acct.Email, Profile: profile, CreatedAt: now}, nil
}

// asStoreError tags an untyped persistence failure as a StoreError.
func asStoreError(err error) error {
	var typed *apperr.Error
	if errors.As(err, &typed) {
		return err
	}
	return apperr.Store(err)
}

// SignIn checks credentials and opens a session.
// POST: On success a SIGNED_IN event is pushed. After account.MaxFailedLogins
// consecutive failures the account is locked for account.LockoutDuration.
func (p *Provider) SignIn(ctx context.Context, email, password string) (identity.Session, error) {
	now := p.now()
	acct, err := p.accounts.GetByEmail(ctx, account.NormalizeEmail(email))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			zap.L().Info("auth_event", zap.String("event", "login_failed"), zap.String("reason", "unknown_email"))
			return identity.Session{}, apperr.Credential(ErrInvalidCredentials)
		}
		return identity.Session{}, err
	}
	if acct.IsLocked(now) {
		zap.L().Warn("auth_event", zap.String("event", "login_locked"), zap.String("user_id", acct.ID))
		return identity.Session{}, apperr.Credential(ErrAccountLocked)
	}
	if err := acct.CheckPassword(password); err != nil {
		acct.RecordFailedLogin(now)
		if saveErr := p.accounts.Save(ctx, acct); saveErr != nil {
			return identity.Session{}, saveErr
		}
		zap.L().Info("auth_event",
			zap.String("event", "login_failed"),
			zap.String("user_id", acct.ID),
			zap.Int("failed_logins", acct.FailedLogins),
		)
		return identity.Session{}, apperr.Credential(ErrInvalidCredentials)
	}
	if acct.FailedLogins > 0 || !acct.LockedUntil.IsZero() {
		acct.ResetFailedLogins()
		if err := p.accounts.Save(ctx, acct); err != nil {
			return identity.Session{}, err
		}
	}

	id, err := generateToken()
	if err != nil {
		return identity.Session{}, err
	}
	s := identity.Session{
		ID:        id,
		UserID:    acct.ID,
		Email:     acct.Email,
		CreatedAt: now,
		ExpiresAt: now.Add(p.sessionTTL),
	}
	if s.AccessToken, err = p.issue(s, now); err != nil {
		return identity.Session{}, err
	}
	p.sessions.put(s)

	zap.L().Info("auth_event", zap.String("event", "login_success"), zap.String("user_id", acct.ID))
	p.emit(identity.AuthEvent{Type: identity.EventSignedIn, Session: s})
	return s, nil
}

// SignOut revokes the session. It always succeeds; signing out an unknown
// session pushes no event.
func (p *Provider) SignOut(_ context.Context, sessionID string) {
	s, ok := p.sessions.remove(sessionID)
	if !ok {
		return
	}
	zap.L().Info("auth_event", zap.String("event", "logout"), zap.String("user_id", s.UserID))
	p.emit(identity.AuthEvent{Type: identity.EventSignedOut, Session: s})
}

// Refresh issues a new access token for a live session.
// POST: A TOKEN_REFRESHED event is pushed; the session expiry is unchanged
func (p *Provider) Refresh(_ context.Context, sessionID string) (identity.Session, error) {
	now := p.now()
	s, ok := p.lookup(sessionID, now)
	if !ok {
		return identity.Session{}, apperr.Credential(ErrSessionExpired)
	}
	token, err := p.issue(s, now)
	if err != nil {
		return identity.Session{}, err
	}
	s.AccessToken = token
	p.sessions.put(s)
	p.emit(identity.AuthEvent{Type: identity.EventTokenRefreshed, Session: s})
	return s, nil
}

// GetSession returns the live session for id.
func (p *Provider) GetSession(id string) (identity.Session, bool) {
	return p.lookup(id, p.now())
}

// lookup returns the live session for id. A session found expired is
// removed and signed out.
func (p *Provider) lookup(id string, now time.Time) (identity.Session, bool) {
	s, live, expired := p.sessions.get(id, now)
	if expired {
		if _, removed := p.sessions.remove(id); removed {
			p.expire(s)
		}
	}
	if !live {
		return identity.Session{}, false
	}
	return s, true
}

// expire pushes SIGNED_OUT for a session that ran out, so per-session state
// held by listeners is released the same way as on an explicit sign-out.
func (p *Provider) expire(s identity.Session) {
	zap.L().Info("auth_event", zap.String("event", "session_expired"), zap.String("user_id", s.UserID))
	p.emit(identity.AuthEvent{Type: identity.EventSignedOut, Session: s})
}

// GetUser loads an identity with its profile. A missing profile is not an error.
func (p *Provider) GetUser(ctx context.Context, userID string) (identity.Identity, error) {
	acct, err := p.accounts.GetByID(ctx, userID)
	if err != nil {
		return identity.Identity{}, err
	}
	profile, err := p.accounts.GetProfile(ctx, userID)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return identity.Identity{}, err
	}
	return identity.Identity{ID: acct.ID, Email: acct.Email, Profile: profile, CreatedAt: acct.CreatedAt}, nil
}

// SweepExpired drops expired sessions and signs each one out.
// POST: One SIGNED_OUT event is pushed per removed session
func (p *Provider) SweepExpired() int {
	expired := p.sessions.sweep(p.now())
	for _, s := range expired {
		p.expire(s)
	}
	return len(expired)
}

// RunSweeper calls SweepExpired every interval until ctx is done.
func (p *Provider) RunSweeper(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := p.SweepExpired(); n > 0 {
				zap.L().Debug("auth_event", zap.String("event", "sessions_swept"), zap.Int("count", n))
			}
		}
	}
}

// OnAuthStateChange registers fn for auth events.
// POST: The returned function unregisters fn; calling it twice is safe
func (p *Provider) OnAuthStateChange(fn func(identity.AuthEvent)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

func (p *Provider) emit(ev identity.AuthEvent) {
	p.mu.RLock()
	fns := make([]func(identity.AuthEvent), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.RUnlock()

	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					zap.L().Error("auth_event", zap.String("event", "listener_panic"), zap.Any("panic", r))
				}
			}()
			fn(ev)
		}()
	}
}
