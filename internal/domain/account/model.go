package account

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Max length constants for user-editable fields.
const (
	MaxEmailLength    = 254
	MaxNameLength     = 200
	MaxPhoneLength    = 32
	MaxLocationLength = 200
	MinPasswordLength = 8
)

// MaxFailedLogins is the number of consecutive failures that locks an account.
const MaxFailedLogins = 5

// LockoutDuration is how long a locked account stays locked.
const LockoutDuration = 15 * time.Minute

// HashCost is the bcrypt cost used by SetPassword. Tests lower it.
var HashCost = 12

// Domain errors
var (
	ErrInvalidEmail     = errors.New("email must contain '@'")
	ErrEmptyEmail       = errors.New("email cannot be empty")
	ErrEmailTooLong     = errors.New("email cannot exceed 254 characters")
	ErrEmptyPassword    = errors.New("password cannot be empty")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrWrongPassword    = errors.New("incorrect password")
	ErrNameTooLong      = errors.New("full name cannot exceed 200 characters")
	ErrPhoneTooLong     = errors.New("phone cannot exceed 32 characters")
	ErrLocationTooLong  = errors.New("location cannot exceed 200 characters")
)

// Account is an identity record: the credentials half of a User.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	FailedLogins int
	LockedUntil  time.Time
	CreatedAt    time.Time
}

// Profile holds the display and contact half of a User.
type Profile struct {
	UserID    string
	FullName  string
	Phone     string
	Location  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate checks if the Account has valid data.
// PRE: Account struct is populated
// POST: Returns nil if valid, error otherwise
func (a *Account) Validate() error {
	if strings.TrimSpace(a.Email) == "" {
		return ErrEmptyEmail
	}
	if len(a.Email) > MaxEmailLength {
		return ErrEmailTooLong
	}
	if !strings.Contains(a.Email, "@") {
		return ErrInvalidEmail
	}
	return nil
}

// SetPassword hashes and stores a password using bcrypt.
// PRE: plaintext is non-empty and >= MinPasswordLength characters
// POST: PasswordHash is set to bcrypt hash
func (a *Account) SetPassword(plaintext string) error {
	if plaintext == "" {
		return ErrEmptyPassword
	}
	if len(plaintext) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), HashCost)
	if err != nil {
		return err
	}
	a.PasswordHash = string(hash)
	return nil
}

// CheckPassword verifies a plaintext password against the stored hash.
// PRE: PasswordHash is set
// INVARIANT: Account fields are not mutated
func (a *Account) CheckPassword(plaintext string) error {
	if a.PasswordHash == "" {
		return ErrWrongPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(plaintext)); err != nil {
		return ErrWrongPassword
	}
	return nil
}

// IsLocked returns true if the account is locked out at now.
// INVARIANT: Account fields are not mutated
func (a *Account) IsLocked(now time.Time) bool {
	if a.LockedUntil.IsZero() {
		return false
	}
	return now.Before(a.LockedUntil)
}

// RecordFailedLogin increments the failed login counter and locks the account
// after MaxFailedLogins failures.
// POST: FailedLogins incremented; LockedUntil set if the limit is reached
func (a *Account) RecordFailedLogin(now time.Time) {
	a.FailedLogins++
	if a.FailedLogins >= MaxFailedLogins {
		a.LockedUntil = now.Add(LockoutDuration)
	}
}

// ResetFailedLogins clears the failed login counter and lock.
// POST: FailedLogins is 0, LockedUntil is zero
func (a *Account) ResetFailedLogins() {
	a.FailedLogins = 0
	a.LockedUntil = time.Time{}
}

// Validate checks profile field lengths. All profile fields are optional.
func (p *Profile) Validate() error {
	if len(p.FullName) > MaxNameLength {
		return ErrNameTooLong
	}
	if len(p.Phone) > MaxPhoneLength {
		return ErrPhoneTooLong
	}
	if len(p.Location) > MaxLocationLength {
		return ErrLocationTooLong
	}
	return nil
}

// DisplayName returns the full name, falling back to the given email.
func (p Profile) DisplayName(fallback string) string {
	if name := strings.TrimSpace(p.FullName); name != "" {
		return name
	}
	return fallback
}

// User joins an account with its profile and role rows for directory listings.
type User struct {
	Account Account
	Profile Profile
	Roles   []Role
}
