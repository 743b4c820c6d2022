// Package identity holds the signed-in user and session types shared by the
// auth provider and the session manager.
package identity

import (
	"time"

	"reliefportal/internal/domain/account"
)

// Identity is a user as the auth provider knows it.
type Identity struct {
	ID        string
	Email     string
	Profile   account.Profile
	CreatedAt time.Time
}

// DisplayName returns the profile name or the email.
func (i Identity) DisplayName() string {
	return i.Profile.DisplayName(i.Email)
}

// Session is a signed-in client. ID is the opaque value carried in the
// session cookie; AccessToken is the bearer JWT for API calls.
type Session struct {
	ID          string
	UserID      string
	Email       string
	AccessToken string
	CreatedAt   time.Time
	ExpiresAt   time.Time // session expiry; the access token expires sooner
}

// EventType names an auth-state change.
type EventType string

// EventType constants
const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
)

// AuthEvent is pushed to auth-state listeners.
type AuthEvent struct {
	Type    EventType
	Session Session
}
