package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"reliefportal/internal/domain/apperr"
	"reliefportal/internal/domain/identity"
)

const tokenIssuer = "reliefportal"

type accessClaims struct {
	SessionID string `json:"sid"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

func (p *Provider) issue(s identity.Session, now time.Time) (string, error) {
	expires := now.Add(p.accessTTL)
	if expires.After(s.ExpiresAt) {
		expires = s.ExpiresAt
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		SessionID: s.ID,
		Email:     s.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   s.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	return token.SignedString(p.secret)
}

// Verify checks an access token and returns its live session.
// POST: Fails with CredentialError when the token is malformed, expired, or
// its session has been signed out
func (p *Provider) Verify(raw string) (identity.Session, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return identity.Session{}, apperr.Credential(ErrSessionExpired)
		}
		return identity.Session{}, apperr.Credential(ErrInvalidToken)
	}
	s, ok := p.lookup(claims.SessionID, p.now())
	if !ok || s.UserID != claims.Subject {
		return identity.Session{}, apperr.Credential(ErrSessionExpired)
	}
	return s, nil
}
