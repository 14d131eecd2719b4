package session

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultLifetime applies when the access token carries no readable expiry.
const DefaultLifetime = 24 * time.Hour

// Domain errors
var (
	ErrEmptyToken = errors.New("access token cannot be empty")
	ErrEmptyEmail = errors.New("email cannot be empty")
)

// Session binds a browser cookie to the backend bearer token obtained at login.
type Session struct {
	ID          string
	AccessToken string
	Email       string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// New creates a session for a freshly issued access token.
// PRE: token and email are non-empty
// POST: ID is a random UUID; ExpiresAt comes from the token's exp claim or DefaultLifetime
func New(token, email string, now time.Time) (Session, error) {
	if strings.TrimSpace(token) == "" {
		return Session{}, ErrEmptyToken
	}
	if strings.TrimSpace(email) == "" {
		return Session{}, ErrEmptyEmail
	}
	return Session{
		ID:          uuid.NewString(),
		AccessToken: token,
		Email:       email,
		CreatedAt:   now,
		ExpiresAt:   TokenExpiry(token, now),
	}, nil
}

// IsExpired reports whether the session has passed its expiry.
// INVARIANT: Session fields are not mutated
func (s Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Authenticated reports whether the session can make backend calls.
func (s Session) Authenticated(now time.Time) bool {
	return s.AccessToken != "" && !s.IsExpired(now)
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// The console never trusts the claim for authorization; the backend does that.
// It only decides when to stop offering the token.
// PRE: none
// POST: returns issuedAt+DefaultLifetime for opaque tokens or tokens without exp
func TokenExpiry(token string, issuedAt time.Time) time.Time {
	fallback := issuedAt.Add(DefaultLifetime)
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return fallback
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fallback
	}
	return exp.Time
}
