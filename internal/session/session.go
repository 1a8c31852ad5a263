package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is a persisted identity-provider session for one front-end user.
type Session struct {
	// UserKey identifies the front-end user (e.g. a Telegram user ID).
	UserKey string `json:"user_key"`

	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresAt is zero when unknown; the token's own exp claim is consulted too.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenExpiry reads the exp claim of a JWT access token without verifying its
// signature. ok is false for opaque tokens or tokens without exp.
func TokenExpiry(token string) (exp time.Time, ok bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expiry returns the earliest known expiry of the session.
func (s Session) Expiry() (time.Time, bool) {
	exp, ok := TokenExpiry(s.AccessToken)
	if !s.ExpiresAt.IsZero() && (!ok || s.ExpiresAt.Before(exp)) {
		return s.ExpiresAt, true
	}
	return exp, ok
}

// Valid reports whether the session can still authenticate requests at now.
func (s Session) Valid(now time.Time) bool {
	if s.AccessToken == "" {
		return false
	}
	if exp, ok := s.Expiry(); ok && !now.Before(exp) {
		return false
	}
	return true
}
