package jwt

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned by Inspect for opaque or malformed tokens.
var ErrNotJWT = errors.New("token is not a JWT")

// Claims is the subset of registered claims the client cares about.
type Claims struct {
	Subject   string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token expiry is at or before now. Tokens
// without an exp claim never expire.
func (c Claims) Expired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt)
}

// Remaining returns the time left before expiry, zero when expired or
// when the token carries no exp claim.
func (c Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt.IsZero() || c.Expired(now) {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}

// Inspect decodes token without verifying its signature. A "Bearer "
// prefix is tolerated.
func Inspect(token string) (*Claims, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if strings.Count(token, ".") != 2 {
		return nil, ErrNotJWT
	}
	var rc jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &rc); err != nil {
		return nil, errors.Join(ErrNotJWT, err)
	}
	return fromRegistered(&rc), nil
}

func fromRegistered(rc *jwt.RegisteredClaims) *Claims {
	c := &Claims{Subject: rc.Subject, Issuer: rc.Issuer}
	if rc.IssuedAt != nil {
		c.IssuedAt = rc.IssuedAt.Time
	}
	if rc.ExpiresAt != nil {
		c.ExpiresAt = rc.ExpiresAt.Time
	}
	return c
}
