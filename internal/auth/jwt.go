package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims defines the structured data the helpdesk puts in its access tokens
type Claims struct {
	Email   string `json:"email,omitempty"`
	Role    string `json:"role,omitempty"`
	Company string `json:"company,omitempty"`
	jwt.RegisteredClaims
}

// ParseClaims reads the claims of an access token without verifying its
// signature. The client never holds the signing key; it only needs the
// expiry and identity the server already vouched for on login.
func ParseClaims(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return nil, errors.New("empty token")
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Expiry returns the token's exp claim, or the zero time when the token has
// none or cannot be read.
func Expiry(tokenString string) time.Time {
	claims, err := ParseClaims(tokenString)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// UserEmail returns the email carried by the token, falling back to sub.
func (c *Claims) UserEmail() string {
	if c.Email != "" {
		return c.Email
	}
	return c.RegisteredClaims.Subject
}
