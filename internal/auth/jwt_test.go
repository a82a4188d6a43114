package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-secret"))
	require.NoError(t, err)
	return token
}

func TestParseClaims(t *testing.T) {
	expiry := time.Now().Add(2 * time.Hour).Truncate(time.Second)

	t.Run("reads identity and expiry", func(t *testing.T) {
		token := signed(t, &Claims{
			Email: "ann@example.com",
			Role:  "Admin",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(expiry),
			},
		})

		claims, err := ParseClaims(token)
		require.NoError(t, err)

		assert.Equal(t, "ann@example.com", claims.UserEmail())
		assert.Equal(t, "Admin", claims.Role)
		assert.WithinDuration(t, expiry, claims.ExpiresAt.Time, time.Second)
	})

	t.Run("falls back to sub and accepts a bearer prefix", func(t *testing.T) {
		token := signed(t, jwt.RegisteredClaims{Subject: "bob@example.com"})

		claims, err := ParseClaims("Bearer " + token)
		require.NoError(t, err)
		assert.Equal(t, "bob@example.com", claims.UserEmail())
	})

	t.Run("expired tokens still parse", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)
		token := signed(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(past)})

		assert.WithinDuration(t, past, Expiry(token), time.Second)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseClaims("not-a-token")
		assert.Error(t, err)

		_, err = ParseClaims("")
		assert.Error(t, err)

		assert.True(t, Expiry("not-a-token").IsZero())
	})

	t.Run("no exp claim", func(t *testing.T) {
		token := signed(t, jwt.RegisteredClaims{Subject: "x"})
		assert.True(t, Expiry(token).IsZero())
	})
}
