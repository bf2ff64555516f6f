package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-verified"))
	require.NoError(t, err)
	return tok
}

func TestNew_DecodesOkapiClaims(t *testing.T) {
	iat := time.Unix(1700000000, 0)
	tok := signedToken(t, jwt.MapClaims{
		"sub":     "diku_admin",
		"user_id": "abc-123",
		"tenant":  "diku",
		"iat":     iat.Unix(),
	})

	s := New("diku", "diku_admin", tok)
	claims, ok := s.Claims()
	require.True(t, ok)
	assert.Equal(t, "diku_admin", claims.Subject)
	assert.Equal(t, "abc-123", claims.UserID)
	assert.Equal(t, "diku", claims.Tenant)
	assert.True(t, claims.IssuedAt.Equal(iat))
	assert.True(t, claims.ExpiresAt.IsZero())
	assert.Equal(t, tok, s.Token)
	assert.False(t, s.Expired(time.Now()))
}

func TestNew_OpaqueToken(t *testing.T) {
	s := New("diku", "diku_admin", "opaque-token-value")

	_, ok := s.Claims()
	assert.False(t, ok)
	assert.Equal(t, "opaque-token-value", s.Token)
	assert.Equal(t, "diku_admin", s.Subject())
	assert.False(t, s.Expired(time.Now()))
}

func TestExpired(t *testing.T) {
	exp := time.Now().Add(-time.Minute)
	tok := signedToken(t, jwt.MapClaims{"sub": "diku_admin", "exp": exp.Unix()})

	s := New("diku", "diku_admin", tok)
	assert.True(t, s.Expired(time.Now()))
	assert.False(t, s.Expired(exp.Add(-time.Hour)))
}

func TestSubject(t *testing.T) {
	tok := signedToken(t, jwt.MapClaims{"sub": "from-token"})
	assert.Equal(t, "from-token", New("diku", "login-name", tok).Subject())
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, ok := Get(ctx)
	assert.False(t, ok)

	s := New("diku", "diku_admin", "t")
	got, ok := Get(Set(ctx, s))
	require.True(t, ok)
	assert.Same(t, s, got)
}
