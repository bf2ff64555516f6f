package session

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

const (
	// Key is the context key for Session.
	Key ContextKey = "okapi-session"
)

// Claims are the fields of an Okapi JWT that okapictl cares about.
type Claims struct {
	Subject   string
	UserID    string
	Tenant    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Tenant string `json:"tenant"`
}

// Session is the authenticated state for one run. It is written once by
// login and only read afterwards.
type Session struct {
	Tenant   string
	Username string
	Token    string

	claims  Claims
	decoded bool
}

// New creates a Session and decodes the token claims when possible.
func New(tenant, username, token string) *Session {
	s := &Session{
		Tenant:   tenant,
		Username: username,
		Token:    token,
	}
	s.claims, s.decoded = decode(token)
	return s
}

func decode(token string) (Claims, bool) {
	var tc tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &tc); err != nil {
		return Claims{}, false
	}

	c := Claims{
		Subject: tc.Subject,
		UserID:  tc.UserID,
		Tenant:  tc.Tenant,
	}
	if tc.IssuedAt != nil {
		c.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
	}
	return c, true
}

// Claims returns the decoded token claims. ok is false for opaque tokens.
func (s *Session) Claims() (Claims, bool) {
	return s.claims, s.decoded
}

// Expired reports whether the token carries an expiry before now.
// Tokens without an expiry never expire from the client's point of view.
func (s *Session) Expired(now time.Time) bool {
	if !s.decoded || s.claims.ExpiresAt.IsZero() {
		return false
	}
	return now.After(s.claims.ExpiresAt)
}

// Subject returns the token subject, falling back to the login username.
func (s *Session) Subject() string {
	if s.decoded && s.claims.Subject != "" {
		return s.claims.Subject
	}
	return s.Username
}

// Get retrieves the Session from context.
func Get(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(Key).(*Session)
	return s, ok
}

// Set stores the Session in context.
func Set(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, Key, s)
}
