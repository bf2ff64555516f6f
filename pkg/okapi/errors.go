package okapi

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingToken is returned when a login response lacks x-okapi-token.
	ErrMissingToken = errors.New("login response did not include an x-okapi-token header")

	// ErrUserNotFound is returned when a user search yields no records.
	ErrUserNotFound = errors.New("user not found")

	// ErrNotAuthenticated is returned when a call needs a session token and
	// Login has not succeeded yet.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// StatusError is returned when Okapi answers with an unexpected status code.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Code, body)
}

// StatusCode extracts the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}
	return 0
}
