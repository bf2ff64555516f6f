package okapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/doodlesbykumbi/okapictl/pkg/logging"
)

// Okapi headers
const (
	HeaderTenant    = "x-okapi-tenant"
	HeaderToken     = "x-okapi-token"
	HeaderRequestID = "x-okapi-request-id"
)

// maxErrorBody caps how much of an error response body is kept.
const maxErrorBody = 64 * 1024

// Client talks to a single Okapi tenant.
type Client struct {
	BaseURL    string
	Tenant     string
	HTTPClient *http.Client

	token   string
	limiter *rate.Limiter
	logger  log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. A nil client keeps the
// default.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.HTTPClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout. Zero means no timeout. The
// timeout is set on a copy so a shared client passed to WithHTTPClient is
// left untouched.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.HTTPClient
		hc.Timeout = d
		c.HTTPClient = &hc
	}
}

// WithRateLimit paces outgoing requests to rps per second. Zero disables pacing.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithToken starts the client with an existing session token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger log.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logging.Component(logger, "okapi")
		}
	}
}

// NewClient creates a client for baseURL scoped to tenant.
func NewClient(baseURL, tenant string, opts ...Option) *Client {
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Tenant:     tenant,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current session token, empty before Login.
func (c *Client) Token() string {
	return c.token
}

// SetToken replaces the session token.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Login authenticates with creds and stores the returned session token.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/authn/login", nil, creds)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	token := resp.Header.Get(HeaderToken)
	if token == "" {
		return "", ErrMissingToken
	}
	c.token = token
	return token, nil
}

// FindUser looks up a user by username and returns the first match.
func (c *Client) FindUser(ctx context.Context, username string) (*User, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	query := url.Values{}
	query.Set("query", "username="+username)

	var users UserCollection
	if err := c.getJSON(ctx, "/users", query, &users); err != nil {
		return nil, err
	}
	if len(users.Users) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	user := users.Users[0]
	if user.ID == "" {
		return nil, fmt.Errorf("user record for %s has no id", username)
	}
	return &user, nil
}

// Permissions returns the permissions user record for userID.
func (c *Client) Permissions(ctx context.Context, userID string) (*PermissionSet, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	var perms PermissionSet
	if err := c.getJSON(ctx, permissionsPath(userID), permissionsQuery(), &perms); err != nil {
		return nil, err
	}
	return &perms, nil
}

// Grant adds permission name to userID. Only HTTP 200 counts as success;
// anything else is returned as a *StatusError carrying the response body.
func (c *Client) Grant(ctx context.Context, userID, name string) error {
	if c.token == "" {
		return ErrNotAuthenticated
	}

	resp, err := c.do(ctx, http.MethodPost, permissionsPath(userID), permissionsQuery(), PermissionGrant{PermissionName: name})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Health checks that Okapi answers and returns its reported version.
func (c *Client) Health(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/_/version", nil, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", statusError(resp)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return "", fmt.Errorf("read version: %w", err)
	}
	return strings.TrimSpace(string(body)), nil
}

func permissionsPath(userID string) string {
	return "/perms/users/" + url.PathEscape(userID) + "/permissions"
}

func permissionsQuery() url.Values {
	return url.Values{"indexField": []string{"userId"}}
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// do sends a request. The caller owns the response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	requestID := uuid.New().String()
	req.Header.Set(HeaderTenant, c.Tenant)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain")
	req.Header.Set(HeaderRequestID, requestID)
	if c.token != "" {
		req.Header.Set(HeaderToken, c.token)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		level.Debug(c.logger).Log("msg", "request failed", "method", method, "path", path, "request_id", requestID, "err", err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	level.Debug(c.logger).Log(
		"msg", "request completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start),
	)
	return resp, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Method: resp.Request.Method,
		Path:   resp.Request.URL.Path,
		Code:   resp.StatusCode,
		Body:   string(body),
	}
}
