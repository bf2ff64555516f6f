package okapi_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/okapictl/pkg/okapi"
	"github.com/doodlesbykumbi/okapictl/pkg/okapi/okapitest"
)

const (
	tenant = "diku"
	token  = "eyJhbGciOiJIUzI1NiJ9.stub.token"
)

func newStub(t *testing.T) *okapitest.Server {
	t.Helper()
	srv := okapitest.NewServer(tenant, token)
	t.Cleanup(srv.Close)
	srv.AddUser("diku_admin", "abc-123", "admin")
	return srv
}

func loggedIn(t *testing.T, srv *okapitest.Server) *okapi.Client {
	t.Helper()
	c := okapi.NewClient(srv.URL, tenant)
	_, err := c.Login(context.Background(), okapi.Credentials{Username: "diku_admin", Password: "admin"})
	require.NoError(t, err)
	return c
}

// === NewClient ===

func TestNewClient_TrailingSlash(t *testing.T) {
	c := okapi.NewClient("http://localhost:9130/", tenant)
	assert.Equal(t, "http://localhost:9130", c.BaseURL)
	assert.Equal(t, 30*time.Second, c.HTTPClient.Timeout)
}

func TestNewClient_Options(t *testing.T) {
	c := okapi.NewClient("http://localhost:9130", tenant, okapi.WithTimeout(0), okapi.WithToken("t0k"))
	assert.Equal(t, time.Duration(0), c.HTTPClient.Timeout)
	assert.Equal(t, "t0k", c.Token())
}

func TestNewClient_TimeoutDoesNotMutateSharedClient(t *testing.T) {
	shared := &http.Client{Timeout: 5 * time.Second}
	c := okapi.NewClient("http://localhost:9130", tenant, okapi.WithHTTPClient(shared), okapi.WithTimeout(time.Second))

	assert.Equal(t, 5*time.Second, shared.Timeout)
	assert.Equal(t, time.Second, c.HTTPClient.Timeout)
	assert.NotSame(t, shared, c.HTTPClient)

	before := http.DefaultClient.Timeout
	okapi.NewClient("http://localhost:9130", tenant, okapi.WithHTTPClient(http.DefaultClient), okapi.WithTimeout(time.Minute))
	assert.Equal(t, before, http.DefaultClient.Timeout)
}

func TestNewClient_NilHTTPClientKeepsDefault(t *testing.T) {
	c := okapi.NewClient("http://localhost:9130", tenant, okapi.WithHTTPClient(nil), okapi.WithTimeout(time.Second))
	require.NotNil(t, c.HTTPClient)
	assert.Equal(t, time.Second, c.HTTPClient.Timeout)
}

// === Login ===

func TestLogin_ExtractsTokenVerbatim(t *testing.T) {
	srv := newStub(t)
	c := okapi.NewClient(srv.URL, tenant)

	got, err := c.Login(context.Background(), okapi.Credentials{Username: "diku_admin", Password: "admin"})
	require.NoError(t, err)
	assert.Equal(t, token, got)
	assert.Equal(t, token, c.Token())

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/authn/login", reqs[0].Path)
	assert.Equal(t, tenant, reqs[0].Tenant)
	assert.Empty(t, reqs[0].Token)
	assert.NotEmpty(t, reqs[0].RequestID)
	assert.JSONEq(t, `{"username":"diku_admin","password":"admin"}`, reqs[0].Body)
}

func TestLogin_MissingTokenHeader(t *testing.T) {
	srv := newStub(t)
	srv.OmitToken()
	c := okapi.NewClient(srv.URL, tenant)

	_, err := c.Login(context.Background(), okapi.Credentials{Username: "diku_admin", Password: "admin"})
	assert.ErrorIs(t, err, okapi.ErrMissingToken)
	assert.Empty(t, c.Token())
}

func TestLogin_BadPassword(t *testing.T) {
	srv := newStub(t)
	c := okapi.NewClient(srv.URL, tenant)

	_, err := c.Login(context.Background(), okapi.Credentials{Username: "diku_admin", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, okapi.StatusCode(err))

	var statusErr *okapi.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Contains(t, statusErr.Body, "Password does not match")
}

func TestLogin_UnknownTenant(t *testing.T) {
	srv := newStub(t)
	c := okapi.NewClient(srv.URL, "other")

	_, err := c.Login(context.Background(), okapi.Credentials{Username: "diku_admin", Password: "admin"})
	assert.Equal(t, http.StatusBadRequest, okapi.StatusCode(err))
}

func TestLogin_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := okapi.NewClient(url, tenant)
	_, err := c.Login(context.Background(), okapi.Credentials{Username: "u", Password: "p"})
	require.Error(t, err)
	assert.Equal(t, 0, okapi.StatusCode(err))
}

// === FindUser ===

func TestFindUser(t *testing.T) {
	srv := newStub(t)
	c := loggedIn(t, srv)

	user, err := c.FindUser(context.Background(), "diku_admin")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", user.ID)

	reqs := srv.Requests()
	last := reqs[len(reqs)-1]
	assert.Equal(t, "/users", last.Path)
	assert.Equal(t, "query=username%3Ddiku_admin", last.Query)
	assert.Equal(t, token, last.Token)
}

func TestFindUser_EmptyResult(t *testing.T) {
	srv := newStub(t)
	c := loggedIn(t, srv)

	user, err := c.FindUser(context.Background(), "nobody")
	assert.Nil(t, user)
	assert.ErrorIs(t, err, okapi.ErrUserNotFound)
	assert.Contains(t, err.Error(), "nobody")
}

func TestFindUser_TakesFirstResult(t *testing.T) {
	srv := newStub(t)
	srv.AddUser("diku_admin", "second-id", "")
	c := loggedIn(t, srv)

	user, err := c.FindUser(context.Background(), "diku_admin")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", user.ID)
}

func TestFindUser_RequiresLogin(t *testing.T) {
	srv := newStub(t)
	c := okapi.NewClient(srv.URL, tenant)

	_, err := c.FindUser(context.Background(), "diku_admin")
	assert.ErrorIs(t, err, okapi.ErrNotAuthenticated)
	assert.Empty(t, srv.Requests())
}

func TestFindUser_RejectedToken(t *testing.T) {
	srv := newStub(t)
	c := okapi.NewClient(srv.URL, tenant, okapi.WithToken("stale"))

	_, err := c.FindUser(context.Background(), "diku_admin")
	assert.Equal(t, http.StatusUnauthorized, okapi.StatusCode(err))
}

// === Permissions ===

func TestPermissions(t *testing.T) {
	srv := newStub(t)
	srv.SetPermissions("abc-123", "a", "b", "c", "d", "e")
	c := loggedIn(t, srv)

	perms, err := c.Permissions(context.Background(), "abc-123")
	require.NoError(t, err)
	assert.Equal(t, 5, perms.TotalRecords)
	assert.True(t, perms.Has("c"))
	assert.False(t, perms.Has("z"))

	reqs := srv.Requests()
	last := reqs[len(reqs)-1]
	assert.Equal(t, "/perms/users/abc-123/permissions", last.Path)
	assert.Equal(t, "indexField=userId", last.Query)
}

func TestPermissions_UnknownUser(t *testing.T) {
	srv := newStub(t)
	c := loggedIn(t, srv)

	_, err := c.Permissions(context.Background(), "missing")
	assert.Equal(t, http.StatusNotFound, okapi.StatusCode(err))
}

func TestPermissions_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "{not json")
	}))
	t.Cleanup(srv.Close)

	c := okapi.NewClient(srv.URL, tenant, okapi.WithToken("t"))
	_, err := c.Permissions(context.Background(), "abc-123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestPermissionSet_HasNil(t *testing.T) {
	var p *okapi.PermissionSet
	assert.False(t, p.Has("x"))
}

// === Grant ===

func TestGrant(t *testing.T) {
	srv := newStub(t)
	c := loggedIn(t, srv)

	require.NoError(t, c.Grant(context.Background(), "abc-123", "oriole.resources.admin"))
	assert.Equal(t, []string{"oriole.resources.admin"}, srv.Permissions("abc-123"))
	assert.Equal(t, []string{"oriole.resources.admin"}, srv.GrantAttempts())

	reqs := srv.Requests()
	last := reqs[len(reqs)-1]
	assert.Equal(t, http.MethodPost, last.Method)
	assert.Equal(t, "indexField=userId", last.Query)
	assert.JSONEq(t, `{"permissionName":"oriole.resources.admin"}`, last.Body)
}

func TestGrant_NonOKStatus(t *testing.T) {
	srv := newStub(t)
	srv.FailGrant("bad.perm", http.StatusUnprocessableEntity, "Permission bad.perm does not exist")
	c := loggedIn(t, srv)

	err := c.Grant(context.Background(), "abc-123", "bad.perm")
	require.Error(t, err)

	var statusErr *okapi.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnprocessableEntity, statusErr.Code)
	assert.Equal(t, "Permission bad.perm does not exist", statusErr.Body)
	assert.Contains(t, statusErr.Error(), "422")
}

func TestGrant_CreatedIsNotSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	c := okapi.NewClient(srv.URL, tenant, okapi.WithToken("t"))
	err := c.Grant(context.Background(), "abc-123", "p")
	assert.Equal(t, http.StatusCreated, okapi.StatusCode(err))
}

// === Health ===

func TestHealth(t *testing.T) {
	srv := newStub(t)
	c := okapi.NewClient(srv.URL, tenant)

	version, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "5.0.0-stub", version)
}

// === Rate limiting ===

func TestRateLimit_PacesRequests(t *testing.T) {
	srv := newStub(t)
	c := okapi.NewClient(srv.URL, tenant, okapi.WithRateLimit(20))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Health(context.Background())
		require.NoError(t, err)
	}
	// burst of one, then two waits of ~50ms
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRateLimit_HonoursContext(t *testing.T) {
	srv := newStub(t)
	c := okapi.NewClient(srv.URL, tenant, okapi.WithRateLimit(0.001))

	_, err := c.Health(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.Health(ctx)
	assert.Error(t, err)
}
