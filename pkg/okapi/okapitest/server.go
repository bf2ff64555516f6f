// Package okapitest provides an in-process Okapi stand-in for tests.
//
// The server implements login, user search, the permissions user endpoints
// and /_/version for a single tenant. Duplicate grants are treated as no-ops
// unless DuplicateStatus is set, and individual permissions can be forced to
// fail with a chosen status.
package okapitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/doodlesbykumbi/okapictl/pkg/okapi"
)

// Request is a recorded inbound request.
type Request struct {
	Method    string
	Path      string
	Query     string
	Tenant    string
	Token     string
	RequestID string
	Body      string
}

type forcedStatus struct {
	code int
	body string
}

// Server is a fake Okapi gateway backed by httptest.
type Server struct {
	*httptest.Server

	// Tenant is the only tenant the server accepts.
	Tenant string

	// DuplicateStatus, when non-zero, is returned for grants of a permission
	// the user already holds. Zero makes duplicate grants no-ops.
	DuplicateStatus int

	mu          sync.Mutex
	token       string
	omitToken   bool
	credentials map[string]string
	users       []okapi.User
	perms       map[string][]string
	forced      map[string]forcedStatus
	requests    []Request
}

// Option configures a Server.
type Option func(*Server)

// WithRequestLog writes an Apache style access log of every request to w.
func WithRequestLog(w io.Writer) Option {
	return func(s *Server) {
		s.Server.Config.Handler = handlers.LoggingHandler(w, s.Server.Config.Handler)
	}
}

// NewServer starts a server for tenant with token as the login token.
func NewServer(tenant, token string, opts ...Option) *Server {
	s := &Server{
		Tenant:      tenant,
		token:       token,
		credentials: map[string]string{},
		perms:       map[string][]string{},
		forced:      map[string]forcedStatus{},
	}

	router := mux.NewRouter().UseEncodedPath()
	router.Use(s.record, s.requireTenant)
	router.HandleFunc("/_/version", s.version).Methods(http.MethodGet)
	router.HandleFunc("/authn/login", s.login).Methods(http.MethodPost)

	authed := router.NewRoute().Subrouter()
	authed.Use(s.requireToken)
	authed.HandleFunc("/users", s.searchUsers).Methods(http.MethodGet)
	authed.HandleFunc("/perms/users/{userId}/permissions", s.listPermissions).Methods(http.MethodGet)
	authed.HandleFunc("/perms/users/{userId}/permissions", s.grantPermission).Methods(http.MethodPost)

	s.Server = httptest.NewUnstartedServer(router)
	for _, opt := range opts {
		opt(s)
	}
	s.Start()
	return s
}

// AddUser registers a user that can log in with password and be searched for.
// A user without a password cannot log in.
func (s *Server) AddUser(username, id, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, okapi.User{ID: id, Username: username, Active: true})
	if password != "" {
		s.credentials[username] = password
	}
	if _, ok := s.perms[id]; !ok {
		s.perms[id] = []string{}
	}
}

// SetPermissions replaces the permissions held by userID.
func (s *Server) SetPermissions(userID string, names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perms[userID] = append([]string{}, names...)
}

// Permissions returns the permissions held by userID.
func (s *Server) Permissions(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.perms[userID]...)
}

// FailGrant makes every grant of name answer with code and body.
func (s *Server) FailGrant(name string, code int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forced[name] = forcedStatus{code: code, body: body}
}

// OmitToken makes login succeed without an x-okapi-token header.
func (s *Server) OmitToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitToken = true
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// GrantAttempts returns the permission names of every grant request received.
func (s *Server) GrantAttempts() []string {
	var names []string
	for _, r := range s.Requests() {
		if r.Method != http.MethodPost || !strings.HasPrefix(r.Path, "/perms/users/") {
			continue
		}
		var grant okapi.PermissionGrant
		if err := json.Unmarshal([]byte(r.Body), &grant); err == nil {
			names = append(names, grant.PermissionName)
		}
	}
	return names
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:    r.Method,
			Path:      r.URL.Path,
			Query:     r.URL.RawQuery,
			Tenant:    r.Header.Get(okapi.HeaderTenant),
			Token:     r.Header.Get(okapi.HeaderToken),
			RequestID: r.Header.Get(okapi.HeaderRequestID),
			Body:      string(body),
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := r.Header.Get(okapi.HeaderTenant)
		if tenant != s.Tenant {
			textError(w, http.StatusBadRequest, fmt.Sprintf("No such Tenant %s", tenant))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		want := s.token
		s.mu.Unlock()
		if got := r.Header.Get(okapi.HeaderToken); got == "" || got != want {
			textError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) version(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, "5.0.0-stub")
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds okapi.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		textError(w, http.StatusBadRequest, "Malformed login body")
		return
	}

	s.mu.Lock()
	password, ok := s.credentials[creds.Username]
	token, omit := s.token, s.omitToken
	s.mu.Unlock()

	if !ok || password != creds.Password {
		jsonError(w, http.StatusUnprocessableEntity, "Password does not match")
		return
	}

	if !omit {
		w.Header().Set(okapi.HeaderToken, token)
	}
	writeJSON(w, http.StatusCreated, map[string]string{"username": creds.Username})
}

func (s *Server) searchUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	username := strings.TrimPrefix(query, "username=")

	s.mu.Lock()
	result := okapi.UserCollection{Users: []okapi.User{}}
	for _, u := range s.users {
		if u.Username == username {
			result.Users = append(result.Users, u)
		}
	}
	s.mu.Unlock()
	result.TotalRecords = len(result.Users)

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) listPermissions(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	s.mu.Lock()
	names, ok := s.perms[userID]
	names = append([]string{}, names...)
	s.mu.Unlock()

	if !ok {
		textError(w, http.StatusNotFound, "No user with userId "+userID)
		return
	}
	writeJSON(w, http.StatusOK, okapi.PermissionSet{PermissionNames: names, TotalRecords: len(names)})
}

func (s *Server) grantPermission(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	var grant okapi.PermissionGrant
	if err := json.NewDecoder(r.Body).Decode(&grant); err != nil || grant.PermissionName == "" {
		textError(w, http.StatusBadRequest, "Malformed permission body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if forced, ok := s.forced[grant.PermissionName]; ok {
		textError(w, forced.code, forced.body)
		return
	}
	names, ok := s.perms[userID]
	if !ok {
		textError(w, http.StatusNotFound, "No user with userId "+userID)
		return
	}
	for _, n := range names {
		if n != grant.PermissionName {
			continue
		}
		if s.DuplicateStatus != 0 {
			textError(w, s.DuplicateStatus, fmt.Sprintf("User already has permission %s", n))
			return
		}
		writeJSON(w, http.StatusOK, grant)
		return
	}
	s.perms[userID] = append(names, grant.PermissionName)
	writeJSON(w, http.StatusOK, grant)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]interface{}{
		"errors": []map[string]string{{"message": message}},
	})
}

func textError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, message)
}
