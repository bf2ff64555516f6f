// Package okapi is a small REST client for the Okapi gateway endpoints used
// to provision user permissions.
//
// Every request carries the tenant in x-okapi-tenant, a JSON content type
// and a fresh x-okapi-request-id. Once Login succeeds the session token is
// attached as x-okapi-token to all later requests.
//
// # Endpoints
//
//   - POST /authn/login
//   - GET  /users?query=username=<name>
//   - GET  /perms/users/{userId}/permissions?indexField=userId
//   - POST /perms/users/{userId}/permissions?indexField=userId
//   - GET  /_/version
//
// The client never retries. Failures are returned as ErrMissingToken,
// ErrUserNotFound, ErrNotAuthenticated or *StatusError and can be inspected
// with errors.Is and errors.As.
package okapi
