// Package audit provides audit logging for okapictl provisioning runs.
//
// Every security-relevant step of a run is recorded as an RFC5424 syslog
// line: the login, the user lookup, permission counts and each grant
// attempt.
//
// # Event Types
//
//   - LoginEvent (msgid "login")
//   - UserLookupEvent (msgid "user-lookup")
//   - PermissionCountEvent (msgid "permission-count")
//   - GrantEvent (msgid "grant")
//
// # Usage
//
//	recorder := audit.NewRecorder(audit.NewLogger(os.Stderr), store)
//	recorder.Log(audit.LoginEvent{Tenant: "diku", Username: "diku_admin", Success: true})
//
// Audit lines can additionally be persisted to PostgreSQL by setting
// AUDIT_DATABASE_URL. Set OKAPICTL_AUDIT_ENABLED=false to turn auditing off.
package audit
