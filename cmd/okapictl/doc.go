// Package main is okapictl, a command-line tool that grants permissions to
// users of an Okapi-fronted (FOLIO) tenant.
//
// A provisioning run logs in, resolves the target user, prints the current
// permission count, grants each configured permission and prints the count
// again:
//
//	$ okapictl grant
//	Number of permissions: 5
//	Adding permission failed: [422] Permission oriole.subjects.admin does not exist
//	Number of permissions: 7
//
// # Commands
//
//   - grant: run the provisioner
//   - login: authenticate and print the session token
//   - user show: resolve a username to its user record
//   - permissions list: print a user's permissions
//   - configuration show: print the effective configuration and its sources
//   - wait: wait for Okapi to answer
//   - watch: re-run grant whenever a configuration file changes
//
// # Environment Variables
//
//   - OKAPI_URL, OKAPI_TENANT: Gateway and tenant
//   - OKAPI_USERNAME, OKAPI_PASSWORD: Login credentials
//   - OKAPI_TARGET_USER: User receiving permissions
//   - OKAPI_PERMISSIONS: Comma-separated permission names
//   - OKAPICTL_CONFIG_PATH: Directory holding okapictl.yml
//   - OKAPICTL_LOG_LEVEL: Log level (debug, info, warn, error)
//   - OKAPICTL_AUDIT_ENABLED: Set to false to disable audit lines
//   - AUDIT_DATABASE_URL: PostgreSQL URL for audit persistence
package main
