// Package config provides configuration management for okapictl.
//
// This package replaces the literals a one-off provisioning script would
// embed (host, tenant, credentials, permission list) with an explicit
// configuration structure that is injected at startup.
//
// # Configuration Sources
//
// Configuration is resolved in order of increasing precedence:
//
//   - Built-in defaults
//   - Configuration file (okapictl.yml)
//   - Environment variables
//   - Command-line flags (applied by the caller through Override)
//
// # Key Configuration Options
//
//   - OKAPI_URL: Base URL of the Okapi gateway
//   - OKAPI_TENANT: Tenant sent in x-okapi-tenant
//   - OKAPI_USERNAME / OKAPI_PASSWORD: Login credentials
//   - OKAPI_TARGET_USER: User receiving the permissions
//   - OKAPI_PERMISSIONS: Comma-separated permission names
//   - OKAPICTL_LOG_LEVEL: Logging verbosity
package config
