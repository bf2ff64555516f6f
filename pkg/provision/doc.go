// Package provision implements the authorization provisioner: log in, resolve
// a user, print the permission count, grant each configured permission and
// print the count again.
//
// The run is strictly sequential. Failures before the grant loop are returned
// as errors; a failed grant is printed, audited and skipped.
package provision
