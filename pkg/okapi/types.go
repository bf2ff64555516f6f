package okapi

// Credentials is the body of POST /authn/login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// User is a single record from GET /users.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Active   bool   `json:"active"`
}

// UserCollection is the body of GET /users.
type UserCollection struct {
	Users        []User `json:"users"`
	TotalRecords int    `json:"totalRecords"`
}

// PermissionSet is the permissions user record returned by
// GET /perms/users/{userId}/permissions.
type PermissionSet struct {
	PermissionNames []string `json:"permissionNames"`
	TotalRecords    int      `json:"totalRecords"`
}

// Has reports whether name is among the assigned permission names.
func (p *PermissionSet) Has(name string) bool {
	if p == nil {
		return false
	}
	for _, n := range p.PermissionNames {
		if n == name {
			return true
		}
	}
	return false
}

// PermissionGrant is the body of POST /perms/users/{userId}/permissions.
type PermissionGrant struct {
	PermissionName string `json:"permissionName"`
}
