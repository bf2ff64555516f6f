package audit

import (
	"fmt"
	"strconv"
)

// LoginEvent records an authentication attempt against /authn/login
type LoginEvent struct {
	Tenant       string
	Username     string
	OkapiURL     string
	Success      bool
	ErrorMessage string
}

func (e LoginEvent) MessageID() string {
	return "login"
}

func (e LoginEvent) Message() string {
	if e.Success {
		return fmt.Sprintf("%s successfully logged in to tenant %s", e.Username, e.Tenant)
	}
	msg := fmt.Sprintf("%s failed to log in to tenant %s", e.Username, e.Tenant)
	if e.ErrorMessage != "" {
		msg += ": " + e.ErrorMessage
	}
	return msg
}

func (e LoginEvent) Severity() Severity {
	if e.Success {
		return SeverityInfo
	}
	return SeverityWarning
}

func (e LoginEvent) Facility() int {
	return FacilityAuthPriv
}

func (e LoginEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDAuth: {
			"user": e.Username,
		},
		SDIDTenant: {
			"tenant": e.Tenant,
			"okapi":  e.OkapiURL,
		},
		SDIDAction: {
			"operation": "login",
			"result":    result(e.Success),
		},
	}
}

// UserLookupEvent records resolving a username to a user id
type UserLookupEvent struct {
	Actor        string
	Tenant       string
	Username     string
	UserID       string
	Success      bool
	ErrorMessage string
}

func (e UserLookupEvent) MessageID() string {
	return "user-lookup"
}

func (e UserLookupEvent) Message() string {
	if e.Success {
		return fmt.Sprintf("%s resolved user %s to %s", e.Actor, e.Username, e.UserID)
	}
	msg := fmt.Sprintf("%s failed to resolve user %s", e.Actor, e.Username)
	if e.ErrorMessage != "" {
		msg += ": " + e.ErrorMessage
	}
	return msg
}

func (e UserLookupEvent) Severity() Severity {
	if e.Success {
		return SeverityInfo
	}
	return SeverityWarning
}

func (e UserLookupEvent) Facility() int {
	return FacilityAuth
}

func (e UserLookupEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDAuth: {
			"user": e.Actor,
		},
		SDIDSubject: {
			"username": e.Username,
			"user_id":  e.UserID,
		},
		SDIDTenant: {
			"tenant": e.Tenant,
		},
		SDIDAction: {
			"operation": "lookup",
			"result":    result(e.Success),
		},
	}
}

// PermissionCountEvent records a permission count read for before/after
// reporting. A non-empty ErrorMessage marks a failed read.
type PermissionCountEvent struct {
	Actor        string
	Tenant       string
	UserID       string
	Phase        string // "before" or "after"
	Total        int
	ErrorMessage string
}

func (e PermissionCountEvent) MessageID() string {
	return "permission-count"
}

func (e PermissionCountEvent) Message() string {
	if e.ErrorMessage != "" {
		return fmt.Sprintf("%s failed to read permissions for %s (%s): %s", e.Actor, e.UserID, e.Phase, e.ErrorMessage)
	}
	return fmt.Sprintf("%s read %d permissions for %s (%s)", e.Actor, e.Total, e.UserID, e.Phase)
}

func (e PermissionCountEvent) Severity() Severity {
	if e.ErrorMessage != "" {
		return SeverityWarning
	}
	return SeverityInfo
}

func (e PermissionCountEvent) Facility() int {
	return FacilityAuth
}

func (e PermissionCountEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDAuth: {
			"user": e.Actor,
		},
		SDIDSubject: {
			"user_id": e.UserID,
			"total":   strconv.Itoa(e.Total),
			"phase":   e.Phase,
		},
		SDIDTenant: {
			"tenant": e.Tenant,
		},
		SDIDAction: {
			"operation": "count",
			"result":    result(e.ErrorMessage == ""),
		},
	}
}

// GrantEvent records a single permission grant attempt
type GrantEvent struct {
	Actor      string
	Tenant     string
	UserID     string
	Permission string
	Outcome    string
	StatusCode int
	Detail     string
}

func (e GrantEvent) MessageID() string {
	return "grant"
}

func (e GrantEvent) Message() string {
	switch e.Outcome {
	case "granted":
		return fmt.Sprintf("%s granted %s to %s", e.Actor, e.Permission, e.UserID)
	case "skipped":
		return fmt.Sprintf("%s skipped %s for %s: already assigned", e.Actor, e.Permission, e.UserID)
	case "planned":
		return fmt.Sprintf("%s planned %s for %s", e.Actor, e.Permission, e.UserID)
	}
	msg := fmt.Sprintf("%s failed to grant %s to %s", e.Actor, e.Permission, e.UserID)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" [%d]", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e GrantEvent) Severity() Severity {
	if e.Outcome == "failed" {
		return SeverityWarning
	}
	return SeverityNotice
}

func (e GrantEvent) Facility() int {
	return FacilityAuthPriv
}

func (e GrantEvent) StructuredData() map[string]map[string]string {
	sd := map[string]map[string]string{
		SDIDAuth: {
			"user": e.Actor,
		},
		SDIDSubject: {
			"user_id":    e.UserID,
			"permission": e.Permission,
		},
		SDIDTenant: {
			"tenant": e.Tenant,
		},
		SDIDAction: {
			"operation": "grant",
			"result":    e.Outcome,
		},
	}
	if e.StatusCode != 0 {
		sd[SDIDAction]["status"] = strconv.Itoa(e.StatusCode)
	}
	return sd
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
