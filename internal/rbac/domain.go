// Package rbac owns the role and permission catalogs and enforces the
// mutation invariants protecting them.
package rbac

import (
	"regexp"
	"time"
)

// System role names. These two roles are seeded first, their names are
// immutable and they cannot be deleted.
const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

// Role is a named grouping of permissions.
type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	IsSystem    bool         `json:"is_system"`
	UserCount   int          `json:"user_count"`
	Permissions []Permission `json:"permissions,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// IsAdmin reports whether this is the distinguished Admin role, which must
// always hold the full permission catalog.
func (r Role) IsAdmin() bool {
	return r.IsSystem && r.Name == RoleAdmin
}

// Permission is an atomic named capability. Names are immutable once created
// and permissions are additive: there is no delete operation.
type Permission struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

var permissionNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidPermissionName reports whether a name follows the
// lowercase-with-underscores convention.
func ValidPermissionName(name string) bool {
	return permissionNameRe.MatchString(name)
}
