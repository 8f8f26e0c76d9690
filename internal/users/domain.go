// Package users manages the user catalog behind the administration
// endpoints. Authentication-time lookups live in internal/auth.
package users

import (
	"time"

	"github.com/employdex/base-platform/internal/platform/httpx"
)

// ErrPrimaryAdmin rejects deletion of the first created administrator.
var ErrPrimaryAdmin = &httpx.InvariantViolationError{Reason: "the primary administrator account cannot be deleted"}

// User is a catalog entry with its resolved role names.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Mobile    string    `json:"mobile"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	IsActive  bool      `json:"is_active"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Filter narrows a catalog listing.
type Filter struct {
	Search  string
	Role    string
	Active  *bool
	Page    int
	PerPage int
}

// Input carries the fields for admin-side user creation.
type Input struct {
	Email     string
	Mobile    string
	FirstName string
	LastName  string
	Password  string
	RoleIDs   []int64
}

// ProfileInput carries the mutable profile fields.
type ProfileInput struct {
	Mobile    string
	FirstName string
	LastName  string
}
