// Package auth authenticates credentials and issues signed claims bundles.
package auth

import (
	"errors"
	"time"
)

// Authentication failures. Unknown identifier and wrong secret share the
// same generic error so callers cannot enumerate accounts; a disabled
// account is reported distinctly.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
)

// User is the credential-store record backing authentication.
type User struct {
	ID           int64
	Email        string
	Mobile       string
	FirstName    string
	LastName     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IdentifierKind tags which unique field an identifier addresses.
type IdentifierKind string

// Identifier kinds.
const (
	KindEmail  IdentifierKind = "email"
	KindMobile IdentifierKind = "mobile"
)

// Identifier names a user by exactly one unique field. Callers resolve the
// kind explicitly; the service never guesses from the value's shape.
type Identifier struct {
	Kind  IdentifierKind
	Value string
}

// EmailIdentifier builds an email identifier.
func EmailIdentifier(value string) Identifier {
	return Identifier{Kind: KindEmail, Value: value}
}

// MobileIdentifier builds a mobile-number identifier.
func MobileIdentifier(value string) Identifier {
	return Identifier{Kind: KindMobile, Value: value}
}

// Session is the outcome of a successful login: the signed token plus a
// plain mirror of the identity and its resolved role/permission sets.
type Session struct {
	Token       string
	ExpiresAt   time.Time
	User        User
	Roles       []string
	Permissions []string
}
