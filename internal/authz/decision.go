package authz

import (
	"strings"

	"github.com/employdex/base-platform/internal/platform/httpx"
)

// Requirement re-exports the route requirement shape for handler wiring.
type Requirement = httpx.Requirement

// Decide evaluates a requirement against a claims bundle. It is a pure
// function: no I/O, no state, identical for every protected endpoint.
//
// Absent claims deny with an authentication error, distinct from an
// authorization denial. An empty requirement allows everything. Otherwise a
// single match on either the permission or the role axis suffices.
func Decide(claims *Claims, req Requirement) error {
	if claims == nil {
		return httpx.ErrUnauthenticated
	}
	if req.Empty() {
		return nil
	}
	if intersects(claims.User.Permissions, req.AnyOfPermissions) {
		return nil
	}
	if intersects(claims.User.Roles, req.AnyOfRoles) {
		return nil
	}
	return &httpx.AuthorizationError{Required: req}
}

// Normalize trims and lowercases a permission or role name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func intersects(granted, required []string) bool {
	if len(required) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(granted))
	for _, g := range granted {
		set[Normalize(g)] = struct{}{}
	}
	for _, r := range required {
		if _, ok := set[Normalize(r)]; ok {
			return true
		}
	}
	return false
}
