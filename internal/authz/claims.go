// Package authz implements the claims contract, the token issuer and the
// access decision engine shared by every protected endpoint.
package authz

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// Identity mirrors the authenticated user embedded in the token payload.
type Identity struct {
	ID          int64    `json:"id"`
	Email       string   `json:"email"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// Claims is the signed bundle asserting an identity plus its resolved roles
// and permissions at issuance time. It is immutable once issued and carries
// all authorization data needed for its lifetime.
type Claims struct {
	User Identity `json:"user"`
	jwt.RegisteredClaims
}

type claimsContextKey struct{}

// ContextWithClaims stores verified claims in the context.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext extracts verified claims from the context, returning nil
// when the request was not authenticated.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsContextKey{}).(*Claims)
	return claims
}
