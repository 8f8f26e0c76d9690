package authz

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/employdex/base-platform/internal/platform/httpx"
)

// Middleware wires authentication and authorization helpers for HTTP handlers.
type Middleware struct {
	Issuer *Issuer
	Logger *slog.Logger
}

// Authenticate extracts and verifies the bearer token, storing the claims in
// the request context. Missing or invalid tokens end the request with 401.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			httpx.RespondError(w, m.Logger, httpx.ErrUnauthenticated)
			return
		}
		claims, err := m.Issuer.Verify(token)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Debug("token rejected", slog.String("path", r.URL.Path))
			}
			httpx.RespondError(w, m.Logger, httpx.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

// Require evaluates the route requirement against the context claims. It
// must run inside an Authenticate group.
func (m Middleware) Require(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := Decide(ClaimsFromContext(r.Context()), req); err != nil {
				httpx.RespondError(w, m.Logger, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny is shorthand for a permissions-only requirement.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return m.Require(Requirement{AnyOfPermissions: perms})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
