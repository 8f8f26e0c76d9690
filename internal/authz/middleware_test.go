package authz_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/employdex/base-platform/internal/authz"
)

func protectedHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthenticateMissingHeader(t *testing.T) {
	issuer := newIssuer(t, time.Hour)
	mw := authz.Middleware{Issuer: issuer}

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	res := httptest.NewRecorder()
	mw.Authenticate(protectedHandler()).ServeHTTP(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestAuthenticateMalformedHeader(t *testing.T) {
	issuer := newIssuer(t, time.Hour)
	mw := authz.Middleware{Issuer: issuer}

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Token abc")
	res := httptest.NewRecorder()
	mw.Authenticate(protectedHandler()).ServeHTTP(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestAuthenticateThenRequire(t *testing.T) {
	issuer := newIssuer(t, time.Hour)
	mw := authz.Middleware{Issuer: issuer}

	token, _, err := issuer.Issue(authz.Identity{
		ID:          3,
		Roles:       []string{"Viewer"},
		Permissions: []string{"read"},
	})
	require.NoError(t, err)

	allow := mw.Require(authz.Requirement{AnyOfPermissions: []string{"read"}})(protectedHandler())
	deny := mw.Require(authz.Requirement{AnyOfPermissions: []string{"write"}})(protectedHandler())

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	mw.Authenticate(allow).ServeHTTP(res, req)
	require.Equal(t, http.StatusNoContent, res.Code)

	req = httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res = httptest.NewRecorder()
	mw.Authenticate(deny).ServeHTTP(res, req)
	require.Equal(t, http.StatusForbidden, res.Code)

	var body struct {
		Error    string `json:"error"`
		Required struct {
			AnyOfPermissions []string `json:"anyOfPermissions"`
			AnyOfRoles       []string `json:"anyOfRoles"`
		} `json:"required"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Equal(t, "insufficient permissions", body.Error)
	require.Equal(t, []string{"write"}, body.Required.AnyOfPermissions)
	require.Empty(t, body.Required.AnyOfRoles)
}

func TestRequireWithoutAuthenticateDenies(t *testing.T) {
	mw := authz.Middleware{}

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	res := httptest.NewRecorder()
	mw.Require(authz.Requirement{AnyOfRoles: []string{"Admin"}})(protectedHandler()).ServeHTTP(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
}
