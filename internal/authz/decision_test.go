package authz_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/employdex/base-platform/internal/authz"
	"github.com/employdex/base-platform/internal/platform/httpx"
)

func claimsWith(roles, perms []string) *authz.Claims {
	return &authz.Claims{User: authz.Identity{
		ID:          7,
		Email:       "viewer@employdex.local",
		Roles:       roles,
		Permissions: perms,
	}}
}

func TestDecideNilClaims(t *testing.T) {
	err := authz.Decide(nil, authz.Requirement{AnyOfPermissions: []string{"user_view"}})
	require.ErrorIs(t, err, httpx.ErrUnauthenticated)
}

func TestDecideEmptyRequirementAllows(t *testing.T) {
	err := authz.Decide(claimsWith(nil, nil), authz.Requirement{})
	require.NoError(t, err)
}

func TestDecideAnyMatchSuffices(t *testing.T) {
	cases := []struct {
		name  string
		roles []string
		perms []string
		req   authz.Requirement
		allow bool
	}{
		{
			name:  "permission match",
			perms: []string{"user_view"},
			req:   authz.Requirement{AnyOfPermissions: []string{"user_view", "user_edit"}},
			allow: true,
		},
		{
			name:  "role match with empty permissions",
			roles: []string{"Admin"},
			req:   authz.Requirement{AnyOfRoles: []string{"Admin"}},
			allow: true,
		},
		{
			name:  "role matches even when permissions do not",
			roles: []string{"Manager"},
			perms: []string{"read"},
			req:   authz.Requirement{AnyOfPermissions: []string{"write"}, AnyOfRoles: []string{"Manager"}},
			allow: true,
		},
		{
			name:  "case-insensitive role match",
			roles: []string{"admin"},
			req:   authz.Requirement{AnyOfRoles: []string{"Admin"}},
			allow: true,
		},
		{
			name:  "viewer lacking write",
			roles: []string{"Viewer"},
			perms: []string{"read"},
			req:   authz.Requirement{AnyOfPermissions: []string{"write"}},
			allow: false,
		},
		{
			name:  "no overlap on either axis",
			roles: []string{"User"},
			perms: []string{"user_view"},
			req:   authz.Requirement{AnyOfPermissions: []string{"role_edit"}, AnyOfRoles: []string{"Admin"}},
			allow: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := authz.Decide(claimsWith(tc.roles, tc.perms), tc.req)
			if tc.allow {
				require.NoError(t, err)
				return
			}
			var authzErr *httpx.AuthorizationError
			require.True(t, errors.As(err, &authzErr))
			require.Equal(t, tc.req, authzErr.Required)
		})
	}
}

func TestDecideEchoesRequiredSets(t *testing.T) {
	req := authz.Requirement{AnyOfPermissions: []string{"write"}}
	err := authz.Decide(claimsWith([]string{"Viewer"}, []string{"read"}), req)

	var authzErr *httpx.AuthorizationError
	require.True(t, errors.As(err, &authzErr))
	require.Equal(t, []string{"write"}, authzErr.Required.AnyOfPermissions)
	require.Empty(t, authzErr.Required.AnyOfRoles)
}

func TestDecideIsIdempotent(t *testing.T) {
	claims := claimsWith([]string{"Viewer"}, []string{"read"})
	req := authz.Requirement{AnyOfPermissions: []string{"write"}}

	first := authz.Decide(claims, req)
	second := authz.Decide(claims, req)
	require.Equal(t, first == nil, second == nil)
	require.Equal(t, first.Error(), second.Error())
}
