package authz_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/employdex/base-platform/internal/authz"
	"github.com/employdex/base-platform/internal/platform/httpx"
)

func newIssuer(t *testing.T, ttl time.Duration) *authz.Issuer {
	t.Helper()
	issuer, err := authz.NewIssuer("test-signing-secret", ttl)
	require.NoError(t, err)
	return issuer
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	_, err := authz.NewIssuer("", 0)
	require.Error(t, err)
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	issuer := newIssuer(t, time.Hour)

	identity := authz.Identity{
		ID:          42,
		Email:       "admin@employdex.local",
		FirstName:   "Ada",
		LastName:    "Admin",
		Roles:       []string{"Admin", "User", "Admin"},
		Permissions: []string{"user_view", "role_edit", "user_view"},
	}
	token, expiresAt, err := issuer.Issue(identity)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, int64(42), claims.User.ID)
	require.Equal(t, "admin@employdex.local", claims.User.Email)
	require.ElementsMatch(t, []string{"Admin", "User"}, claims.User.Roles)
	require.ElementsMatch(t, []string{"user_view", "role_edit"}, claims.User.Permissions)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuer := newIssuer(t, time.Nanosecond)

	token, _, err := issuer.Issue(authz.Identity{ID: 1})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, err = issuer.Verify(token)
	require.ErrorIs(t, err, httpx.ErrUnauthenticated)
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	issuer := newIssuer(t, time.Hour)
	other := newIssuerWithSecret(t, "different-secret")

	token, _, err := other.Issue(authz.Identity{ID: 1, Roles: []string{"Admin"}})
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	require.ErrorIs(t, err, httpx.ErrUnauthenticated)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	issuer := newIssuer(t, time.Hour)
	_, err := issuer.Verify("not.a.token")
	require.ErrorIs(t, err, httpx.ErrUnauthenticated)
}

func newIssuerWithSecret(t *testing.T, secret string) *authz.Issuer {
	t.Helper()
	issuer, err := authz.NewIssuer(secret, time.Hour)
	require.NoError(t, err)
	return issuer
}
