package users_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/employdex/base-platform/internal/users"
)

func TestBulkCreateMixedRows(t *testing.T) {
	catalog := newMemoryCatalog()
	catalog.seedUser("taken@employdex.local", 2)
	svc := newCatalogService(catalog)

	csv := strings.Join([]string{
		"first_name,last_name,email,mobile,password",
		"Ada,Lovelace,ada@employdex.local,9876500001,long-enough-secret",
		"Bad,Row,not-an-email,9876500002,long-enough-secret",
		"Seed,Again,taken@employdex.local,9876500003,long-enough-secret",
		"Short,Pass,short@employdex.local,9876500004,tiny",
		"Grace,Hopper,grace@employdex.local,9876500005,long-enough-secret",
	}, "\n")

	result, err := svc.BulkCreate(context.Background(), 1, strings.NewReader(csv))
	require.NoError(t, err)
	require.Equal(t, 2, result.Created)
	require.Len(t, result.Failed, 3)

	lines := make([]int, len(result.Failed))
	for i, f := range result.Failed {
		lines[i] = f.Line
	}
	require.ElementsMatch(t, []int{3, 4, 5}, lines)

	imported, err := svc.List(context.Background(), users.Filter{Search: "grace"})
	require.NoError(t, err)
	require.Len(t, imported.Users, 1)
	require.Equal(t, []string{"User"}, imported.Users[0].Roles)
}

func TestBulkCreateRejectsBadHeader(t *testing.T) {
	svc := newCatalogService(newMemoryCatalog())

	_, err := svc.BulkCreate(context.Background(), 1, strings.NewReader("email,password\na@b.c,secret123"))
	require.Error(t, err)
}
