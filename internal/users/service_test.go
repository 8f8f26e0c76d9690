package users_test

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/employdex/base-platform/internal/platform/httpx"
	"github.com/employdex/base-platform/internal/users"
)

type memoryCatalog struct {
	nextID    int64
	users     map[int64]users.User
	passwords map[int64]string
	roles     map[int64]string
	system    map[int64]bool
	userRoles map[int64][]int64
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{
		nextID:    1,
		users:     map[int64]users.User{},
		passwords: map[int64]string{},
		roles:     map[int64]string{1: "Admin", 2: "User"},
		system:    map[int64]bool{1: true, 2: true},
		userRoles: map[int64][]int64{},
	}
}

func (m *memoryCatalog) seedUser(email string, roleIDs ...int64) int64 {
	id := m.nextID
	m.nextID++
	m.users[id] = users.User{
		ID:        id,
		Email:     email,
		Mobile:    "90000000" + strings.Repeat("0", int(id%10)),
		FirstName: "Seed",
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.userRoles[id] = append([]int64{}, roleIDs...)
	return id
}

func (m *memoryCatalog) roleNames(id int64) []string {
	var names []string
	for _, rid := range m.userRoles[id] {
		names = append(names, m.roles[rid])
	}
	sort.Strings(names)
	if names == nil {
		names = []string{}
	}
	return names
}

func (m *memoryCatalog) WithTx(ctx context.Context, fn func(context.Context, users.TxRepository) error) error {
	return fn(ctx, &memoryTx{catalog: m})
}

func (m *memoryCatalog) List(ctx context.Context, filter users.Filter) ([]users.User, int, error) {
	var ids []int64
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var matched []users.User
	for _, id := range ids {
		u := m.users[id]
		if filter.Search != "" && !strings.Contains(strings.ToLower(u.Email), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.Active != nil && u.IsActive != *filter.Active {
			continue
		}
		if filter.Role != "" {
			found := false
			for _, name := range m.roleNames(id) {
				if name == filter.Role {
					found = true
				}
			}
			if !found {
				continue
			}
		}
		u.Roles = m.roleNames(id)
		matched = append(matched, u)
	}

	total := len(matched)
	start := (filter.Page - 1) * filter.PerPage
	if start > total {
		start = total
	}
	end := start + filter.PerPage
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (m *memoryCatalog) Get(ctx context.Context, id int64) (users.User, error) {
	u, ok := m.users[id]
	if !ok {
		return users.User{}, httpx.ErrNotFound
	}
	u.Roles = m.roleNames(id)
	return u, nil
}

func (m *memoryCatalog) UpdateProfile(ctx context.Context, id int64, input users.ProfileInput) (users.User, error) {
	u, ok := m.users[id]
	if !ok {
		return users.User{}, httpx.ErrNotFound
	}
	u.Mobile = input.Mobile
	u.FirstName = input.FirstName
	u.LastName = input.LastName
	m.users[id] = u
	return m.Get(ctx, id)
}

func (m *memoryCatalog) SetActive(ctx context.Context, id int64, active bool) (users.User, error) {
	u, ok := m.users[id]
	if !ok {
		return users.User{}, httpx.ErrNotFound
	}
	u.IsActive = active
	m.users[id] = u
	return m.Get(ctx, id)
}

type memoryTx struct {
	catalog *memoryCatalog
}

func (t *memoryTx) create(input users.Input, hash string) int64 {
	id := t.catalog.nextID
	t.catalog.nextID++
	t.catalog.users[id] = users.User{
		ID:        id,
		Email:     input.Email,
		Mobile:    input.Mobile,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	t.catalog.passwords[id] = hash
	return id
}

func (t *memoryTx) duplicate(input users.Input) bool {
	for _, u := range t.catalog.users {
		if u.Email == input.Email || u.Mobile == input.Mobile {
			return true
		}
	}
	return false
}

func (t *memoryTx) CreateUser(ctx context.Context, input users.Input, hash string) (int64, error) {
	if t.duplicate(input) {
		return 0, httpx.ErrDuplicate
	}
	return t.create(input, hash), nil
}

func (t *memoryTx) CreateUserIfAbsent(ctx context.Context, input users.Input, hash string) (int64, bool, error) {
	if t.duplicate(input) {
		return 0, false, nil
	}
	return t.create(input, hash), true, nil
}

func (t *memoryTx) ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	t.catalog.userRoles[userID] = append([]int64{}, roleIDs...)
	return nil
}

func (t *memoryTx) CountExistingRoles(ctx context.Context, ids []int64) (int, error) {
	count := 0
	for _, id := range ids {
		if _, ok := t.catalog.roles[id]; ok {
			count++
		}
	}
	return count, nil
}

func (t *memoryTx) RoleIDByName(ctx context.Context, name string) (int64, error) {
	for id, n := range t.catalog.roles {
		if n == name {
			return id, nil
		}
	}
	return 0, httpx.ErrNotFound
}

func (t *memoryTx) PrimaryAdminID(ctx context.Context) (int64, error) {
	var min int64
	for userID, roleIDs := range t.catalog.userRoles {
		for _, rid := range roleIDs {
			if t.catalog.roles[rid] == "Admin" && t.catalog.system[rid] {
				if min == 0 || userID < min {
					min = userID
				}
			}
		}
	}
	return min, nil
}

func (t *memoryTx) DeleteUser(ctx context.Context, id int64) error {
	if _, ok := t.catalog.users[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(t.catalog.users, id)
	delete(t.catalog.userRoles, id)
	delete(t.catalog.passwords, id)
	return nil
}

func newCatalogService(catalog *memoryCatalog) *users.Service {
	return users.NewService(catalog, nil, nil, nil)
}

func TestCreateAssignsDefaultRole(t *testing.T) {
	catalog := newMemoryCatalog()
	svc := newCatalogService(catalog)

	user, err := svc.Create(context.Background(), 1, users.Input{
		Email:     "New@Employdex.Local",
		Mobile:    "9876543210",
		FirstName: "New",
		Password:  "long-enough-secret",
	})
	require.NoError(t, err)
	require.Equal(t, "new@employdex.local", user.Email)
	require.Equal(t, []string{"User"}, user.Roles)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(catalog.passwords[user.ID]), []byte("long-enough-secret")))
}

func TestCreateWithExplicitRoles(t *testing.T) {
	catalog := newMemoryCatalog()
	svc := newCatalogService(catalog)

	user, err := svc.Create(context.Background(), 1, users.Input{
		Email:     "ops@employdex.local",
		Mobile:    "9876543211",
		FirstName: "Ops",
		Password:  "long-enough-secret",
		RoleIDs:   []int64{1, 2},
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"Admin", "User"}, user.Roles)
}

func TestCreateUnknownRoleRejected(t *testing.T) {
	catalog := newMemoryCatalog()
	svc := newCatalogService(catalog)

	_, err := svc.Create(context.Background(), 1, users.Input{
		Email:     "ops@employdex.local",
		Mobile:    "9876543211",
		FirstName: "Ops",
		Password:  "long-enough-secret",
		RoleIDs:   []int64{99},
	})
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestCreateDuplicateEmailRejected(t *testing.T) {
	catalog := newMemoryCatalog()
	catalog.seedUser("taken@employdex.local", 2)
	svc := newCatalogService(catalog)

	_, err := svc.Create(context.Background(), 1, users.Input{
		Email:     "taken@employdex.local",
		Mobile:    "9876543212",
		FirstName: "Dup",
		Password:  "long-enough-secret",
	})
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestDeletePrimaryAdminRejected(t *testing.T) {
	catalog := newMemoryCatalog()
	first := catalog.seedUser("first@employdex.local", 1)
	catalog.seedUser("second@employdex.local", 1)
	svc := newCatalogService(catalog)

	err := svc.Delete(context.Background(), 99, first)
	require.ErrorIs(t, err, users.ErrPrimaryAdmin)

	_, getErr := svc.Get(context.Background(), first)
	require.NoError(t, getErr)
}

func TestDeleteSecondaryAdminCascades(t *testing.T) {
	catalog := newMemoryCatalog()
	catalog.seedUser("first@employdex.local", 1)
	second := catalog.seedUser("second@employdex.local", 1)
	svc := newCatalogService(catalog)

	require.NoError(t, svc.Delete(context.Background(), 99, second))

	_, err := svc.Get(context.Background(), second)
	require.ErrorIs(t, err, httpx.ErrNotFound)
	require.Empty(t, catalog.userRoles[second])
}

func TestListPaginatesAndClamps(t *testing.T) {
	catalog := newMemoryCatalog()
	for i := 0; i < 25; i++ {
		catalog.seedUser("user"+strings.Repeat("x", i)+"@employdex.local", 2)
	}
	svc := newCatalogService(catalog)

	result, err := svc.List(context.Background(), users.Filter{})
	require.NoError(t, err)
	require.Len(t, result.Users, 20)
	require.Equal(t, 25, result.Paging.Total)
	require.Equal(t, 2, result.Paging.TotalPages)

	result, err = svc.List(context.Background(), users.Filter{Page: 2})
	require.NoError(t, err)
	require.Len(t, result.Users, 5)
}

func TestListFiltersByRole(t *testing.T) {
	catalog := newMemoryCatalog()
	catalog.seedUser("admin@employdex.local", 1)
	catalog.seedUser("member@employdex.local", 2)
	svc := newCatalogService(catalog)

	result, err := svc.List(context.Background(), users.Filter{Role: "Admin"})
	require.NoError(t, err)
	require.Len(t, result.Users, 1)
	require.Equal(t, "admin@employdex.local", result.Users[0].Email)
}

func TestSetActiveToggles(t *testing.T) {
	catalog := newMemoryCatalog()
	id := catalog.seedUser("member@employdex.local", 2)
	svc := newCatalogService(catalog)

	user, err := svc.SetActive(context.Background(), 1, id, false)
	require.NoError(t, err)
	require.False(t, user.IsActive)

	user, err = svc.SetActive(context.Background(), 1, id, true)
	require.NoError(t, err)
	require.True(t, user.IsActive)
}
