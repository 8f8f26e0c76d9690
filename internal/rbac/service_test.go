package rbac_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/employdex/base-platform/internal/platform/httpx"
	"github.com/employdex/base-platform/internal/rbac"
)

// memoryCatalog implements rbac.Repository with copy-on-write transactions
// so guard failures observably leave the catalog untouched.
type memoryCatalog struct {
	roles      map[int64]rbac.Role
	rolePerms  map[int64]map[int64]struct{}
	perms      map[int64]rbac.Permission
	userRoles  map[int64]map[int64]struct{}
	users      map[int64]struct{}
	nextRoleID int64
	nextPermID int64
}

func newMemoryCatalog() *memoryCatalog {
	c := &memoryCatalog{
		roles:     make(map[int64]rbac.Role),
		rolePerms: make(map[int64]map[int64]struct{}),
		perms:     make(map[int64]rbac.Permission),
		userRoles: make(map[int64]map[int64]struct{}),
		users:     make(map[int64]struct{}),
	}
	c.nextPermID = 1
	c.addPermission("read", "read access")
	c.addPermission("write", "write access")
	c.nextRoleID = 1
	c.addRole(rbac.RoleAdmin, "system administrator", true, []int64{1, 2})
	c.addRole(rbac.RoleUser, "default user", true, nil)
	return c
}

func (c *memoryCatalog) addPermission(name, description string) rbac.Permission {
	p := rbac.Permission{ID: c.nextPermID, Name: name, Description: description}
	c.perms[p.ID] = p
	c.nextPermID++
	return p
}

func (c *memoryCatalog) addRole(name, description string, system bool, permIDs []int64) rbac.Role {
	role := rbac.Role{ID: c.nextRoleID, Name: name, Description: description, IsSystem: system}
	c.roles[role.ID] = role
	set := make(map[int64]struct{})
	for _, id := range permIDs {
		set[id] = struct{}{}
	}
	c.rolePerms[role.ID] = set
	c.nextRoleID++
	return role
}

func (c *memoryCatalog) clone() *memoryCatalog {
	out := &memoryCatalog{
		roles:      make(map[int64]rbac.Role, len(c.roles)),
		rolePerms:  make(map[int64]map[int64]struct{}, len(c.rolePerms)),
		perms:      make(map[int64]rbac.Permission, len(c.perms)),
		userRoles:  make(map[int64]map[int64]struct{}, len(c.userRoles)),
		users:      make(map[int64]struct{}, len(c.users)),
		nextRoleID: c.nextRoleID,
		nextPermID: c.nextPermID,
	}
	for id, role := range c.roles {
		out.roles[id] = role
	}
	for id, perm := range c.perms {
		out.perms[id] = perm
	}
	for id, set := range c.rolePerms {
		cp := make(map[int64]struct{}, len(set))
		for pid := range set {
			cp[pid] = struct{}{}
		}
		out.rolePerms[id] = cp
	}
	for id, set := range c.userRoles {
		cp := make(map[int64]struct{}, len(set))
		for rid := range set {
			cp[rid] = struct{}{}
		}
		out.userRoles[id] = cp
	}
	for id := range c.users {
		out.users[id] = struct{}{}
	}
	return out
}

func (c *memoryCatalog) WithTx(ctx context.Context, fn func(context.Context, rbac.TxRepository) error) error {
	scratch := c.clone()
	if err := fn(ctx, &memoryTx{c: scratch}); err != nil {
		return err
	}
	*c = *scratch
	return nil
}

func (c *memoryCatalog) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	var out []rbac.Role
	for _, role := range c.roles {
		role.UserCount = c.countUsers(role.ID)
		out = append(out, role)
	}
	return out, nil
}

func (c *memoryCatalog) GetRole(ctx context.Context, id int64) (rbac.Role, error) {
	role, ok := c.roles[id]
	if !ok {
		return rbac.Role{}, fmt.Errorf("role %d: %w", id, httpx.ErrNotFound)
	}
	role.UserCount = c.countUsers(id)
	for pid := range c.rolePerms[id] {
		role.Permissions = append(role.Permissions, c.perms[pid])
	}
	return role, nil
}

func (c *memoryCatalog) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	var out []rbac.Permission
	for _, p := range c.perms {
		out = append(out, p)
	}
	return out, nil
}

func (c *memoryCatalog) UpdatePermissionDescription(ctx context.Context, id int64, description string) (rbac.Permission, error) {
	p, ok := c.perms[id]
	if !ok {
		return rbac.Permission{}, fmt.Errorf("permission %d: %w", id, httpx.ErrNotFound)
	}
	p.Description = description
	c.perms[id] = p
	return p, nil
}

func (c *memoryCatalog) countUsers(roleID int64) int {
	count := 0
	for _, set := range c.userRoles {
		if _, ok := set[roleID]; ok {
			count++
		}
	}
	return count
}

type memoryTx struct {
	c *memoryCatalog
}

func (t *memoryTx) GetRoleForUpdate(ctx context.Context, id int64) (rbac.Role, error) {
	role, ok := t.c.roles[id]
	if !ok {
		return rbac.Role{}, fmt.Errorf("role %d: %w", id, httpx.ErrNotFound)
	}
	return role, nil
}

func (t *memoryTx) GetRoleByName(ctx context.Context, name string) (rbac.Role, error) {
	for _, role := range t.c.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return rbac.Role{}, fmt.Errorf("role %q: %w", name, httpx.ErrNotFound)
}

func (t *memoryTx) CreatePermission(ctx context.Context, name, description string) (rbac.Permission, error) {
	for _, p := range t.c.perms {
		if p.Name == name {
			return rbac.Permission{}, fmt.Errorf("%q: %w", name, httpx.ErrDuplicate)
		}
	}
	return t.c.addPermission(name, description), nil
}

func (t *memoryTx) AttachPermission(ctx context.Context, roleID, permissionID int64) error {
	set, ok := t.c.rolePerms[roleID]
	if !ok {
		set = make(map[int64]struct{})
		t.c.rolePerms[roleID] = set
	}
	set[permissionID] = struct{}{}
	return nil
}

func (t *memoryTx) CreateRole(ctx context.Context, name, description string) (rbac.Role, error) {
	for _, role := range t.c.roles {
		if role.Name == name {
			return rbac.Role{}, fmt.Errorf("%q: %w", name, httpx.ErrDuplicate)
		}
	}
	return t.c.addRole(name, description, false, nil), nil
}

func (t *memoryTx) UpdateRole(ctx context.Context, id int64, name, description string) (rbac.Role, error) {
	role, ok := t.c.roles[id]
	if !ok {
		return rbac.Role{}, fmt.Errorf("role %d: %w", id, httpx.ErrNotFound)
	}
	for _, other := range t.c.roles {
		if other.ID != id && other.Name == name {
			return rbac.Role{}, fmt.Errorf("%q: %w", name, httpx.ErrDuplicate)
		}
	}
	role.Name = name
	role.Description = description
	t.c.roles[id] = role
	return role, nil
}

func (t *memoryTx) DeleteRole(ctx context.Context, id int64) error {
	if _, ok := t.c.roles[id]; !ok {
		return fmt.Errorf("role %d: %w", id, httpx.ErrNotFound)
	}
	delete(t.c.roles, id)
	delete(t.c.rolePerms, id)
	return nil
}

func (t *memoryTx) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	set := make(map[int64]struct{}, len(permissionIDs))
	for _, id := range permissionIDs {
		set[id] = struct{}{}
	}
	t.c.rolePerms[roleID] = set
	return nil
}

func (t *memoryTx) AllPermissionIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	for id := range t.c.perms {
		ids = append(ids, id)
	}
	return ids, nil
}

func (t *memoryTx) CountExistingPermissions(ctx context.Context, ids []int64) (int, error) {
	count := 0
	for _, id := range ids {
		if _, ok := t.c.perms[id]; ok {
			count++
		}
	}
	return count, nil
}

func (t *memoryTx) CountUsersWithRole(ctx context.Context, roleID int64) (int, error) {
	return t.c.countUsers(roleID), nil
}

func (t *memoryTx) CountExistingRoles(ctx context.Context, ids []int64) (int, error) {
	count := 0
	for _, id := range ids {
		if _, ok := t.c.roles[id]; ok {
			count++
		}
	}
	return count, nil
}

func (t *memoryTx) ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	set := make(map[int64]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		set[id] = struct{}{}
	}
	t.c.userRoles[userID] = set
	return nil
}

func (t *memoryTx) UserExists(ctx context.Context, userID int64) (bool, error) {
	_, ok := t.c.users[userID]
	return ok, nil
}

func newService(catalog *memoryCatalog) *rbac.Service {
	return rbac.NewService(catalog, nil, nil, nil)
}

const (
	adminRoleID = 1
	userRoleID  = 2
)

func TestCreateRoleWithPermissions(t *testing.T) {
	catalog := newMemoryCatalog()
	svc := newService(catalog)

	role, err := svc.CreateRole(context.Background(), 1, rbac.RoleInput{
		Name:          "Viewer",
		Description:   "read only",
		PermissionIDs: []int64{1, 1},
	})
	require.NoError(t, err)
	require.False(t, role.IsSystem)
	require.Len(t, role.Permissions, 1)
	require.Equal(t, "read", role.Permissions[0].Name)
}

func TestCreateRoleDuplicateName(t *testing.T) {
	svc := newService(newMemoryCatalog())

	_, err := svc.CreateRole(context.Background(), 1, rbac.RoleInput{Name: rbac.RoleAdmin})
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestCreateRoleReservedNameVariants(t *testing.T) {
	svc := newService(newMemoryCatalog())

	for _, name := range []string{"admin", "ADMIN", " Admin ", "user"} {
		_, err := svc.CreateRole(context.Background(), 1, rbac.RoleInput{Name: name})
		require.ErrorIs(t, err, httpx.ErrDuplicate, "name %q", name)
	}
}

func TestRenameRoleToReservedNameRejected(t *testing.T) {
	catalog := newMemoryCatalog()
	svc := newService(catalog)

	viewer, err := svc.CreateRole(context.Background(), 1, rbac.RoleInput{Name: "Viewer"})
	require.NoError(t, err)

	_, err = svc.UpdateRole(context.Background(), 1, viewer.ID, rbac.RoleInput{Name: "admin"})
	require.ErrorIs(t, err, httpx.ErrDuplicate)

	kept, getErr := svc.GetRole(context.Background(), viewer.ID)
	require.NoError(t, getErr)
	require.Equal(t, "Viewer", kept.Name)
}

func TestCreateRoleUnknownPermission(t *testing.T) {
	svc := newService(newMemoryCatalog())

	_, err := svc.CreateRole(context.Background(), 1, rbac.RoleInput{
		Name:          "Viewer",
		PermissionIDs: []int64{999},
	})
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestUpdateAdminRejectsPartialCatalog(t *testing.T) {
	catalog := newMemoryCatalog()
	svc := newService(catalog)

	// All but one permission: guard must reject and leave the catalog as-is.
	_, err := svc.UpdateRole(context.Background(), 1, adminRoleID, rbac.RoleInput{
		Name:          rbac.RoleAdmin,
		PermissionIDs: []int64{1},
	})
	require.ErrorIs(t, err, rbac.ErrAdminPermissions)

	admin, getErr := svc.GetRole(context.Background(), adminRoleID)
	require.NoError(t, getErr)
	require.Len(t, admin.Permissions, 2)
}

func TestUpdateAdminWithFullCatalog(t *testing.T) {
	svc := newService(newMemoryCatalog())

	role, err := svc.UpdateRole(context.Background(), 1, adminRoleID, rbac.RoleInput{
		Name:          rbac.RoleAdmin,
		Description:   "all permissions",
		PermissionIDs: []int64{1, 2},
	})
	require.NoError(t, err)
	require.Equal(t, "all permissions", role.Description)
	require.Len(t, role.Permissions, 2)
}

func TestRenameSystemRoleRejected(t *testing.T) {
	catalog := newMemoryCatalog()
	svc := newService(catalog)

	_, err := svc.UpdateRole(context.Background(), 1, adminRoleID, rbac.RoleInput{
		Name:          "Administrator",
		PermissionIDs: []int64{1, 2},
	})
	require.ErrorIs(t, err, rbac.ErrSystemRole)

	admin, getErr := svc.GetRole(context.Background(), adminRoleID)
	require.NoError(t, getErr)
	require.Equal(t, rbac.RoleAdmin, admin.Name)
}

func TestUpdateSystemRoleKeepingName(t *testing.T) {
	svc := newService(newMemoryCatalog())

	role, err := svc.UpdateRole(context.Background(), 1, userRoleID, rbac.RoleInput{
		Name:        rbac.RoleUser,
		Description: "members",
	})
	require.NoError(t, err)
	require.Equal(t, "members", role.Description)
}

func TestDeleteSystemRoleRejected(t *testing.T) {
	svc := newService(newMemoryCatalog())

	err := svc.DeleteRole(context.Background(), 1, adminRoleID)
	require.ErrorIs(t, err, rbac.ErrSystemRole)
	err = svc.DeleteRole(context.Background(), 1, userRoleID)
	require.ErrorIs(t, err, rbac.ErrSystemRole)
}

func TestDeleteRoleWithAssignedUsers(t *testing.T) {
	catalog := newMemoryCatalog()
	svc := newService(catalog)

	viewer, err := svc.CreateRole(context.Background(), 1, rbac.RoleInput{Name: "Viewer", PermissionIDs: []int64{1}})
	require.NoError(t, err)
	for userID := int64(10); userID < 13; userID++ {
		catalog.users[userID] = struct{}{}
		require.NoError(t, svc.AssignUserRoles(context.Background(), 1, userID, []int64{viewer.ID}))
	}

	err = svc.DeleteRole(context.Background(), 1, viewer.ID)
	var inUse *httpx.RoleInUseError
	require.True(t, errors.As(err, &inUse))
	require.Equal(t, 3, inUse.UserCount)

	// No side effect: the role and its assignments are still there.
	got, getErr := svc.GetRole(context.Background(), viewer.ID)
	require.NoError(t, getErr)
	require.Equal(t, 3, got.UserCount)
	require.Len(t, got.Permissions, 1)
}

func TestDeleteUnassignedRole(t *testing.T) {
	catalog := newMemoryCatalog()
	svc := newService(catalog)

	viewer, err := svc.CreateRole(context.Background(), 1, rbac.RoleInput{Name: "Viewer"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteRole(context.Background(), 1, viewer.ID))

	_, err = svc.GetRole(context.Background(), viewer.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestCreatePermissionAttachesToAdmin(t *testing.T) {
	catalog := newMemoryCatalog()
	svc := newService(catalog)

	perm, err := svc.CreatePermission(context.Background(), 1, "user_view", "list users")
	require.NoError(t, err)

	admin, getErr := svc.GetRole(context.Background(), adminRoleID)
	require.NoError(t, getErr)
	names := make([]string, 0, len(admin.Permissions))
	for _, p := range admin.Permissions {
		names = append(names, p.Name)
	}
	require.Contains(t, names, perm.Name)
}

func TestCreatePermissionValidatesName(t *testing.T) {
	svc := newService(newMemoryCatalog())

	for _, name := range []string{"", "User View", "UPPER", "9starts_with_digit", "dash-ed"} {
		_, err := svc.CreatePermission(context.Background(), 1, name, "")
		require.ErrorIs(t, err, httpx.ErrValidation, "name %q", name)
	}
}

func TestCreatePermissionDuplicate(t *testing.T) {
	svc := newService(newMemoryCatalog())

	_, err := svc.CreatePermission(context.Background(), 1, "read", "")
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestAssignUserRolesUnknownUser(t *testing.T) {
	svc := newService(newMemoryCatalog())

	err := svc.AssignUserRoles(context.Background(), 1, 404, []int64{adminRoleID})
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestAssignUserRolesReplacesSet(t *testing.T) {
	catalog := newMemoryCatalog()
	svc := newService(catalog)
	catalog.users[10] = struct{}{}

	require.NoError(t, svc.AssignUserRoles(context.Background(), 1, 10, []int64{adminRoleID, userRoleID}))
	require.NoError(t, svc.AssignUserRoles(context.Background(), 1, 10, []int64{userRoleID}))

	userRole, err := svc.GetRole(context.Background(), userRoleID)
	require.NoError(t, err)
	require.Equal(t, 1, userRole.UserCount)
	admin, err := svc.GetRole(context.Background(), adminRoleID)
	require.NoError(t, err)
	require.Equal(t, 0, admin.UserCount)
}
