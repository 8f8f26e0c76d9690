package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/employdex/base-platform/internal/platform/db"
	"github.com/employdex/base-platform/internal/platform/httpx"
)

// Repository defines catalog data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	UpdatePermissionDescription(ctx context.Context, id int64, description string) (Permission, error)
}

// TxRepository defines catalog mutations executed within one transaction.
// The guard checks run against the same snapshot as the writes.
type TxRepository interface {
	GetRoleForUpdate(ctx context.Context, id int64) (Role, error)
	GetRoleByName(ctx context.Context, name string) (Role, error)
	CreatePermission(ctx context.Context, name, description string) (Permission, error)
	AttachPermission(ctx context.Context, roleID, permissionID int64) error
	CreateRole(ctx context.Context, name, description string) (Role, error)
	UpdateRole(ctx context.Context, id int64, name, description string) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
	ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	AllPermissionIDs(ctx context.Context) ([]int64, error)
	CountExistingPermissions(ctx context.Context, ids []int64) (int, error)
	CountUsersWithRole(ctx context.Context, roleID int64) (int, error)
	CountExistingRoles(ctx context.Context, ids []int64) (int, error)
	ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error
	UserExists(ctx context.Context, userID int64) (bool, error)
}

var (
	_ Repository   = (*pgRepository)(nil)
	_ TxRepository = (*pgTxRepository)(nil)
)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx})
	})
}

func (r *pgRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.name, r.description, r.is_system, r.created_at, r.updated_at,
		       (SELECT COUNT(*) FROM user_roles ur WHERE ur.role_id = r.id) AS user_count
		FROM roles r ORDER BY r.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt, &role.UserCount); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *pgRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `
		SELECT r.id, r.name, r.description, r.is_system, r.created_at, r.updated_at,
		       (SELECT COUNT(*) FROM user_roles ur WHERE ur.role_id = r.id) AS user_count
		FROM roles r WHERE r.id = $1`, id).
		Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt, &role.UserCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("role %d: %w", id, httpx.ErrNotFound)
		}
		return Role{}, err
	}
	perms, err := r.rolePermissions(ctx, id)
	if err != nil {
		return Role{}, err
	}
	role.Permissions = perms
	return role, nil
}

func (r *pgRepository) rolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.name, p.description, p.created_at
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1 ORDER BY p.name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (r *pgRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, created_at FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (r *pgRepository) UpdatePermissionDescription(ctx context.Context, id int64, description string) (Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx,
		`UPDATE permissions SET description = $2 WHERE id = $1 RETURNING id, name, description, created_at`,
		id, description).
		Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, fmt.Errorf("permission %d: %w", id, httpx.ErrNotFound)
		}
		return Permission{}, err
	}
	return p, nil
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (r *pgTxRepository) GetRoleForUpdate(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.tx.QueryRow(ctx,
		`SELECT id, name, description, is_system, created_at, updated_at FROM roles WHERE id = $1 FOR UPDATE`, id).
		Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("role %d: %w", id, httpx.ErrNotFound)
		}
		return Role{}, err
	}
	return role, nil
}

func (r *pgTxRepository) GetRoleByName(ctx context.Context, name string) (Role, error) {
	var role Role
	err := r.tx.QueryRow(ctx,
		`SELECT id, name, description, is_system, created_at, updated_at FROM roles WHERE name = $1 FOR UPDATE`, name).
		Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("role %q: %w", name, httpx.ErrNotFound)
		}
		return Role{}, err
	}
	return role, nil
}

func (r *pgTxRepository) CreatePermission(ctx context.Context, name, description string) (Permission, error) {
	var p Permission
	err := r.tx.QueryRow(ctx,
		`INSERT INTO permissions (name, description) VALUES ($1, $2) RETURNING id, name, description, created_at`,
		name, description).
		Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt)
	if err != nil {
		return Permission{}, mapUniqueViolation(err, name)
	}
	return p, nil
}

func (r *pgTxRepository) AttachPermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		roleID, permissionID)
	return err
}

func (r *pgTxRepository) CreateRole(ctx context.Context, name, description string) (Role, error) {
	var role Role
	err := r.tx.QueryRow(ctx,
		`INSERT INTO roles (name, description, is_system) VALUES ($1, $2, FALSE)
		 RETURNING id, name, description, is_system, created_at, updated_at`,
		name, description).
		Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return Role{}, mapUniqueViolation(err, name)
	}
	return role, nil
}

func (r *pgTxRepository) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	var role Role
	err := r.tx.QueryRow(ctx,
		`UPDATE roles SET name = $2, description = $3, updated_at = NOW() WHERE id = $1
		 RETURNING id, name, description, is_system, created_at, updated_at`,
		id, name, description).
		Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("role %d: %w", id, httpx.ErrNotFound)
		}
		return Role{}, mapUniqueViolation(err, name)
	}
	return role, nil
}

func (r *pgTxRepository) DeleteRole(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("role %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

// ReplaceRolePermissions performs the full replace: delete-all-then-insert.
func (r *pgTxRepository) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return err
	}
	for _, pid := range permissionIDs {
		if _, err := r.tx.Exec(ctx,
			`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)`, roleID, pid); err != nil {
			return err
		}
	}
	return nil
}

func (r *pgTxRepository) AllPermissionIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.tx.Query(ctx, `SELECT id FROM permissions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *pgTxRepository) CountExistingPermissions(ctx context.Context, ids []int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM permissions WHERE id = ANY($1)`, ids).Scan(&count)
	return count, err
}

func (r *pgTxRepository) CountUsersWithRole(ctx context.Context, roleID int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM user_roles WHERE role_id = $1`, roleID).Scan(&count)
	return count, err
}

func (r *pgTxRepository) CountExistingRoles(ctx context.Context, ids []int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM roles WHERE id = ANY($1)`, ids).Scan(&count)
	return count, err
}

func (r *pgTxRepository) ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return err
	}
	for _, rid := range roleIDs {
		if _, err := r.tx.Exec(ctx,
			`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, userID, rid); err != nil {
			return err
		}
	}
	return nil
}

func (r *pgTxRepository) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	return exists, err
}

// mapUniqueViolation converts a unique-constraint failure into the duplicate
// sentinel so handlers can answer 409.
func mapUniqueViolation(err error, name string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%q: %w", name, httpx.ErrDuplicate)
	}
	return err
}
