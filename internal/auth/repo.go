package auth

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

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByMobile(ctx context.Context, mobile string) (*User, error)
	RolesForUser(ctx context.Context, userID int64) ([]string, error)
	PermissionsForUser(ctx context.Context, userID int64) ([]string, error)
	CreateUser(ctx context.Context, user User, defaultRole string) (*User, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, email, mobile, first_name, last_name, password_hash, is_active, created_at, updated_at`

func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PGRepository) FindByMobile(ctx context.Context, mobile string) (*User, error) {
	return r.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE mobile = $1`, mobile)
}

func (r *PGRepository) findUser(ctx context.Context, query string, arg any) (*User, error) {
	var user User
	err := r.pool.QueryRow(ctx, query, arg).
		Scan(&user.ID, &user.Email, &user.Mobile, &user.FirstName, &user.LastName,
			&user.PasswordHash, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// RolesForUser returns the user's role names.
func (r *PGRepository) RolesForUser(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.name FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1 ORDER BY r.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStrings(rows)
}

// PermissionsForUser resolves the union of permissions reachable through the
// user's roles, deduplicated. A role without permissions contributes none.
func (r *PGRepository) PermissionsForUser(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT p.name FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		JOIN user_roles ur ON ur.role_id = rp.role_id
		WHERE ur.user_id = $1 ORDER BY p.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStrings(rows)
}

// CreateUser inserts the user and assigns the default role in one
// transaction.
func (r *PGRepository) CreateUser(ctx context.Context, user User, defaultRole string) (*User, error) {
	var created User
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO users (email, mobile, first_name, last_name, password_hash, is_active)
			VALUES ($1, $2, $3, $4, $5, TRUE)
			RETURNING `+userColumns,
			user.Email, user.Mobile, user.FirstName, user.LastName, user.PasswordHash).
			Scan(&created.ID, &created.Email, &created.Mobile, &created.FirstName, &created.LastName,
				&created.PasswordHash, &created.IsActive, &created.CreatedAt, &created.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return fmt.Errorf("user: %w", httpx.ErrDuplicate)
			}
			return err
		}
		if defaultRole == "" {
			return nil
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO user_roles (user_id, role_id)
			SELECT $1, id FROM roles WHERE name = $2`, created.ID, defaultRole)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func scanStrings(rows pgx.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
