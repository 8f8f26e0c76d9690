package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/employdex/base-platform/internal/platform/db"
	"github.com/employdex/base-platform/internal/platform/httpx"
	"github.com/employdex/base-platform/internal/rbac"
)

// Repository defines catalog data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	List(ctx context.Context, filter Filter) ([]User, int, error)
	Get(ctx context.Context, id int64) (User, error)
	UpdateProfile(ctx context.Context, id int64, input ProfileInput) (User, error)
	SetActive(ctx context.Context, id int64, active bool) (User, error)
}

// TxRepository defines user mutations executed within one transaction.
type TxRepository interface {
	CreateUser(ctx context.Context, input Input, passwordHash string) (int64, error)
	CreateUserIfAbsent(ctx context.Context, input Input, passwordHash string) (int64, bool, error)
	ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error
	CountExistingRoles(ctx context.Context, ids []int64) (int, error)
	RoleIDByName(ctx context.Context, name string) (int64, error)
	PrimaryAdminID(ctx context.Context) (int64, error)
	DeleteUser(ctx context.Context, id int64) error
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

const userColumns = `u.id, u.email, COALESCE(u.mobile, ''), u.first_name, COALESCE(u.last_name, ''), u.is_active, u.created_at, u.updated_at`

func (r *pgRepository) List(ctx context.Context, filter Filter) ([]User, int, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.Search != "" {
		p := arg("%" + strings.ToLower(filter.Search) + "%")
		where = append(where, fmt.Sprintf("(LOWER(u.email) LIKE %s OR LOWER(u.first_name) LIKE %s OR LOWER(u.last_name) LIKE %s OR u.mobile LIKE %s)", p, p, p, p))
	}
	if filter.Role != "" {
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM user_roles ur JOIN roles ro ON ro.id = ur.role_id WHERE ur.user_id = u.id AND ro.name = %s)",
			arg(filter.Role)))
	}
	if filter.Active != nil {
		where = append(where, "u.is_active = "+arg(*filter.Active))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users u`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + userColumns + ` FROM users u` + clause +
		` ORDER BY u.id LIMIT ` + arg(filter.PerPage) + ` OFFSET ` + arg((filter.Page-1)*filter.PerPage)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.Mobile, &u.FirstName, &u.LastName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.attachRoles(ctx, out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *pgRepository) Get(ctx context.Context, id int64) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id).
		Scan(&u.ID, &u.Email, &u.Mobile, &u.FirstName, &u.LastName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, httpx.ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	users := []User{u}
	if err := r.attachRoles(ctx, users); err != nil {
		return User{}, err
	}
	return users[0], nil
}

func (r *pgRepository) UpdateProfile(ctx context.Context, id int64, input ProfileInput) (User, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET mobile = $2, first_name = $3, last_name = $4, updated_at = NOW()
		WHERE id = $1`,
		id, input.Mobile, input.FirstName, input.LastName)
	if err != nil {
		return User{}, mapUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return User{}, httpx.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *pgRepository) SetActive(ctx context.Context, id int64, active bool) (User, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return User{}, err
	}
	if tag.RowsAffected() == 0 {
		return User{}, httpx.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *pgRepository) attachRoles(ctx context.Context, users []User) error {
	if len(users) == 0 {
		return nil
	}
	ids := make([]int64, len(users))
	index := make(map[int64]int, len(users))
	for i := range users {
		ids[i] = users[i].ID
		index[users[i].ID] = i
		users[i].Roles = []string{}
	}
	rows, err := r.pool.Query(ctx, `
		SELECT ur.user_id, ro.name
		FROM user_roles ur
		JOIN roles ro ON ro.id = ur.role_id
		WHERE ur.user_id = ANY($1)
		ORDER BY ro.name`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var userID int64
		var name string
		if err := rows.Scan(&userID, &name); err != nil {
			return err
		}
		if i, ok := index[userID]; ok {
			users[i].Roles = append(users[i].Roles, name)
		}
	}
	return rows.Err()
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (r *pgTxRepository) CreateUser(ctx context.Context, input Input, passwordHash string) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO users (email, mobile, first_name, last_name, password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW())
		RETURNING id`,
		input.Email, input.Mobile, input.FirstName, input.LastName, passwordHash,
	).Scan(&id)
	if err != nil {
		return 0, mapUniqueViolation(err)
	}
	return id, nil
}

func (r *pgTxRepository) CreateUserIfAbsent(ctx context.Context, input Input, passwordHash string) (int64, bool, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO users (email, mobile, first_name, last_name, password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW())
		ON CONFLICT DO NOTHING
		RETURNING id`,
		input.Email, input.Mobile, input.FirstName, input.LastName, passwordHash,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (r *pgTxRepository) ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return err
	}
	for _, roleID := range roleIDs {
		if _, err := r.tx.Exec(ctx,
			`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, userID, roleID); err != nil {
			return err
		}
	}
	return nil
}

func (r *pgTxRepository) CountExistingRoles(ctx context.Context, ids []int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM roles WHERE id = ANY($1)`, ids).Scan(&count)
	return count, err
}

func (r *pgTxRepository) RoleIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM roles WHERE name = $1`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, httpx.ErrNotFound
	}
	return id, err
}

// PrimaryAdminID resolves the lowest user id holding the system Admin role,
// which identifies the first created administrator.
func (r *pgTxRepository) PrimaryAdminID(ctx context.Context) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		SELECT COALESCE(MIN(ur.user_id), 0)
		FROM user_roles ur
		JOIN roles ro ON ro.id = ur.role_id
		WHERE ro.name = $1 AND ro.is_system`, rbac.RoleAdmin).Scan(&id)
	return id, err
}

func (r *pgTxRepository) DeleteUser(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, id); err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return httpx.ErrDuplicate
	}
	return err
}
