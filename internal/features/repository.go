package features

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/employdex/base-platform/internal/platform/httpx"
)

// Repository is the persistence surface for feature toggles.
type Repository interface {
	List(ctx context.Context) ([]Toggle, error)
	Get(ctx context.Context, name string) (*Toggle, error)
	Upsert(ctx context.Context, name string, enabled bool, description string) (*Toggle, error)
}

// PGRepository implements Repository on Postgres.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository wires the repository to the shared pool.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const toggleColumns = `id, name, COALESCE(description, ''), enabled, updated_at`

func (r *PGRepository) List(ctx context.Context) ([]Toggle, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+toggleColumns+` FROM feature_toggles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var toggles []Toggle
	for rows.Next() {
		var t Toggle
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Enabled, &t.UpdatedAt); err != nil {
			return nil, err
		}
		toggles = append(toggles, t)
	}
	return toggles, rows.Err()
}

func (r *PGRepository) Get(ctx context.Context, name string) (*Toggle, error) {
	var t Toggle
	err := r.pool.QueryRow(ctx,
		`SELECT `+toggleColumns+` FROM feature_toggles WHERE name = $1`, name,
	).Scan(&t.ID, &t.Name, &t.Description, &t.Enabled, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, httpx.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PGRepository) Upsert(ctx context.Context, name string, enabled bool, description string) (*Toggle, error) {
	var t Toggle
	err := r.pool.QueryRow(ctx, `
		INSERT INTO feature_toggles (name, description, enabled, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (name) DO UPDATE
		SET enabled = EXCLUDED.enabled,
		    description = CASE WHEN EXCLUDED.description = '' THEN feature_toggles.description ELSE EXCLUDED.description END,
		    updated_at = NOW()
		RETURNING `+toggleColumns,
		name, description, enabled,
	).Scan(&t.ID, &t.Name, &t.Description, &t.Enabled, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
