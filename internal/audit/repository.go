package audit

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// TimelineWindow returns a window of audit rows, newest first.
func (r *PGRepository) TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, strings.ReplaceAll(clause, "?", placeholder(len(args))))
	}
	if !filters.From.IsZero() {
		add("occurred_at >= ?", filters.From)
	}
	if !filters.To.IsZero() {
		add("occurred_at <= ?", filters.To)
	}
	if filters.Actor != 0 {
		add("actor_id = ?", filters.Actor)
	}
	if filters.Action != "" {
		add("action = ?", filters.Action)
	}
	if filters.Entity != "" {
		add("entity = ?", filters.Entity)
	}

	query := `SELECT occurred_at, actor_id, action, entity, entity_id, meta FROM audit_logs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	args = append(args, limit)
	query += " ORDER BY occurred_at DESC, id DESC LIMIT " + placeholder(len(args))
	args = append(args, offset)
	query += " OFFSET " + placeholder(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TimelineRow
	for rows.Next() {
		var row TimelineRow
		var metaJSON []byte
		if err := rows.Scan(&row.At, &row.ActorID, &row.Action, &row.Entity, &row.EntityID, &metaJSON); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &row.Meta)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

var _ Repository = (*PGRepository)(nil)
