package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/employdex/base-platform/internal/platform/db"
	"github.com/employdex/base-platform/internal/platform/httpx"
)

// Repository defines payment data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	ListQRCodes(ctx context.Context) ([]QRCode, error)
	GetQRCode(ctx context.Context, id int64) (QRCode, error)
	CreateQRCode(ctx context.Context, code QRCode) (QRCode, error)
	CreateTransaction(ctx context.Context, tx Transaction) (Transaction, error)
	ListTransactions(ctx context.Context, qrCodeID int64, limit, offset int) ([]Transaction, int, error)
}

// TxRepository defines activation writes executed within one transaction.
type TxRepository interface {
	DeactivateAll(ctx context.Context) error
	Activate(ctx context.Context, id int64) error
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

func (r *pgRepository) ListQRCodes(ctx context.Context) ([]QRCode, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, reference, is_active, created_at FROM payment_qr_codes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []QRCode
	for rows.Next() {
		var c QRCode
		if err := rows.Scan(&c.ID, &c.Name, &c.Reference, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

func (r *pgRepository) GetQRCode(ctx context.Context, id int64) (QRCode, error) {
	var c QRCode
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, reference, image, is_active, created_at FROM payment_qr_codes WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Reference, &c.Image, &c.IsActive, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return QRCode{}, httpx.ErrNotFound
	}
	return c, err
}

func (r *pgRepository) CreateQRCode(ctx context.Context, code QRCode) (QRCode, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO payment_qr_codes (name, reference, image, is_active, created_at)
		VALUES ($1, $2, $3, FALSE, NOW())
		RETURNING id, is_active, created_at`,
		code.Name, code.Reference, code.Image,
	).Scan(&code.ID, &code.IsActive, &code.CreatedAt)
	return code, err
}

func (r *pgRepository) CreateTransaction(ctx context.Context, tx Transaction) (Transaction, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO payment_transactions (qr_code_id, amount, currency, status, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at`,
		tx.QRCodeID, tx.Amount, tx.Currency, tx.Status,
	).Scan(&tx.ID, &tx.CreatedAt)
	return tx, err
}

func (r *pgRepository) ListTransactions(ctx context.Context, qrCodeID int64, limit, offset int) ([]Transaction, int, error) {
	where := ""
	args := []any{}
	if qrCodeID > 0 {
		where = " WHERE qr_code_id = $1"
		args = append(args, qrCodeID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payment_transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(
		`SELECT id, qr_code_id, amount, currency, status, created_at
		 FROM payment_transactions%s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var txs []Transaction
	for rows.Next() {
		var tx Transaction
		if err := rows.Scan(&tx.ID, &tx.QRCodeID, &tx.Amount, &tx.Currency, &tx.Status, &tx.CreatedAt); err != nil {
			return nil, 0, err
		}
		txs = append(txs, tx)
	}
	return txs, total, rows.Err()
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (r *pgTxRepository) DeactivateAll(ctx context.Context) error {
	_, err := r.tx.Exec(ctx, `UPDATE payment_qr_codes SET is_active = FALSE WHERE is_active`)
	return err
}

func (r *pgTxRepository) Activate(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE payment_qr_codes SET is_active = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}
