package payments

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/employdex/base-platform/internal/audit"
	"github.com/employdex/base-platform/internal/events"
	"github.com/employdex/base-platform/internal/platform/httpx"
	"github.com/employdex/base-platform/internal/shared"
)

// qrImageSize is the rendered PNG edge length in pixels.
const qrImageSize = 256

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Service implements QR code and transaction rules.
type Service struct {
	repo    Repository
	sink    audit.Sink
	emitter events.Emitter
	logger  *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, sink audit.Sink, emitter events.Emitter, logger *slog.Logger) *Service {
	if sink == nil {
		sink = audit.Discard{}
	}
	if emitter == nil {
		emitter = events.Noop{}
	}
	return &Service{repo: repo, sink: sink, emitter: emitter, logger: logger}
}

// ListQRCodes returns all codes without image payloads.
func (s *Service) ListQRCodes(ctx context.Context) ([]QRCode, error) {
	codes, err := s.repo.ListQRCodes(ctx)
	if err != nil {
		return nil, err
	}
	if codes == nil {
		codes = []QRCode{}
	}
	return codes, nil
}

// GetQRCode returns one code including the PNG image.
func (s *Service) GetQRCode(ctx context.Context, id int64) (QRCode, error) {
	return s.repo.GetQRCode(ctx, id)
}

// CreateQRCode renders a PNG for a fresh reference and stores it inactive.
// Activation is a separate, explicit step.
func (s *Service) CreateQRCode(ctx context.Context, actorID int64, name string) (QRCode, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return QRCode{}, httpx.ErrValidation
	}
	reference := uuid.NewString()
	image, err := qrcode.Encode("employdex:pay:"+reference, qrcode.Medium, qrImageSize)
	if err != nil {
		return QRCode{}, fmt.Errorf("payments: render qr: %w", err)
	}
	code, err := s.repo.CreateQRCode(ctx, QRCode{Name: name, Reference: reference, Image: image})
	if err != nil {
		return QRCode{}, err
	}
	s.record(ctx, actorID, "payment.qr_created", code.ID, map[string]any{"reference": reference})
	return code, nil
}

// ActivateQRCode makes the given code the single active one. Both writes run
// in one transaction so no window exists with two active codes.
func (s *Service) ActivateQRCode(ctx context.Context, actorID, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeactivateAll(ctx); err != nil {
			return err
		}
		return tx.Activate(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "payment.qr_activated", id, nil)
	s.emitter.Emit(ctx, "payment.qr_activated", actorID, map[string]any{"qr_code_id": id})
	return nil
}

// RecordTransaction stores an incoming payment against a known code.
func (s *Service) RecordTransaction(ctx context.Context, actorID int64, tx Transaction) (Transaction, error) {
	if tx.Amount <= 0 || tx.Currency == "" {
		return Transaction{}, httpx.ErrValidation
	}
	switch tx.Status {
	case StatusPending, StatusCompleted, StatusFailed:
	case "":
		tx.Status = StatusPending
	default:
		return Transaction{}, httpx.ErrValidation
	}
	if _, err := s.repo.GetQRCode(ctx, tx.QRCodeID); err != nil {
		return Transaction{}, err
	}
	created, err := s.repo.CreateTransaction(ctx, tx)
	if err != nil {
		return Transaction{}, err
	}
	s.record(ctx, actorID, "payment.transaction_recorded", created.ID, map[string]any{
		"amount":   created.Amount,
		"currency": created.Currency,
	})
	return created, nil
}

// TransactionPage is a paginated transaction window.
type TransactionPage struct {
	Transactions []Transaction     `json:"transactions"`
	Paging       shared.Pagination `json:"paging"`
}

// ListTransactions returns one page, optionally scoped to a QR code.
func (s *Service) ListTransactions(ctx context.Context, qrCodeID int64, page, perPage int) (*TransactionPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	txs, total, err := s.repo.ListTransactions(ctx, qrCodeID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []Transaction{}
	}
	return &TransactionPage{Transactions: txs, Paging: shared.NewPagination(page, perPage, total)}, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	entry := audit.Entry{
		ActorID:  actorID,
		Action:   action,
		Entity:   "payment",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	}
	if err := s.sink.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
