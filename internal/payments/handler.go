package payments

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/employdex/base-platform/internal/authz"
	"github.com/employdex/base-platform/internal/platform/httpx"
	"github.com/employdex/base-platform/internal/rbac"
)

// Permission names for payment endpoints.
const (
	PermPaymentView = "payment_view"
	PermPaymentEdit = "payment_edit"
)

// Handler manages QR code and transaction endpoints. The feature gate is
// composed by the router, ahead of these routes.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	authz    authz.Middleware
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: mw, validate: validator.New()}
}

// MountRoutes registers payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.Requirement{AnyOfPermissions: []string{PermPaymentView, PermPaymentEdit}, AnyOfRoles: []string{rbac.RoleAdmin}}))
		r.Get("/qr", h.listQRCodes)
		r.Get("/qr/{id}", h.getQRCode)
		r.Get("/qr/{id}/image", h.getQRImage)
		r.Get("/transactions", h.listTransactions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.Requirement{AnyOfPermissions: []string{PermPaymentEdit}, AnyOfRoles: []string{rbac.RoleAdmin}}))
		r.Post("/qr", h.createQRCode)
		r.Put("/qr/{id}/activate", h.activateQRCode)
		r.Post("/transactions", h.recordTransaction)
	})
}

func (h *Handler) listQRCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.service.ListQRCodes(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"qr_codes": codes})
}

func (h *Handler) getQRCode(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	code, err := h.service.GetQRCode(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	code.Image = nil
	httpx.JSON(w, http.StatusOK, code)
}

func (h *Handler) getQRImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	code, err := h.service.GetQRCode(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(code.Image)
}

type createQRRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (h *Handler) createQRCode(w http.ResponseWriter, r *http.Request) {
	var req createQRRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	code, err := h.service.CreateQRCode(r.Context(), actorID(r), req.Name)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	code.Image = nil
	httpx.JSON(w, http.StatusCreated, code)
}

func (h *Handler) activateQRCode(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	if err := h.service.ActivateQRCode(r.Context(), actorID(r), id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"activated": id})
}

type transactionRequest struct {
	QRCodeID int64  `json:"qr_code_id" validate:"required"`
	Amount   int64  `json:"amount" validate:"required,gt=0"`
	Currency string `json:"currency" validate:"required,len=3"`
	Status   string `json:"status" validate:"omitempty,oneof=pending completed failed"`
}

func (h *Handler) recordTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	tx, err := h.service.RecordTransaction(r.Context(), actorID(r), Transaction{
		QRCodeID: req.QRCodeID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Status:   req.Status,
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tx)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	qrCodeID, _ := strconv.ParseInt(q.Get("qr_code_id"), 10, 64)
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	result, err := h.service.ListTransactions(r.Context(), qrCodeID, page, perPage)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func actorID(r *http.Request) int64 {
	if claims := authz.ClaimsFromContext(r.Context()); claims != nil {
		return claims.User.ID
	}
	return 0
}
