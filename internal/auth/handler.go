package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/employdex/base-platform/internal/platform/httpx"
	"github.com/employdex/base-platform/jobs"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	jobs     *jobs.Client
	validate *validator.Validate
}

// NewHandler constructs a Handler instance. The jobs client may be nil, in
// which case registration skips the welcome task.
func NewHandler(logger *slog.Logger, service *Service, jobsClient *jobs.Client) *Handler {
	return &Handler{logger: logger, service: service, jobs: jobsClient, validate: validator.New()}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/register", h.handleRegister)
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Kind       string `json:"kind" validate:"omitempty,oneof=email mobile"`
	Password   string `json:"password" validate:"required"`
}

type identityResponse struct {
	ID          int64    `json:"id"`
	Email       string   `json:"email"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

type loginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	User      identityResponse `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}

	session, err := h.service.Login(r.Context(), resolveIdentifier(req), req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountDisabled):
			httpx.JSON(w, http.StatusUnauthorized, map[string]string{"error": ErrAccountDisabled.Error()})
		case errors.Is(err, ErrInvalidCredentials):
			httpx.JSON(w, http.StatusUnauthorized, map[string]string{"error": ErrInvalidCredentials.Error()})
		default:
			httpx.RespondError(w, h.logger, err)
		}
		return
	}

	httpx.JSON(w, http.StatusOK, loginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      toIdentityResponse(session),
	})
}

type registerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Mobile    string `json:"mobile" validate:"required,min=7,max=20"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Password  string `json:"password" validate:"required,min=8"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}

	user, err := h.service.Register(r.Context(), User{
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Mobile:    strings.TrimSpace(req.Mobile),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
	}, req.Password)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}

	if h.jobs != nil {
		payload := jobs.SendWelcomePayload{Email: user.Email, FirstName: user.FirstName}
		if _, err := h.jobs.EnqueueSendWelcome(r.Context(), payload); err != nil && h.logger != nil {
			h.logger.Warn("enqueue welcome task", slog.Any("error", err))
		}
	}

	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":    user.ID,
		"email": user.Email,
	})
}

// resolveIdentifier maps the request to a tagged identifier. The kind wins
// when supplied; the legacy single-field form falls back to an email shape
// test at this boundary only.
func resolveIdentifier(req loginRequest) Identifier {
	value := strings.TrimSpace(req.Identifier)
	switch IdentifierKind(req.Kind) {
	case KindEmail:
		return EmailIdentifier(value)
	case KindMobile:
		return MobileIdentifier(value)
	}
	if strings.Contains(value, "@") {
		return EmailIdentifier(value)
	}
	return MobileIdentifier(value)
}

func toIdentityResponse(session *Session) identityResponse {
	roles := session.Roles
	if roles == nil {
		roles = []string{}
	}
	perms := session.Permissions
	if perms == nil {
		perms = []string{}
	}
	return identityResponse{
		ID:          session.User.ID,
		Email:       session.User.Email,
		FirstName:   session.User.FirstName,
		LastName:    session.User.LastName,
		Roles:       roles,
		Permissions: perms,
	}
}
