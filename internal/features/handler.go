package features

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/employdex/base-platform/internal/authz"
	"github.com/employdex/base-platform/internal/platform/httpx"
	"github.com/employdex/base-platform/internal/rbac"
)

// Permission names for toggle administration.
const (
	PermFeatureView = "feature_view"
	PermFeatureEdit = "feature_edit"
)

// Handler exposes toggle administration endpoints.
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

// MountRoutes registers toggle routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.Requirement{AnyOfPermissions: []string{PermFeatureView, PermFeatureEdit}, AnyOfRoles: []string{rbac.RoleAdmin}}))
		r.Get("/", h.list)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.Requirement{AnyOfPermissions: []string{PermFeatureEdit}, AnyOfRoles: []string{rbac.RoleAdmin}}))
		r.Put("/{name}", h.set)
	})
}

// Require gates a route subtree on the named toggle. It must be composed
// after the authorization check so a disabled feature reads as 403, not 401.
func (h *Handler) Require(name string) func(http.Handler) http.Handler {
	return RequireEnabled(h.service, h.logger, name)
}

// RequireEnabled is the standalone form of the gate for routers that do not
// hold a Handler.
func RequireEnabled(service *Service, logger *slog.Logger, name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !service.IsEnabled(r.Context(), name) {
				httpx.RespondError(w, logger, &httpx.FeatureDisabledError{Feature: name})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	toggles, err := h.service.List(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if toggles == nil {
		toggles = []Toggle{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"features": toggles})
}

type setRequest struct {
	Enabled     *bool  `json:"enabled" validate:"required"`
	Description string `json:"description" validate:"max=255"`
}

func (h *Handler) set(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	var req setRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}

	actor := int64(0)
	if claims := authz.ClaimsFromContext(r.Context()); claims != nil {
		actor = claims.User.ID
	}
	toggle, err := h.service.Set(r.Context(), actor, name, *req.Enabled, req.Description)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toggle)
}
