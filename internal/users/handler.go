package users

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/employdex/base-platform/internal/authz"
	"github.com/employdex/base-platform/internal/platform/httpx"
	"github.com/employdex/base-platform/internal/rbac"
)

// PermUserView guards read access to the catalog. Edits reuse the
// catalog-wide permission declared in the rbac package.
const PermUserView = "user_view"

// maxBulkUpload bounds the CSV request body.
const maxBulkUpload = 5 << 20

// Handler manages user management endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	authz       authz.Middleware
	validate    *validator.Validate
	assignRoles http.HandlerFunc
}

// NewHandler builds a Handler instance. assignRoles serves
// PUT /users/{id}/roles so role assignment stays with the catalog owner.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware, assignRoles http.HandlerFunc) *Handler {
	return &Handler{logger: logger, service: service, authz: mw, validate: validator.New(), assignRoles: assignRoles}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.Requirement{AnyOfPermissions: []string{PermUserView, rbac.PermUserEdit}, AnyOfRoles: []string{rbac.RoleAdmin}}))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.Requirement{AnyOfPermissions: []string{rbac.PermUserEdit}, AnyOfRoles: []string{rbac.RoleAdmin}}))
		r.Post("/", h.create)
		r.Post("/bulk", h.bulkCreate)
		r.Put("/{id}", h.update)
		r.Put("/{id}/activate", h.activate)
		r.Put("/{id}/deactivate", h.deactivate)
		r.Delete("/{id}", h.remove)
		if h.assignRoles != nil {
			r.Put("/{id}/roles", h.assignRoles)
		}
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{
		Search: strings.TrimSpace(q.Get("search")),
		Role:   strings.TrimSpace(q.Get("role")),
	}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			httpx.RespondError(w, h.logger, httpx.ErrValidation)
			return
		}
		filter.Active = &active
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	result, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

type createRequest struct {
	Email     string  `json:"email" validate:"required,email"`
	Mobile    string  `json:"mobile" validate:"required,min=7,max=20"`
	FirstName string  `json:"first_name" validate:"required,max=100"`
	LastName  string  `json:"last_name" validate:"max=100"`
	Password  string  `json:"password" validate:"required,min=8"`
	RoleIDs   []int64 `json:"role_ids"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	user, err := h.service.Create(r.Context(), actorID(r), Input{
		Email:     req.Email,
		Mobile:    req.Mobile,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
		RoleIDs:   req.RoleIDs,
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

type updateRequest struct {
	Mobile    string `json:"mobile" validate:"required,min=7,max=20"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	user, err := h.service.Update(r.Context(), actorID(r), id, ProfileInput{
		Mobile:    req.Mobile,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	user, err := h.service.SetActive(r.Context(), actorID(r), id, active)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	if err := h.service.Delete(r.Context(), actorID(r), id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// bulkCreate accepts either a multipart form with a "file" part or a raw
// text/csv body.
func (h *Handler) bulkCreate(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxBulkUpload)
	defer body.Close()

	source := io.Reader(body)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxBulkUpload); err != nil {
			httpx.RespondError(w, h.logger, httpx.ErrValidation)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			httpx.RespondError(w, h.logger, httpx.ErrValidation)
			return
		}
		defer file.Close()
		source = file
	}

	result, err := h.service.BulkCreate(r.Context(), actorID(r), source)
	if err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
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
