package rbac

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/employdex/base-platform/internal/authz"
	"github.com/employdex/base-platform/internal/platform/httpx"
)

// Permission names used by the catalog's own routes.
const (
	PermRoleView       = "role_view"
	PermRoleEdit       = "role_edit"
	PermPermissionView = "permission_view"
	PermPermissionEdit = "permission_edit"
	PermUserEdit       = "user_edit"
)

// Handler manages role and permission endpoints.
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

// MountRoleRoutes registers role catalog routes.
func (h *Handler) MountRoleRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.Requirement{AnyOfPermissions: []string{PermRoleView, PermRoleEdit}, AnyOfRoles: []string{RoleAdmin}}))
		r.Get("/", h.listRoles)
		r.Get("/matrix", h.accessMatrix)
		r.Get("/{id}", h.getRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.Requirement{AnyOfPermissions: []string{PermRoleEdit}, AnyOfRoles: []string{RoleAdmin}}))
		r.Post("/", h.createRole)
		r.Put("/{id}", h.updateRole)
		r.Delete("/{id}", h.deleteRole)
	})
}

// MountPermissionRoutes registers permission catalog routes.
func (h *Handler) MountPermissionRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.Requirement{AnyOfPermissions: []string{PermPermissionView, PermPermissionEdit}, AnyOfRoles: []string{RoleAdmin}}))
		r.Get("/", h.listPermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.Requirement{AnyOfPermissions: []string{PermPermissionEdit}, AnyOfRoles: []string{RoleAdmin}}))
		r.Post("/", h.createPermission)
		r.Put("/{id}", h.updatePermission)
	})
}

// AssignUserRoles handles PUT /users/{id}/roles. Mounted by the users router
// group so the path stays with the user resource.
func (h *Handler) AssignUserRoles(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	var body struct {
		RoleIDs []int64 `json:"role_ids"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	if err := h.service.AssignUserRoles(r.Context(), actorID(r), userID, body.RoleIDs); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user_id": userID, "role_ids": body.RoleIDs})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if roles == nil {
		roles = []Role{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

// accessMatrix returns every role with its attached permissions alongside the
// full permission catalog, so an admin UI can render the grant grid in one
// request. Both reads are independent and run concurrently.
func (h *Handler) accessMatrix(w http.ResponseWriter, r *http.Request) {
	var (
		roles []Role
		perms []Permission
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		roles, err = h.service.ListRoles(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		perms, err = h.service.ListPermissions(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}

	if roles == nil {
		roles = []Role{}
	}
	if perms == nil {
		perms = []Permission{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles, "permissions": perms})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

type rolePayload struct {
	Name          string  `json:"name" validate:"required,max=100"`
	Description   string  `json:"description" validate:"max=500"`
	PermissionIDs []int64 `json:"permission_ids"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var body rolePayload
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	role, err := h.service.CreateRole(r.Context(), actorID(r), RoleInput{
		Name:          body.Name,
		Description:   body.Description,
		PermissionIDs: body.PermissionIDs,
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	var body rolePayload
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	role, err := h.service.UpdateRole(r.Context(), actorID(r), id, RoleInput{
		Name:          body.Name,
		Description:   body.Description,
		PermissionIDs: body.PermissionIDs,
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	if err := h.service.DeleteRole(r.Context(), actorID(r), id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if perms == nil {
		perms = []Permission{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

type permissionPayload struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var body permissionPayload
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	perm, err := h.service.CreatePermission(r.Context(), actorID(r), body.Name, body.Description)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, perm)
}

func (h *Handler) updatePermission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	var body struct {
		Description string `json:"description" validate:"max=500"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, h.logger, httpx.ErrValidation)
		return
	}
	perm, err := h.service.UpdatePermission(r.Context(), actorID(r), id, body.Description)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perm)
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
