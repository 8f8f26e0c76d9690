// Package httpx provides HTTP response utilities and the error taxonomy
// shared by all endpoint handlers.
package httpx

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// Sentinel errors for the domain layer.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrDuplicate       = errors.New("duplicate entry")
	ErrValidation      = errors.New("validation failed")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("authentication required")
)

// Requirement describes the permission/role sets a route accepts. A request
// passes when any single permission or role matches.
type Requirement struct {
	AnyOfPermissions []string `json:"anyOfPermissions"`
	AnyOfRoles       []string `json:"anyOfRoles"`
}

// Empty reports whether the requirement places no restriction at all.
func (r Requirement) Empty() bool {
	return len(r.AnyOfPermissions) == 0 && len(r.AnyOfRoles) == 0
}

// AuthorizationError is returned when a valid identity lacks the claims a
// route requires. The required sets are echoed for diagnostics.
type AuthorizationError struct {
	Required Requirement
}

func (e *AuthorizationError) Error() string {
	return "insufficient permissions"
}

// FeatureDisabledError is returned when a feature-gated route is hit while
// its toggle is off or absent.
type FeatureDisabledError struct {
	Feature string
}

func (e *FeatureDisabledError) Error() string {
	return fmt.Sprintf("Feature '%s' is disabled", e.Feature)
}

// InvariantViolationError marks a mutation rejected by a guard check, such as
// stripping permissions from the Admin role or renaming a system role.
type InvariantViolationError struct {
	Reason string
}

func (e *InvariantViolationError) Error() string {
	return e.Reason
}

// RoleInUseError blocks role deletion while users remain assigned.
type RoleInUseError struct {
	UserCount int
}

func (e *RoleInUseError) Error() string {
	return fmt.Sprintf("role has %d assigned users", e.UserCount)
}

type errorBody struct {
	Error      string       `json:"error"`
	Required   *Requirement `json:"required,omitempty"`
	UserCount  *int         `json:"user_count,omitempty"`
	IncidentID string       `json:"incident_id,omitempty"`
}

// RespondError maps domain errors to HTTP responses with structured JSON
// bodies. Unexpected errors are logged with an opaque incident identifier;
// internals are never surfaced to the client.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var authz *AuthorizationError
	var disabled *FeatureDisabledError
	var invariant *InvariantViolationError
	var inUse *RoleInUseError

	switch {
	case errors.Is(err, ErrUnauthenticated):
		JSON(w, http.StatusUnauthorized, errorBody{Error: err.Error()})
	case errors.As(err, &authz):
		req := authz.Required
		if req.AnyOfPermissions == nil {
			req.AnyOfPermissions = []string{}
		}
		if req.AnyOfRoles == nil {
			req.AnyOfRoles = []string{}
		}
		JSON(w, http.StatusForbidden, errorBody{Error: authz.Error(), Required: &req})
	case errors.As(err, &disabled):
		JSON(w, http.StatusForbidden, errorBody{Error: disabled.Error()})
	case errors.As(err, &invariant):
		JSON(w, http.StatusForbidden, errorBody{Error: invariant.Error()})
	case errors.As(err, &inUse):
		count := inUse.UserCount
		JSON(w, http.StatusBadRequest, errorBody{Error: inUse.Error(), UserCount: &count})
	case errors.Is(err, ErrForbidden):
		JSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
	case errors.Is(err, ErrNotFound):
		JSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, ErrDuplicate):
		JSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, ErrValidation):
		JSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	default:
		incident := uuid.NewString()
		if logger != nil {
			logger.Error("unhandled error", slog.String("incident_id", incident), slog.Any("error", err))
		}
		JSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error", IncidentID: incident})
	}
}
