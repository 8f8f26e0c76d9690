package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/employdex/base-platform/internal/audit"
	"github.com/employdex/base-platform/internal/auth"
	"github.com/employdex/base-platform/internal/authz"
	"github.com/employdex/base-platform/internal/features"
	"github.com/employdex/base-platform/internal/observability"
	"github.com/employdex/base-platform/internal/payments"
	"github.com/employdex/base-platform/internal/rbac"
	"github.com/employdex/base-platform/internal/users"
	"github.com/employdex/base-platform/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	Authz authz.Middleware

	AuthHandler     *auth.Handler
	UsersHandler    *users.Handler
	RBACHandler     *rbac.Handler
	FeaturesHandler *features.Handler
	PaymentsHandler *payments.Handler
	AuditHandler    *audit.Handler
	JobHandler      *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	loginLimit := 10
	if params.Config != nil && params.Config.LoginRateLimitPerMinute > 0 {
		loginLimit = params.Config.LoginRateLimitPerMinute
	}
	r.Route("/auth", func(r chi.Router) {
		r.Use(httprate.Limit(loginLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		params.AuthHandler.MountRoutes(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(params.Authz.Authenticate)

		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.RBACHandler != nil {
			r.Route("/roles", params.RBACHandler.MountRoleRoutes)
			r.Route("/permissions", params.RBACHandler.MountPermissionRoutes)
		}
		if params.FeaturesHandler != nil {
			r.Route("/features", params.FeaturesHandler.MountRoutes)
			if params.PaymentsHandler != nil {
				r.Route("/payments", func(r chi.Router) {
					r.Use(params.FeaturesHandler.Require(features.FeaturePayments))
					params.PaymentsHandler.MountRoutes(r)
				})
			}
		}
		if params.AuditHandler != nil {
			r.Route("/audit", func(r chi.Router) {
				r.Use(params.Authz.Require(authz.Requirement{
					AnyOfPermissions: []string{audit.PermActivityView},
					AnyOfRoles:       []string{rbac.RoleAdmin},
				}))
				params.AuditHandler.MountRoutes(r)
			})
		}
		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(params.Authz.Require(authz.Requirement{AnyOfRoles: []string{rbac.RoleAdmin}}))
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	return r
}
