package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/employdex/base-platform/internal/app"
	"github.com/employdex/base-platform/internal/audit"
	"github.com/employdex/base-platform/internal/auth"
	"github.com/employdex/base-platform/internal/authz"
	"github.com/employdex/base-platform/internal/events"
	"github.com/employdex/base-platform/internal/features"
	"github.com/employdex/base-platform/internal/observability"
	"github.com/employdex/base-platform/internal/payments"
	"github.com/employdex/base-platform/internal/platform/cache"
	"github.com/employdex/base-platform/internal/platform/db"
	"github.com/employdex/base-platform/internal/rbac"
	"github.com/employdex/base-platform/internal/users"
	"github.com/employdex/base-platform/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	// Feature gates fail closed without Redis, so a missing cache is a
	// degraded start rather than a fatal one.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, feature cache disabled", slog.Any("error", err))
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	issuer, err := authz.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logger.Error("init token issuer", slog.Any("error", err))
		os.Exit(1)
	}
	authzMiddleware := authz.Middleware{Issuer: issuer, Logger: logger}

	auditSink := audit.NewRecorder(dbpool)
	auditService := audit.NewService(audit.NewRepository(dbpool))
	auditHandler := audit.NewHandler(logger, auditService)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	emitter := events.NewAsynqEmitter(jobsClient.Raw(), logger)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, issuer, auditSink, emitter, logger)
	authHandler := auth.NewHandler(logger, authService, jobsClient)

	rbacRepo := rbac.NewRepository(dbpool)
	rbacService := rbac.NewService(rbacRepo, auditSink, emitter, logger)
	rbacHandler := rbac.NewHandler(logger, rbacService, authzMiddleware)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, auditSink, emitter, logger)
	usersHandler := users.NewHandler(logger, usersService, authzMiddleware, rbacHandler.AssignUserRoles)

	featuresRepo := features.NewPGRepository(dbpool)
	featuresService := features.NewService(featuresRepo, redisClient, cfg.FeatureCacheTTL, auditSink, logger)
	featuresHandler := features.NewHandler(logger, featuresService, authzMiddleware)

	paymentsRepo := payments.NewRepository(dbpool)
	paymentsService := payments.NewService(paymentsRepo, auditSink, emitter, logger)
	paymentsHandler := payments.NewHandler(logger, paymentsService, authzMiddleware)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Authz:           authzMiddleware,
		AuthHandler:     authHandler,
		UsersHandler:    usersHandler,
		RBACHandler:     rbacHandler,
		FeaturesHandler: featuresHandler,
		PaymentsHandler: paymentsHandler,
		AuditHandler:    auditHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
