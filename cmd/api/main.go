package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	httpAdapter "github.com/lorrc/workload-insights/internal/adapters/primary/http"
	mw "github.com/lorrc/workload-insights/internal/adapters/primary/http/middleware"
	"github.com/lorrc/workload-insights/internal/adapters/primary/websocket"
	"github.com/lorrc/workload-insights/internal/adapters/secondary/sqlite"
	"github.com/lorrc/workload-insights/internal/app"
	"github.com/lorrc/workload-insights/internal/auth"
	"github.com/lorrc/workload-insights/internal/config"
	"github.com/lorrc/workload-insights/internal/infrastructure/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       os.Stdout,
		ServiceName:  cfg.App.Name,
		Environment:  cfg.App.Environment,
		SourceSystem: cfg.Workload.SourceSystem,
	})
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("service stopped", "error", err)
		os.Exit(1)
	}
}

// limiters holds the optional request limiters; both are nil when rate
// limiting is off.
type limiters struct {
	general *mw.RateLimiter
	detect  *mw.RateLimiter
}

func newLimiters(cfg config.RateLimitConfig) limiters {
	if !cfg.Enabled {
		return limiters{}
	}
	return limiters{
		general: mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RequestsPerSecond,
			BurstSize:         cfg.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		}),
		detect: mw.NewCallerRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.DetectRPS,
			BurstSize:         cfg.DetectBurst,
		}),
	}
}

func (l limiters) stop() {
	if l.general != nil {
		l.general.Stop()
	}
	if l.detect != nil {
		l.detect.Stop()
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"config", cfg.String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := app.OpenPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("database connection established")

	var opts app.Options
	checks := []httpAdapter.HealthCheck{{Name: "database", Checker: pool, Critical: true}}
	if path := cfg.Workload.AlertLedger; path != "" {
		ledger, err := sqlite.Open(path)
		if err != nil {
			return fmt.Errorf("open alert ledger %s: %w", path, err)
		}
		defer ledger.Close()
		opts.Alerts = ledger
		checks = append(checks, httpAdapter.HealthCheck{Name: "alert_ledger", Checker: ledger, Critical: true})
		logger.Info("risk alerts stored in local ledger", "path", path)
	}

	// The hub outlives the signal context so in-flight pushes finish while
	// the server drains.
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := websocket.NewHub(logger)
	go hub.Run(hubCtx)
	opts.Broadcaster = hub

	lim := newLimiters(cfg.RateLimit)
	defer lim.stop()

	svc := app.NewServices(pool, cfg, opts, logger)
	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL)
	errorHandler := httpAdapter.NewErrorHandler(logger)

	r := newRouter(cfg, logger, lim.general)
	httpAdapter.NewHealthHandler(cfg.App.Version, checks...).
		WithInfo("task_source", svc.ActiveTasks.Name()).
		RegisterRoutes(r)

	ws := httpAdapter.NewWebSocketHandler(hub, tokens, cfg.WebSocket, cfg.IsDevelopment(), logger)
	workload := httpAdapter.NewWorkloadHandler(svc.Workload, errorHandler, logger)
	insights := httpAdapter.NewInsightsHandler(svc.Workload, svc.Risk, lim.detect, errorHandler, logger)

	r.Route("/api/v1", func(r chi.Router) {
		// The websocket handler authenticates the upgrade itself.
		r.Get("/ws", ws.ServeHTTP)
		r.Group(func(r chi.Router) {
			r.Use(mw.JWTMiddleware(tokens))
			r.Route("/workload", workload.RegisterRoutes)
			r.Route("/insights", insights.RegisterRoutes)
		})
	})

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	// Close websocket connections, then wait for queued notifications.
	stopHub()
	svc.Risk.Shutdown()

	logger.Info("server shutdown complete")
	return nil
}

func newRouter(cfg *config.Config, logger *slog.Logger, limiter *mw.RateLimiter) *chi.Mux {
	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", mw.RequestIDHeader},
		ExposedHeaders:   []string{mw.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           cfg.CORS.MaxAge,
	}))
	if limiter != nil {
		r.Use(limiter.Middleware)
	}
	return r
}
