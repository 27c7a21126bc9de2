// Package main is the entrypoint for the paygate API server.
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

	"github.com/jedilabs/paygate/internal/api"
	"github.com/jedilabs/paygate/internal/api/handler"
	mw "github.com/jedilabs/paygate/internal/api/middleware"
	"github.com/jedilabs/paygate/internal/api/response"
	"github.com/jedilabs/paygate/internal/cache"
	"github.com/jedilabs/paygate/internal/config"
	"github.com/jedilabs/paygate/internal/dispatch"
	"github.com/jedilabs/paygate/internal/engine"
	"github.com/jedilabs/paygate/internal/payment"
	"github.com/jedilabs/paygate/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"network", cfg.Payment.Network,
		"execution_service", cfg.Dispatch.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create collaborator clients
	payments := payment.NewHTTPClient(
		cfg.Payment.ServiceURL,
		cfg.Payment.APIKey,
		cfg.Payment.Network,
		cfg.Payment.AgentIdentifier,
		cfg.Payment.SellerVKey,
		cfg.Payment.Timeout,
	)
	monitor := payment.NewMonitor(payments, cfg.Payment.PollInterval)
	dispatcher := dispatch.NewHTTPClient(cfg.Dispatch.BaseURL, cfg.Dispatch.Timeout)

	// 6. Create store and engine
	pgStore := store.NewPostgresStore(pool)
	eng := engine.New(pgStore, payments, monitor, dispatcher, redisCache, cfg.Pricing)

	// 7. Resume settlement watches for jobs still awaiting payment
	resumed, err := eng.ResumeMonitoring(ctx)
	if err != nil {
		return fmt.Errorf("resume monitoring: %w", err)
	}
	slog.Info("settlement monitoring ready", "resumed", resumed)

	// 8. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler:       healthHandler(pgStore, redisCache, dispatcher),
		AvailabilityHandler: handler.NewAvailabilityHandler(),
		InputSchemaHandler:  handler.NewInputSchemaHandler(),

		CreateProjectHandler: handler.NewCreateProjectHandler(eng),
		InteractHandler:      handler.NewInteractHandler(eng),
		AnalyzeHandler:       handler.NewAnalyzeHandler(eng),

		SetupInfoHandler:    handler.NewSetupInfoHandler(eng),
		SetupSocialsHandler: handler.NewSetupSocialsHandler(eng),
		SetupKarmaHandler:   handler.NewSetupKarmaHandler(eng),
		SetupIPHandler:      handler.NewSetupIPHandler(eng),

		StatusHandler: handler.NewStatusHandler(eng),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	// Release payment watches; ResumeMonitoring picks the awaiting_payment
	// rows back up on the next start.
	monitor.StopAll()

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database, cache, and execution service connectivity.
func healthHandler(s store.Store, c cache.Cache, d dispatch.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database":          "ok",
			"cache":             "ok",
			"execution_service": "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}
		if err := d.Healthy(r.Context()); err != nil {
			checks["execution_service"] = "degraded"
		}

		degraded := false
		for _, v := range checks {
			if v != "ok" {
				degraded = true
			}
		}
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
