// Package main is the entrypoint for the triage API server.
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

	"github.com/dromeas/triage/internal/ai"
	"github.com/dromeas/triage/internal/api"
	"github.com/dromeas/triage/internal/api/handler"
	mw "github.com/dromeas/triage/internal/api/middleware"
	"github.com/dromeas/triage/internal/api/response"
	"github.com/dromeas/triage/internal/cache"
	"github.com/dromeas/triage/internal/config"
	"github.com/dromeas/triage/internal/logging"
	"github.com/dromeas/triage/internal/store"
	"github.com/dromeas/triage/pkg/models"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logging.Init(os.Stdout, logging.ParseLevel(os.Getenv("LOG_LEVEL")))

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Init(os.Stdout, logging.ParseLevel(cfg.Server.LogLevel))
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"primary_provider", cfg.AI.PrimaryProvider,
		"configured_providers", cfg.AI.ConfiguredProviders(),
	)

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
	if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
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

	// 5. Build the classifier gateway. No providers is allowed: every
	// classification then returns the default result.
	gateway, err := ai.NewGatewayFromConfig(ctx, cfg.AI)
	if err != nil {
		return fmt.Errorf("create ai gateway: %w", err)
	}
	if len(gateway.Configured()) == 0 {
		slog.Warn("no ai provider configured, classifications will use the default result")
	} else {
		slog.Info("ai gateway initialized", "providers", gateway.Configured())
	}

	// 6. Create store and service
	pgStore := store.NewPostgresStore(pool)
	triage := ai.NewTriageService(gateway, pgStore, redisCache)

	// 7. Build router with dependencies
	deps := api.Dependencies{
		Auth:      mw.NewAuth(pgStore),
		RateLimit: mw.NewRateLimit(redisCache, cfg.Server.RateLimitPerMinute),

		HealthHandler:    healthHandler(pgStore, redisCache, gateway),
		ClassifyHandler:  handler.NewClassifyHandler(gateway),
		ConsensusHandler: handler.NewConsensusHandler(gateway),
		AskHandler:       handler.NewAskHandler(gateway),
		IngestEmail:      handler.NewIngestEmailHandler(triage),
		ListEmails:       handler.NewListEmailsHandler(pgStore),
		GetEmail:         handler.NewGetEmailHandler(pgStore),
		TriageEmail:      handler.NewTriageEmailHandler(triage, pgStore),
		AskEmail:         handler.NewAskEmailHandler(triage),
		PollJobHandler:   handler.NewPollJobHandler(triage),
		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server. Consensus waits on every provider, so the write
	// timeout has to cover one full inference timeout.
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AI.InferenceTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

type providerLister interface {
	Configured() []models.ProviderID
}

// healthHandler checks database and cache connectivity and lists the
// configured AI providers. Having no provider is not a failure.
func healthHandler(db, c pinger, providers providerLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := db.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		configured := providers.Configured()
		if configured == nil {
			configured = []models.ProviderID{}
		}
		response.JSON(w, map[string]any{
			"status":       "ok",
			"services":     checks,
			"ai_providers": configured,
		})
	}
}
