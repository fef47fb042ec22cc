// Package main is the entrypoint for the meetscribe API server.
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

	"github.com/avoss/meetscribe/internal/api"
	"github.com/avoss/meetscribe/internal/api/handler"
	mw "github.com/avoss/meetscribe/internal/api/middleware"
	"github.com/avoss/meetscribe/internal/api/response"
	"github.com/avoss/meetscribe/internal/cache"
	"github.com/avoss/meetscribe/internal/config"
	"github.com/avoss/meetscribe/internal/jobs"
	"github.com/avoss/meetscribe/internal/pipeline"
	"github.com/avoss/meetscribe/internal/store"
	"github.com/avoss/meetscribe/internal/summarize"
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
		"store_backend", cfg.Store.Backend,
		"summary_provider", cfg.Summarize.Provider,
		"env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Create job store
	jobStore, cleanup, err := newStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer cleanup()

	// 3. Create cache (optional)
	var statusCache cache.Cache = cache.Nop{}
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("create redis cache: %w", err)
		}
		defer redisCache.Close()

		if err := redisCache.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		statusCache = redisCache
		slog.Info("redis connected")
	}

	// 4. Create the pipeline engine (resolves binaries eagerly)
	engine, err := pipeline.NewEngine(cfg.Pipeline)
	if err != nil {
		return fmt.Errorf("create pipeline engine: %w", err)
	}
	pipe := pipeline.NewWhisperPipeline(engine)

	// 5. Create summarization provider
	provider, err := summarize.NewProvider(cfg.Summarize)
	if err != nil {
		return fmt.Errorf("create summarization provider: %w", err)
	}
	summarizer := summarize.NewService(provider, cfg.Summarize.Timeout)
	slog.Info("summarization provider initialized", "provider", provider.Name())

	// 6. Create job service
	jobService, err := jobs.NewService(jobStore, statusCache, pipe, summarizer,
		cfg.Store.UploadDir, cfg.Pipeline.Timeout, cfg.Pipeline.MaxConcurrent)
	if err != nil {
		return fmt.Errorf("create job service: %w", err)
	}

	// 7. Build router with dependencies
	deps := api.Dependencies{
		Auth:      mw.NewAuth(cfg.Auth),
		RateLimit: mw.NewRateLimit(statusCache, cfg.Server.RateLimitPerMin),

		HealthHandler:    healthHandler(jobStore),
		ProcessHandler:   handler.NewProcessHandler(jobService),
		StatusHandler:    handler.NewStatusHandler(jobService),
		ResultsHandler:   handler.NewResultsHandler(jobService),
		SummarizeHandler: handler.NewSummarizeHandler(jobService),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // summarize blocks on the LLM call
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

// newStore builds the configured store backend and returns a cleanup func.
func newStore(ctx context.Context, cfg config.StoreConfig) (store.Store, func(), error) {
	switch cfg.Backend {
	case "postgres":
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		slog.Info("database connected, migrations applied")
		return store.NewPostgresStore(pool), pool.Close, nil
	default:
		fs, err := store.NewFileStore(cfg.JobDir)
		if err != nil {
			return nil, nil, fmt.Errorf("create file store: %w", err)
		}
		return fs, func() {}, nil
	}
}

// healthHandler reports service liveness. No auth required.
func healthHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Ping(r.Context()); err != nil {
			response.Write(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "degraded",
				"message": "Job store unavailable",
			})
			return
		}
		response.JSON(w, map[string]string{
			"status":    "ok",
			"message":   "meetscribe service is running",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
