// Package main provides the build API server entrypoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/buildkeeb/engine/cmd/buildkeeb-api/handlers"
	"github.com/buildkeeb/engine/internal/cache"
	"github.com/buildkeeb/engine/internal/config"
	"github.com/buildkeeb/engine/internal/llm"
	"github.com/buildkeeb/engine/internal/observability"
	"github.com/buildkeeb/engine/internal/recommend"
	"github.com/buildkeeb/engine/internal/research"
	"github.com/buildkeeb/engine/internal/storage"
	"github.com/buildkeeb/engine/internal/usage"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("Server failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("database", cfg.Database.Driver).
		Str("cache", cfg.Cache.Driver).
		Str("model", cfg.LLM.Model).
		Msg("Starting build API")

	db, err := storage.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := storage.Migrate(ctx, db); err != nil {
		return err
	}

	llmClient, err := llm.NewClient(cfg.LLM, logger)
	if err != nil {
		return fmt.Errorf("llm client: %w", err)
	}

	var recorder *usage.Recorder
	opts := recommend.Options{}
	if cfg.Usage.Enabled {
		recorder = usage.NewRecorder(storage.NewUsageRepository(db), cfg.Usage.BufferSize, logger)
		defer recorder.Close()
		go recorder.Drain(ctx)
		opts.Usage = recorder
	}

	pipeline := recommend.NewService(logger, storage.NewCatalogRepository(db), llmClient, cfg, opts)

	researcher, closeCache, err := newResearcher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	deps := Deps{
		Logger:         logger,
		Pipeline:       pipeline,
		Researcher:     researcher,
		Ready:          func(ctx context.Context) error { return db.PingContext(ctx) },
		RequestTimeout: cfg.Server.RequestTimeout,
		AllowedOrigins: []string{"*"},
	}
	if recorder != nil {
		deps.Usage = recorder
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
	return nil
}

// newResearcher builds the cached research provider, or returns nil when no
// research service is configured.
func newResearcher(ctx context.Context, cfg *config.Config, logger *observability.Logger) (handlers.Researcher, func(), error) {
	noop := func() {}
	if !cfg.ResearchEnabled() {
		logger.Warn().Msg("Research API key not set, research routes disabled")
		return nil, noop, nil
	}

	provider, err := research.NewClient(cfg.Research, logger)
	if err != nil {
		return nil, noop, fmt.Errorf("research client: %w", err)
	}

	client, err := cache.Open(ctx, cfg.Cache)
	if err != nil {
		return nil, noop, fmt.Errorf("query cache: %w", err)
	}

	qc := cache.NewQueryCache(client, logger)
	cached := research.NewCached(provider, qc, cfg.Cache.SearchTTL, cfg.Cache.ResearchTTL, logger)
	return cached, func() { _ = client.Close() }, nil
}

