package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"pitchsheet/pkg/api/run"
	"pitchsheet/pkg/core/config"
	"pitchsheet/pkg/core/edgar"
	"pitchsheet/pkg/core/pipeline"
	"pitchsheet/pkg/core/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := cfg.Logging.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	if err := serve(cfg, logger); err != nil {
		logger.Error("Server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func serve(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := openStore(ctx, cfg.Database.URL, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client := edgar.NewClient(edgar.ClientConfig{
		UserAgent:   cfg.SEC.UserAgent,
		BaseURL:     cfg.SEC.BaseURL,
		TickersURL:  cfg.SEC.TickersURL,
		CacheDir:    cfg.Paths.CacheDir,
		MinInterval: cfg.SEC.MinInterval,
		Timeout:     cfg.SEC.Timeout,
		Logger:      logger,
	})

	orchestrator := pipeline.NewOrchestrator(client, repo, cfg.Paths.ArtifactsDir)
	orchestrator.SetLogger(logger)
	orchestrator.SetMetrics(pipeline.NewMetrics(reg))

	handler := run.NewHandler(repo, orchestrator, run.Options{
		Defaults:       cfg.Defaults,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
		Gatherer:       reg,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API server starting", slog.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("Received interrupt signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// let background runs record their final status before the store closes
	done := make(chan struct{})
	go func() {
		handler.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timed out with runs still in progress")
	}
	logger.Info("API server stopped")
	return nil
}

// openStore picks Postgres when a database URL is configured, memory otherwise.
func openStore(ctx context.Context, dbURL string, logger *slog.Logger) (store.RunRepository, func(), error) {
	if dbURL == "" {
		logger.Info("No database configured, keeping runs in memory")
		return store.NewMemoryRunRepo(), func() {}, nil
	}

	if err := store.InitDB(ctx, dbURL); err != nil {
		return nil, nil, err
	}
	pool := store.GetPool()
	if err := store.EnsureSchema(ctx, pool); err != nil {
		store.Close()
		return nil, nil, err
	}
	logger.Info("Connected to Postgres run store")
	return store.NewPostgresRunRepo(pool), store.Close, nil
}
