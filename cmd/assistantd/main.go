// Command assistantd is the companion persistence service of the assistant
// client. It stores judge results and ratings per session turn and serves
// traversal graph analysis.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/piotrzwolinski/synapseos-sub000/internal/config"
	"github.com/piotrzwolinski/synapseos-sub000/internal/metrics"
	"github.com/piotrzwolinski/synapseos-sub000/internal/server"
	"github.com/piotrzwolinski/synapseos-sub000/internal/storage"
	"github.com/piotrzwolinski/synapseos-sub000/internal/storage/memory"
	"github.com/piotrzwolinski/synapseos-sub000/internal/storage/sqlite"
	"github.com/piotrzwolinski/synapseos-sub000/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer(cfg.Telemetry, os.Stderr, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	store, err := openStore(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := metrics.NewRecorder(reg)
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	srv := server.New(server.Options{
		Port:      cfg.Server.Port,
		AuthToken: cfg.Server.AuthToken,
		Store:     store,
		Metrics:   rec,
		Gatherer:  reg,
		Logger:    logger,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	logger.Info("assistantd started",
		slog.String("storage", cfg.Storage.Type),
		slog.Bool("auth", cfg.Server.AuthToken != ""),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func openStore(cfg config.StorageConfig) (storage.SessionStore, error) {
	switch cfg.Type {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		return sqlite.New(cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
