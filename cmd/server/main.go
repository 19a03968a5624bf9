// Package main provides the entry point for the pgsteward advisor server.
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

	"github.com/pgsteward/pgsteward/internal/api"
	"github.com/pgsteward/pgsteward/internal/auth"
	"github.com/pgsteward/pgsteward/internal/db"
	"github.com/pgsteward/pgsteward/internal/exec"
	"github.com/pgsteward/pgsteward/internal/explain"
	"github.com/pgsteward/pgsteward/internal/jobs"
	"github.com/pgsteward/pgsteward/internal/metadata"
	"github.com/pgsteward/pgsteward/internal/services"
	"github.com/pgsteward/pgsteward/internal/target"
	"github.com/pgsteward/pgsteward/pkg/config"
)

func main() {
	// Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting pgsteward advisor")

	// Load configuration
	cfg := config.Load()

	// Create context that listens for shutdown signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signalChan
		logger.Info("received shutdown signal", "signal", sig)
		cancel()

		// Wait for second signal to force immediate shutdown
		sig = <-signalChan
		logger.Warn("received second signal, forcing immediate shutdown", "signal", sig)
		os.Exit(1)
	}()

	// Run the server
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		signal.Stop(signalChan)
		os.Exit(1)
	}

	// Stop signal handling and clean up
	signal.Stop(signalChan)
	logger.Info("server shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Connect to the state store
	logger.Info("connecting to state store", "host", cfg.StateDB.Host, "database", cfg.StateDB.Database)

	store, err := db.New(ctx, &cfg.StateDB)
	if err != nil {
		return fmt.Errorf("failed to connect to state store: %w", err)
	}
	// Use a closure to track if the store was closed during shutdown
	storeClosed := false
	defer func() {
		if !storeClosed {
			logger.Info("closing state store connection (defer)")
			store.Close()
		}
	}()

	// Run migrations
	logger.Info("running state store migrations")
	if err := store.RunMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Initialize JWT manager
	jwtManager, err := auth.NewJWTManager(&cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT manager: %w", err)
	}

	// Connection pools for monitored databases
	targets := target.NewManager(&cfg.Targets)
	defer targets.CloseAll()

	// Initialize components and services
	collector := metadata.NewCollector(logger)
	executor := exec.NewExecutor(store, logger)
	explainer := explain.New(&cfg.Explainer, logger)
	orchestrator := jobs.New(store, cfg.Jobs.MaxConcurrent, logger)

	databaseService := services.NewDatabaseService(store, targets, logger)
	analysisService := services.NewAnalysisService(store, targets, collector, executor, explainer, logger)
	maintenanceService := services.NewMaintenanceService(store, targets, collector, executor, explainer, logger)
	partitionService := services.NewPartitionService(store, targets, collector, logger)
	signalService := services.NewSignalService(store, explainer, logger)
	proposalService := services.NewProposalService(store, targets, executor, explainer, logger)
	reportService := services.NewReportService(store, explainer, logger)

	// Create HTTP router
	router := api.NewRouter(&api.RouterConfig{
		Store:        store,
		JWTManager:   jwtManager,
		AuthConfig:   &cfg.Auth,
		Databases:    databaseService,
		Analysis:     analysisService,
		Maintenance:  maintenanceService,
		Partition:    partitionService,
		Signals:      signalService,
		Proposals:    proposalService,
		Reports:      reportService,
		Orchestrator: orchestrator,
		Logger:       logger,
	})

	// Create HTTP server
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         httpAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Error channel for server errors
	errChan := make(chan error, 1)

	// Start HTTP server
	go func() {
		logger.Info("starting HTTP server", "addr", httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("initiating graceful shutdown")
	case err := <-errChan:
		return err
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop accepting requests first, then wind down background jobs so
	// in-flight runs can record their terminal state.
	logger.Info("shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("cancelling in-flight jobs")
	if err := orchestrator.Shutdown(shutdownCtx); err != nil {
		logger.Error("job orchestrator shutdown error", "error", err)
	}

	// Close pools explicitly during shutdown
	logger.Info("closing target connection pools")
	targets.CloseAll()

	logger.Info("closing state store connection")
	store.Close()
	storeClosed = true

	return nil
}
