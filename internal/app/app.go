// Package app wires configuration, ingestion, processing, output and storage
// together for the actisum commands.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chrissnell/actisum/internal/activity"
	"github.com/chrissnell/actisum/internal/batch"
	"github.com/chrissnell/actisum/internal/log"
	"github.com/chrissnell/actisum/internal/server"
	"github.com/chrissnell/actisum/internal/storage"
	"github.com/chrissnell/actisum/pkg/config"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	cfg       *config.ConfigData
	processor *activity.Processor
	logger    *zap.SugaredLogger
}

// New creates a new application instance. The processing configuration is
// validated here so that both commands fail before touching any input.
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) (*App, error) {
	logger = log.OrNop(logger)

	c, err := cfg.Processing.ToActivityConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid processing configuration: %w", err)
	}
	processor, err := activity.NewProcessor(c, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid processing configuration: %w", err)
	}

	return &App{
		cfg:       cfg,
		processor: processor,
		logger:    logger,
	}, nil
}

// Processor returns the configured processor
func (a *App) Processor() *activity.Processor {
	return a.processor
}

// Serve runs the HTTP API and blocks until shutdown
func (a *App) Serve(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, err := storage.NewManager(ctx, a.cfg.Storage, a.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	runner := batch.NewRunner(a.processor, a.cfg.Workers, a.logger)
	srv := server.New(ctx, &wg, a.cfg.Server, a.processor, runner, store, a.logger)
	if err := srv.Start(); err != nil {
		return err
	}

	a.logger.Infof("application started with %d workers", runner.Workers())

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		a.logger.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	a.logger.Info("waiting for the HTTP API to terminate...")
	wg.Wait()
	a.logger.Info("shutdown complete")

	return nil
}
