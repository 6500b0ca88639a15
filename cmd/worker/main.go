package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/vyora/internal/app"
	"github.com/felixgeelhaar/vyora/internal/worker"
	"github.com/felixgeelhaar/vyora/pkg/config"
	"github.com/felixgeelhaar/vyora/pkg/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.ServiceLogger("vyora-worker", cfg.AppEnv, cfg.LogLevel)
	logger.Info("starting vyora worker")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	if err := worker.New(container).Run(ctx); err != nil {
		logger.Error("worker failed", "error", err)
		container.Close()
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
