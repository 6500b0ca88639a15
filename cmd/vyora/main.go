package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/vyora/adapter/cli"
	"github.com/felixgeelhaar/vyora/internal/app"
	"github.com/felixgeelhaar/vyora/pkg/config"
	"github.com/felixgeelhaar/vyora/pkg/observability"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Commands print their own output; logs stay quiet unless asked for.
	level := "warn"
	if os.Getenv("LOG_LEVEL") != "" {
		level = cfg.LogLevel
	}
	logger := observability.ServiceLogger("vyora-cli", cfg.AppEnv, level)
	cli.SetLogger(logger)

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	cli.SetApp(cli.NewApp(container))

	err = cli.ExecuteContext(ctx)
	container.Close()
	if err != nil {
		os.Exit(1)
	}
}
