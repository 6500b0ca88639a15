package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felixgeelhaar/vyora/adapter/api"
	"github.com/felixgeelhaar/vyora/internal/app"
	"github.com/felixgeelhaar/vyora/pkg/config"
	"github.com/felixgeelhaar/vyora/pkg/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.ServiceLogger("vyora-gateway", cfg.AppEnv, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	secret := cfg.JWTSecret
	if secret == "" {
		logger.Warn("JWT_SECRET not set, using the development secret")
		secret = api.DevJWTSecret
	}

	if cfg.BillingWebhookSecret == "" {
		logger.Warn("BILLING_WEBHOOK_SECRET not set, billing webhook is disabled")
	}

	serverCfg := api.DefaultServerConfig()
	serverCfg.Addr = cfg.GatewayAddr
	srv := api.NewServer(serverCfg, api.Dependencies{
		Registry:       container.Registry,
		Service:        container.Service,
		Issuer:         api.NewTokenIssuer(secret, api.DefaultTokenTTL),
		Metrics:        container.Metrics,
		MetricsHandler: container.Metrics.Handler(),
		Health:         container.Health,
		GuardOptions:   container.GuardOptions(),
		Ingest:         container.IngestSubscriptionUpdate,
		WebhookSecret:  cfg.BillingWebhookSecret,
		Logger:         logger,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", serverCfg.Addr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down gateway")
	case err := <-errCh:
		logger.Error("gateway server error", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("gateway shutdown error", "error", err)
	}
}
