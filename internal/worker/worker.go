// Package worker drains entitlement events from RabbitMQ, publishes the
// outbox and prunes the denial audit log.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/felixgeelhaar/vyora/internal/app"
	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/vyora/pkg/observability"
)

// PurgeInterval is how often expired denials and published outbox rows
// are deleted.
const PurgeInterval = time.Hour

// Worker runs the background side of the entitlement gate.
type Worker struct {
	container *app.Container
	logger    *slog.Logger

	consumer  *eventbus.RabbitMQConsumer
	consuming atomic.Bool
	processor *outbox.Processor

	mu                sync.Mutex
	lastPurgeAt       time.Time
	lastPurged        int64
	lastOutboxDeleted int64
	lastErr           string
}

// New creates a worker over a wired container.
func New(c *app.Container) *Worker {
	w := &Worker{container: c, logger: c.Logger}
	if c.OutboxRepo != nil && c.EventPublisher != nil {
		w.processor = outbox.NewProcessor(c.OutboxRepo, c.EventPublisher, outbox.ProcessorConfig{
			PollInterval:     c.Config.OutboxPollInterval,
			BatchSize:        c.Config.OutboxBatchSize,
			MaxRetries:       c.Config.OutboxMaxRetries,
			RetryBackoffBase: time.Second,
			RetryBackoffMax:  time.Minute,
		}, c.Logger, c.Metrics)
	}
	return w
}

// Run consumes events, publishes the outbox, purges the audit log and
// serves health checks until ctx is cancelled. Without RABBITMQ_URL only
// purging runs; that is an error outside development.
func (w *Worker) Run(ctx context.Context) error {
	cfg := w.container.Config

	if cfg.RabbitMQURL != "" {
		consumer, err := eventbus.NewRabbitMQConsumer(eventbus.RabbitMQConsumerConfig{
			URL:       cfg.RabbitMQURL,
			QueueName: cfg.RabbitMQQueue,
			Prefetch:  cfg.RabbitMQPrefetch,
			Logger:    w.logger,
			Metrics:   w.container.Metrics,
		}, eventbus.NewRouter(w.logger))
		if err != nil {
			return err
		}
		consumer.RegisterConsumer(w.container.EntitlementSubscriber)
		w.consumer = consumer
		defer consumer.Close()

		go func() {
			w.consuming.Store(true)
			defer w.consuming.Store(false)
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("event consumer stopped", "error", err)
			}
		}()

		if w.processor != nil {
			w.processor.Start(ctx)
			defer w.processor.Stop()
		}
	} else if !cfg.IsDevelopment() {
		return errors.New("RABBITMQ_URL is required for the worker")
	} else {
		w.logger.Warn("RABBITMQ_URL not set, worker only purges the audit log")
	}

	if cfg.WorkerHealthAddr != "" {
		srv := &http.Server{
			Addr:              cfg.WorkerHealthAddr,
			Handler:           w.HealthHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			w.logger.Info("health server starting", "addr", cfg.WorkerHealthAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				w.logger.Error("health server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				w.logger.Warn("health server shutdown error", "error", err)
			}
		}()
	}

	w.Purge(ctx)
	ticker := time.NewTicker(PurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			return nil
		case <-ticker.C:
			w.Purge(ctx)
		}
	}
}

// Purge deletes denials older than DENIAL_RETENTION and outbox rows
// published before OUTBOX_RETENTION.
func (w *Worker) Purge(ctx context.Context) {
	cfg := w.container.Config
	n, err := w.container.Service.PurgeDenials(ctx, cfg.DenialRetention)
	if err != nil {
		w.logger.Error("denial purge failed", "error", err)
	}

	var deleted int64
	if w.container.OutboxRepo != nil && cfg.OutboxRetention > 0 {
		var outboxErr error
		deleted, outboxErr = w.container.OutboxRepo.DeleteOld(ctx, time.Now().UTC().Add(-cfg.OutboxRetention))
		if outboxErr != nil {
			w.logger.Error("outbox cleanup failed", "error", outboxErr)
			err = errors.Join(err, outboxErr)
		} else if deleted > 0 {
			w.logger.Info("deleted published outbox messages", "count", deleted)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastPurgeAt = time.Now().UTC()
	w.lastPurged = n
	w.lastOutboxDeleted = deleted
	w.lastErr = ""
	if err != nil {
		w.lastErr = err.Error()
	}
}

// HealthHandler serves /healthz (liveness and stats) and /readyz
// (dependency checks).
func (w *Worker) HealthHandler() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(rw http.ResponseWriter, req *http.Request) {
		w.mu.Lock()
		resp := map[string]any{
			"status":              "ok",
			"consuming":           w.consuming.Load(),
			"last_purge_at":       w.lastPurgeAt,
			"last_purged":         w.lastPurged,
			"last_outbox_deleted": w.lastOutboxDeleted,
			"last_error":          w.lastErr,
		}
		w.mu.Unlock()
		if w.processor != nil {
			resp["outbox"] = w.processor.GetStats()
		}
		writeJSON(rw, http.StatusOK, resp)
	})

	r.Get("/readyz", func(rw http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		health := w.container.Health.GetOverallHealth(ctx)
		status := http.StatusOK
		if health.Status == observability.HealthStatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(rw, status, health)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
