package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// InProcessEventBus delivers events synchronously to registered consumers.
// It replaces RabbitMQ in local mode and in tests, with the same topic
// routing.
type InProcessEventBus struct {
	router *Router
	logger *slog.Logger
	// mu serializes delivery the way a prefetch-1 queue would.
	mu sync.Mutex
}

// NewInProcessEventBus creates a new in-process event bus.
func NewInProcessEventBus(logger *slog.Logger) *InProcessEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessEventBus{router: NewRouter(logger), logger: logger}
}

// RegisterConsumer registers an event consumer.
func (b *InProcessEventBus) RegisterConsumer(consumer EventConsumer) {
	b.router.Register(consumer)
}

// Router returns the bus routing table.
func (b *InProcessEventBus) Router() *Router {
	return b.router
}

// Publish delivers payload before returning. Like a broker, it never
// reports consumer failures to the publisher; they are logged.
func (b *InProcessEventBus) Publish(ctx context.Context, routingKey string, payload []byte) error {
	event, err := ParseEvent(routingKey, payload)
	if err != nil {
		b.logger.Error("dropping event", "routing_key", routingKey, "error", err)
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	start := time.Now()
	err = b.router.Dispatch(ctx, event)
	b.logger.Debug("event dispatched",
		"routing_key", event.RoutingKey,
		"event_id", event.EventID,
		"duration_ms", time.Since(start).Milliseconds(),
		"failed", err != nil,
	)
	return nil
}

// Start blocks until ctx is cancelled; delivery happens inside Publish.
func (b *InProcessEventBus) Start(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// Close is a no-op.
func (b *InProcessEventBus) Close() error {
	return nil
}

var (
	_ Publisher = (*InProcessEventBus)(nil)
	_ Consumer  = (*InProcessEventBus)(nil)
	_ Publisher = (*RabbitMQPublisher)(nil)
	_ Consumer  = (*RabbitMQConsumer)(nil)
)
