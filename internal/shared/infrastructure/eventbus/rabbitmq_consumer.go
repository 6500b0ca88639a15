package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/felixgeelhaar/vyora/pkg/observability"
)

// DefaultConsumerQueueName is the queue the entitlement worker drains.
const DefaultConsumerQueueName = "vyora.entitlement.worker"

// RabbitMQConsumerConfig configures the RabbitMQ consumer.
type RabbitMQConsumerConfig struct {
	URL       string
	QueueName string
	Exchange  string
	// Prefetch caps unacknowledged deliveries. Defaults to 1.
	Prefetch int
	Logger   *slog.Logger
	Metrics  observability.Metrics
}

// RabbitMQConsumer drains one durable queue bound to every pattern its
// router knows. A delivery that fails is requeued once; a redelivery
// that fails again is rejected so one bad event cannot stall the queue.
type RabbitMQConsumer struct {
	cfg     RabbitMQConsumerConfig
	conn    *amqp.Connection
	channel *amqp.Channel
	router  *Router
	logger  *slog.Logger
	metrics observability.Metrics

	mu      sync.Mutex
	running bool
	done    chan struct{}
	once    sync.Once
}

// NewRabbitMQConsumer dials the broker and declares the queue.
func NewRabbitMQConsumer(cfg RabbitMQConsumerConfig, router *Router) (*RabbitMQConsumer, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetrics{}
	}
	if cfg.QueueName == "" {
		cfg.QueueName = DefaultConsumerQueueName
	}
	if cfg.Exchange == "" {
		cfg.Exchange = ExchangeName
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if router == nil {
		router = NewRouter(cfg.Logger)
	}

	conn, ch, err := dialExchange(cfg.URL, cfg.Exchange)
	if err != nil {
		return nil, err
	}
	if _, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil); err != nil {
		_ = closeAMQP(conn, ch)
		return nil, fmt.Errorf("failed to declare queue %s: %w", cfg.QueueName, err)
	}

	cfg.Logger.Info("RabbitMQ consumer connected", "queue", cfg.QueueName, "exchange", cfg.Exchange)
	return &RabbitMQConsumer{
		cfg:     cfg,
		conn:    conn,
		channel: ch,
		router:  router,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		done:    make(chan struct{}),
	}, nil
}

// RegisterConsumer adds consumer to the router. Queue bindings are made
// when Start runs.
func (c *RabbitMQConsumer) RegisterConsumer(consumer EventConsumer) {
	c.router.Register(consumer)
}

// Start binds the queue and processes deliveries until ctx is cancelled,
// Close is called or the broker closes the channel.
func (c *RabbitMQConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("consumer already running")
	}
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	for _, pattern := range c.router.Patterns() {
		if err := c.channel.QueueBind(c.cfg.QueueName, pattern, c.cfg.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s to %s: %w", c.cfg.QueueName, pattern, err)
		}
		c.logger.Debug("bound queue", "queue", c.cfg.QueueName, "pattern", pattern)
	}

	if err := c.channel.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	deliveries, err := c.channel.ConsumeWithContext(ctx, c.cfg.QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	c.logger.Info("consuming events", "queue", c.cfg.QueueName, "prefetch", c.cfg.Prefetch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.settle(d, c.handle(ctx, d))
		}
	}
}

// handle dispatches one delivery. Malformed bodies count as handled.
func (c *RabbitMQConsumer) handle(ctx context.Context, d amqp.Delivery) error {
	event, err := ParseEvent(d.RoutingKey, d.Body)
	if err != nil {
		c.logger.Error("dropping event", "routing_key", d.RoutingKey, "error", err)
		return nil
	}
	if err := c.router.Dispatch(ctx, event); err != nil {
		return err
	}
	c.metrics.Counter(observability.MetricEventsConsumed, 1, observability.T("routing_key", event.RoutingKey))
	return nil
}

func (c *RabbitMQConsumer) settle(d amqp.Delivery, err error) {
	var settleErr error
	switch {
	case err == nil:
		settleErr = d.Ack(false)
	case d.Redelivered:
		c.logger.Error("rejecting event after redelivery", "routing_key", d.RoutingKey, "error", err)
		settleErr = d.Reject(false)
	default:
		c.logger.Warn("requeueing event", "routing_key", d.RoutingKey, "error", err)
		settleErr = d.Nack(false, true)
	}
	if settleErr != nil {
		c.logger.Error("failed to settle delivery", "routing_key", d.RoutingKey, "error", settleErr)
	}
}

// Close stops Start and closes the connection.
func (c *RabbitMQConsumer) Close() error {
	c.once.Do(func() { close(c.done) })
	c.mu.Lock()
	defer c.mu.Unlock()
	return closeAMQP(c.conn, c.channel)
}
