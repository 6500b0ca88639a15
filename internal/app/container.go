package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/vyora/internal/entitlement/application"
	"github.com/felixgeelhaar/vyora/internal/entitlement/application/subscribers"
	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	"github.com/felixgeelhaar/vyora/internal/entitlement/guard"
	"github.com/felixgeelhaar/vyora/internal/entitlement/infrastructure/billingclient"
	"github.com/felixgeelhaar/vyora/internal/entitlement/infrastructure/cache"
	"github.com/felixgeelhaar/vyora/internal/entitlement/infrastructure/persistence"
	"github.com/felixgeelhaar/vyora/internal/entitlement/prompt"
	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/convert"
	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/vyora/internal/shared/infrastructure/database/postgres"
	_ "github.com/felixgeelhaar/vyora/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/vyora/pkg/config"
	"github.com/felixgeelhaar/vyora/pkg/observability"
)

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.PrometheusMetrics
	Health  *observability.HealthRegistry

	// Database
	DBConn   database.Connection
	DBDriver database.Driver

	// Redis
	RedisClient *redis.Client

	// Repositories
	SubscriptionRepo domain.SubscriptionRepository
	DenialRepo       domain.DenialRepository
	DenialCounter    domain.DenialCounter
	OutboxRepo       outbox.Repository
	UnitOfWork       *database.UnitOfWork

	// Messaging
	EventPublisher    eventbus.Publisher
	InProcessEventBus *eventbus.InProcessEventBus

	// Subscription source
	BillingClient      *billingclient.Client
	SubscriptionSource domain.SubscriptionSource

	// Entitlement
	Registry              *application.Registry
	Service               *application.Service
	Auditor               *application.Auditor
	EntitlementSubscriber *subscribers.EntitlementSubscriber
	PromptConfig          prompt.Config
}

// NewContainer creates and wires all dependencies.
//
// Only the database is mandatory. In development a missing Redis disables
// the denial counters and a missing RabbitMQ falls back to the in-process
// bus; in other environments either failure is fatal.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewPrometheusMetrics(logger),
		Health:  observability.NewHealthRegistry(),
		PromptConfig: prompt.Config{
			Price:         cfg.ProPrice,
			BillingPeriod: cfg.ProBillingPeriod,
			Route:         cfg.UpgradeRoute,
		},
	}

	steps := []func(context.Context) error{
		c.initDatabase,
		c.initRedis,
		c.initEventBus,
		c.initSubscriptionSource,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			c.Close()
			return nil, err
		}
	}

	c.Registry = application.NewRegistry(application.RegistryConfig{
		Store: application.StoreConfig{
			Source:         c.SubscriptionSource,
			Logger:         logger,
			Metrics:        c.Metrics,
			RefreshTimeout: cfg.StoreRefreshTimeout,
		},
		WarmStart: true,
	})
	svcCfg := application.ServiceConfig{
		Subscriptions: c.SubscriptionRepo,
		Denials:       c.DenialRepo,
		Counter:       c.DenialCounter,
		Registry:      c.Registry,
		UnitOfWork:    c.UnitOfWork,
		Logger:        logger,
	}
	// With a broker, ingested updates reach other processes through the
	// outbox; the worker publishes it.
	if c.InProcessEventBus == nil {
		svcCfg.Outbox = outbox.NewWriter(c.OutboxRepo)
	}
	c.Service = application.NewService(svcCfg)
	c.Auditor = application.NewAuditor(logger, c.Metrics, c.EventPublisher)
	c.EntitlementSubscriber = subscribers.NewEntitlementSubscriber(c.Service, logger, c.Metrics)

	// Without a broker the denials and billing updates published here are
	// delivered synchronously to the subscriber.
	if c.InProcessEventBus != nil {
		c.InProcessEventBus.RegisterConsumer(c.EntitlementSubscriber)
	}

	return c, nil
}

func (c *Container) initDatabase(ctx context.Context) error {
	conn, err := database.Open(ctx, database.Config{
		URL:        c.Config.DatabaseURL,
		SQLitePath: c.Config.SQLitePath,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DBConn = conn
	c.DBDriver = conn.Driver()
	c.Logger.Info("connected to database", "driver", c.DBDriver)

	if err := migrations.Run(ctx, conn); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	repos, err := persistence.New(conn)
	if err != nil {
		return err
	}
	c.SubscriptionRepo = repos.Subscriptions
	c.DenialRepo = repos.Denials
	c.UnitOfWork = database.NewUnitOfWork(conn)

	c.OutboxRepo, err = outbox.New(conn)
	if err != nil {
		return err
	}
	c.Health.Register("database", observability.DatabaseHealthChecker(conn.Ping))
	return nil
}

func (c *Container) initRedis(ctx context.Context) error {
	if c.Config.RedisURL == "" {
		c.Logger.Debug("REDIS_URL not set, denial counts come from the audit log")
		return nil
	}
	opt, err := redis.ParseURL(c.Config.RedisURL)
	if err != nil {
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		c.Logger.Warn("invalid Redis URL, denial counters disabled", "error", err)
		return nil
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		c.Logger.Warn("Redis not available, denial counters disabled", "error", err)
		return nil
	}

	c.RedisClient = client
	c.DenialCounter = cache.NewRedisDenialCounter(client)
	c.Health.Register("redis", observability.RedisHealthChecker(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}))
	c.Logger.Info("connected to Redis")
	return nil
}

func (c *Container) initEventBus(ctx context.Context) error {
	if c.Config.RabbitMQURL != "" {
		publisher, err := eventbus.NewRabbitMQPublisher(c.Config.RabbitMQURL, c.Logger, c.Metrics)
		if err == nil {
			c.EventPublisher = publisher
			c.Health.Register("rabbitmq", observability.RabbitMQHealthChecker(publisher.Ping))
			return nil
		}
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		c.Logger.Warn("RabbitMQ not available, using in-process event bus", "error", err)
	}

	c.InProcessEventBus = eventbus.NewInProcessEventBus(c.Logger)
	c.EventPublisher = c.InProcessEventBus
	return nil
}

func (c *Container) initSubscriptionSource(ctx context.Context) error {
	if !c.Config.UsesBillingAPI() {
		c.SubscriptionSource = application.NewReadModelSource(c.SubscriptionRepo)
		c.Logger.Debug("BILLING_API_URL not set, serving subscriptions from the read model")
		return nil
	}

	bc := billingclient.DefaultConfig(c.Config.BillingAPIURL)
	bc.SubscriptionPath = c.Config.BillingSubscriptionPath
	bc.Timeout = c.Config.BillingTimeout
	bc.Retries = c.Config.BillingRetryAttempts
	if c.Config.BillingBreakerThreshold > 0 {
		bc.FailureThreshold = convert.IntToUint32Clamped(c.Config.BillingBreakerThreshold)
	}
	bc.BreakerTimeout = c.Config.BillingBreakerTimeout
	bc.OAuthClientID = c.Config.BillingOAuthClientID
	bc.OAuthClientSecret = c.Config.BillingOAuthSecret
	bc.OAuthTokenURL = c.Config.BillingOAuthTokenURL
	bc.OAuthScopes = c.Config.BillingOAuthScopes

	client, err := billingclient.New(bc, c.Logger, c.Metrics)
	if err != nil {
		return fmt.Errorf("failed to create billing client: %w", err)
	}
	c.BillingClient = client
	c.SubscriptionSource = client
	c.Health.Register("billing", billingHealthChecker(client))
	return nil
}

func billingHealthChecker(client *billingclient.Client) observability.HealthChecker {
	return func(ctx context.Context) observability.HealthCheckResult {
		if err := client.Ping(ctx); err != nil {
			return observability.HealthCheckResult{
				Status:  observability.HealthStatusDegraded,
				Message: "billing circuit breaker " + client.BreakerState(),
			}
		}
		return observability.HealthCheckResult{
			Status:  observability.HealthStatusHealthy,
			Message: "billing circuit breaker " + client.BreakerState(),
		}
	}
}

// GuardOptions are the options every guard built by this container uses.
func (c *Container) GuardOptions(extra ...guard.Option) []guard.Option {
	opts := []guard.Option{
		guard.WithRecorder(c.Auditor),
		guard.WithPromptConfig(c.PromptConfig),
		guard.WithMetrics(c.Metrics),
		guard.WithLogger(c.Logger),
	}
	return append(opts, extra...)
}

// Guard opens tenantID's store and returns a guard bound to it.
func (c *Container) Guard(ctx context.Context, tenantID string, extra ...guard.Option) (*guard.Guard, error) {
	if _, err := c.Registry.Open(ctx, tenantID); err != nil {
		return nil, err
	}
	return guard.New(c.Registry.Evaluator(tenantID), c.GuardOptions(extra...)...), nil
}

// IngestSubscriptionUpdate applies sub to the read model and open stores.
// With a broker it is also queued in the outbox for other processes.
func (c *Container) IngestSubscriptionUpdate(ctx context.Context, sub *domain.Subscription) error {
	return c.Service.IngestSubscriptionUpdate(ctx, sub)
}

// Close releases all resources.
func (c *Container) Close() {
	if c.Registry != nil {
		c.Registry.CloseAll()
	}

	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		} else {
			c.Logger.Info("Redis connection closed")
		}
	}

	if c.DBConn != nil {
		if err := c.DBConn.Close(); err != nil {
			c.Logger.Warn("error closing database connection", "error", err)
		} else {
			c.Logger.Info("database connection closed", "driver", c.DBDriver)
		}
	}
}
