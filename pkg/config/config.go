package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv   string
	LogLevel string
	TenantID string

	// Database
	DatabaseURL string
	SQLitePath  string

	// Redis
	RedisURL string

	// RabbitMQ
	RabbitMQURL      string
	RabbitMQQueue    string
	RabbitMQPrefetch int

	// Billing
	BillingAPIURL           string
	BillingSubscriptionPath string
	BillingTimeout          time.Duration
	BillingRetryAttempts    int
	BillingBreakerThreshold int
	BillingBreakerTimeout   time.Duration
	BillingOAuthClientID    string
	BillingOAuthSecret      string
	BillingOAuthTokenURL    string
	BillingOAuthScopes      []string

	// Upgrade prompt
	UpgradeRoute     string
	ProPrice         string
	ProBillingPeriod string

	// Gateway
	GatewayAddr          string
	JWTSecret            string
	BillingWebhookSecret string

	// Worker
	WorkerHealthAddr    string
	StoreRefreshTimeout time.Duration
	DenialRetention     time.Duration

	// Outbox
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxRetries   int
	OutboxRetention    time.Duration

	// MCP
	MCPAddr      string
	MCPAuthToken string
}

// ErrJWTSecretRequired is returned when production runs without a signing key.
var ErrJWTSecretRequired = errors.New("JWT_SECRET is required in production")

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		TenantID: getEnv("VYORA_TENANT_ID", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", defaultSQLitePath()),
		RedisURL:    getEnv("REDIS_URL", ""),
		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		RabbitMQQueue:    getEnv("RABBITMQ_QUEUE", "vyora.entitlement.worker"),
		RabbitMQPrefetch: getIntEnv("RABBITMQ_PREFETCH", 10),

		BillingAPIURL:           getEnv("BILLING_API_URL", ""),
		BillingSubscriptionPath: getEnv("BILLING_SUBSCRIPTION_PATH", "/api/vendors/{tenantId}/subscription"),
		BillingTimeout:          getDurationEnv("BILLING_TIMEOUT", 5*time.Second),
		BillingRetryAttempts:    getIntEnv("BILLING_RETRY_ATTEMPTS", 2),
		BillingBreakerThreshold: getIntEnv("BILLING_BREAKER_THRESHOLD", 5),
		BillingBreakerTimeout:   getDurationEnv("BILLING_BREAKER_TIMEOUT", 30*time.Second),
		BillingOAuthClientID:    getEnv("BILLING_OAUTH_CLIENT_ID", ""),
		BillingOAuthSecret:      getEnv("BILLING_OAUTH_CLIENT_SECRET", ""),
		BillingOAuthTokenURL:    getEnv("BILLING_OAUTH_TOKEN_URL", ""),
		BillingOAuthScopes:      getListEnv("BILLING_OAUTH_SCOPES"),

		UpgradeRoute:     getEnv("UPGRADE_ROUTE", "/vendor/account"),
		ProPrice:         getEnv("PRO_PRICE", "₹399"),
		ProBillingPeriod: getEnv("PRO_BILLING_PERIOD", "month"),

		GatewayAddr:          getEnv("GATEWAY_ADDR", "0.0.0.0:8080"),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		BillingWebhookSecret: getEnv("BILLING_WEBHOOK_SECRET", ""),

		WorkerHealthAddr:    getEnv("WORKER_HEALTH_ADDR", "0.0.0.0:8081"),
		StoreRefreshTimeout: getDurationEnv("STORE_REFRESH_TIMEOUT", 5*time.Second),
		DenialRetention:     getDurationEnv("DENIAL_RETENTION", 48*time.Hour),

		OutboxPollInterval: getDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond),
		OutboxBatchSize:    getIntEnv("OUTBOX_BATCH_SIZE", 100),
		OutboxMaxRetries:   getIntEnv("OUTBOX_MAX_RETRIES", 5),
		OutboxRetention:    getDurationEnv("OUTBOX_RETENTION", 7*24*time.Hour),

		MCPAddr:      getEnv("MCP_ADDR", "0.0.0.0:8082"),
		MCPAuthToken: getEnv("MCP_AUTH_TOKEN", ""),
	}

	if cfg.IsProduction() && cfg.JWTSecret == "" {
		return nil, ErrJWTSecretRequired
	}
	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// UsesBillingAPI reports whether subscriptions come from the remote billing API
// rather than the local read model.
func (c *Config) UsesBillingAPI() bool {
	return c.BillingAPIURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' }) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".vyora", "vyora.db")
	}
	return filepath.Join(home, ".vyora", "vyora.db")
}
