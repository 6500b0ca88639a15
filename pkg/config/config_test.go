package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnvVars clears all Vyora-related environment variables.
func clearEnvVars() {
	envVars := []string{
		"APP_ENV", "LOG_LEVEL", "VYORA_TENANT_ID",
		"DATABASE_URL", "SQLITE_PATH", "REDIS_URL", "RABBITMQ_URL", "RABBITMQ_QUEUE", "RABBITMQ_PREFETCH",
		"BILLING_API_URL", "BILLING_SUBSCRIPTION_PATH", "BILLING_TIMEOUT",
		"BILLING_RETRY_ATTEMPTS", "BILLING_BREAKER_THRESHOLD", "BILLING_BREAKER_TIMEOUT",
		"BILLING_OAUTH_CLIENT_ID", "BILLING_OAUTH_CLIENT_SECRET",
		"BILLING_OAUTH_TOKEN_URL", "BILLING_OAUTH_SCOPES",
		"UPGRADE_ROUTE", "PRO_PRICE", "PRO_BILLING_PERIOD",
		"GATEWAY_ADDR", "JWT_SECRET", "BILLING_WEBHOOK_SECRET",
		"WORKER_HEALTH_ADDR", "STORE_REFRESH_TIMEOUT", "DENIAL_RETENTION",
		"OUTBOX_POLL_INTERVAL", "OUTBOX_BATCH_SIZE", "OUTBOX_MAX_RETRIES", "OUTBOX_RETENTION",
		"MCP_ADDR", "MCP_AUTH_TOKEN",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Application defaults
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.TenantID)
	assert.True(t, cfg.IsDevelopment())

	// Storage defaults to SQLite
	assert.Empty(t, cfg.DatabaseURL)
	assert.Contains(t, cfg.SQLitePath, "vyora.db")
	assert.Empty(t, cfg.RedisURL)
	assert.Empty(t, cfg.RabbitMQURL)

	// Billing defaults
	assert.False(t, cfg.UsesBillingAPI())
	assert.Equal(t, "/api/vendors/{tenantId}/subscription", cfg.BillingSubscriptionPath)
	assert.Equal(t, 5*time.Second, cfg.BillingTimeout)
	assert.Equal(t, 2, cfg.BillingRetryAttempts)
	assert.Equal(t, 5, cfg.BillingBreakerThreshold)
	assert.Equal(t, 30*time.Second, cfg.BillingBreakerTimeout)
	assert.Nil(t, cfg.BillingOAuthScopes)

	// Prompt defaults
	assert.Equal(t, "/vendor/account", cfg.UpgradeRoute)
	assert.Equal(t, "₹399", cfg.ProPrice)
	assert.Equal(t, "month", cfg.ProBillingPeriod)

	// Listeners
	assert.Equal(t, "0.0.0.0:8080", cfg.GatewayAddr)
	assert.Equal(t, "0.0.0.0:8081", cfg.WorkerHealthAddr)
	assert.Equal(t, "0.0.0.0:8082", cfg.MCPAddr)
	assert.Empty(t, cfg.BillingWebhookSecret)

	assert.Equal(t, 5*time.Second, cfg.StoreRefreshTimeout)
	assert.Equal(t, 48*time.Hour, cfg.DenialRetention)
	assert.Equal(t, 500*time.Millisecond, cfg.OutboxPollInterval)
	assert.Equal(t, 100, cfg.OutboxBatchSize)
	assert.Equal(t, 5, cfg.OutboxMaxRetries)
	assert.Equal(t, 7*24*time.Hour, cfg.OutboxRetention)
	assert.Equal(t, "vyora.entitlement.worker", cfg.RabbitMQQueue)
	assert.Equal(t, 10, cfg.RabbitMQPrefetch)
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	t.Setenv("APP_ENV", "staging")
	t.Setenv("VYORA_TENANT_ID", "vendor-42")
	t.Setenv("DATABASE_URL", "postgres://vyora@localhost/vyora")
	t.Setenv("BILLING_API_URL", "https://billing.internal")
	t.Setenv("BILLING_TIMEOUT", "2s")
	t.Setenv("BILLING_RETRY_ATTEMPTS", "4")
	t.Setenv("BILLING_OAUTH_SCOPES", "subscriptions:read, vendors:read")
	t.Setenv("PRO_PRICE", "₹499")
	t.Setenv("DENIAL_RETENTION", "72h")
	t.Setenv("BILLING_WEBHOOK_SECRET", "whsec")
	t.Setenv("OUTBOX_BATCH_SIZE", "25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "vendor-42", cfg.TenantID)
	assert.Equal(t, "postgres://vyora@localhost/vyora", cfg.DatabaseURL)
	assert.True(t, cfg.UsesBillingAPI())
	assert.Equal(t, 2*time.Second, cfg.BillingTimeout)
	assert.Equal(t, 4, cfg.BillingRetryAttempts)
	assert.Equal(t, []string{"subscriptions:read", "vendors:read"}, cfg.BillingOAuthScopes)
	assert.Equal(t, "₹499", cfg.ProPrice)
	assert.Equal(t, 72*time.Hour, cfg.DenialRetention)
	assert.Equal(t, "whsec", cfg.BillingWebhookSecret)
	assert.Equal(t, 25, cfg.OutboxBatchSize)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	t.Setenv("BILLING_RETRY_ATTEMPTS", "many")
	t.Setenv("BILLING_BREAKER_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.BillingRetryAttempts)
	assert.Equal(t, 30*time.Second, cfg.BillingBreakerTimeout)
}

func TestLoad_ProductionRequiresJWTSecret(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	t.Setenv("APP_ENV", "production")
	_, err := Load()
	assert.ErrorIs(t, err, ErrJWTSecretRequired)

	t.Setenv("JWT_SECRET", "s3cret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}
