package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okPing(context.Context) error   { return nil }
func downPing(context.Context) error { return errors.New("connection refused") }

func TestHealthRegistry_OverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		checkers map[string]HealthChecker
		want     HealthStatus
	}{
		{name: "no checks", want: HealthStatusHealthy},
		{
			name: "all healthy",
			checkers: map[string]HealthChecker{
				"database": DatabaseHealthChecker(okPing),
				"redis":    RedisHealthChecker(okPing),
			},
			want: HealthStatusHealthy,
		},
		{
			name: "optional dependency down",
			checkers: map[string]HealthChecker{
				"database": DatabaseHealthChecker(okPing),
				"rabbitmq": RabbitMQHealthChecker(downPing),
			},
			want: HealthStatusDegraded,
		},
		{
			name: "database down wins",
			checkers: map[string]HealthChecker{
				"database": DatabaseHealthChecker(downPing),
				"redis":    RedisHealthChecker(downPing),
			},
			want: HealthStatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewHealthRegistry()
			for name, checker := range tt.checkers {
				r.Register(name, checker)
			}
			health := r.GetOverallHealth(context.Background())
			assert.Equal(t, tt.want, health.Status)
			assert.Len(t, health.Checks, len(tt.checkers))
		})
	}
}

func TestHealthRegistry_CheckResults(t *testing.T) {
	r := NewHealthRegistry()
	r.Register("redis", RedisHealthChecker(downPing))
	r.Register("database", DatabaseHealthChecker(okPing))

	assert.Equal(t, []string{"database", "redis"}, r.Names())

	results := r.Check(context.Background())
	require.Contains(t, results, "redis")
	assert.Equal(t, HealthStatusDegraded, results["redis"].Status)
	assert.Equal(t, "redis connection failed: connection refused", results["redis"].Message)
	assert.False(t, results["redis"].Timestamp.IsZero())
	assert.Equal(t, "database connection healthy", results["database"].Message)
}

func TestHealthRegistry_CheckTimeout(t *testing.T) {
	r := NewHealthRegistry()
	r.SetTimeout(10 * time.Millisecond)
	r.Register("billing", PingChecker("billing", HealthStatusDegraded, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	start := time.Now()
	health := r.GetOverallHealth(context.Background())
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, HealthStatusDegraded, health.Status)
	assert.Contains(t, health.Checks["billing"].Message, "deadline exceeded")
}
