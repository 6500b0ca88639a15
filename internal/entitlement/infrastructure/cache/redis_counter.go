// Package cache keeps per-day denial counters.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	"github.com/redis/go-redis/v9"
)

// CounterTTL bounds how long a day's counters survive in Redis.
const CounterTTL = 8 * 24 * time.Hour

// RedisDenialCounter implements domain.DenialCounter with Redis hashes.
// Keys are namespaced: vyora:denials:{tenant}:{yyyymmdd}
type RedisDenialCounter struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisDenialCounter creates a counter on client.
func NewRedisDenialCounter(client redis.Cmdable) *RedisDenialCounter {
	return &RedisDenialCounter{client: client, ttl: CounterTTL}
}

func counterKey(tenantID string, day time.Time) string {
	return fmt.Sprintf("vyora:denials:%s:%s", tenantID, day.UTC().Format("20060102"))
}

// Increment bumps the action's counter for the day of at.
func (c *RedisDenialCounter) Increment(ctx context.Context, tenantID string, action domain.ActionKind, at time.Time) error {
	key := counterKey(tenantID, at)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, string(action), 1)
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	return err
}

// Counts returns the day's counters keyed by action.
func (c *RedisDenialCounter) Counts(ctx context.Context, tenantID string, day time.Time) (map[domain.ActionKind]int64, error) {
	raw, err := c.client.HGetAll(ctx, counterKey(tenantID, day)).Result()
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.ActionKind]int64, len(raw))
	for field, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		counts[domain.ActionKind(field)] = n
	}
	return counts, nil
}

var _ domain.DenialCounter = (*RedisDenialCounter)(nil)
