package domain

import (
	"context"
	"time"
)

// SubscriptionSource fetches the current subscription of a tenant.
// A nil subscription with a nil error means the tenant has none.
type SubscriptionSource interface {
	Fetch(ctx context.Context, tenantID string) (*Subscription, error)
}

// SubscriptionRepository persists the local subscription read model.
type SubscriptionRepository interface {
	Upsert(ctx context.Context, subscription *Subscription) error
	FindByTenantID(ctx context.Context, tenantID string) (*Subscription, error)
}

// DenialRepository persists the denial audit log.
type DenialRepository interface {
	Save(ctx context.Context, denial Denial) error
	// ListByTenant returns denials in [from, to), newest first. A zero to
	// leaves the range open.
	ListByTenant(ctx context.Context, tenantID string, from, to time.Time, limit int) ([]Denial, error)
	// CountByAction counts denials in [from, to) per action.
	CountByAction(ctx context.Context, tenantID string, from, to time.Time) (map[ActionKind]int64, error)
	// Purge deletes denials older than before and returns how many went.
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// DenialCounter keeps cheap per-day denial counts keyed by action.
type DenialCounter interface {
	Increment(ctx context.Context, tenantID string, action ActionKind, at time.Time) error
	Counts(ctx context.Context, tenantID string, day time.Time) (map[ActionKind]int64, error)
}
