package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	"github.com/felixgeelhaar/vyora/pkg/observability"
	"golang.org/x/sync/singleflight"
)

// DefaultRefreshTimeout bounds a single background refresh.
const DefaultRefreshTimeout = 5 * time.Second

// StoreConfig configures a subscription store.
type StoreConfig struct {
	Source         domain.SubscriptionSource
	Logger         *slog.Logger
	Metrics        observability.Metrics
	RefreshTimeout time.Duration
}

// Store holds the best known subscription snapshot of one tenant.
//
// Reads never block on the network. Mount and Focus start a background
// refresh; concurrent refreshes share one fetch. Any fetch failure
// replaces the snapshot with "no subscription". A fetch that started
// before the latest Invalidate never overwrites the snapshot.
type Store struct {
	tenantID string
	source   domain.SubscriptionSource
	logger   *slog.Logger
	metrics  observability.Metrics
	timeout  time.Duration

	mu        sync.RWMutex
	sub       *domain.Subscription
	fetchedAt time.Time
	lastErr   error
	inflight  int
	gen       uint64
	closed    bool

	group  singleflight.Group
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStore creates a store for tenantID. No fetch happens until Mount,
// Focus or Refetch is called.
func NewStore(tenantID string, cfg StoreConfig) *Store {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetrics{}
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = DefaultRefreshTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		tenantID: tenantID,
		source:   cfg.Source,
		logger:   cfg.Logger.With("tenant_id", tenantID),
		metrics:  cfg.Metrics,
		timeout:  cfg.RefreshTimeout,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// TenantID returns the tenant this store serves.
func (s *Store) TenantID() string {
	if s == nil {
		return ""
	}
	return s.tenantID
}

// Mount signals that a consumer attached to the store.
func (s *Store) Mount() {
	s.revalidate("mount")
}

// Focus signals that a consumer regained attention.
func (s *Store) Focus() {
	s.revalidate("focus")
}

// Invalidate marks the snapshot stale after an external change.
// Results of fetches already in flight are discarded.
func (s *Store) Invalidate() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()
	s.group.Forget(s.tenantID)
	s.revalidate("invalidate")
}

func (s *Store) revalidate(reason string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()
		if err := s.Refetch(ctx); err != nil && !errors.Is(err, domain.ErrStoreClosed) {
			s.logger.Debug("background refresh failed", "reason", reason, "error", err)
		}
	}()
}

// Refetch fetches the subscription now and waits for the result.
// Concurrent callers share a single fetch.
func (s *Store) Refetch(ctx context.Context) error {
	if s == nil {
		return domain.ErrTenantRequired
	}
	if s.tenantID == "" {
		return domain.ErrTenantRequired
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrStoreClosed
	}
	s.inflight++
	s.mu.Unlock()

	ch := s.group.DoChan(s.tenantID, func() (any, error) {
		return s.fetch(ctx)
	})

	var err error
	select {
	case res := <-ch:
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}

	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
	return err
}

func (s *Store) fetch(ctx context.Context) (*domain.Subscription, error) {
	s.mu.RLock()
	gen := s.gen
	s.mu.RUnlock()

	if s.source == nil {
		s.apply(gen, nil, nil)
		return nil, nil
	}

	sw := observability.StartStopwatch(s.metrics, observability.SubscriptionFetchMetrics)
	sub, err := s.source.Fetch(ctx, s.tenantID)
	sw.Stop(err)

	if err != nil {
		s.logger.Warn("subscription fetch failed, treating tenant as not entitled", "error", err)
		err = fmt.Errorf("%w: %w", domain.ErrSubscriptionUnavailable, err)
		s.apply(gen, nil, err)
		return nil, err
	}

	if !s.apply(gen, sub, nil) {
		s.logger.Debug("discarded subscription fetched before invalidation")
		return sub, nil
	}
	s.logger.Debug("subscription refreshed",
		"status", statusOf(sub),
		"entitled", sub.IsEntitled(),
	)
	return sub, nil
}

// apply stores a fetch result unless the store was invalidated since the
// fetch began.
func (s *Store) apply(gen uint64, sub *domain.Subscription, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen {
		return false
	}
	s.sub = sub
	s.lastErr = err
	s.fetchedAt = time.Now()
	return true
}

// Subscription returns the current snapshot, or nil when there is none.
func (s *Store) Subscription() *domain.Subscription {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sub == nil {
		return nil
	}
	sub := *s.sub
	return &sub
}

// Entitled reports whether the current snapshot grants Pro features.
func (s *Store) Entitled() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sub.IsEntitled()
}

// IsLoading reports whether the first fetch is still in flight.
func (s *Store) IsLoading() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchedAt.IsZero() && s.inflight > 0
}

// FetchedAt returns when the snapshot was last replaced.
func (s *Store) FetchedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchedAt
}

// LastError returns the error of the most recent fetch, if any.
func (s *Store) LastError() error {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Close drops the snapshot and waits for background refreshes to stop.
func (s *Store) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.sub = nil
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func statusOf(sub *domain.Subscription) string {
	if sub == nil {
		return "none"
	}
	return string(sub.Status)
}
