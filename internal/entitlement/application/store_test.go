package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	"github.com/felixgeelhaar/vyora/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource returns whatever is currently configured for a tenant.
type fakeSource struct {
	mu    sync.Mutex
	subs  map[string]*domain.Subscription
	err   error
	calls atomic.Int32
	gate  chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{subs: map[string]*domain.Subscription{}}
}

func (f *fakeSource) set(tenantID string, status domain.SubscriptionStatus, payment domain.PaymentStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[tenantID] = &domain.Subscription{
		TenantID:      tenantID,
		PlanID:        "pro",
		Status:        status,
		PaymentStatus: payment,
	}
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeSource) Fetch(ctx context.Context, tenantID string) (*domain.Subscription, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	sub, ok := f.subs[tenantID]
	if !ok {
		return nil, nil
	}
	cp := *sub
	return &cp, nil
}

func TestStore_RefetchEntitled(t *testing.T) {
	src := newFakeSource()
	src.set("vendor-1", domain.SubscriptionActive, domain.PaymentCompleted)
	metrics := observability.NewInMemoryMetrics()

	store := NewStore("vendor-1", StoreConfig{Source: src, Metrics: metrics})
	defer store.Close()

	assert.False(t, store.Entitled())
	require.NoError(t, store.Refetch(context.Background()))

	assert.True(t, store.Entitled())
	require.NotNil(t, store.Subscription())
	assert.Equal(t, "pro", store.Subscription().PlanID)
	assert.False(t, store.FetchedAt().IsZero())
	assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricSubscriptionFetches))
}

func TestStore_PendingPaymentIsNotEntitled(t *testing.T) {
	src := newFakeSource()
	src.set("vendor-1", domain.SubscriptionActive, domain.PaymentPending)

	store := NewStore("vendor-1", StoreConfig{Source: src})
	defer store.Close()

	require.NoError(t, store.Refetch(context.Background()))
	assert.False(t, store.Entitled())
	assert.NotNil(t, store.Subscription())
}

func TestStore_FetchErrorFailsClosed(t *testing.T) {
	src := newFakeSource()
	src.set("vendor-1", domain.SubscriptionActive, domain.PaymentCompleted)
	metrics := observability.NewInMemoryMetrics()

	store := NewStore("vendor-1", StoreConfig{Source: src, Metrics: metrics})
	defer store.Close()

	require.NoError(t, store.Refetch(context.Background()))
	require.True(t, store.Entitled())

	src.fail(errors.New("connection refused"))
	err := store.Refetch(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSubscriptionUnavailable)
	assert.False(t, store.Entitled())
	assert.Nil(t, store.Subscription())
	assert.ErrorIs(t, store.LastError(), domain.ErrSubscriptionUnavailable)
	assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricSubscriptionFetchErrors))
}

func TestStore_NoSubscription(t *testing.T) {
	store := NewStore("vendor-2", StoreConfig{Source: newFakeSource()})
	defer store.Close()

	require.NoError(t, store.Refetch(context.Background()))
	assert.False(t, store.Entitled())
	assert.Nil(t, store.Subscription())
	assert.NoError(t, store.LastError())
}

func TestStore_RequiresTenant(t *testing.T) {
	store := NewStore("", StoreConfig{Source: newFakeSource()})
	defer store.Close()

	assert.ErrorIs(t, store.Refetch(context.Background()), domain.ErrTenantRequired)
	assert.False(t, store.Entitled())
}

func TestStore_NilIsSafeDefault(t *testing.T) {
	var store *Store

	assert.False(t, store.Entitled())
	assert.False(t, store.IsLoading())
	assert.Nil(t, store.Subscription())
	assert.Empty(t, store.TenantID())
	assert.ErrorIs(t, store.Refetch(context.Background()), domain.ErrTenantRequired)
	store.Mount()
	store.Focus()
	store.Close()
}

func TestStore_MountRefreshesInBackground(t *testing.T) {
	src := newFakeSource()
	src.set("vendor-1", domain.SubscriptionActive, domain.PaymentCompleted)
	src.gate = make(chan struct{})

	store := NewStore("vendor-1", StoreConfig{Source: src})
	defer store.Close()

	store.Mount()

	// Reads do not wait for the fetch.
	assert.False(t, store.Entitled())
	assert.Eventually(t, store.IsLoading, time.Second, 5*time.Millisecond)

	close(src.gate)
	assert.Eventually(t, store.Entitled, time.Second, 5*time.Millisecond)
	assert.False(t, store.IsLoading())
}

func TestStore_ConcurrentRefreshesShareOneFetch(t *testing.T) {
	src := newFakeSource()
	src.set("vendor-1", domain.SubscriptionActive, domain.PaymentCompleted)
	src.gate = make(chan struct{})

	store := NewStore("vendor-1", StoreConfig{Source: src})
	defer store.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Refetch(context.Background())
		}()
	}

	require.Eventually(t, func() bool {
		store.mu.RLock()
		defer store.mu.RUnlock()
		return store.inflight == 8
	}, time.Second, 5*time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	assert.True(t, store.Entitled())
}

func TestStore_CloseDropsSnapshot(t *testing.T) {
	src := newFakeSource()
	src.set("vendor-1", domain.SubscriptionActive, domain.PaymentCompleted)

	store := NewStore("vendor-1", StoreConfig{Source: src})
	require.NoError(t, store.Refetch(context.Background()))
	require.True(t, store.Entitled())

	store.Close()

	assert.False(t, store.Entitled())
	assert.ErrorIs(t, store.Refetch(context.Background()), domain.ErrStoreClosed)
	store.Focus()
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestStore_TransitionToEntitled(t *testing.T) {
	src := newFakeSource()
	src.set("vendor-1", domain.SubscriptionPending, domain.PaymentPending)

	store := NewStore("vendor-1", StoreConfig{Source: src})
	defer store.Close()
	eval := NewEvaluator(store)

	require.NoError(t, store.Refetch(context.Background()))
	first := eval.CanPerformAction(domain.ActionPublish)

	src.set("vendor-1", domain.SubscriptionActive, domain.PaymentCompleted)
	require.NoError(t, store.Refetch(context.Background()))
	second := eval.CanPerformAction(domain.ActionPublish)

	assert.False(t, first.Allowed)
	assert.True(t, second.Allowed)
}

// snapshotSource reads its answer when the call starts, then waits on gate.
type snapshotSource struct {
	mu    sync.Mutex
	sub   *domain.Subscription
	calls atomic.Int32
	gate  chan struct{}
}

func (s *snapshotSource) set(sub *domain.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sub = sub
}

func (s *snapshotSource) Fetch(ctx context.Context, tenantID string) (*domain.Subscription, error) {
	s.calls.Add(1)
	s.mu.Lock()
	sub := s.sub
	s.mu.Unlock()
	select {
	case <-s.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return sub, nil
}

func TestStore_InvalidateDuringFetchSeesLatestWrite(t *testing.T) {
	src := &snapshotSource{gate: make(chan struct{})}
	store := NewStore("vendor-1", StoreConfig{Source: src})
	defer store.Close()

	store.Focus()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)

	src.set(&domain.Subscription{
		TenantID:      "vendor-1",
		Status:        domain.SubscriptionActive,
		PaymentStatus: domain.PaymentCompleted,
	})
	store.Invalidate()
	require.Eventually(t, func() bool { return src.calls.Load() == 2 }, time.Second, time.Millisecond)
	close(src.gate)

	assert.Eventually(t, store.Entitled, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return !store.Entitled() }, 50*time.Millisecond, 5*time.Millisecond)
}
