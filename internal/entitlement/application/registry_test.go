package application

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_OpenWarmStart(t *testing.T) {
	src := newFakeSource()
	src.set("vendor-1", domain.SubscriptionActive, domain.PaymentCompleted)
	reg := NewRegistry(RegistryConfig{Store: StoreConfig{Source: src}, WarmStart: true})
	defer reg.CloseAll()

	store, err := reg.Open(context.Background(), "vendor-1")
	require.NoError(t, err)

	assert.True(t, store.Entitled())
	assert.Same(t, store, reg.Get("vendor-1"))
	assert.True(t, reg.Evaluator("vendor-1").IsEntitled())
	assert.Equal(t, []string{"vendor-1"}, reg.Tenants())
}

func TestRegistry_OpenWithoutWarmStartIsAsync(t *testing.T) {
	src := newFakeSource()
	src.set("vendor-1", domain.SubscriptionActive, domain.PaymentCompleted)
	reg := NewRegistry(RegistryConfig{Store: StoreConfig{Source: src}})
	defer reg.CloseAll()

	store, err := reg.Open(context.Background(), "vendor-1")
	require.NoError(t, err)

	assert.Eventually(t, store.Entitled, time.Second, 5*time.Millisecond)
}

func TestRegistry_OpenRequiresTenant(t *testing.T) {
	reg := NewRegistry(RegistryConfig{})

	_, err := reg.Open(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrTenantRequired)
}

func TestRegistry_UnknownTenantIsNotEntitled(t *testing.T) {
	reg := NewRegistry(RegistryConfig{})

	eval := reg.Evaluator("nobody")
	assert.False(t, eval.IsEntitled())
	assert.False(t, eval.CanPerformAction(domain.ActionCreate).Allowed)
	assert.False(t, reg.Invalidate("nobody"))
}

func TestRegistry_TenantsAreIsolated(t *testing.T) {
	src := newFakeSource()
	src.set("vendor-1", domain.SubscriptionActive, domain.PaymentCompleted)
	src.set("vendor-2", domain.SubscriptionActive, domain.PaymentFailed)
	reg := NewRegistry(RegistryConfig{Store: StoreConfig{Source: src}, WarmStart: true})
	defer reg.CloseAll()

	_, err := reg.Open(context.Background(), "vendor-1")
	require.NoError(t, err)
	_, err = reg.Open(context.Background(), "vendor-2")
	require.NoError(t, err)

	assert.True(t, reg.Evaluator("vendor-1").IsEntitled())
	assert.False(t, reg.Evaluator("vendor-2").IsEntitled())
}

func TestRegistry_InvalidatePicksUpChange(t *testing.T) {
	src := newFakeSource()
	src.set("vendor-1", domain.SubscriptionPending, domain.PaymentPending)
	reg := NewRegistry(RegistryConfig{Store: StoreConfig{Source: src}, WarmStart: true})
	defer reg.CloseAll()

	_, err := reg.Open(context.Background(), "vendor-1")
	require.NoError(t, err)
	require.False(t, reg.Evaluator("vendor-1").IsEntitled())

	src.set("vendor-1", domain.SubscriptionActive, domain.PaymentCompleted)
	assert.True(t, reg.Invalidate("vendor-1"))

	assert.Eventually(t, func() bool { return reg.Evaluator("vendor-1").IsEntitled() }, time.Second, 5*time.Millisecond)
}

func TestRegistry_CloseEndsSession(t *testing.T) {
	src := newFakeSource()
	src.set("vendor-1", domain.SubscriptionActive, domain.PaymentCompleted)
	reg := NewRegistry(RegistryConfig{Store: StoreConfig{Source: src}, WarmStart: true})

	store, err := reg.Open(context.Background(), "vendor-1")
	require.NoError(t, err)

	reg.Close("vendor-1")

	assert.Nil(t, reg.Get("vendor-1"))
	assert.False(t, store.Entitled())
	assert.False(t, reg.Evaluator("vendor-1").IsEntitled())
	assert.Empty(t, reg.Tenants())
}
