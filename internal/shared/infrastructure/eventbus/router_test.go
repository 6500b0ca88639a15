package eventbus_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/eventbus"
)

type mockConsumer struct {
	mu         sync.Mutex
	eventTypes []string
	events     []*eventbus.Event
	err        error
}

func (m *mockConsumer) EventTypes() []string {
	return m.eventTypes
}

func (m *mockConsumer) Handle(ctx context.Context, event *eventbus.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMatchTopic(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"billing.subscription.updated", "billing.subscription.updated", true},
		{"billing.subscription.updated", "billing.subscription.cancelled", false},
		{"billing.*.updated", "billing.subscription.updated", true},
		{"billing.*", "billing.subscription.updated", false},
		{"billing.#", "billing.subscription.updated", true},
		{"billing.#", "billing", true},
		{"#", "entitlement.action.denied", true},
		{"#.denied", "entitlement.action.denied", true},
		{"*.action.*", "entitlement.action.denied", true},
		{"*.action.*", "action.denied", false},
		{"entitlement.#.denied", "entitlement.denied", true},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, eventbus.MatchTopic(tt.pattern, tt.key))
		})
	}
}

func TestRouter_Register(t *testing.T) {
	router := eventbus.NewRouter(testLogger())
	router.Register(&mockConsumer{eventTypes: []string{"entitlement.action.denied", "billing.subscription.updated"}})
	router.Register(&mockConsumer{eventTypes: []string{"billing.subscription.updated"}})

	assert.Equal(t, 3, router.Count())
	assert.Equal(t, []string{"billing.subscription.updated", "entitlement.action.denied"}, router.Patterns())
}

func TestRouter_Dispatch(t *testing.T) {
	router := eventbus.NewRouter(testLogger())
	exact := &mockConsumer{eventTypes: []string{"billing.subscription.updated"}}
	wildcard := &mockConsumer{eventTypes: []string{"billing.#", "#.updated"}}
	other := &mockConsumer{eventTypes: []string{"entitlement.action.denied"}}
	router.Register(exact)
	router.Register(wildcard)
	router.Register(other)

	event := &eventbus.Event{EventID: uuid.New(), RoutingKey: "billing.subscription.updated", TenantID: "vendor-1"}
	require.NoError(t, router.Dispatch(context.Background(), event))

	require.Len(t, exact.events, 1)
	assert.Equal(t, event.EventID, exact.events[0].EventID)
	assert.Len(t, wildcard.events, 1, "a consumer matching twice is called once")
	assert.Empty(t, other.events)
}

func TestRouter_DispatchNoConsumers(t *testing.T) {
	router := eventbus.NewRouter(testLogger())
	assert.NoError(t, router.Dispatch(context.Background(), &eventbus.Event{RoutingKey: "unknown.event"}))
}

func TestRouter_DispatchJoinsErrors(t *testing.T) {
	router := eventbus.NewRouter(testLogger())
	errA := errors.New("read model unavailable")
	errB := errors.New("cache unavailable")
	first := &mockConsumer{eventTypes: []string{"entitlement.action.denied"}, err: errA}
	second := &mockConsumer{eventTypes: []string{"entitlement.action.denied"}, err: errB}
	healthy := &mockConsumer{eventTypes: []string{"entitlement.#"}}
	router.Register(first)
	router.Register(second)
	router.Register(healthy)

	err := router.Dispatch(context.Background(), &eventbus.Event{EventID: uuid.New(), RoutingKey: "entitlement.action.denied"})
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Len(t, healthy.events, 1)
}

func TestParseEvent(t *testing.T) {
	event, err := eventbus.ParseEvent("billing.subscription.updated", []byte(`{"tenant_id":"vendor-2","payload":{}}`))
	require.NoError(t, err)
	assert.Equal(t, "billing.subscription.updated", event.RoutingKey)
	assert.Equal(t, "vendor-2", event.TenantID)

	event, err = eventbus.ParseEvent("fallback", []byte(`{"routing_key":"entitlement.action.denied"}`))
	require.NoError(t, err)
	assert.Equal(t, "entitlement.action.denied", event.RoutingKey)

	_, err = eventbus.ParseEvent("x", []byte("not json"))
	assert.ErrorIs(t, err, eventbus.ErrMalformedEvent)
}
