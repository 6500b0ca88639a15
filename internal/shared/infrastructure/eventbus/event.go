// Package eventbus carries entitlement and billing events between Vyora
// processes: RabbitMQ in deployed environments, an in-process bus locally.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope carried on the bus.
type Event struct {
	EventID    uuid.UUID       `json:"event_id"`
	RoutingKey string          `json:"routing_key"`
	TenantID   string          `json:"tenant_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
	Metadata   EventMetadata   `json:"metadata,omitempty"`
}

// EventMetadata contains optional tracing metadata about the event.
type EventMetadata struct {
	CorrelationID string `json:"correlation_id,omitempty"`
	CausationID   string `json:"causation_id,omitempty"`
}

// NewEvent wraps payload in an envelope with a fresh ID.
func NewEvent(routingKey, tenantID string, payload any) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", routingKey, err)
	}
	return &Event{
		EventID:    uuid.New(),
		RoutingKey: routingKey,
		TenantID:   tenantID,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.RoutingKey, err)
	}
	return nil
}

// ErrMalformedEvent marks a message body that is not an envelope. Such
// messages are dropped rather than retried.
var ErrMalformedEvent = errors.New("malformed event")

// ParseEvent decodes a message body. The delivery routing key fills in
// an envelope that omits its own.
func ParseEvent(routingKey string, body []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if event.RoutingKey == "" {
		event.RoutingKey = routingKey
	}
	return &event, nil
}

// Publisher sends encoded envelopes to the bus.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
	Close() error
}

// PublishEvent marshals the envelope and publishes it under its routing key.
func PublishEvent(ctx context.Context, p Publisher, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.Publish(ctx, event.RoutingKey, body)
}

// EventConsumer handles the events whose routing keys match one of its
// patterns. Patterns follow topic exchange rules: "*" is one word, "#"
// is zero or more.
type EventConsumer interface {
	EventTypes() []string
	Handle(ctx context.Context, event *Event) error
}

// Consumer drives EventConsumers from a transport.
type Consumer interface {
	// Start blocks until ctx is cancelled or the transport fails.
	Start(ctx context.Context) error
	RegisterConsumer(consumer EventConsumer)
	Close() error
}
