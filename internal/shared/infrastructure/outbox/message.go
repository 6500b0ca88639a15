// Package outbox stores bus events in the database alongside the writes
// that produced them, and publishes them to the broker afterwards.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/eventbus"
)

// Message is one outbox row. Payload is the encoded eventbus.Event and is
// published as is.
type Message struct {
	ID               int64
	EventID          uuid.UUID
	RoutingKey       string
	TenantID         string
	CorrelationID    string
	Payload          json.RawMessage
	CreatedAt        time.Time
	PublishedAt      *time.Time
	NextRetryAt      *time.Time
	RetryCount       int
	LastError        *string
	DeadLetteredAt   *time.Time
	DeadLetterReason *string
}

// NewMessage encodes event into an unpublished message.
func NewMessage(event *eventbus.Event) (*Message, error) {
	if event == nil {
		return nil, fmt.Errorf("outbox: nil event")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", event.RoutingKey, err)
	}
	created := event.OccurredAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return &Message{
		EventID:       event.EventID,
		RoutingKey:    event.RoutingKey,
		TenantID:      event.TenantID,
		CorrelationID: event.Metadata.CorrelationID,
		Payload:       payload,
		CreatedAt:     created,
	}, nil
}

// Event decodes the stored envelope.
func (m *Message) Event() (*eventbus.Event, error) {
	var event eventbus.Event
	if err := json.Unmarshal(m.Payload, &event); err != nil {
		return nil, fmt.Errorf("decode outbox message %d: %w", m.ID, err)
	}
	return &event, nil
}

// IsPublished returns true if the message has been published.
func (m *Message) IsPublished() bool {
	return m.PublishedAt != nil
}

// IsDead returns true once the message has been dead-lettered.
func (m *Message) IsDead() bool {
	return m.DeadLetteredAt != nil
}

// CanRetry returns true if the message can be retried.
func (m *Message) CanRetry(maxRetries int) bool {
	return m.RetryCount < maxRetries
}
