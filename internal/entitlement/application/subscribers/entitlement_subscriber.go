package subscribers

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/vyora/pkg/observability"
)

// EntitlementService is the part of application.Service the subscriber drives.
type EntitlementService interface {
	ApplySubscriptionUpdate(ctx context.Context, sub *domain.Subscription) error
	RecordDenial(ctx context.Context, denial domain.Denial) error
}

// EntitlementSubscriber applies billing updates to the read model and
// persists denials published by gateways.
type EntitlementSubscriber struct {
	service EntitlementService
	logger  *slog.Logger
	metrics observability.Metrics
}

// NewEntitlementSubscriber creates a new subscriber.
func NewEntitlementSubscriber(service EntitlementService, logger *slog.Logger, metrics observability.Metrics) *EntitlementSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &EntitlementSubscriber{service: service, logger: logger, metrics: metrics}
}

// EventTypes returns the event types this subscriber handles.
func (s *EntitlementSubscriber) EventTypes() []string {
	return []string{
		domain.RoutingKeySubscriptionUpdated,
		domain.RoutingKeyActionDenied,
	}
}

// Handle processes an entitlement event.
func (s *EntitlementSubscriber) Handle(ctx context.Context, event *eventbus.Event) error {
	if id := event.Metadata.CorrelationID; id != "" {
		ctx = observability.WithCorrelationID(ctx, id)
	}
	s.metrics.Counter(observability.MetricEventsConsumed, 1, observability.T("routing_key", event.RoutingKey))

	switch event.RoutingKey {
	case domain.RoutingKeySubscriptionUpdated:
		return s.handleSubscriptionUpdated(ctx, event)
	case domain.RoutingKeyActionDenied:
		return s.handleActionDenied(ctx, event)
	default:
		s.logger.Warn("unknown event type", "routing_key", event.RoutingKey)
		return nil
	}
}

func (s *EntitlementSubscriber) handleSubscriptionUpdated(ctx context.Context, event *eventbus.Event) error {
	var payload domain.SubscriptionUpdated
	if err := event.Decode(&payload); err != nil {
		s.logger.Error("dropping malformed subscription event", "event_id", event.EventID, "error", err)
		return nil
	}

	sub := payload.Subscription
	if sub.TenantID == "" {
		sub.TenantID = event.TenantID
	}
	if sub.Plan == nil {
		sub.Plan = payload.Plan
	}
	if sub.TenantID == "" {
		s.logger.Warn("subscription event without tenant", "event_id", event.EventID)
		return nil
	}

	if err := s.service.ApplySubscriptionUpdate(ctx, &sub); err != nil {
		return err
	}
	s.logger.Info("subscription updated",
		"tenant_id", sub.TenantID,
		"status", sub.Status,
		"payment_status", sub.PaymentStatus,
		"entitled", sub.IsEntitled(),
	)
	return nil
}

func (s *EntitlementSubscriber) handleActionDenied(ctx context.Context, event *eventbus.Event) error {
	var payload domain.ActionDenied
	if err := event.Decode(&payload); err != nil {
		s.logger.Error("dropping malformed denial event", "event_id", event.EventID, "error", err)
		return nil
	}
	denial := payload.Denial
	if denial.TenantID == "" {
		denial.TenantID = event.TenantID
	}
	if denial.TenantID == "" {
		return nil
	}
	return s.service.RecordDenial(ctx, denial)
}

var _ eventbus.EventConsumer = (*EntitlementSubscriber)(nil)
