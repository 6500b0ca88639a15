package application

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/vyora/pkg/observability"
)

// DenialRecorder receives denials from the guards.
// Implementations must not block the caller for long and never fail it.
type DenialRecorder interface {
	RecordDenial(ctx context.Context, denial domain.Denial)
}

// DenialRecorderFunc adapts a function to DenialRecorder.
type DenialRecorderFunc func(ctx context.Context, denial domain.Denial)

// RecordDenial calls f.
func (f DenialRecorderFunc) RecordDenial(ctx context.Context, denial domain.Denial) {
	f(ctx, denial)
}

// Auditor logs, counts and publishes denials.
type Auditor struct {
	logger    *slog.Logger
	metrics   observability.Metrics
	publisher eventbus.Publisher
}

// NewAuditor creates an auditor. publisher may be nil.
func NewAuditor(logger *slog.Logger, metrics observability.Metrics, publisher eventbus.Publisher) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Auditor{logger: logger, metrics: metrics, publisher: publisher}
}

// RecordDenial implements DenialRecorder.
func (a *Auditor) RecordDenial(ctx context.Context, denial domain.Denial) {
	if a == nil {
		return
	}

	a.logger.InfoContext(ctx, "action denied",
		"tenant_id", denial.TenantID,
		"action", denial.Action.String(),
		"surface", string(denial.Surface),
	)
	a.metrics.Counter(observability.MetricDenials, 1,
		observability.T("action", denial.Action.String()),
		observability.T("surface", string(denial.Surface)),
	)

	if a.publisher == nil {
		return
	}
	event, err := eventbus.NewEvent(domain.RoutingKeyActionDenied, denial.TenantID, domain.ActionDenied{Denial: denial})
	if err != nil {
		a.logger.Warn("failed to build denial event", "error", err)
		return
	}
	event.Metadata.CorrelationID = observability.CorrelationIDFromContext(ctx)
	if err := eventbus.PublishEvent(ctx, a.publisher, event); err != nil {
		a.logger.Warn("failed to publish denial event", "tenant_id", denial.TenantID, "error", err)
	}
}

var _ DenialRecorder = (*Auditor)(nil)
