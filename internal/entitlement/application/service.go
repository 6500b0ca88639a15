package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	sharedApplication "github.com/felixgeelhaar/vyora/internal/shared/application"
	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/vyora/pkg/observability"
)

// ReadModelSource serves subscriptions from the local read model.
// It is used when no billing API is configured.
type ReadModelSource struct {
	repo domain.SubscriptionRepository
}

// NewReadModelSource wraps repo as a SubscriptionSource.
func NewReadModelSource(repo domain.SubscriptionRepository) *ReadModelSource {
	return &ReadModelSource{repo: repo}
}

// Fetch implements domain.SubscriptionSource.
func (s *ReadModelSource) Fetch(ctx context.Context, tenantID string) (*domain.Subscription, error) {
	if s == nil || s.repo == nil {
		return nil, nil
	}
	return s.repo.FindByTenantID(ctx, tenantID)
}

// EventOutbox stores events for publishing after the surrounding unit of
// work commits.
type EventOutbox interface {
	Enqueue(ctx context.Context, event *eventbus.Event) error
}

// Service coordinates the read model, the denial audit log and the
// open tenant stores.
type Service struct {
	subscriptions domain.SubscriptionRepository
	denials       domain.DenialRepository
	counter       domain.DenialCounter
	registry      *Registry
	uow           sharedApplication.UnitOfWork
	outbox        EventOutbox
	logger        *slog.Logger
}

// ServiceConfig wires a Service. Every field is optional.
type ServiceConfig struct {
	Subscriptions domain.SubscriptionRepository
	Denials       domain.DenialRepository
	Counter       domain.DenialCounter
	Registry      *Registry

	// UnitOfWork wraps the read model write and its outbox entry.
	UnitOfWork sharedApplication.UnitOfWork
	// Outbox, when set, forwards ingested updates to other processes.
	Outbox EventOutbox

	Logger *slog.Logger
}

// NewService creates a new entitlement service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		subscriptions: cfg.Subscriptions,
		denials:       cfg.Denials,
		counter:       cfg.Counter,
		registry:      cfg.Registry,
		uow:           cfg.UnitOfWork,
		outbox:        cfg.Outbox,
		logger:        cfg.Logger,
	}
}

// ApplySubscriptionUpdate stores sub and refreshes the tenant's store if
// open. Consumers of broker events call it; it never republishes.
func (s *Service) ApplySubscriptionUpdate(ctx context.Context, sub *domain.Subscription) error {
	if s == nil {
		return nil
	}
	if err := s.upsert(ctx, sub); err != nil {
		return err
	}
	s.invalidate(sub.TenantID)
	return nil
}

// IngestSubscriptionUpdate applies an update received from billing. With
// an outbox configured, the read model write and a
// billing.subscription.updated event commit in one unit of work, so other
// processes see every update this one stored.
func (s *Service) IngestSubscriptionUpdate(ctx context.Context, sub *domain.Subscription) error {
	if s == nil {
		return nil
	}
	if s.outbox == nil {
		return s.ApplySubscriptionUpdate(ctx, sub)
	}

	err := sharedApplication.WithUnitOfWork(ctx, s.uow, func(ctx context.Context) error {
		if err := s.upsert(ctx, sub); err != nil {
			return err
		}
		event, err := eventbus.NewEvent(domain.RoutingKeySubscriptionUpdated, sub.TenantID, domain.SubscriptionUpdated{
			Subscription: *sub,
			Plan:         sub.Plan,
		})
		if err != nil {
			return err
		}
		event.Metadata.CorrelationID = observability.CorrelationIDFromContext(ctx)
		if err := s.outbox.Enqueue(ctx, event); err != nil {
			return fmt.Errorf("enqueue subscription update: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate(sub.TenantID)
	return nil
}

func (s *Service) upsert(ctx context.Context, sub *domain.Subscription) error {
	if sub == nil || sub.TenantID == "" {
		return domain.ErrTenantRequired
	}
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = time.Now().UTC()
	}
	if s.subscriptions != nil {
		if err := s.subscriptions.Upsert(ctx, sub); err != nil {
			return fmt.Errorf("upsert subscription: %w", err)
		}
	}
	return nil
}

func (s *Service) invalidate(tenantID string) {
	if s.registry.Invalidate(tenantID) {
		s.logger.Debug("tenant store invalidated", "tenant_id", tenantID)
	}
}

// RecordDenial appends the denial to the audit log and bumps its counter.
// Counter failures are logged only; the audit log is authoritative.
func (s *Service) RecordDenial(ctx context.Context, denial domain.Denial) error {
	if s == nil {
		return nil
	}
	if denial.TenantID == "" {
		return domain.ErrTenantRequired
	}
	if s.denials != nil {
		if err := s.denials.Save(ctx, denial); err != nil {
			return fmt.Errorf("save denial: %w", err)
		}
	}
	if s.counter != nil {
		if err := s.counter.Increment(ctx, denial.TenantID, denial.Action, denial.OccurredAt); err != nil {
			s.logger.Warn("failed to increment denial counter", "tenant_id", denial.TenantID, "error", err)
		}
	}
	return nil
}

// DenialSummary is the per-day view of a tenant's denials.
type DenialSummary struct {
	TenantID string                      `json:"tenantId"`
	Day      string                      `json:"day"`
	Counts   map[domain.ActionKind]int64 `json:"counts"`
	Recent   []domain.Denial             `json:"recent"`
}

// RecentDenialLimit caps DenialSummary.Recent.
const RecentDenialLimit = 20

// DenialSummary returns counts and the most recent denials for day.
// Counts come from the counter when configured, otherwise from the
// audit log.
func (s *Service) DenialSummary(ctx context.Context, tenantID string, day time.Time) (*DenialSummary, error) {
	if tenantID == "" {
		return nil, domain.ErrTenantRequired
	}
	day = day.UTC().Truncate(24 * time.Hour)
	end := day.Add(24 * time.Hour)
	summary := &DenialSummary{
		TenantID: tenantID,
		Day:      day.Format("2006-01-02"),
		Counts:   map[domain.ActionKind]int64{},
		Recent:   []domain.Denial{},
	}
	if s == nil {
		return summary, nil
	}

	if s.denials != nil {
		recent, err := s.denials.ListByTenant(ctx, tenantID, day, end, RecentDenialLimit)
		if err != nil {
			return nil, fmt.Errorf("list denials: %w", err)
		}
		summary.Recent = append(summary.Recent, recent...)
	}

	if s.counter != nil {
		counts, err := s.counter.Counts(ctx, tenantID, day)
		if err == nil {
			summary.Counts = counts
			return summary, nil
		}
		s.logger.Warn("denial counter unavailable, falling back to audit log", "tenant_id", tenantID, "error", err)
	}
	if s.denials != nil {
		counts, err := s.denials.CountByAction(ctx, tenantID, day, end)
		if err != nil {
			return nil, fmt.Errorf("count denials: %w", err)
		}
		summary.Counts = counts
	}
	return summary, nil
}

// PurgeDenials drops audit entries older than retention.
func (s *Service) PurgeDenials(ctx context.Context, retention time.Duration) (int64, error) {
	if s == nil || s.denials == nil || retention <= 0 {
		return 0, nil
	}
	n, err := s.denials.Purge(ctx, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("purge denials: %w", err)
	}
	if n > 0 {
		s.logger.Info("purged denial audit entries", "count", n, "retention", retention.String())
	}
	return n, nil
}

// Recorder adapts the service to DenialRecorder, swallowing errors.
func (s *Service) Recorder() DenialRecorder {
	return DenialRecorderFunc(func(ctx context.Context, denial domain.Denial) {
		if err := s.RecordDenial(ctx, denial); err != nil && s != nil {
			s.logger.Warn("failed to record denial", "tenant_id", denial.TenantID, "error", err)
		}
	})
}

// Recorders fans a denial out to every non-nil recorder.
type Recorders []DenialRecorder

// RecordDenial implements DenialRecorder.
func (rs Recorders) RecordDenial(ctx context.Context, denial domain.Denial) {
	for _, r := range rs {
		if r != nil {
			r.RecordDenial(ctx, denial)
		}
	}
}
