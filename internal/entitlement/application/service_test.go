package application

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/vyora/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriptionRepo struct {
	mu   sync.Mutex
	subs map[string]domain.Subscription
	err  error
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{subs: map[string]domain.Subscription{}}
}

func (f *fakeSubscriptionRepo) Upsert(ctx context.Context, sub *domain.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.subs[sub.TenantID] = *sub
	return nil
}

func (f *fakeSubscriptionRepo) FindByTenantID(ctx context.Context, tenantID string) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[tenantID]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

type fakeDenialRepo struct {
	saved []domain.Denial
}

func (f *fakeDenialRepo) Save(ctx context.Context, d domain.Denial) error {
	f.saved = append(f.saved, d)
	return nil
}

func (f *fakeDenialRepo) inRange(d domain.Denial, tenantID string, from, to time.Time) bool {
	return d.TenantID == tenantID && !d.OccurredAt.Before(from) && (to.IsZero() || d.OccurredAt.Before(to))
}

func (f *fakeDenialRepo) ListByTenant(ctx context.Context, tenantID string, from, to time.Time, limit int) ([]domain.Denial, error) {
	var out []domain.Denial
	for _, d := range f.saved {
		if f.inRange(d, tenantID, from, to) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDenialRepo) CountByAction(ctx context.Context, tenantID string, from, to time.Time) (map[domain.ActionKind]int64, error) {
	counts := map[domain.ActionKind]int64{}
	for _, d := range f.saved {
		if f.inRange(d, tenantID, from, to) {
			counts[d.Action]++
		}
	}
	return counts, nil
}

func (f *fakeDenialRepo) Purge(ctx context.Context, before time.Time) (int64, error) {
	kept := f.saved[:0]
	var n int64
	for _, d := range f.saved {
		if d.OccurredAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, d)
	}
	f.saved = kept
	return n, nil
}

type fakeCounter struct {
	counts map[domain.ActionKind]int64
	err    error
}

func (f *fakeCounter) Increment(ctx context.Context, tenantID string, action domain.ActionKind, at time.Time) error {
	if f.err != nil {
		return f.err
	}
	if f.counts == nil {
		f.counts = map[domain.ActionKind]int64{}
	}
	f.counts[action]++
	return nil
}

func (f *fakeCounter) Counts(ctx context.Context, tenantID string, day time.Time) (map[domain.ActionKind]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.counts, nil
}

func TestService_ApplySubscriptionUpdateRefreshesStore(t *testing.T) {
	repo := newFakeSubscriptionRepo()
	reg := NewRegistry(RegistryConfig{
		Store:     StoreConfig{Source: NewReadModelSource(repo)},
		WarmStart: true,
	})
	defer reg.CloseAll()
	svc := NewService(ServiceConfig{Subscriptions: repo, Registry: reg})

	_, err := reg.Open(context.Background(), "vendor-1")
	require.NoError(t, err)
	require.False(t, reg.Evaluator("vendor-1").IsEntitled())

	err = svc.ApplySubscriptionUpdate(context.Background(), &domain.Subscription{
		TenantID:      "vendor-1",
		PlanID:        "pro",
		Status:        domain.SubscriptionActive,
		PaymentStatus: domain.PaymentCompleted,
	})
	require.NoError(t, err)

	stored, err := repo.FindByTenantID(context.Background(), "vendor-1")
	require.NoError(t, err)
	assert.False(t, stored.UpdatedAt.IsZero())
	assert.Eventually(t, func() bool { return reg.Evaluator("vendor-1").IsEntitled() }, time.Second, 5*time.Millisecond)
}

func TestService_ApplySubscriptionUpdateErrors(t *testing.T) {
	repo := newFakeSubscriptionRepo()
	svc := NewService(ServiceConfig{Subscriptions: repo})

	assert.ErrorIs(t, svc.ApplySubscriptionUpdate(context.Background(), &domain.Subscription{}), domain.ErrTenantRequired)

	repo.err = errors.New("disk full")
	err := svc.ApplySubscriptionUpdate(context.Background(), &domain.Subscription{TenantID: "vendor-1"})
	assert.ErrorContains(t, err, "disk full")
}

type fakeOutbox struct {
	events []*eventbus.Event
	err    error
}

func (f *fakeOutbox) Enqueue(ctx context.Context, event *eventbus.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type recordingUnitOfWork struct {
	began, committed, rolledBack int
}

func (u *recordingUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	u.began++
	return ctx, nil
}

func (u *recordingUnitOfWork) Commit(ctx context.Context) error {
	u.committed++
	return nil
}

func (u *recordingUnitOfWork) Rollback(ctx context.Context) error {
	u.rolledBack++
	return nil
}

func TestService_IngestSubscriptionUpdateEnqueuesEvent(t *testing.T) {
	repo := newFakeSubscriptionRepo()
	outbox := &fakeOutbox{}
	uow := &recordingUnitOfWork{}
	svc := NewService(ServiceConfig{Subscriptions: repo, UnitOfWork: uow, Outbox: outbox})
	ctx := observability.WithCorrelationID(context.Background(), "req-7")

	err := svc.IngestSubscriptionUpdate(ctx, &domain.Subscription{
		TenantID:      "vendor-1",
		Status:        domain.SubscriptionActive,
		PaymentStatus: domain.PaymentCompleted,
		Plan:          &domain.Plan{ID: "pro"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, uow.began)
	assert.Equal(t, 1, uow.committed)
	require.Len(t, outbox.events, 1)
	event := outbox.events[0]
	assert.Equal(t, domain.RoutingKeySubscriptionUpdated, event.RoutingKey)
	assert.Equal(t, "vendor-1", event.TenantID)
	assert.Equal(t, "req-7", event.Metadata.CorrelationID)

	var payload domain.SubscriptionUpdated
	require.NoError(t, event.Decode(&payload))
	assert.True(t, payload.Subscription.IsEntitled())
	assert.Equal(t, "pro", payload.Plan.ID)

	stored, err := repo.FindByTenantID(ctx, "vendor-1")
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestService_IngestSubscriptionUpdateRollsBack(t *testing.T) {
	repo := newFakeSubscriptionRepo()
	uow := &recordingUnitOfWork{}
	svc := NewService(ServiceConfig{
		Subscriptions: repo,
		UnitOfWork:    uow,
		Outbox:        &fakeOutbox{err: errors.New("outbox full")},
	})

	err := svc.IngestSubscriptionUpdate(context.Background(), &domain.Subscription{TenantID: "vendor-1"})

	assert.ErrorContains(t, err, "outbox full")
	assert.Equal(t, 1, uow.rolledBack)
	assert.Zero(t, uow.committed)
}

func TestService_IngestWithoutOutboxOnlyApplies(t *testing.T) {
	repo := newFakeSubscriptionRepo()
	uow := &recordingUnitOfWork{}
	svc := NewService(ServiceConfig{Subscriptions: repo, UnitOfWork: uow})

	require.NoError(t, svc.IngestSubscriptionUpdate(context.Background(), &domain.Subscription{TenantID: "vendor-1"}))
	assert.Zero(t, uow.began)
	assert.ErrorIs(t, svc.IngestSubscriptionUpdate(context.Background(), nil), domain.ErrTenantRequired)
}

func TestService_RecordDenialAndSummary(t *testing.T) {
	denials := &fakeDenialRepo{}
	counter := &fakeCounter{}
	svc := NewService(ServiceConfig{Denials: denials, Counter: counter})
	ctx := context.Background()

	require.NoError(t, svc.RecordDenial(ctx, domain.NewDenial("vendor-1", domain.ActionPublish, domain.SurfaceButton, "m")))
	require.NoError(t, svc.RecordDenial(ctx, domain.NewDenial("vendor-1", domain.ActionPublish, domain.SurfaceHTTP, "m")))
	require.NoError(t, svc.RecordDenial(ctx, domain.NewDenial("vendor-1", domain.ActionSave, domain.SurfaceWrapper, "m")))
	assert.ErrorIs(t, svc.RecordDenial(ctx, domain.Denial{}), domain.ErrTenantRequired)

	summary, err := svc.DenialSummary(ctx, "vendor-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Counts[domain.ActionPublish])
	assert.Equal(t, int64(1), summary.Counts[domain.ActionSave])
	assert.Len(t, summary.Recent, 3)
}

func TestService_SummaryFallsBackToAuditLog(t *testing.T) {
	denials := &fakeDenialRepo{}
	counter := &fakeCounter{err: errors.New("redis down")}
	svc := NewService(ServiceConfig{Denials: denials, Counter: counter})
	ctx := context.Background()

	require.NoError(t, svc.RecordDenial(ctx, domain.NewDenial("vendor-1", domain.ActionExport, domain.SurfaceImperative, "m")))

	summary, err := svc.DenialSummary(ctx, "vendor-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Counts[domain.ActionExport])
}

func TestService_SummaryCountsEveryDenialOfTheDay(t *testing.T) {
	denials := &fakeDenialRepo{}
	svc := NewService(ServiceConfig{Denials: denials})
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	for i := 0; i < RecentDenialLimit+5; i++ {
		d := domain.NewDenial("vendor-1", domain.ActionExport, domain.SurfaceHTTP, "m")
		d.OccurredAt = day.Add(time.Duration(i) * time.Minute)
		denials.saved = append(denials.saved, d)
	}
	for i := 0; i < RecentDenialLimit; i++ {
		d := domain.NewDenial("vendor-1", domain.ActionSave, domain.SurfaceHTTP, "m")
		d.OccurredAt = day.Add(24*time.Hour + time.Duration(i)*time.Minute)
		denials.saved = append(denials.saved, d)
	}

	summary, err := svc.DenialSummary(ctx, "vendor-1", day.Add(15*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-10", summary.Day)
	assert.Equal(t, map[domain.ActionKind]int64{domain.ActionExport: int64(RecentDenialLimit + 5)}, summary.Counts)
	require.Len(t, summary.Recent, RecentDenialLimit)
	for _, d := range summary.Recent {
		assert.Equal(t, domain.ActionExport, d.Action)
	}
}

func TestService_PurgeDenials(t *testing.T) {
	denials := &fakeDenialRepo{}
	svc := NewService(ServiceConfig{Denials: denials})
	old := domain.NewDenial("vendor-1", domain.ActionSave, domain.SurfaceButton, "m")
	old.OccurredAt = time.Now().Add(-72 * time.Hour)
	denials.saved = append(denials.saved, old, domain.NewDenial("vendor-1", domain.ActionSave, domain.SurfaceButton, "m"))

	n, err := svc.PurgeDenials(context.Background(), 48*time.Hour)

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, denials.saved, 1)
}

func TestService_NilIsSafe(t *testing.T) {
	var svc *Service

	assert.NoError(t, svc.ApplySubscriptionUpdate(context.Background(), nil))
	assert.NoError(t, svc.IngestSubscriptionUpdate(context.Background(), nil))
	assert.NoError(t, svc.RecordDenial(context.Background(), domain.Denial{}))
	summary, err := svc.DenialSummary(context.Background(), "vendor-1", time.Now())
	require.NoError(t, err)
	assert.Empty(t, summary.Counts)
	svc.Recorder().RecordDenial(context.Background(), domain.Denial{})
}

type capturePublisher struct {
	routingKey string
	body       []byte
}

func (p *capturePublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.routingKey = routingKey
	p.body = payload
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func TestAuditor_RecordDenial(t *testing.T) {
	metrics := observability.NewInMemoryMetrics()
	pub := &capturePublisher{}
	auditor := NewAuditor(nil, metrics, pub)

	ctx := observability.WithCorrelationID(context.Background(), "corr-1")
	denial := domain.NewDenial("vendor-1", domain.ActionDownload, domain.SurfaceButton, "Upgrade to Pro to download this feature.")
	auditor.RecordDenial(ctx, denial)

	assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricDenials,
		observability.T("action", "download"), observability.T("surface", "button")))
	assert.Equal(t, domain.RoutingKeyActionDenied, pub.routingKey)

	var event eventbus.Event
	require.NoError(t, json.Unmarshal(pub.body, &event))
	assert.Equal(t, "vendor-1", event.TenantID)
	assert.Equal(t, "corr-1", event.Metadata.CorrelationID)

	var payload domain.ActionDenied
	require.NoError(t, event.Decode(&payload))
	assert.Equal(t, denial.ID, payload.Denial.ID)
}

func TestRecorders_FanOut(t *testing.T) {
	var got []domain.Surface
	rec := func(ctx context.Context, d domain.Denial) { got = append(got, d.Surface) }

	Recorders{DenialRecorderFunc(rec), nil, (*Auditor)(nil), DenialRecorderFunc(rec)}.
		RecordDenial(context.Background(), domain.Denial{Surface: domain.SurfaceHTTP})

	assert.Equal(t, []domain.Surface{domain.SurfaceHTTP, domain.SurfaceHTTP}, got)
}
