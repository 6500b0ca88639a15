package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/database"
)

// SQLiteSubscriptionRepository keeps the subscription read model in SQLite.
type SQLiteSubscriptionRepository struct {
	conn database.Connection
}

// NewSQLiteSubscriptionRepository creates a new repository.
func NewSQLiteSubscriptionRepository(conn database.Connection) *SQLiteSubscriptionRepository {
	return &SQLiteSubscriptionRepository{conn: conn}
}

// Upsert inserts or replaces the tenant's subscription.
func (r *SQLiteSubscriptionRepository) Upsert(ctx context.Context, sub *domain.Subscription) error {
	plan, err := encodePlan(sub.Plan)
	if err != nil {
		return err
	}
	updatedAt := sub.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		INSERT INTO subscriptions (
			tenant_id, subscription_id, plan_id, status, payment_status,
			start_date, current_period_end, plan, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET
			subscription_id = excluded.subscription_id,
			plan_id = excluded.plan_id,
			status = excluded.status,
			payment_status = excluded.payment_status,
			start_date = excluded.start_date,
			current_period_end = excluded.current_period_end,
			plan = excluded.plan,
			updated_at = excluded.updated_at`,
		sub.TenantID,
		sub.ID,
		sub.PlanID,
		string(sub.Status),
		string(sub.PaymentStatus),
		formatTime(sub.StartDate),
		formatTime(sub.CurrentPeriodEnd),
		plan,
		updatedAt.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert subscription %s: %w", sub.TenantID, err)
	}
	return nil
}

// FindByTenantID returns nil, nil when the tenant has no subscription.
func (r *SQLiteSubscriptionRepository) FindByTenantID(ctx context.Context, tenantID string) (*domain.Subscription, error) {
	var (
		sub                          domain.Subscription
		status, payment              string
		startDate, periodEnd, planJS sql.NullString
		updatedAt                    string
	)
	err := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx, `
		SELECT tenant_id, subscription_id, plan_id, status, payment_status,
		       start_date, current_period_end, plan, updated_at
		FROM subscriptions
		WHERE tenant_id = ?`, tenantID,
	).Scan(&sub.TenantID, &sub.ID, &sub.PlanID, &status, &payment, &startDate, &periodEnd, &planJS, &updatedAt)
	if database.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sub.Status = domain.SubscriptionStatus(status)
	sub.PaymentStatus = domain.PaymentStatus(payment)
	if sub.StartDate, err = parseTime(startDate); err != nil {
		return nil, fmt.Errorf("subscription %s start_date: %w", tenantID, err)
	}
	if sub.CurrentPeriodEnd, err = parseTime(periodEnd); err != nil {
		return nil, fmt.Errorf("subscription %s current_period_end: %w", tenantID, err)
	}
	if sub.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("subscription %s updated_at: %w", tenantID, err)
	}
	if planJS.Valid {
		sub.Plan, err = decodePlan([]byte(planJS.String))
		if err != nil {
			return nil, err
		}
	}
	return &sub, nil
}

// sqliteTimeLayout is fixed width so text comparison orders correctly.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(sqliteTimeLayout), Valid: true}
}

func parseTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// endOfTime stands in for an open upper bound.
var endOfTime = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

func upperBound(to time.Time) time.Time {
	if to.IsZero() {
		return endOfTime
	}
	return to.UTC()
}

func encodePlan(p *domain.Plan) (sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode plan: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodePlan(b []byte) (*domain.Plan, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var p domain.Plan
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return &p, nil
}

var _ domain.SubscriptionRepository = (*SQLiteSubscriptionRepository)(nil)
