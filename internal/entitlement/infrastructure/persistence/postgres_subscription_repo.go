package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/database/postgres"
)

// PostgresSubscriptionRepository keeps the subscription read model in PostgreSQL.
type PostgresSubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSubscriptionRepository creates a new repository.
func NewPostgresSubscriptionRepository(pool *pgxpool.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool}
}

// Upsert inserts or replaces the tenant's subscription.
func (r *PostgresSubscriptionRepository) Upsert(ctx context.Context, sub *domain.Subscription) error {
	plan, err := encodePlan(sub.Plan)
	if err != nil {
		return err
	}
	var planJSON []byte
	if plan.Valid {
		planJSON = []byte(plan.String)
	}

	query := `
		INSERT INTO subscriptions (
			tenant_id, subscription_id, plan_id, status, payment_status,
			start_date, current_period_end, plan, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()))
		ON CONFLICT (tenant_id) DO UPDATE SET
			subscription_id = EXCLUDED.subscription_id,
			plan_id = EXCLUDED.plan_id,
			status = EXCLUDED.status,
			payment_status = EXCLUDED.payment_status,
			start_date = EXCLUDED.start_date,
			current_period_end = EXCLUDED.current_period_end,
			plan = EXCLUDED.plan,
			updated_at = EXCLUDED.updated_at
	`
	var updatedAt *time.Time
	if !sub.UpdatedAt.IsZero() {
		updatedAt = &sub.UpdatedAt
	}
	_, err = postgres.QuerierFromContext(ctx, r.pool).Exec(ctx, query,
		sub.TenantID,
		sub.ID,
		sub.PlanID,
		string(sub.Status),
		string(sub.PaymentStatus),
		sub.StartDate,
		sub.CurrentPeriodEnd,
		planJSON,
		updatedAt,
	)
	return err
}

// FindByTenantID returns nil, nil when the tenant has no subscription.
func (r *PostgresSubscriptionRepository) FindByTenantID(ctx context.Context, tenantID string) (*domain.Subscription, error) {
	query := `
		SELECT tenant_id, subscription_id, plan_id, status, payment_status,
		       start_date, current_period_end, plan, updated_at
		FROM subscriptions
		WHERE tenant_id = $1
	`
	var row struct {
		tenantID      string
		id            string
		planID        string
		status        string
		paymentStatus string
		startDate     *time.Time
		periodEnd     *time.Time
		plan          []byte
		updatedAt     time.Time
	}
	err := postgres.QuerierFromContext(ctx, r.pool).QueryRow(ctx, query, tenantID).Scan(
		&row.tenantID,
		&row.id,
		&row.planID,
		&row.status,
		&row.paymentStatus,
		&row.startDate,
		&row.periodEnd,
		&row.plan,
		&row.updatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	plan, err := decodePlan(row.plan)
	if err != nil {
		return nil, err
	}
	return &domain.Subscription{
		ID:               row.id,
		TenantID:         row.tenantID,
		PlanID:           row.planID,
		Status:           domain.SubscriptionStatus(row.status),
		PaymentStatus:    domain.PaymentStatus(row.paymentStatus),
		StartDate:        row.startDate,
		CurrentPeriodEnd: row.periodEnd,
		Plan:             plan,
		UpdatedAt:        row.updatedAt,
	}, nil
}

var _ domain.SubscriptionRepository = (*PostgresSubscriptionRepository)(nil)
