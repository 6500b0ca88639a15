package persistence

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/database/postgres"
)

// PostgresDenialRepository stores the denial audit log in PostgreSQL.
type PostgresDenialRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresDenialRepository creates a new repository.
func NewPostgresDenialRepository(pool *pgxpool.Pool) *PostgresDenialRepository {
	return &PostgresDenialRepository{pool: pool}
}

// Save appends a denial. Saving the same ID twice is a no-op.
func (r *PostgresDenialRepository) Save(ctx context.Context, d domain.Denial) error {
	_, err := postgres.QuerierFromContext(ctx, r.pool).Exec(ctx, `
		INSERT INTO action_denials (id, tenant_id, action, surface, message, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		d.ID, d.TenantID, string(d.Action), string(d.Surface), d.Message, d.OccurredAt,
	)
	return err
}

// ListByTenant returns denials in [from, to), newest first.
func (r *PostgresDenialRepository) ListByTenant(ctx context.Context, tenantID string, from, to time.Time, limit int) ([]domain.Denial, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := postgres.QuerierFromContext(ctx, r.pool).Query(ctx, `
		SELECT id, tenant_id, action, surface, message, occurred_at
		FROM action_denials
		WHERE tenant_id = $1 AND occurred_at >= $2 AND occurred_at < $3
		ORDER BY occurred_at DESC
		LIMIT $4`,
		tenantID, from, upperBound(to), limit,
	)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Denial, error) {
		var d domain.Denial
		var action, surface string
		err := row.Scan(&d.ID, &d.TenantID, &action, &surface, &d.Message, &d.OccurredAt)
		d.Action = domain.ActionKind(action)
		d.Surface = domain.Surface(surface)
		return d, err
	})
}

// CountByAction counts denials in [from, to) per action.
func (r *PostgresDenialRepository) CountByAction(ctx context.Context, tenantID string, from, to time.Time) (map[domain.ActionKind]int64, error) {
	rows, err := postgres.QuerierFromContext(ctx, r.pool).Query(ctx, `
		SELECT action, COUNT(*)
		FROM action_denials
		WHERE tenant_id = $1 AND occurred_at >= $2 AND occurred_at < $3
		GROUP BY action`,
		tenantID, from, upperBound(to),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[domain.ActionKind]int64{}
	for rows.Next() {
		var action string
		var n int64
		if err := rows.Scan(&action, &n); err != nil {
			return nil, err
		}
		counts[domain.ActionKind(action)] = n
	}
	return counts, rows.Err()
}

// Purge deletes denials older than before.
func (r *PostgresDenialRepository) Purge(ctx context.Context, before time.Time) (int64, error) {
	tag, err := postgres.QuerierFromContext(ctx, r.pool).Exec(ctx, `DELETE FROM action_denials WHERE occurred_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ domain.DenialRepository = (*PostgresDenialRepository)(nil)
