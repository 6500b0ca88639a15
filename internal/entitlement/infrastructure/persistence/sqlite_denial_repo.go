package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// SQLiteDenialRepository stores the denial audit log in SQLite.
type SQLiteDenialRepository struct {
	conn database.Connection
}

// NewSQLiteDenialRepository creates a new repository.
func NewSQLiteDenialRepository(conn database.Connection) *SQLiteDenialRepository {
	return &SQLiteDenialRepository{conn: conn}
}

// Save appends a denial. Saving the same ID twice is a no-op.
func (r *SQLiteDenialRepository) Save(ctx context.Context, d domain.Denial) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		INSERT INTO action_denials (id, tenant_id, action, surface, message, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		d.ID.String(), d.TenantID, string(d.Action), string(d.Surface), d.Message,
		d.OccurredAt.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("save denial: %w", err)
	}
	return nil
}

// ListByTenant returns denials in [from, to), newest first.
func (r *SQLiteDenialRepository) ListByTenant(ctx context.Context, tenantID string, from, to time.Time, limit int) ([]domain.Denial, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, `
		SELECT id, tenant_id, action, surface, message, occurred_at
		FROM action_denials
		WHERE tenant_id = ? AND occurred_at >= ? AND occurred_at < ?
		ORDER BY occurred_at DESC
		LIMIT ?`,
		tenantID, from.UTC().Format(sqliteTimeLayout), upperBound(to).Format(sqliteTimeLayout), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Denial
	for rows.Next() {
		var d domain.Denial
		var id, action, surface, ts string
		if err := rows.Scan(&id, &d.TenantID, &action, &surface, &d.Message, &ts); err != nil {
			return nil, err
		}
		if d.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("denial %q: %w", id, err)
		}
		if d.OccurredAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("denial %s occurred_at: %w", id, err)
		}
		d.Action = domain.ActionKind(action)
		d.Surface = domain.Surface(surface)
		out = append(out, d)
	}
	return out, rows.Err()
}

// CountByAction counts denials in [from, to) per action.
func (r *SQLiteDenialRepository) CountByAction(ctx context.Context, tenantID string, from, to time.Time) (map[domain.ActionKind]int64, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, `
		SELECT action, COUNT(*)
		FROM action_denials
		WHERE tenant_id = ? AND occurred_at >= ? AND occurred_at < ?
		GROUP BY action`,
		tenantID, from.UTC().Format(sqliteTimeLayout), upperBound(to).Format(sqliteTimeLayout),
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
func (r *SQLiteDenialRepository) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`DELETE FROM action_denials WHERE occurred_at < ?`,
		before.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ domain.DenialRepository = (*SQLiteDenialRepository)(nil)
