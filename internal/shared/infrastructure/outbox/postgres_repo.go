package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/database/postgres"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL outbox repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Save stores a new outbox message.
func (r *PostgresRepository) Save(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO outbox (event_id, routing_key, tenant_id, correlation_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	return postgres.QuerierFromContext(ctx, r.pool).QueryRow(ctx, query,
		msg.EventID,
		msg.RoutingKey,
		msg.TenantID,
		msg.CorrelationID,
		[]byte(msg.Payload),
		msg.CreatedAt,
	).Scan(&msg.ID)
}

// GetUnpublished retrieves pending messages ordered by creation time.
func (r *PostgresRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	query := `
		SELECT id, event_id, routing_key, tenant_id, correlation_id, payload,
		       created_at, next_retry_at, retry_count, last_error
		FROM outbox
		WHERE published_at IS NULL
		  AND dead_lettered_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY created_at, id
		LIMIT $1
	`
	rows, err := postgres.QuerierFromContext(ctx, r.pool).Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Message, error) {
		var msg Message
		var payload []byte
		err := row.Scan(
			&msg.ID,
			&msg.EventID,
			&msg.RoutingKey,
			&msg.TenantID,
			&msg.CorrelationID,
			&payload,
			&msg.CreatedAt,
			&msg.NextRetryAt,
			&msg.RetryCount,
			&msg.LastError,
		)
		msg.Payload = payload
		return &msg, err
	})
}

// MarkPublished marks a message as successfully published.
func (r *PostgresRepository) MarkPublished(ctx context.Context, id int64) error {
	_, err := postgres.QuerierFromContext(ctx, r.pool).Exec(ctx,
		`UPDATE outbox SET published_at = NOW() WHERE id = $1`, id)
	return err
}

// MarkFailed records a publish failure and schedules the next attempt.
func (r *PostgresRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	_, err := postgres.QuerierFromContext(ctx, r.pool).Exec(ctx, `
		UPDATE outbox
		SET retry_count = retry_count + 1, last_error = $2, next_retry_at = $3
		WHERE id = $1`,
		id, errMsg, nextRetryAt,
	)
	return err
}

// MarkDead marks a message as dead-lettered.
func (r *PostgresRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	_, err := postgres.QuerierFromContext(ctx, r.pool).Exec(ctx, `
		UPDATE outbox
		SET retry_count = retry_count + 1, last_error = $2,
		    dead_lettered_at = NOW(), dead_letter_reason = $2
		WHERE id = $1`,
		id, reason,
	)
	return err
}

// DeleteOld removes messages published before before.
func (r *PostgresRepository) DeleteOld(ctx context.Context, before time.Time) (int64, error) {
	tag, err := postgres.QuerierFromContext(ctx, r.pool).Exec(ctx,
		`DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PostgresRepository)(nil)
