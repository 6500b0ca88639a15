package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/database"
)

// sqliteTimeLayout is fixed width so text comparison orders correctly.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	conn database.Connection
}

// NewSQLiteRepository creates a new SQLite outbox repository.
func NewSQLiteRepository(conn database.Connection) *SQLiteRepository {
	return &SQLiteRepository{conn: conn}
}

// Save stores a new outbox message.
func (r *SQLiteRepository) Save(ctx context.Context, msg *Message) error {
	return database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx, `
		INSERT INTO outbox (event_id, routing_key, tenant_id, correlation_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`,
		msg.EventID.String(),
		msg.RoutingKey,
		msg.TenantID,
		msg.CorrelationID,
		string(msg.Payload),
		msg.CreatedAt.UTC().Format(sqliteTimeLayout),
	).Scan(&msg.ID)
}

// GetUnpublished retrieves pending messages ordered by creation time.
func (r *SQLiteRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, `
		SELECT id, event_id, routing_key, tenant_id, correlation_id, payload,
		       created_at, next_retry_at, retry_count, last_error
		FROM outbox
		WHERE published_at IS NULL
		  AND dead_lettered_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at, id
		LIMIT ?`,
		time.Now().UTC().Format(sqliteTimeLayout), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		var msg Message
		var eventID, payload, createdAt string
		var nextRetry, lastError sql.NullString
		if err := rows.Scan(&msg.ID, &eventID, &msg.RoutingKey, &msg.TenantID, &msg.CorrelationID,
			&payload, &createdAt, &nextRetry, &msg.RetryCount, &lastError); err != nil {
			return nil, err
		}
		if msg.EventID, err = uuid.Parse(eventID); err != nil {
			return nil, fmt.Errorf("outbox message %d: %w", msg.ID, err)
		}
		msg.Payload = []byte(payload)
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			msg.CreatedAt = t
		}
		if nextRetry.Valid {
			if t, err := time.Parse(time.RFC3339Nano, nextRetry.String); err == nil {
				msg.NextRetryAt = &t
			}
		}
		if lastError.Valid {
			msg.LastError = &lastError.String
		}
		out = append(out, &msg)
	}
	return out, rows.Err()
}

// MarkPublished marks a message as successfully published.
func (r *SQLiteRepository) MarkPublished(ctx context.Context, id int64) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`UPDATE outbox SET published_at = ? WHERE id = ?`,
		time.Now().UTC().Format(sqliteTimeLayout), id,
	)
	return err
}

// MarkFailed records a publish failure and schedules the next attempt.
func (r *SQLiteRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		UPDATE outbox
		SET retry_count = retry_count + 1, last_error = ?, next_retry_at = ?
		WHERE id = ?`,
		errMsg, nextRetryAt.UTC().Format(sqliteTimeLayout), id,
	)
	return err
}

// MarkDead marks a message as dead-lettered.
func (r *SQLiteRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		UPDATE outbox
		SET retry_count = retry_count + 1, last_error = ?, dead_lettered_at = ?, dead_letter_reason = ?
		WHERE id = ?`,
		reason, time.Now().UTC().Format(sqliteTimeLayout), reason, id,
	)
	return err
}

// DeleteOld removes messages published before before.
func (r *SQLiteRepository) DeleteOld(ctx context.Context, before time.Time) (int64, error) {
	res, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < ?`,
		before.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ Repository = (*SQLiteRepository)(nil)
