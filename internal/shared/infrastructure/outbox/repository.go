package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/database/postgres"
	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/eventbus"
)

// Repository defines the interface for outbox persistence. Save joins the
// transaction in ctx so the message commits with the write it describes.
type Repository interface {
	Save(ctx context.Context, msg *Message) error

	// GetUnpublished returns messages that are neither published nor
	// dead-lettered and whose retry time has passed, oldest first.
	GetUnpublished(ctx context.Context, limit int) ([]*Message, error)

	MarkPublished(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, err string, nextRetryAt time.Time) error
	MarkDead(ctx context.Context, id int64, reason string) error

	// DeleteOld removes messages published before before.
	DeleteOld(ctx context.Context, before time.Time) (int64, error)
}

// New picks the repository implementation matching conn's driver.
func New(conn database.Connection) (Repository, error) {
	switch conn.Driver() {
	case database.DriverPostgres:
		pg, ok := conn.(*postgres.Connection)
		if !ok {
			return nil, fmt.Errorf("outbox: unexpected postgres connection %T", conn)
		}
		return NewPostgresRepository(pg.Pool()), nil
	case database.DriverSQLite:
		return NewSQLiteRepository(conn), nil
	default:
		return nil, fmt.Errorf("outbox: unsupported driver %q", conn.Driver())
	}
}

// Writer enqueues bus events into a Repository.
type Writer struct {
	repo Repository
}

// NewWriter creates a writer over repo.
func NewWriter(repo Repository) *Writer {
	return &Writer{repo: repo}
}

// Enqueue stores event for later publishing.
func (w *Writer) Enqueue(ctx context.Context, event *eventbus.Event) error {
	msg, err := NewMessage(event)
	if err != nil {
		return err
	}
	if err := w.repo.Save(ctx, msg); err != nil {
		return fmt.Errorf("save outbox message: %w", err)
	}
	return nil
}
