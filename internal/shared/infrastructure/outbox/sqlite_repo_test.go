package outbox_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/vyora/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/outbox"
)

func setupSQLite(t *testing.T) (database.Connection, outbox.Repository) {
	t.Helper()
	ctx := context.Background()
	conn, err := database.Open(ctx, database.Config{SQLitePath: filepath.Join(t.TempDir(), "vyora.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, migrations.Run(ctx, conn))

	repo, err := outbox.New(conn)
	require.NoError(t, err)
	return conn, repo
}

func TestSQLiteRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	_, repo := setupSQLite(t)

	first := enqueue(t, repo, "billing.subscription.updated", "vendor-1")
	enqueue(t, repo, "billing.subscription.updated", "vendor-2")

	pending, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.EventID, pending[0].EventID)
	assert.Equal(t, "vendor-1", pending[0].TenantID)

	decoded, err := pending[0].Event()
	require.NoError(t, err)
	assert.Equal(t, first.RoutingKey, decoded.RoutingKey)
	assert.JSONEq(t, string(first.Payload), string(decoded.Payload))

	require.NoError(t, repo.MarkPublished(ctx, pending[0].ID))
	require.NoError(t, repo.MarkFailed(ctx, pending[1].ID, "broker unavailable", time.Now().Add(time.Hour)))

	pending, err = repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "failed message waits for its retry time")

	n, err := repo.DeleteOld(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLiteRepository_RetryAndDeadLetter(t *testing.T) {
	ctx := context.Background()
	_, repo := setupSQLite(t)
	enqueue(t, repo, "billing.subscription.updated", "vendor-1")

	pending, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	id := pending[0].ID

	require.NoError(t, repo.MarkFailed(ctx, id, "broker unavailable", time.Now().Add(-time.Second)))
	pending, err = repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)
	require.NotNil(t, pending[0].LastError)
	assert.Equal(t, "broker unavailable", *pending[0].LastError)

	require.NoError(t, repo.MarkDead(ctx, id, "broker unavailable"))
	pending, err = repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSQLiteRepository_SaveJoinsUnitOfWork(t *testing.T) {
	ctx := context.Background()
	conn, repo := setupSQLite(t)
	uow := database.NewUnitOfWork(conn)

	txCtx, err := uow.Begin(ctx)
	require.NoError(t, err)
	event, err := eventbus.NewEvent("billing.subscription.updated", "vendor-1", nil)
	require.NoError(t, err)
	require.NoError(t, outbox.NewWriter(repo).Enqueue(txCtx, event))
	require.NoError(t, uow.Rollback(txCtx))

	pending, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSQLiteRepository_ProcessorPublishes(t *testing.T) {
	ctx := context.Background()
	_, repo := setupSQLite(t)
	publisher := newMockPublisher()
	processor := outbox.NewProcessor(repo, publisher, outbox.DefaultProcessorConfig(), nil, nil)

	enqueue(t, repo, "billing.subscription.updated", "vendor-1")
	require.NoError(t, processor.ProcessOnce(ctx))
	assert.Equal(t, 1, publisher.count())

	pending, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
