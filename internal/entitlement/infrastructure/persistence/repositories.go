// Package persistence stores the subscription read model and the denial
// audit log in SQLite or PostgreSQL.
package persistence

import (
	"fmt"

	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/vyora/internal/shared/infrastructure/database/postgres"
)

// Repositories bundles the repositories for one connection.
type Repositories struct {
	Subscriptions domain.SubscriptionRepository
	Denials       domain.DenialRepository
}

// New picks the repository implementations matching conn's driver.
func New(conn database.Connection) (*Repositories, error) {
	switch conn.Driver() {
	case database.DriverPostgres:
		pg, ok := conn.(*postgres.Connection)
		if !ok {
			return nil, fmt.Errorf("persistence: unexpected postgres connection %T", conn)
		}
		return &Repositories{
			Subscriptions: NewPostgresSubscriptionRepository(pg.Pool()),
			Denials:       NewPostgresDenialRepository(pg.Pool()),
		}, nil
	case database.DriverSQLite:
		return &Repositories{
			Subscriptions: NewSQLiteSubscriptionRepository(conn),
			Denials:       NewSQLiteDenialRepository(conn),
		}, nil
	default:
		return nil, fmt.Errorf("persistence: unsupported driver %q", conn.Driver())
	}
}
