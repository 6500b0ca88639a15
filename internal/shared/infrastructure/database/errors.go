package database

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
)

var (
	// ErrNoTransaction is returned by UnitOfWork when ctx carries no
	// transaction.
	ErrNoTransaction = errors.New("no transaction in context")
	// ErrDriverNotRegistered is returned by Open for a driver whose
	// package was not linked in.
	ErrDriverNotRegistered = errors.New("database driver is not registered")
)

// IsNoRows reports whether err is the empty result of either driver.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}
