// Package database hides the SQL backend behind a small executor interface.
// PostgreSQL (pgx) serves shared deployments; SQLite serves local mode
// and tests.
package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Driver names a database backend.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

func (d Driver) String() string {
	return string(d)
}

// IsValid reports whether d is a supported backend.
func (d Driver) IsValid() bool {
	return d == DriverPostgres || d == DriverSQLite
}

// DetectDriver picks a backend from a connection URL. Only postgres URLs
// select PostgreSQL; everything else, including "", is a SQLite path.
func DetectDriver(url string) Driver {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// Config selects and configures a backend.
type Config struct {
	// Driver overrides detection from URL when set.
	Driver     Driver
	URL        string
	SQLitePath string
	MaxConns   int
}

// Opener creates a connection for one backend.
type Opener func(ctx context.Context, cfg Config) (Connection, error)

var openers = map[Driver]Opener{}

// Register installs the opener for driver. Backend packages call it from init.
func Register(driver Driver, open Opener) {
	openers[driver] = open
}

// Open connects to the backend described by cfg. The backend package must
// be linked in, usually with a blank import.
func Open(ctx context.Context, cfg Config) (Connection, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DetectDriver(cfg.URL)
	}
	if driver == DriverSQLite && cfg.SQLitePath == "" && cfg.URL != "" {
		cfg.SQLitePath = strings.TrimPrefix(cfg.URL, "sqlite://")
	}

	open, ok := openers[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDriverNotRegistered, driver)
	}
	return open(ctx, cfg)
}

// DefaultSQLitePath is ~/.vyora/vyora.db.
func DefaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".vyora", "vyora.db")
}

// EnsureDirectory creates the parent directory of path.
func EnsureDirectory(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
