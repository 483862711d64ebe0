// Package storage holds the Postgres connectivity shared by anything that
// needs to persist state outside the dispatcher core itself — today, that
// is only the delivery audit log in internal/invoker. The dispatcher's own
// in-memory state (the Registry, each listener's queue) is never persisted
// here or anywhere else; that is a deliberate non-goal.
package storage

import (
	"context"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
)

// migratorScheme is the scheme golang-migrate's pgx/v5 database driver
// registers itself under, independent of whichever scheme the operator's
// connection string actually uses (postgres://, postgresql://, ...).
const migratorScheme = "pgx5"

// Connect creates a pgxpool connection pool and verifies connectivity.
func Connect(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MaxConns = maxConns
	poolCfg.MinConns = minConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Migrate runs all pending up-migrations sourced from source (a
// golang-migrate source URL, e.g. "file://migrations") against databaseURL.
// It is idempotent: already-applied migrations are skipped.
func Migrate(databaseURL, source string) error {
	migrationURL, err := rewriteSchemeForMigrator(databaseURL)
	if err != nil {
		return fmt.Errorf("parse database URL: %w", err)
	}

	m, err := migrate.New(source, migrationURL)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// rewriteSchemeForMigrator swaps databaseURL's scheme for migratorScheme,
// leaving credentials, host, path, and query parameters untouched — unlike
// a prefix-trim, this survives any connection-string scheme pgx itself
// accepts (postgres://, postgresql://, or a pgx-specific alias), not just
// the two spelled out by name.
func rewriteSchemeForMigrator(databaseURL string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", err
	}
	u.Scheme = migratorScheme
	return u.String(), nil
}
