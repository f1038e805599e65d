package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations
var migrationFS embed.FS

const (
	// DialectPostgres selects the PostgreSQL schema files.
	DialectPostgres = "postgres"
	// DialectSQLite selects the SQLite schema files.
	DialectSQLite = "sqlite"
)

// versionTable holds the applied schema version in both dialects.
const versionTable = "schema_version"

func newSource(dialect string) (source.Driver, error) {
	src, err := iofs.New(migrationFS, path.Join("migrations", dialect))
	if err != nil {
		return nil, fmt.Errorf("platform/db: read migrations: %w", err)
	}
	return src, nil
}

// MigratePostgres applies pending schema versions and returns how many ran.
// Concurrent migrators are serialised by the driver's advisory lock.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	conn := stdlib.OpenDBFromPool(pool)
	driver, err := pgxmigrate.WithInstance(conn, &pgxmigrate.Config{MigrationsTable: versionTable})
	if err != nil {
		_ = conn.Close()
		return 0, fmt.Errorf("platform/db: migration driver: %w", err)
	}
	// Closing the driver releases the *sql.DB wrapper, never the pool.
	defer func() { _ = driver.Close() }()
	return migrateUp(ctx, DialectPostgres, "pgx5", driver)
}

// MigrateSQLite applies pending schema versions and returns how many ran.
// conn stays open; the caller owns it.
func MigrateSQLite(ctx context.Context, conn *sql.DB) (int, error) {
	driver, err := sqlitemigrate.WithInstance(conn, &sqlitemigrate.Config{MigrationsTable: versionTable})
	if err != nil {
		return 0, fmt.Errorf("platform/db: migration driver: %w", err)
	}
	return migrateUp(ctx, DialectSQLite, "sqlite", driver)
}

func migrateUp(ctx context.Context, dialect, driverName string, driver database.Driver) (int, error) {
	src, err := newSource(dialect)
	if err != nil {
		return 0, err
	}
	m, err := migrate.NewWithInstance("iofs", src, driverName, driver)
	if err != nil {
		return 0, fmt.Errorf("platform/db: migrator: %w", err)
	}

	before, err := schemaVersion(m)
	if err != nil {
		return 0, err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("platform/db: migrate %s: %w", dialect, err)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	after, err := schemaVersion(m)
	if err != nil {
		return 0, err
	}
	return countVersions(dialect, before, after)
}

func schemaVersion(m *migrate.Migrate) (uint, error) {
	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("platform/db: schema version: %w", err)
	case dirty:
		return 0, fmt.Errorf("platform/db: schema version %d is dirty", version)
	}
	return version, nil
}

// countVersions reports how many migration files lie in (from, to].
func countVersions(dialect string, from, to uint) (int, error) {
	src, err := newSource(dialect)
	if err != nil {
		return 0, err
	}
	defer func() { _ = src.Close() }()

	count := 0
	version, err := src.First()
	for err == nil {
		if version > from && version <= to {
			count++
		}
		version, err = src.Next(version)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("platform/db: list migrations: %w", err)
	}
	return count, nil
}
