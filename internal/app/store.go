package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitebudget/sitebudget/internal/auth"
	"github.com/sitebudget/sitebudget/internal/ledger"
	"github.com/sitebudget/sitebudget/internal/platform/db"
	"github.com/sitebudget/sitebudget/internal/projects"
)

// Store is the relational backend selected by DB_DRIVER.
type Store struct {
	Driver string
	Pool   *pgxpool.Pool
	SQL    *sql.DB
}

// OpenStore connects to the configured database.
func OpenStore(ctx context.Context, cfg *Config) (*Store, error) {
	switch cfg.DBDriver {
	case DriverPostgres:
		pool, err := db.NewPostgres(ctx, cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		return &Store{Driver: DriverPostgres, Pool: pool}, nil
	case DriverSQLite:
		conn, err := db.NewSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Store{Driver: DriverSQLite, SQL: conn}, nil
	default:
		return nil, fmt.Errorf("app: unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

// Migrate applies pending schema migrations.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	if s.Pool != nil {
		return db.MigratePostgres(ctx, s.Pool)
	}
	return db.MigrateSQLite(ctx, s.SQL)
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if s.Pool != nil {
		return s.Pool.Ping(ctx)
	}
	return s.SQL.PingContext(ctx)
}

// Accounts returns the account repository for the backend.
func (s *Store) Accounts() auth.Repository {
	if s.Pool != nil {
		return auth.NewRepository(s.Pool)
	}
	return auth.NewSQLiteRepository(s.SQL)
}

// Projects returns the project repository for the backend.
func (s *Store) Projects() projects.Repository {
	if s.Pool != nil {
		return projects.NewRepository(s.Pool)
	}
	return projects.NewSQLiteRepository(s.SQL)
}

// Ledger returns the ledger repository for the backend.
func (s *Store) Ledger() ledger.Repository {
	if s.Pool != nil {
		return ledger.NewRepository(s.Pool)
	}
	return ledger.NewSQLiteRepository(s.SQL)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s.Pool != nil {
		s.Pool.Close()
		return nil
	}
	if s.SQL != nil {
		return s.SQL.Close()
	}
	return nil
}
