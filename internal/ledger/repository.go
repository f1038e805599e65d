package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/sitebudget/sitebudget/internal/platform/db"
	"github.com/sitebudget/sitebudget/internal/projects"
)

// Repository defines persistence operations for ledger entries.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListEntries(ctx context.Context, projectID int64, limit int) ([]Entry, error)
}

// TxRepository exposes the statements that run inside one write transaction.
type TxRepository interface {
	// GetProjectForUpdate reads the project and holds it against concurrent
	// writers until the transaction ends.
	GetProjectForUpdate(ctx context.Context, id int64) (projects.Project, error)
	InsertEntry(ctx context.Context, entry Entry) (Entry, error)
	UpdateProjectSpend(ctx context.Context, id int64, spent decimal.Decimal, status projects.Status, at time.Time) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

type pgTxRepository struct {
	tx pgx.Tx
}

// WithTx runs fn inside a single database transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx})
	})
}

// ListEntries returns the newest entries of a project first.
func (r *PGRepository) ListEntries(ctx context.Context, projectID int64, limit int) ([]Entry, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`, projectID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("ledger: project exists: %w", err)
	}
	if !exists {
		return nil, ErrProjectNotFound
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, project_id, department, description, amount, account_id, created_at
		FROM ledger_entries
		WHERE project_id = $1
		ORDER BY id DESC
		LIMIT $2`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: list entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			accountID *int64
		)
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Department, &e.Description, &e.Amount, &accountID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ledger: scan entry: %w", err)
		}
		if accountID != nil {
			e.AccountID = *accountID
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *pgTxRepository) GetProjectForUpdate(ctx context.Context, id int64) (projects.Project, error) {
	p, err := projects.ScanRow(r.tx.QueryRow(ctx, `
		SELECT id, name, status, budget, spent, created_at, updated_at
		FROM projects
		WHERE id = $1
		FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return projects.Project{}, ErrProjectNotFound
	}
	if err != nil {
		return projects.Project{}, fmt.Errorf("ledger: lock project: %w", err)
	}
	return p, nil
}

func (r *pgTxRepository) InsertEntry(ctx context.Context, entry Entry) (Entry, error) {
	err := r.tx.QueryRow(ctx, `
		INSERT INTO ledger_entries (project_id, department, description, amount, account_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		entry.ProjectID, entry.Department, entry.Description, entry.Amount, nullableID(entry.AccountID), entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return Entry{}, fmt.Errorf("ledger: insert entry: %w", err)
	}
	return entry, nil
}

func (r *pgTxRepository) UpdateProjectSpend(ctx context.Context, id int64, spent decimal.Decimal, status projects.Status, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE projects SET spent = $2, status = $3, updated_at = $4
		WHERE id = $1`, id, spent, string(status), at)
	if err != nil {
		return fmt.Errorf("ledger: update project spend: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrProjectNotFound
	}
	return nil
}

func nullableID(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}

var _ Repository = (*PGRepository)(nil)
