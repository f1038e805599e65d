package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitebudget/sitebudget/internal/platform/db"
	"github.com/sitebudget/sitebudget/internal/projects"
)

// SQLiteRepository implements Repository on the embedded SQLite store. The
// store runs on a single connection, so each transaction executes alone.
type SQLiteRepository struct {
	conn *sql.DB
}

// NewSQLiteRepository constructs a SQLite repository.
func NewSQLiteRepository(conn *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{conn: conn}
}

type sqliteTxRepository struct {
	tx *sql.Tx
}

// WithTx runs fn inside a single database transaction.
func (r *SQLiteRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithSQLTx(ctx, r.conn, func(tx *sql.Tx) error {
		return fn(ctx, &sqliteTxRepository{tx: tx})
	})
}

// ListEntries returns the newest entries of a project first.
func (r *SQLiteRepository) ListEntries(ctx context.Context, projectID int64, limit int) ([]Entry, error) {
	var exists bool
	if err := r.conn.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM projects WHERE id = ?)`, projectID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("ledger: project exists: %w", err)
	}
	if !exists {
		return nil, ErrProjectNotFound
	}

	rows, err := r.conn.QueryContext(ctx, `
		SELECT id, project_id, department, description, amount, account_id, created_at
		FROM ledger_entries
		WHERE project_id = ?
		ORDER BY id DESC
		LIMIT ?`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: list entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                 Entry
			amount, createdAt string
			accountID         sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Department, &e.Description, &amount, &accountID, &createdAt); err != nil {
			return nil, fmt.Errorf("ledger: scan entry: %w", err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("ledger: entry amount: %w", err)
		}
		if e.CreatedAt, err = db.ParseTime(createdAt); err != nil {
			return nil, err
		}
		e.AccountID = accountID.Int64
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *sqliteTxRepository) GetProjectForUpdate(ctx context.Context, id int64) (projects.Project, error) {
	p, err := projects.ScanSQLiteRow(r.tx.QueryRowContext(ctx, `
		SELECT id, name, status, budget, spent, created_at, updated_at
		FROM projects
		WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return projects.Project{}, ErrProjectNotFound
	}
	if err != nil {
		return projects.Project{}, fmt.Errorf("ledger: lock project: %w", err)
	}
	return p, nil
}

func (r *sqliteTxRepository) InsertEntry(ctx context.Context, entry Entry) (Entry, error) {
	var accountID sql.NullInt64
	if entry.AccountID > 0 {
		accountID = sql.NullInt64{Int64: entry.AccountID, Valid: true}
	}
	res, err := r.tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (project_id, department, description, amount, account_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ProjectID, entry.Department, entry.Description, entry.Amount.String(), accountID, db.FormatTime(entry.CreatedAt))
	if err != nil {
		return Entry{}, fmt.Errorf("ledger: insert entry: %w", err)
	}
	if entry.ID, err = res.LastInsertId(); err != nil {
		return Entry{}, fmt.Errorf("ledger: insert entry: %w", err)
	}
	return entry, nil
}

func (r *sqliteTxRepository) UpdateProjectSpend(ctx context.Context, id int64, spent decimal.Decimal, status projects.Status, at time.Time) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE projects SET spent = ?, status = ?, updated_at = ?
		WHERE id = ?`, spent.String(), string(status), db.FormatTime(at), id)
	if err != nil {
		return fmt.Errorf("ledger: update project spend: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ledger: update project spend: %w", err)
	}
	if n != 1 {
		return ErrProjectNotFound
	}
	return nil
}

var _ Repository = (*SQLiteRepository)(nil)
