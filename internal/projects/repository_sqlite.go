package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitebudget/sitebudget/internal/platform/db"
)

// SQLiteRepository implements Repository on the embedded SQLite store.
type SQLiteRepository struct {
	conn *sql.DB
}

// NewSQLiteRepository constructs a SQLite repository.
func NewSQLiteRepository(conn *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{conn: conn}
}

// List returns all projects ordered by id.
func (r *SQLiteRepository) List(ctx context.Context) ([]Project, error) {
	rows, err := r.conn.QueryContext(ctx, selectProject+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("projects: list: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		p, err := ScanSQLiteRow(rows)
		if err != nil {
			return nil, fmt.Errorf("projects: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get fetches a single project.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (Project, error) {
	p, err := ScanSQLiteRow(r.conn.QueryRowContext(ctx, selectProject+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, ErrNotFound
	}
	if err != nil {
		return Project{}, fmt.Errorf("projects: get: %w", err)
	}
	return p, nil
}

// Create inserts a project with zero spend.
func (r *SQLiteRepository) Create(ctx context.Context, input NewProject) (Project, error) {
	now := time.Now().UTC()
	res, err := r.conn.ExecContext(ctx, `
		INSERT INTO projects (name, status, budget, spent, created_at, updated_at)
		VALUES (?, ?, ?, '0', ?, ?)`,
		input.Name, string(input.Status), input.Budget.String(), db.FormatTime(now), db.FormatTime(now))
	if err != nil {
		return Project{}, fmt.Errorf("projects: create: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Project{}, fmt.Errorf("projects: create: %w", err)
	}
	return Project{ID: id, Name: input.Name, Status: input.Status, Budget: input.Budget, CreatedAt: now, UpdatedAt: now}, nil
}

// Count returns the number of registered projects.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&n); err != nil {
		return 0, fmt.Errorf("projects: count: %w", err)
	}
	return n, nil
}

// Delete removes a project that has no ledger entries.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.conn.ExecContext(ctx, `
		DELETE FROM projects
		WHERE id = ? AND NOT EXISTS (SELECT 1 FROM ledger_entries WHERE project_id = ?)`, id, id)
	if err != nil {
		return fmt.Errorf("projects: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("projects: delete: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type sqlScanner interface {
	Scan(dest ...any) error
}

// ScanSQLiteRow decodes a project row whose money and time columns are text.
func ScanSQLiteRow(row sqlScanner) (Project, error) {
	var (
		p                Project
		status           string
		budget, spent    string
		created, updated string
	)
	if err := row.Scan(&p.ID, &p.Name, &status, &budget, &spent, &created, &updated); err != nil {
		return Project{}, err
	}
	var err error
	p.Status = Status(status)
	if p.Budget, err = decimal.NewFromString(budget); err != nil {
		return Project{}, fmt.Errorf("projects: budget: %w", err)
	}
	if p.Spent, err = decimal.NewFromString(spent); err != nil {
		return Project{}, fmt.Errorf("projects: spent: %w", err)
	}
	if p.CreatedAt, err = db.ParseTime(created); err != nil {
		return Project{}, err
	}
	if p.UpdatedAt, err = db.ParseTime(updated); err != nil {
		return Project{}, err
	}
	return p, nil
}

var _ Repository = (*SQLiteRepository)(nil)
