package projects

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for the project registry.
type Repository interface {
	List(ctx context.Context) ([]Project, error)
	Get(ctx context.Context, id int64) (Project, error)
	Create(ctx context.Context, input NewProject) (Project, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, id int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const selectProject = `SELECT id, name, status, budget, spent, created_at, updated_at FROM projects`

// List returns all projects ordered by id.
func (r *PGRepository) List(ctx context.Context) ([]Project, error) {
	rows, err := r.pool.Query(ctx, selectProject+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("projects: list: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("projects: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get fetches a single project.
func (r *PGRepository) Get(ctx context.Context, id int64) (Project, error) {
	p, err := scanProject(r.pool.QueryRow(ctx, selectProject+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Project{}, ErrNotFound
	}
	if err != nil {
		return Project{}, fmt.Errorf("projects: get: %w", err)
	}
	return p, nil
}

// Create inserts a project with zero spend.
func (r *PGRepository) Create(ctx context.Context, input NewProject) (Project, error) {
	now := time.Now().UTC()
	p := Project{Name: input.Name, Status: input.Status, Budget: input.Budget, CreatedAt: now, UpdatedAt: now}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO projects (name, status, budget, spent, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $4)
		RETURNING id`, p.Name, string(p.Status), p.Budget, now).Scan(&p.ID)
	if err != nil {
		return Project{}, fmt.Errorf("projects: create: %w", err)
	}
	return p, nil
}

// Count returns the number of registered projects.
func (r *PGRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM projects`).Scan(&n); err != nil {
		return 0, fmt.Errorf("projects: count: %w", err)
	}
	return n, nil
}

// Delete removes a project that has no ledger entries.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM projects
		WHERE id = $1 AND NOT EXISTS (SELECT 1 FROM ledger_entries WHERE project_id = $1)`, id)
	if err != nil {
		return fmt.Errorf("projects: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ScanRow reads a project from a row produced by selectProject's column list.
func ScanRow(row pgx.Row) (Project, error) {
	return scanProject(row)
}

func scanProject(row pgx.Row) (Project, error) {
	var p Project
	var status string
	if err := row.Scan(&p.ID, &p.Name, &status, &p.Budget, &p.Spent, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Project{}, err
	}
	p.Status = Status(status)
	return p, nil
}

var _ Repository = (*PGRepository)(nil)
