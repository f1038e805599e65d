package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitebudget/sitebudget/internal/rbac"
	"github.com/sitebudget/sitebudget/internal/shared"
)

// Repository defines persistence operations for accounts.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*Account, error)
	FindByID(ctx context.Context, id int64) (*Account, error)
	CreateAccount(ctx context.Context, account Account) (*Account, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const selectAccount = `SELECT id, username, password_hash, role, created_at FROM accounts`

// FindByUsername fetches an account by exact username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*Account, error) {
	return r.findOne(ctx, selectAccount+` WHERE username = $1`, username)
}

// FindByID fetches an account by id.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*Account, error) {
	return r.findOne(ctx, selectAccount+` WHERE id = $1`, id)
}

// CreateAccount inserts an account and returns it with its id.
func (r *PGRepository) CreateAccount(ctx context.Context, account Account) (*Account, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (username, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		account.Username, account.PasswordHash, string(account.Role), account.CreatedAt,
	).Scan(&account.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("auth: create account: %w", err)
	}
	return &account, nil
}

func (r *PGRepository) findOne(ctx context.Context, query string, arg any) (*Account, error) {
	var (
		account Account
		role    string
	)
	err := r.pool.QueryRow(ctx, query, arg).Scan(&account.ID, &account.Username, &account.PasswordHash, &role, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("auth: find account: %w", err)
	}
	account.Role = rbac.Role(role)
	return &account, nil
}

var _ Repository = (*PGRepository)(nil)
