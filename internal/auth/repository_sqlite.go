package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sitebudget/sitebudget/internal/platform/db"
	"github.com/sitebudget/sitebudget/internal/rbac"
	"github.com/sitebudget/sitebudget/internal/shared"
)

// SQLiteRepository implements Repository on the embedded SQLite store.
type SQLiteRepository struct {
	conn *sql.DB
}

// NewSQLiteRepository constructs a SQLite repository.
func NewSQLiteRepository(conn *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{conn: conn}
}

// FindByUsername fetches an account by exact username.
func (r *SQLiteRepository) FindByUsername(ctx context.Context, username string) (*Account, error) {
	return r.findOne(ctx, selectAccount+` WHERE username = ?`, username)
}

// FindByID fetches an account by id.
func (r *SQLiteRepository) FindByID(ctx context.Context, id int64) (*Account, error) {
	return r.findOne(ctx, selectAccount+` WHERE id = ?`, id)
}

// CreateAccount inserts an account and returns it with its id.
func (r *SQLiteRepository) CreateAccount(ctx context.Context, account Account) (*Account, error) {
	res, err := r.conn.ExecContext(ctx, `
		INSERT INTO accounts (username, password_hash, role, created_at)
		VALUES (?, ?, ?, ?)`,
		account.Username, account.PasswordHash, string(account.Role), db.FormatTime(account.CreatedAt))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("auth: create account: %w", err)
	}
	if account.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("auth: create account: %w", err)
	}
	return &account, nil
}

func (r *SQLiteRepository) findOne(ctx context.Context, query string, arg any) (*Account, error) {
	var (
		account   Account
		role      string
		createdAt string
	)
	err := r.conn.QueryRowContext(ctx, query, arg).Scan(&account.ID, &account.Username, &account.PasswordHash, &role, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("auth: find account: %w", err)
	}
	if account.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, err
	}
	account.Role = rbac.Role(role)
	return &account, nil
}

var _ Repository = (*SQLiteRepository)(nil)
