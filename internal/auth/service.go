package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/sitebudget/sitebudget/internal/rbac"
	"github.com/sitebudget/sitebudget/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	validate *validator.Validate
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("sitebudget-timing-equaliser"), bcrypt.DefaultCost)
	return hash
})

// Authenticate validates username/password credentials. Every failure is
// reported as shared.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, shared.ErrInvalidCredentials
	}
	account, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		// Spend the same bcrypt work so unknown usernames are not observable.
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !account.Role.Valid() {
		return nil, shared.ErrInvalidCredentials
	}
	return account, nil
}

// Account reloads an account by id for an authenticated session.
func (s *Service) Account(ctx context.Context, id int64) (*Account, error) {
	return s.repo.FindByID(ctx, id)
}

// CreateAccount validates input, hashes the password and stores the account.
func (s *Service) CreateAccount(ctx context.Context, input NewAccount) (*Account, error) {
	input.Username = strings.TrimSpace(input.Username)
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccount, err)
	}
	// bcrypt reads at most 72 bytes; the validator tag counts runes.
	if len(input.Password) > MaxPasswordBytes {
		return nil, fmt.Errorf("%w: password exceeds %d bytes", ErrInvalidAccount, MaxPasswordBytes)
	}
	role, err := rbac.ParseRole(input.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccount, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	return s.repo.CreateAccount(ctx, Account{
		Username:     input.Username,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	})
}
