package auth

import (
	"errors"
	"time"

	"github.com/sitebudget/sitebudget/internal/rbac"
)

var (
	// ErrDuplicateUsername is returned when the username is already taken.
	ErrDuplicateUsername = errors.New("auth: username already exists")
	// ErrInvalidAccount wraps validation failures on account creation.
	ErrInvalidAccount = errors.New("auth: invalid account")
)

// Account is a login principal. Its role doubles as its department.
type Account struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         rbac.Role
	CreatedAt    time.Time
}

// MaxPasswordBytes is bcrypt's input limit.
const MaxPasswordBytes = 72

// NewAccount carries the fields required to register an account.
type NewAccount struct {
	Username string `validate:"required,max=100"`
	Password string `validate:"required,min=8,max=72"`
	Role     string `validate:"required"`
}
