// Package ledger records departmental expense entries against projects and
// keeps each project's running spend in step with its entries.
package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitebudget/sitebudget/internal/projects"
	"github.com/sitebudget/sitebudget/internal/rbac"
)

var (
	// ErrProjectNotFound indicates the target project does not exist.
	ErrProjectNotFound = errors.New("ledger: project not found")
	// ErrInvalidDescription indicates an empty or oversized description.
	ErrInvalidDescription = errors.New("ledger: invalid description")
	// ErrInvalidAmount indicates a missing, non-numeric or non-positive amount.
	ErrInvalidAmount = errors.New("ledger: invalid amount")
)

// MaxDescriptionLength bounds entry descriptions, in characters.
const MaxDescriptionLength = 500

// AmountScale is the number of decimal places an entry amount may carry.
const AmountScale = 2

// MaxAmount is the largest single entry the ledger accepts.
var MaxAmount = decimal.RequireFromString("999999999999.99")

const (
	// maxInputScale tolerates trailing zeros such as "12.5000".
	maxInputScale    = 8
	maxInputExponent = 12
	maxAmountDigits  = 20
)

// Entry is an immutable expense line booked against a project.
type Entry struct {
	ID          int64           `json:"id"`
	ProjectID   int64           `json:"project_id"`
	Department  string          `json:"department"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	AccountID   int64           `json:"account_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// EntryInput is an unvalidated submission. Amount is the raw form text.
type EntryInput struct {
	ProjectID   int64
	Description string
	Amount      string
	Role        rbac.Role
	AccountID   int64
}

// Receipt is returned for a committed entry, with the project as updated.
type Receipt struct {
	Entry   Entry
	Project projects.Project
}
