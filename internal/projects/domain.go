package projects

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle label of a project.
type Status string

const (
	StatusPlanned    Status = "Planned"
	StatusInProgress Status = "In Progress"
	StatusOverBudget Status = "Over Budget"
	StatusCompleted  Status = "Completed"
)

var (
	// ErrNotFound indicates the project id does not resolve.
	ErrNotFound = errors.New("projects: not found")
	// ErrInvalidProject wraps validation failures on creation.
	ErrInvalidProject = errors.New("projects: invalid project")
	// ErrUnknownStatus is returned for labels outside the known set.
	ErrUnknownStatus = errors.New("projects: unknown status")
)

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusPlanned, StatusInProgress, StatusOverBudget, StatusCompleted}
}

// ParseStatus matches a status label case-insensitively.
func ParseStatus(raw string) (Status, error) {
	trimmed := strings.TrimSpace(raw)
	for _, s := range Statuses() {
		if strings.EqualFold(string(s), trimmed) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
}

// DeriveStatus applies the budget rule: once spend exceeds budget the project
// is Over Budget, and it stays there. Other transitions are set externally.
func DeriveStatus(current Status, budget, spent decimal.Decimal) Status {
	if current == StatusOverBudget || spent.GreaterThan(budget) {
		return StatusOverBudget
	}
	return current
}

// Project is a budgeted construction project.
type Project struct {
	ID        int64
	Name      string
	Status    Status
	Budget    decimal.Decimal
	Spent     decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Remaining is budget minus spend; negative when over budget.
func (p Project) Remaining() decimal.Decimal {
	return p.Budget.Sub(p.Spent)
}

// OverBudget reports whether spend exceeds the budget ceiling.
func (p Project) OverBudget() bool {
	return p.Spent.GreaterThan(p.Budget)
}

// Utilisation returns spend as a percentage of budget.
func (p Project) Utilisation() float64 {
	if p.Budget.IsZero() {
		if p.Spent.IsPositive() {
			return 100
		}
		return 0
	}
	return p.Spent.Div(p.Budget).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
}

// NewProject carries the fields needed to register a project.
type NewProject struct {
	Name   string
	Status Status
	Budget decimal.Decimal
}

// Validate checks a registration request.
func (n NewProject) Validate() error {
	name := strings.TrimSpace(n.Name)
	if name == "" || len(name) > 200 {
		return fmt.Errorf("%w: name must be 1-200 characters", ErrInvalidProject)
	}
	if n.Budget.IsNegative() {
		return fmt.Errorf("%w: budget must not be negative", ErrInvalidProject)
	}
	if _, err := ParseStatus(string(n.Status)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProject, err)
	}
	return nil
}
