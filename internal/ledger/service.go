package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/sitebudget/sitebudget/internal/events"
	"github.com/sitebudget/sitebudget/internal/observability"
	"github.com/sitebudget/sitebudget/internal/projects"
	"github.com/sitebudget/sitebudget/internal/rbac"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// Service books ledger entries and maintains project spend.
type Service struct {
	repo      Repository
	publisher events.Publisher
	metrics   *observability.Metrics
	logger    *slog.Logger
	validate  *validator.Validate
	now       func() time.Time
}

// NewService constructs a Service. publisher, metrics and logger may be nil.
func NewService(repo Repository, publisher events.Publisher, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		validate:  validator.New(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type entryFields struct {
	Description string `validate:"required,max=500"`
	Amount      string `validate:"required"`
}

// RecordEntry validates the submission and, in one transaction, appends the
// entry and adds its amount to the project's spend. The project is resolved
// before the fields are checked so a missing project always wins.
func (s *Service) RecordEntry(ctx context.Context, input EntryInput) (Receipt, error) {
	var receipt Receipt
	tracker := s.metrics.Track("ledger.record_entry")
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		project, err := tx.GetProjectForUpdate(ctx, input.ProjectID)
		if err != nil {
			return err
		}

		description, amount, err := s.parseFields(input)
		if err != nil {
			return err
		}
		department, err := input.Role.Department()
		if err != nil {
			return err
		}

		now := s.now()
		entry, err := tx.InsertEntry(ctx, Entry{
			ProjectID:   project.ID,
			Department:  department,
			Description: description,
			Amount:      amount,
			AccountID:   input.AccountID,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}

		spent := project.Spent.Add(amount)
		status := projects.DeriveStatus(project.Status, project.Budget, spent)
		if err := tx.UpdateProjectSpend(ctx, project.ID, spent, status, now); err != nil {
			return err
		}
		project.Spent = spent
		project.Status = status
		project.UpdatedAt = now

		receipt = Receipt{Entry: entry, Project: project}
		return nil
	})
	if err = tracker.End(err); err != nil {
		s.metrics.ObserveRejection(rejectionReason(err))
		return Receipt{}, err
	}

	s.metrics.ObserveEntry(receipt.Entry.Department, receipt.Entry.Amount.InexactFloat64())
	s.logger.Info("ledger entry recorded",
		slog.Int64("entry_id", receipt.Entry.ID),
		slog.Int64("project_id", receipt.Project.ID),
		slog.String("department", receipt.Entry.Department),
		slog.String("amount", receipt.Entry.Amount.String()),
		slog.String("status", string(receipt.Project.Status)))
	s.publish(ctx, receipt)
	return receipt, nil
}

// ListEntries returns up to limit entries for a project, newest first.
func (s *Service) ListEntries(ctx context.Context, projectID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.ListEntries(ctx, projectID, limit)
}

func (s *Service) parseFields(input EntryInput) (string, decimal.Decimal, error) {
	fields := entryFields{
		Description: strings.TrimSpace(input.Description),
		Amount:      strings.TrimSpace(input.Amount),
	}
	if err := s.validate.Struct(fields); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "Amount" {
			return "", decimal.Zero, ErrInvalidAmount
		}
		return "", decimal.Zero, ErrInvalidDescription
	}
	amount, err := ParseAmount(fields.Amount)
	if err != nil {
		return "", decimal.Zero, err
	}
	return fields.Description, amount, nil
}

// ParseAmount converts raw form text into a positive amount of at most
// AmountScale decimal places, no larger than MaxAmount.
func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	// Exponent and digit checks come first so no rescale ever touches an
	// extreme exponent.
	if exp := amount.Exponent(); exp < -maxInputScale || exp > maxInputExponent || amount.NumDigits() > maxAmountDigits {
		return decimal.Zero, fmt.Errorf("%w: out of range", ErrInvalidAmount)
	}
	if !amount.Equal(amount.Truncate(AmountScale)) {
		return decimal.Zero, fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, AmountScale)
	}
	if amount.GreaterThan(MaxAmount) {
		return decimal.Zero, fmt.Errorf("%w: exceeds %s", ErrInvalidAmount, MaxAmount.StringFixed(AmountScale))
	}
	return amount.Truncate(AmountScale), nil
}

func (s *Service) publish(ctx context.Context, receipt Receipt) {
	event := events.EntryRecorded{
		Type:          events.TypeEntryRecorded,
		EntryID:       receipt.Entry.ID,
		ProjectID:     receipt.Project.ID,
		ProjectName:   receipt.Project.Name,
		Department:    receipt.Entry.Department,
		Description:   receipt.Entry.Description,
		Amount:        receipt.Entry.Amount.String(),
		ProjectSpent:  receipt.Project.Spent.String(),
		ProjectStatus: string(receipt.Project.Status),
		RecordedAt:    receipt.Entry.CreatedAt,
	}
	if err := s.publisher.PublishEntryRecorded(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("publish entry recorded", slog.Int64("entry_id", event.EntryID), slog.Any("error", err))
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrProjectNotFound):
		return "project_not_found"
	case errors.Is(err, ErrInvalidDescription):
		return "invalid_description"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, rbac.ErrUnknownRole):
		return "unknown_role"
	default:
		return "storage"
	}
}
