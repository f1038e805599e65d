package projects

import (
	"context"
	"strings"
)

// Service exposes the project registry.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns every project ordered by id.
func (s *Service) List(ctx context.Context) ([]Project, error) {
	return s.repo.List(ctx)
}

// Get returns the project with the given id or ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (Project, error) {
	return s.repo.Get(ctx, id)
}

// Count returns the number of registered projects.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Delete removes a project that has no ledger entries yet.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Create validates and registers a project with zero spend.
func (s *Service) Create(ctx context.Context, input NewProject) (Project, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Status == "" {
		input.Status = StatusPlanned
	}
	if err := input.Validate(); err != nil {
		return Project{}, err
	}
	status, _ := ParseStatus(string(input.Status))
	input.Status = status
	return s.repo.Create(ctx, input)
}
