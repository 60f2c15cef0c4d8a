// Package controller implements the core business logic (service layer)
// for managing Company entities, orchestrating validation, repository
// operations and the events sent after every write.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	e "github.com/gartstein/directory/internal/company/errors"
	"github.com/gartstein/directory/internal/company/events"
	"github.com/gartstein/directory/internal/company/models"
	"github.com/gartstein/directory/internal/company/query"
	"github.com/gartstein/directory/internal/company/schema"
)

// ValidationFailedMessage heads every rejected company payload.
const ValidationFailedMessage = "Validation failed"

// EventProducer is called on the request path after each successful write,
// so Produce must not block.
type EventProducer interface {
	Produce(eventType events.EventType, company *models.Company)
}

// Repository defines the storage interface for Company objects. Stores
// assign ids and creation times and enforce name uniqueness, reporting
// clashes as errors.ErrDuplicateName and missing records as
// errors.ErrNotFound.
type Repository interface {
	CreateCompany(ctx context.Context, in *models.CompanyInput) (*models.Company, error)
	GetCompany(ctx context.Context, id string) (*models.Company, error)
	ListCompanies(ctx context.Context, plan query.Plan) ([]models.Company, int64, error)
	UpdateCompany(ctx context.Context, id string, in *models.CompanyInput) (*models.Company, error)
	DeleteCompany(ctx context.Context, id string) (*models.Company, error)
	Close() error
}

// CompanyService provides methods to manage companies via repository
// operations and event production.
type CompanyService struct {
	repo      Repository
	producer  EventProducer
	logger    *zap.Logger
	validator *schema.Validator
	queries   *query.Builder
	now       func() time.Time
}

// Option customises a CompanyService.
type Option func(*CompanyService)

// WithClock sets the time source for the founded year bound.
func WithClock(now func() time.Time) Option {
	return func(s *CompanyService) { s.now = now }
}

// NewCompanyService constructs a CompanyService with a repository,
// an event producer, and a logger.
func NewCompanyService(repo Repository, producer EventProducer, logger *zap.Logger, opts ...Option) *CompanyService {
	s := &CompanyService{
		repo:     repo,
		producer: producer,
		logger:   logger.Named("company_service"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.validator = schema.NewValidator(schema.WithClock(s.now))
	s.queries = query.NewBuilder(s.now)
	return s
}

// Rules returns the record rules as they apply right now.
func (s *CompanyService) Rules() []schema.FieldRule {
	return schema.Rules(s.now())
}

// CreateCompany validates the candidate, stores it and triggers an event.
// Any id or createdAt in the candidate is ignored.
func (s *CompanyService) CreateCompany(ctx context.Context, candidate schema.Candidate) (*models.Company, error) {
	in, fe := s.validator.Normalize(candidate)
	if len(fe) > 0 {
		return nil, e.NewValidationError(ValidationFailedMessage, fe)
	}

	company, err := s.repo.CreateCompany(ctx, in)
	if err != nil {
		if errors.Is(err, e.ErrDuplicateName) {
			return nil, e.NewConflictError(fmt.Sprintf(`Company with name "%s" already exists`, in.Name))
		}
		return nil, fmt.Errorf("failed to create company: %w", err)
	}

	s.logger.Info("company created", zap.String("company_id", company.ID))
	s.producer.Produce(events.CompanyCreated, company)
	return company, nil
}

// GetCompany retrieves a Company by ID, returning an error if not found.
func (s *CompanyService) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	company, err := s.repo.GetCompany(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return company, nil
}

// ListCompanies validates the list parameters and returns one page.
func (s *CompanyService) ListCompanies(ctx context.Context, params query.Params) (*models.Page, error) {
	plan, err := s.queries.Build(params)
	if err != nil {
		return nil, err
	}

	companies, total, err := s.repo.ListCompanies(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	return &models.Page{
		Companies:  companies,
		Total:      total,
		Page:       plan.Page,
		TotalPages: query.TotalPages(total, plan.Limit),
	}, nil
}

// UpdateCompany replaces every mutable field of the company. The payload is
// validated before the record is looked up.
func (s *CompanyService) UpdateCompany(ctx context.Context, id string, candidate schema.Candidate) (*models.Company, error) {
	in, fe := s.validator.Normalize(candidate)
	if len(fe) > 0 {
		return nil, e.NewValidationError(ValidationFailedMessage, fe)
	}

	updated, err := s.repo.UpdateCompany(ctx, id, in)
	if err != nil {
		switch {
		case errors.Is(err, e.ErrNotFound):
			return nil, err
		case errors.Is(err, e.ErrDuplicateName):
			return nil, e.NewConflictError("Company name already exists")
		}
		s.logger.Error("Failed to update company",
			zap.Error(err),
			zap.String("company_id", id),
		)
		return nil, fmt.Errorf("failed to update company: %w", err)
	}

	s.producer.Produce(events.CompanyUpdated, updated)
	return updated, nil
}

// DeleteCompany removes a Company by ID and fires a deletion event.
func (s *CompanyService) DeleteCompany(ctx context.Context, id string) error {
	company, err := s.repo.DeleteCompany(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete company: %w", err)
	}

	s.logger.Info("company deleted", zap.String("company_id", id))
	s.producer.Produce(events.CompanyDeleted, company)

	return nil
}
