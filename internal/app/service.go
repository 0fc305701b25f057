package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/loanward/loantrack/internal/domain"
)

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// ServiceConfig holds configuration for the pipeline service.
type ServiceConfig struct {
	Templates *domain.Templates
}

// Service coordinates loan pipeline use cases over the repository port.
// Every mutation runs as lock, load, mutate, persist on a per-loan lock.
type Service struct {
	repo      Repository
	idGen     IDGenerator
	clock     Clock
	templates domain.Templates
	locks     *loanLocks
}

// NewService constructs the pipeline service.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	templates := domain.DefaultTemplates()
	if cfg.Templates != nil {
		templates = *cfg.Templates
	}
	return &Service{
		repo:      repo,
		idGen:     idGen,
		clock:     clock,
		templates: templates,
		locks:     newLoanLocks(),
	}
}

// Templates exposes the active checklist configuration.
func (s *Service) Templates() domain.Templates {
	return s.templates
}

// CreateLoan validates input, assigns an id when the caller supplied none,
// and persists the new loan.
func (s *Service) CreateLoan(ctx context.Context, in domain.LoanInput) (domain.Loan, error) {
	if strings.TrimSpace(in.ID) == "" {
		in.ID = s.idGen()
	}
	loan, err := domain.NewLoan(in, s.templates, s.clock())
	if err != nil {
		return domain.Loan{}, err
	}
	if err := s.repo.CreateLoan(ctx, loan); err != nil {
		return domain.Loan{}, fmt.Errorf("create loan: %w", err)
	}
	return loan, nil
}

// GetLoan loads one loan by id.
func (s *Service) GetLoan(ctx context.Context, id string) (domain.Loan, error) {
	loan, err := s.repo.GetLoan(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Loan{}, err
	}
	return loan, nil
}

// ListLoans returns every loan ordered by creation time, ties broken by id.
func (s *Service) ListLoans(ctx context.Context) ([]domain.Loan, error) {
	loans, err := s.repo.ListLoans(ctx)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	slices.SortStableFunc(loans, func(a, b domain.Loan) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return loans, nil
}

// TransitionLoan moves a loan to the named stage under the forward checklist
// gate.
func (s *Service) TransitionLoan(ctx context.Context, id, stage, actor, note string) (domain.Loan, error) {
	target, err := domain.ParseStage(stage)
	if err != nil {
		return domain.Loan{}, err
	}
	return s.mutate(ctx, id, func(loan *domain.Loan) error {
		return loan.TransitionTo(target, s.templates, strings.TrimSpace(actor), strings.TrimSpace(note), s.clock())
	})
}

// UpdateChecklistItem sets the done state of one checklist item on a stage
// the loan has reached.
func (s *Service) UpdateChecklistItem(ctx context.Context, id, stage, key string, done bool, actor string) (domain.Loan, error) {
	target, err := domain.ParseStage(stage)
	if err != nil {
		return domain.Loan{}, err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.Loan{}, domain.ErrUnknownItemKey
	}
	return s.mutate(ctx, id, func(loan *domain.Loan) error {
		return loan.SetChecklistItem(target, key, done, strings.TrimSpace(actor), s.clock())
	})
}

// SetLoanDeadline replaces the loan's deadline, or clears it when d is nil.
func (s *Service) SetLoanDeadline(ctx context.Context, id string, d *domain.Deadline) (domain.Loan, error) {
	return s.mutate(ctx, id, func(loan *domain.Loan) error {
		loan.SetDeadline(d, s.clock())
		return nil
	})
}

// UpdateLoan applies a partial update to a loan's descriptive fields.
func (s *Service) UpdateLoan(ctx context.Context, id string, update domain.LoanUpdate) (domain.Loan, error) {
	return s.mutate(ctx, id, func(loan *domain.Loan) error {
		return loan.UpdateDetails(update, s.templates, s.clock())
	})
}

// DeleteLoan removes a loan permanently.
func (s *Service) DeleteLoan(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	unlock := s.locks.lock(id)
	defer unlock()

	if err := s.repo.DeleteLoan(ctx, id); err != nil {
		return err
	}
	return nil
}

func (s *Service) mutate(ctx context.Context, id string, fn func(*domain.Loan) error) (domain.Loan, error) {
	id = strings.TrimSpace(id)
	unlock := s.locks.lock(id)
	defer unlock()

	loan, err := s.repo.GetLoan(ctx, id)
	if err != nil {
		return domain.Loan{}, err
	}
	if err := fn(&loan); err != nil {
		return domain.Loan{}, err
	}
	if err := s.repo.UpdateLoan(ctx, loan); err != nil {
		return domain.Loan{}, fmt.Errorf("update loan: %w", err)
	}
	return loan, nil
}
