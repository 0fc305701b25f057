package app

import (
	"context"

	"github.com/loanward/loantrack/internal/domain"
)

// Repository is the persistence port for loans. Implementations must return
// ErrNotFound for missing ids.
type Repository interface {
	CreateLoan(context.Context, domain.Loan) error
	UpdateLoan(context.Context, domain.Loan) error
	GetLoan(context.Context, string) (domain.Loan, error)
	ListLoans(context.Context) ([]domain.Loan, error)
	DeleteLoan(context.Context, string) error
}
