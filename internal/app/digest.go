package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/loanward/loantrack/internal/domain"
)

// DigestEntry is one scheduled loan in the daily digest. PendingItems lists
// the labels of current-stage checklist items still open.
type DigestEntry struct {
	LoanID        string
	Borrower      string
	Stage         domain.Stage
	DueDate       time.Time
	Note          string
	DaysRemaining int
	Urgency       domain.Urgency
	PendingItems  []string
}

// UnscheduledEntry is one active loan carrying no deadline.
type UnscheduledEntry struct {
	LoanID       string
	Borrower     string
	Stage        domain.Stage
	PendingItems []string
}

// Digest is the point-in-time deadline report across the active pipeline.
// Funded loans are excluded.
type Digest struct {
	GeneratedAt time.Time
	Entries     []DigestEntry
	Unscheduled []UnscheduledEntry
}

// BuildDigest classifies every active loan's deadline against now. Scheduled
// entries sort most urgent first with ties broken by loan id; unscheduled
// loans keep creation order.
func (s *Service) BuildDigest(ctx context.Context) (Digest, error) {
	loans, err := s.repo.ListLoans(ctx)
	if err != nil {
		return Digest{}, fmt.Errorf("build digest: %w", err)
	}
	now := s.clock().UTC()

	slices.SortStableFunc(loans, func(a, b domain.Loan) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	digest := Digest{GeneratedAt: now}
	for _, loan := range loans {
		if loan.CurrentStage == domain.StageFunded {
			continue
		}
		pending := pendingItemLabels(loan)
		if loan.Deadline == nil {
			digest.Unscheduled = append(digest.Unscheduled, UnscheduledEntry{
				LoanID:       loan.ID,
				Borrower:     loan.Borrower,
				Stage:        loan.CurrentStage,
				PendingItems: pending,
			})
			continue
		}
		urgency, days := domain.ClassifyDeadline(loan.Deadline, now)
		digest.Entries = append(digest.Entries, DigestEntry{
			LoanID:        loan.ID,
			Borrower:      loan.Borrower,
			Stage:         loan.CurrentStage,
			DueDate:       loan.Deadline.DueDate,
			Note:          loan.Deadline.Note,
			DaysRemaining: days,
			Urgency:       urgency,
			PendingItems:  pending,
		})
	}

	slices.SortStableFunc(digest.Entries, func(a, b DigestEntry) int {
		if a.DaysRemaining != b.DaysRemaining {
			if a.DaysRemaining < b.DaysRemaining {
				return -1
			}
			return 1
		}
		return strings.Compare(a.LoanID, b.LoanID)
	})
	return digest, nil
}

// pendingItemLabels collects the open checklist items of the loan's current
// stage in checklist order.
func pendingItemLabels(loan domain.Loan) []string {
	var labels []string
	for _, item := range loan.Checklists[loan.CurrentStage] {
		if !item.Done {
			labels = append(labels, item.Label)
		}
	}
	return labels
}
