package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loanward/loantrack/internal/app"
	"github.com/loanward/loantrack/internal/domain"
)

// ErrInvalidRequest reports malformed transport input caught before the
// domain layer.
var ErrInvalidRequest = errors.New("invalid request")

// AppServiceAdapter maps the transport contracts onto app.Service calls.
type AppServiceAdapter struct {
	service *app.Service
	clock   func() time.Time
}

// NewAppServiceAdapter builds one adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service, clock func() time.Time) *AppServiceAdapter {
	if clock == nil {
		clock = time.Now
	}
	return &AppServiceAdapter{service: service, clock: clock}
}

// CreateLoan opens a loan from transport input.
func (a *AppServiceAdapter) CreateLoan(ctx context.Context, in CreateLoanRequest) (LoanView, error) {
	loan, err := a.service.CreateLoan(ctx, domain.LoanInput{
		ID:              in.ID,
		Borrower:        in.Borrower,
		CoBorrower:      in.CoBorrower,
		PropertyAddress: in.PropertyAddress,
		Amount:          in.Amount,
		Program:         in.Program,
		Stage:           in.Stage,
		Notes:           in.Notes,
	})
	if err != nil {
		return LoanView{}, err
	}
	return a.loanView(loan), nil
}

// GetLoan loads one loan.
func (a *AppServiceAdapter) GetLoan(ctx context.Context, id string) (LoanView, error) {
	loan, err := a.service.GetLoan(ctx, id)
	if err != nil {
		return LoanView{}, err
	}
	return a.loanView(loan), nil
}

// ListLoans lists every loan in creation order.
func (a *AppServiceAdapter) ListLoans(ctx context.Context) ([]LoanView, error) {
	loans, err := a.service.ListLoans(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]LoanView, 0, len(loans))
	for _, loan := range loans {
		out = append(out, a.loanView(loan))
	}
	return out, nil
}

// UpdateLoan applies a partial update.
func (a *AppServiceAdapter) UpdateLoan(ctx context.Context, id string, in UpdateLoanRequest) (LoanView, error) {
	loan, err := a.service.UpdateLoan(ctx, id, domain.LoanUpdate{
		Borrower:        in.Borrower,
		CoBorrower:      in.CoBorrower,
		PropertyAddress: in.PropertyAddress,
		Amount:          in.Amount,
		Program:         in.Program,
		Notes:           in.Notes,
	})
	if err != nil {
		return LoanView{}, err
	}
	return a.loanView(loan), nil
}

// DeleteLoan removes one loan.
func (a *AppServiceAdapter) DeleteLoan(ctx context.Context, id string) error {
	return a.service.DeleteLoan(ctx, id)
}

// MoveStage transitions a loan through the pipeline.
func (a *AppServiceAdapter) MoveStage(ctx context.Context, id string, in MoveStageRequest) (LoanView, error) {
	loan, err := a.service.TransitionLoan(ctx, id, in.Stage, in.Actor, in.Note)
	if err != nil {
		return LoanView{}, err
	}
	return a.loanView(loan), nil
}

// SetChecklistItem updates one checklist item's done state.
func (a *AppServiceAdapter) SetChecklistItem(ctx context.Context, id string, in ChecklistItemRequest) (LoanView, error) {
	loan, err := a.service.UpdateChecklistItem(ctx, id, in.Stage, in.Key, in.Done, in.Actor)
	if err != nil {
		return LoanView{}, err
	}
	return a.loanView(loan), nil
}

// SetDeadline replaces or clears the loan deadline.
func (a *AppServiceAdapter) SetDeadline(ctx context.Context, id string, in DeadlineRequest) (LoanView, error) {
	var deadline *domain.Deadline
	switch {
	case in.Clear:
	case in.DueDate == nil:
		return LoanView{}, fmt.Errorf("due_date is required unless clear is set: %w", ErrInvalidRequest)
	default:
		deadline = &domain.Deadline{DueDate: *in.DueDate, Note: in.Note}
	}
	loan, err := a.service.SetLoanDeadline(ctx, id, deadline)
	if err != nil {
		return LoanView{}, err
	}
	return a.loanView(loan), nil
}

// Digest builds the deadline report.
func (a *AppServiceAdapter) Digest(ctx context.Context) (DigestView, error) {
	digest, err := a.service.BuildDigest(ctx)
	if err != nil {
		return DigestView{}, err
	}
	view := DigestView{
		GeneratedAt: digest.GeneratedAt,
		Entries:     make([]DigestEntryView, 0, len(digest.Entries)),
		Unscheduled: make([]UnscheduledEntryView, 0, len(digest.Unscheduled)),
	}
	for _, entry := range digest.Entries {
		view.Entries = append(view.Entries, DigestEntryView{
			LoanID:        entry.LoanID,
			Borrower:      entry.Borrower,
			Stage:         string(entry.Stage),
			DueDate:       entry.DueDate,
			Note:          entry.Note,
			DaysRemaining: entry.DaysRemaining,
			Urgency:       string(entry.Urgency),
			PendingItems:  entry.PendingItems,
		})
	}
	for _, entry := range digest.Unscheduled {
		view.Unscheduled = append(view.Unscheduled, UnscheduledEntryView{
			LoanID:       entry.LoanID,
			Borrower:     entry.Borrower,
			Stage:        string(entry.Stage),
			PendingItems: entry.PendingItems,
		})
	}
	return view, nil
}

func (a *AppServiceAdapter) loanView(loan domain.Loan) LoanView {
	view := LoanView{
		ID:              loan.ID,
		Borrower:        loan.Borrower,
		CoBorrower:      loan.CoBorrower,
		PropertyAddress: loan.PropertyAddress,
		Amount:          loan.Amount,
		Program:         string(loan.Program),
		CurrentStage:    string(loan.CurrentStage),
		Checklists:      map[string][]ChecklistItemView{},
		Milestones:      make([]MilestoneView, 0, len(loan.Milestones)),
		Notes:           loan.Notes,
		CreatedAt:       loan.CreatedAt,
		UpdatedAt:       loan.UpdatedAt,
	}
	for stage, items := range loan.Checklists {
		rows := make([]ChecklistItemView, 0, len(items))
		for _, item := range items {
			rows = append(rows, ChecklistItemView{
				Key:         item.Key,
				Label:       item.Label,
				Required:    item.Required,
				Done:        item.Done,
				CompletedAt: item.CompletedAt,
				CompletedBy: item.CompletedBy,
			})
		}
		view.Checklists[string(stage)] = rows
	}
	urgency, days := domain.ClassifyDeadline(loan.Deadline, a.clock())
	view.Urgency = string(urgency)
	if loan.Deadline != nil {
		view.Deadline = &DeadlineView{DueDate: loan.Deadline.DueDate, Note: loan.Deadline.Note}
		view.DaysRemaining = &days
	}
	for _, event := range loan.Milestones {
		view.Milestones = append(view.Milestones, MilestoneView{
			Timestamp: event.Timestamp,
			Kind:      string(event.Kind),
			From:      string(event.From),
			To:        string(event.To),
			ItemKey:   event.ItemKey,
			Actor:     event.Actor,
			Note:      event.Note,
		})
	}
	return view
}
