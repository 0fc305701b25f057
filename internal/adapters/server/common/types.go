// Package common provides transport-agnostic server contracts shared by the
// HTTP and MCP adapters.
package common

import (
	"context"
	"time"
)

// LoanService is the surface both transport adapters consume.
type LoanService interface {
	CreateLoan(ctx context.Context, in CreateLoanRequest) (LoanView, error)
	GetLoan(ctx context.Context, id string) (LoanView, error)
	ListLoans(ctx context.Context) ([]LoanView, error)
	UpdateLoan(ctx context.Context, id string, in UpdateLoanRequest) (LoanView, error)
	DeleteLoan(ctx context.Context, id string) error
	MoveStage(ctx context.Context, id string, in MoveStageRequest) (LoanView, error)
	SetChecklistItem(ctx context.Context, id string, in ChecklistItemRequest) (LoanView, error)
	SetDeadline(ctx context.Context, id string, in DeadlineRequest) (LoanView, error)
	Digest(ctx context.Context) (DigestView, error)
}

// CreateLoanRequest carries caller input for opening a loan.
type CreateLoanRequest struct {
	ID              string `json:"id,omitempty"`
	Borrower        string `json:"borrower"`
	CoBorrower      string `json:"co_borrower,omitempty"`
	PropertyAddress string `json:"property_address,omitempty"`
	Amount          int64  `json:"amount,omitempty"`
	Program         string `json:"program,omitempty"`
	Stage           string `json:"stage,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// UpdateLoanRequest carries a partial update; absent fields stay unchanged.
type UpdateLoanRequest struct {
	Borrower        *string `json:"borrower,omitempty"`
	CoBorrower      *string `json:"co_borrower,omitempty"`
	PropertyAddress *string `json:"property_address,omitempty"`
	Amount          *int64  `json:"amount,omitempty"`
	Program         *string `json:"program,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

// MoveStageRequest names the stage to move a loan to.
type MoveStageRequest struct {
	Stage string `json:"stage"`
	Actor string `json:"actor,omitempty"`
	Note  string `json:"note,omitempty"`
}

// ChecklistItemRequest marks one checklist item done or undone.
type ChecklistItemRequest struct {
	Stage string `json:"stage"`
	Key   string `json:"key"`
	Done  bool   `json:"done"`
	Actor string `json:"actor,omitempty"`
}

// DeadlineRequest replaces the loan's deadline. Clear set true removes it.
type DeadlineRequest struct {
	DueDate *time.Time `json:"due_date,omitempty"`
	Note    string     `json:"note,omitempty"`
	Clear   bool       `json:"clear,omitempty"`
}

// LoanView is the transport representation of one loan.
type LoanView struct {
	ID              string                         `json:"id"`
	Borrower        string                         `json:"borrower"`
	CoBorrower      string                         `json:"co_borrower,omitempty"`
	PropertyAddress string                         `json:"property_address,omitempty"`
	Amount          int64                          `json:"amount"`
	Program         string                         `json:"program"`
	CurrentStage    string                         `json:"current_stage"`
	Checklists      map[string][]ChecklistItemView `json:"checklists"`
	Deadline        *DeadlineView                  `json:"deadline,omitempty"`
	Urgency         string                         `json:"urgency"`
	DaysRemaining   *int                           `json:"days_remaining,omitempty"`
	Milestones      []MilestoneView                `json:"milestones"`
	Notes           string                         `json:"notes,omitempty"`
	CreatedAt       time.Time                      `json:"created_at"`
	UpdatedAt       time.Time                      `json:"updated_at"`
}

// ChecklistItemView is one checklist row in transport form.
type ChecklistItemView struct {
	Key         string     `json:"key"`
	Label       string     `json:"label"`
	Required    bool       `json:"required"`
	Done        bool       `json:"done"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy string     `json:"completed_by,omitempty"`
}

// DeadlineView is the loan deadline in transport form.
type DeadlineView struct {
	DueDate time.Time `json:"due_date"`
	Note    string    `json:"note,omitempty"`
}

// MilestoneView is one history event in transport form.
type MilestoneView struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	ItemKey   string    `json:"item_key,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Note      string    `json:"note,omitempty"`
}

// DigestView is the deadline report in transport form.
type DigestView struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Entries     []DigestEntryView      `json:"entries"`
	Unscheduled []UnscheduledEntryView `json:"unscheduled"`
}

// DigestEntryView is one scheduled loan in the digest.
type DigestEntryView struct {
	LoanID        string    `json:"loan_id"`
	Borrower      string    `json:"borrower"`
	Stage         string    `json:"stage"`
	DueDate       time.Time `json:"due_date"`
	Note          string    `json:"note,omitempty"`
	DaysRemaining int       `json:"days_remaining"`
	Urgency       string    `json:"urgency"`
	PendingItems  []string  `json:"pending_items,omitempty"`
}

// UnscheduledEntryView is one deadline-free loan in the digest.
type UnscheduledEntryView struct {
	LoanID       string   `json:"loan_id"`
	Borrower     string   `json:"borrower"`
	Stage        string   `json:"stage"`
	PendingItems []string `json:"pending_items,omitempty"`
}
