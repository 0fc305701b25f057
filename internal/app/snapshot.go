package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/loanward/loantrack/internal/domain"
)

// SnapshotVersion defines the portable export format version.
const SnapshotVersion = "loantrack.snapshot.v1"

// Snapshot is the portable export of the whole pipeline.
type Snapshot struct {
	Version    string         `json:"version"`
	ExportedAt time.Time      `json:"exported_at"`
	Loans      []SnapshotLoan `json:"loans"`
}

// SnapshotLoan is one persisted loan row in a snapshot.
type SnapshotLoan struct {
	ID              string                              `json:"id"`
	Borrower        string                              `json:"borrower"`
	CoBorrower      string                              `json:"co_borrower,omitempty"`
	PropertyAddress string                              `json:"property_address,omitempty"`
	Amount          int64                               `json:"amount"`
	Program         domain.LoanProgram                  `json:"program"`
	CurrentStage    domain.Stage                        `json:"current_stage"`
	Checklists      map[string][]SnapshotChecklistItem  `json:"checklists"`
	Deadline        *SnapshotDeadline                   `json:"deadline,omitempty"`
	Milestones      []SnapshotMilestone                 `json:"milestones"`
	Notes           string                              `json:"notes,omitempty"`
	CreatedAt       time.Time                           `json:"created_at"`
	UpdatedAt       time.Time                           `json:"updated_at"`
}

// SnapshotChecklistItem is one checklist row in a snapshot.
type SnapshotChecklistItem struct {
	Key         string     `json:"key"`
	Label       string     `json:"label"`
	Required    bool       `json:"required"`
	Done        bool       `json:"done"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy string     `json:"completed_by,omitempty"`
}

// SnapshotDeadline is one loan deadline in a snapshot.
type SnapshotDeadline struct {
	DueDate time.Time `json:"due_date"`
	Note    string    `json:"note,omitempty"`
}

// SnapshotMilestone is one history event in a snapshot.
type SnapshotMilestone struct {
	Timestamp time.Time            `json:"timestamp"`
	Kind      domain.MilestoneKind `json:"kind"`
	From      domain.Stage         `json:"from,omitempty"`
	To        domain.Stage         `json:"to,omitempty"`
	ItemKey   string               `json:"item_key,omitempty"`
	Actor     string               `json:"actor,omitempty"`
	Note      string               `json:"note,omitempty"`
}

// ExportSnapshot serializes every loan into the portable format.
func (s *Service) ExportSnapshot(ctx context.Context) (Snapshot, error) {
	loans, err := s.repo.ListLoans(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Loans:      make([]SnapshotLoan, 0, len(loans)),
	}
	for _, loan := range loans {
		snap.Loans = append(snap.Loans, snapshotLoanFromDomain(loan))
	}
	snap.sort()
	return snap, nil
}

// ImportSnapshot validates a snapshot and upserts every loan it carries.
// Existing loans with matching ids are replaced.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	snap.sort()
	for _, row := range snap.Loans {
		if err := s.upsertLoan(ctx, row.toDomain()); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates snapshot structure and referential integrity.
func (s *Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version: %q", s.Version)
	}
	loanIDs := map[string]struct{}{}
	for i, loan := range s.Loans {
		if strings.TrimSpace(loan.ID) == "" {
			return fmt.Errorf("loans[%d].id is required", i)
		}
		if strings.TrimSpace(loan.Borrower) == "" {
			return fmt.Errorf("loans[%d].borrower is required", i)
		}
		if loan.Amount < 0 {
			return fmt.Errorf("loans[%d].amount must be >= 0", i)
		}
		if !domain.IsValidProgram(loan.Program) {
			return fmt.Errorf("loans[%d].program invalid: %q", i, loan.Program)
		}
		if !domain.IsValidStage(loan.CurrentStage) {
			return fmt.Errorf("loans[%d].current_stage invalid: %q", i, loan.CurrentStage)
		}
		if loan.CreatedAt.IsZero() || loan.UpdatedAt.IsZero() {
			return fmt.Errorf("loans[%d] timestamps are required", i)
		}
		for stage, items := range loan.Checklists {
			if !domain.IsValidStage(domain.Stage(stage)) {
				return fmt.Errorf("loans[%d] checklist stage invalid: %q", i, stage)
			}
			seen := map[string]struct{}{}
			for j, item := range items {
				key := strings.TrimSpace(item.Key)
				if key == "" {
					return fmt.Errorf("loans[%d].checklists[%s][%d].key is required", i, stage, j)
				}
				if _, dup := seen[key]; dup {
					return fmt.Errorf("loans[%d].checklists[%s] duplicate key %q", i, stage, key)
				}
				seen[key] = struct{}{}
			}
		}
		for j, event := range loan.Milestones {
			if event.Timestamp.IsZero() {
				return fmt.Errorf("loans[%d].milestones[%d].timestamp is required", i, j)
			}
			switch event.Kind {
			case domain.MilestoneCreated, domain.MilestoneStage, domain.MilestoneChecklist:
			default:
				return fmt.Errorf("loans[%d].milestones[%d].kind invalid: %q", i, j, event.Kind)
			}
		}
		if _, exists := loanIDs[loan.ID]; exists {
			return fmt.Errorf("duplicate loan id: %q", loan.ID)
		}
		loanIDs[loan.ID] = struct{}{}
	}
	return nil
}

func (s *Service) upsertLoan(ctx context.Context, loan domain.Loan) error {
	if _, err := s.repo.GetLoan(ctx, loan.ID); err == nil {
		return s.repo.UpdateLoan(ctx, loan)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.repo.CreateLoan(ctx, loan)
}

// sort orders loans by creation time then id so exports are deterministic.
func (s *Snapshot) sort() {
	sort.Slice(s.Loans, func(i, j int) bool {
		a := s.Loans[i]
		b := s.Loans[j]
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	for i := range s.Loans {
		sort.SliceStable(s.Loans[i].Milestones, func(a, b int) bool {
			return s.Loans[i].Milestones[a].Timestamp.Before(s.Loans[i].Milestones[b].Timestamp)
		})
	}
}

func snapshotLoanFromDomain(loan domain.Loan) SnapshotLoan {
	row := SnapshotLoan{
		ID:              loan.ID,
		Borrower:        loan.Borrower,
		CoBorrower:      loan.CoBorrower,
		PropertyAddress: loan.PropertyAddress,
		Amount:          loan.Amount,
		Program:         loan.Program,
		CurrentStage:    loan.CurrentStage,
		Checklists:      map[string][]SnapshotChecklistItem{},
		Notes:           loan.Notes,
		CreatedAt:       loan.CreatedAt.UTC(),
		UpdatedAt:       loan.UpdatedAt.UTC(),
	}
	for stage, items := range loan.Checklists {
		rows := make([]SnapshotChecklistItem, 0, len(items))
		for _, item := range items {
			rows = append(rows, SnapshotChecklistItem{
				Key:         item.Key,
				Label:       item.Label,
				Required:    item.Required,
				Done:        item.Done,
				CompletedAt: copyTimePtr(item.CompletedAt),
				CompletedBy: item.CompletedBy,
			})
		}
		row.Checklists[string(stage)] = rows
	}
	if loan.Deadline != nil {
		row.Deadline = &SnapshotDeadline{DueDate: loan.Deadline.DueDate.UTC(), Note: loan.Deadline.Note}
	}
	for _, event := range loan.Milestones {
		row.Milestones = append(row.Milestones, SnapshotMilestone{
			Timestamp: event.Timestamp.UTC(),
			Kind:      event.Kind,
			From:      event.From,
			To:        event.To,
			ItemKey:   event.ItemKey,
			Actor:     event.Actor,
			Note:      event.Note,
		})
	}
	return row
}

// toDomain converts one snapshot loan row to domain form.
func (l SnapshotLoan) toDomain() domain.Loan {
	loan := domain.Loan{
		ID:              strings.TrimSpace(l.ID),
		Borrower:        strings.TrimSpace(l.Borrower),
		CoBorrower:      strings.TrimSpace(l.CoBorrower),
		PropertyAddress: strings.TrimSpace(l.PropertyAddress),
		Amount:          l.Amount,
		Program:         domain.NormalizeProgram(l.Program),
		CurrentStage:    l.CurrentStage,
		Checklists:      map[domain.Stage][]domain.ChecklistItem{},
		Notes:           strings.TrimSpace(l.Notes),
		CreatedAt:       l.CreatedAt.UTC(),
		UpdatedAt:       l.UpdatedAt.UTC(),
	}
	for stage, items := range l.Checklists {
		rows := make([]domain.ChecklistItem, 0, len(items))
		for _, item := range items {
			rows = append(rows, domain.ChecklistItem{
				Key:         strings.TrimSpace(item.Key),
				Label:       strings.TrimSpace(item.Label),
				Required:    item.Required,
				Done:        item.Done,
				CompletedAt: copyTimePtr(item.CompletedAt),
				CompletedBy: strings.TrimSpace(item.CompletedBy),
			})
		}
		loan.Checklists[domain.Stage(stage)] = rows
	}
	if l.Deadline != nil {
		loan.Deadline = &domain.Deadline{DueDate: l.Deadline.DueDate.UTC(), Note: strings.TrimSpace(l.Deadline.Note)}
	}
	for _, event := range l.Milestones {
		loan.Milestones = append(loan.Milestones, domain.MilestoneEvent{
			Timestamp: event.Timestamp.UTC(),
			Kind:      event.Kind,
			From:      event.From,
			To:        event.To,
			ItemKey:   strings.TrimSpace(event.ItemKey),
			Actor:     strings.TrimSpace(event.Actor),
			Note:      event.Note,
		})
	}
	return loan
}

// copyTimePtr copies time ptr.
func copyTimePtr(in *time.Time) *time.Time {
	if in == nil {
		return nil
	}
	t := in.UTC()
	return &t
}
