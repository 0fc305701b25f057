package domain

import (
	"errors"
	"strings"
	"time"
)

// Loan is the aggregate: identity and borrower details, the current pipeline
// stage, per-stage checklists, an optional deadline, and the append-only
// milestone history.
type Loan struct {
	ID              string
	Borrower        string
	CoBorrower      string
	PropertyAddress string
	Amount          int64
	Program         LoanProgram
	CurrentStage    Stage
	Checklists      map[Stage][]ChecklistItem
	Deadline        *Deadline
	Milestones      []MilestoneEvent
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LoanInput carries the caller-supplied fields for creating a loan.
type LoanInput struct {
	ID              string
	Borrower        string
	CoBorrower      string
	PropertyAddress string
	Amount          int64
	Program         string
	Stage           string
	Notes           string
}

// NewLoan validates input and builds a loan at its opening stage, with
// checklists seeded for every stage up to and including the current one and a
// creation milestone recorded.
func NewLoan(in LoanInput, templates Templates, now time.Time) (Loan, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return Loan{}, ErrInvalidID
	}
	borrower := strings.TrimSpace(in.Borrower)
	if borrower == "" {
		return Loan{}, ErrInvalidBorrower
	}
	if in.Amount < 0 {
		return Loan{}, ErrInvalidAmount
	}
	program, err := ParseProgram(in.Program)
	if err != nil {
		return Loan{}, err
	}
	stage := StageApplication
	if strings.TrimSpace(in.Stage) != "" {
		stage, err = ParseStage(in.Stage)
		if err != nil {
			return Loan{}, err
		}
	}

	now = now.UTC()
	loan := Loan{
		ID:              id,
		Borrower:        borrower,
		CoBorrower:      strings.TrimSpace(in.CoBorrower),
		PropertyAddress: strings.TrimSpace(in.PropertyAddress),
		Amount:          in.Amount,
		Program:         program,
		CurrentStage:    stage,
		Checklists:      map[Stage][]ChecklistItem{},
		Notes:           strings.TrimSpace(in.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	loan.seedChecklistsThrough(stage, templates)
	loan.Milestones = append(loan.Milestones, MilestoneEvent{
		Timestamp: now,
		Kind:      MilestoneCreated,
		To:        stage,
	})
	return loan, nil
}

// seedChecklistsThrough instantiates checklists for every stage from the
// start of the pipeline through target, leaving already-present stages alone.
func (l *Loan) seedChecklistsThrough(target Stage, templates Templates) {
	targetIdx, err := StageIndex(target)
	if err != nil {
		return
	}
	for i, stage := range Stages() {
		if i > targetIdx {
			break
		}
		if _, ok := l.Checklists[stage]; !ok {
			l.Checklists[stage] = templates.TemplateFor(stage, l.Program)
		}
	}
}

// TransitionTo moves the loan to another stage. A same-stage move is a no-op.
// Forward moves require the current stage's required checklist items to all
// be done and report every unmet key at once; backward moves are always
// allowed. Exactly one stage milestone is recorded per effective move.
func (l *Loan) TransitionTo(target Stage, templates Templates, actor, note string, now time.Time) error {
	if target == l.CurrentStage {
		return nil
	}
	forward, err := IsForward(l.CurrentStage, target)
	if err != nil {
		return err
	}
	if forward {
		if unmet := UnmetRequiredKeys(l.Checklists[l.CurrentStage]); len(unmet) > 0 {
			return &ChecklistIncompleteError{Stage: l.CurrentStage, MissingKey: unmet}
		}
	}
	from := l.CurrentStage
	l.CurrentStage = target
	l.seedChecklistsThrough(target, templates)
	l.Milestones = append(l.Milestones, stageMilestone(from, target, actor, note, now))
	l.UpdatedAt = now.UTC()
	return nil
}

// SetChecklistItem marks one item done or undone on the checklist of a stage
// the loan has reached. Checklists survive backward moves, so any stage with a
// seeded entry stays editable. Setting an item to its current value is a no-op
// and records nothing.
func (l *Loan) SetChecklistItem(stage Stage, key string, done bool, actor string, now time.Time) error {
	if !IsValidStage(stage) {
		return ErrInvalidStage
	}
	items, ok := l.Checklists[stage]
	if !ok {
		return ErrStageNotReached
	}
	for i := range items {
		if items[i].Key == key && items[i].Done == done {
			return nil
		}
	}
	var err error
	if done {
		err = MarkDone(items, key, actor, now)
	} else {
		err = MarkUndone(items, key, now)
	}
	if err != nil {
		return err
	}
	l.Milestones = append(l.Milestones, checklistMilestone(stage, key, actor, checklistNote(key, done), now))
	l.UpdatedAt = now.UTC()
	return nil
}

func checklistNote(key string, done bool) string {
	if done {
		return "checked " + key
	}
	return "unchecked " + key
}

// SetDeadline replaces the loan's deadline wholesale. A nil deadline clears
// it.
func (l *Loan) SetDeadline(d *Deadline, now time.Time) {
	if d == nil {
		l.Deadline = nil
	} else {
		due := d.DueDate.UTC()
		l.Deadline = &Deadline{DueDate: due, Note: strings.TrimSpace(d.Note)}
	}
	l.UpdatedAt = now.UTC()
}

// LoanUpdate carries optional field changes; nil pointers leave the field
// untouched.
type LoanUpdate struct {
	Borrower        *string
	CoBorrower      *string
	PropertyAddress *string
	Amount          *int64
	Program         *string
	Notes           *string
}

// UpdateDetails applies a partial update to the loan's descriptive fields.
// Changing the program rebuilds seeded checklists for the new program while
// preserving completion state of items both programs share.
func (l *Loan) UpdateDetails(u LoanUpdate, templates Templates, now time.Time) error {
	if u.Borrower != nil {
		borrower := strings.TrimSpace(*u.Borrower)
		if borrower == "" {
			return ErrInvalidBorrower
		}
		l.Borrower = borrower
	}
	if u.Amount != nil {
		if *u.Amount < 0 {
			return ErrInvalidAmount
		}
		l.Amount = *u.Amount
	}
	if u.Program != nil {
		program, err := ParseProgram(*u.Program)
		if err != nil {
			return err
		}
		if program != l.Program {
			l.Program = program
			l.rebuildChecklists(templates)
		}
	}
	if u.CoBorrower != nil {
		l.CoBorrower = strings.TrimSpace(*u.CoBorrower)
	}
	if u.PropertyAddress != nil {
		l.PropertyAddress = strings.TrimSpace(*u.PropertyAddress)
	}
	if u.Notes != nil {
		l.Notes = strings.TrimSpace(*u.Notes)
	}
	l.UpdatedAt = now.UTC()
	return nil
}

// rebuildChecklists regenerates every seeded stage checklist from the
// templates for the current program, carrying over done state by item key.
func (l *Loan) rebuildChecklists(templates Templates) {
	for stage := range l.Checklists {
		prior := map[string]ChecklistItem{}
		for _, item := range l.Checklists[stage] {
			prior[item.Key] = item
		}
		fresh := templates.TemplateFor(stage, l.Program)
		for i := range fresh {
			if old, ok := prior[fresh[i].Key]; ok && old.Done {
				fresh[i].Done = true
				fresh[i].CompletedAt = old.CompletedAt
				fresh[i].CompletedBy = old.CompletedBy
			}
		}
		l.Checklists[stage] = fresh
	}
}

// ChecklistFor returns the checklist for one stage, or ErrStageNotReached if
// the loan has not reached it yet.
func (l *Loan) ChecklistFor(stage Stage) ([]ChecklistItem, error) {
	if !IsValidStage(stage) {
		return nil, ErrInvalidStage
	}
	items, ok := l.Checklists[stage]
	if !ok {
		return nil, ErrStageNotReached
	}
	return items, nil
}

// IsChecklistIncomplete reports whether err is a checklist gate failure.
func IsChecklistIncomplete(err error) bool {
	var cie *ChecklistIncompleteError
	return errors.As(err, &cie)
}
