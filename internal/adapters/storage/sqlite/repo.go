package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/loanward/loantrack/internal/app"
	"github.com/loanward/loantrack/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository persists loans in a single sqlite database file.
type Repository struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and runs migrations.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens a throwaway in-memory database.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate applies the schema.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS loans (
			id TEXT PRIMARY KEY,
			borrower TEXT NOT NULL,
			co_borrower TEXT NOT NULL DEFAULT '',
			property_address TEXT NOT NULL DEFAULT '',
			amount INTEGER NOT NULL DEFAULT 0,
			program TEXT NOT NULL DEFAULT 'conventional',
			stage TEXT NOT NULL DEFAULT 'application',
			checklists_json TEXT NOT NULL DEFAULT '{}',
			milestones_json TEXT NOT NULL DEFAULT '[]',
			deadline_due TEXT,
			deadline_note TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_loans_stage ON loans(stage);`,
		`CREATE INDEX IF NOT EXISTS idx_loans_created_at ON loans(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

type checklistItemRow struct {
	Key         string     `json:"key"`
	Label       string     `json:"label"`
	Required    bool       `json:"required"`
	Done        bool       `json:"done"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy string     `json:"completed_by,omitempty"`
}

type milestoneRow struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	ItemKey   string    `json:"item_key,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Note      string    `json:"note,omitempty"`
}

// CreateLoan inserts one loan row.
func (r *Repository) CreateLoan(ctx context.Context, loan domain.Loan) error {
	checklists, milestones, err := encodeLoan(loan)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO loans (
		id, borrower, co_borrower, property_address, amount, program, stage,
		checklists_json, milestones_json, deadline_due, deadline_note, notes,
		created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID, loan.Borrower, loan.CoBorrower, loan.PropertyAddress,
		loan.Amount, string(loan.Program), string(loan.CurrentStage),
		checklists, milestones, deadlineDue(loan.Deadline), deadlineNote(loan.Deadline),
		loan.Notes, ts(loan.CreatedAt), ts(loan.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert loan: %w", err)
	}
	return nil
}

// UpdateLoan replaces one loan row, reporting ErrNotFound for unknown ids.
func (r *Repository) UpdateLoan(ctx context.Context, loan domain.Loan) error {
	checklists, milestones, err := encodeLoan(loan)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE loans SET
		borrower = ?, co_borrower = ?, property_address = ?, amount = ?,
		program = ?, stage = ?, checklists_json = ?, milestones_json = ?,
		deadline_due = ?, deadline_note = ?, notes = ?, created_at = ?, updated_at = ?
		WHERE id = ?`,
		loan.Borrower, loan.CoBorrower, loan.PropertyAddress, loan.Amount,
		string(loan.Program), string(loan.CurrentStage), checklists, milestones,
		deadlineDue(loan.Deadline), deadlineNote(loan.Deadline), loan.Notes,
		ts(loan.CreatedAt), ts(loan.UpdatedAt), loan.ID,
	)
	if err != nil {
		return fmt.Errorf("update loan: %w", err)
	}
	return translateNoRows(res)
}

// GetLoan loads one loan row by id.
func (r *Repository) GetLoan(ctx context.Context, id string) (domain.Loan, error) {
	row := r.db.QueryRowContext(ctx, `SELECT
		id, borrower, co_borrower, property_address, amount, program, stage,
		checklists_json, milestones_json, deadline_due, deadline_note, notes,
		created_at, updated_at
		FROM loans WHERE id = ?`, id)
	loan, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Loan{}, app.ErrNotFound
		}
		return domain.Loan{}, err
	}
	return loan, nil
}

// ListLoans loads every loan row in creation order.
func (r *Repository) ListLoans(ctx context.Context) ([]domain.Loan, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT
		id, borrower, co_borrower, property_address, amount, program, stage,
		checklists_json, milestones_json, deadline_due, deadline_note, notes,
		created_at, updated_at
		FROM loans ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Loan, 0)
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, loan)
	}
	return out, rows.Err()
}

// DeleteLoan removes one loan row, reporting ErrNotFound for unknown ids.
func (r *Repository) DeleteLoan(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM loans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete loan: %w", err)
	}
	return translateNoRows(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLoan(s scanner) (domain.Loan, error) {
	var (
		loan           domain.Loan
		program        string
		stage          string
		checklistsJSON string
		milestonesJSON string
		deadlineDue    sql.NullString
		deadlineNote   string
		createdAt      string
		updatedAt      string
	)
	if err := s.Scan(
		&loan.ID, &loan.Borrower, &loan.CoBorrower, &loan.PropertyAddress,
		&loan.Amount, &program, &stage, &checklistsJSON, &milestonesJSON,
		&deadlineDue, &deadlineNote, &loan.Notes, &createdAt, &updatedAt,
	); err != nil {
		return domain.Loan{}, err
	}
	loan.Program = domain.LoanProgram(program)
	loan.CurrentStage = domain.Stage(stage)
	loan.CreatedAt = parseTS(createdAt)
	loan.UpdatedAt = parseTS(updatedAt)

	if due := parseNullTS(deadlineDue); due != nil {
		loan.Deadline = &domain.Deadline{DueDate: *due, Note: deadlineNote}
	}

	var checklists map[string][]checklistItemRow
	if err := json.Unmarshal([]byte(checklistsJSON), &checklists); err != nil {
		return domain.Loan{}, fmt.Errorf("decode checklists for %s: %w", loan.ID, err)
	}
	loan.Checklists = map[domain.Stage][]domain.ChecklistItem{}
	for stage, items := range checklists {
		decoded := make([]domain.ChecklistItem, 0, len(items))
		for _, item := range items {
			decoded = append(decoded, domain.ChecklistItem{
				Key:         item.Key,
				Label:       item.Label,
				Required:    item.Required,
				Done:        item.Done,
				CompletedAt: item.CompletedAt,
				CompletedBy: item.CompletedBy,
			})
		}
		loan.Checklists[domain.Stage(stage)] = decoded
	}

	var milestones []milestoneRow
	if err := json.Unmarshal([]byte(milestonesJSON), &milestones); err != nil {
		return domain.Loan{}, fmt.Errorf("decode milestones for %s: %w", loan.ID, err)
	}
	for _, event := range milestones {
		loan.Milestones = append(loan.Milestones, domain.MilestoneEvent{
			Timestamp: event.Timestamp.UTC(),
			Kind:      domain.MilestoneKind(event.Kind),
			From:      domain.Stage(event.From),
			To:        domain.Stage(event.To),
			ItemKey:   event.ItemKey,
			Actor:     event.Actor,
			Note:      event.Note,
		})
	}
	return loan, nil
}

func encodeLoan(loan domain.Loan) (string, string, error) {
	checklists := map[string][]checklistItemRow{}
	for stage, items := range loan.Checklists {
		rows := make([]checklistItemRow, 0, len(items))
		for _, item := range items {
			rows = append(rows, checklistItemRow{
				Key:         item.Key,
				Label:       item.Label,
				Required:    item.Required,
				Done:        item.Done,
				CompletedAt: item.CompletedAt,
				CompletedBy: item.CompletedBy,
			})
		}
		checklists[string(stage)] = rows
	}
	checklistsJSON, err := json.Marshal(checklists)
	if err != nil {
		return "", "", fmt.Errorf("encode checklists: %w", err)
	}

	milestones := make([]milestoneRow, 0, len(loan.Milestones))
	for _, event := range loan.Milestones {
		milestones = append(milestones, milestoneRow{
			Timestamp: event.Timestamp.UTC(),
			Kind:      string(event.Kind),
			From:      string(event.From),
			To:        string(event.To),
			ItemKey:   event.ItemKey,
			Actor:     event.Actor,
			Note:      event.Note,
		})
	}
	milestonesJSON, err := json.Marshal(milestones)
	if err != nil {
		return "", "", fmt.Errorf("encode milestones: %w", err)
	}
	return string(checklistsJSON), string(milestonesJSON), nil
}

func deadlineDue(d *domain.Deadline) any {
	if d == nil {
		return nil
	}
	return ts(d.DueDate)
}

func deadlineNote(d *domain.Deadline) string {
	if d == nil {
		return ""
	}
	return d.Note
}

func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}
