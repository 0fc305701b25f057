package app

import (
	"context"
	"testing"
	"time"

	"github.com/loanward/loantrack/internal/domain"
)

func seedDigestLoan(t *testing.T, repo *fakeRepo, id string, createdAt time.Time, stage domain.Stage) {
	t.Helper()
	loan, err := domain.NewLoan(domain.LoanInput{ID: id, Borrower: "Borrower " + id, Stage: string(stage)}, domain.DefaultTemplates(), createdAt)
	if err != nil {
		t.Fatalf("NewLoan(%q) error = %v", id, err)
	}
	repo.loans[id] = loan
}

// TestBuildDigestOrdering verifies most-urgent-first ordering across the
// overdue, critical, warning, and upcoming buckets.
func TestBuildDigestOrdering(t *testing.T) {
	now := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	repo := newFakeRepo()
	svc := newTestService(repo, now)

	offsets := map[string]int{"ln-due7": 7, "ln-over": -3, "ln-due10": 10, "ln-today": 0}
	created := now.Add(-time.Hour)
	for id, offset := range offsets {
		seedDigestLoan(t, repo, id, created, domain.StageProcessing)
		loan := repo.loans[id]
		loan.Deadline = &domain.Deadline{DueDate: now.AddDate(0, 0, offset)}
		repo.loans[id] = loan
	}

	digest, err := svc.BuildDigest(context.Background())
	if err != nil {
		t.Fatalf("BuildDigest() error = %v", err)
	}
	if len(digest.Entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(digest.Entries))
	}
	wantIDs := []string{"ln-over", "ln-today", "ln-due7", "ln-due10"}
	wantUrgency := []domain.Urgency{domain.UrgencyOverdue, domain.UrgencyCritical, domain.UrgencyUpcoming, domain.UrgencyUpcoming}
	for i, entry := range digest.Entries {
		if entry.LoanID != wantIDs[i] {
			t.Fatalf("position %d: expected %q, got %q", i, wantIDs[i], entry.LoanID)
		}
		if entry.Urgency != wantUrgency[i] {
			t.Fatalf("position %d: expected urgency %q, got %q", i, wantUrgency[i], entry.Urgency)
		}
	}
	if digest.Entries[0].DaysRemaining != -3 {
		t.Fatalf("expected -3 days remaining first, got %d", digest.Entries[0].DaysRemaining)
	}
}

// TestBuildDigestExcludesFundedAndSplitsUnscheduled verifies funded loans
// are skipped and deadline-free loans land in the unscheduled list in
// creation order.
func TestBuildDigestExcludesFundedAndSplitsUnscheduled(t *testing.T) {
	now := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	repo := newFakeRepo()
	svc := newTestService(repo, now)

	seedDigestLoan(t, repo, "ln-funded", now.Add(-3*time.Hour), domain.StageFunded)
	seedDigestLoan(t, repo, "ln-late", now.Add(-time.Hour), domain.StageApplication)
	seedDigestLoan(t, repo, "ln-early", now.Add(-2*time.Hour), domain.StageProcessing)

	digest, err := svc.BuildDigest(context.Background())
	if err != nil {
		t.Fatalf("BuildDigest() error = %v", err)
	}
	if len(digest.Entries) != 0 {
		t.Fatalf("expected no scheduled entries, got %d", len(digest.Entries))
	}
	if len(digest.Unscheduled) != 2 {
		t.Fatalf("expected 2 unscheduled loans, got %d", len(digest.Unscheduled))
	}
	if digest.Unscheduled[0].LoanID != "ln-early" || digest.Unscheduled[1].LoanID != "ln-late" {
		t.Fatalf("expected creation order, got %q then %q", digest.Unscheduled[0].LoanID, digest.Unscheduled[1].LoanID)
	}
	for _, entry := range digest.Unscheduled {
		if entry.LoanID == "ln-funded" {
			t.Fatal("expected funded loan excluded from digest")
		}
	}
}

// TestBuildDigestPendingItems verifies each entry carries the open checklist
// items of the loan's current stage, and that completed items drop out.
func TestBuildDigestPendingItems(t *testing.T) {
	now := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	repo := newFakeRepo()
	svc := newTestService(repo, now)

	seedDigestLoan(t, repo, "ln-1", now.Add(-time.Hour), domain.StageApplication)
	loan := repo.loans["ln-1"]
	loan.Deadline = &domain.Deadline{DueDate: now.AddDate(0, 0, 5)}
	if err := loan.SetChecklistItem(domain.StageApplication, "initial-application-1003-completed", true, "lo-1", now); err != nil {
		t.Fatalf("SetChecklistItem() error = %v", err)
	}
	repo.loans["ln-1"] = loan
	seedDigestLoan(t, repo, "ln-2", now.Add(-2*time.Hour), domain.StageApplication)

	digest, err := svc.BuildDigest(context.Background())
	if err != nil {
		t.Fatalf("BuildDigest() error = %v", err)
	}
	if len(digest.Entries) != 1 || len(digest.Unscheduled) != 1 {
		t.Fatalf("expected 1 scheduled and 1 unscheduled, got %d and %d", len(digest.Entries), len(digest.Unscheduled))
	}
	total := len(loan.Checklists[domain.StageApplication])
	if got := len(digest.Entries[0].PendingItems); got != total-1 {
		t.Fatalf("expected %d pending items, got %d", total-1, got)
	}
	for _, label := range digest.Entries[0].PendingItems {
		if domain.ItemKey(label) == "initial-application-1003-completed" {
			t.Fatal("expected completed item excluded from pending list")
		}
	}
	if got := len(digest.Unscheduled[0].PendingItems); got != total {
		t.Fatalf("expected %d pending items on unscheduled loan, got %d", total, got)
	}
}
