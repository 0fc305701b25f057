package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	serveradapter "github.com/loanward/loantrack/internal/adapters/server"
	servercommon "github.com/loanward/loantrack/internal/adapters/server/common"
	"github.com/loanward/loantrack/internal/app"
	"github.com/loanward/loantrack/internal/domain"
)

// TestMain sets deterministic environment defaults for CLI tests.
func TestMain(m *testing.M) {
	_ = os.Setenv("LOANTRACK_DEV_MODE", "false")
	os.Exit(m.Run())
}

// TestRunVersion verifies behavior for the covered scenario.
func TestRunVersion(t *testing.T) {
	var out strings.Builder
	err := run(context.Background(), []string{"--version"}, &out, io.Discard)
	if err != nil {
		t.Fatalf("run(version) error = %v", err)
	}
	if !strings.Contains(out.String(), "loantrack") {
		t.Fatalf("expected version output, got %q", out.String())
	}
}

// TestRunUnknownCommand verifies behavior for the covered scenario.
func TestRunUnknownCommand(t *testing.T) {
	err := run(context.Background(), []string{"definitely-not-a-command"}, io.Discard, io.Discard)
	if err == nil {
		t.Fatalf("run() error = nil, want unknown command error")
	}
	if !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("run() error = %v, want unknown command", err)
	}
}

// TestRunPathsCommand verifies behavior for the covered scenario.
func TestRunPathsCommand(t *testing.T) {
	var out strings.Builder
	err := run(context.Background(), []string{"paths"}, &out, io.Discard)
	if err != nil {
		t.Fatalf("run(paths) error = %v", err)
	}
	for _, key := range []string{"app:", "config:", "data_dir:", "db:"} {
		if !strings.Contains(out.String(), key) {
			t.Fatalf("paths output missing %q: %q", key, out.String())
		}
	}
}

// TestRunServeInvokesServeRunner verifies behavior for the covered scenario.
func TestRunServeInvokesServeRunner(t *testing.T) {
	origRunner := serveCommandRunner
	t.Cleanup(func() { serveCommandRunner = origRunner })

	var captured serveradapter.Config
	serveCommandRunner = func(_ context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
		captured = cfg
		if deps.Loans == nil {
			t.Fatalf("serve dependencies missing loan service")
		}
		return nil
	}

	dbPath := filepath.Join(t.TempDir(), "loantrack.db")
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "serve", "-http", "127.0.0.1:0", "-api-key", "sekrit"}, io.Discard, io.Discard)
	if err != nil {
		t.Fatalf("run(serve) error = %v", err)
	}
	if captured.HTTPBind != "127.0.0.1:0" {
		t.Fatalf("HTTPBind = %q, want 127.0.0.1:0", captured.HTTPBind)
	}
	if captured.APIKey != "sekrit" {
		t.Fatalf("APIKey = %q, want sekrit", captured.APIKey)
	}
	if captured.ServerName != "loantrack" {
		t.Fatalf("ServerName = %q, want loantrack", captured.ServerName)
	}
}

// TestRunDefaultCommandIsServe verifies behavior for the covered scenario.
func TestRunDefaultCommandIsServe(t *testing.T) {
	origRunner := serveCommandRunner
	t.Cleanup(func() { serveCommandRunner = origRunner })

	invoked := false
	serveCommandRunner = func(context.Context, serveradapter.Config, serveradapter.Dependencies) error {
		invoked = true
		return nil
	}

	dbPath := filepath.Join(t.TempDir(), "loantrack.db")
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath}, io.Discard, io.Discard)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !invoked {
		t.Fatalf("serve runner not invoked for default command")
	}
}

// TestRunExportImportRoundTrip verifies behavior for the covered scenario.
func TestRunExportImportRoundTrip(t *testing.T) {
	srcDB := filepath.Join(t.TempDir(), "src.db")
	dstDB := filepath.Join(t.TempDir(), "dst.db")
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	snapPath := filepath.Join(t.TempDir(), "snapshot.json")

	origRunner := serveCommandRunner
	t.Cleanup(func() { serveCommandRunner = origRunner })
	seeded := false
	serveCommandRunner = func(ctx context.Context, _ serveradapter.Config, deps serveradapter.Dependencies) error {
		if seeded {
			return nil
		}
		seeded = true
		_, err := deps.Loans.CreateLoan(ctx, servercommon.CreateLoanRequest{
			ID:       "ln-1",
			Borrower: "Maria Alvarez",
			Amount:   425000,
			Program:  "fha",
		})
		return err
	}
	if err := run(context.Background(), []string{"--db", srcDB, "--config", cfgPath, "serve"}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run(serve seed) error = %v", err)
	}

	if err := run(context.Background(), []string{"--db", srcDB, "--config", cfgPath, "export", "-out", snapPath}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run(export) error = %v", err)
	}
	content, err := os.ReadFile(snapPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if snap.Version != app.SnapshotVersion {
		t.Fatalf("snapshot version = %q, want %q", snap.Version, app.SnapshotVersion)
	}
	if len(snap.Loans) != 1 {
		t.Fatalf("snapshot loans = %d, want 1", len(snap.Loans))
	}

	if err := run(context.Background(), []string{"--db", dstDB, "--config", cfgPath, "import", "-in", snapPath}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run(import) error = %v", err)
	}
	var out strings.Builder
	if err := run(context.Background(), []string{"--db", dstDB, "--config", cfgPath, "export"}, &out, io.Discard); err != nil {
		t.Fatalf("run(export after import) error = %v", err)
	}
	if !strings.Contains(out.String(), "Maria Alvarez") {
		t.Fatalf("re-export missing imported borrower: %q", out.String())
	}
}

// TestRunDigestPlain verifies behavior for the covered scenario.
func TestRunDigestPlain(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "loantrack.db")
	cfgPath := filepath.Join(t.TempDir(), "config.toml")

	var out strings.Builder
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "digest", "-plain"}, &out, io.Discard); err != nil {
		t.Fatalf("run(digest) error = %v", err)
	}
	if !strings.Contains(out.String(), "Daily Digest") {
		t.Fatalf("digest output missing heading: %q", out.String())
	}
	if !strings.Contains(out.String(), "No active loans") {
		t.Fatalf("empty pipeline digest = %q, want no-loans message", out.String())
	}
}

// TestRunSeedCommand verifies behavior for the covered scenario.
func TestRunSeedCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "loantrack.db")
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	borrowersDir := t.TempDir()
	intake := "# Intake\n\nLoan amount: $425,000\nProgram: FHA\n"
	if err := os.WriteFile(filepath.Join(borrowersDir, "maria-alvarez.md"), []byte(intake), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var out strings.Builder
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "seed", "-dir", borrowersDir}, &out, io.Discard); err != nil {
		t.Fatalf("run(seed) error = %v", err)
	}
	if !strings.Contains(out.String(), "created: 1") {
		t.Fatalf("seed output = %q, want created: 1", out.String())
	}

	out.Reset()
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "seed", "-dir", borrowersDir}, &out, io.Discard); err != nil {
		t.Fatalf("run(seed repeat) error = %v", err)
	}
	if !strings.Contains(out.String(), "created: 0, skipped: 1") {
		t.Fatalf("repeat seed output = %q, want created: 0, skipped: 1", out.String())
	}
}

// TestDigestMarkdown verifies behavior for the covered scenario.
func TestDigestMarkdown(t *testing.T) {
	generated := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	digest := app.Digest{
		GeneratedAt: generated,
		Entries: []app.DigestEntry{
			{
				LoanID:        "ln-over",
				Borrower:      "Sam Ortiz",
				Stage:         domain.StageClosing,
				DueDate:       generated.AddDate(0, 0, -3),
				Note:          "closing date",
				DaysRemaining: -3,
				Urgency:       domain.UrgencyOverdue,
			},
			{
				LoanID:        "ln-today",
				Borrower:      "Maria Alvarez",
				Stage:         domain.StageProcessing,
				DueDate:       generated,
				DaysRemaining: 0,
				Urgency:       domain.UrgencyCritical,
				PendingItems:  []string{"Appraisal ordered", "Title ordered", "VOE ordered", "Flood cert"},
			},
		},
		Unscheduled: []app.UnscheduledEntry{
			{
				LoanID:       "ln-new",
				Borrower:     "Dana Reyes",
				Stage:        domain.StageApplication,
				PendingItems: []string{"Credit report pulled"},
			},
		},
	}

	markdown := digestMarkdown(digest)
	overIdx := strings.Index(markdown, "Sam Ortiz")
	todayIdx := strings.Index(markdown, "Maria Alvarez")
	if overIdx < 0 || todayIdx < 0 || overIdx > todayIdx {
		t.Fatalf("digest ordering wrong: %q", markdown)
	}
	if !strings.Contains(markdown, "3 days overdue") {
		t.Fatalf("digest missing overdue phrasing: %q", markdown)
	}
	if !strings.Contains(markdown, "due today") {
		t.Fatalf("digest missing due-today phrasing: %q", markdown)
	}
	if !strings.Contains(markdown, "closing date") {
		t.Fatalf("digest missing deadline note: %q", markdown)
	}
	if !strings.Contains(markdown, "## No Deadline Set") {
		t.Fatalf("digest missing unscheduled section: %q", markdown)
	}
	if !strings.Contains(markdown, "Dana Reyes") {
		t.Fatalf("digest missing unscheduled borrower: %q", markdown)
	}
	if !strings.Contains(markdown, "## Action Items") {
		t.Fatalf("digest missing action items section: %q", markdown)
	}
	if !strings.Contains(markdown, "4 pending items: Appraisal ordered, Title ordered, VOE ordered...") {
		t.Fatalf("digest missing truncated pending summary: %q", markdown)
	}
	if !strings.Contains(markdown, "1 pending items: Credit report pulled") {
		t.Fatalf("digest missing unscheduled pending summary: %q", markdown)
	}
}

// TestDescribeDays verifies behavior for the covered scenario.
func TestDescribeDays(t *testing.T) {
	cases := []struct {
		days int
		want string
	}{
		{days: -2, want: "2 days overdue"},
		{days: 0, want: "due today"},
		{days: 1, want: "1 day left"},
		{days: 7, want: "7 days left"},
	}
	for _, tt := range cases {
		if got := describeDays(tt.days); got != tt.want {
			t.Fatalf("describeDays(%d) = %q, want %q", tt.days, got, tt.want)
		}
	}
}
