package domain

import (
	"errors"
	"testing"
	"time"
)

// TestTemplateForProgramExtras verifies that program extras append after the
// base items and that FHA extras never leak into other programs.
func TestTemplateForProgramExtras(t *testing.T) {
	templates := DefaultTemplates()

	base := templates.TemplateFor(StageApplication, ProgramVA)
	fha := templates.TemplateFor(StageApplication, ProgramFHA)
	if len(fha) != len(base)+3 {
		t.Fatalf("expected 3 fha extras on application, got %d vs %d", len(fha), len(base))
	}
	if fha[len(fha)-3].Key != "fha-case-number-assigned" {
		t.Fatalf("unexpected first extra key %q", fha[len(fha)-3].Key)
	}
	for _, item := range fha {
		if item.Done {
			t.Fatalf("expected fresh items to be undone, got %q done", item.Key)
		}
	}
	for _, item := range base {
		if item.Key == "fha-case-number-assigned" {
			t.Fatal("expected no fha extras on a va application checklist")
		}
	}
}

// TestTemplateNonFHAProgramsShareConventionalExtras verifies that every
// program except FHA carries the conventional processing extras, including the
// required reserve-verification gate item.
func TestTemplateNonFHAProgramsShareConventionalExtras(t *testing.T) {
	templates := DefaultTemplates()

	for _, program := range []LoanProgram{ProgramConventional, ProgramVA, ProgramUSDA, ProgramNonQM} {
		items := templates.TemplateFor(StageProcessing, program)
		var sawReserve, sawPMI bool
		for _, item := range items {
			switch item.Key {
			case "reserve-verification":
				sawReserve = true
				if !item.Required {
					t.Fatalf("%s: expected reserve-verification required", program)
				}
			case "pmi-quote-obtained-if-20-down":
				sawPMI = true
				if item.Required {
					t.Fatalf("%s: expected pmi quote advisory", program)
				}
			}
		}
		if !sawReserve || !sawPMI {
			t.Fatalf("%s: expected conventional processing extras, got reserve=%t pmi=%t", program, sawReserve, sawPMI)
		}
	}

	fha := templates.TemplateFor(StageProcessing, ProgramFHA)
	for _, item := range fha {
		if item.Key == "reserve-verification" {
			t.Fatal("expected no conventional extras on an fha processing checklist")
		}
	}
}

// TestTemplateQualifiedItemsAdvisory verifies that "(if ...)" items never
// count against completion.
func TestTemplateQualifiedItemsAdvisory(t *testing.T) {
	templates := DefaultTemplates()
	items := templates.TemplateFor(StageProcessing, ProgramConventional)

	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	for _, item := range items {
		if item.Required {
			if err := MarkDone(items, item.Key, "lo-1", now); err != nil {
				t.Fatalf("MarkDone(%q) error = %v", item.Key, err)
			}
		}
	}
	if !IsComplete(items) {
		t.Fatalf("expected checklist complete with advisory items undone, unmet %v", UnmetRequiredKeys(items))
	}
}

// TestMarkDoneAttribution verifies completion stamps and unknown-key errors.
func TestMarkDoneAttribution(t *testing.T) {
	templates := DefaultTemplates()
	items := templates.TemplateFor(StageClosing, ProgramConventional)
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	if err := MarkDone(items, "borrower-signed", " lo-1 ", now); err != nil {
		t.Fatalf("MarkDone() error = %v", err)
	}
	var signed *ChecklistItem
	for i := range items {
		if items[i].Key == "borrower-signed" {
			signed = &items[i]
		}
	}
	if signed == nil || !signed.Done {
		t.Fatal("expected borrower-signed to be done")
	}
	if signed.CompletedBy != "lo-1" {
		t.Fatalf("expected trimmed actor, got %q", signed.CompletedBy)
	}
	if signed.CompletedAt == nil || !signed.CompletedAt.Equal(now) {
		t.Fatalf("expected completion timestamp %v, got %v", now, signed.CompletedAt)
	}

	if err := MarkUndone(items, "borrower-signed", now); err != nil {
		t.Fatalf("MarkUndone() error = %v", err)
	}
	if signed.Done || signed.CompletedAt != nil || signed.CompletedBy != "" {
		t.Fatalf("expected cleared completion state, got %#v", *signed)
	}

	if err := MarkDone(items, "no-such-item", "lo-1", now); !errors.Is(err, ErrUnknownItemKey) {
		t.Fatalf("expected ErrUnknownItemKey, got %v", err)
	}
}

// TestItemKeySlug verifies slug derivation from item labels.
func TestItemKeySlug(t *testing.T) {
	if got := ItemKey("Disclosures sent (LE, intent to proceed)"); got != "disclosures-sent-le-intent-to-proceed" {
		t.Fatalf("ItemKey() = %q", got)
	}
	if got := ItemKey("VOE ordered / completed"); got != "voe-ordered-completed" {
		t.Fatalf("ItemKey() = %q", got)
	}
	if got := ItemKey("  CD sent to borrower (3-day wait) "); got != "cd-sent-to-borrower-3-day-wait" {
		t.Fatalf("ItemKey() = %q", got)
	}
}
