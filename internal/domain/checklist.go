package domain

import (
	"slices"
	"strings"
	"time"
)

// ChecklistItem is one task gating (or accompanying) progress out of a stage.
type ChecklistItem struct {
	Key         string
	Label       string
	Required    bool
	Done        bool
	CompletedAt *time.Time
	CompletedBy string
}

// TemplateItem declares one checklist item before it is instantiated on a loan.
type TemplateItem struct {
	Key      string
	Label    string
	Required bool
}

// Templates holds the checklist configuration table: a fixed base set per
// stage plus per-program extras appended after the base items. Both tables are
// data, replaceable from configuration without code change.
type Templates struct {
	Base   map[Stage][]TemplateItem
	Extras map[LoanProgram]map[Stage][]TemplateItem
}

// TemplateFor returns the ordered checklist items for one (stage, program)
// pair, all not yet done.
func (t Templates) TemplateFor(stage Stage, program LoanProgram) []ChecklistItem {
	declared := slices.Clone(t.Base[stage])
	if extras, ok := t.Extras[NormalizeProgram(program)]; ok {
		declared = append(declared, extras[stage]...)
	}
	items := make([]ChecklistItem, 0, len(declared))
	seen := map[string]struct{}{}
	for _, tmpl := range declared {
		key := strings.TrimSpace(tmpl.Key)
		if key == "" {
			key = ItemKey(tmpl.Label)
		}
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, ChecklistItem{
			Key:      key,
			Label:    strings.TrimSpace(tmpl.Label),
			Required: tmpl.Required,
		})
	}
	return items
}

// IsComplete reports whether every required item in the list is done.
// Non-required items never block progress.
func IsComplete(items []ChecklistItem) bool {
	return len(UnmetRequiredKeys(items)) == 0
}

// UnmetRequiredKeys returns the keys of every required item not yet done,
// preserving checklist order.
func UnmetRequiredKeys(items []ChecklistItem) []string {
	unmet := make([]string, 0)
	for _, item := range items {
		if item.Required && !item.Done {
			unmet = append(unmet, item.Key)
		}
	}
	return unmet
}

// MarkDone marks one item done in place with completion attribution.
func MarkDone(items []ChecklistItem, key, actor string, now time.Time) error {
	return setItemDone(items, key, true, actor, now)
}

// MarkUndone clears one item's done state in place.
func MarkUndone(items []ChecklistItem, key string, now time.Time) error {
	return setItemDone(items, key, false, "", now)
}

func setItemDone(items []ChecklistItem, key string, done bool, actor string, now time.Time) error {
	for i := range items {
		if items[i].Key != key {
			continue
		}
		items[i].Done = done
		if done {
			ts := now.UTC()
			items[i].CompletedAt = &ts
			items[i].CompletedBy = strings.TrimSpace(actor)
		} else {
			items[i].CompletedAt = nil
			items[i].CompletedBy = ""
		}
		return nil
	}
	return ErrUnknownItemKey
}

// ItemKey derives a stable slug key from a checklist item label.
func ItemKey(label string) string {
	label = strings.TrimSpace(strings.ToLower(label))
	var b strings.Builder
	lastDash := false
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// DefaultTemplates returns the built-in checklist tables. Items carrying an
// "(if ...)" qualifier are advisory and never gate a transition. FHA loans get
// the FHA extras; every other program gets the conventional extras.
func DefaultTemplates() Templates {
	nonFHAExtras := map[Stage][]TemplateItem{
		StageProcessing: {
			{Label: "PMI quote obtained (if <20% down)", Required: false},
			{Label: "Gift letter collected (if applicable)", Required: false},
			{Label: "Reserve verification", Required: true},
		},
	}
	return Templates{
		Base: map[Stage][]TemplateItem{
			StageApplication: {
				{Label: "Initial application (1003) completed", Required: true},
				{Label: "Credit report pulled", Required: true},
				{Label: "Borrower ID verified", Required: true},
				{Label: "Disclosures sent (LE, intent to proceed)", Required: true},
				{Label: "Preapproval letter issued", Required: true},
				{Label: "Loan program selected", Required: true},
			},
			StageProcessing: {
				{Label: "Income docs collected (paystubs, W2s, tax returns)", Required: true},
				{Label: "Asset docs collected (bank statements)", Required: true},
				{Label: "VOE ordered / completed", Required: true},
				{Label: "Credit report reviewed", Required: true},
				{Label: "Appraisal ordered", Required: true},
				{Label: "Title ordered", Required: true},
				{Label: "Insurance quote obtained", Required: true},
				{Label: "HOI binder requested", Required: true},
				{Label: "Survey ordered (if needed)", Required: false},
				{Label: "Flood cert ordered", Required: true},
			},
			StageUnderwriting: {
				{Label: "File submitted to underwriting", Required: true},
				{Label: "AUS findings reviewed (DU/LP)", Required: true},
				{Label: "Income calculated & documented", Required: true},
				{Label: "Assets verified", Required: true},
				{Label: "Appraisal reviewed & approved", Required: true},
				{Label: "Title commitment reviewed", Required: true},
				{Label: "Insurance verified", Required: true},
			},
			StageConditionalApproval: {
				{Label: "Conditions list received", Required: true},
				{Label: "Prior-to-doc conditions cleared", Required: true},
				{Label: "Prior-to-closing conditions cleared", Required: true},
				{Label: "Updated docs collected (if needed)", Required: false},
				{Label: "Re-submitted to UW for final review", Required: true},
			},
			StageClearToClose: {
				{Label: "Final approval received", Required: true},
				{Label: "Closing Disclosure prepared", Required: true},
				{Label: "CD sent to borrower (3-day wait)", Required: true},
				{Label: "Wire instructions confirmed", Required: true},
				{Label: "Closing scheduled", Required: true},
				{Label: "Final walkthrough confirmed", Required: true},
			},
			StageClosing: {
				{Label: "Docs sent to title/attorney", Required: true},
				{Label: "Borrower signed", Required: true},
				{Label: "Funds wired", Required: true},
				{Label: "Note & deed recorded", Required: true},
			},
			StageFunded: {
				{Label: "Funding confirmed", Required: true},
				{Label: "Post-closing audit complete", Required: true},
				{Label: "File archived", Required: true},
			},
		},
		Extras: map[LoanProgram]map[Stage][]TemplateItem{
			ProgramFHA: {
				StageApplication: {
					{Label: "FHA case number assigned", Required: true},
					{Label: "UFMIP calculated", Required: true},
					{Label: "MIP calculations reviewed", Required: true},
				},
				StageProcessing: {
					{Label: "DPA program setup (if applicable)", Required: false},
					{Label: "FHA appraisal requirements noted", Required: true},
					{Label: "HOA certification (if condo)", Required: false},
					{Label: "FHA property standards checklist reviewed", Required: true},
				},
				StageUnderwriting: {
					{Label: "FHA-specific AUS (TOTAL Scorecard) reviewed", Required: true},
					{Label: "MIP premium schedule verified", Required: true},
					{Label: "FHA property standards compliance confirmed", Required: true},
				},
			},
			ProgramConventional: nonFHAExtras,
			ProgramVA:           nonFHAExtras,
			ProgramUSDA:         nonFHAExtras,
			ProgramNonQM:        nonFHAExtras,
		},
	}
}
