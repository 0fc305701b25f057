package domain

import "time"

// MilestoneKind tags the flavor of an event on a loan's history.
type MilestoneKind string

const (
	MilestoneCreated   MilestoneKind = "created"
	MilestoneStage     MilestoneKind = "stage"
	MilestoneChecklist MilestoneKind = "checklist"
)

// MilestoneEvent is one append-only entry in a loan's history. Stage events
// carry From/To, checklist events carry the item key, creation events carry
// the opening stage in To.
type MilestoneEvent struct {
	Timestamp time.Time
	Kind      MilestoneKind
	From      Stage
	To        Stage
	ItemKey   string
	Actor     string
	Note      string
}

func stageMilestone(from, to Stage, actor, note string, now time.Time) MilestoneEvent {
	return MilestoneEvent{
		Timestamp: now.UTC(),
		Kind:      MilestoneStage,
		From:      from,
		To:        to,
		Actor:     actor,
		Note:      note,
	}
}

func checklistMilestone(stage Stage, key, actor, note string, now time.Time) MilestoneEvent {
	return MilestoneEvent{
		Timestamp: now.UTC(),
		Kind:      MilestoneChecklist,
		To:        stage,
		ItemKey:   key,
		Actor:     actor,
		Note:      note,
	}
}
