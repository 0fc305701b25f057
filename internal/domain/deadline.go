package domain

import "time"

// Deadline is a loan's single tracked due date. A loan with no Deadline is
// unscheduled.
type Deadline struct {
	DueDate time.Time
	Note    string
}

// Urgency buckets a deadline by days remaining. The ordering of the constants
// matches escalation severity, most urgent first.
type Urgency string

const (
	UrgencyOverdue     Urgency = "overdue"
	UrgencyCritical    Urgency = "critical"
	UrgencyWarning     Urgency = "warning"
	UrgencyUpcoming    Urgency = "upcoming"
	UrgencyNormal      Urgency = "normal"
	UrgencyUnscheduled Urgency = "unscheduled"
)

// DaysRemaining is the whole days between now and due, truncated toward zero.
// A due date later today yields 0; one that passed yesterday yields a
// negative count.
func DaysRemaining(due, now time.Time) int {
	return int(due.Sub(now).Hours() / 24)
}

// Classify maps a days-remaining count to its urgency bucket.
func Classify(daysRemaining int) Urgency {
	switch {
	case daysRemaining < 0:
		return UrgencyOverdue
	case daysRemaining <= 1:
		return UrgencyCritical
	case daysRemaining <= 5:
		return UrgencyWarning
	case daysRemaining <= 14:
		return UrgencyUpcoming
	default:
		return UrgencyNormal
	}
}

// ClassifyDeadline classifies a possibly-absent deadline, returning the
// urgency alongside the days remaining. Days remaining is meaningless when
// the urgency is UrgencyUnscheduled.
func ClassifyDeadline(d *Deadline, now time.Time) (Urgency, int) {
	if d == nil {
		return UrgencyUnscheduled, 0
	}
	days := DaysRemaining(d.DueDate, now)
	return Classify(days), days
}
