package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidID       = errors.New("invalid id")
	ErrInvalidBorrower = errors.New("invalid borrower name")
	ErrInvalidStage    = errors.New("invalid stage")
	ErrInvalidProgram  = errors.New("invalid loan program")
	ErrInvalidAmount   = errors.New("invalid loan amount")
	ErrUnknownItemKey  = errors.New("unknown checklist item key")
	ErrStageNotReached = errors.New("stage not reached")
)

// ChecklistIncompleteError reports a blocked forward transition with every
// unmet required item key for the stage being left.
type ChecklistIncompleteError struct {
	Stage      Stage
	MissingKey []string
}

// Error renders the blocked stage and the full unmet-key list.
func (e *ChecklistIncompleteError) Error() string {
	return fmt.Sprintf("checklist incomplete for %s: %s", e.Stage, strings.Join(e.MissingKey, ", "))
}
