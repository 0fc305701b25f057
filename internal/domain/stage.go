package domain

import (
	"slices"
	"strings"
)

// Stage identifies one position in the seven-stage loan pipeline.
type Stage string

// Pipeline stages in processing order. Funded is terminal.
const (
	StageApplication         Stage = "Application"
	StageProcessing          Stage = "Processing"
	StageUnderwriting        Stage = "Underwriting"
	StageConditionalApproval Stage = "Conditional Approval"
	StageClearToClose        Stage = "Clear to Close"
	StageClosing             Stage = "Closing"
	StageFunded              Stage = "Funded"
)

// pipelineStages stores the stage order. Defined once; never mutated.
var pipelineStages = []Stage{
	StageApplication,
	StageProcessing,
	StageUnderwriting,
	StageConditionalApproval,
	StageClearToClose,
	StageClosing,
	StageFunded,
}

// Stages returns the pipeline stages in processing order.
func Stages() []Stage {
	return slices.Clone(pipelineStages)
}

// ParseStage validates and canonicalizes one stage value.
func ParseStage(raw string) (Stage, error) {
	trimmed := strings.TrimSpace(raw)
	for _, stage := range pipelineStages {
		if strings.EqualFold(trimmed, string(stage)) {
			return stage, nil
		}
	}
	return "", ErrInvalidStage
}

// IsValidStage reports whether a stage is one of the seven registered stages.
func IsValidStage(stage Stage) bool {
	return slices.Contains(pipelineStages, stage)
}

// StageIndex returns the zero-based pipeline position of a stage.
func StageIndex(stage Stage) (int, error) {
	idx := slices.Index(pipelineStages, stage)
	if idx < 0 {
		return 0, ErrInvalidStage
	}
	return idx, nil
}

// IsForward reports whether moving from one stage to another advances the pipeline.
func IsForward(from, to Stage) (bool, error) {
	fromIdx, err := StageIndex(from)
	if err != nil {
		return false, err
	}
	toIdx, err := StageIndex(to)
	if err != nil {
		return false, err
	}
	return toIdx > fromIdx, nil
}

// NextStage returns the stage after the given one, or false when terminal.
func NextStage(stage Stage) (Stage, bool) {
	idx := slices.Index(pipelineStages, stage)
	if idx < 0 || idx == len(pipelineStages)-1 {
		return "", false
	}
	return pipelineStages[idx+1], true
}
