package domain

import "fmt"

// Lifecycle stages in workflow order. A task enters requirement_refiner
// on creation and can only move forward one stage at a time.
const (
	StageRequirementRefiner = "requirement_refiner"
	StageDesignGuidance     = "design_guidance"
	StageBuildGuidance      = "build_guidance"
	StageAcceptanceCriteria = "acceptance_criteria"
	StageDeployment         = "deployment"
)

// Sub-states of the current lifecycle stage.
const (
	SubInProgress        = "in_progress"
	SubPendingValidation = "pending_validation"
	SubApproved          = "approved"
	SubRejected          = "rejected"
)

var stageOrder = []string{
	StageRequirementRefiner,
	StageDesignGuidance,
	StageBuildGuidance,
	StageAcceptanceCriteria,
	StageDeployment,
}

func StageIndex(stage string) int {
	for i, s := range stageOrder {
		if s == stage {
			return i
		}
	}
	return -1
}

func IsValidStage(stage string) bool { return StageIndex(stage) >= 0 }

func IsValidSubState(sub string) bool {
	switch sub {
	case SubInProgress, SubPendingValidation, SubApproved, SubRejected:
		return true
	}
	return false
}

func IsFinalStage(stage string) bool { return stage == StageDeployment }

// NextStage returns the stage after the given one. Advancing past
// deployment is an error; callers mark the task completed instead.
func NextStage(stage string) (string, error) {
	i := StageIndex(stage)
	if i < 0 {
		return "", fmt.Errorf("unknown lifecycle stage %q", stage)
	}
	if i == len(stageOrder)-1 {
		return "", fmt.Errorf("stage %q is the final stage", stage)
	}
	return stageOrder[i+1], nil
}

// Progress maps a (stage, sub-state) pair to a percentage. Each stage is
// worth 20 points; pending_validation docks 5, rejected docks 10. The
// result is clamped to [0,100].
func Progress(stage, sub string) int {
	i := StageIndex(stage)
	if i < 0 {
		return 0
	}
	pct := (i + 1) * 20
	switch sub {
	case SubPendingValidation:
		pct -= 5
	case SubRejected:
		pct -= 10
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}
