package batch

import "fmt"

// Stage is a step of the orchestrator state machine.
type Stage int

const (
	StageInitialized Stage = iota
	StagePhaseSubmitted
	StagePhaseComplete
	StagePhaseSkipped
	StageCombined
	StageDone
)

// State is a stage, qualified by the 1-based phase number for phase stages.
type State struct {
	Stage Stage
	Phase int
}

func (s State) String() string {
	switch s.Stage {
	case StageInitialized:
		return "initialized"
	case StagePhaseSubmitted:
		return fmt.Sprintf("phase%d_submitted", s.Phase)
	case StagePhaseComplete:
		return fmt.Sprintf("phase%d_complete", s.Phase)
	case StagePhaseSkipped:
		return fmt.Sprintf("phase%d_skipped", s.Phase)
	case StageCombined:
		return "combined"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s.Stage))
	}
}
