package pipeline

import (
	"errors"
	"fmt"

	"github.com/Veraticus/the-observer/internal/common"
)

// State is where an intake stopped.
type State string

// Intake states, in order.
const (
	StateCaptured          State = "captured"
	StateExtracted         State = "extracted"
	StateStructured        State = "structured"
	StateReportSynthesized State = "report_synthesized"
	StatePersisted         State = "persisted"
	StateScored            State = "scored"
	StateComplete          State = "complete"
	StateFailed            State = "failed"
)

// PipelineError reports the stage an intake failed in. Err is the stage's own
// error, unmodified.
type PipelineError struct {
	Err   error
	Stage common.Stage
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("intake failed at %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage recorded in err, or "" when err is not a PipelineError.
func StageOf(err error) common.Stage {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return ""
}

func fail(stage common.Stage, err error) error {
	return &PipelineError{Stage: stage, Err: err}
}

// AlignmentFailure records a goal that could not be scored or stored.
// These never fail the intake.
type AlignmentFailure struct {
	Err      error
	GoalID   string
	GoalText string
}
