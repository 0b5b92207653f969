package batch

import (
	"errors"
	"fmt"

	"ArgumentMiner/internal/domain"
)

var (
	// ErrEmptyBatch is returned when a phase is asked to submit zero requests.
	ErrEmptyBatch = fmt.Errorf("%w: empty request batch", domain.ErrConfiguration)
	// ErrCancelledBeforeCompletion marks a wait abandoned while the job was still running remotely.
	ErrCancelledBeforeCompletion = errors.New("cancelled before job completion")
)

// CancelledError keeps the id of a job the caller stopped following, either
// while it was still running remotely or before its results were fetched.
// State is the last status seen, empty when the job was never checked.
type CancelledError struct {
	Phase string
	JobID string
	State domain.JobState
	Cause error
}

func (e *CancelledError) Error() string {
	if e.State != "" {
		return fmt.Sprintf("phase %s: job %s (%s) %s: %v", e.Phase, e.JobID, e.State, ErrCancelledBeforeCompletion, e.Cause)
	}
	return fmt.Sprintf("phase %s: job %s %s: %v", e.Phase, e.JobID, ErrCancelledBeforeCompletion, e.Cause)
}

func (e *CancelledError) Is(target error) bool {
	return target == ErrCancelledBeforeCompletion
}

func (e *CancelledError) Unwrap() error {
	return e.Cause
}
