package domain

// JobState is the lifecycle state reported for an asynchronous bulk job.
type JobState string

const (
	JobValidating JobState = "validating"
	JobInProgress JobState = "in_progress"
	JobFinalizing JobState = "finalizing"
	JobCancelling JobState = "cancelling"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
	JobExpired    JobState = "expired"
	JobCancelled  JobState = "cancelled"
	// JobTimedOut is assigned locally when polling gives up on a job.
	JobTimedOut JobState = "timed_out"
)

// Terminal reports whether no further transition is expected.
func (s JobState) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobExpired, JobCancelled, JobTimedOut:
		return true
	default:
		return false
	}
}

// JobRequest is one prompt submitted as part of a bulk job.
type JobRequest struct {
	CustomID    string
	Prompt      string
	Model       string
	Temperature float64
}

// JobHandle is returned when a bulk job has been accepted.
type JobHandle struct {
	JobID       string
	Status      JobState
	InputFileID string
}

// JobStatus is a point-in-time view of a bulk job.
type JobStatus struct {
	JobID        string   `json:"job_id"`
	Status       JobState `json:"status"`
	InputFileID  string   `json:"input_file_id"`
	OutputFileID string   `json:"output_file_id,omitempty"`
	ErrorFileID  string   `json:"error_file_id,omitempty"`
}

// IsComplete reports whether the job reached a terminal state.
func (s JobStatus) IsComplete() bool {
	return s.Status.Terminal()
}

// JobResult is one line of a bulk job's output. Content is empty when the
// request failed or returned no choices.
type JobResult struct {
	CustomID string `json:"custom_id"`
	Content  string `json:"content"`
	Usage    Usage  `json:"usage"`
}

// Completion is the answer to a single synchronous call.
type Completion struct {
	Text  string
	Usage Usage
}
