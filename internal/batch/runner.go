package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ArgumentMiner/internal/domain"
	"ArgumentMiner/internal/ports"
)

// FetchPolicy decides whether results are fetched after a job ends in a
// terminal state other than completed.
type FetchPolicy string

const (
	FetchAlways        FetchPolicy = "always"
	FetchCompletedOnly FetchPolicy = "completed_only"
)

const defaultPollInterval = 30 * time.Second

// Request pairs a correlation key with the prompt sent for it.
type Request struct {
	Key    Key
	Prompt string
}

// RunnerConfig controls how a phase job is submitted and awaited.
type RunnerConfig struct {
	Model        string
	Temperature  float64
	PollInterval time.Duration
	// Timeout bounds the wait for a terminal state; zero waits until ctx is done.
	Timeout     time.Duration
	FetchPolicy FetchPolicy
}

// Runner drives one phase end to end: submit, poll until terminal, fetch.
type Runner struct {
	service ports.BatchService
	cfg     RunnerConfig
	logger  *slog.Logger
}

// NewRunner wires a runner around the remote batch service.
func NewRunner(service ports.BatchService, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.FetchPolicy == "" {
		cfg.FetchPolicy = FetchAlways
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{service: service, cfg: cfg, logger: logger}
}

// Run submits requests as one job written to path and waits for it. Transport
// failures are returned as errors; a job that ends badly is not an error and
// yields whatever partial results the service still returns.
func (r *Runner) Run(ctx context.Context, path string, requests []Request) (PhaseResult, error) {
	tag, err := validateRequests(requests)
	if err != nil {
		return EmptyResult(tag), err
	}

	jobRequests := make([]domain.JobRequest, len(requests))
	for i, req := range requests {
		jobRequests[i] = domain.JobRequest{
			CustomID:    req.Key.String(),
			Prompt:      req.Prompt,
			Model:       r.cfg.Model,
			Temperature: r.cfg.Temperature,
		}
	}

	handle, err := r.service.SubmitJob(ctx, path, jobRequests)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
			err = fmt.Errorf("%w: %w", err, ctx.Err())
		}
		return EmptyResult(tag), fmt.Errorf("submit phase %s: %w", tag, err)
	}
	r.logger.Info("batch job created", "phase", tag, "job_id", handle.JobID, "requests", len(requests), "file", path)

	state, err := r.wait(ctx, tag, handle)
	if err != nil {
		res := EmptyResult(tag)
		res.JobID = handle.JobID
		res.Requested = len(requests)
		return res, err
	}

	res := NewPhaseResult(tag, len(requests))
	res.JobID = handle.JobID
	res.State = state

	if state != domain.JobCompleted && r.cfg.FetchPolicy == FetchCompletedOnly {
		r.logger.Warn("job ended without completing, results not fetched", "phase", tag, "job_id", handle.JobID, "state", state)
		return res, nil
	}

	records, err := r.service.GetResults(ctx, handle.JobID)
	if err != nil {
		if ctx.Err() != nil {
			return res, &CancelledError{Phase: tag, JobID: handle.JobID, State: state, Cause: ctx.Err()}
		}
		return res, fmt.Errorf("fetch results of phase %s: %w", tag, err)
	}
	r.collect(&res, requests, records)

	if res.Partial() {
		r.logger.Warn("phase returned partial results",
			"phase", tag, "job_id", handle.JobID, "state", state,
			"requested", res.Requested, "present", res.Present())
	}
	return res, nil
}

func (r *Runner) wait(ctx context.Context, tag string, handle domain.JobHandle) (domain.JobState, error) {
	var deadline <-chan time.Time
	if r.cfg.Timeout > 0 {
		timer := time.NewTimer(r.cfg.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	state := handle.Status
	for {
		status, err := r.service.CheckJob(ctx, handle.JobID)
		if err != nil {
			if ctx.Err() != nil {
				return state, &CancelledError{Phase: tag, JobID: handle.JobID, State: state, Cause: ctx.Err()}
			}
			return state, fmt.Errorf("check phase %s job %s: %w", tag, handle.JobID, err)
		}
		state = status.Status
		r.logger.Debug("batch job status", "phase", tag, "job_id", handle.JobID, "status", state)
		if status.IsComplete() {
			return state, nil
		}

		select {
		case <-ctx.Done():
			return state, &CancelledError{Phase: tag, JobID: handle.JobID, State: state, Cause: ctx.Err()}
		case <-deadline:
			r.logger.Warn("batch job timed out", "phase", tag, "job_id", handle.JobID, "last_status", state, "timeout", r.cfg.Timeout)
			return domain.JobTimedOut, nil
		case <-ticker.C:
		}
	}
}

// collect keeps the first line returned for each requested key. Lines for
// keys that were never submitted are dropped along with their usage.
func (r *Runner) collect(res *PhaseResult, requests []Request, records []domain.JobResult) {
	requested := make(map[Key]struct{}, len(requests))
	for _, req := range requests {
		requested[req.Key] = struct{}{}
	}
	for _, rec := range records {
		key, err := ParseKey(rec.CustomID)
		if err != nil {
			r.logger.Warn("dropping result with unparseable key", "phase", res.Tag, "custom_id", rec.CustomID, "error", err)
			continue
		}
		if _, ok := requested[key]; !ok {
			r.logger.Warn("dropping result for a key that was not requested", "phase", res.Tag, "custom_id", rec.CustomID)
			continue
		}
		if _, dup := res.entries[key]; dup {
			r.logger.Warn("dropping duplicate result", "phase", res.Tag, "custom_id", rec.CustomID)
			continue
		}
		res.entries[key] = Entry{Key: key, Text: rec.Content, Present: rec.Content != ""}
		res.Usage = res.Usage.Add(rec.Usage)
	}
}

func validateRequests(requests []Request) (string, error) {
	if len(requests) == 0 {
		return "", ErrEmptyBatch
	}
	tag := requests[0].Key.Tag
	seen := make(map[Key]struct{}, len(requests))
	for _, req := range requests {
		if err := req.Key.Validate(); err != nil {
			return tag, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
		}
		if req.Key.Tag != tag {
			return tag, fmt.Errorf("%w: mixed phase tags %q and %q in one batch", domain.ErrConfiguration, tag, req.Key.Tag)
		}
		if _, dup := seen[req.Key]; dup {
			return tag, fmt.Errorf("%w: duplicate correlation key %s", domain.ErrConfiguration, req.Key)
		}
		seen[req.Key] = struct{}{}
	}
	return tag, nil
}
