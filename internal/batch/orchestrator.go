package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"ArgumentMiner/internal/domain"
)

// FailurePolicy decides what happens when a phase cannot run at all.
type FailurePolicy string

const (
	// DegradePhase replaces a failed phase with an empty result and carries on.
	DegradePhase FailurePolicy = "degrade"
	// FailBatch aborts the whole batch with the phase error.
	FailBatch FailurePolicy = "fail"
)

// Phase describes one stage of a plan. Build receives the results of all
// earlier phases in order and returns the requests for this one.
type Phase struct {
	Name  string
	Tag   string
	Build func(articles []domain.Article, prior []PhaseResult) []Request
}

// CombineFunc turns the phase results into one record per article. It must
// not depend on anything but its arguments.
type CombineFunc func(articles []domain.Article, results []PhaseResult) []domain.ExtractionResult

// Plan is an N-phase extraction expressed as data.
type Plan struct {
	Variant domain.Variant
	Phases  []Phase
	Combine CombineFunc
}

// PhaseRunner runs one phase's request batch.
type PhaseRunner interface {
	Run(ctx context.Context, path string, requests []Request) (PhaseResult, error)
}

// PhaseReport summarises what happened to one phase.
type PhaseReport struct {
	Name      string
	Tag       string
	JobID     string
	State     domain.JobState
	Requested int
	Returned  int
	Present   int
	Skipped   bool
	Err       error
}

// Report is the outcome of Process.
type Report struct {
	Results     []domain.ExtractionResult
	Phases      []PhaseReport
	Usage       domain.Usage
	Transitions []State
}

// Orchestrator sequences the phases of a plan and combines their results.
type Orchestrator struct {
	runner PhaseRunner
	policy FailurePolicy
	logger *slog.Logger
}

// NewOrchestrator wires an orchestrator around a phase runner.
func NewOrchestrator(runner PhaseRunner, policy FailurePolicy, logger *slog.Logger) *Orchestrator {
	if policy == "" {
		policy = DegradePhase
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{runner: runner, policy: policy, logger: logger}
}

// Process runs every phase of plan over articles, writing request files into
// outputDir, and returns one result per article in input order. Only
// configuration errors, cancellation and, under FailBatch, phase failures are
// returned as errors; missing data ends up in the results instead.
func (o *Orchestrator) Process(ctx context.Context, plan Plan, articles []domain.Article, outputDir string) (Report, error) {
	if err := plan.validate(); err != nil {
		return Report{}, err
	}

	var report Report
	transition := func(s State) {
		report.Transitions = append(report.Transitions, s)
		o.logger.Debug("orchestrator state", "variant", plan.Variant, "state", s.String())
	}
	transition(State{Stage: StageInitialized})

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return report, fmt.Errorf("%w: create output dir: %v", domain.ErrConfiguration, err)
	}

	o.logger.Info("processing articles in batch mode", "variant", plan.Variant, "articles", len(articles))

	results := make([]PhaseResult, 0, len(plan.Phases))
	for i, phase := range plan.Phases {
		number := i + 1
		o.logger.Info("phase started", "phase", number, "name", phase.Name)

		requests := phase.Build(articles, results)
		pr := PhaseReport{Name: phase.Name, Tag: phase.Tag, Requested: len(requests)}

		if len(requests) == 0 {
			o.logger.Warn("phase has no requests, skipping", "phase", number, "name", phase.Name)
			pr.Skipped = true
			results = append(results, EmptyResult(phase.Tag))
			report.Phases = append(report.Phases, pr)
			transition(State{Stage: StagePhaseSkipped, Phase: number})
			continue
		}

		transition(State{Stage: StagePhaseSubmitted, Phase: number})
		path := filepath.Join(outputDir, fmt.Sprintf("phase%d_%s.jsonl", number, phase.Name))
		res, err := o.runner.Run(ctx, path, requests)
		pr.JobID = res.JobID
		pr.State = res.State
		if err != nil {
			pr.Err = err
			if o.fatal(ctx, err) {
				report.Phases = append(report.Phases, pr)
				return report, fmt.Errorf("phase %d (%s): %w", number, phase.Name, err)
			}
			o.logger.Warn("phase failed, continuing without its data", "phase", number, "name", phase.Name, "error", err)
			pr.State = domain.JobFailed
			report.Phases = append(report.Phases, pr)
			res = EmptyResult(phase.Tag)
			res.JobID = pr.JobID
			res.State = domain.JobFailed
		} else {
			pr.Returned = res.Len()
			pr.Present = res.Present()
			report.Phases = append(report.Phases, pr)
		}

		report.Usage = report.Usage.Add(res.Usage)
		results = append(results, res)
		transition(State{Stage: StagePhaseComplete, Phase: number})
		o.logger.Info("phase complete", "phase", number, "name", phase.Name,
			"job_id", res.JobID, "state", res.State, "requested", len(requests), "present", res.Present())
	}

	report.Results = Combine(plan, articles, results)
	transition(State{Stage: StageCombined})
	transition(State{Stage: StageDone})
	return report, nil
}

// Combine builds the final records from phase results. Calling it twice on
// the same inputs yields identical output.
func Combine(plan Plan, articles []domain.Article, results []PhaseResult) []domain.ExtractionResult {
	combined := plan.Combine(articles, results)
	out := make([]domain.ExtractionResult, len(articles))
	for i, article := range articles {
		if i < len(combined) {
			out[i] = domain.NewExtractionResult(plan.Variant, article, combined[i].Items, combined[i].Arguments)
			continue
		}
		out[i] = domain.NewExtractionResult(plan.Variant, article, nil, nil)
	}
	return out
}

func (o *Orchestrator) fatal(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, ErrCancelledBeforeCompletion) || errors.Is(err, domain.ErrConfiguration) {
		return true
	}
	return o.policy == FailBatch
}

func (p Plan) validate() error {
	if len(p.Phases) == 0 {
		return fmt.Errorf("%w: plan %s has no phases", domain.ErrConfiguration, p.Variant)
	}
	if p.Combine == nil {
		return fmt.Errorf("%w: plan %s has no combiner", domain.ErrConfiguration, p.Variant)
	}
	seen := map[string]bool{}
	for _, ph := range p.Phases {
		if ph.Build == nil {
			return fmt.Errorf("%w: phase %s has no request builder", domain.ErrConfiguration, ph.Name)
		}
		if err := ArticleKey(ph.Tag, 0).Validate(); err != nil {
			return fmt.Errorf("%w: phase %s: %v", domain.ErrConfiguration, ph.Name, err)
		}
		if seen[ph.Tag] {
			return fmt.Errorf("%w: phase tag %q reused", domain.ErrConfiguration, ph.Tag)
		}
		seen[ph.Tag] = true
	}
	return nil
}
