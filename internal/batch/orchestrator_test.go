package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArgumentMiner/internal/domain"
	"ArgumentMiner/internal/ports"
)

func lines(raw string) []string {
	var out []string
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// twoPhasePlan extracts items per article, then one detail per item.
func twoPhasePlan() Plan {
	return Plan{
		Variant: domain.VariantDirect,
		Phases: []Phase{
			{
				Name: "items",
				Tag:  "i",
				Build: func(articles []domain.Article, _ []PhaseResult) []Request {
					var reqs []Request
					for idx, a := range articles {
						reqs = append(reqs, Request{Key: ArticleKey("i", idx), Prompt: "items:" + a.Text})
					}
					return reqs
				},
			},
			{
				Name: "details",
				Tag:  "d",
				Build: func(articles []domain.Article, prior []PhaseResult) []Request {
					items := Values(PerArticle(prior[0], len(articles), lines))
					var reqs []Request
					for idx := range articles {
						for j, item := range items[idx] {
							reqs = append(reqs, Request{Key: ItemKey("d", idx, j), Prompt: "detail:" + item})
						}
					}
					return reqs
				},
			},
		},
		Combine: func(articles []domain.Article, results []PhaseResult) []domain.ExtractionResult {
			items := Values(PerArticle(results[0], len(articles), lines))
			details := PerItem(results[1], Counts(items), lines)
			out := make([]domain.ExtractionResult, len(articles))
			for idx := range articles {
				var args []domain.ArgumentRecord
				for j, item := range items[idx] {
					args = append(args, domain.ArgumentRecord{Conclusion: item, Premises: append([]string{}, details[idx][j].Value...)})
				}
				out[idx] = domain.ExtractionResult{Items: items[idx], Arguments: args}
			}
			return out
		},
	}
}

// scripted answers prompts from a fixed table; anything unknown is omitted.
func scripted(table map[string]string) func(domain.JobRequest) (string, bool) {
	return func(req domain.JobRequest) (string, bool) {
		text, ok := table[req.Prompt]
		return text, ok
	}
}

func newTestOrchestrator(svc ports.BatchService, policy FailurePolicy) *Orchestrator {
	return NewOrchestrator(NewRunner(svc, RunnerConfig{PollInterval: time.Millisecond}, nil), policy, nil)
}

func TestOrchestratorProcessesAllPhases(t *testing.T) {
	t.Parallel()

	svc := newFakeService(scripted(map[string]string{
		"items:first":  "1. alpha\n2. beta",
		"items:second": "",
		"detail:alpha": "- because a",
		"detail:beta":  "- because b",
	}))
	articles := []domain.Article{{ID: "a1", Text: "first"}, {ID: "a2", Text: "second"}}
	dir := t.TempDir()

	report, err := newTestOrchestrator(svc, DegradePhase).Process(context.Background(), twoPhasePlan(), articles, dir)
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.Equal(t, "a1", report.Results[0].ArticleID)
	assert.True(t, report.Results[0].Success)
	assert.Len(t, report.Results[0].Arguments, 2)
	assert.Equal(t, "a2", report.Results[1].ArticleID)
	assert.False(t, report.Results[1].Success)
	assert.Equal(t, domain.NoArgumentsReason, report.Results[1].ErrorMessage)

	assert.Equal(t, []string{
		filepath.Join(dir, "phase1_items.jsonl"),
		filepath.Join(dir, "phase2_details.jsonl"),
	}, svc.paths)

	var states []string
	for _, s := range report.Transitions {
		states = append(states, s.String())
	}
	assert.Equal(t, []string{
		"initialized",
		"phase1_submitted", "phase1_complete",
		"phase2_submitted", "phase2_complete",
		"combined", "done",
	}, states)

	require.Len(t, report.Phases, 2)
	assert.Equal(t, 2, report.Phases[0].Requested)
	assert.Equal(t, 2, report.Phases[1].Present)
	assert.Equal(t, 4, report.Usage.Requests)
}

func TestOrchestratorSkipsPhaseWithoutRequests(t *testing.T) {
	t.Parallel()

	svc := newFakeService(scripted(map[string]string{"items:x": ""}))
	articles := []domain.Article{{ID: "1", Text: "x"}, {ID: "2", Text: "y"}}

	report, err := newTestOrchestrator(svc, DegradePhase).Process(context.Background(), twoPhasePlan(), articles, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 1, svc.jobCount(), "second phase must not be submitted")
	assert.True(t, report.Phases[1].Skipped)
	assert.Equal(t, "phase2_skipped", report.Transitions[3].String())
	require.Len(t, report.Results, 2)
	for _, r := range report.Results {
		assert.False(t, r.Success)
		assert.Empty(t, r.Arguments)
	}
}

func TestOrchestratorDegradesFailedPhase(t *testing.T) {
	t.Parallel()

	svc := newFakeService(scripted(map[string]string{"items:x": "1. only"}))
	failing := &failSecondSubmit{fakeService: svc}
	orch := NewOrchestrator(NewRunner(failing, RunnerConfig{PollInterval: time.Millisecond}, nil), DegradePhase, nil)

	report, err := orch.Process(context.Background(), twoPhasePlan(), []domain.Article{{ID: "1", Text: "x"}}, t.TempDir())
	require.NoError(t, err)

	require.Len(t, report.Phases, 2)
	assert.Error(t, report.Phases[1].Err)
	assert.Equal(t, domain.JobFailed, report.Phases[1].State)

	// phase-1 data survives: the conclusion is kept with no premises
	require.Len(t, report.Results, 1)
	assert.True(t, report.Results[0].Success)
	assert.Equal(t, []string{"1. only"}, report.Results[0].Items)
	assert.Empty(t, report.Results[0].Arguments[0].Premises)
}

func TestOrchestratorFailBatchPolicy(t *testing.T) {
	t.Parallel()

	svc := newFakeService(scripted(map[string]string{"items:x": "1. only"}))
	failing := &failSecondSubmit{fakeService: svc}
	orch := NewOrchestrator(NewRunner(failing, RunnerConfig{PollInterval: time.Millisecond}, nil), FailBatch, nil)

	_, err := orch.Process(context.Background(), twoPhasePlan(), []domain.Article{{ID: "1", Text: "x"}}, t.TempDir())
	require.ErrorIs(t, err, domain.ErrTransport)
	assert.Contains(t, err.Error(), "phase 2 (details)")
}

func TestOrchestratorStopsOnCancellation(t *testing.T) {
	t.Parallel()

	svc := newFakeService(echo)
	svc.statuses = []domain.JobState{domain.JobInProgress}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	report, err := newTestOrchestrator(svc, DegradePhase).Process(ctx, twoPhasePlan(), []domain.Article{{ID: "1", Text: "x"}}, t.TempDir())
	require.ErrorIs(t, err, ErrCancelledBeforeCompletion)
	assert.Nil(t, report.Results)
	require.Len(t, report.Phases, 1)
	assert.Equal(t, "job-1", report.Phases[0].JobID)
	assert.Equal(t, 1, svc.jobCount())
}

func TestOrchestratorStopsWhenCancelledDuringSubmit(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	svc := &cancellingService{fakeService: newFakeService(echo), cancel: cancel, onSubmit: true}

	report, err := newTestOrchestrator(svc, DegradePhase).Process(ctx, twoPhasePlan(), []domain.Article{{ID: "1", Text: "x"}}, t.TempDir())
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, err, domain.ErrTransport)
	assert.Nil(t, report.Results)
	require.Len(t, report.Phases, 1)
	assert.Zero(t, svc.resultsCalls)
}

func TestOrchestratorStopsWhenCancelledDuringFetch(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	svc := &cancellingService{fakeService: newFakeService(echo), cancel: cancel}

	report, err := newTestOrchestrator(svc, DegradePhase).Process(ctx, twoPhasePlan(), []domain.Article{{ID: "1", Text: "x"}}, t.TempDir())
	require.ErrorIs(t, err, ErrCancelledBeforeCompletion)
	require.ErrorIs(t, err, context.Canceled)

	var cancelled *CancelledError
	require.True(t, errors.As(err, &cancelled))
	assert.Equal(t, "job-1", cancelled.JobID)
	assert.Equal(t, "i", cancelled.Phase)
	assert.Equal(t, domain.JobCompleted, cancelled.State)

	assert.Nil(t, report.Results)
	require.Len(t, report.Phases, 1)
	assert.Equal(t, "job-1", report.Phases[0].JobID)
	assert.Equal(t, 1, svc.jobCount(), "second phase must not be submitted")
}

func TestOrchestratorReportsDegradedFetchAsFailed(t *testing.T) {
	t.Parallel()

	svc := newFakeService(echo)
	svc.resultsErr = errors.Join(domain.ErrTransport, errors.New("connection reset"))

	report, err := newTestOrchestrator(svc, DegradePhase).Process(context.Background(), twoPhasePlan(), []domain.Article{{ID: "1", Text: "x"}}, t.TempDir())
	require.NoError(t, err)

	require.Len(t, report.Phases, 2)
	assert.Equal(t, "job-1", report.Phases[0].JobID)
	assert.Equal(t, domain.JobFailed, report.Phases[0].State)
	assert.Error(t, report.Phases[0].Err)
	assert.True(t, report.Phases[1].Skipped)
}

func TestOrchestratorWithNoArticles(t *testing.T) {
	t.Parallel()

	svc := newFakeService(echo)
	report, err := newTestOrchestrator(svc, DegradePhase).Process(context.Background(), twoPhasePlan(), nil, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	assert.Zero(t, svc.jobCount())
}

func TestOrchestratorRejectsInvalidPlan(t *testing.T) {
	t.Parallel()

	plan := twoPhasePlan()
	plan.Phases[1].Tag = plan.Phases[0].Tag
	_, err := newTestOrchestrator(newFakeService(echo), DegradePhase).Process(context.Background(), plan, nil, t.TempDir())
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestCombineIsIdempotent(t *testing.T) {
	t.Parallel()

	articles := []domain.Article{{ID: "1", Text: "x"}, {ID: "2", Text: "y"}, {ID: "3", Text: "z"}}
	results := []PhaseResult{
		NewPhaseResult("i", 3,
			Entry{Key: ArticleKey("i", 0), Text: "1. a\n2. b", Present: true},
			Entry{Key: ArticleKey("i", 2), Text: "1. c", Present: true}),
		NewPhaseResult("d", 3,
			Entry{Key: ItemKey("d", 0, 1), Text: "- p", Present: true},
			Entry{Key: ItemKey("d", 2, 0), Text: "- q\n- r", Present: true}),
	}

	first, err := json.Marshal(Combine(twoPhasePlan(), articles, results))
	require.NoError(t, err)
	second, err := json.Marshal(Combine(twoPhasePlan(), articles, results))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	combined := Combine(twoPhasePlan(), articles, results)
	require.Len(t, combined, 3)
	for _, r := range combined {
		assert.Equal(t, len(r.Arguments) > 0, r.Success)
		assert.Equal(t, !r.Success, r.ErrorMessage != "")
	}
}

func TestOrchestratorCreatesOutputDir(t *testing.T) {
	t.Parallel()

	svc := newFakeService(scripted(map[string]string{}))
	dir := filepath.Join(t.TempDir(), "nested", "run")
	_, err := newTestOrchestrator(svc, DegradePhase).Process(context.Background(), twoPhasePlan(), []domain.Article{{ID: "1", Text: "x"}}, dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

// failSecondSubmit lets the first job through and fails every later submission.
type failSecondSubmit struct {
	*fakeService
}

func (f *failSecondSubmit) SubmitJob(ctx context.Context, path string, requests []domain.JobRequest) (domain.JobHandle, error) {
	if f.jobCount() >= 1 {
		return domain.JobHandle{}, errors.Join(domain.ErrTransport, errors.New("upload refused"))
	}
	return f.fakeService.SubmitJob(ctx, path, requests)
}

// cancellingService cancels the caller's context from inside SubmitJob or
// GetResults and fails the call the way the HTTP client does.
type cancellingService struct {
	*fakeService
	cancel   context.CancelFunc
	onSubmit bool
}

func (c *cancellingService) SubmitJob(ctx context.Context, path string, requests []domain.JobRequest) (domain.JobHandle, error) {
	if c.onSubmit {
		c.cancel()
		return domain.JobHandle{}, fmt.Errorf("%w: POST /batches: %w", domain.ErrTransport, ctx.Err())
	}
	return c.fakeService.SubmitJob(ctx, path, requests)
}

func (c *cancellingService) GetResults(ctx context.Context, jobID string) ([]domain.JobResult, error) {
	c.mu.Lock()
	c.resultsCalls++
	c.mu.Unlock()
	c.cancel()
	return nil, fmt.Errorf("%w: GET /files/out/content: %w", domain.ErrTransport, ctx.Err())
}
