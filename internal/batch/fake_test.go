package batch

import (
	"context"
	"fmt"
	"sync"

	"ArgumentMiner/internal/domain"
)

// fakeService is an in-memory BatchService. CheckJob walks through statuses
// and then repeats the last one; respond decides what each request returns.
type fakeService struct {
	mu sync.Mutex

	statuses []domain.JobState
	respond  func(req domain.JobRequest) (string, bool)

	submitErr  error
	checkErr   error
	resultsErr error

	paths        []string
	submitted    map[string][]domain.JobRequest
	order        []string
	checks       int
	resultsCalls int
}

func newFakeService(respond func(req domain.JobRequest) (string, bool)) *fakeService {
	return &fakeService{respond: respond, submitted: map[string][]domain.JobRequest{}}
}

func (f *fakeService) SubmitJob(_ context.Context, path string, requests []domain.JobRequest) (domain.JobHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return domain.JobHandle{}, f.submitErr
	}
	id := fmt.Sprintf("job-%d", len(f.order)+1)
	f.paths = append(f.paths, path)
	f.order = append(f.order, id)
	f.submitted[id] = requests
	return domain.JobHandle{JobID: id, Status: domain.JobValidating, InputFileID: "file-" + id}, nil
}

func (f *fakeService) CheckJob(_ context.Context, jobID string) (domain.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkErr != nil {
		return domain.JobStatus{}, f.checkErr
	}
	state := domain.JobCompleted
	if len(f.statuses) > 0 {
		idx := f.checks
		if idx >= len(f.statuses) {
			idx = len(f.statuses) - 1
		}
		state = f.statuses[idx]
	}
	f.checks++
	return domain.JobStatus{JobID: jobID, Status: state}, nil
}

func (f *fakeService) GetResults(_ context.Context, jobID string) ([]domain.JobResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resultsCalls++
	if f.resultsErr != nil {
		return nil, f.resultsErr
	}
	reqs := f.submitted[jobID]
	out := make([]domain.JobResult, 0, len(reqs))
	// reversed so that nothing relies on response order
	for i := len(reqs) - 1; i >= 0; i-- {
		text, ok := f.respond(reqs[i])
		if !ok {
			continue
		}
		out = append(out, domain.JobResult{
			CustomID: reqs[i].CustomID,
			Content:  text,
			Usage:    domain.Usage{Requests: 1, PromptTokens: 10, CompletionTokens: 5},
		})
	}
	return out, nil
}

func (f *fakeService) jobCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}
