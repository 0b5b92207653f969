package extraction

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ArgumentMiner/internal/domain"
	"ArgumentMiner/internal/prompt"
)

// testPrompts makes every rendered prompt easy to match on.
var testPrompts = prompt.Set{
	ConclusionExtraction: "C|{text}",
	PremiseExtraction:    "P|{conclusion}",
	QuestionExtraction:   "Q|{text}",
	QuestionAnswering:    "A|{question}",
	ArgumentConstruction: "G|{question}|{answer}",
}

// scriptedService answers batch requests by custom id; ids without a
// response are left out of the output.
type scriptedService struct {
	mu        sync.Mutex
	responses map[string]string
	jobs      [][]domain.JobRequest
}

func newScriptedService(responses map[string]string) *scriptedService {
	return &scriptedService{responses: responses}
}

func (s *scriptedService) SubmitJob(_ context.Context, _ string, requests []domain.JobRequest) (domain.JobHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, requests)
	return domain.JobHandle{JobID: fmt.Sprintf("job-%d", len(s.jobs)), Status: domain.JobValidating}, nil
}

func (s *scriptedService) CheckJob(_ context.Context, jobID string) (domain.JobStatus, error) {
	return domain.JobStatus{JobID: jobID, Status: domain.JobCompleted}, nil
}

func (s *scriptedService) GetResults(_ context.Context, jobID string) ([]domain.JobResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var idx int
	if _, err := fmt.Sscanf(jobID, "job-%d", &idx); err != nil {
		return nil, err
	}
	var out []domain.JobResult
	for _, req := range s.jobs[idx-1] {
		if text, ok := s.responses[req.CustomID]; ok {
			out = append(out, domain.JobResult{CustomID: req.CustomID, Content: text, Usage: domain.Usage{Requests: 1}})
		}
	}
	return out, nil
}

// submittedIDs returns the sorted custom ids of the n-th submitted job.
func (s *scriptedService) submittedIDs(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.jobs[n]))
	for _, req := range s.jobs[n] {
		ids = append(ids, req.CustomID)
	}
	sort.Strings(ids)
	return ids
}

func (s *scriptedService) jobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// scriptedCompleter answers synchronous calls by exact prompt.
type scriptedCompleter struct {
	responses map[string]string
	failures  map[string]error
	calls     []string
}

func (c *scriptedCompleter) Call(_ context.Context, p string, _ float64) (domain.Completion, error) {
	c.calls = append(c.calls, p)
	if err, ok := c.failures[p]; ok {
		return domain.Completion{}, err
	}
	return domain.Completion{
		Text:  c.responses[p],
		Usage: domain.Usage{Requests: 1, PromptTokens: 10, CompletionTokens: 5},
	}, nil
}
