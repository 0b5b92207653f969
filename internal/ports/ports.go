package ports

import (
	"context"

	"ArgumentMiner/internal/domain"
)

// Completer performs one synchronous chat completion.
type Completer interface {
	Call(ctx context.Context, prompt string, temperature float64) (domain.Completion, error)
}

// BatchService runs bulk jobs on the remote completion service. SubmitJob
// persists the requests as JSONL at path before uploading them.
type BatchService interface {
	SubmitJob(ctx context.Context, path string, requests []domain.JobRequest) (domain.JobHandle, error)
	CheckJob(ctx context.Context, jobID string) (domain.JobStatus, error)
	GetResults(ctx context.Context, jobID string) ([]domain.JobResult, error)
}

// CompletionService is the full remote surface used by the extractors.
type CompletionService interface {
	Completer
	BatchService
}

// ArticleSource loads the input articles for a run.
type ArticleSource interface {
	Load(ctx context.Context) ([]domain.Article, error)
}

// ResultRepository persists extraction results for history and resumption.
type ResultRepository interface {
	ProcessedIDs(ctx context.Context, variant domain.Variant, ids []string) (map[string]bool, error)
	SaveResults(ctx context.Context, runID string, results []domain.ExtractionResult) error
}

// ResultExporter writes the final results somewhere consumable and returns the files written.
type ResultExporter interface {
	Export(ctx context.Context, results []domain.ExtractionResult) ([]string, error)
}
