package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"ArgumentMiner/internal/batch"
	"ArgumentMiner/internal/domain"
	"ArgumentMiner/internal/ports"
)

// Extractor runs one extraction variant over a set of articles.
type Extractor interface {
	Variant() domain.Variant
	ProcessBatch(ctx context.Context, articles []domain.Article, outputDir string) (batch.Report, error)
	ProcessSequential(ctx context.Context, articles []domain.Article) ([]domain.ExtractionResult, domain.Usage)
}

// PipelineDeps wires all driven adapters into the extraction run.
type PipelineDeps struct {
	Source     ports.ArticleSource
	Extractor  Extractor
	Repository ports.ResultRepository
	Exporter   ports.ResultExporter
	Logger     *slog.Logger

	// Batch selects remote bulk jobs over sequential calls.
	Batch         bool
	WorkDir       string
	SkipProcessed bool
	Pricing       domain.Pricing
	NewRunID      func() string
}

// Summary describes a finished run.
type Summary struct {
	RunID    string
	Articles int
	Skipped  int
	Stats    domain.Stats
	Usage    domain.Usage
	Cost     float64
	Outputs  []string
	Phases   []batch.PhaseReport
}

// Pipeline implements the load, extract, export and persist workflow.
type Pipeline struct {
	source        ports.ArticleSource
	extractor     Extractor
	repository    ports.ResultRepository
	exporter      ports.ResultExporter
	logger        *slog.Logger
	batch         bool
	workDir       string
	skipProcessed bool
	pricing       domain.Pricing
	newRunID      func() string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	newRunID := deps.NewRunID
	if newRunID == nil {
		newRunID = uuid.NewString
	}
	return &Pipeline{
		source:        deps.Source,
		extractor:     deps.Extractor,
		repository:    deps.Repository,
		exporter:      deps.Exporter,
		logger:        logger,
		batch:         deps.Batch,
		workDir:       deps.WorkDir,
		skipProcessed: deps.SkipProcessed,
		pricing:       deps.Pricing,
		newRunID:      newRunID,
	}
}

// Run executes one extraction run end to end.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	if p.source == nil || p.extractor == nil {
		return Summary{}, fmt.Errorf("%w: pipeline needs a source and an extractor", domain.ErrConfiguration)
	}

	summary := Summary{RunID: p.newRunID()}
	logger := p.logger.With("run_id", summary.RunID, "pipeline", string(p.extractor.Variant()))

	articles, err := p.source.Load(ctx)
	if err != nil {
		return summary, fmt.Errorf("load articles: %w", err)
	}
	logger.Info("articles loaded", "count", len(articles))

	articles, summary.Skipped, err = p.pending(ctx, articles)
	if err != nil {
		return summary, err
	}
	summary.Articles = len(articles)
	if summary.Skipped > 0 {
		logger.Info("skipping already processed articles", "skipped", summary.Skipped, "remaining", len(articles))
	}
	if len(articles) == 0 {
		logger.Info("nothing to process")
		return summary, nil
	}

	var results []domain.ExtractionResult
	if p.batch {
		dir := filepath.Join(p.workDir, summary.RunID)
		report, err := p.extractor.ProcessBatch(ctx, articles, dir)
		summary.Phases = report.Phases
		summary.Usage = report.Usage
		if err != nil {
			var cancelled *batch.CancelledError
			if errors.As(err, &cancelled) {
				logger.Warn("run cancelled before results were collected",
					"phase", cancelled.Phase, "job_id", cancelled.JobID, "state", cancelled.State)
			}
			return summary, fmt.Errorf("batch extraction: %w", err)
		}
		results = report.Results
	} else {
		results, summary.Usage = p.extractor.ProcessSequential(ctx, articles)
	}

	summary.Stats = domain.Summarize(results)
	summary.Cost = summary.Usage.Cost(p.pricing)
	logger.Info("extraction completed", summary.Stats.LogValues()...)
	logger.Info("usage",
		"requests", summary.Usage.Requests,
		"prompt_tokens", summary.Usage.PromptTokens,
		"completion_tokens", summary.Usage.CompletionTokens,
		"cost", summary.Cost)

	if p.exporter != nil {
		summary.Outputs, err = p.exporter.Export(ctx, results)
		if err != nil {
			return summary, fmt.Errorf("export results: %w", err)
		}
	}

	if p.repository != nil {
		if err := p.repository.SaveResults(ctx, summary.RunID, results); err != nil {
			return summary, fmt.Errorf("persist results: %w", err)
		}
		logger.Debug("results persisted", "count", len(results))
	}

	return summary, nil
}

func (p *Pipeline) pending(ctx context.Context, articles []domain.Article) ([]domain.Article, int, error) {
	if !p.skipProcessed || p.repository == nil || len(articles) == 0 {
		return articles, 0, nil
	}

	ids := make([]string, len(articles))
	for i, art := range articles {
		ids[i] = art.ID
	}

	done, err := p.repository.ProcessedIDs(ctx, p.extractor.Variant(), ids)
	if err != nil {
		return nil, 0, fmt.Errorf("load processed: %w", err)
	}

	remaining := make([]domain.Article, 0, len(articles))
	for _, article := range articles {
		if done[article.ID] {
			continue
		}
		remaining = append(remaining, article)
	}
	return remaining, len(articles) - len(remaining), nil
}
