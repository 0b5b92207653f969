// Package extraction implements the argument extraction variants on top of
// the batch orchestrator and the synchronous completion client.
package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ArgumentMiner/internal/batch"
	"ArgumentMiner/internal/domain"
	"ArgumentMiner/internal/ports"
	"ArgumentMiner/internal/prompt"
)

type callFunc func(ctx context.Context, prompt string) (string, error)

type strategy interface {
	variant() domain.Variant
	plan() batch.Plan
	single(ctx context.Context, call callFunc, text string) ([]string, []domain.ArgumentRecord, error)
}

// Deps holds the collaborators an Extractor needs. Completer is required for
// the single-article path and Runner for batch mode.
type Deps struct {
	Completer     ports.Completer
	Runner        batch.PhaseRunner
	FailurePolicy batch.FailurePolicy
	Temperature   float64
	Logger        *slog.Logger
}

// Extractor runs one extraction variant either as batch jobs or as direct calls.
type Extractor struct {
	strategy     strategy
	completer    ports.Completer
	orchestrator *batch.Orchestrator
	temperature  float64
	logger       *slog.Logger
}

// New builds the extractor for variant using prompts.
func New(variant domain.Variant, prompts prompt.Set, deps Deps) (*Extractor, error) {
	if err := prompts.Validate(variant); err != nil {
		return nil, err
	}

	var s strategy
	switch variant {
	case domain.VariantDirect:
		s = direct{prompts: prompts}
	case domain.VariantSocratic:
		s = socratic{prompts: prompts}
	default:
		return nil, fmt.Errorf("%w: unknown pipeline %q", domain.ErrConfiguration, variant)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("pipeline", string(variant))

	e := &Extractor{
		strategy:    s,
		completer:   deps.Completer,
		temperature: deps.Temperature,
		logger:      logger,
	}
	if deps.Runner != nil {
		e.orchestrator = batch.NewOrchestrator(deps.Runner, deps.FailurePolicy, logger)
	}
	return e, nil
}

// Variant reports which pipeline this extractor runs.
func (e *Extractor) Variant() domain.Variant {
	return e.strategy.variant()
}

// Plan exposes the phase plan used in batch mode.
func (e *Extractor) Plan() batch.Plan {
	return e.strategy.plan()
}

// ProcessBatch runs every phase as a remote batch job, writing request files
// into outputDir. The report always holds one result per article.
func (e *Extractor) ProcessBatch(ctx context.Context, articles []domain.Article, outputDir string) (batch.Report, error) {
	if e.orchestrator == nil {
		return batch.Report{}, fmt.Errorf("%w: batch mode needs a batch service", domain.ErrConfiguration)
	}
	return e.orchestrator.Process(ctx, e.strategy.plan(), articles, outputDir)
}

// ProcessSingle extracts arguments from one article with sequential calls.
// Errors never escape; they end up in the result's error message.
func (e *Extractor) ProcessSingle(ctx context.Context, article domain.Article) (domain.ExtractionResult, domain.Usage) {
	variant := e.strategy.variant()
	if e.completer == nil {
		err := fmt.Errorf("%w: single mode needs a completion client", domain.ErrConfiguration)
		return domain.FailedExtraction(variant, article, nil, err), domain.Usage{}
	}
	if strings.TrimSpace(article.Text) == "" {
		return domain.NewExtractionResult(variant, article, nil, nil), domain.Usage{}
	}

	var usage domain.Usage
	call := func(ctx context.Context, p string) (string, error) {
		c, err := e.completer.Call(ctx, p, e.temperature)
		if err != nil {
			return "", err
		}
		usage = usage.Add(c.Usage)
		return c.Text, nil
	}

	items, args, err := e.strategy.single(ctx, call, article.Text)
	if err != nil {
		e.logger.Warn("article extraction failed", "article_id", article.ID, "error", err)
		return domain.FailedExtraction(variant, article, items, err), usage
	}
	return domain.NewExtractionResult(variant, article, items, args), usage
}

// ProcessSequential runs ProcessSingle over every article. One article's
// failure does not stop the others; once ctx is done the rest are marked failed.
func (e *Extractor) ProcessSequential(ctx context.Context, articles []domain.Article) ([]domain.ExtractionResult, domain.Usage) {
	e.logger.Info("processing articles sequentially", "articles", len(articles))

	results := make([]domain.ExtractionResult, 0, len(articles))
	var total domain.Usage
	for i, article := range articles {
		if err := ctx.Err(); err != nil {
			results = append(results, domain.FailedExtraction(e.strategy.variant(), article, nil, err))
			continue
		}
		res, usage := e.ProcessSingle(ctx, article)
		total = total.Add(usage)
		results = append(results, res)
		e.logger.Debug("article processed", "index", i, "article_id", article.ID, "success", res.Success, "arguments", len(res.Arguments))
	}
	return results, total
}
