package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"ArgumentMiner/internal/batch"
	"ArgumentMiner/internal/config"
	"ArgumentMiner/internal/domain"
	"ArgumentMiner/internal/extraction"
	"ArgumentMiner/internal/infrastructure/export"
	"ArgumentMiner/internal/infrastructure/llm"
	"ArgumentMiner/internal/infrastructure/source"
	"ArgumentMiner/internal/infrastructure/storage"
	"ArgumentMiner/internal/logging"
	"ArgumentMiner/internal/ports"
	"ArgumentMiner/internal/prompt"
	"ArgumentMiner/internal/usecase"
)

// Application wires configs to use cases.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	client ports.CompletionService
	db     *sql.DB
}

// New validates the configuration and builds the OpenAI client.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := llm.NewClient(cfg.OpenAI, baseLogger.With("component", "openai"))
	if err != nil {
		return nil, err
	}
	return &Application{cfg: cfg, logger: baseLogger, client: client}, nil
}

// Run performs one extraction run.
func (a *Application) Run(ctx context.Context) (usecase.Summary, error) {
	prompts, err := prompt.Load(a.cfg.Prompts.Path)
	if err != nil {
		return usecase.Summary{}, err
	}

	runner := batch.NewRunner(a.client, batch.RunnerConfig{
		Model:        a.cfg.OpenAI.Model,
		Temperature:  a.cfg.OpenAI.Temperature,
		PollInterval: a.cfg.Batch.PollInterval,
		Timeout:      a.cfg.Batch.Timeout,
		FetchPolicy:  a.cfg.Batch.FetchPolicy,
	}, a.logger.With("component", "batch.runner"))

	extractor, err := extraction.New(a.cfg.Pipeline.Name, prompts, extraction.Deps{
		Completer:     a.client,
		Runner:        runner,
		FailurePolicy: a.cfg.Batch.FailurePolicy,
		Temperature:   a.cfg.OpenAI.Temperature,
		Logger:        a.logger.With("component", "extraction"),
	})
	if err != nil {
		return usecase.Summary{}, err
	}

	var repository ports.ResultRepository
	if a.cfg.Database.DSN != "" {
		repo, err := a.repository(ctx)
		if err != nil {
			return usecase.Summary{}, err
		}
		repository = repo
	}

	src := source.NewFileSource(source.DefaultRegistry(), a.cfg.Input, a.logger.With("component", "source"))
	exporter := export.NewFileExporter(a.cfg.Output, a.cfg.Input.File, a.logger.With("component", "export"))

	a.logger.Info("starting run",
		"pipeline", a.cfg.Pipeline.Name,
		"mode", a.cfg.Pipeline.Mode,
		"input", a.cfg.Input.File,
		"output_dir", a.cfg.Output.Dir,
		"format", a.cfg.Output.Format)

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:        src,
		Extractor:     extractor,
		Repository:    repository,
		Exporter:      exporter,
		Logger:        a.logger.With("component", "pipeline"),
		Batch:         a.cfg.Pipeline.Mode == config.ModeBatch,
		WorkDir:       a.cfg.Batch.WorkDir,
		SkipProcessed: a.cfg.Pipeline.SkipProcessed,
		Pricing:       a.cfg.Pricing,
	})
	return pipeline.Run(ctx)
}

func (a *Application) repository(ctx context.Context) (*storage.PostgresRepository, error) {
	if a.db == nil {
		db, err := storage.Open(ctx, a.cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		a.db = db
	}
	repo := storage.NewPostgresRepository(a.db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// JobStatus reports the remote state of a batch job.
func (a *Application) JobStatus(ctx context.Context, jobID string) (domain.JobStatus, error) {
	if jobID == "" {
		return domain.JobStatus{}, fmt.Errorf("%w: job id is required", domain.ErrConfiguration)
	}
	return a.client.CheckJob(ctx, jobID)
}

// JobResults downloads whatever output a batch job has produced.
func (a *Application) JobResults(ctx context.Context, jobID string) ([]domain.JobResult, error) {
	if jobID == "" {
		return nil, fmt.Errorf("%w: job id is required", domain.ErrConfiguration)
	}
	return a.client.GetResults(ctx, jobID)
}

// Close releases the database connection, if any.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	if err != nil && !errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
