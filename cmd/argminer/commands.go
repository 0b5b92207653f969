package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ArgumentMiner/internal/app"
	"ArgumentMiner/internal/config"
	"ArgumentMiner/internal/domain"
	"ArgumentMiner/internal/logging"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

type runOptions struct {
	pipeline      string
	mode          string
	input         string
	textColumn    string
	idColumn      string
	outputDir     string
	format        string
	startRow      int
	endRow        int
	numRows       int
	skipProcessed bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "argminer",
		Short:        "Extract arguments from articles with OpenAI batch jobs",
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load()
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $ARGMINER_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")

	cmd.AddCommand(newRunCommand(opts, &runOptions{}), newJobCommand(opts))
	return cmd
}

func newRunCommand(root *rootOptions, opts *runOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an extraction over the input file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(root)
			if err != nil {
				return err
			}
			opts.apply(cmd, &cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := application.Close(); err != nil {
					logger.Warn("shutdown", "error", err)
				}
			}()

			summary, err := application.Run(ctx)
			if err != nil {
				logger.Error("run failed", "run_id", summary.RunID, "error", err)
				return err
			}
			logger.Info("run finished", "run_id", summary.RunID, "articles", summary.Articles,
				"successful", summary.Stats.Successful, "outputs", strings.Join(summary.Outputs, ","))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.pipeline, "pipeline", "", "direct_extraction or socratic_extraction")
	f.StringVar(&opts.mode, "mode", "", "batch or single")
	f.StringVar(&opts.input, "input", "", "input .csv, .xlsx or .json file")
	f.StringVar(&opts.textColumn, "text-column", "", "column holding the article text")
	f.StringVar(&opts.idColumn, "id-column", "", "column holding the article id")
	f.StringVar(&opts.outputDir, "output-dir", "", "directory for result files")
	f.StringVar(&opts.format, "format", "", "json, csv, xlsx, both or all")
	f.IntVar(&opts.startRow, "start-row", 0, "first row to process (0-based)")
	f.IntVar(&opts.endRow, "end-row", 0, "row to stop before")
	f.IntVar(&opts.numRows, "num-rows", 0, "number of rows to process")
	f.BoolVar(&opts.skipProcessed, "skip-processed", false, "skip articles already stored in the database")
	return cmd
}

func (o *runOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("pipeline") {
		cfg.Pipeline.Name = domain.Variant(o.pipeline)
	}
	if flags.Changed("mode") {
		cfg.Pipeline.Mode = o.mode
	}
	if flags.Changed("input") {
		cfg.Input.File = o.input
	}
	if flags.Changed("text-column") {
		cfg.Input.TextColumn = o.textColumn
	}
	if flags.Changed("id-column") {
		cfg.Input.IDColumn = o.idColumn
	}
	if flags.Changed("output-dir") {
		cfg.Output.Dir = o.outputDir
	}
	if flags.Changed("format") {
		cfg.Output.Format = o.format
	}
	if flags.Changed("start-row") {
		cfg.Input.StartRow = o.startRow
	}
	if flags.Changed("end-row") {
		cfg.Input.EndRow = o.endRow
	}
	if flags.Changed("num-rows") {
		cfg.Input.NumRows = o.numRows
	}
	if flags.Changed("skip-processed") {
		cfg.Pipeline.SkipProcessed = o.skipProcessed
	}
}

func newJobCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect a batch job by id",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status <job-id>",
		Short: "Print the state of a batch job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newJobApp(root)
			if err != nil {
				return err
			}
			status, err := application.JobStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), status)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "results <job-id>",
		Short: "Print the output lines of a batch job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newJobApp(root)
			if err != nil {
				return err
			}
			results, err := application.JobResults(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), results)
		},
	})
	return cmd
}

func newJobApp(root *rootOptions) (*app.Application, error) {
	cfg, logger, err := loadConfig(root)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, logger)
}

func loadConfig(root *rootOptions) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(root.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if root.logLevel != "" {
		cfg.Logging.Level = root.logLevel
	}
	return cfg, logging.New(cfg.Logging.Level), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
