package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ArgumentMiner/internal/batch"
	"ArgumentMiner/internal/domain"
)

const (
	configPathEnv   = "ARGMINER_CONFIG"
	databaseDSNEnv  = "DATABASE_DSN"
	openAIKeyEnv    = "OPENAI_API_KEY"
	openAIModelEnv  = "OPENAI_MODEL"
	openAIBaseEnv   = "OPENAI_BASE_URL"
	logLevelEnv     = "LOG_LEVEL"
	pipelineNameEnv = "ARGMINER_PIPELINE"
)

// Run modes.
const (
	ModeBatch  = "batch"
	ModeSingle = "single"
)

// Output formats. FormatBoth writes JSON and CSV, FormatAll adds XLSX.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatBoth = "both"
	FormatAll  = "all"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Batch    BatchConfig    `yaml:"batch"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Input    InputConfig    `yaml:"input"`
	Output   OutputConfig   `yaml:"output"`
	Database DatabaseConfig `yaml:"database"`
	Prompts  PromptsConfig  `yaml:"prompts"`
	Pricing  domain.Pricing `yaml:"pricing"`
}

// LoggingConfig sets the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// OpenAIConfig defines how to contact the OpenAI API.
type OpenAIConfig struct {
	BaseURL     string  `yaml:"baseUrl"`
	APIKey      string  `yaml:"apiKey"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	// RequestsPerSecond throttles synchronous calls; zero disables throttling.
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
}

// BatchConfig controls job submission and polling.
type BatchConfig struct {
	WorkDir       string              `yaml:"workDir"`
	PollInterval  time.Duration       `yaml:"pollInterval"`
	Timeout       time.Duration       `yaml:"timeout"`
	FetchPolicy   batch.FetchPolicy   `yaml:"fetchPolicy"`
	FailurePolicy batch.FailurePolicy `yaml:"failurePolicy"`
}

// PipelineConfig selects the extraction variant and how it runs.
type PipelineConfig struct {
	Name          domain.Variant `yaml:"name"`
	Mode          string         `yaml:"mode"`
	SkipProcessed bool           `yaml:"skipProcessed"`
}

// InputConfig describes the article table.
type InputConfig struct {
	File       string `yaml:"file"`
	Sheet      string `yaml:"sheet"`
	TextColumn string `yaml:"textColumn"`
	IDColumn   string `yaml:"idColumn"`
	StartRow   int    `yaml:"startRow"`
	EndRow     int    `yaml:"endRow"`
	NumRows    int    `yaml:"numRows"`
	StripHTML  bool   `yaml:"stripHtml"`
}

// OutputConfig describes where results go.
type OutputConfig struct {
	Dir         string `yaml:"dir"`
	Format      string `yaml:"format"`
	MaxPremises int    `yaml:"maxPremises"`
}

// DatabaseConfig describes Postgres connection details. Persistence is off
// when DSN is empty.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// PromptsConfig points at an optional template file.
type PromptsConfig struct {
	Path string `yaml:"path"`
}

// Load reads YAML configuration and applies environment overrides. An empty
// path falls back to ARGMINER_CONFIG; with neither set only defaults and
// environment are used.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: read config %s: %v", domain.ErrConfiguration, path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse config %s: %v", domain.ErrConfiguration, path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(openAIKeyEnv); v != "" {
		c.OpenAI.APIKey = v
	}

	if v := os.Getenv(openAIModelEnv); v != "" {
		c.OpenAI.Model = v
	}

	if v := os.Getenv(openAIBaseEnv); v != "" {
		c.OpenAI.BaseURL = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(pipelineNameEnv); v != "" {
		c.Pipeline.Name = domain.Variant(v)
	}
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.OpenAI.APIKey) == "" {
		problems = append(problems, "openai.apiKey is required (set OPENAI_API_KEY)")
	}
	if c.OpenAI.Model == "" {
		problems = append(problems, "openai.model is required")
	}
	switch c.Pipeline.Name {
	case domain.VariantDirect, domain.VariantSocratic:
	default:
		problems = append(problems, fmt.Sprintf("unknown pipeline %q", c.Pipeline.Name))
	}
	switch c.Pipeline.Mode {
	case ModeBatch, ModeSingle:
	default:
		problems = append(problems, fmt.Sprintf("unknown mode %q", c.Pipeline.Mode))
	}
	switch c.Output.Format {
	case FormatJSON, FormatCSV, FormatXLSX, FormatBoth, FormatAll:
	default:
		problems = append(problems, fmt.Sprintf("unknown output format %q", c.Output.Format))
	}
	switch c.Batch.FetchPolicy {
	case batch.FetchAlways, batch.FetchCompletedOnly:
	default:
		problems = append(problems, fmt.Sprintf("unknown fetch policy %q", c.Batch.FetchPolicy))
	}
	switch c.Batch.FailurePolicy {
	case batch.DegradePhase, batch.FailBatch:
	default:
		problems = append(problems, fmt.Sprintf("unknown failure policy %q", c.Batch.FailurePolicy))
	}
	if c.Batch.PollInterval <= 0 {
		problems = append(problems, "batch.pollInterval must be positive")
	}
	if c.Input.StartRow < 0 || c.Input.EndRow < 0 || c.Input.NumRows < 0 {
		problems = append(problems, "input row bounds must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// Formats expands Output.Format into the concrete file formats to write.
func (o OutputConfig) Formats() []string {
	switch o.Format {
	case FormatBoth:
		return []string{FormatJSON, FormatCSV}
	case FormatAll:
		return []string{FormatJSON, FormatCSV, FormatXLSX}
	default:
		return []string{o.Format}
	}
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		OpenAI: OpenAIConfig{
			BaseURL:           "https://api.openai.com/v1",
			Model:             "gpt-4o-mini",
			Temperature:       0.1,
			RequestsPerSecond: 5,
			Burst:             1,
			Timeout:           2 * time.Minute,
		},
		Batch: BatchConfig{
			WorkDir:       "./data/batch",
			PollInterval:  30 * time.Second,
			Timeout:       24 * time.Hour,
			FetchPolicy:   batch.FetchAlways,
			FailurePolicy: batch.DegradePhase,
		},
		Pipeline: PipelineConfig{Name: domain.VariantSocratic, Mode: ModeBatch},
		Input: InputConfig{
			File:       "./data/raw/articles.xlsx",
			TextColumn: "Cuerpo",
			IDColumn:   "id",
		},
		Output:  OutputConfig{Dir: "./data/processed", Format: FormatBoth, MaxPremises: 5},
		Pricing: domain.Pricing{InputPerMillion: 0.075, OutputPerMillion: 0.3},
	}
}
