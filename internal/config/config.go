package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "covidlag/internal/errors"
	"covidlag/pkg/contracts/domain"
)

// EnvPrefix is the environment variable namespace.
const EnvPrefix = "COVIDLAG"

// Config represents the complete application configuration
type Config struct {
	Logging   LoggingConfig      `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig        `yaml:"paths" envconfig:"PATHS"`
	Sources   SourcesConfig      `yaml:"sources" envconfig:"SOURCES"`
	Pipeline  PipelineConfig     `yaml:"pipeline" envconfig:"PIPELINE"`
	Report    ReportConfig       `yaml:"report" envconfig:"REPORT"`
	Telemetry TelemetryConfig    `yaml:"telemetry" envconfig:"TELEMETRY"`
	Models    []domain.ModelSpec `yaml:"models" ignored:"true" validate:"required,min=1,dive"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"covidlag.log"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	BaseDir    string `yaml:"base_dir" envconfig:"BASE_DIR"`
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data" validate:"required"`
	ReportsDir string `yaml:"reports_dir" envconfig:"REPORTS_DIR" default:"reports" validate:"required"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs" validate:"required"`
}

// SourcesConfig locates the two input datasets.
type SourcesConfig struct {
	ObservationsURL      string        `yaml:"observations_url" envconfig:"OBSERVATIONS_URL" default:"https://covid.ourworldindata.org/data/owid-covid-data.csv" validate:"omitempty,url"`
	ObservationsFile     string        `yaml:"observations_file" envconfig:"OBSERVATIONS_FILE" default:"owid-covid-data.csv" validate:"required"`
	PopulationFile       string        `yaml:"population_file" envconfig:"POPULATION_FILE" default:"population.csv" validate:"required"`
	PopulationYearColumn string        `yaml:"population_year_column" envconfig:"POPULATION_YEAR_COLUMN" default:"2023 [YR2023]" validate:"required"`
	PopulationSheet      string        `yaml:"population_sheet" envconfig:"POPULATION_SHEET" default:"Data"`
	FetchTimeout         time.Duration `yaml:"fetch_timeout" envconfig:"FETCH_TIMEOUT" default:"5m" validate:"gt=0"`
}

// PipelineConfig holds the cleaning, join, and split parameters.
type PipelineConfig struct {
	EntityCodeLength int          `yaml:"entity_code_length" envconfig:"ENTITY_CODE_LENGTH" default:"3" validate:"min=1"`
	MinPopulation    float64      `yaml:"min_population" envconfig:"MIN_POPULATION" default:"1000000" validate:"min=0"`
	LagDays          int          `yaml:"lag_days" envconfig:"LAG_DAYS" default:"14" validate:"min=1"`
	TrainFrom        string       `yaml:"train_from" envconfig:"TRAIN_FROM" default:"2022-01-01" validate:"datetime=2006-01-02"`
	TrainTo          string       `yaml:"train_to" envconfig:"TRAIN_TO" default:"2022-12-31" validate:"datetime=2006-01-02"`
	HoldoutFrom      string       `yaml:"holdout_from" envconfig:"HOLDOUT_FROM" default:"2023-01-01" validate:"datetime=2006-01-02"`
	HoldoutTo        string       `yaml:"holdout_to" envconfig:"HOLDOUT_TO" default:"2023-06-30" validate:"datetime=2006-01-02"`
	SnapshotDate     string       `yaml:"snapshot_date" envconfig:"SNAPSHOT_DATE" default:"2023-06-30" validate:"datetime=2006-01-02"`
	FitConcurrency   int          `yaml:"fit_concurrency" envconfig:"FIT_CONCURRENCY" default:"4" validate:"min=1,max=64"`
	Series           SeriesConfig `yaml:"series" envconfig:"SERIES"`
}

// SeriesConfig names the population series codes consumed by derived features.
type SeriesConfig struct {
	Pop80Female     string `yaml:"pop_80_female" envconfig:"POP_80_FEMALE" default:"SP.POP.80UP.FE" validate:"required"`
	Pop80Male       string `yaml:"pop_80_male" envconfig:"POP_80_MALE" default:"SP.POP.80UP.MA" validate:"required"`
	UrbanShare      string `yaml:"urban_share" envconfig:"URBAN_SHARE" default:"SP.URB.TOTL.IN.ZS" validate:"required"`
	DependencyRatio string `yaml:"dependency_ratio" envconfig:"DEPENDENCY_RATIO" default:"SP.POP.DPND"`
}

// ReportConfig controls what the run writes and prints.
type ReportConfig struct {
	TopModels    int      `yaml:"top_models" envconfig:"TOP_MODELS" default:"2" validate:"min=1"`
	WriteCSV     bool     `yaml:"write_csv" envconfig:"WRITE_CSV" default:"true"`
	WriteXLSX    bool     `yaml:"write_xlsx" envconfig:"WRITE_XLSX" default:"true"`
	WritePlots   bool     `yaml:"write_plots" envconfig:"WRITE_PLOTS" default:"true"`
	ScatterPlots []string `yaml:"scatter_plots" envconfig:"SCATTER_PLOTS"`
	Color        string   `yaml:"color" envconfig:"COLOR" default:"auto" validate:"oneof=auto always never"`
}

// TelemetryConfig controls tracing and metrics export.
type TelemetryConfig struct {
	Environment     string  `yaml:"environment" envconfig:"ENVIRONMENT" default:"local"`
	TraceExporter   string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" default:"none" validate:"oneof=none stdout"`
	MetricsEnabled  bool    `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED" default:"true"`
	MetricsTextfile string  `yaml:"metrics_textfile" envconfig:"METRICS_TEXTFILE" default:"metrics.prom"`
	SampleRatio     float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" default:"1" validate:"min=0,max=1"`
}

// Windows holds the parsed date parameters of PipelineConfig.
type Windows struct {
	TrainFrom   time.Time
	TrainTo     time.Time
	HoldoutFrom time.Time
	HoldoutTo   time.Time
	Snapshot    time.Time
}

// Load loads configuration from .env, environment variables and an optional
// YAML file. A value set in the file wins over the environment, which wins
// over the built-in default. An empty configFile searches the usual locations.
func Load(configFile string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	if configFile == "" {
		configFile = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if configFile == "" {
		configFile = getConfigFilePath()
	}
	if configFile != "" {
		if err := overlayFile(configFile, &cfg); err != nil {
			return nil, apperrors.NewConfigError(fmt.Sprintf("failed to load config file %s", configFile), err)
		}
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// overlayFile decodes the YAML file onto cfg; keys absent from the file leave
// cfg untouched.
func overlayFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// finalize fills list defaults and validates the result.
func (c *Config) finalize() error {
	if len(c.Report.ScatterPlots) == 0 {
		c.Report.ScatterPlots = DefaultScatterPlots()
	}
	if len(c.Models) == 0 {
		c.Models = DefaultModels()
	}
	for i := range c.Models {
		if err := defaults.Set(&c.Models[i]); err != nil {
			return apperrors.NewConfigError(fmt.Sprintf("model %d defaults", i), err)
		}
	}
	return c.Validate()
}

var validate = validator.New()

// Validate checks struct constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return apperrors.NewConfigError("config validation failed", err)
	}

	w, err := c.Pipeline.Windows()
	if err != nil {
		return apperrors.NewConfigError("invalid pipeline dates", err)
	}
	if w.TrainTo.Before(w.TrainFrom) {
		return apperrors.NewConfigError(fmt.Sprintf("train window ends %s before it starts %s", c.Pipeline.TrainTo, c.Pipeline.TrainFrom), nil)
	}
	if w.HoldoutTo.Before(w.HoldoutFrom) {
		return apperrors.NewConfigError(fmt.Sprintf("holdout window ends %s before it starts %s", c.Pipeline.HoldoutTo, c.Pipeline.HoldoutFrom), nil)
	}
	if !w.HoldoutFrom.After(w.TrainTo) && !w.TrainFrom.After(w.HoldoutTo) {
		return apperrors.NewConfigError("train and holdout windows overlap", nil)
	}

	seen := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		if seen[m.Name] {
			return apperrors.NewConfigError(fmt.Sprintf("duplicate model name %q", m.Name), nil)
		}
		seen[m.Name] = true
	}

	for _, pair := range c.Report.ScatterPlots {
		if _, _, err := ParseScatter(pair); err != nil {
			return apperrors.NewConfigError("invalid scatter plot", err)
		}
	}
	return nil
}

// Windows parses the date strings.
func (p PipelineConfig) Windows() (Windows, error) {
	var w Windows
	fields := []struct {
		name  string
		value string
		dst   *time.Time
	}{
		{"train_from", p.TrainFrom, &w.TrainFrom},
		{"train_to", p.TrainTo, &w.TrainTo},
		{"holdout_from", p.HoldoutFrom, &w.HoldoutFrom},
		{"holdout_to", p.HoldoutTo, &w.HoldoutTo},
		{"snapshot_date", p.SnapshotDate, &w.Snapshot},
	}
	for _, f := range fields {
		t, err := time.ParseInLocation(DateLayout, f.value, time.UTC)
		if err != nil {
			return Windows{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = t
	}
	return w, nil
}

// ParseScatter splits an "x:y" scatter definition.
func ParseScatter(pair string) (x, y string, err error) {
	parts := strings.SplitN(pair, ":", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return "", "", fmt.Errorf("scatter plot %q must be x_column:y_column", pair)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"covidlag.yaml",
		"config.yaml",
		"configs/covidlag.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns the built-in configuration without consulting the
// environment or any file.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	cfg.Report.ScatterPlots = DefaultScatterPlots()
	cfg.Models = DefaultModels()
	for i := range cfg.Models {
		_ = defaults.Set(&cfg.Models[i])
	}
	return cfg
}
