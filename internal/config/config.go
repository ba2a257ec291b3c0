package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	pipelineerrors "github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/errors"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/validation"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/pkg/contracts/domain"
)

const (
	// EnvPrefix namespaces every environment variable
	EnvPrefix = "KRONOS"
	// ConfigFileEnv names the variable holding the YAML config path
	ConfigFileEnv = "KRONOS_CONFIG"
	// DefaultConfigFile is read when ConfigFileEnv is unset and it exists
	DefaultConfigFile = "kronos.yaml"
	// DotEnvFile seeds unset environment variables when present
	DotEnvFile = ".env"
)

// Config represents the complete application configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Pipeline  PipelineConfig  `yaml:"pipeline" envconfig:"PIPELINE"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required_unless=Output console"`
}

// PipelineConfig contains the padding, masking and splitting settings
type PipelineConfig struct {
	Window        int     `yaml:"window" envconfig:"WINDOW" validate:"min=1"`
	TrainFraction float64 `yaml:"train_fraction" envconfig:"TRAIN_FRACTION" validate:"gt=0,lte=1"`
	LagDays       int     `yaml:"lag_days" envconfig:"LAG_DAYS" validate:"min=0"`
	MinFutureRows int     `yaml:"min_future_rows" envconfig:"MIN_FUTURE_ROWS" validate:"min=0"`
	Stratify      string  `yaml:"stratify" envconfig:"STRATIFY" validate:"oneof=none dow"`
	TestMasking   string  `yaml:"test_masking" envconfig:"TEST_MASKING" validate:"oneof=random date"`
	// TestAsOf is the forecast day of the date masking policy
	TestAsOf string `yaml:"test_as_of" envconfig:"TEST_AS_OF" validate:"layout"`
	// TestStart splits pre-test and test groups; empty means the padding cutoff
	TestStart string `yaml:"test_start" envconfig:"TEST_START" validate:"layout"`
	// Today anchors the padding cutoff; empty means the current date
	Today              string   `yaml:"today" envconfig:"TODAY" validate:"layout"`
	Seed               int64    `yaml:"seed" envconfig:"SEED"`
	SeasonalityColumns []string `yaml:"seasonality_columns" envconfig:"SEASONALITY_COLUMNS"`
	Channels           bool     `yaml:"channels" envconfig:"CHANNELS"`
	OneDimSeasonality  bool     `yaml:"one_dim_seasonality" envconfig:"ONE_DIM_SEASONALITY"`
}

// TelemetryConfig contains tracing, metrics and status server settings
type TelemetryConfig struct {
	Tracing       bool   `yaml:"tracing" envconfig:"TRACING"`
	TraceExporter string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	Metrics       bool   `yaml:"metrics" envconfig:"METRICS"`
	// StatusAddr is the listen address of the status server; empty disables it
	StatusAddr string `yaml:"status_addr" envconfig:"STATUS_ADDR"`
}

// Load builds the configuration from defaults, the YAML config file and
// KRONOS_* environment variables, in increasing precedence. Variables
// from a .env file in the working directory count as environment
// variables unless already set.
func Load() (*Config, error) {
	cfg := Default()

	if err := loadDotEnv(DotEnvFile); err != nil {
		return nil, pipelineerrors.NewInvalidConfig(fmt.Sprintf("load %s", DotEnvFile), err)
	}

	if path := getConfigFilePath(); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, pipelineerrors.NewInvalidConfig(fmt.Sprintf("load config file %s", path), err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, pipelineerrors.NewInvalidConfig("load config from env", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// loadFromFile overlays the YAML file at filePath onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// getConfigFilePath returns the config file to read, or "" for none
func getConfigFilePath() string {
	if path := os.Getenv(ConfigFileEnv); path != "" {
		return path
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile
	}
	return ""
}

// Validate checks every field constraint
func (c *Config) Validate() error {
	if err := validation.NewStructValidator().Struct(c); err != nil {
		return pipelineerrors.NewInvalidConfig("config validation failed", err)
	}
	return nil
}

// TestStartDate parses Pipeline.TestStart; the zero time means unset
func (c *PipelineConfig) TestStartDate() (time.Time, error) {
	return optionalDate(c.TestStart)
}

// TestAsOfDate parses Pipeline.TestAsOf; the zero time means unset
func (c *PipelineConfig) TestAsOfDate() (time.Time, error) {
	return optionalDate(c.TestAsOf)
}

// TodayDate parses Pipeline.Today, falling back to now
func (c *PipelineConfig) TodayDate(now time.Time) (time.Time, error) {
	if c.Today == "" {
		return domain.CivilDate(now), nil
	}
	return domain.ParseDate(c.Today)
}

func optionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return domain.ParseDate(s)
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/tensorize.log",
		},
		Pipeline: PipelineConfig{
			Window:             10,
			TrainFraction:      0.9,
			LagDays:            2,
			MinFutureRows:      10,
			Stratify:           "none",
			TestMasking:        "random",
			Seed:               1,
			SeasonalityColumns: []string{"holiday"},
			Channels:           true,
			OneDimSeasonality:  true,
		},
		Paths: PathsConfig{
			Input:     "data/input",
			PeriodMap: "data/periods.csv",
			OutputDir: "data/output",
		},
		Telemetry: TelemetryConfig{
			TraceExporter: "none",
			Metrics:       true,
		},
	}
}
