package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FeedConfig locates the exogenous data feed and describes its time base.
type FeedConfig struct {
	Path  string        `yaml:"path"`
	Start time.Time     `yaml:"start"`
	Step  time.Duration `yaml:"step"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn or error
}

type SupabaseConfig struct {
	Url string `yaml:"url"`
	// key is specified via env var
	Schema             string `yaml:"schema"`
	UploadIntervalSecs int    `yaml:"uploadIntervalSecs"`
}

type DiagnosticsConfig struct {
	DatabasePath       string          `yaml:"databasePath"`
	MetricsAddr        string          `yaml:"metricsAddr"`        // metrics are not served when empty
	EvaluationEpisodes int             `yaml:"evaluationEpisodes"` // deterministic episodes run after training, zero disables
	PlotDir            string          `yaml:"plotDir"`            // plots are not drawn when empty
	Baseline           *BaselineConfig `yaml:"baseline"`           // the trained policy is compared against this controller when set
	Supabase           *SupabaseConfig `yaml:"supabase"`
}

type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Feed        FeedConfig        `yaml:"feed"`
	Environment EnvironmentConfig `yaml:"environment"`
	Training    TrainingConfig    `yaml:"training"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

// Read loads and validates the YAML configuration at `path`. Unknown fields are rejected.
func Read(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	var config Config
	err = decoder.Decode(&config)
	if err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	err = config.Validate()
	if err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate checks every section, and that the fleet's step length agrees with the feed's.
func (c *Config) Validate() error {
	if c.Feed.Step <= 0 {
		return fmt.Errorf("%w: feed step must be positive", ErrInvalid)
	}
	err := c.Environment.Validate()
	if err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	err = c.Training.Validate()
	if err != nil {
		return fmt.Errorf("training: %w", err)
	}
	if math.Abs(c.Environment.Fleet.StepHours-c.Feed.Step.Hours()) > 1e-9 {
		return fmt.Errorf("%w: fleet step of %vh does not match feed step of %v", ErrInvalid, c.Environment.Fleet.StepHours, c.Feed.Step)
	}
	if c.Diagnostics.DatabasePath == "" {
		return fmt.Errorf("%w: a diagnostics database path is required", ErrInvalid)
	}
	if c.Diagnostics.EvaluationEpisodes < 0 {
		return fmt.Errorf("%w: evaluation episodes must not be negative", ErrInvalid)
	}
	if c.Diagnostics.Baseline != nil {
		err = c.Diagnostics.Baseline.Validate()
		if err != nil {
			return fmt.Errorf("baseline: %w", err)
		}
	}
	if c.Diagnostics.Supabase != nil && c.Diagnostics.Supabase.UploadIntervalSecs <= 0 {
		return fmt.Errorf("%w: supabase upload interval must be positive", ErrInvalid)
	}
	return nil
}

// finite returns true if none of the values are NaN or infinite.
func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
