// Package config provides unified configuration loading for mdpcheck.
// It supports loading from YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rfielding/kripke-mdp/check"
	"github.com/rfielding/kripke-mdp/sampler"
)

// Config contains all mdpcheck settings.
type Config struct {
	// Sampler holds the defaults every run starts from.
	Sampler sampler.Config `json:"sampler" yaml:"sampler"`

	Logging LoggingConfig `json:"logging" yaml:"logging"`

	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Batch lists the problems run by "mdpcheck batch".
	Batch BatchConfig `json:"batch" yaml:"batch"`
}

// LoggingConfig configures operational logging.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	Level string `json:"level" yaml:"level"`

	// Format is "text" (default) or "json".
	Format string `json:"format" yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics, e.g. ":9090". Empty disables it.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// BatchConfig is a list of independent problems.
type BatchConfig struct {
	// Parallel bounds concurrent runs. 0 means one per CPU.
	Parallel int             `json:"parallel" yaml:"parallel"`
	Problems []ProblemConfig `json:"problems" yaml:"problems"`
}

// ProblemConfig names a registered model or a model file and what to ask
// of it.
type ProblemConfig struct {
	// Name labels results, logs and metrics. Defaults to the model name.
	Name      string          `json:"name,omitempty" yaml:"name,omitempty"`
	Model     string          `json:"model,omitempty" yaml:"model,omitempty"`
	File      string          `json:"file,omitempty" yaml:"file,omitempty"`
	Objective check.Objective `json:"objective,omitempty" yaml:"objective,omitempty"`
	// Target is the state label of a file model.
	Target string         `json:"target,omitempty" yaml:"target,omitempty"`
	Params map[string]int `json:"params,omitempty" yaml:"params,omitempty"`

	// Precision overrides the sampler precision when set.
	Precision float64 `json:"precision,omitempty" yaml:"precision,omitempty"`
}

// Label is the name a problem runs under.
func (p ProblemConfig) Label() string {
	switch {
	case p.Name != "":
		return p.Name
	case p.Model != "":
		return p.Model
	}
	return strings.TrimSuffix(filepath.Base(p.File), filepath.Ext(p.File))
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Sampler: sampler.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from path, or from ~/.mdpcheck/config.yaml when
// path is empty and that file exists, then applies environment overrides.
// Order: defaults -> file -> environment variables
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			candidate := filepath.Join(homeDir, ".mdpcheck", "config.yaml")
			if _, statErr := os.Stat(candidate); statErr == nil {
				path = candidate
			}
		}
	}
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Keys that are
// not set keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// model files are relative to the config file
	dir := filepath.Dir(path)
	for i, p := range config.Batch.Problems {
		if p.File != "" && !filepath.IsAbs(p.File) {
			config.Batch.Problems[i].File = filepath.Join(dir, p.File)
		}
	}
	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Sampler.Validate(); err != nil {
		errs = append(errs, err)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		errs = append(errs, fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level))
	}
	if f := c.Logging.Format; f != "" && f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("invalid log format: %s (valid: text, json)", f))
	}

	if c.Batch.Parallel < 0 {
		errs = append(errs, fmt.Errorf("parallel must be non-negative, got %d", c.Batch.Parallel))
	}
	seen := make(map[string]bool)
	for i, p := range c.Batch.Problems {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("problem %d: %w", i, err))
			continue
		}
		if seen[p.Label()] {
			errs = append(errs, fmt.Errorf("problem %d: duplicate name %q", i, p.Label()))
		}
		seen[p.Label()] = true
	}
	return errors.Join(errs...)
}

// Validate checks a single problem entry.
func (p ProblemConfig) Validate() error {
	if (p.Model == "") == (p.File == "") {
		return errors.New("exactly one of model and file must be set")
	}
	if p.File != "" && p.Target == "" {
		return errors.New("a model file needs a target label")
	}
	if p.Objective != "" {
		if err := p.Objective.Validate(); err != nil {
			return err
		}
	}
	if p.Precision < 0 || p.Precision >= 1 {
		return fmt.Errorf("precision must be in [0, 1), got %g", p.Precision)
	}
	return nil
}

// applyEnvOverrides applies MDPCHECK_* environment variables to the config.
func applyEnvOverrides(config *Config) error {
	var errs []error
	parse := func(name string, set func(string) error) {
		if v := os.Getenv(name); v != "" {
			if err := set(v); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}
	}

	parse("MDPCHECK_PRECISION", func(v string) (err error) {
		config.Sampler.Precision, err = strconv.ParseFloat(v, 64)
		return err
	})
	parse("MDPCHECK_RELATIVE", func(v string) (err error) {
		config.Sampler.Relative, err = strconv.ParseBool(v)
		return err
	})
	parse("MDPCHECK_SEED", func(v string) (err error) {
		config.Sampler.Seed, err = strconv.ParseUint(v, 10, 64)
		return err
	})
	parse("MDPCHECK_MAX_TRIALS", func(v string) (err error) {
		config.Sampler.MaxTrials, err = strconv.ParseInt(v, 10, 64)
		return err
	})
	parse("MDPCHECK_PRUNE_ZERO", func(v string) (err error) {
		config.Sampler.PruneZero, err = strconv.ParseBool(v)
		return err
	})
	parse("MDPCHECK_HEURISTIC", func(v string) error {
		return config.Sampler.Heuristic.UnmarshalText([]byte(v))
	})
	parse("MDPCHECK_COLLAPSE_SCOPE", func(v string) error {
		return config.Sampler.CollapseScope.UnmarshalText([]byte(v))
	})
	parse("MDPCHECK_PARALLEL", func(v string) (err error) {
		config.Batch.Parallel, err = strconv.Atoi(v)
		return err
	})

	if v := os.Getenv("MDPCHECK_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("MDPCHECK_LOG_FORMAT"); v != "" {
		config.Logging.Format = v
	}
	if v := os.Getenv("MDPCHECK_METRICS_ADDR"); v != "" {
		config.Metrics.Addr = v
	}
	return errors.Join(errs...)
}
