package sampler

import (
	"errors"
	"fmt"
	"strings"
)

// CollapseScope selects which states component analysis looks at.
type CollapseScope int

const (
	// ScopeAll analyses every explored state that is not yet removed.
	ScopeAll CollapseScope = iota
	// ScopeSampled analyses only states visited since the last attempt.
	ScopeSampled
)

func (c CollapseScope) String() string {
	if c == ScopeSampled {
		return "sampled"
	}
	return "all"
}

func (c *CollapseScope) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "all", "all_states", "":
		*c = ScopeAll
	case "sampled", "sampled_only":
		*c = ScopeSampled
	default:
		return fmt.Errorf("unknown collapse scope %q (want all or sampled)", text)
	}
	return nil
}

func (c CollapseScope) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Config holds the tuning knobs of a sampler run.
type Config struct {
	// Precision is the bound width at which a state counts as solved.
	Precision float64 `yaml:"precision" json:"precision"`
	// Relative scales Precision by the upper bound.
	Relative bool `yaml:"relative" json:"relative"`
	// InitialCollapseThreshold is the number of loops tolerated before the
	// first component search. It grows by the explored count after each search.
	InitialCollapseThreshold int64 `yaml:"initial_collapse_threshold" json:"initial_collapse_threshold"`
	// MaxBacktracks and MaxExplores cap the work of a single trial. A trial
	// that hits either ends early; the next one starts from the initial state.
	MaxBacktracks int `yaml:"max_backtracks" json:"max_backtracks"`
	MaxExplores   int `yaml:"max_explores" json:"max_explores"`
	// ReportEvery logs progress at debug level every that many steps.
	ReportEvery   int64         `yaml:"report_every" json:"report_every"`
	CollapseScope CollapseScope `yaml:"collapse_scope" json:"collapse_scope"`
	Heuristic     HeuristicKind `yaml:"heuristic" json:"heuristic"`
	// MaxTrials stops the run unsolved after that many trials; 0 means no limit.
	MaxTrials int64 `yaml:"max_trials" json:"max_trials"`
	// PruneZero sets states that cannot reach anything of value to [0,0]
	// at every collapse attempt.
	PruneZero bool `yaml:"prune_zero" json:"prune_zero"`
	// Seed feeds the random source; equal seeds give equal runs.
	Seed uint64 `yaml:"seed" json:"seed"`
}

func DefaultConfig() Config {
	return Config{
		Precision:                1e-6,
		InitialCollapseThreshold: 16,
		MaxBacktracks:            10,
		MaxExplores:              100,
		ReportEvery:              100000,
		CollapseScope:            ScopeAll,
		Heuristic:                HeuristicDifferenceSample,
		Seed:                     1,
	}
}

// Validate checks the config for values the sampler cannot work with.
func (c Config) Validate() error {
	var errs []error
	if !(c.Precision > 0 && c.Precision < 1) {
		errs = append(errs, fmt.Errorf("precision must be in (0,1), got %g", c.Precision))
	}
	if c.InitialCollapseThreshold < 0 {
		errs = append(errs, fmt.Errorf("initial_collapse_threshold must be >= 0, got %d", c.InitialCollapseThreshold))
	}
	if c.MaxBacktracks < 0 {
		errs = append(errs, fmt.Errorf("max_backtracks must be >= 0, got %d", c.MaxBacktracks))
	}
	if c.MaxExplores < 1 {
		errs = append(errs, fmt.Errorf("max_explores must be >= 1, got %d", c.MaxExplores))
	}
	if c.ReportEvery <= 0 {
		errs = append(errs, fmt.Errorf("report_every must be > 0, got %d", c.ReportEvery))
	}
	if c.MaxTrials < 0 {
		errs = append(errs, fmt.Errorf("max_trials must be >= 0, got %d", c.MaxTrials))
	}
	if _, err := c.Heuristic.Func(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
