package sampler

import (
	"fmt"
	"log/slog"
)

// Stats are the diagnostics of one sampler. They do not influence the result.
type Stats struct {
	Trials         int64 `json:"trials"`
	Steps          int64 `json:"steps"`
	BacktraceCount int64 `json:"backtrace_count"`
	BacktraceSteps int64 `json:"backtrace_steps"`
	Explored       int   `json:"explored"`
	Collapsed      int   `json:"collapsed"`
	CollapseRounds int64 `json:"collapse_rounds"`
	Components     int64 `json:"components"`
	ZeroPruned     int64 `json:"zero_pruned"`
}

// AvgLength is the mean number of steps per trial.
func (s Stats) AvgLength() float64 {
	if s.Trials == 0 {
		return 0
	}
	return float64(s.Steps) / float64(s.Trials)
}

// Remaining is the size of the collapsed model.
func (s Stats) Remaining() int { return s.Explored - s.Collapsed }

func (s Stats) String() string {
	return fmt.Sprintf("trials: %d, steps: %d, avg len: %.2f, backtrace count: %d, steps: %d, states: %d/%d in partial/collapsed model",
		s.Trials, s.Steps, s.AvgLength(), s.BacktraceCount, s.BacktraceSteps, s.Explored, s.Remaining())
}

// LogValue renders the stats as a log group.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("trials", s.Trials),
		slog.Int64("steps", s.Steps),
		slog.Float64("avg_len", s.AvgLength()),
		slog.Int64("backtraces", s.BacktraceCount),
		slog.Int64("backtrace_steps", s.BacktraceSteps),
		slog.Int("explored", s.Explored),
		slog.Int("collapsed", s.Collapsed),
		slog.Int64("components", s.Components),
		slog.Int64("zero_pruned", s.ZeroPruned),
	)
}
