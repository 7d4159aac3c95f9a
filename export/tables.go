package export

import (
	"fmt"
	"strings"

	"github.com/rfielding/kripke-mdp/sampler"
)

// StatsTable renders the sampler diagnostics as a markdown table.
func StatsTable(s sampler.Stats) string {
	rows := []struct {
		name, value, desc string
	}{
		{"trials", fmt.Sprint(s.Trials), "sampled trajectories"},
		{"steps", fmt.Sprint(s.Steps), "states visited by trajectories"},
		{"avg_length", fmt.Sprintf("%.2f", s.AvgLength()), "steps per trial"},
		{"backtraces", fmt.Sprint(s.BacktraceCount), "walks back to an unsolved state"},
		{"backtrace_steps", fmt.Sprint(s.BacktraceSteps), "states updated while walking back"},
		{"explored", fmt.Sprint(s.Explored), "states explored"},
		{"collapsed", fmt.Sprint(s.Collapsed), "states merged into a representative"},
		{"remaining", fmt.Sprint(s.Remaining()), "states of the collapsed model"},
		{"collapse_rounds", fmt.Sprint(s.CollapseRounds), "component searches that collapsed something"},
		{"components", fmt.Sprint(s.Components), "end components collapsed"},
		{"zero_pruned", fmt.Sprint(s.ZeroPruned), "states proven zero by graph analysis"},
	}

	var sb strings.Builder
	sb.WriteString("| Metric | Value | Description |\n")
	sb.WriteString("|--------|-------|-------------|\n")
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", r.name, r.value, r.desc))
	}
	return sb.String()
}

// BoundsTable renders the bounds of every initial state as a markdown table.
// name may be nil.
func BoundsTable(res *sampler.Result, name func(id int) string) string {
	var sb strings.Builder
	sb.WriteString("| State | Representative | Lower | Upper | Width | Solved |\n")
	sb.WriteString("|-------|----------------|-------|-------|-------|--------|\n")
	for _, r := range res.States {
		state := fmt.Sprint(r.State)
		if name != nil {
			state = name(r.State)
		}
		sb.WriteString(fmt.Sprintf("| %s | %d | %.6g | %.6g | %.3g | %t |\n",
			state, r.Representative, r.Bounds.Lower, r.Bounds.Upper, r.Bounds.Width(), r.Solved))
	}
	return sb.String()
}
