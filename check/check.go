// Package check ties an explored model, a bound store and a backup rule
// together so callers can ask one question of a model and get an answer.
package check

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rfielding/kripke-mdp/bounds"
	"github.com/rfielding/kripke-mdp/graph"
	"github.com/rfielding/kripke-mdp/mdp"
	"github.com/rfielding/kripke-mdp/sampler"
	"github.com/rfielding/kripke-mdp/update"
)

// Objective names the quantity a run computes.
type Objective string

const (
	// Max is the maximal probability of reaching the target.
	Max Objective = "max"
	// Min is the minimal probability of reaching the target.
	Min Objective = "min"
	// Core bounds the probability of ever leaving the explored region.
	Core Objective = "core"
)

var ErrUnknownObjective = errors.New("unknown objective")

func (o Objective) Validate() error {
	switch o {
	case Max, Min, Core:
		return nil
	}
	return fmt.Errorf("%w %q (want max, min or core)", ErrUnknownObjective, string(o))
}

func (o *Objective) UnmarshalText(text []byte) error {
	v := Objective(strings.ToLower(strings.TrimSpace(string(text))))
	if err := v.Validate(); err != nil {
		return err
	}
	*o = v
	return nil
}

// Explorer is what a Problem exposes about its partially explored model.
type Explorer interface {
	sampler.Explorer
	ActionLabels(id int) []string
}

// Problem is an explored model together with its target and a way to print
// states. The explorer keeps what it learned across runs.
type Problem struct {
	Name     string
	Explorer Explorer
	Target   func(id int) bool
	Describe func(id int) string
}

// NewProblem explores the initial states of gen. A nil describe prints
// states with %v.
func NewProblem[S comparable](name string, gen mdp.Generator[S], target func(S) bool, describe func(S) string) (*Problem, error) {
	if target == nil {
		return nil, fmt.Errorf("problem %s: target is required", name)
	}
	e, err := mdp.NewExplorer(gen)
	if err != nil {
		return nil, fmt.Errorf("problem %s: %w", name, err)
	}
	if describe == nil {
		describe = func(s S) string { return fmt.Sprintf("%v", s) }
	}
	return &Problem{
		Name:     name,
		Explorer: e,
		Target:   mdp.Target(e, target),
		Describe: func(id int) string { return describe(e.State(id)) },
	}, nil
}

// ExplicitProblem targets the states of m carrying label.
func ExplicitProblem(name string, m *mdp.Explicit, label string) (*Problem, error) {
	if label == "" {
		return nil, fmt.Errorf("problem %s: target label is required", name)
	}
	return NewProblem[int](name, m,
		func(s int) bool { return m.HasLabel(s, label) },
		func(s int) string {
			if ls := m.Labels(s); len(ls) > 0 {
				return fmt.Sprintf("%d {%s}", s, strings.Join(ls, ","))
			}
			return fmt.Sprintf("%d", s)
		},
	)
}

// Run samples p under the objective. The sampler is returned alongside the
// result so callers can inspect or export the explored model, also when the
// run failed part way.
func Run(ctx context.Context, p *Problem, objective Objective, cfg sampler.Config, opts ...sampler.Option) (*sampler.Result, *sampler.Sampler, error) {
	if err := objective.Validate(); err != nil {
		return nil, nil, err
	}

	var (
		store bounds.Store
		rule  sampler.Rule
	)
	base := []sampler.Option{sampler.WithName(p.Name)}
	switch objective {
	case Core:
		store, rule = bounds.NewUpperStore(), update.NewCore()
	case Max:
		store, rule = bounds.NewIntervalStore(), update.NewReachability(p.Target, update.Max)
	case Min:
		store, rule = bounds.NewIntervalStore(), update.NewReachability(p.Target, update.Min)
		base = append(base, sampler.WithAnalyser(graph.Analyser{Mode: graph.Bottom}))
	}

	s, err := sampler.New(p.Explorer, store, rule, cfg, append(base, opts...)...)
	if err != nil {
		return nil, nil, fmt.Errorf("problem %s: %w", p.Name, err)
	}
	res, err := s.Run(ctx)
	if err != nil {
		return res, s, fmt.Errorf("problem %s: %w", p.Name, err)
	}
	return res, s, nil
}
