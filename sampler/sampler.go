// Package sampler computes reachability bounds on large MDPs by sampling
// trajectories through an incrementally explored model, backing values up
// along the sampled paths and collapsing end components that would
// otherwise stall convergence.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rfielding/kripke-mdp/bounds"
	"github.com/rfielding/kripke-mdp/collapse"
	"github.com/rfielding/kripke-mdp/graph"
	"github.com/rfielding/kripke-mdp/mdp"
)

const tracerName = "github.com/rfielding/kripke-mdp/sampler"

// Explorer is the incremental view of the model the sampler walks on.
type Explorer interface {
	ExploreState(id int) error
	IsExplored(id int) bool
	ExploredStates() []int
	InitialStates() []int
	ExploredCount() int
	StateCount() int
	Choices(id int) []mdp.Distribution
}

// Rule is the Bellman backup.
type Rule interface {
	Update(state int, choices []mdp.Distribution, store bounds.Store) (bounds.Bounds, error)
	UpdateCollapsed(rep int, choices []mdp.Distribution, absorbed []int, store bounds.Store) (bounds.Bounds, error)
	IsSmallestFixPoint() bool
	InitialValues(state int) bounds.Bounds
	IsTarget(state int) bool
}

// ComponentAnalyser finds collapsible components restricted to a subset.
type ComponentAnalyser interface {
	FindComponents(g graph.ChoiceGraph, subset mdp.StateSet) []mdp.StateSet
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Sampler) { s.logger = l }
}

// WithRegisterer registers the sampler's metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Sampler) { s.registerer = reg }
}

// WithTracer sets the tracer spans are started on.
func WithTracer(t trace.Tracer) Option {
	return func(s *Sampler) { s.tracer = t }
}

// WithRand replaces the seeded random source.
func WithRand(r *rand.Rand) Option {
	return func(s *Sampler) { s.rng = r }
}

// WithAnalyser replaces the maximal end component search.
func WithAnalyser(a ComponentAnalyser) Option {
	return func(s *Sampler) { s.analyser = a }
}

// WithHeuristic overrides the heuristic named in the config.
func WithHeuristic(h Heuristic) Option {
	return func(s *Sampler) { s.heuristic = h }
}

// WithName labels logs, spans and metrics with a problem name.
func WithName(name string) Option {
	return func(s *Sampler) { s.name = name }
}

// Sampler drives trials from the initial states until each of them is solved.
// A Sampler is single-use and not safe for concurrent use.
type Sampler struct {
	explorer  Explorer
	store     bounds.Store
	rule      Rule
	model     *collapse.Model
	analyser  ComponentAnalyser
	heuristic Heuristic
	verdict   bounds.Verdict
	cfg       Config

	rng        *rand.Rand
	logger     *slog.Logger
	tracer     trace.Tracer
	registerer prometheus.Registerer
	metrics    problemMetrics
	name       string
	runID      string

	newStatesSinceCollapse bool
	collapseThreshold      int64
	loopCount              int64
	statesInComponents     mdp.StateSet
	sampledStates          mdp.StateSet
	stats                  Stats
}

// New wires a sampler. Every state the explorer already knows is seeded
// with the rule's initial values.
func New(explorer Explorer, store bounds.Store, rule Rule, cfg Config, opts ...Option) (*Sampler, error) {
	if explorer == nil || store == nil || rule == nil {
		return nil, errors.New("sampler: explorer, store and rule are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sampler config: %w", err)
	}
	s := &Sampler{
		explorer:               explorer,
		store:                  store,
		rule:                   rule,
		model:                  collapse.New(explorer),
		analyser:               graph.Analyser{Mode: graph.Maximal},
		verdict:                bounds.Verdict{Precision: cfg.Precision, Relative: cfg.Relative},
		cfg:                    cfg,
		name:                   "default",
		runID:                  uuid.NewString(),
		newStatesSinceCollapse: true,
		collapseThreshold:      cfg.InitialCollapseThreshold,
		statesInComponents:     mdp.NewStateSet(),
		sampledStates:          mdp.NewStateSet(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.heuristic == nil {
		h, err := cfg.Heuristic.Func()
		if err != nil {
			return nil, err
		}
		s.heuristic = h
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With(slog.String("problem", s.name), slog.String("run_id", s.runID))
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	m, err := NewMetrics(s.registerer)
	if err != nil {
		return nil, err
	}
	s.metrics = m.forProblem(s.name)

	if err := s.seed(0); err != nil {
		return nil, err
	}
	s.stats.Explored = explorer.ExploredCount()
	s.metrics.explored.Set(float64(s.stats.Explored))
	return s, nil
}

// InitialResult is the outcome for one initial state.
type InitialResult struct {
	State          int           `json:"state"`
	Representative int           `json:"representative"`
	Bounds         bounds.Bounds `json:"bounds"`
	Solved         bool          `json:"solved"`
}

// Result summarizes a run.
type Result struct {
	RunID   string          `json:"run_id"`
	Problem string          `json:"problem"`
	States  []InitialResult `json:"states"`
	Stats   Stats           `json:"stats"`
	Elapsed time.Duration   `json:"elapsed"`
	Solved  bool            `json:"solved"`
}

// Run samples until every initial state is solved, the trial budget is
// spent or ctx is done. On cancellation and on fatal errors the partial
// result is returned together with the error.
func (s *Sampler) Run(ctx context.Context) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "sampler.Run",
		trace.WithAttributes(
			attribute.String("problem", s.name),
			attribute.String("run_id", s.runID),
			attribute.Float64("precision", s.cfg.Precision),
		),
	)
	defer span.End()

	start := time.Now()
	s.logger.Info("sampling started",
		slog.Int("initial_states", len(s.explorer.InitialStates())),
		slog.Float64("precision", s.cfg.Precision),
		slog.String("heuristic", string(s.cfg.Heuristic)),
	)

outer:
	for _, initial := range s.explorer.InitialStates() {
		rep := s.model.Representative(initial)
		for !s.isSolved(rep) {
			if err := ctx.Err(); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "context canceled")
				return s.result(start), fmt.Errorf("sampling interrupted: %w", err)
			}
			if s.cfg.MaxTrials > 0 && s.stats.Trials >= s.cfg.MaxTrials {
				s.logger.Warn("trial budget exhausted", slog.Int64("max_trials", s.cfg.MaxTrials))
				break outer
			}
			collapsed, err := s.sample(ctx, rep)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return s.result(start), err
			}
			if collapsed {
				rep = s.model.Representative(initial)
			}
		}
	}

	res := s.result(start)
	s.metrics.duration.Observe(res.Elapsed.Seconds())
	span.SetAttributes(
		attribute.Bool("solved", res.Solved),
		attribute.Int64("trials", res.Stats.Trials),
		attribute.Int("explored", res.Stats.Explored),
	)
	s.logger.Info("sampling finished",
		slog.Bool("solved", res.Solved),
		slog.Any("stats", res.Stats),
		slog.Any("bounds", s.initialBounds()),
		slog.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

func (s *Sampler) result(start time.Time) *Result {
	res := &Result{
		RunID:   s.runID,
		Problem: s.name,
		Stats:   s.stats,
		Elapsed: time.Since(start),
		Solved:  true,
	}
	for _, initial := range s.explorer.InitialStates() {
		rep := s.model.Representative(initial)
		b := s.store.Bounds(rep)
		solved := s.verdict.Solved(b)
		res.Solved = res.Solved && solved
		res.States = append(res.States, InitialResult{
			State:          initial,
			Representative: rep,
			Bounds:         b,
			Solved:         solved,
		})
	}
	return res
}

func (s *Sampler) isSolved(state int) bool {
	return s.verdict.Solved(s.store.Bounds(state))
}

// sample runs one trial from initial. It reports true if components were
// collapsed, in which case the trial was abandoned and must be restarted
// from the new representative.
func (s *Sampler) sample(ctx context.Context, initial int) (bool, error) {
	s.stats.Trials++
	s.metrics.trials.Inc()

	var stack []int
	onPath := mdp.NewStateSet()
	current := initial
	explores, backtracks := 0, 0
	looped := false

	for {
		if onPath.Has(current) {
			looped = true
			break
		}
		s.stats.Steps++
		s.metrics.steps.Inc()
		if s.stats.Steps%s.cfg.ReportEvery == 0 {
			s.logger.Debug("progress", slog.Any("stats", s.stats), slog.Any("bounds", s.initialBounds()))
		}

		stack = append(stack, current)
		onPath.Add(current)
		next, err := s.nextState(current)
		if err != nil {
			return false, err
		}

		if next == -1 || next == current {
			if backtracks == s.cfg.MaxBacktracks {
				break
			}
			// nothing of value ahead: walk back to the first unsolved state
			for {
				s.stats.BacktraceSteps++
				current = stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onPath.Remove(current)
				if err := s.update(current); err != nil {
					return false, err
				}
				if !s.isSolved(current) || current == initial {
					break
				}
			}
			if current == initial {
				break
			}
			s.stats.BacktraceCount++
			s.metrics.backtraces.Inc()
			backtracks++
			continue
		}

		if !s.explorer.IsExplored(next) {
			if explores == s.cfg.MaxExplores {
				break
			}
			explores++
			if err := s.explore(ctx, next); err != nil {
				return false, err
			}
		}
		current = next
	}
	s.sampledStates.AddAll(onPath)

	if looped {
		s.loopCount++
		if s.loopCount > s.collapseThreshold {
			changed, err := s.handleComponents(ctx)
			if err != nil {
				return false, err
			}
			s.loopCount = 0
			s.collapseThreshold += int64(s.explorer.ExploredCount())
			if changed {
				return true, nil
			}
		}
	}

	for len(stack) > 0 {
		state := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if err := s.update(state); err != nil {
			return false, err
		}
	}
	return false, nil
}

// nextState picks the successor to follow from state, or -1 if there is
// none worth following.
func (s *Sampler) nextState(state int) (int, error) {
	choices := s.model.Choices(state)
	if len(choices) == 0 {
		return -1, s.updateWith(state, choices)
	}

	best := s.bestChoice(state, choices)
	var candidates []Candidate
	best.ForEach(func(t int, p float64) {
		if t == state || s.isSolved(t) {
			return
		}
		candidates = append(candidates, Candidate{State: t, Prob: p, Uncertainty: s.store.Difference(t)})
	})
	if len(candidates) == 0 {
		return -1, nil
	}
	return s.heuristic(s.rng, candidates), nil
}

// bestChoice returns the highest scoring choice, breaking ties uniformly.
// Max runs score by upper bound, min runs by the chance to still escape.
func (s *Sampler) bestChoice(state int, choices []mdp.Distribution) mdp.Distribution {
	score := func(d mdp.Distribution) float64 { return s.store.UpperBoundOf(state, d) }
	if s.rule.IsSmallestFixPoint() {
		score = func(d mdp.Distribution) float64 { return 1 - s.store.LowerBoundOf(state, d) }
	}
	best, bestScore, ties := choices[0], math.Inf(-1), 0
	for _, d := range choices {
		sc := score(d)
		switch {
		case sc > bestScore+bounds.Tolerance:
			best, bestScore, ties = d, sc, 1
		case sc >= bestScore-bounds.Tolerance:
			ties++
			if s.rng.IntN(ties) == 0 {
				best = d
			}
		}
	}
	return best
}

func (s *Sampler) explore(ctx context.Context, state int) error {
	known := s.explorer.StateCount()
	if err := s.explorer.ExploreState(state); err != nil {
		trace.SpanFromContext(ctx).AddEvent("exploration failed", trace.WithAttributes(attribute.Int("state", state)))
		return fmt.Errorf("exploring state %d: %w", state, err)
	}
	s.newStatesSinceCollapse = true
	s.stats.Explored = s.explorer.ExploredCount()
	s.metrics.explored.Set(float64(s.stats.Explored))
	return s.seed(known)
}

// seed gives every id from the given one on its initial values.
func (s *Sampler) seed(from int) error {
	for id := from; id < s.explorer.StateCount(); id++ {
		b := s.rule.InitialValues(id)
		if b == bounds.ZeroOne {
			continue
		}
		if err := s.store.SetBounds(id, b); err != nil {
			return fmt.Errorf("seeding state %d: %w", id, err)
		}
	}
	return nil
}

func (s *Sampler) update(state int) error {
	return s.updateWith(state, s.model.Choices(state))
}

func (s *Sampler) updateWith(state int, choices []mdp.Distribution) error {
	b, err := s.rule.Update(state, choices, s.store)
	if err != nil {
		return fmt.Errorf("updating state %d: %w", state, err)
	}
	if err := s.store.SetBounds(state, b); err != nil {
		return fmt.Errorf("updating state %d: %w", state, err)
	}
	return nil
}

func (s *Sampler) initialBounds() map[int]bounds.Bounds {
	out := make(map[int]bounds.Bounds)
	for _, initial := range s.explorer.InitialStates() {
		out[initial] = s.store.Bounds(s.model.Representative(initial))
	}
	if b, ok := out[s.explorer.InitialStates()[0]]; ok {
		s.metrics.width.Set(b.Width())
	}
	return out
}

// Stats returns a snapshot of the diagnostics.
func (s *Sampler) Stats() Stats { return s.stats }

// RunID identifies this sampler in logs, spans and results.
func (s *Sampler) RunID() string { return s.runID }

// Bounds returns the stored bounds of the state currently representing s.
func (s *Sampler) Bounds(state int) bounds.Bounds {
	return s.store.Bounds(s.model.Representative(state))
}

func (s *Sampler) ExploredStates() []int        { return s.explorer.ExploredStates() }
func (s *Sampler) InitialStates() []int         { return s.explorer.InitialStates() }
func (s *Sampler) IsRemoved(state int) bool     { return s.model.IsRemoved(state) }
func (s *Sampler) Representative(state int) int { return s.model.Representative(state) }

// Choices returns the choices of state in the collapsed model.
func (s *Sampler) Choices(state int) []mdp.Distribution { return s.model.Choices(state) }
