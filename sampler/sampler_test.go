package sampler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfielding/kripke-mdp/bounds"
	"github.com/rfielding/kripke-mdp/graph"
	"github.com/rfielding/kripke-mdp/mdp"
	"github.com/rfielding/kripke-mdp/update"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialCollapseThreshold = 0
	cfg.MaxTrials = 100000
	return cfg
}

// problem builds the explorer and a goal-label reachability rule.
func problem(t *testing.T, m *mdp.Explicit, policy update.Policy) (*mdp.Explorer[int], *update.Reachability) {
	t.Helper()
	e, err := mdp.NewExplorer[int](m)
	require.NoError(t, err)
	goal := mdp.Target(e, func(s int) bool { return m.HasLabel(s, "goal") })
	return e, update.NewReachability(goal, policy)
}

func run(t *testing.T, m *mdp.Explicit, policy update.Policy, cfg Config, opts ...Option) (*Result, *Sampler) {
	t.Helper()
	e, rule := problem(t, m, policy)
	s, err := New(e, bounds.NewIntervalStore(), rule, cfg, append([]Option{WithLogger(quiet)}, opts...)...)
	require.NoError(t, err)
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	return res, s
}

// 0: a -> {1,2} uniformly, b -> 0. 1 is the goal, 2 a losing sink.
func coinFlip() *mdp.Explicit {
	m := mdp.NewExplicit()
	m.AddState(1, "goal")
	m.AddChoice(0, "a", map[int]float64{1: 0.5, 2: 0.5})
	m.AddChoice(0, "b", map[int]float64{0: 1})
	m.AddChoice(1, "stay", map[int]float64{1: 1})
	m.AddChoice(2, "stay", map[int]float64{2: 1})
	m.SetInitial(0)
	return m
}

// 0 and 1 form an end component through alpha and beta; gamma leaves it
// towards the goal 2 or the dead end 3.
func endComponent() *mdp.Explicit {
	m := mdp.NewExplicit()
	m.AddState(2, "goal")
	m.AddChoice(0, "alpha", map[int]float64{1: 1})
	m.AddChoice(0, "gamma", map[int]float64{2: 0.5, 3: 0.5})
	m.AddChoice(1, "beta", map[int]float64{0: 1})
	m.AddState(3)
	m.SetInitial(0)
	return m
}

func TestCoinFlipConvergesToHalf(t *testing.T) {
	res, _ := run(t, coinFlip(), update.Max, testConfig())

	require.True(t, res.Solved)
	require.Len(t, res.States, 1)
	assert.InDelta(t, 0.5, res.States[0].Bounds.Lower, 1e-9)
	assert.InDelta(t, 0.5, res.States[0].Bounds.Upper, 1e-9)
	assert.NotEmpty(t, res.RunID)
}

func TestEndComponentIsCollapsed(t *testing.T) {
	res, s := run(t, endComponent(), update.Max, testConfig())

	require.True(t, res.Solved)
	assert.InDelta(t, 0.5, res.States[0].Bounds.Lower, 1e-9)
	assert.InDelta(t, 0.5, res.States[0].Bounds.Upper, 1e-9)
	assert.Equal(t, 1, res.Stats.Collapsed)
	assert.Equal(t, int64(1), res.Stats.Components)
	assert.Equal(t, 0, res.States[0].Representative)
	assert.True(t, s.IsRemoved(1))
	assert.Equal(t, 0, s.Representative(1))
}

func TestEndComponentWithSampledScope(t *testing.T) {
	cfg := testConfig()
	cfg.CollapseScope = ScopeSampled
	res, _ := run(t, endComponent(), update.Max, cfg)

	require.True(t, res.Solved)
	assert.InDelta(t, 0.5, res.States[0].Bounds.Upper, 1e-9)
}

func TestWithoutCollapsingUpperBoundStalls(t *testing.T) {
	cfg := testConfig()
	cfg.InitialCollapseThreshold = 1 << 40
	cfg.MaxTrials = 50
	res, _ := run(t, endComponent(), update.Max, cfg)

	assert.False(t, res.Solved)
	assert.Equal(t, int64(50), res.Stats.Trials)
	assert.InDelta(t, 0.5, res.States[0].Bounds.Lower, 1e-9)
	assert.Equal(t, 1.0, res.States[0].Bounds.Upper)
}

func TestSymmetricCycleReachesOne(t *testing.T) {
	m := mdp.NewExplicit()
	m.AddState(2, "goal")
	m.AddChoice(0, "go", map[int]float64{1: 0.5, 2: 0.5})
	m.AddChoice(1, "go", map[int]float64{0: 0.5, 2: 0.5})
	m.SetInitial(0)

	res, _ := run(t, m, update.Max, testConfig())
	require.True(t, res.Solved)
	assert.InDelta(t, 1, res.States[0].Bounds.Lower, 1e-6)
	assert.Equal(t, 1.0, res.States[0].Bounds.Upper)
}

func TestMinCollapsesBottomComponents(t *testing.T) {
	// a reaches the goal half of the time; b falls into the closed cycle 3 <-> 4
	m := mdp.NewExplicit()
	m.AddState(1, "goal")
	m.AddChoice(0, "a", map[int]float64{1: 0.5, 2: 0.5})
	m.AddChoice(0, "b", map[int]float64{3: 1})
	m.AddChoice(2, "stay", map[int]float64{2: 1})
	m.AddChoice(3, "next", map[int]float64{4: 1})
	m.AddChoice(4, "next", map[int]float64{3: 1})
	m.SetInitial(0)

	res, _ := run(t, m, update.Min, testConfig())
	require.True(t, res.Solved)
	assert.Equal(t, bounds.ZeroZero, res.States[0].Bounds)
	assert.GreaterOrEqual(t, res.Stats.Collapsed, 1)
}

func TestCoreBoundsLeavingTheExploredRegion(t *testing.T) {
	m := mdp.NewExplicit()
	m.AddChoice(0, "step", map[int]float64{1: 1})
	m.AddChoice(1, "step", map[int]float64{2: 1})
	m.AddChoice(2, "step", map[int]float64{0: 1})
	m.SetInitial(0)

	e, err := mdp.NewExplorer[int](m)
	require.NoError(t, err)
	s, err := New(e, bounds.NewUpperStore(), update.NewCore(), testConfig(), WithLogger(quiet))
	require.NoError(t, err)
	res, err := s.Run(context.Background())
	require.NoError(t, err)

	require.True(t, res.Solved)
	assert.Equal(t, bounds.ZeroZero, res.States[0].Bounds)
	assert.Equal(t, 3, res.Stats.Explored)
}

func TestPruneZero(t *testing.T) {
	m := mdp.NewExplicit()
	m.AddState(4, "goal")
	m.AddChoice(0, "a", map[int]float64{4: 0.5, 1: 0.5})
	m.AddChoice(1, "to2", map[int]float64{2: 1})
	m.AddChoice(2, "back", map[int]float64{1: 0.5, 3: 0.5})
	m.AddState(3)
	m.SetInitial(0)

	cfg := testConfig()
	cfg.PruneZero = true
	res, s := run(t, m, update.Max, cfg)

	require.True(t, res.Solved)
	assert.InDelta(t, 0.5, res.States[0].Bounds.Lower, 1e-9)
	assert.InDelta(t, 0.5, res.States[0].Bounds.Upper, 1e-9)
	assert.GreaterOrEqual(t, res.Stats.ZeroPruned, int64(1))
	assert.Equal(t, bounds.ZeroZero, s.Bounds(1))
}

// 0 -> 1, which splits between the dead end 2 and 3; 3 leads to the goal 4.
func fork() *mdp.Explicit {
	m := mdp.NewExplicit()
	m.AddState(4, "goal")
	m.AddChoice(0, "go", map[int]float64{1: 1})
	m.AddChoice(1, "split", map[int]float64{2: 0.5, 3: 0.5})
	m.AddChoice(3, "finish", map[int]float64{4: 1})
	m.SetInitial(0)
	return m
}

// chain is 0 -> 1 -> ... -> n with the goal at n.
func chain(n int) *mdp.Explicit {
	m := mdp.NewExplicit()
	m.AddState(n, "goal")
	for i := 0; i < n; i++ {
		m.AddChoice(i, "next", map[int]float64{i + 1: 1})
	}
	m.SetInitial(0)
	return m
}

func TestBacktrackingWithinATrial(t *testing.T) {
	res, _ := run(t, fork(), update.Max, testConfig())

	require.True(t, res.Solved)
	assert.InDelta(t, 0.5, res.States[0].Bounds.Lower, 1e-9)
	assert.InDelta(t, 0.5, res.States[0].Bounds.Upper, 1e-9)
	assert.Equal(t, int64(1), res.Stats.Trials)
	assert.Equal(t, int64(1), res.Stats.BacktraceCount)
}

func TestBacktrackBudgetEndsTrialEarly(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBacktracks = 0
	res, _ := run(t, fork(), update.Max, cfg)

	require.True(t, res.Solved)
	assert.InDelta(t, 0.5, res.States[0].Bounds.Lower, 1e-9)
	assert.InDelta(t, 0.5, res.States[0].Bounds.Upper, 1e-9)
	assert.Equal(t, int64(2), res.Stats.Trials)
	assert.Zero(t, res.Stats.BacktraceCount)
}

func TestExploreBudgetEndsTrialEarly(t *testing.T) {
	res, _ := run(t, chain(5), update.Max, testConfig())
	require.True(t, res.Solved)
	assert.Equal(t, int64(1), res.Stats.Trials)

	cfg := testConfig()
	cfg.MaxExplores = 1
	res, _ = run(t, chain(5), update.Max, cfg)

	require.True(t, res.Solved)
	assert.Equal(t, bounds.OneOne, res.States[0].Bounds)
	assert.Equal(t, int64(4), res.Stats.Trials, "one new state per trial")
	assert.Equal(t, 5, res.Stats.Explored)
}

type countingAnalyser struct{ calls int }

func (a *countingAnalyser) FindComponents(graph.ChoiceGraph, mdp.StateSet) []mdp.StateSet {
	a.calls++
	return nil
}

func TestCollapseAttemptsBackOffByExploredCount(t *testing.T) {
	// every trial runs 0 -> 1 -> 0 and loops
	m := mdp.NewExplicit()
	m.AddChoice(0, "next", map[int]float64{1: 1})
	m.AddChoice(1, "back", map[int]float64{0: 1})
	m.SetInitial(0)

	e, rule := problem(t, m, update.Max)
	analyser := &countingAnalyser{}
	s, err := New(e, bounds.NewIntervalStore(), rule, testConfig(), WithLogger(quiet), WithAnalyser(analyser))
	require.NoError(t, err)

	var attempts []int
	for trial := 1; trial <= 16; trial++ {
		before := s.collapseThreshold
		collapsed, err := s.sample(context.Background(), 0)
		require.NoError(t, err)
		require.False(t, collapsed)
		if s.collapseThreshold != before {
			attempts = append(attempts, trial)
		}
	}

	// two explored states: the threshold grows 0, 2, 4, 6, 8
	assert.Equal(t, []int{1, 4, 9, 16}, attempts)
	assert.Equal(t, int64(8), s.collapseThreshold)
	assert.Zero(t, s.loopCount)
	assert.Equal(t, 1, analyser.calls, "no new states after the first attempt")
}

// looseningRule backs up one state to [0,1] whatever its successors say.
type looseningRule struct {
	*update.Reachability
	state int
}

func (r looseningRule) Update(state int, choices []mdp.Distribution, store bounds.Store) (bounds.Bounds, error) {
	if state == r.state {
		return bounds.ZeroOne, nil
	}
	return r.Reachability.Update(state, choices, store)
}

func TestLooseningBackupAbortsRun(t *testing.T) {
	e, rule := problem(t, coinFlip(), update.Max)
	store := bounds.NewIntervalStore()
	prior := bounds.Bounds{Lower: 0, Upper: 0.45}
	require.NoError(t, store.SetBounds(0, prior))

	s, err := New(e, store, looseningRule{Reachability: rule, state: 0}, testConfig(), WithLogger(quiet))
	require.NoError(t, err)
	res, err := s.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, bounds.ErrInvariant)
	require.NotNil(t, res)
	assert.False(t, res.Solved)
	assert.Equal(t, prior, store.Bounds(0), "the looser backup is not stored")
}

type failingGenerator struct{}

var errBackend = errors.New("backend unavailable")

func (failingGenerator) InitialStates() ([]int, error) { return []int{0}, nil }
func (failingGenerator) Actions(s int) ([]mdp.Action[int], error) {
	if s == 0 {
		return []mdp.Action[int]{{Label: "go", Transitions: []mdp.Transition[int]{{To: 1, Prob: 1}}}}, nil
	}
	return nil, errBackend
}

func TestExplorationFailureAbortsRun(t *testing.T) {
	e, err := mdp.NewExplorer[int](failingGenerator{})
	require.NoError(t, err)
	s, err := New(e, bounds.NewIntervalStore(), update.NewReachability(nil, update.Max), testConfig(), WithLogger(quiet))
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errBackend)
	require.NotNil(t, res)
	assert.False(t, res.Solved)
}

func TestRunHonoursCancellation(t *testing.T) {
	e, rule := problem(t, coinFlip(), update.Max)
	s, err := New(e, bounds.NewIntervalStore(), rule, testConfig(), WithLogger(quiet))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, int64(0), res.Stats.Trials)
}

func TestNewRejectsBadInput(t *testing.T) {
	e, rule := problem(t, coinFlip(), update.Max)

	cfg := testConfig()
	cfg.Precision = 0
	_, err := New(e, bounds.NewIntervalStore(), rule, cfg)
	assert.Error(t, err)

	_, err = New(nil, bounds.NewIntervalStore(), rule, testConfig())
	assert.Error(t, err)
}

// monotoneStore fails the test if any bound ever loosens, including across
// collapses where a representative takes over from its members.
type monotoneStore struct {
	*bounds.IntervalStore
	t    *testing.T
	seen map[int]bounds.Bounds
}

func (m *monotoneStore) check(s int) {
	now := m.Bounds(s)
	if prev, ok := m.seen[s]; ok {
		assert.GreaterOrEqual(m.t, now.Lower, prev.Lower-bounds.Tolerance, "lower of %d fell", s)
		assert.LessOrEqual(m.t, now.Upper, prev.Upper+bounds.Tolerance, "upper of %d rose", s)
	}
	m.seen[s] = now
}

func (m *monotoneStore) SetBounds(s int, b bounds.Bounds) error {
	if err := m.IntervalStore.SetBounds(s, b); err != nil {
		return err
	}
	m.check(s)
	return nil
}

func (m *monotoneStore) SetZero(s int) {
	m.IntervalStore.SetZero(s)
	m.check(s)
}

// randomModel has a goal at n reachable from every state by "forward"; the
// "jump" actions create plenty of end components.
func randomModel(seed uint64, n int) *mdp.Explicit {
	rng := rand.New(rand.NewPCG(seed, seed))
	m := mdp.NewExplicit()
	m.AddState(n, "goal")
	for i := 0; i < n; i++ {
		back := rng.IntN(n)
		fwd := map[int]float64{i + 1: 0.7}
		fwd[back] += 0.3
		m.AddChoice(i, "forward", fwd)
		m.AddChoice(i, "jump", map[int]float64{rng.IntN(n): 1})
	}
	m.SetInitial(0)
	return m
}

func TestMonotoneAndTerminatingOnRandomModels(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		m := randomModel(seed, 25)
		e, rule := problem(t, m, update.Max)
		store := &monotoneStore{IntervalStore: bounds.NewIntervalStore(), t: t, seen: map[int]bounds.Bounds{}}

		cfg := testConfig()
		cfg.Precision = 1e-4
		cfg.Seed = seed
		s, err := New(e, store, rule, cfg, WithLogger(quiet))
		require.NoError(t, err)
		res, err := s.Run(context.Background())
		require.NoError(t, err)

		assert.True(t, res.Solved, "seed %d: %v", seed, res.States[0].Bounds)
		assert.True(t, res.States[0].Bounds.Contains(1), "seed %d: true value is 1", seed)
	}
}

func TestSeededRunsAreReproducible(t *testing.T) {
	a, _ := run(t, randomModel(3, 20), update.Max, testConfig())
	b, _ := run(t, randomModel(3, 20), update.Max, testConfig())
	assert.Equal(t, a.Stats, b.Stats)
	assert.Equal(t, a.States[0].Bounds, b.States[0].Bounds)
}

func TestMetricsAreSharedAcrossSamplers(t *testing.T) {
	reg := prometheus.NewRegistry()
	for _, name := range []string{"first", "second"} {
		_, _ = run(t, coinFlip(), update.Max, testConfig(), WithRegisterer(reg), WithName(name))
	}

	families, err := reg.Gather()
	require.NoError(t, err)
	series := 0
	for _, f := range families {
		if f.GetName() == "mdpcheck_sampler_trials_total" {
			series = len(f.GetMetric())
			for _, m := range f.GetMetric() {
				assert.Greater(t, m.GetCounter().GetValue(), 0.0)
			}
		}
	}
	assert.Equal(t, 2, series)
}
