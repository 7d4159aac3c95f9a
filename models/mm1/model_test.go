package mm1

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfielding/kripke-mdp/check"
	"github.com/rfielding/kripke-mdp/sampler"
)

func TestSlotDistributionsSumToOne(t *testing.T) {
	m := Model{Capacity: 3, ArrivalPct: 40, SlowPct: 30, FastPct: 70, FaultPct: 5, EndPct: 2}
	for _, s := range []State{{}, {Queue: 2}, {Queue: 3, Degraded: true}} {
		acts, err := m.Actions(s)
		require.NoError(t, err)
		for _, a := range acts {
			total := 0.0
			for _, tr := range a.Transitions {
				total += tr.Prob
			}
			assert.InDelta(t, 1, total, 1e-12, "%v %s", s, a.Label)
		}
	}

	acts, err := m.Actions(State{Queue: 1, Degraded: true})
	require.NoError(t, err)
	require.Len(t, acts, 1, "a degraded server only serves slowly")
	assert.Equal(t, "slow", acts[0].Label)
	assert.Equal(t, State{Closed: true}, acts[0].Transitions[0].To)

	for _, s := range []State{{Closed: true}, {Queue: 4}} {
		acts, err := m.Actions(s)
		require.NoError(t, err)
		assert.Empty(t, acts)
	}
	assert.True(t, m.Overflow(State{Queue: 4}))
}

func TestMinimalOverflowIsBelowMaximal(t *testing.T) {
	cfg := sampler.DefaultConfig()
	cfg.Precision = 1e-4
	params := map[string]int{"capacity": 3, "end_pct": 10}

	run := func(o check.Objective) (lower, upper float64) {
		p, err := check.Build(Spec{}, params)
		require.NoError(t, err)
		res, _, err := check.Run(context.Background(), p, o, cfg)
		require.NoError(t, err)
		require.True(t, res.Solved)
		b := res.States[0].Bounds
		return b.Lower, b.Upper
	}
	minLo, minHi := run(check.Min)
	maxLo, maxHi := run(check.Max)

	assert.Greater(t, minLo, 0.0)
	assert.LessOrEqual(t, minLo, maxHi)
	assert.Less(t, minHi, maxLo, "fast service must beat slow service")
}

func TestInvalidModel(t *testing.T) {
	_, err := Model{Capacity: 0, EndPct: 5}.InitialStates()
	assert.Error(t, err)
	_, err = Model{Capacity: 2}.InitialStates()
	assert.Error(t, err)
}
