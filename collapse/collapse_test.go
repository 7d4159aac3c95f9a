package collapse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfielding/kripke-mdp/mdp"
)

type choiceMap map[int][]mdp.Distribution

func (c choiceMap) Choices(s int) []mdp.Distribution { return c[s] }

// 0 <-> 1 with exits: 0 -> {1: .5, 2: .5}, 1 -> 0 or 1 -> 3; 4 -> 1.
func sample() choiceMap {
	return choiceMap{
		0: {mdp.MustDistribution(map[int]float64{1: 0.5, 2: 0.5})},
		1: {mdp.Dirac(0), mdp.Dirac(3)},
		2: {mdp.Dirac(2)},
		3: {mdp.Dirac(3)},
		4: {mdp.MustDistribution(map[int]float64{1: 0.25, 3: 0.75})},
	}
}

func TestCollapseReroutes(t *testing.T) {
	m := New(sample())
	reps, err := m.Collapse([]mdp.StateSet{mdp.NewStateSet(0, 1)})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, reps)

	assert.Equal(t, 0, m.Representative(1))
	assert.True(t, m.IsRemoved(1))
	assert.False(t, m.IsRemoved(0))
	assert.True(t, m.IsMerged(0))
	assert.Equal(t, []int{0, 1}, m.Members(0))
	assert.Equal(t, []int{1}, m.RemovedStates())
	assert.Equal(t, 1, m.RemovedCount())

	// incoming edges now point at the representative
	in := m.Choices(4)
	require.Len(t, in, 1)
	assert.Equal(t, []int{0, 3}, in[0].Support())
	assert.Equal(t, 0.25, in[0].Prob(0))

	// internal mass is removed; the fully internal choice 1 -> 0 is dropped
	out := m.Choices(0)
	require.Len(t, out, 2)
	assert.Equal(t, []int{2}, out[0].Support())
	assert.Equal(t, 1.0, out[0].Prob(2))
	assert.Equal(t, []int{3}, out[1].Support())
	assert.Equal(t, []int{2, 3}, m.Successors(0))
}

func TestCollapseNested(t *testing.T) {
	m := New(sample())
	_, err := m.Collapse([]mdp.StateSet{mdp.NewStateSet(0, 1)})
	require.NoError(t, err)
	_, err = m.Collapse([]mdp.StateSet{mdp.NewStateSet(0, 2)})
	require.NoError(t, err)

	assert.Equal(t, 0, m.Representative(1))
	assert.Equal(t, 0, m.Representative(2))
	assert.Equal(t, []int{0, 1, 2}, m.Members(0))
	assert.Equal(t, 2, m.Generation())

	// 2's self-loop becomes internal and disappears
	out := m.Choices(0)
	require.Len(t, out, 1)
	assert.Equal(t, []int{3}, out[0].Support())
}

func TestCollapseRepresentativeAbsorbedLater(t *testing.T) {
	src := choiceMap{
		0: {mdp.Dirac(1)},
		1: {mdp.Dirac(2)},
		2: {mdp.Dirac(1), mdp.Dirac(0)},
	}
	m := New(src)
	_, err := m.Collapse([]mdp.StateSet{mdp.NewStateSet(1, 2)})
	require.NoError(t, err)
	_, err = m.Collapse([]mdp.StateSet{mdp.NewStateSet(0, 1)})
	require.NoError(t, err)

	assert.Equal(t, 0, m.Representative(2), "chains resolve transitively")
	assert.Equal(t, []int{0, 1, 2}, m.Members(0))
	assert.Empty(t, m.Choices(0), "a closed component has no exits")
}

func TestCollapseSingletonDropsSelfLoop(t *testing.T) {
	m := New(sample())
	reps, err := m.Collapse([]mdp.StateSet{mdp.NewStateSet(2)})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, reps)
	assert.NotNil(t, m.Choices(2))
	assert.Empty(t, m.Choices(2))
	assert.Equal(t, 0, m.RemovedCount())
}

func TestCollapseRejectsInvalid(t *testing.T) {
	m := New(sample())
	_, err := m.Collapse([]mdp.StateSet{mdp.NewStateSet()})
	assert.ErrorIs(t, err, ErrInvalidComponent)

	_, err = m.Collapse([]mdp.StateSet{mdp.NewStateSet(0, 1), mdp.NewStateSet(1, 2)})
	assert.ErrorIs(t, err, ErrInvalidComponent)
	assert.Equal(t, 0, m.Generation(), "a rejected call changes nothing")

	_, err = m.Collapse([]mdp.StateSet{mdp.NewStateSet(0, 1)})
	require.NoError(t, err)
	_, err = m.Collapse([]mdp.StateSet{mdp.NewStateSet(1, 3)})
	assert.ErrorIs(t, err, ErrInvalidComponent)
}

func TestChoicesOfRemovedStatePanics(t *testing.T) {
	m := New(sample())
	_, err := m.Collapse([]mdp.StateSet{mdp.NewStateSet(0, 1)})
	require.NoError(t, err)
	assert.Panics(t, func() { m.Choices(1) })
}

func TestUnexploredStatesPassThrough(t *testing.T) {
	m := New(sample())
	assert.Nil(t, m.Choices(7))
	assert.Equal(t, 7, m.Representative(7))
	assert.False(t, m.IsRemoved(7))
	assert.Equal(t, []int{7}, m.Members(7))
}
