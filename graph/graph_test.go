package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfielding/kripke-mdp/mdp"
)

type choiceMap map[int][]mdp.Distribution

func (m choiceMap) Choices(s int) []mdp.Distribution { return m[s] }

func sorted(cs []mdp.StateSet) [][]int {
	out := make([][]int, len(cs))
	for i, c := range cs {
		out[i] = c.Sorted()
	}
	return out
}

func TestStronglyConnected(t *testing.T) {
	// 0 <-> 1 -> 2 -> 3 -> 2
	g := choiceMap{
		0: {mdp.Dirac(1)},
		1: {mdp.MustDistribution(map[int]float64{0: 0.5, 2: 0.5})},
		2: {mdp.Dirac(3)},
		3: {mdp.Dirac(2)},
	}
	sccs := StronglyConnected(g, mdp.NewStateSet(0, 1, 2, 3))
	assert.Equal(t, [][]int{{0, 1}, {2, 3}}, sorted(sccs))

	// restricting the subset cuts edges
	sccs = StronglyConnected(g, mdp.NewStateSet(0, 2, 3))
	assert.Equal(t, [][]int{{0}, {2, 3}}, sorted(sccs))
}

func TestStronglyConnectedDeepChain(t *testing.T) {
	g := choiceMap{}
	subset := mdp.NewStateSet()
	const n = 50000
	for i := 0; i < n; i++ {
		g[i] = []mdp.Distribution{mdp.Dirac((i + 1) % n)}
		subset.Add(i)
	}
	sccs := StronglyConnected(g, subset)
	require.Len(t, sccs, 1)
	assert.Equal(t, n, sccs[0].Size())
}

func TestMaximalEndComponents(t *testing.T) {
	// 0 and 1 form an SCC, but 1's only choice can leave to 2, so {0,1} is
	// not an end component. 2 loops on itself; 3 <-> 4 through action pairs.
	g := choiceMap{
		0: {mdp.Dirac(1)},
		1: {mdp.MustDistribution(map[int]float64{0: 0.5, 2: 0.5})},
		2: {mdp.Dirac(2)},
		3: {mdp.Dirac(4), mdp.MustDistribution(map[int]float64{4: 0.5, 5: 0.5})},
		4: {mdp.Dirac(3)},
	}
	mecs := MaximalEndComponents(g, mdp.NewStateSet(0, 1, 2, 3, 4, 5))
	assert.Equal(t, [][]int{{2}, {3, 4}}, sorted(mecs))
}

func TestMaximalEndComponentsNested(t *testing.T) {
	// 0 -> {0,1} with one action and 0 -> 2 with another; 1 -> 0.
	// 2 is a dead end, so only {0,1} survives.
	g := choiceMap{
		0: {mdp.MustDistribution(map[int]float64{0: 0.5, 1: 0.5}), mdp.Dirac(2)},
		1: {mdp.Dirac(0)},
	}
	mecs := MaximalEndComponents(g, mdp.NewStateSet(0, 1, 2))
	assert.Equal(t, [][]int{{0, 1}}, sorted(mecs))
}

func TestMaximalEndComponentsIgnoresOutside(t *testing.T) {
	g := choiceMap{
		0: {mdp.MustDistribution(map[int]float64{1: 0.5, 9: 0.5})},
		1: {mdp.Dirac(0)},
	}
	assert.Empty(t, MaximalEndComponents(g, mdp.NewStateSet(0, 1)))
}

func TestIsBottom(t *testing.T) {
	g := choiceMap{
		0: {mdp.Dirac(1)},
		1: {mdp.Dirac(0), mdp.Dirac(2)},
		2: {mdp.Dirac(2)},
	}
	assert.False(t, IsBottom(g, mdp.NewStateSet(0, 1)))
	assert.True(t, IsBottom(g, mdp.NewStateSet(2)))
}

func TestExistsEventually(t *testing.T) {
	// 0 -> 1 -> goal(2); 3 loops; 4 points outside the subset.
	g := choiceMap{
		0: {mdp.Dirac(1)},
		1: {mdp.Dirac(2)},
		2: {mdp.Dirac(2)},
		3: {mdp.Dirac(3)},
		4: {mdp.Dirac(7)},
		5: {mdp.Dirac(4)},
	}
	subset := mdp.NewStateSet(0, 1, 2, 3, 4, 5)
	got := ExistsEventually(g, subset, func(s int) bool { return s == 2 })
	assert.Equal(t, []int{0, 1, 2, 4, 5}, got.Sorted())
}

func TestAnalyserModes(t *testing.T) {
	g := choiceMap{
		0: {mdp.Dirac(1), mdp.Dirac(2)},
		1: {mdp.Dirac(0)},
		2: {mdp.Dirac(2)},
		3: nil,
	}
	subset := mdp.NewStateSet(0, 1, 2, 3)

	maximal := Analyser{Mode: Maximal}.FindComponents(g, subset)
	assert.Equal(t, [][]int{{0, 1}, {2}}, sorted(maximal))

	bottom := Analyser{Mode: Bottom}.FindComponents(g, subset)
	assert.Equal(t, [][]int{{2}}, sorted(bottom))
	assert.Equal(t, "bottom", Bottom.String())
}
