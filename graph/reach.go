package graph

import "github.com/rfielding/kripke-mdp/mdp"

// ExistsEventually computes E[true U goal] over the subset: the members of
// subset from which some path reaches a goal state. States outside the subset
// are unknown territory and count as goal.
//
// Least fixpoint:
//
//	W0 = goal ∩ subset
//	W_{i+1} = W_i ∪ (subset ∩ Pre_E(W_i ∪ outside))
func ExistsEventually(g ChoiceGraph, subset mdp.StateSet, goal func(int) bool) mdp.StateSet {
	preds := make(map[int][]int, len(subset))
	W := mdp.NewStateSet()
	var frontier []int
	for s := range subset {
		if goal(s) {
			W.Add(s)
			frontier = append(frontier, s)
			continue
		}
		for _, d := range g.Choices(s) {
			for _, t := range d.Support() {
				if !subset.Has(t) {
					if !W.Has(s) {
						W.Add(s)
						frontier = append(frontier, s)
					}
					continue
				}
				preds[t] = append(preds[t], s)
			}
		}
	}

	for len(frontier) > 0 {
		t := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		for _, s := range preds[t] {
			if !W.Has(s) {
				W.Add(s)
				frontier = append(frontier, s)
			}
		}
	}
	return W
}

// Mode selects which components an Analyser reports.
type Mode int

const (
	// Maximal reports maximal end components.
	Maximal Mode = iota
	// Bottom reports only SCCs that no choice can leave. Deadlocks are not
	// end components and are skipped.
	Bottom
)

func (m Mode) String() string {
	if m == Bottom {
		return "bottom"
	}
	return "maximal"
}

// Analyser finds collapsible components of a choice graph.
type Analyser struct {
	Mode Mode
}

// FindComponents returns disjoint non-empty components restricted to subset.
func (a Analyser) FindComponents(g ChoiceGraph, subset mdp.StateSet) []mdp.StateSet {
	if a.Mode != Bottom {
		return MaximalEndComponents(g, subset)
	}
	var out []mdp.StateSet
	for _, c := range StronglyConnected(g, subset) {
		if IsBottom(g, c) && !hasDeadlock(g, c) {
			out = append(out, c)
		}
	}
	return out
}

func hasDeadlock(g ChoiceGraph, c mdp.StateSet) bool {
	for s := range c {
		if len(g.Choices(s)) == 0 {
			return true
		}
	}
	return false
}
