package graph

import "github.com/rfielding/kripke-mdp/mdp"

// MaximalEndComponents decomposes the subset into maximal end components.
//
// A choice is kept only while its whole support stays inside the SCC of its
// state; states without kept choices are dropped, and SCCs are recomputed
// until nothing changes. Components are ordered by their smallest member.
func MaximalEndComponents(g ChoiceGraph, subset mdp.StateSet) []mdp.StateSet {
	candidates := subset.Copy()
	allowed := make(map[int][]mdp.Distribution, len(subset))
	for s := range subset {
		var keep []mdp.Distribution
		for _, d := range g.Choices(s) {
			if within(d, subset) {
				keep = append(keep, d)
			}
		}
		if len(keep) == 0 {
			candidates.Remove(s)
			continue
		}
		allowed[s] = keep
	}

	for {
		sccs := tarjan(candidates, func(s int) []int {
			var out []int
			for _, d := range allowed[s] {
				for _, t := range d.Support() {
					if candidates.Has(t) {
						out = append(out, t)
					}
				}
			}
			return out
		})

		changed := false
		for _, scc := range sccs {
			for s := range scc {
				var keep []mdp.Distribution
				for _, d := range allowed[s] {
					if within(d, scc) {
						keep = append(keep, d)
					}
				}
				if len(keep) != len(allowed[s]) {
					changed = true
				}
				if len(keep) == 0 {
					candidates.Remove(s)
					delete(allowed, s)
					continue
				}
				allowed[s] = keep
			}
		}
		if !changed {
			return sccs
		}
	}
}

func within(d mdp.Distribution, set mdp.StateSet) bool {
	for _, t := range d.Support() {
		if !set.Has(t) {
			return false
		}
	}
	return true
}
