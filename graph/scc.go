// Package graph analyses the choice structure of an explored MDP: strongly
// connected components, maximal end components and existential reachability.
package graph

import (
	"sort"

	"github.com/rfielding/kripke-mdp/mdp"
)

// ChoiceGraph is anything that can list the choices of a state.
type ChoiceGraph interface {
	Choices(state int) []mdp.Distribution
}

// edgeFunc yields the successors of a state that should be followed.
type edgeFunc func(state int) []int

// StronglyConnected returns the SCCs of g restricted to subset. Edges leaving
// the subset are ignored. Every state of subset is in exactly one component.
func StronglyConnected(g ChoiceGraph, subset mdp.StateSet) []mdp.StateSet {
	return tarjan(subset, func(s int) []int {
		var out []int
		for _, d := range g.Choices(s) {
			for _, t := range d.Support() {
				if subset.Has(t) {
					out = append(out, t)
				}
			}
		}
		return out
	})
}

// tarjan runs Tarjan's algorithm with an explicit call stack so deep chains
// do not overflow the goroutine stack.
func tarjan(subset mdp.StateSet, edges edgeFunc) []mdp.StateSet {
	index := 0
	nodeIndex := make(map[int]int, len(subset))
	lowLink := make(map[int]int, len(subset))
	onStack := make(map[int]bool, len(subset))
	var sccStack []int
	var sccs []mdp.StateSet

	type callFrame struct {
		state int
		succ  []int
		next  int
		child int
		phase int // 0=enter, 1=edges, 2=after child, 3=finish
	}

	strongConnect := func(start int) {
		callStack := []callFrame{{state: start}}
		for len(callStack) > 0 {
			frame := &callStack[len(callStack)-1]
			switch frame.phase {
			case 0:
				nodeIndex[frame.state] = index
				lowLink[frame.state] = index
				index++
				sccStack = append(sccStack, frame.state)
				onStack[frame.state] = true
				frame.succ = edges(frame.state)
				frame.phase = 1

			case 1:
				pushed := false
				for frame.next < len(frame.succ) {
					t := frame.succ[frame.next]
					frame.next++
					if _, seen := nodeIndex[t]; !seen {
						frame.child = t
						frame.phase = 2
						callStack = append(callStack, callFrame{state: t})
						pushed = true
						break
					}
					if onStack[t] && nodeIndex[t] < lowLink[frame.state] {
						lowLink[frame.state] = nodeIndex[t]
					}
				}
				if !pushed {
					frame.phase = 3
				}

			case 2:
				if lowLink[frame.child] < lowLink[frame.state] {
					lowLink[frame.state] = lowLink[frame.child]
				}
				frame.phase = 1

			case 3:
				if lowLink[frame.state] == nodeIndex[frame.state] {
					scc := mdp.NewStateSet()
					for {
						w := sccStack[len(sccStack)-1]
						sccStack = sccStack[:len(sccStack)-1]
						onStack[w] = false
						scc.Add(w)
						if w == frame.state {
							break
						}
					}
					sccs = append(sccs, scc)
				}
				callStack = callStack[:len(callStack)-1]
			}
		}
	}

	for _, s := range subset.Sorted() {
		if _, seen := nodeIndex[s]; !seen {
			strongConnect(s)
		}
	}
	sortComponents(sccs)
	return sccs
}

// sortComponents orders components by their smallest member.
func sortComponents(cs []mdp.StateSet) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Min() < cs[j].Min() })
}

// IsBottom reports whether no choice of a member leaves the component.
func IsBottom(g ChoiceGraph, component mdp.StateSet) bool {
	for s := range component {
		for _, d := range g.Choices(s) {
			for _, t := range d.Support() {
				if !component.Has(t) {
					return false
				}
			}
		}
	}
	return true
}
