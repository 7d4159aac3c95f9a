package mdp

import (
	"errors"
	"fmt"
)

// ErrUnknownState is returned when an id was never handed out by the explorer.
var ErrUnknownState = errors.New("unknown state")

// Transition is one probabilistic outcome of an action.
type Transition[S comparable] struct {
	To   S
	Prob float64
}

// Action is a labelled choice available in a state.
type Action[S comparable] struct {
	Label       string
	Transitions []Transition[S]
}

// Generator produces an MDP on demand. Implementations only have to answer
// for states they were asked about, which keeps implicit models implicit.
type Generator[S comparable] interface {
	InitialStates() ([]S, error)
	Actions(state S) ([]Action[S], error)
}

// Explorer discovers the state space of a Generator incrementally and hands
// out dense ids in discovery order. The explored set only grows.
type Explorer[S comparable] struct {
	gen      Generator[S]
	ids      map[S]int
	states   []S
	choices  [][]Distribution
	labels   [][]string
	explored []bool
	initial  []int
	count    int
}

// NewExplorer creates an explorer and explores the initial states.
func NewExplorer[S comparable](gen Generator[S]) (*Explorer[S], error) {
	init, err := gen.InitialStates()
	if err != nil {
		return nil, fmt.Errorf("initial states: %w", err)
	}
	if len(init) == 0 {
		return nil, errors.New("model has no initial states")
	}
	e := &Explorer[S]{
		gen: gen,
		ids: make(map[S]int),
	}
	for _, s := range init {
		id := e.idOf(s)
		if !containsInt(e.initial, id) {
			e.initial = append(e.initial, id)
		}
	}
	for _, id := range e.initial {
		if err := e.ExploreState(id); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func containsInt(xs []int, x int) bool {
	for _, y := range xs {
		if y == x {
			return true
		}
	}
	return false
}

// idOf returns the id of s, assigning a fresh one for unseen states.
func (e *Explorer[S]) idOf(s S) int {
	if id, ok := e.ids[s]; ok {
		return id
	}
	id := len(e.states)
	e.ids[s] = id
	e.states = append(e.states, s)
	e.choices = append(e.choices, nil)
	e.labels = append(e.labels, nil)
	e.explored = append(e.explored, false)
	return id
}

// ExploreState materializes the actions of a known state. Exploring an
// already explored state is a no-op.
func (e *Explorer[S]) ExploreState(id int) error {
	if id < 0 || id >= len(e.states) {
		return fmt.Errorf("explore %d: %w", id, ErrUnknownState)
	}
	if e.explored[id] {
		return nil
	}
	actions, err := e.gen.Actions(e.states[id])
	if err != nil {
		return fmt.Errorf("explore state %d (%v): %w", id, e.states[id], err)
	}
	choices := make([]Distribution, 0, len(actions))
	labels := make([]string, 0, len(actions))
	for _, a := range actions {
		weights := make(map[int]float64, len(a.Transitions))
		for _, t := range a.Transitions {
			weights[e.idOf(t.To)] += t.Prob
		}
		d, err := NewDistribution(weights)
		if err != nil {
			return fmt.Errorf("explore state %d (%v) action %q: %w", id, e.states[id], a.Label, err)
		}
		choices = append(choices, d)
		labels = append(labels, a.Label)
	}
	e.choices[id] = choices
	e.labels[id] = labels
	e.explored[id] = true
	e.count++
	return nil
}

func (e *Explorer[S]) IsExplored(id int) bool {
	return id >= 0 && id < len(e.explored) && e.explored[id]
}

// ExploredStates returns the explored ids in ascending order.
func (e *Explorer[S]) ExploredStates() []int {
	out := make([]int, 0, e.count)
	for id, ok := range e.explored {
		if ok {
			out = append(out, id)
		}
	}
	return out
}

func (e *Explorer[S]) InitialStates() []int { return append([]int(nil), e.initial...) }
func (e *Explorer[S]) ExploredCount() int   { return e.count }

// StateCount counts every id handed out, explored or not.
func (e *Explorer[S]) StateCount() int { return len(e.states) }

// State maps an id back to the domain state.
func (e *Explorer[S]) State(id int) S { return e.states[id] }

// ID looks up the id of a domain state.
func (e *Explorer[S]) ID(s S) (int, bool) {
	id, ok := e.ids[s]
	return id, ok
}

// Choices returns the distributions of an explored state, nil otherwise.
func (e *Explorer[S]) Choices(id int) []Distribution {
	if !e.IsExplored(id) {
		return nil
	}
	return e.choices[id]
}

// ActionLabels returns the action labels of an explored state in choice order.
func (e *Explorer[S]) ActionLabels(id int) []string {
	if !e.IsExplored(id) {
		return nil
	}
	return e.labels[id]
}

// Target lifts a predicate over domain states to ids.
func Target[S comparable](e *Explorer[S], pred func(S) bool) func(int) bool {
	return func(id int) bool { return pred(e.State(id)) }
}

// Frontier returns known but unexplored ids in ascending order.
func (e *Explorer[S]) Frontier() []int {
	out := make([]int, 0, len(e.states)-e.count)
	for id, ok := range e.explored {
		if !ok {
			out = append(out, id)
		}
	}
	return out
}
