// Package collapse provides a quotient view of an explored MDP in which end
// components are merged into a single representative state.
package collapse

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rfielding/kripke-mdp/mdp"
)

// ErrInvalidComponent is returned for empty, overlapping or stale components.
var ErrInvalidComponent = errors.New("invalid component")

// Source supplies the original choices of a state. Unexplored states return nil.
type Source interface {
	Choices(state int) []mdp.Distribution
}

// record is one arena slot. parent is the state's own id until it is merged.
type record struct {
	parent  int
	removed bool
	merged  bool
	members []int
}

type cachedChoices struct {
	generation int
	choices    []mdp.Distribution
}

// Model merges components over a Source. Groups are never split; a
// representative may itself be absorbed in a later round.
type Model struct {
	src        Source
	records    []record
	removed    int
	generation int
	cache      map[int]cachedChoices
}

func New(src Source) *Model {
	return &Model{src: src, cache: make(map[int]cachedChoices)}
}

func (m *Model) record(s int) *record {
	for len(m.records) <= s {
		id := len(m.records)
		m.records = append(m.records, record{parent: id})
	}
	return &m.records[s]
}

// Representative resolves s to the state currently standing for it.
func (m *Model) Representative(s int) int {
	if s < 0 || s >= len(m.records) {
		return s
	}
	root := s
	for m.records[root].parent != root {
		root = m.records[root].parent
	}
	for s != root {
		next := m.records[s].parent
		m.records[s].parent = root
		s = next
	}
	return root
}

func (m *Model) IsRemoved(s int) bool {
	return s >= 0 && s < len(m.records) && m.records[s].removed
}

// IsMerged reports whether s represents a collapsed component.
func (m *Model) IsMerged(s int) bool {
	return s >= 0 && s < len(m.records) && m.records[s].merged
}

// Members returns the original states of the component s stands for,
// including s itself, in ascending order.
func (m *Model) Members(s int) []int {
	if !m.IsMerged(s) {
		return []int{s}
	}
	return append([]int(nil), m.records[s].members...)
}

// RemovedStates returns the tombstoned ids in ascending order.
func (m *Model) RemovedStates() []int {
	out := make([]int, 0, m.removed)
	for id, r := range m.records {
		if r.removed {
			out = append(out, id)
		}
	}
	return out
}

func (m *Model) RemovedCount() int { return m.removed }

// Generation counts completed collapses.
func (m *Model) Generation() int { return m.generation }

// Choices returns the choices of s in the quotient. Successors are mapped
// to representatives; for a merged state the mass staying inside the
// component is removed and choices that never leave it are dropped.
// Asking for a removed state panics.
func (m *Model) Choices(s int) []mdp.Distribution {
	if m.IsRemoved(s) {
		panic(fmt.Sprintf("collapse: choices of removed state %d (now %d)", s, m.Representative(s)))
	}
	if !m.IsMerged(s) {
		raw := m.src.Choices(s)
		if raw == nil || m.generation == 0 {
			return raw
		}
		if c, ok := m.cache[s]; ok && c.generation == m.generation {
			return c.choices
		}
		out := make([]mdp.Distribution, len(raw))
		for i, d := range raw {
			out[i] = d.Map(m.Representative)
		}
		m.cache[s] = cachedChoices{m.generation, out}
		return out
	}

	if c, ok := m.cache[s]; ok && c.generation == m.generation {
		return c.choices
	}
	var out []mdp.Distribution
	for _, member := range m.records[s].members {
		for _, d := range m.src.Choices(member) {
			exit, ok := d.Map(m.Representative).Without(func(t int) bool { return t == s })
			if ok {
				out = append(out, exit)
			}
		}
	}
	if out == nil {
		out = []mdp.Distribution{}
	}
	m.cache[s] = cachedChoices{m.generation, out}
	return out
}

// Successors lists the distinct successors of s in the quotient.
func (m *Model) Successors(s int) []int {
	seen := mdp.NewStateSet()
	for _, d := range m.Choices(s) {
		for _, t := range d.Support() {
			seen.Add(t)
		}
	}
	return seen.Sorted()
}

// Collapse merges each component into its smallest member and returns the
// representatives in component order. Components must be non-empty,
// pairwise disjoint and contain no removed state; nothing is changed if
// any of them is invalid.
func (m *Model) Collapse(components []mdp.StateSet) ([]int, error) {
	seen := mdp.NewStateSet()
	for i, c := range components {
		if c.Size() == 0 {
			return nil, fmt.Errorf("%w: component %d is empty", ErrInvalidComponent, i)
		}
		for s := range c {
			if s < 0 {
				return nil, fmt.Errorf("%w: component %d has negative state %d", ErrInvalidComponent, i, s)
			}
			if m.IsRemoved(s) {
				return nil, fmt.Errorf("%w: component %d contains removed state %d", ErrInvalidComponent, i, s)
			}
			if seen.Has(s) {
				return nil, fmt.Errorf("%w: state %d appears in more than one component", ErrInvalidComponent, s)
			}
			seen.Add(s)
		}
	}

	reps := make([]int, 0, len(components))
	for _, c := range components {
		rep := c.Min()
		members := m.Members(rep)
		for s := range c {
			if s == rep {
				continue
			}
			members = append(members, m.Members(s)...)
			r := m.record(s)
			r.parent = rep
			r.removed = true
			r.merged = false
			r.members = nil
			m.removed++
			delete(m.cache, s)
		}
		sort.Ints(members)
		r := m.record(rep)
		r.merged = true
		r.members = members
		reps = append(reps, rep)
	}
	m.generation++
	return reps, nil
}
