package mdp

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Explicit is a small hand-built MDP over integer states. It satisfies
// Generator[int], so it goes through the same on-demand explorer as the
// implicit models.
type Explicit struct {
	initial []int
	actions map[int][]Action[int]
	labels  map[int]map[string]bool
}

func NewExplicit() *Explicit {
	return &Explicit{
		actions: make(map[int][]Action[int]),
		labels:  make(map[int]map[string]bool),
	}
}

// AddState registers a state with its atomic propositions.
func (m *Explicit) AddState(id int, labels ...string) {
	if _, ok := m.labels[id]; !ok {
		m.labels[id] = make(map[string]bool)
	}
	for _, l := range labels {
		m.labels[id][l] = true
	}
}

// AddChoice appends an action to a state. Successors are registered too.
func (m *Explicit) AddChoice(from int, label string, to map[int]float64) {
	m.AddState(from)
	succ := make([]int, 0, len(to))
	for s := range to {
		succ = append(succ, s)
	}
	sort.Ints(succ)
	a := Action[int]{Label: label}
	for _, s := range succ {
		m.AddState(s)
		a.Transitions = append(a.Transitions, Transition[int]{To: s, Prob: to[s]})
	}
	m.actions[from] = append(m.actions[from], a)
}

// SetInitial replaces the initial states.
func (m *Explicit) SetInitial(ids ...int) {
	m.initial = append([]int(nil), ids...)
	for _, id := range ids {
		m.AddState(id)
	}
}

func (m *Explicit) HasLabel(id int, label string) bool { return m.labels[id][label] }

// Labels returns the propositions of a state in sorted order.
func (m *Explicit) Labels(id int) []string {
	out := make([]string, 0, len(m.labels[id]))
	for l, ok := range m.labels[id] {
		if ok {
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}

// States returns every registered state in ascending order.
func (m *Explicit) States() []int {
	out := make([]int, 0, len(m.labels))
	for id := range m.labels {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func (m *Explicit) InitialStates() ([]int, error) {
	if len(m.initial) == 0 {
		return nil, fmt.Errorf("explicit model has no initial state")
	}
	return append([]int(nil), m.initial...), nil
}

func (m *Explicit) Actions(state int) ([]Action[int], error) {
	if _, ok := m.labels[state]; !ok {
		return nil, fmt.Errorf("state %d: %w", state, ErrUnknownState)
	}
	return m.actions[state], nil
}

// ----- YAML model files -----

// explicitFile is the on-disk layout:
//
//	initial: [0]
//	states:
//	  - id: 0
//	    labels: [init]
//	    actions:
//	      - name: a
//	        to: {1: 0.5, 2: 0.5}
type explicitFile struct {
	Initial []int `yaml:"initial"`
	States  []struct {
		ID      int      `yaml:"id"`
		Labels  []string `yaml:"labels"`
		Actions []struct {
			Name string          `yaml:"name"`
			To   map[int]float64 `yaml:"to"`
		} `yaml:"actions"`
	} `yaml:"states"`
}

// LoadExplicit decodes a YAML model and checks every action is a distribution.
func LoadExplicit(r io.Reader) (*Explicit, error) {
	var f explicitFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing model: %w", err)
	}
	m := NewExplicit()
	for _, st := range f.States {
		m.AddState(st.ID, st.Labels...)
		for _, a := range st.Actions {
			if _, err := NewDistribution(a.To); err != nil {
				return nil, fmt.Errorf("state %d action %q: %w", st.ID, a.Name, err)
			}
			m.AddChoice(st.ID, a.Name, a.To)
		}
	}
	m.SetInitial(f.Initial...)
	if _, err := m.InitialStates(); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadExplicitFile reads a YAML model from disk.
func LoadExplicitFile(path string) (*Explicit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading model file: %w", err)
	}
	defer f.Close()
	return LoadExplicit(f)
}
