// Package export renders an explored model and its bounds as Graphviz DOT or
// Mermaid state diagrams, and run results as markdown tables.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/rfielding/kripke-mdp/bounds"
	"github.com/rfielding/kripke-mdp/mdp"
)

// View is the collapsed model as seen by a sampler.
type View interface {
	InitialStates() []int
	ExploredStates() []int
	IsRemoved(state int) bool
	Representative(state int) int
	Choices(state int) []mdp.Distribution
	Bounds(state int) bounds.Bounds
}

type options struct {
	name      func(int) string
	highlight func(int) bool
	labels    func(int) []string
}

// Option tunes a diagram.
type Option func(*options)

// WithStateNamer prints states with name instead of their id.
func WithStateNamer(name func(id int) string) Option {
	return func(o *options) { o.name = name }
}

// WithHighlight marks the states for which pred holds, typically targets.
func WithHighlight(pred func(id int) bool) Option {
	return func(o *options) { o.highlight = pred }
}

// WithEdgeLabels names choices by action label. Labels are only used when
// they line up with the state's choices, which is not the case for
// collapsed states.
func WithEdgeLabels(labels func(id int) []string) Option {
	return func(o *options) { o.labels = labels }
}

func newOptions(opts []Option) options {
	o := options{
		name:      func(id int) string { return fmt.Sprintf("%d", id) },
		highlight: func(int) bool { return false },
		labels:    func(int) []string { return nil },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// edge is one probabilistic transition of a numbered choice.
type edge struct {
	from, choice, to int
	label            string
	prob             float64
}

// diagram is the renderer-independent content of a view.
type diagram struct {
	initial  []int
	states   []int
	frontier []int
	edges    []edge
	// choices per state, used to decide whether choice nodes are needed
	choices  map[int]int
}

func build(v View, o options) diagram {
	d := diagram{choices: make(map[int]int)}
	seen := mdp.NewStateSet()
	for _, s := range v.InitialStates() {
		r := v.Representative(s)
		if !seen.Has(r) {
			seen.Add(r)
			d.initial = append(d.initial, r)
		}
	}

	explored := mdp.NewStateSet()
	for _, s := range v.ExploredStates() {
		if !v.IsRemoved(s) {
			explored.Add(s)
			d.states = append(d.states, s)
		}
	}

	frontier := mdp.NewStateSet()
	for _, s := range d.states {
		choices := v.Choices(s)
		d.choices[s] = len(choices)
		labels := o.labels(s)
		if len(labels) != len(choices) {
			labels = nil
		}
		for i, c := range choices {
			label := fmt.Sprintf("a%d", i)
			if labels != nil {
				label = labels[i]
			}
			c.ForEach(func(t int, p float64) {
				d.edges = append(d.edges, edge{from: s, choice: i, to: t, label: label, prob: p})
				if !explored.Has(t) {
					frontier.Add(t)
				}
			})
		}
	}
	d.frontier = frontier.Sorted()
	return d
}

func nodeLabel(v View, o options, id int) string {
	return fmt.Sprintf("%s %s", o.name(id), v.Bounds(id))
}

func formatProb(p float64) string { return fmt.Sprintf("%.4g", p) }

// WriteDOT writes a Graphviz digraph of the explored, non-removed states.
// States with several choices get a point node per choice.
func WriteDOT(w io.Writer, v View, opts ...Option) error {
	o := newOptions(opts)
	d := build(v, o)
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "digraph MDP {")
	fmt.Fprintln(bw, "  rankdir=LR;")
	fmt.Fprintln(bw, "  node [shape=circle];")
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "  start [shape=point];")
	for _, s := range d.initial {
		fmt.Fprintf(bw, "  start -> s%d;\n", s)
	}
	fmt.Fprintln(bw)

	for _, s := range d.states {
		attrs := fmt.Sprintf("label=%q", nodeLabel(v, o, s))
		if o.highlight(s) {
			attrs += ", style=filled, fillcolor=palegreen"
		}
		fmt.Fprintf(bw, "  s%d [%s];\n", s, attrs)
	}
	for _, s := range d.frontier {
		attrs := fmt.Sprintf("label=%q, style=dashed", nodeLabel(v, o, s))
		if o.highlight(s) {
			attrs = fmt.Sprintf("label=%q, style=\"dashed,filled\", fillcolor=palegreen", nodeLabel(v, o, s))
		}
		fmt.Fprintf(bw, "  s%d [%s];\n", s, attrs)
	}
	fmt.Fprintln(bw)

	pointed := make(map[[2]int]bool)
	for _, e := range d.edges {
		if d.choices[e.from] == 1 {
			fmt.Fprintf(bw, "  s%d -> s%d [label=%q];\n", e.from, e.to, e.label+" "+formatProb(e.prob))
			continue
		}
		key := [2]int{e.from, e.choice}
		if !pointed[key] {
			pointed[key] = true
			fmt.Fprintf(bw, "  s%d_%d [shape=point];\n", e.from, e.choice)
			fmt.Fprintf(bw, "  s%d -> s%d_%d [label=%q, arrowhead=none];\n", e.from, e.from, e.choice, e.label)
		}
		fmt.Fprintf(bw, "  s%d_%d -> s%d [label=%q];\n", e.from, e.choice, e.to, formatProb(e.prob))
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

// WriteMermaid writes a Mermaid stateDiagram-v2 of the explored,
// non-removed states.
func WriteMermaid(w io.Writer, v View, opts ...Option) error {
	o := newOptions(opts)
	d := build(v, o)
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "stateDiagram-v2")
	for _, s := range d.initial {
		fmt.Fprintf(bw, "  [*] --> s%d\n", s)
	}
	fmt.Fprintln(bw)

	var highlighted []string
	for _, s := range d.states {
		fmt.Fprintf(bw, "  s%d : %s\n", s, mermaidText(nodeLabel(v, o, s)))
		if o.highlight(s) {
			highlighted = append(highlighted, fmt.Sprintf("s%d", s))
		}
	}
	for _, s := range d.frontier {
		fmt.Fprintf(bw, "  s%d : %s (unexplored)\n", s, mermaidText(nodeLabel(v, o, s)))
		if o.highlight(s) {
			highlighted = append(highlighted, fmt.Sprintf("s%d", s))
		}
	}
	fmt.Fprintln(bw)

	for _, e := range d.edges {
		fmt.Fprintf(bw, "  s%d --> s%d : %s %s\n", e.from, e.to, mermaidText(e.label), formatProb(e.prob))
	}

	if len(highlighted) > 0 {
		fmt.Fprintln(bw)
		fmt.Fprintln(bw, "  classDef target fill:#9f9")
		fmt.Fprintf(bw, "  class %s target\n", strings.Join(highlighted, ","))
	}
	return bw.Flush()
}

// mermaidText drops characters that end a Mermaid description early.
func mermaidText(s string) string {
	return strings.NewReplacer(":", " ", ";", ",", "\n", " ").Replace(s)
}
