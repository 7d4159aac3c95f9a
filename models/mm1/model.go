// Package mm1 models a bounded single-server queue, sampled once per time
// slot. The controller picks slow or fast service; fast service drains the
// queue quicker but risks a fault that leaves only slow service for the
// rest of the shift. The shift ends with a fixed chance each slot.
package mm1

import (
	"fmt"
	"sort"

	"github.com/rfielding/kripke-mdp/check"
	"github.com/rfielding/kripke-mdp/mdp"
)

// State is the queue length and server health. Queue > capacity is the
// overflow, Closed the end of the shift.
type State struct {
	Queue    int
	Degraded bool
	Closed   bool
}

func (s State) String() string {
	switch {
	case s.Closed:
		return "closed"
	case s.Degraded:
		return fmt.Sprintf("q=%d degraded", s.Queue)
	}
	return fmt.Sprintf("q=%d", s.Queue)
}

// Model holds the per-slot chances in percent.
type Model struct {
	Capacity   int
	ArrivalPct int
	SlowPct    int
	FastPct    int
	FaultPct   int
	EndPct     int
}

func (m Model) Overflow(s State) bool { return !s.Closed && s.Queue > m.Capacity }

func (m Model) InitialStates() ([]State, error) {
	if m.Capacity < 1 {
		return nil, fmt.Errorf("mm1: capacity must be positive, got %d", m.Capacity)
	}
	if m.EndPct <= 0 {
		return nil, fmt.Errorf("mm1: the shift must be able to end")
	}
	return []State{{}}, nil
}

func (m Model) Actions(s State) ([]mdp.Action[State], error) {
	if s.Closed || m.Overflow(s) {
		return nil, nil
	}
	out := []mdp.Action[State]{m.slot("slow", s, m.SlowPct, 0)}
	if !s.Degraded {
		out = append(out, m.slot("fast", s, m.FastPct, m.FaultPct))
	}
	return out, nil
}

// slot is one time slot: the shift may end, otherwise one arrival and one
// departure may happen independently and the server may fault.
func (m Model) slot(label string, s State, servicePct, faultPct int) mdp.Action[State] {
	end := pct(m.EndPct)
	arrive := pct(m.ArrivalPct)
	serve := 0.0
	if s.Queue > 0 {
		serve = pct(servicePct)
	}
	fault := pct(faultPct)

	weights := make(map[State]float64)
	add := func(to State, p float64) {
		if p > 0 {
			weights[to] += p
		}
	}
	add(State{Closed: true}, end)
	for _, f := range []struct {
		degraded bool
		p        float64
	}{{s.Degraded, 1 - fault}, {true, fault}} {
		rest := (1 - end) * f.p
		add(State{Queue: s.Queue + 1, Degraded: f.degraded}, rest*arrive*(1-serve))
		add(State{Queue: s.Queue - 1, Degraded: f.degraded}, rest*(1-arrive)*serve)
		add(State{Queue: s.Queue, Degraded: f.degraded}, rest*(arrive*serve+(1-arrive)*(1-serve)))
	}

	a := mdp.Action[State]{Label: label}
	for _, to := range order(weights) {
		a.Transitions = append(a.Transitions, mdp.Transition[State]{To: to, Prob: weights[to]})
	}
	return a
}

func pct(v int) float64 { return float64(v) / 100 }

// order lists successors deterministically so ids are stable between runs.
func order(weights map[State]float64) []State {
	out := make([]State, 0, len(weights))
	for to := range weights {
		out = append(out, to)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Closed != b.Closed {
			return a.Closed
		}
		if a.Degraded != b.Degraded {
			return !a.Degraded
		}
		return a.Queue < b.Queue
	})
	return out
}

// Spec registers the model.
type Spec struct{}

func (Spec) Name() string               { return "mm1" }
func (Spec) Objective() check.Objective { return check.Min }
func (Spec) Target() string             { return "overflow" }

func (Spec) Description() string {
	return `Bounded M/M/1 queue observed once per time slot. Each slot one job may
arrive and one may leave. The controller serves slowly, or fast at the risk of
a fault after which only slow service is left. The shift ends with a fixed
chance per slot. Computes the least chance that the queue overflows its
capacity before the shift ends.`
}

func (Spec) Params() []check.Param {
	return []check.Param{
		{Name: "capacity", Description: "jobs the queue holds", Default: 5, Min: 1, Max: 10000},
		{Name: "arrival_pct", Description: "chance of an arrival per slot", Default: 40, Min: 0, Max: 100},
		{Name: "slow_pct", Description: "chance slow service finishes a job", Default: 30, Min: 0, Max: 100},
		{Name: "fast_pct", Description: "chance fast service finishes a job", Default: 70, Min: 0, Max: 100},
		{Name: "fault_pct", Description: "chance fast service faults", Default: 5, Min: 0, Max: 100},
		{Name: "end_pct", Description: "chance the shift ends per slot", Default: 2, Min: 1, Max: 100},
	}
}

func (s Spec) Problem(params map[string]int) (*check.Problem, error) {
	m := Model{
		Capacity:   params["capacity"],
		ArrivalPct: params["arrival_pct"],
		SlowPct:    params["slow_pct"],
		FastPct:    params["fast_pct"],
		FaultPct:   params["fault_pct"],
		EndPct:     params["end_pct"],
	}
	return check.NewProblem[State](s.Name(), m, m.Overflow, State.String)
}
