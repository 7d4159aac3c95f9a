// Package retry models a sender that may transmit a message or back off
// and wait. Backing off and resuming can repeat forever, which makes the
// idle and waiting states an end component of the MDP.
package retry

import (
	"fmt"

	"github.com/rfielding/kripke-mdp/check"
	"github.com/rfielding/kripke-mdp/mdp"
)

type Phase int

const (
	Idle Phase = iota
	Waiting
	Delivered
	Lost
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Waiting:
		return "waiting"
	case Delivered:
		return "delivered"
	case Lost:
		return "lost"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// State is the sender's phase and the number of failed sends so far.
type State struct {
	Phase Phase
	Tries int
}

func (s State) String() string {
	if s.Phase == Delivered || s.Phase == Lost {
		return s.Phase.String()
	}
	return fmt.Sprintf("%s#%d", s.Phase, s.Tries)
}

// Model sends with SuccessPct per attempt. A failed send drops the message
// for good with DropPct, otherwise it may be retried until Attempts sends
// have failed.
type Model struct {
	Attempts   int
	SuccessPct int
	DropPct    int
}

func (m Model) InitialStates() ([]State, error) {
	if m.Attempts < 1 {
		return nil, fmt.Errorf("retry: need at least one attempt, got %d", m.Attempts)
	}
	return []State{{Phase: Idle}}, nil
}

func (m Model) Actions(s State) ([]mdp.Action[State], error) {
	switch s.Phase {
	case Delivered, Lost:
		return nil, nil
	case Waiting:
		return []mdp.Action[State]{
			move("resume", State{Idle, s.Tries}),
			move("sleep", s),
		}, nil
	}

	success := float64(m.SuccessPct) / 100
	fail := 1 - success
	retry := fail * (1 - float64(m.DropPct)/100)
	next := State{Idle, s.Tries + 1}
	if s.Tries+1 >= m.Attempts {
		next = State{Phase: Lost}
	}
	weights := map[State]float64{}
	weights[State{Phase: Delivered}] += success
	weights[next] += retry
	weights[State{Phase: Lost}] += fail - retry

	send := mdp.Action[State]{Label: "send"}
	for _, to := range []State{{Phase: Delivered}, {Idle, s.Tries + 1}, {Phase: Lost}} {
		if p := weights[to]; p > 0 {
			send.Transitions = append(send.Transitions, mdp.Transition[State]{To: to, Prob: p})
		}
	}
	return []mdp.Action[State]{send, move("backoff", State{Waiting, s.Tries})}, nil
}

func move(label string, to State) mdp.Action[State] {
	return mdp.Action[State]{Label: label, Transitions: []mdp.Transition[State]{{To: to, Prob: 1}}}
}

// Spec registers the model.
type Spec struct{}

func (Spec) Name() string               { return "retry" }
func (Spec) Objective() check.Objective { return check.Max }
func (Spec) Target() string             { return "delivered" }

func (Spec) Description() string {
	return `Sender with a bounded retry budget. From idle it may send, succeeding
with a fixed chance; a failure loses the message with some chance and
otherwise spends one attempt. It may also back off and later resume, forever
if it likes. Computes the best chance of delivery.`
}

func (Spec) Params() []check.Param {
	return []check.Param{
		{Name: "attempts", Description: "sends before giving up", Default: 3, Min: 1, Max: 10000},
		{Name: "success_pct", Description: "chance a send succeeds", Default: 70, Min: 0, Max: 100},
		{Name: "drop_pct", Description: "chance a failed send loses the message", Default: 10, Min: 0, Max: 100},
	}
}

func (s Spec) Problem(params map[string]int) (*check.Problem, error) {
	m := Model{Attempts: params["attempts"], SuccessPct: params["success_pct"], DropPct: params["drop_pct"]}
	return check.NewProblem[State](s.Name(), m,
		func(st State) bool { return st.Phase == Delivered },
		State.String,
	)
}
