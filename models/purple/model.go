// Package purple models the keyspace collapse of the PURPLE diplomatic
// cipher as an MDP. The attacker spends intercepted traffic to solve the
// vowel channel, then the consonant channel, and may gamble on a guess at
// any point. Burnt guesses alert the other side and end the attack.
package purple

import (
	"fmt"

	"github.com/rfielding/kripke-mdp/check"
	"github.com/rfielding/kripke-mdp/mdp"
)

// Stage is how far the keyspace has collapsed.
type Stage int

const (
	UnknownKey Stage = iota
	Unsolved
	VowelSolved
	ConsonantSolved
	UniqueKey
	Burnt
)

var stageNames = [...]string{"UnknownKey", "Unsolved", "VowelSolved", "ConsonantSolved", "UniqueKey", "Burnt"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// State is the attacker's position.
type State struct {
	Stage   Stage
	Traffic int // intercepted messages still unread
}

func (s State) String() string { return fmt.Sprintf("%s/%d", s.Stage, s.Traffic) }

// Model generates the attack. Percentages are per message or per guess.
type Model struct {
	Traffic      int
	VowelPct     int
	ConsonantPct int
}

// guessPct is the chance a guess names the key at each stage.
var guessPct = map[Stage]int{Unsolved: 2, VowelSolved: 10, ConsonantSolved: 60}

func (m Model) InitialStates() ([]State, error) {
	if m.Traffic < 0 {
		return nil, fmt.Errorf("purple: negative traffic %d", m.Traffic)
	}
	return []State{{Stage: UnknownKey, Traffic: m.Traffic}}, nil
}

func (m Model) Actions(s State) ([]mdp.Action[State], error) {
	switch s.Stage {
	case UniqueKey, Burnt:
		return nil, nil
	case UnknownKey:
		return []mdp.Action[State]{
			{Label: "intercept", Transitions: []mdp.Transition[State]{{To: State{Unsolved, s.Traffic}, Prob: 1}}},
		}, nil
	}

	var out []mdp.Action[State]
	if s.Traffic > 0 && s.Stage < ConsonantSolved {
		p := float64(m.VowelPct) / 100
		if s.Stage == VowelSolved {
			p = float64(m.ConsonantPct) / 100
		}
		out = append(out, action("observe", p, State{s.Stage + 1, s.Traffic - 1}, State{s.Stage, s.Traffic - 1}))
	}
	g := float64(guessPct[s.Stage]) / 100
	out = append(out, action("guess", g, State{UniqueKey, s.Traffic}, State{Burnt, s.Traffic}))
	return out, nil
}

// action moves to win with probability p and to lose otherwise.
func action(label string, p float64, win, lose State) mdp.Action[State] {
	a := mdp.Action[State]{Label: label}
	if p > 0 {
		a.Transitions = append(a.Transitions, mdp.Transition[State]{To: win, Prob: p})
	}
	if p < 1 {
		a.Transitions = append(a.Transitions, mdp.Transition[State]{To: lose, Prob: 1 - p})
	}
	return a
}

// Spec registers the model.
type Spec struct{}

func (Spec) Name() string               { return "purple" }
func (Spec) Objective() check.Objective { return check.Max }
func (Spec) Target() string             { return "UniqueKey" }

func (Spec) Description() string {
	return `PURPLE diplomatic cipher keyspace collapse. The cipher splits the
alphabet into independent vowel and consonant channels, so the attacker can
solve them one after the other from intercepted traffic. Each message read
solves the current channel with some chance; a guess names the key with a
chance that grows as the keyspace shrinks, and a wrong guess burns the attack.
Computes the best chance of recovering the key before traffic runs out.`
}

func (Spec) Params() []check.Param {
	return []check.Param{
		{Name: "traffic", Description: "intercepted messages", Default: 12, Min: 0, Max: 10000},
		{Name: "vowel_pct", Description: "chance a message solves the vowel channel", Default: 30, Min: 0, Max: 100},
		{Name: "consonant_pct", Description: "chance a message solves the consonant channel", Default: 15, Min: 0, Max: 100},
	}
}

func (s Spec) Problem(params map[string]int) (*check.Problem, error) {
	m := Model{Traffic: params["traffic"], VowelPct: params["vowel_pct"], ConsonantPct: params["consonant_pct"]}
	return check.NewProblem[State](s.Name(), m,
		func(st State) bool { return st.Stage == UniqueKey },
		State.String,
	)
}
