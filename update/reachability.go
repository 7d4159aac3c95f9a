package update

import (
	"fmt"

	"github.com/rfielding/kripke-mdp/bounds"
	"github.com/rfielding/kripke-mdp/mdp"
)

// Reachability is the backup for "probability of eventually reaching a
// target". Targets are solved up front with [1,1] and never updated.
type Reachability struct {
	target func(int) bool
	policy Policy
}

func NewReachability(target func(int) bool, policy Policy) *Reachability {
	if target == nil {
		target = func(int) bool { return false }
	}
	return &Reachability{target: target, policy: policy}
}

// NewCore bounds the probability of leaving the explored region under the
// best scheduler. There are no targets; unexplored states keep their default
// upper bound of 1 and so play the part of the target.
func NewCore() *Reachability {
	return NewReachability(nil, Max)
}

func (r *Reachability) IsSmallestFixPoint() bool { return r.policy.IsSmallestFixPoint() }
func (r *Reachability) IsTarget(state int) bool  { return r.target(state) }

// InitialValues seeds a freshly discovered state.
func (r *Reachability) InitialValues(state int) bounds.Bounds {
	if r.target(state) {
		return bounds.OneOne
	}
	return bounds.ZeroOne
}

// Update computes new bounds for state from its choices.
func (r *Reachability) Update(state int, choices []mdp.Distribution, store bounds.Store) (bounds.Bounds, error) {
	cur := store.Bounds(state)
	if cur.IsOne() {
		if cur.Upper != 1 {
			return bounds.Bounds{}, fmt.Errorf("%w: state %d has lower bound 1 but upper %g", bounds.ErrInvariant, state, cur.Upper)
		}
		return bounds.OneOne, nil
	}
	if cur.IsZero() {
		return bounds.ZeroZero, nil
	}
	if r.target(state) {
		return bounds.Bounds{}, fmt.Errorf("%w: target state %d is not solved", bounds.ErrInvariant, state)
	}

	switch len(choices) {
	case 0:
		return bounds.ZeroZero, nil
	case 1:
		return store.BoundsOf(state, choices[0]), nil
	}

	first := store.BoundsOf(state, choices[0])
	lower, upper := first.Lower, first.Upper
	for _, d := range choices[1:] {
		b := store.BoundsOf(state, d)
		lower = r.policy.Combine(lower, b.Lower)
		upper = r.policy.Combine(upper, b.Upper)
	}
	if lower > upper+bounds.Tolerance {
		return bounds.Bounds{}, fmt.Errorf("%w: state %d combined to lower %g > upper %g", bounds.ErrInvariant, state, lower, upper)
	}
	return bounds.Bounds{Lower: lower, Upper: upper}, nil
}

// UpdateCollapsed computes the bounds of a freshly collapsed component from
// its representative's merged choices.
func (r *Reachability) UpdateCollapsed(rep int, choices []mdp.Distribution, absorbed []int, store bounds.Store) (bounds.Bounds, error) {
	for _, s := range absorbed {
		if r.target(s) {
			return bounds.OneOne, nil
		}
	}
	if r.policy == Min && len(choices) > 0 {
		return bounds.Bounds{}, fmt.Errorf("%w: component of %d has %d exits; only bottom components collapse under min",
			bounds.ErrInvalidArgument, rep, len(choices))
	}
	return r.Update(rep, choices, store)
}
