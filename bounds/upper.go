package bounds

import (
	"fmt"
	"math"

	"github.com/rfielding/kripke-mdp/mdp"
)

// UpperStore tracks only upper bounds. Lower bounds are structurally 0, which
// is all a reachability objective without targets needs: losing states are
// absorbing at 0 and recorded in a separate proven-zero set.
//
// A state is in at most one of: a finite entry below 1, the zero set, or
// neither (default 1).
type UpperStore struct {
	upper map[int]float64
	zero  mdp.StateSet
}

func NewUpperStore() *UpperStore {
	return &UpperStore{
		upper: make(map[int]float64),
		zero:  mdp.NewStateSet(),
	}
}

func (u *UpperStore) Bounds(s int) Bounds {
	return Bounds{0, u.UpperBound(s)}
}

func (u *UpperStore) LowerBound(int) float64 { return 0 }

func (u *UpperStore) UpperBound(s int) float64 {
	if u.zero.Has(s) {
		return 0
	}
	if v, ok := u.upper[s]; ok {
		return v
	}
	return 1
}

func (u *UpperStore) BoundsOf(s int, d mdp.Distribution) Bounds {
	return Bounds{0, u.UpperBoundOf(s, d)}
}

func (u *UpperStore) LowerBoundOf(int, mdp.Distribution) float64 { return 0 }

// UpperBoundOf is the expected upper bound over d, skipping s itself.
func (u *UpperStore) UpperBoundOf(s int, d mdp.Distribution) float64 {
	return d.SumWeightedExcept(u.UpperBound, s)
}

func (u *UpperStore) Difference(s int) float64 { return u.UpperBound(s) }

func (u *UpperStore) SetBounds(s int, b Bounds) error {
	if b.Lower != 0 {
		return fmt.Errorf("%w: state %d: upper store cannot hold lower bound %g", ErrInvalidArgument, s, b.Lower)
	}
	return u.SetUpperBound(s, b.Upper)
}

func (u *UpperStore) SetLowerBound(s int, v float64) error {
	if v != 0 {
		return fmt.Errorf("%w: state %d: upper store cannot hold lower bound %g", ErrInvalidArgument, s, v)
	}
	return nil
}

// SetUpperBound lowers the upper bound of s to v. Raising a bound beyond
// Tolerance is an ErrInvariant; within it the tighter value is kept.
func (u *UpperStore) SetUpperBound(s int, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: state %d: upper bound %g outside [0,1]", ErrInvariant, s, v)
	}
	if v == 0 {
		u.SetZero(s)
		return nil
	}
	old := u.UpperBound(s)
	if v > old+Tolerance {
		return fmt.Errorf("%w: state %d: upper bound raised from %g to %g", ErrInvariant, s, old, v)
	}
	if v == 1 {
		// default already 1; an existing entry means the bound was lowered before
		if _, ok := u.upper[s]; ok && old < 1-Tolerance {
			return fmt.Errorf("%w: state %d: upper bound reset to 1 from %g", ErrInvariant, s, old)
		}
		return nil
	}
	if u.zero.Has(s) {
		return nil
	}
	u.upper[s] = math.Min(old, v)
	return nil
}

// SetZero records s as proven zero. Idempotent.
func (u *UpperStore) SetZero(s int) {
	delete(u.upper, s)
	u.zero.Add(s)
}

// Clear restores the default upper bound of 1.
func (u *UpperStore) Clear(s int) {
	delete(u.upper, s)
	u.zero.Remove(s)
}

// ZeroCount reports how many states are proven zero.
func (u *UpperStore) ZeroCount() int { return u.zero.Size() }
