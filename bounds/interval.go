package bounds

import (
	"fmt"
	"math"

	"github.com/rfielding/kripke-mdp/mdp"
)

// IntervalStore tracks both sides of the interval. Lower bounds only rise,
// upper bounds only fall. Untouched states read as [0,1].
type IntervalStore struct {
	b map[int]Bounds
}

func NewIntervalStore() *IntervalStore {
	return &IntervalStore{b: make(map[int]Bounds)}
}

func (st *IntervalStore) Bounds(s int) Bounds {
	if b, ok := st.b[s]; ok {
		return b
	}
	return ZeroOne
}

func (st *IntervalStore) LowerBound(s int) float64 { return st.Bounds(s).Lower }
func (st *IntervalStore) UpperBound(s int) float64 { return st.Bounds(s).Upper }

func (st *IntervalStore) BoundsOf(s int, d mdp.Distribution) Bounds {
	return Bounds{st.LowerBoundOf(s, d), st.UpperBoundOf(s, d)}
}

func (st *IntervalStore) LowerBoundOf(s int, d mdp.Distribution) float64 {
	return d.SumWeightedExcept(st.LowerBound, s)
}

func (st *IntervalStore) UpperBoundOf(s int, d mdp.Distribution) float64 {
	return d.SumWeightedExcept(st.UpperBound, s)
}

func (st *IntervalStore) Difference(s int) float64 { return st.Bounds(s).Width() }

// SetBounds tightens the interval of s. Loosening either side beyond
// Tolerance is an ErrInvariant; within it the tighter side is kept.
func (st *IntervalStore) SetBounds(s int, b Bounds) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("state %d: %w", s, err)
	}
	old := st.Bounds(s)
	if b.Lower < old.Lower-Tolerance || b.Upper > old.Upper+Tolerance {
		return fmt.Errorf("%w: state %d: bounds loosened from %v to %v", ErrInvariant, s, old, b)
	}
	next := old.Intersect(b)
	if next.Lower > next.Upper {
		if next.Lower-next.Upper > Tolerance {
			return fmt.Errorf("%w: state %d: bounds %v and %v are disjoint", ErrInvariant, s, old, b)
		}
		next.Lower = next.Upper
	}
	if next == ZeroOne {
		return nil
	}
	st.b[s] = next
	return nil
}

func (st *IntervalStore) SetLowerBound(s int, v float64) error {
	cur := st.Bounds(s)
	return st.SetBounds(s, Bounds{v, math.Max(v, cur.Upper)})
}

func (st *IntervalStore) SetUpperBound(s int, v float64) error {
	cur := st.Bounds(s)
	return st.SetBounds(s, Bounds{math.Min(v, cur.Lower), v})
}

// SetZero pins s to [0,0]. Callers must only do so for states whose lower
// bound is still 0; anything else is a broken invariant and panics.
func (st *IntervalStore) SetZero(s int) {
	if lo := st.LowerBound(s); lo > Tolerance {
		panic(fmt.Sprintf("bounds: SetZero on state %d with lower bound %g", s, lo))
	}
	st.b[s] = ZeroZero
}

// Clear restores [0,1].
func (st *IntervalStore) Clear(s int) { delete(st.b, s) }
