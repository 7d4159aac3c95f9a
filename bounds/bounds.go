// Package bounds keeps per-state probability intervals that only ever tighten.
package bounds

import (
	"fmt"
	"math"

	"github.com/rfielding/kripke-mdp/mdp"
)

// Tolerance absorbs floating point noise in monotonicity checks.
const Tolerance = 1e-12

// Bounds is a closed interval [Lower, Upper] within [0,1].
type Bounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

var (
	ZeroOne  = Bounds{0, 1}
	ZeroZero = Bounds{0, 0}
	OneOne   = Bounds{1, 1}
)

// New builds bounds, rejecting intervals outside [0,1] or with Lower > Upper.
func New(lower, upper float64) (Bounds, error) {
	b := Bounds{lower, upper}
	if err := b.Validate(); err != nil {
		return Bounds{}, err
	}
	return b, nil
}

// Validate reports malformed intervals as ErrInvariant.
func (b Bounds) Validate() error {
	if math.IsNaN(b.Lower) || math.IsNaN(b.Upper) ||
		b.Lower < 0 || b.Upper > 1 || b.Lower > b.Upper+Tolerance {
		return fmt.Errorf("%w: malformed bounds %v", ErrInvariant, b)
	}
	return nil
}

func (b Bounds) Width() float64 { return b.Upper - b.Lower }
func (b Bounds) IsZero() bool   { return b.Upper == 0 }
func (b Bounds) IsOne() bool    { return b.Lower == 1 }

// Contains reports whether v lies in the interval, up to Tolerance.
func (b Bounds) Contains(v float64) bool {
	return v >= b.Lower-Tolerance && v <= b.Upper+Tolerance
}

// Intersect narrows b by o. The result may be empty if the two disagree.
func (b Bounds) Intersect(o Bounds) Bounds {
	return Bounds{math.Max(b.Lower, o.Lower), math.Min(b.Upper, o.Upper)}
}

func (b Bounds) String() string { return fmt.Sprintf("[%.6g, %.6g]", b.Lower, b.Upper) }

// Store is the interval store consumed by update rules and the sampler.
type Store interface {
	Bounds(s int) Bounds
	LowerBound(s int) float64
	UpperBound(s int) float64
	BoundsOf(s int, d mdp.Distribution) Bounds
	LowerBoundOf(s int, d mdp.Distribution) float64
	UpperBoundOf(s int, d mdp.Distribution) float64
	Difference(s int) float64
	SetBounds(s int, b Bounds) error
	SetLowerBound(s int, v float64) error
	SetUpperBound(s int, v float64) error
	SetZero(s int)
	Clear(s int)
}

// Verdict decides when an interval is tight enough.
type Verdict struct {
	Precision float64
	Relative  bool
}

// Solved reports whether the width is below the precision, scaled by the
// upper bound in relative mode.
func (v Verdict) Solved(b Bounds) bool {
	if v.Relative {
		return b.Width() < v.Precision*b.Upper || b.Width() == 0
	}
	return b.Width() < v.Precision
}
