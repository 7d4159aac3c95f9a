// Package update implements the Bellman backup used by the sampler.
package update

import (
	"fmt"
	"math"
	"strings"
)

// Policy says how the choices of a state are combined.
type Policy int

const (
	// Max maximizes the probability of reaching a target (greatest value
	// over schedulers).
	Max Policy = iota
	// Min minimizes it; the value is the smallest fixpoint.
	Min
)

func (p Policy) String() string {
	if p == Min {
		return "min"
	}
	return "max"
}

// IsSmallestFixPoint is true for Min.
func (p Policy) IsSmallestFixPoint() bool { return p == Min }

// Combine folds two candidate values by the policy's comparison.
func (p Policy) Combine(a, b float64) float64 {
	if p == Min {
		return math.Min(a, b)
	}
	return math.Max(a, b)
}

func (p *Policy) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "max", "":
		*p = Max
	case "min":
		*p = Min
	default:
		return fmt.Errorf("unknown policy %q (want max or min)", text)
	}
	return nil
}

func (p Policy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }
