package mdp

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
)

// SumTolerance bounds how far the total mass of a new distribution may drift from 1.
const SumTolerance = 1e-9

// ErrInvalidDistribution is returned for negative, NaN or non-normalized weights.
var ErrInvalidDistribution = errors.New("invalid distribution")

// Distribution is an immutable probability mass function over successor ids.
// Successors are kept sorted ascending; every stored probability is positive.
type Distribution struct {
	succ []int
	prob []float64
}

// NewDistribution builds a distribution from successor weights.
// Zero weights are dropped; the remaining mass must sum to 1.
func NewDistribution(weights map[int]float64) (Distribution, error) {
	succ := make([]int, 0, len(weights))
	total := 0.0
	for s, p := range weights {
		if s < 0 {
			return Distribution{}, fmt.Errorf("%w: negative state id %d", ErrInvalidDistribution, s)
		}
		if math.IsNaN(p) || p < 0 {
			return Distribution{}, fmt.Errorf("%w: weight %g for state %d", ErrInvalidDistribution, p, s)
		}
		if p == 0 {
			continue
		}
		succ = append(succ, s)
		total += p
	}
	if math.Abs(total-1) > SumTolerance {
		return Distribution{}, fmt.Errorf("%w: total mass %g", ErrInvalidDistribution, total)
	}
	sort.Ints(succ)
	prob := make([]float64, len(succ))
	for i, s := range succ {
		prob[i] = weights[s]
	}
	return Distribution{succ: succ, prob: prob}, nil
}

// MustDistribution is NewDistribution for literals known to be valid.
func MustDistribution(weights map[int]float64) Distribution {
	d, err := NewDistribution(weights)
	if err != nil {
		panic(err)
	}
	return d
}

// Dirac puts all mass on s.
func Dirac(s int) Distribution {
	return Distribution{succ: []int{s}, prob: []float64{1}}
}

// Uniform spreads the mass evenly over the given states; repeated states
// accumulate mass.
func Uniform(states ...int) Distribution {
	if len(states) == 0 {
		return Distribution{}
	}
	w := 1.0 / float64(len(states))
	pairs := make([]entry, len(states))
	for i, s := range states {
		pairs[i] = entry{s, w}
	}
	return fromEntries(pairs)
}

type entry struct {
	state int
	prob  float64
}

// fromEntries sorts and merges entries with equal states.
func fromEntries(pairs []entry) Distribution {
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].state < pairs[j].state })
	d := Distribution{
		succ: make([]int, 0, len(pairs)),
		prob: make([]float64, 0, len(pairs)),
	}
	for _, e := range pairs {
		if e.prob <= 0 {
			continue
		}
		n := len(d.succ)
		if n > 0 && d.succ[n-1] == e.state {
			d.prob[n-1] += e.prob
			continue
		}
		d.succ = append(d.succ, e.state)
		d.prob = append(d.prob, e.prob)
	}
	return d
}

func (d Distribution) Len() int      { return len(d.succ) }
func (d Distribution) IsEmpty() bool { return len(d.succ) == 0 }

// Support returns the successor ids in ascending order. The slice is shared
// and must not be modified.
func (d Distribution) Support() []int { return d.succ }

// Prob returns the probability of moving to s.
func (d Distribution) Prob(s int) float64 {
	i := sort.SearchInts(d.succ, s)
	if i < len(d.succ) && d.succ[i] == s {
		return d.prob[i]
	}
	return 0
}

func (d Distribution) Contains(s int) bool { return d.Prob(s) > 0 }

// Total returns the stored mass.
func (d Distribution) Total() float64 {
	t := 0.0
	for _, p := range d.prob {
		t += p
	}
	return t
}

// ForEach calls f for every successor in ascending order.
func (d Distribution) ForEach(f func(s int, p float64)) {
	for i, s := range d.succ {
		f(s, d.prob[i])
	}
}

// SumWeightedExcept returns the expectation of f over all successors other
// than except, renormalized over their mass. A distribution without such
// successors evaluates to 0.
func (d Distribution) SumWeightedExcept(f func(int) float64, except int) float64 {
	sum, mass := 0.0, 0.0
	for i, s := range d.succ {
		if s == except {
			continue
		}
		p := d.prob[i]
		sum += p * f(s)
		mass += p
	}
	if mass <= 0 {
		return 0
	}
	return math.Min(1, sum/mass)
}

// Map renames every successor through f, merging mass of successors that
// end up with the same id.
func (d Distribution) Map(f func(int) int) Distribution {
	changed := false
	pairs := make([]entry, len(d.succ))
	for i, s := range d.succ {
		t := f(s)
		if t != s {
			changed = true
		}
		pairs[i] = entry{t, d.prob[i]}
	}
	if !changed {
		return d
	}
	return fromEntries(pairs)
}

// Without removes successors matching drop and renormalizes the remaining
// mass. It reports false when nothing remains.
func (d Distribution) Without(drop func(int) bool) (Distribution, bool) {
	mass := 0.0
	kept := make([]entry, 0, len(d.succ))
	for i, s := range d.succ {
		if drop(s) {
			continue
		}
		kept = append(kept, entry{s, d.prob[i]})
		mass += d.prob[i]
	}
	if len(kept) == 0 || mass <= 0 {
		return Distribution{}, false
	}
	if len(kept) == len(d.succ) {
		return d, true
	}
	out := Distribution{
		succ: make([]int, len(kept)),
		prob: make([]float64, len(kept)),
	}
	for i, e := range kept {
		out.succ[i] = e.state
		out.prob[i] = e.prob / mass
	}
	return out, true
}

// Sample draws a successor according to the probabilities.
func (d Distribution) Sample(rng *rand.Rand) int {
	if len(d.succ) == 0 {
		return -1
	}
	r := rng.Float64() * d.Total()
	cumulative := 0.0
	for i, p := range d.prob {
		cumulative += p
		if r < cumulative {
			return d.succ[i]
		}
	}
	return d.succ[len(d.succ)-1]
}

func (d Distribution) String() string {
	parts := make([]string, len(d.succ))
	for i, s := range d.succ {
		parts[i] = fmt.Sprintf("%d:%.4g", s, d.prob[i])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
