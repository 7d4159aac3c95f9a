package sampler

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// Candidate is a successor the walk could move to.
type Candidate struct {
	State       int
	Prob        float64
	Uncertainty float64
}

// Heuristic picks the next state among candidates, or returns -1 when none
// is worth following. Candidates are never empty.
type Heuristic func(rng *rand.Rand, candidates []Candidate) int

// HeuristicKind names a built-in heuristic.
type HeuristicKind string

const (
	HeuristicSample           HeuristicKind = "sample"
	HeuristicDifferenceSample HeuristicKind = "difference-sample"
	HeuristicDifferenceGreedy HeuristicKind = "difference-greedy"
)

// Func resolves the kind to its implementation.
func (k HeuristicKind) Func() (Heuristic, error) {
	switch k {
	case HeuristicSample:
		return SampleByProbability, nil
	case HeuristicDifferenceSample, "":
		return SampleByDifference, nil
	case HeuristicDifferenceGreedy:
		return GreedyDifference, nil
	}
	return nil, fmt.Errorf("unknown heuristic %q", string(k))
}

func (k *HeuristicKind) UnmarshalText(text []byte) error {
	kind := HeuristicKind(strings.ToLower(strings.TrimSpace(string(text))))
	if _, err := kind.Func(); err != nil {
		return err
	}
	*k = kind
	return nil
}

// SampleByProbability follows the transition probabilities.
func SampleByProbability(rng *rand.Rand, cs []Candidate) int {
	return weighted(rng, cs, func(c Candidate) float64 { return c.Prob })
}

// SampleByDifference weighs each successor by probability times bound width,
// steering the walk toward the uncertain part of the model.
func SampleByDifference(rng *rand.Rand, cs []Candidate) int {
	return weighted(rng, cs, func(c Candidate) float64 { return c.Prob * c.Uncertainty })
}

// GreedyDifference takes the successor with the largest weighted width;
// ties go to the first.
func GreedyDifference(_ *rand.Rand, cs []Candidate) int {
	best, bestScore := -1, 0.0
	for _, c := range cs {
		if score := c.Prob * c.Uncertainty; score > bestScore {
			best, bestScore = c.State, score
		}
	}
	return best
}

func weighted(rng *rand.Rand, cs []Candidate, weight func(Candidate) float64) int {
	total := 0.0
	for _, c := range cs {
		total += weight(c)
	}
	if total <= 0 {
		return -1
	}
	r := rng.Float64() * total
	last := -1
	for _, c := range cs {
		w := weight(c)
		if w <= 0 {
			continue
		}
		last = c.State
		r -= w
		if r < 0 {
			return c.State
		}
	}
	return last
}
