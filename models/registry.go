// Package models collects the example models shipped with mdpcheck.
package models

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rfielding/kripke-mdp/check"
	"github.com/rfielding/kripke-mdp/models/mm1"
	"github.com/rfielding/kripke-mdp/models/purple"
	"github.com/rfielding/kripke-mdp/models/retry"
)

var ErrUnknownModel = errors.New("unknown model")

// Registry maps model names to their specs.
type Registry struct {
	specs map[string]check.Spec
}

// NewRegistry registers specs under their names. Names must be unique.
func NewRegistry(specs ...check.Spec) (*Registry, error) {
	r := &Registry{specs: make(map[string]check.Spec, len(specs))}
	for _, s := range specs {
		if _, dup := r.specs[s.Name()]; dup {
			return nil, fmt.Errorf("model %q registered twice", s.Name())
		}
		r.specs[s.Name()] = s
	}
	return r, nil
}

// Default holds the built-in models.
func Default() *Registry {
	r, err := NewRegistry(mm1.Spec{}, purple.Spec{}, retry.Spec{})
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Lookup(name string) (check.Spec, error) {
	s, ok := r.specs[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownModel, name)
	}
	return s, nil
}

// All returns the specs sorted by name.
func (r *Registry) All() []check.Spec {
	out := make([]check.Spec, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
