package check

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Param is an integer knob of a registered model.
type Param struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Default     int    `json:"default"`
	Min         int    `json:"min"`
	Max         int    `json:"max"`
}

// Spec is the small API that model packages implement.
type Spec interface {
	Name() string
	Description() string
	Objective() Objective
	// Target names the states the objective measures, for help output.
	Target() string
	Params() []Param
	// Problem builds a fresh problem. params has been through Resolve.
	Problem(params map[string]int) (*Problem, error)
}

// Resolve fills in defaults and range-checks the given values. Unknown
// names are rejected.
func Resolve(spec Spec, given map[string]int) (map[string]int, error) {
	known := make(map[string]Param)
	out := make(map[string]int)
	for _, p := range spec.Params() {
		known[p.Name] = p
		out[p.Name] = p.Default
	}
	names := make([]string, 0, len(given))
	for name := range given {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("model %s has no parameter %q", spec.Name(), name)
		}
		v := given[name]
		if v < p.Min || v > p.Max {
			return nil, fmt.Errorf("model %s: %s=%d outside [%d, %d]", spec.Name(), name, v, p.Min, p.Max)
		}
		out[name] = v
	}
	return out, nil
}

// Build resolves params and builds the problem of spec.
func Build(spec Spec, given map[string]int) (*Problem, error) {
	params, err := Resolve(spec, given)
	if err != nil {
		return nil, err
	}
	return spec.Problem(params)
}

// ParseParams parses k=v pairs as given on a command line.
func ParseParams(pairs []string) (map[string]int, error) {
	out := make(map[string]int, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("parameter %q: want name=value", kv)
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}
