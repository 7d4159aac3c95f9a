package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rfielding/kripke-mdp/check"
	"github.com/rfielding/kripke-mdp/export"
	"github.com/rfielding/kripke-mdp/internal/config"
	"github.com/rfielding/kripke-mdp/mdp"
	"github.com/rfielding/kripke-mdp/sampler"
)

// job is one resolved problem ready to run.
type job struct {
	problem   *check.Problem
	objective check.Objective
	cfg       sampler.Config
}

// outcome is what a job reports, in the shape printed as JSON.
type outcome struct {
	Objective check.Objective `json:"objective"`
	*sampler.Result
}

// buildJob resolves a problem entry against the registry or a model file.
func (a *app) buildJob(pc config.ProblemConfig) (*job, error) {
	if err := pc.Validate(); err != nil {
		return nil, err
	}

	var (
		p         *check.Problem
		objective = pc.Objective
		err       error
	)
	switch {
	case pc.Model != "":
		spec, lookupErr := a.registry.Lookup(pc.Model)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if p, err = check.Build(spec, pc.Params); err != nil {
			return nil, err
		}
		if objective == "" {
			objective = spec.Objective()
		}
	default:
		m, loadErr := mdp.LoadExplicitFile(pc.File)
		if loadErr != nil {
			return nil, loadErr
		}
		if p, err = check.ExplicitProblem(pc.Label(), m, pc.Target); err != nil {
			return nil, err
		}
		if objective == "" {
			objective = check.Max
		}
	}
	p.Name = pc.Label()

	cfg := a.cfg.Sampler
	if pc.Precision > 0 {
		cfg.Precision = pc.Precision
	}
	return &job{problem: p, objective: objective, cfg: cfg}, nil
}

func (a *app) runJob(ctx context.Context, j *job, reg prometheus.Registerer) (*outcome, *sampler.Sampler, error) {
	res, s, err := check.Run(ctx, j.problem, j.objective, j.cfg,
		sampler.WithLogger(a.logger),
		sampler.WithRegisterer(reg),
	)
	if res == nil {
		return nil, s, err
	}
	return &outcome{Objective: j.objective, Result: res}, s, err
}

// writeDiagram creates path and fills it with write.
func writeDiagram(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating diagram: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing diagram %s: %w", path, err)
	}
	return f.Close()
}

func diagramOptions(p *check.Problem) []export.Option {
	return []export.Option{
		export.WithStateNamer(p.Describe),
		export.WithHighlight(p.Target),
		export.WithEdgeLabels(p.Explorer.ActionLabels),
	}
}
