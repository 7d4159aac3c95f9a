package sampler

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rfielding/kripke-mdp/bounds"
	"github.com/rfielding/kripke-mdp/graph"
	"github.com/rfielding/kripke-mdp/internal/logging"
	"github.com/rfielding/kripke-mdp/mdp"
)

// liveStates returns the explored states that are not merged away.
func (s *Sampler) liveStates() mdp.StateSet {
	out := mdp.NewStateSet()
	for _, id := range s.explorer.ExploredStates() {
		if !s.model.IsRemoved(id) {
			out.Add(id)
		}
	}
	return out
}

// handleComponents searches for end components and collapses the new ones.
// It reports whether the model changed.
func (s *Sampler) handleComponents(ctx context.Context) (bool, error) {
	if !s.newStatesSinceCollapse {
		return false, nil
	}
	s.newStatesSinceCollapse = false

	_, span := s.tracer.Start(ctx, "sampler.handleComponents")
	defer span.End()

	live := s.liveStates()
	if s.cfg.PruneZero {
		s.pruneZero(live)
	}

	states := live
	if s.cfg.CollapseScope == ScopeSampled {
		states = s.sampledStates.Intersect(live)
	}
	components := s.analyser.FindComponents(s.model, states)
	s.sampledStates = mdp.NewStateSet()
	span.SetAttributes(attribute.Int("subset", states.Size()), attribute.Int("found", len(components)))
	if len(components) == 0 {
		s.logger.Log(ctx, logging.LevelTrace, "found no components")
		return false, nil
	}

	known := s.statesInComponents.Size()
	var fresh []mdp.StateSet
	newStates := 0
	for _, c := range components {
		s.statesInComponents.AddAll(c)
		if size := s.statesInComponents.Size(); size > known {
			known = size
			fresh = append(fresh, c)
			newStates += c.Size()
		}
	}
	s.logger.Debug("found new components", slog.Int("components", len(fresh)), slog.Int("states", newStates))

	if s.rule.IsSmallestFixPoint() {
		// a component with a live exit cannot be collapsed under a least fixpoint
		bottom := fresh[:0]
		for _, c := range fresh {
			if graph.IsBottom(s.model, c) {
				bottom = append(bottom, c)
			}
		}
		fresh = bottom
	}
	if len(fresh) == 0 {
		return false, nil
	}

	reps, err := s.model.Collapse(fresh)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("collapsing components: %w", err)
	}
	for i, c := range fresh {
		if err := s.reseed(reps[i], c); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return false, err
		}
	}

	s.stats.CollapseRounds++
	s.stats.Components += int64(len(fresh))
	s.stats.Collapsed = s.model.RemovedCount()
	s.metrics.collapses.Inc()
	s.metrics.components.Add(float64(len(fresh)))
	s.metrics.removed.Set(float64(s.stats.Collapsed))
	span.SetAttributes(attribute.Int("collapsed", len(fresh)))
	return true, nil
}

// reseed clears the members of a collapsed component and gives the
// representative the collapsed backup, intersected with what the members
// knew before. All members share one value, so every member's bounds are
// bounds for the representative too.
func (s *Sampler) reseed(rep int, component mdp.StateSet) error {
	prior := bounds.ZeroOne
	for m := range component {
		prior = prior.Intersect(s.store.Bounds(m))
		s.store.Clear(m)
	}
	b, err := s.rule.UpdateCollapsed(rep, s.model.Choices(rep), s.model.Members(rep), s.store)
	if err != nil {
		return fmt.Errorf("updating component of %d: %w", rep, err)
	}
	next := b.Intersect(prior)
	if next.Lower > next.Upper {
		if next.Lower-next.Upper > bounds.Tolerance {
			return fmt.Errorf("%w: component of %d: collapsed bounds %v disjoint from member bounds %v",
				bounds.ErrInvariant, rep, b, prior)
		}
		next.Lower = next.Upper
	}
	if err := s.store.SetBounds(rep, next); err != nil {
		return fmt.Errorf("updating component of %d: %w", rep, err)
	}
	return nil
}

// pruneZero sets every live state that cannot reach a target, a state with a
// positive lower bound or the unexplored frontier to [0,0].
func (s *Sampler) pruneZero(live mdp.StateSet) {
	reach := graph.ExistsEventually(s.model, live, func(t int) bool {
		return s.rule.IsTarget(t) || s.store.LowerBound(t) > 0
	})
	pruned := 0
	for t := range live {
		if reach.Has(t) || s.store.UpperBound(t) == 0 {
			continue
		}
		s.store.SetZero(t)
		pruned++
	}
	if pruned > 0 {
		s.stats.ZeroPruned += int64(pruned)
		s.metrics.zeroPruned.Add(float64(pruned))
		s.logger.Debug("pruned zero states", slog.Int("states", pruned))
	}
}
