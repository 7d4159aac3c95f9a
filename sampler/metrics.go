package sampler

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "mdpcheck"
	metricsSubsystem = "sampler"
)

// Metrics holds the collectors shared by every sampler registered on the
// same registry. Series are split by the problem label.
type Metrics struct {
	trials      *prometheus.CounterVec
	steps       *prometheus.CounterVec
	backtraces  *prometheus.CounterVec
	collapses   *prometheus.CounterVec
	components  *prometheus.CounterVec
	zeroPruned  *prometheus.CounterVec
	explored    *prometheus.GaugeVec
	removed     *prometheus.GaugeVec
	boundWidth  *prometheus.GaugeVec
	runDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered. Collectors already registered by another
// sampler are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	labels := []string{"problem"}
	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: metricsSubsystem, Name: name, Help: help,
		}, labels)
	}
	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: metricsSubsystem, Name: name, Help: help,
		}, labels)
	}
	m := &Metrics{
		trials:     counter("trials_total", "Sampled trajectories."),
		steps:      counter("steps_total", "States visited by trajectories."),
		backtraces: counter("backtraces_total", "Backtracks along a trajectory."),
		collapses:  counter("collapse_rounds_total", "Component searches that collapsed something."),
		components: counter("components_total", "End components collapsed."),
		zeroPruned: counter("zero_pruned_total", "States proven zero by graph analysis."),
		explored:   gauge("explored_states", "States explored so far."),
		removed:    gauge("removed_states", "States merged into a representative."),
		boundWidth: gauge("initial_bound_width", "Width of the bounds of the first initial state."),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Subsystem: metricsSubsystem, Name: "run_duration_seconds",
			Help:    "Wall time of sampler runs.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, labels),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.trials, err = register(reg, m.trials); err != nil {
		return nil, err
	}
	if m.steps, err = register(reg, m.steps); err != nil {
		return nil, err
	}
	if m.backtraces, err = register(reg, m.backtraces); err != nil {
		return nil, err
	}
	if m.collapses, err = register(reg, m.collapses); err != nil {
		return nil, err
	}
	if m.components, err = register(reg, m.components); err != nil {
		return nil, err
	}
	if m.zeroPruned, err = register(reg, m.zeroPruned); err != nil {
		return nil, err
	}
	if m.explored, err = register(reg, m.explored); err != nil {
		return nil, err
	}
	if m.removed, err = register(reg, m.removed); err != nil {
		return nil, err
	}
	if m.boundWidth, err = register(reg, m.boundWidth); err != nil {
		return nil, err
	}
	if m.runDuration, err = register(reg, m.runDuration); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, or returns the collector registered before it.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("registering sampler metrics: %w", err)
	}
	return c, nil
}

// problemMetrics is the per-problem view a sampler writes to.
type problemMetrics struct {
	trials, steps, backtraces prometheus.Counter
	collapses, components     prometheus.Counter
	zeroPruned                prometheus.Counter
	explored, removed, width  prometheus.Gauge
	duration                  prometheus.Observer
}

func (m *Metrics) forProblem(name string) problemMetrics {
	return problemMetrics{
		trials:     m.trials.WithLabelValues(name),
		steps:      m.steps.WithLabelValues(name),
		backtraces: m.backtraces.WithLabelValues(name),
		collapses:  m.collapses.WithLabelValues(name),
		components: m.components.WithLabelValues(name),
		zeroPruned: m.zeroPruned.WithLabelValues(name),
		explored:   m.explored.WithLabelValues(name),
		removed:    m.removed.WithLabelValues(name),
		width:      m.boundWidth.WithLabelValues(name),
		duration:   m.runDuration.WithLabelValues(name),
	}
}
