// Package metrics records action and clone outcomes as Prometheus metrics.
// Batch runs can dump the registry to a node-exporter textfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeNoop    = "noop"
	OutcomeError   = "error"
)

// Recorder holds the collectors. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	actions               *prometheus.CounterVec
	clones                *prometheus.CounterVec
	customizationAttempts prometheus.Counter
	cloneDuration         prometheus.Histogram
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vms_actions_total",
			Help: "Lifecycle actions executed, by action and outcome.",
		}, []string{"action", "outcome"}),
		clones: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vms_clones_total",
			Help: "Clone jobs finished, by outcome.",
		}, []string{"outcome"}),
		customizationAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vms_customization_attempts_total",
			Help: "Guest customization passes started.",
		}),
		cloneDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vms_clone_duration_seconds",
			Help:    "Wall-clock duration of clone jobs including customization.",
			Buckets: prometheus.ExponentialBuckets(5, 2, 8),
		}),
	}
	r.registry.MustRegister(r.actions, r.clones, r.customizationAttempts, r.cloneDuration)
	return r
}

// Gatherer exposes the recorded metrics for export.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return nil
	}
	return r.registry
}

// Action counts one executed action.
func (r *Recorder) Action(action, outcome string) {
	if r == nil {
		return
	}
	r.actions.WithLabelValues(action, outcome).Inc()
}

// Clone counts one finished clone job and observes its duration.
func (r *Recorder) Clone(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.clones.WithLabelValues(outcome).Inc()
	r.cloneDuration.Observe(d.Seconds())
}

// CustomizationAttempt counts one customization pass.
func (r *Recorder) CustomizationAttempt() {
	if r == nil {
		return
	}
	r.customizationAttempts.Inc()
}

// WriteTextfile writes the registry in text exposition format to path.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.Gatherer()); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
