// Package metrics holds the Prometheus instruments for the intake pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Intake outcomes.
const (
	OutcomeComplete  = "complete"
	OutcomePersisted = "persisted"
	OutcomeFailed    = "failed"
)

// Collector owns a private registry so several pipelines can coexist in tests.
// All methods are safe on a nil *Collector.
type Collector struct {
	registry          *prometheus.Registry
	intakes           *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	alignmentFailures prometheus.Counter
	transcriptPolls   prometheus.Counter
}

// NewCollector creates and registers the pipeline metrics under namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		intakes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "intakes_total",
				Help:      "Intakes by capture kind and final outcome",
			},
			[]string{"kind", "outcome"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Time spent in each pipeline stage",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"stage"},
		),
		alignmentFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alignment_failures_total",
				Help:      "Goal alignments that could not be scored or stored",
			},
		),
		transcriptPolls: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transcription_polls_total",
				Help:      "Transcript status checks issued",
			},
		),
	}

	registry.MustRegister(c.intakes, c.stageDuration, c.alignmentFailures, c.transcriptPolls)
	return c
}

// Registry exposes the registry for gathering.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveIntake counts one finished intake.
func (c *Collector) ObserveIntake(kind, outcome string) {
	if c == nil {
		return
	}
	c.intakes.WithLabelValues(kind, outcome).Inc()
}

// ObserveStage records how long a stage took.
func (c *Collector) ObserveStage(stage string, d time.Duration) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// AlignmentFailed counts one per-goal failure.
func (c *Collector) AlignmentFailed() {
	if c == nil {
		return
	}
	c.alignmentFailures.Inc()
}

// TranscriptPolled counts one transcript status check.
func (c *Collector) TranscriptPolled() {
	if c == nil {
		return
	}
	c.transcriptPolls.Inc()
}

// Snapshot flattens counter values for logging, keyed by metric name and labels.
func (c *Collector) Snapshot() (map[string]float64, error) {
	out := make(map[string]float64)
	if c == nil {
		return out, nil
	}

	families, err := c.registry.Gather()
	if err != nil {
		return nil, err
	}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			key := family.GetName()
			for _, label := range metric.GetLabel() {
				key += "," + label.GetName() + "=" + label.GetValue()
			}
			switch {
			case metric.GetCounter() != nil:
				out[key] = metric.GetCounter().GetValue()
			case metric.GetHistogram() != nil:
				out[key+",count"] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return out, nil
}
