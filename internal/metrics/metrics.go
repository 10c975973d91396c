// Package metrics counts what happened during a conversion run and writes the
// counters in Prometheus text format, suitable for a node_exporter textfile
// collector. All methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fisdef"

// Metrics holds the run counters on a private registry.
type Metrics struct {
	registry   *prometheus.Registry
	unresolved prometheus.Counter
	unobserved prometheus.Counter
	dropped    prometheus.Counter
	intervals  *prometheus.CounterVec
	lookups    *prometheus.CounterVec
	outputs    *prometheus.CounterVec
}

// New creates and registers every counter.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		unresolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unresolved_nuclides_total",
			Help:      "Inventory nuclides whose name could not be mapped to a nuclide identity.",
		}),
		unobserved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unobserved_records_total",
			Help:      "Decay records removed for missing emission energy or intensity.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_sources_total",
			Help:      "Sources dropped because no usable decay records remained.",
		}),
		intervals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intervals_total",
			Help:      "Inventory intervals by outcome.",
		}, []string{"result"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_lookups_total",
			Help:      "Decay record provider lookups by mode and result.",
		}, []string{"mode", "result"}),
		outputs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outputs_total",
			Help:      "Output files by format and result.",
		}, []string{"format", "result"}),
	}
	m.registry.MustRegister(m.unresolved, m.unobserved, m.dropped, m.intervals, m.lookups, m.outputs)
	return m
}

// Registry exposes the underlying registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// UnresolvedNuclide counts an inventory name that failed to parse.
func (m *Metrics) UnresolvedNuclide() {
	if m != nil {
		m.unresolved.Inc()
	}
}

// UnobservedRecords counts n records removed by the observation filter.
func (m *Metrics) UnobservedRecords(n int) {
	if m != nil && n > 0 {
		m.unobserved.Add(float64(n))
	}
}

// EmptySource counts a source dropped for having no records.
func (m *Metrics) EmptySource() {
	if m != nil {
		m.dropped.Inc()
	}
}

// Interval counts an interval outcome, "processed" or "skipped".
func (m *Metrics) Interval(result string) {
	if m != nil {
		m.intervals.WithLabelValues(result).Inc()
	}
}

// Lookup counts a provider lookup. live selects the mode label, result is
// one of "hit", "miss" or "error".
func (m *Metrics) Lookup(live bool, result string) {
	if m == nil {
		return
	}
	mode := "offline"
	if live {
		mode = "live"
	}
	m.lookups.WithLabelValues(mode, result).Inc()
}

// Output counts an output write for format with result "ok", "fallback" or "error".
func (m *Metrics) Output(format, result string) {
	if m != nil {
		m.outputs.WithLabelValues(format, result).Inc()
	}
}

// WriteTextfile writes every counter to path in Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
