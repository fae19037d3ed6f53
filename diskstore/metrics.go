/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package diskstore

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector represents a collector of metrics of the disk tier.
type MetricsCollector interface {
	// IncHits increments the total number of successfully found keys.
	IncHits()

	// IncMisses increments the total number of not found keys.
	IncMisses()

	// AddTrimmed increments the total number of entries removed by trimming.
	AddTrimmed(int)

	// IncCorrupted increments the total number of entries removed because their blob was missing or unreadable.
	IncCorrupted()

	// IncWriteFailures increments the total number of failed writes.
	IncWriteFailures()
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels
}

// PrometheusMetrics represents Prometheus metrics for the disk tier.
type PrometheusMetrics struct {
	HitsTotal          prometheus.Counter
	MissesTotal        prometheus.Counter
	TrimmedTotal       prometheus.Counter
	CorruptedTotal     prometheus.Counter
	WriteFailuresTotal prometheus.Counter
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	makeCounter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        name,
			Help:        help,
			ConstLabels: opts.ConstLabels,
		})
	}
	return &PrometheusMetrics{
		HitsTotal:   makeCounter("disk_cache_hits_total", "Number of successfully found keys in the disk cache tier."),
		MissesTotal: makeCounter("disk_cache_misses_total", "Number of not found keys in the disk cache tier."),
		TrimmedTotal: makeCounter("disk_cache_trimmed_total",
			"Number of entries removed from the disk cache tier by trimming."),
		CorruptedTotal: makeCounter("disk_cache_corrupted_total",
			"Number of entries removed from the disk cache tier because their blob was missing or unreadable."),
		WriteFailuresTotal: makeCounter("disk_cache_write_failures_total",
			"Number of failed writes to the disk cache tier."),
	}
}

func (pm *PrometheusMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{pm.HitsTotal, pm.MissesTotal, pm.TrimmedTotal, pm.CorruptedTotal, pm.WriteFailuresTotal}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(pm.collectors()...)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	for _, c := range pm.collectors() {
		prometheus.Unregister(c)
	}
}

// IncHits increments the total number of successfully found keys.
func (pm *PrometheusMetrics) IncHits() {
	pm.HitsTotal.Inc()
}

// IncMisses increments the total number of not found keys.
func (pm *PrometheusMetrics) IncMisses() {
	pm.MissesTotal.Inc()
}

// AddTrimmed increments the total number of trimmed entries.
func (pm *PrometheusMetrics) AddTrimmed(n int) {
	pm.TrimmedTotal.Add(float64(n))
}

// IncCorrupted increments the total number of self-healed entries.
func (pm *PrometheusMetrics) IncCorrupted() {
	pm.CorruptedTotal.Inc()
}

// IncWriteFailures increments the total number of failed writes.
func (pm *PrometheusMetrics) IncWriteFailures() {
	pm.WriteFailuresTotal.Inc()
}

type disabledMetrics struct{}

func (disabledMetrics) IncHits()          {}
func (disabledMetrics) IncMisses()        {}
func (disabledMetrics) AddTrimmed(int)    {}
func (disabledMetrics) IncCorrupted()     {}
func (disabledMetrics) IncWriteFailures() {}
