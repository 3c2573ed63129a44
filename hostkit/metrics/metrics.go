// Package metrics exposes Prometheus counters/gauges for install protocol
// runs, grounded in the teacher's metrics.go NewMetrics/NewMetricsWithRegistry
// pattern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for install runs. cmd/installhostd
// updates RunsStarted, RunsSucceeded and RunsFailed around each run;
// RunDuration and ActiveChannels are registered but not updated by it.
type Metrics struct {
	RunsStarted    prometheus.Counter
	RunsSucceeded  prometheus.Counter
	RunsFailed     *prometheus.CounterVec // labeled by failure reason
	RunDuration    prometheus.Histogram
	ActiveChannels prometheus.Gauge
}

// New registers Metrics against the default Prometheus registerer.
func New() *Metrics { return NewWithRegistry(nil) }

// NewWithRegistry registers Metrics against a custom registerer (nil uses the
// default one), mirroring the teacher's NewMetricsWithRegistry for isolated
// test registries.
func NewWithRegistry(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		RunsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "installproto_runs_started_total",
			Help: "Total install protocol runs started, by either role.",
		}),
		RunsSucceeded: factory.NewCounter(prometheus.CounterOpts{
			Name: "installproto_runs_succeeded_total",
			Help: "Total install protocol runs that reached Done with no error.",
		}),
		RunsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "installproto_runs_failed_total",
			Help: "Total install protocol runs that terminated with an error, by reason.",
		}, []string{"reason"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "installproto_run_duration_seconds",
			Help:    "Wall-clock duration of a single install protocol run.",
			Buckets: prometheus.DefBuckets,
		}),
		ActiveChannels: factory.NewGauge(prometheus.GaugeOpts{
			Name: "installproto_active_channels",
			Help: "Number of multisig addresses with a currently-running install protocol.",
		}),
	}
}
