package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"refsync/internal/reconcile/stats"
)

// Metrics holds the reconciliation metrics.
type Metrics struct {
	// Runs by outcome: "success", "failure"
	Runs *prometheus.CounterVec

	RunDuration prometheus.Histogram

	// Entity changes of the last run by layer and change kind
	Entities *prometheus.CounterVec

	// Remote calls by service and normalized outcome
	RemoteRequests *prometheus.CounterVec
}

// New registers the metrics with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the metrics with reg. Tests pass a fresh
// registry so repeated construction does not collide.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "refsync_runs_total",
			Help: "Total reconciliation runs by outcome",
		}, []string{"outcome"}),

		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "refsync_run_duration_seconds",
			Help:    "Duration of full reconciliation runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}),

		Entities: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "refsync_entities_total",
			Help: "Total reconciled entity changes by layer and change kind",
		}, []string{"layer", "change"}),

		RemoteRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "refsync_remote_requests_total",
			Help: "Total remote requests by service and outcome",
		}, []string{"service", "outcome"}),
	}
}

// ObserveRun records one finished run and folds its counters into the
// entity totals.
func (m *Metrics) ObserveRun(report stats.Report, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if report.Error != "" {
		outcome = "failure"
	}
	m.Runs.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(d.Seconds())
	for layer, changes := range report.Counts {
		for change, n := range changes {
			if n > 0 {
				m.Entities.WithLabelValues(string(layer), string(change)).Add(float64(n))
			}
		}
	}
}

// ObserveRemoteRequest implements remote.RequestObserver.
func (m *Metrics) ObserveRemoteRequest(service, outcome string) {
	if m != nil {
		m.RemoteRequests.WithLabelValues(service, outcome).Inc()
	}
}
