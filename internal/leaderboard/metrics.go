package leaderboard

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricDeltasTotal      = "leaderboard_deltas_total"
	MetricDeltaErrorsTotal = "leaderboard_delta_errors_total"
	MetricMembers          = "leaderboard_members"
)

// Metrics contains Prometheus metrics for leaderboard operations.
// All operations are thread-safe.
type Metrics struct {
	deltasTotal prometheus.Counter
	deltaErrors prometheus.Counter
	members     prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		deltasTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricDeltasTotal,
			Help: "Total number of score deltas applied to the leaderboard",
		}),
		deltaErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricDeltaErrorsTotal,
			Help: "Total number of failed score delta applications",
		}),
		members: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricMembers,
			Help: "Current number of members on the leaderboard",
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.deltasTotal,
		m.deltaErrors,
		m.members,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncDeltas increments the applied-delta counter.
func (m *Metrics) IncDeltas() {
	m.deltasTotal.Inc()
}

// IncDeltaErrors increments the failed-delta counter.
func (m *Metrics) IncDeltaErrors() {
	m.deltaErrors.Inc()
}

// SetMembers sets the member count gauge.
func (m *Metrics) SetMembers(count float64) {
	m.members.Set(count)
}
