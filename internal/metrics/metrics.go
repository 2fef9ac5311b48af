// Package metrics exposes the task fabric's Prometheus surface, grounded on
// r3e-network-service_layer's infrastructure/metrics package: one struct of
// pre-registered collectors, handed to whichever task needs to record against it.
// The teacher itself has no metrics beyond a debug-status HTTP handler; this
// supplements that the way the §4.8 supervisor's task fabric needs.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every collector the task fabric records against.
type Metrics struct {
	BatchesProcessedTotal *prometheus.CounterVec
	PersistFailuresTotal  prometheus.Counter
	SnapshotsDroppedTotal *prometheus.CounterVec
	ActiveSessionsGauge   *prometheus.GaugeVec
	TokenRefreshTotal     *prometheus.CounterVec
}

// New builds and registers every collector against the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry builds every collector against a caller-supplied registry, so
// tests can use a fresh one instead of the process-global default.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BatchesProcessedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetlogger_batches_processed_total",
			Help: "Batches written by the persister, labeled by outcome.",
		}, []string{"outcome"}),

		PersistFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetlogger_persist_failures_total",
			Help: "Batches whose write failed as a whole.",
		}),

		SnapshotsDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetlogger_snapshots_dropped_total",
			Help: "Snapshots dropped before classification, labeled by reason.",
		}, []string{"reason"}),

		ActiveSessionsGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fleetlogger_active_sessions",
			Help: "Currently open session per car, labeled by kind.",
		}, []string{"car_id", "kind"}),

		TokenRefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetlogger_token_refresh_total",
			Help: "Token refresh attempts, labeled by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.BatchesProcessedTotal,
		m.PersistFailuresTotal,
		m.SnapshotsDroppedTotal,
		m.ActiveSessionsGauge,
		m.TokenRefreshTotal,
	)
	return m
}
