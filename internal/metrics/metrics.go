package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the expiry engine.
//
// Metrics:
//   - mhd_evaluations_total{trigger} - evaluation runs by trigger (load, mutation, tick, manual)
//   - mhd_ticks_skipped_total - ticks dropped because a run was in progress
//   - mhd_alerts_emitted_total{kind} - alerts handed to the notifier
//   - mhd_persistence_failures_total{document} - failed document writes
//   - mhd_items{status} - items per status after the last evaluation
type Metrics struct {
	EvaluationsTotal         *prometheus.CounterVec
	TicksSkippedTotal        prometheus.Counter
	AlertsEmittedTotal       *prometheus.CounterVec
	PersistenceFailuresTotal *prometheus.CounterVec
	Items                    *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg. Pass a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EvaluationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mhd_evaluations_total",
				Help: "Total number of expiry evaluations",
			},
			[]string{"trigger"},
		),
		TicksSkippedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mhd_ticks_skipped_total",
				Help: "Total number of periodic ticks skipped because a run was in progress",
			},
		),
		AlertsEmittedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mhd_alerts_emitted_total",
				Help: "Total number of expiry alerts emitted",
			},
			[]string{"kind"},
		),
		PersistenceFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mhd_persistence_failures_total",
				Help: "Total number of failed document writes",
			},
			[]string{"document"},
		),
		Items: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mhd_items",
				Help: "Number of tracked items by freshness status",
			},
			[]string{"status"},
		),
	}
}

// Nop returns metrics registered nowhere
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
