package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric labels.
const (
	LabelStrategy = "strategy"
	LabelOutcome  = "outcome"
)

// metrics records authentication outcomes per strategy.
type metrics struct {
	attemptsTotal   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
}

// newMetrics registers the service collectors with reg. A nil reg yields
// working but unregistered collectors.
func newMetrics(reg prometheus.Registerer, namespace string) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		attemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "attempts_total",
				Help:      "Total number of authentication attempts by outcome.",
			},
			[]string{LabelStrategy, LabelOutcome},
		),
		attemptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "attempt_duration_seconds",
				Help:      "Authentication attempt latency in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{LabelStrategy, LabelOutcome},
		),
	}
}

func (m *metrics) observe(strategy, outcome string, started time.Time) {
	m.attemptsTotal.WithLabelValues(strategy, outcome).Inc()
	m.attemptDuration.WithLabelValues(strategy, outcome).Observe(time.Since(started).Seconds())
}
