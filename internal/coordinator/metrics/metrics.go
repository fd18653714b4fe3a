package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Attempts      *prometheus.CounterVec
	Compensations prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Attempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "taxbridge_coordinator_attempts_total",
			Help: "Total artifact attempts by outcome",
		}, []string{"outcome"}),
		Compensations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taxbridge_coordinator_compensations_total",
			Help: "Total artifacts reversed after a mid-flight void",
		}),
	}
}

func (m *Metrics) ObserveAttempt(outcome string) {
	m.Attempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementCompensations() { m.Compensations.Inc() }
