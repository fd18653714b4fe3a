package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Reservations *prometheus.CounterVec
	Commits      prometheus.Counter
	Failures     prometheus.Counter
	Voids        prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Reservations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "taxbridge_registry_reservations_total",
			Help: "Total reservation attempts by outcome (won, lost)",
		}, []string{"outcome"}),
		Commits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taxbridge_registry_commits_total",
			Help: "Total artifact records committed",
		}),
		Failures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taxbridge_registry_failures_total",
			Help: "Total artifact records marked failed",
		}),
		Voids: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taxbridge_registry_voids_total",
			Help: "Total void operations applied to live records",
		}),
	}
}

func (m *Metrics) ObserveReservation(outcome string) {
	m.Reservations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementCommits()  { m.Commits.Inc() }
func (m *Metrics) IncrementFailures() { m.Failures.Inc() }
func (m *Metrics) IncrementVoids()    { m.Voids.Inc() }
