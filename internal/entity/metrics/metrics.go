package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Resolutions       *prometheus.CounterVec
	IdentityConflicts prometheus.Counter
	Enrichments       prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Resolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "taxbridge_entity_resolutions_total",
			Help: "Total entity resolutions by outcome",
		}, []string{"outcome"}),
		IdentityConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taxbridge_entity_identity_conflicts_total",
			Help: "Total resolutions aborted because fragments disagreed on the registry number",
		}),
		Enrichments: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taxbridge_entity_enrichments_total",
			Help: "Total write-through enrichments persisted on organizations",
		}),
	}
}

func (m *Metrics) ObserveResolution(outcome string) {
	m.Resolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementConflicts() {
	m.IdentityConflicts.Inc()
}

func (m *Metrics) IncrementEnrichments() {
	m.Enrichments.Inc()
}
