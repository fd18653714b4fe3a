package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Runs        prometheus.Counter
	Findings    *prometheus.CounterVec
	LastRunTime prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		Runs: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taxbridge_reconcile_runs_total",
			Help: "Total reconciliation runs",
		}),
		Findings: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "taxbridge_reconcile_findings_total",
			Help: "Total findings reported by kind",
		}, []string{"kind"}),
		LastRunTime: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "taxbridge_reconcile_last_run_timestamp_seconds",
			Help: "Unix time of the last completed reconciliation run",
		}),
	}
}

func (m *Metrics) ObserveRun(unixSeconds float64) {
	m.Runs.Inc()
	m.LastRunTime.Set(unixSeconds)
}

func (m *Metrics) ObserveFinding(kind string) {
	m.Findings.WithLabelValues(kind).Inc()
}
