package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions *prometheus.CounterVec
	Degraded  prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lifenav_ratelimit_decisions_total",
			Help: "Rate limit checks by endpoint class and outcome (allowed, limited, error)",
		}, []string{"class", "outcome"}),
		Degraded: f.NewGauge(prometheus.GaugeOpts{
			Name: "lifenav_ratelimit_degraded",
			Help: "1 while the shared bucket store is failing and the in-process fallback is used",
		}),
	}
}

func (m *Metrics) IncrementDecision(class, outcome string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(class, outcome).Inc()
}

func (m *Metrics) SetDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.Degraded.Set(1)
		return
	}
	m.Degraded.Set(0)
}
