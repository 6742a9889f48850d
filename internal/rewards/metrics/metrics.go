package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Benefits *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Benefits: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "lifenav_benefit_decisions_total",
			Help: "Benefit policy decisions by kind",
		}, []string{"kind"}),
	}
}

func (m *Metrics) IncrementBenefit(kind string) {
	if m != nil {
		m.Benefits.WithLabelValues(kind).Inc()
	}
}
