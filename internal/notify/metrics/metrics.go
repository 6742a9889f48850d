package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Emails *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Emails: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "lifenav_emails_total",
			Help: "Emails by template and outcome (sent, failed, render_error)",
		}, []string{"template", "outcome"}),
	}
}

func (m *Metrics) IncrementEmail(template, outcome string) {
	if m != nil {
		m.Emails.WithLabelValues(template, outcome).Inc()
	}
}
