package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts payment webhook deliveries.
type Metrics struct {
	Webhooks *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Webhooks: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "lifenav_payment_webhooks_total",
			Help: "Payment webhook deliveries by outcome",
		}, []string{"outcome"}),
	}
}

// IncrementWebhook records one delivery: processed, duplicate, bad_signature, invalid or error.
func (m *Metrics) IncrementWebhook(outcome string) {
	m.Webhooks.WithLabelValues(outcome).Inc()
}
