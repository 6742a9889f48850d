package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Logins            *prometheus.CounterVec
	EmailVerification *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lifenav_auth_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		EmailVerification: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lifenav_auth_email_verifications_total",
			Help: "Email verification attempts by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementLogin(outcome string) {
	if m != nil {
		m.Logins.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementEmailVerification(outcome string) {
	if m != nil {
		m.EmailVerification.WithLabelValues(outcome).Inc()
	}
}
