package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks signups and position allocation.
type Metrics struct {
	SignupsTotal       *prometheus.CounterVec
	AllocationRetries  prometheus.Counter
	JoinDuration       prometheus.Histogram
	RegistrantsDeleted prometheus.Counter
}

// New registers the waitlist metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SignupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lifenav_waitlist_signups_total",
			Help: "Waitlist join attempts by outcome (created, existing, referred)",
		}, []string{"outcome"}),
		AllocationRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "lifenav_waitlist_allocation_retries_total",
			Help: "Join attempts retried after a position or code collision",
		}),
		JoinDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lifenav_waitlist_join_duration_seconds",
			Help:    "Duration of Join including password hashing",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		RegistrantsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "lifenav_waitlist_registrants_deleted_total",
			Help: "Registrants removed by an administrator",
		}),
	}
}

func (m *Metrics) IncrementSignup(outcome string) {
	m.SignupsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementAllocationRetry() {
	m.AllocationRetries.Inc()
}

// ObserveJoin records the duration of a Join call started at start.
func (m *Metrics) ObserveJoin(start time.Time) {
	m.JoinDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementDeleted() {
	m.RegistrantsDeleted.Inc()
}
