package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers the referral ledger and credit accrual.
type Metrics struct {
	ReferralsRecorded  *prometheus.CounterVec
	Conversions        *prometheus.CounterVec
	CreditsMinted      prometheus.Counter
	MintAtomicityFails prometheus.Counter
	CreditsExpired     prometheus.Counter
	CreditsRedeemed    prometheus.Counter
	AccrualDuration    prometheus.Histogram
}

// New registers the referral metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ReferralsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lifenav_referrals_recorded_total",
			Help: "Referral attribution attempts by outcome",
		}, []string{"outcome"}),
		Conversions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lifenav_referral_conversions_total",
			Help: "Payment conversions by outcome (converted, duplicate, unreferred, repeat)",
		}, []string{"outcome"}),
		CreditsMinted: factory.NewCounter(prometheus.CounterOpts{
			Name: "lifenav_referral_credits_minted_total",
			Help: "Referral credits minted",
		}),
		MintAtomicityFails: factory.NewCounter(prometheus.CounterOpts{
			Name: "lifenav_referral_credit_mint_atomicity_failures_total",
			Help: "Accrual transactions rolled back because a batch could not be claimed whole",
		}),
		CreditsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "lifenav_referral_credits_expired_total",
			Help: "Referral credits swept as expired",
		}),
		CreditsRedeemed: factory.NewCounter(prometheus.CounterOpts{
			Name: "lifenav_referral_credits_redeemed_total",
			Help: "Referral credits redeemed",
		}),
		AccrualDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lifenav_referral_accrual_duration_seconds",
			Help:    "Duration of one referrer's accrual transaction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementReferral(outcome string) {
	m.ReferralsRecorded.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementConversion(outcome string) {
	m.Conversions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddCreditsMinted(n int) {
	m.CreditsMinted.Add(float64(n))
}

func (m *Metrics) IncrementMintAtomicityFailure() {
	m.MintAtomicityFails.Inc()
}

func (m *Metrics) AddCreditsExpired(n int) {
	m.CreditsExpired.Add(float64(n))
}

func (m *Metrics) IncrementCreditsRedeemed() {
	m.CreditsRedeemed.Inc()
}

func (m *Metrics) ObserveAccrual(start time.Time) {
	m.AccrualDuration.Observe(time.Since(start).Seconds())
}
