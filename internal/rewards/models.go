// Package rewards chooses the one benefit a registrant receives at checkout.
package rewards

import (
	"github.com/shopspring/decimal"

	id "lifenavigator/pkg/domain"
)

// Kind is the benefit actually applied. Benefits never stack.
type Kind string

const (
	KindNone            Kind = "none"
	KindServiceDiscount Kind = "service_discount"
	KindReferralCredit  Kind = "referral_credit"
)

type Reason string

const (
	ReasonFreeTier         Reason = "free_tier"
	ReasonNoBenefit        Reason = "no_benefit_available"
	ReasonOnlyDiscount     Reason = "service_discount_only"
	ReasonOnlyCredit       Reason = "referral_credit_only"
	ReasonDiscountIsLarger Reason = "service_discount_larger"
	ReasonCreditIsLarger   Reason = "referral_credit_larger_or_equal"
)

// Input is everything the policy needs; it does no I/O.
type Input struct {
	Tier            id.Tier
	TierPrice       decimal.Decimal
	ServiceVerified bool
	DiscountPercent decimal.Decimal
	ActiveCredits   decimal.Decimal
}

type Benefit struct {
	Kind            Kind
	Amount          decimal.Decimal
	Reason          Reason
	Tier            id.Tier
	TierPrice       decimal.Decimal
	ServiceDiscount decimal.Decimal
	CreditAvailable decimal.Decimal
}
