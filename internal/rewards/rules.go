package rewards

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ChooseBenefit compares the service discount with active referral credit
// (capped at the tier price) and applies exactly one. Ties go to the credit
// because it expires and the discount does not.
func ChooseBenefit(in Input) Benefit {
	b := Benefit{
		Kind:            KindNone,
		Amount:          decimal.Zero,
		Tier:            in.Tier,
		TierPrice:       in.TierPrice,
		ServiceDiscount: decimal.Zero,
		CreditAvailable: decimal.Zero,
	}
	if !in.TierPrice.IsPositive() {
		b.Reason = ReasonFreeTier
		return b
	}

	if in.ServiceVerified {
		b.ServiceDiscount = in.TierPrice.Mul(in.DiscountPercent).Div(hundred).Round(2)
	}
	if in.ActiveCredits.IsPositive() {
		b.CreditAvailable = decimal.Min(in.ActiveCredits, in.TierPrice)
	}

	discount, credit := b.ServiceDiscount, b.CreditAvailable
	switch {
	case !discount.IsPositive() && !credit.IsPositive():
		b.Reason = ReasonNoBenefit
	case !discount.IsPositive():
		b.Kind, b.Amount, b.Reason = KindReferralCredit, credit, ReasonOnlyCredit
	case !credit.IsPositive():
		b.Kind, b.Amount, b.Reason = KindServiceDiscount, discount, ReasonOnlyDiscount
	case credit.GreaterThanOrEqual(discount):
		b.Kind, b.Amount, b.Reason = KindReferralCredit, credit, ReasonCreditIsLarger
	default:
		b.Kind, b.Amount, b.Reason = KindServiceDiscount, discount, ReasonDiscountIsLarger
	}
	return b
}
