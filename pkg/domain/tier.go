package domain

import dErrors "lifenavigator/pkg/domain-errors"

// Tier is a subscription tier a registrant prefers or pays for.
// Invariant: the value must be one of the supported tiers.
type Tier string

const (
	TierFree   Tier = "free"
	TierPro    Tier = "pro"
	TierAI     Tier = "ai"
	TierFamily Tier = "family"
)

var validTiers = map[Tier]bool{
	TierFree:   true,
	TierPro:    true,
	TierAI:     true,
	TierFamily: true,
}

// ParseTier constructs a Tier from external input.
//
// Errors: CodeInvalidInput when the value is empty or unsupported.
func ParseTier(s string) (Tier, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "tier cannot be empty")
	}
	t := Tier(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid tier")
	}
	return t, nil
}

func (t Tier) IsValid() bool {
	return validTiers[t]
}

// IsPaid reports whether the tier is a paid subscription.
func (t Tier) IsPaid() bool {
	return t.IsValid() && t != TierFree
}

func (t Tier) String() string {
	return string(t)
}
