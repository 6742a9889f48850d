// Package adapters maps other modules' stores and services onto the narrow
// read ports the admin dashboard depends on.
package adapters

import (
	"context"

	"lifenavigator/internal/admin/models"
	refmodels "lifenavigator/internal/referral/models"
	vmodels "lifenavigator/internal/verification/models"
)

type ReferralTotals interface {
	Totals(ctx context.Context) (refmodels.Totals, error)
}

// ReferralAdapter exposes ledger totals as admin counts.
type ReferralAdapter struct {
	source ReferralTotals
}

func NewReferralAdapter(source ReferralTotals) *ReferralAdapter {
	return &ReferralAdapter{source: source}
}

func (a *ReferralAdapter) ReferralCounts(ctx context.Context) (models.ReferralCounts, error) {
	t, err := a.source.Totals(ctx)
	if err != nil {
		return models.ReferralCounts{}, err
	}
	return models.ReferralCounts{
		Referrals:     t.Referrals,
		Conversions:   t.Conversions,
		ActiveCredits: t.ActiveCredits,
	}, nil
}

type VerificationCounts interface {
	CountByType(ctx context.Context) (map[vmodels.ServiceType]int, error)
}

// VerificationAdapter collapses per-service counts into a single total.
type VerificationAdapter struct {
	source VerificationCounts
}

func NewVerificationAdapter(source VerificationCounts) *VerificationAdapter {
	return &VerificationAdapter{source: source}
}

func (a *VerificationAdapter) CountServiceVerified(ctx context.Context) (int, error) {
	counts, err := a.source.CountByType(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}
