// Package adapters implements the rewards ports with in-process calls into
// the waitlist, referral and verification modules.
package adapters

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	refmodels "lifenavigator/internal/referral/models"
	vermodels "lifenavigator/internal/verification/models"
	wlmodels "lifenavigator/internal/waitlist/models"
	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
	"lifenavigator/pkg/platform/sentinel"
)

type RegistrantFinder interface {
	FindByID(ctx context.Context, registrantID id.RegistrantID) (*wlmodels.Registrant, error)
}

type RegistrantAdapter struct {
	store RegistrantFinder
}

func NewRegistrantAdapter(store RegistrantFinder) *RegistrantAdapter {
	return &RegistrantAdapter{store: store}
}

func (a *RegistrantAdapter) Tier(ctx context.Context, registrantID id.RegistrantID) (id.Tier, error) {
	r, err := a.store.FindByID(ctx, registrantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "registrant not found")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registrant")
	}
	return r.TierPreference, nil
}

type CreditLister interface {
	ActiveCredits(ctx context.Context, referrerID id.RegistrantID) ([]*refmodels.Credit, error)
}

type CreditAdapter struct {
	credits CreditLister
}

func NewCreditAdapter(credits CreditLister) *CreditAdapter {
	return &CreditAdapter{credits: credits}
}

func (a *CreditAdapter) ActiveCreditTotal(ctx context.Context, registrantID id.RegistrantID) (decimal.Decimal, error) {
	credits, err := a.credits.ActiveCredits(ctx, registrantID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, c := range credits {
		total = total.Add(c.Amount)
	}
	return total, nil
}

type VerificationGetter interface {
	Get(ctx context.Context, registrantID id.RegistrantID) (*vermodels.ServiceVerification, error)
}

type VerificationAdapter struct {
	verifications VerificationGetter
}

func NewVerificationAdapter(verifications VerificationGetter) *VerificationAdapter {
	return &VerificationAdapter{verifications: verifications}
}

func (a *VerificationAdapter) IsServiceVerified(ctx context.Context, registrantID id.RegistrantID) (bool, error) {
	_, err := a.verifications.Get(ctx, registrantID)
	if err == nil {
		return true, nil
	}
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return false, nil
	}
	return false, err
}
