package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
)

// Recoverable attribution failures. Signup and conversion continue past them.
var (
	ErrDuplicateReferral = dErrors.New(dErrors.CodeConflict, "referral already recorded")
	ErrSelfReferral      = dErrors.New(dErrors.CodeBadRequest, "registrant cannot refer themselves")
	ErrUnknownReferrer   = dErrors.New(dErrors.CodeNotFound, "referrer not found")
)

// ErrCreditMintAtomicity means a credit could not claim exactly its batch of
// ledger entries. The accrual transaction is rolled back.
var ErrCreditMintAtomicity = dErrors.New(dErrors.CodeInternal, "credit mint did not claim its full batch")

// LedgerEntry links a referrer to one registrant they brought in. Conversion
// fields are set once; Credited flips false to true once and never back.
type LedgerEntry struct {
	ID          id.LedgerEntryID
	ReferrerID  id.RegistrantID
	ReferredID  id.RegistrantID
	CreatedAt   time.Time
	Tier        id.Tier
	Amount      *decimal.Decimal
	ConvertedAt *time.Time
	Credited    bool
	CreditID    *id.CreditID
}

func NewLedgerEntry(referrerID, referredID id.RegistrantID, now time.Time) (*LedgerEntry, error) {
	if referrerID.IsNil() || referredID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "referrer and referred are required")
	}
	if referrerID == referredID {
		return nil, ErrSelfReferral
	}
	return &LedgerEntry{
		ID:         id.NewLedgerEntryID(),
		ReferrerID: referrerID,
		ReferredID: referredID,
		CreatedAt:  now,
	}, nil
}

func (e *LedgerEntry) IsConverted() bool {
	return e.ConvertedAt != nil
}

// Credit is a reward minted from one batch of converted referrals.
type Credit struct {
	ID         id.CreditID
	ReferrerID id.RegistrantID
	Amount     decimal.Decimal
	BatchCount int
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Used       bool
	UsedAt     *time.Time
	ExpiredAt  *time.Time
}

// IsActive reports whether the credit can still be redeemed at now.
func (c *Credit) IsActive(now time.Time) bool {
	return !c.Used && c.ExpiredAt == nil && now.Before(c.ExpiresAt)
}

// Conversion is a paid subscription reported by the billing webhook.
type Conversion struct {
	ReferredID id.RegistrantID
	Tier       id.Tier
	Amount     decimal.Decimal
	EventID    string
}

func (c Conversion) Validate() error {
	if c.ReferredID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "user_id is required")
	}
	if !c.Tier.IsPaid() {
		return dErrors.New(dErrors.CodeValidation, "tier must be a paid tier")
	}
	if !c.Amount.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	if !c.Amount.Equal(c.Amount.Round(2)) {
		return dErrors.New(dErrors.CodeValidation, "amount has more than two decimal places")
	}
	return nil
}

// ConversionResult describes what MarkConverted changed.
type ConversionResult struct {
	Referred  bool
	Converted bool
	Duplicate bool
	Credits   []*Credit
}

// Stats is a referrer's progress view.
type Stats struct {
	ReferrerID         id.RegistrantID
	ReferralCode       id.ReferralCode
	ReferralLink       string
	TotalReferrals     int
	Converted          int
	Credited           int
	PendingTowardNext  int
	RequiredForBenefit int
	StoredPosition     int
	EffectivePosition  int
	ActiveCredits      []*Credit
	ActiveCreditTotal  decimal.Decimal
}

// ReconcileResult summarizes one ReconcileAll pass.
type ReconcileResult struct {
	Referrers int
	Credits   int
	Failures  int
}

// Totals are ledger-wide counters for the admin overview.
type Totals struct {
	Referrals     int
	Conversions   int
	CreditsMinted int
	ActiveCredits int
}
