package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
)

func convertedEntry(amount string) *LedgerEntry {
	a := decimal.RequireFromString(amount)
	now := time.Now()
	return &LedgerEntry{ID: id.NewLedgerEntryID(), Amount: &a, ConvertedAt: &now}
}

func TestAccrualPolicy_Batches(t *testing.T) {
	p := AccrualPolicy{Threshold: 20}
	entries := make([]*LedgerEntry, 45)
	for i := range entries {
		entries[i] = convertedEntry("20")
	}

	batches := p.Batches(entries)
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 20)
	assert.Same(t, entries[0], batches[0][0])
	assert.Same(t, entries[20], batches[1][0])

	assert.Empty(t, p.Batches(entries[:19]))
	assert.Empty(t, AccrualPolicy{}.Batches(entries))
}

func TestCreditAmount(t *testing.T) {
	tests := []struct {
		name    string
		amounts []string
		want    string
	}{
		{"uniform pro", []string{"20", "20", "20"}, "20"},
		{"mixed tiers", []string{"20", "30", "40"}, "30"},
		{"rounds to the cent", []string{"10", "10", "10.01"}, "10"},
		{"rounds half away from zero", []string{"0.01", "0.02"}, "0.02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := make([]*LedgerEntry, 0, len(tt.amounts))
			for _, a := range tt.amounts {
				batch = append(batch, convertedEntry(a))
			}
			assert.True(t, decimal.RequireFromString(tt.want).Equal(CreditAmount(batch)), CreditAmount(batch).String())
		})
	}
}

func TestNewLedgerEntry_RejectsSelfReferral(t *testing.T) {
	rid := id.NewRegistrantID()
	_, err := NewLedgerEntry(rid, rid, time.Now())
	assert.ErrorIs(t, err, ErrSelfReferral)
}

func TestCredit_IsActive(t *testing.T) {
	now := time.Now()
	c := &Credit{ExpiresAt: now.Add(time.Hour)}
	assert.True(t, c.IsActive(now))
	assert.False(t, c.IsActive(now.Add(2*time.Hour)))

	c.Used = true
	assert.False(t, c.IsActive(now))
}

func TestConversion_Validate(t *testing.T) {
	ok := Conversion{ReferredID: id.NewRegistrantID(), Tier: id.TierPro, Amount: decimal.NewFromInt(20)}
	require.NoError(t, ok.Validate())

	free := ok
	free.Tier = id.TierFree
	assert.True(t, dErrors.HasCode(free.Validate(), dErrors.CodeValidation))

	zero := ok
	zero.Amount = decimal.Zero
	assert.True(t, dErrors.HasCode(zero.Validate(), dErrors.CodeValidation))

	fractional := ok
	fractional.Amount = decimal.RequireFromString("19.999")
	assert.True(t, dErrors.HasCode(fractional.Validate(), dErrors.CodeValidation))
}
