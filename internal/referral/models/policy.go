package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccrualPolicy governs how converted referrals become credits.
type AccrualPolicy struct {
	Threshold    int
	CreditWindow time.Duration
}

// Batches splits uncredited entries, oldest first, into full batches of
// Threshold. A trailing partial batch is left for a later run.
func (p AccrualPolicy) Batches(entries []*LedgerEntry) [][]*LedgerEntry {
	if p.Threshold <= 0 {
		return nil
	}
	var out [][]*LedgerEntry
	for len(entries) >= p.Threshold {
		out = append(out, entries[:p.Threshold])
		entries = entries[p.Threshold:]
	}
	return out
}

// CreditAmount is the batch's average subscription amount rounded to the cent.
func CreditAmount(batch []*LedgerEntry) decimal.Decimal {
	if len(batch) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, e := range batch {
		if e.Amount != nil {
			sum = sum.Add(*e.Amount)
		}
	}
	return sum.Div(decimal.NewFromInt(int64(len(batch)))).Round(2)
}
