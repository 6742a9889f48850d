// Package ledger persists referral ledger entries, credits and processed
// payment events.
package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"lifenavigator/internal/referral/models"
	id "lifenavigator/pkg/domain"
	"lifenavigator/pkg/platform/sentinel"
)

// InMemoryStore keeps the ledger in maps. MintCredit validates the whole batch
// before changing anything, so a failed mint leaves no partial state.
type InMemoryStore struct {
	mu            sync.RWMutex
	entries       map[id.LedgerEntryID]*models.LedgerEntry
	byReferred    map[id.RegistrantID]id.LedgerEntryID
	credits       map[id.CreditID]*models.Credit
	paymentEvents map[string]id.RegistrantID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		entries:       make(map[id.LedgerEntryID]*models.LedgerEntry),
		byReferred:    make(map[id.RegistrantID]id.LedgerEntryID),
		credits:       make(map[id.CreditID]*models.Credit),
		paymentEvents: make(map[string]id.RegistrantID),
	}
}

func (s *InMemoryStore) Insert(_ context.Context, e *models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byReferred[e.ReferredID]; ok {
		return sentinel.ErrConflict
	}
	if e.ReferrerID == e.ReferredID {
		return sentinel.ErrConflict
	}
	s.entries[e.ID] = cloneEntry(e)
	s.byReferred[e.ReferredID] = e.ID
	return nil
}

func (s *InMemoryStore) FindByReferred(_ context.Context, referredID id.RegistrantID) (*models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entryID, ok := s.byReferred[referredID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneEntry(s.entries[entryID]), nil
}

// MarkConverted sets conversion data only on an entry that has not converted.
// It reports whether this call made the change.
func (s *InMemoryStore) MarkConverted(_ context.Context, referredID id.RegistrantID, tier id.Tier, amount decimal.Decimal, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entryID, ok := s.byReferred[referredID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	e := s.entries[entryID]
	if e.ConvertedAt != nil {
		return false, nil
	}
	a := amount
	e.Tier = tier
	e.Amount = &a
	e.ConvertedAt = &at
	return true, nil
}

func (s *InMemoryStore) ListByReferrer(_ context.Context, referrerID id.RegistrantID) ([]*models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.LedgerEntry{}
	for _, e := range s.entries {
		if e.ReferrerID == referrerID {
			out = append(out, cloneEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ListUncredited returns converted, uncredited entries ordered by conversion
// time then id.
func (s *InMemoryStore) ListUncredited(_ context.Context, referrerID id.RegistrantID) ([]*models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.LedgerEntry{}
	for _, e := range s.entries {
		if e.ReferrerID == referrerID && e.ConvertedAt != nil && !e.Credited {
			out = append(out, cloneEntry(e))
		}
	}
	sortFIFO(out)
	return out, nil
}

func (s *InMemoryStore) MintCredit(_ context.Context, credit *models.Credit, entryIDs []id.LedgerEntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(entryIDs) != credit.BatchCount {
		return models.ErrCreditMintAtomicity
	}
	seen := make(map[id.LedgerEntryID]bool, len(entryIDs))
	for _, entryID := range entryIDs {
		e, ok := s.entries[entryID]
		if !ok || seen[entryID] || e.Credited || e.ConvertedAt == nil || e.ReferrerID != credit.ReferrerID {
			return models.ErrCreditMintAtomicity
		}
		seen[entryID] = true
	}
	if _, exists := s.credits[credit.ID]; exists {
		return sentinel.ErrConflict
	}

	s.credits[credit.ID] = cloneCredit(credit)
	creditID := credit.ID
	for _, entryID := range entryIDs {
		e := s.entries[entryID]
		e.Credited = true
		e.CreditID = &creditID
	}
	return nil
}

// DeleteByRegistrant removes ledger rows where registrantID is either side and
// the credits they own, matching the cascade on the SQL schema.
func (s *InMemoryStore) DeleteByRegistrant(_ context.Context, registrantID id.RegistrantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for entryID, e := range s.entries {
		if e.ReferrerID == registrantID || e.ReferredID == registrantID {
			delete(s.entries, entryID)
			delete(s.byReferred, e.ReferredID)
		}
	}
	for creditID, c := range s.credits {
		if c.ReferrerID == registrantID {
			delete(s.credits, creditID)
		}
	}
	return nil
}

// ReferrersWithPending lists referrers holding at least threshold converted,
// uncredited entries.
func (s *InMemoryStore) ReferrersWithPending(_ context.Context, threshold int) ([]id.RegistrantID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[id.RegistrantID]int)
	for _, e := range s.entries {
		if e.ConvertedAt != nil && !e.Credited {
			counts[e.ReferrerID]++
		}
	}
	out := []id.RegistrantID{}
	for referrerID, n := range counts {
		if n >= threshold {
			out = append(out, referrerID)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListCredits(_ context.Context, referrerID id.RegistrantID) ([]*models.Credit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Credit{}
	for _, c := range s.credits {
		if c.ReferrerID == referrerID {
			out = append(out, cloneCredit(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) FindCredit(_ context.Context, creditID id.CreditID) (*models.Credit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credits[creditID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneCredit(c), nil
}

// MarkCreditUsed redeems an active credit. Used credits return ErrAlreadyUsed,
// expired or swept ones ErrExpired.
func (s *InMemoryStore) MarkCreditUsed(_ context.Context, creditID id.CreditID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credits[creditID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if c.Used {
		return sentinel.ErrAlreadyUsed
	}
	if c.ExpiredAt != nil || !at.Before(c.ExpiresAt) {
		return sentinel.ErrExpired
	}
	c.Used = true
	c.UsedAt = &at
	return nil
}

// ExpireCredits stamps expired_at on unused credits past expires_at and returns them.
func (s *InMemoryStore) ExpireCredits(_ context.Context, now time.Time) ([]*models.Credit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Credit{}
	for _, c := range s.credits {
		if !c.Used && c.ExpiredAt == nil && !now.Before(c.ExpiresAt) {
			at := now
			c.ExpiredAt = &at
			out = append(out, cloneCredit(c))
		}
	}
	return out, nil
}

// ClaimPaymentEvent records eventID and reports whether this call was first.
func (s *InMemoryStore) ClaimPaymentEvent(_ context.Context, eventID string, registrantID id.RegistrantID, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.paymentEvents[eventID]; ok {
		return false, nil
	}
	s.paymentEvents[eventID] = registrantID
	return true, nil
}

func (s *InMemoryStore) Totals(_ context.Context, now time.Time) (models.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var t models.Totals
	for _, e := range s.entries {
		t.Referrals++
		if e.ConvertedAt != nil {
			t.Conversions++
		}
	}
	for _, c := range s.credits {
		t.CreditsMinted++
		if c.IsActive(now) {
			t.ActiveCredits++
		}
	}
	return t, nil
}

func sortFIFO(entries []*models.LedgerEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.ConvertedAt.Equal(*b.ConvertedAt) {
			return a.ConvertedAt.Before(*b.ConvertedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}

func cloneEntry(e *models.LedgerEntry) *models.LedgerEntry {
	c := *e
	if e.Amount != nil {
		a := *e.Amount
		c.Amount = &a
	}
	if e.ConvertedAt != nil {
		at := *e.ConvertedAt
		c.ConvertedAt = &at
	}
	if e.CreditID != nil {
		cid := *e.CreditID
		c.CreditID = &cid
	}
	return &c
}

func cloneCredit(c *models.Credit) *models.Credit {
	out := *c
	if c.UsedAt != nil {
		at := *c.UsedAt
		out.UsedAt = &at
	}
	if c.ExpiredAt != nil {
		at := *c.ExpiredAt
		out.ExpiredAt = &at
	}
	return &out
}
