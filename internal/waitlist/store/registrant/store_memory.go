// Package registrant persists waitlist registrants.
package registrant

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"lifenavigator/internal/waitlist/models"
	id "lifenavigator/pkg/domain"
	"lifenavigator/pkg/platform/sentinel"
)

// InMemoryStore keeps registrants in maps guarded by one RWMutex. Every
// uniqueness constraint of the Postgres schema is enforced here as well.
type InMemoryStore struct {
	mu         sync.RWMutex
	byID       map[id.RegistrantID]*models.Registrant
	byEmail    map[string]id.RegistrantID
	byCode     map[id.ReferralCode]id.RegistrantID
	byPosition map[int]id.RegistrantID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:       make(map[id.RegistrantID]*models.Registrant),
		byEmail:    make(map[string]id.RegistrantID),
		byCode:     make(map[id.ReferralCode]id.RegistrantID),
		byPosition: make(map[int]id.RegistrantID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, r *models.Registrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(r.Email)
	if _, ok := s.byID[r.ID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.byEmail[email]; ok {
		return models.ErrEmailTaken
	}
	if _, ok := s.byPosition[r.Position]; ok {
		return models.ErrPositionTaken
	}
	if _, ok := s.byCode[r.ReferralCode]; ok {
		return models.ErrCodeTaken
	}

	stored := clone(r)
	s.byID[r.ID] = stored
	s.byEmail[email] = r.ID
	s.byCode[r.ReferralCode] = r.ID
	s.byPosition[r.Position] = r.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, registrantID id.RegistrantID) (*models.Registrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[registrantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(r), nil
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*models.Registrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rid, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(s.byID[rid]), nil
}

func (s *InMemoryStore) FindByCode(_ context.Context, code id.ReferralCode) (*models.Registrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rid, ok := s.byCode[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(s.byID[rid]), nil
}

// MaxPosition returns the highest stored position, or 0 when the list is empty.
func (s *InMemoryStore) MaxPosition(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	maxPos := 0
	for pos := range s.byPosition {
		if pos > maxPos {
			maxPos = pos
		}
	}
	return maxPos, nil
}

// SetReferrer writes the back-reference once. A second write returns ErrConflict.
func (s *InMemoryStore) SetReferrer(_ context.Context, registrantID, referrerID id.RegistrantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[registrantID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if _, ok := s.byID[referrerID]; !ok {
		return sentinel.ErrNotFound
	}
	if r.ReferredBy != nil || registrantID == referrerID {
		return sentinel.ErrConflict
	}
	ref := referrerID
	r.ReferredBy = &ref
	return nil
}

func (s *InMemoryStore) IncrementReferralCount(_ context.Context, registrantID id.RegistrantID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[registrantID]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	r.ReferralCount++
	return r.ReferralCount, nil
}

func (s *InMemoryStore) SetPaying(_ context.Context, registrantID id.RegistrantID, paying bool) error {
	return s.update(registrantID, func(r *models.Registrant) { r.IsPaying = paying })
}

func (s *InMemoryStore) MarkEmailVerified(_ context.Context, registrantID id.RegistrantID) error {
	return s.update(registrantID, func(r *models.Registrant) { r.EmailVerified = true })
}

func (s *InMemoryStore) TouchLogin(_ context.Context, registrantID id.RegistrantID, at time.Time) error {
	return s.update(registrantID, func(r *models.Registrant) { r.LastLogin = &at })
}

// Delete removes a registrant and clears any referred_by pointing at it.
func (s *InMemoryStore) Delete(_ context.Context, registrantID id.RegistrantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[registrantID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byID, registrantID)
	delete(s.byEmail, strings.ToLower(r.Email))
	delete(s.byCode, r.ReferralCode)
	delete(s.byPosition, r.Position)
	for _, other := range s.byID {
		if other.ReferredBy != nil && *other.ReferredBy == registrantID {
			other.ReferredBy = nil
		}
	}
	return nil
}

// List returns registrants ordered by stored position.
func (s *InMemoryStore) List(_ context.Context, filter models.ListFilter) ([]*models.Registrant, error) {
	filter = filter.Normalize()
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*models.Registrant, 0, len(s.byID))
	for _, r := range s.byID {
		if filter.Query != "" &&
			!strings.Contains(strings.ToLower(r.Email), filter.Query) &&
			!strings.Contains(strings.ToLower(r.Name), filter.Query) {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Position < matched[j].Position })

	if filter.Offset >= len(matched) {
		return []*models.Registrant{}, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]*models.Registrant, 0, end-filter.Offset)
	for _, r := range matched[filter.Offset:end] {
		out = append(out, clone(r))
	}
	return out, nil
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

func (s *InMemoryStore) update(registrantID id.RegistrantID, fn func(*models.Registrant)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[registrantID]
	if !ok {
		return sentinel.ErrNotFound
	}
	fn(r)
	return nil
}

func clone(r *models.Registrant) *models.Registrant {
	c := *r
	c.Interests = append([]string(nil), r.Interests...)
	if c.Interests == nil {
		c.Interests = []string{}
	}
	if r.ReferredBy != nil {
		ref := *r.ReferredBy
		c.ReferredBy = &ref
	}
	if r.LastLogin != nil {
		at := *r.LastLogin
		c.LastLogin = &at
	}
	return &c
}
