package segment

import (
	"context"
	"sort"
	"sync"

	"lifenavigator/internal/admin/models"
	wlmodels "lifenavigator/internal/waitlist/models"
	"lifenavigator/pkg/platform/sentinel"
)

const listPage = 200

// RegistrantLister pages registrants in stored-position order.
type RegistrantLister interface {
	List(ctx context.Context, filter wlmodels.ListFilter) ([]*wlmodels.Registrant, error)
}

// InMemoryStore keeps saved segments in a map and evaluates membership in Go
// over the registrant store.
type InMemoryStore struct {
	mu          sync.RWMutex
	segments    map[string]*models.Segment
	registrants RegistrantLister
}

func NewInMemory(registrants RegistrantLister) *InMemoryStore {
	return &InMemoryStore{
		segments:    make(map[string]*models.Segment),
		registrants: registrants,
	}
}

// Save inserts or replaces the segment stored under seg.Slug.
func (s *InMemoryStore) Save(_ context.Context, seg *models.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *seg
	cp.Filters = append([]models.Filter(nil), seg.Filters...)
	if existing, ok := s.segments[seg.Slug]; ok {
		cp.CreatedAt = existing.CreatedAt
	}
	s.segments[seg.Slug] = &cp
	return nil
}

func (s *InMemoryStore) FindBySlug(_ context.Context, slug string) (*models.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seg, ok := s.segments[slug]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *seg
	return &cp, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Segment, 0, len(s.segments))
	for _, seg := range s.segments {
		cp := *seg
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

// Members returns matching registrants by stored position. limit <= 0 means all.
func (s *InMemoryStore) Members(ctx context.Context, conds []models.Condition, limit int) ([]*wlmodels.Registrant, error) {
	var out []*wlmodels.Registrant
	err := s.scan(ctx, func(r *wlmodels.Registrant) bool {
		if models.MatchesAll(conds, r) {
			out = append(out, r)
		}
		return limit <= 0 || len(out) < limit
	})
	if out == nil {
		out = []*wlmodels.Registrant{}
	}
	return out, err
}

func (s *InMemoryStore) CountMembers(ctx context.Context, conds []models.Condition) (int, error) {
	n := 0
	err := s.scan(ctx, func(r *wlmodels.Registrant) bool {
		if models.MatchesAll(conds, r) {
			n++
		}
		return true
	})
	return n, err
}

// scan walks every registrant until fn returns false.
func (s *InMemoryStore) scan(ctx context.Context, fn func(*wlmodels.Registrant) bool) error {
	for offset := 0; ; offset += listPage {
		page, err := s.registrants.List(ctx, wlmodels.ListFilter{Limit: listPage, Offset: offset})
		if err != nil {
			return err
		}
		for _, r := range page {
			if !fn(r) {
				return nil
			}
		}
		if len(page) < listPage {
			return nil
		}
	}
}
