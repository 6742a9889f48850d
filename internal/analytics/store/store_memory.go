// Package store persists analytics events.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"lifenavigator/internal/analytics/models"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events []*models.Event
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Insert(_ context.Context, e *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.events = append(s.events, &cp)
	return nil
}

// ListBetween returns events in [from, to) ordered by time.
func (s *InMemoryStore) ListBetween(_ context.Context, from, to time.Time) ([]*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Event{}
	for _, e := range s.events {
		if !e.OccurredAt.Before(from) && e.OccurredAt.Before(to) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (s *InMemoryStore) CountSessions(_ context.Context, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]bool{}
	for _, e := range s.events {
		if !e.OccurredAt.Before(since) {
			seen[e.SessionID] = true
		}
	}
	return len(seen), nil
}
