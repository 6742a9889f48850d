package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"lifenavigator/pkg/platform/events"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	records []events.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, events.Record{Event: event})
	return nil
}

func (s *InMemoryStore) Unpublished(_ context.Context, limit int) ([]events.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []events.Record
	for _, r := range s.records {
		if r.PublishedAt != nil {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for i := range s.records {
		if want[s.records[i].ID] && s.records[i].PublishedAt == nil {
			t := at
			s.records[i].PublishedAt = &t
		}
	}
	return nil
}

// ListByType returns every recorded event of the given type, oldest first.
func (s *InMemoryStore) ListByType(typ events.Type) []events.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []events.Event
	for _, r := range s.records {
		if r.Type == typ {
			out = append(out, r.Event)
		}
	}
	return out
}
