// Package state keeps single-use OAuth state values for the ID.me round trip.
package state

import (
	"context"
	"sync"
	"time"

	"lifenavigator/internal/verification/models"
	"lifenavigator/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu     sync.Mutex
	states map[string]models.State
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{states: make(map[string]models.State)}
}

func (s *InMemoryStore) Save(_ context.Context, st models.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[st.Value]; ok {
		return sentinel.ErrConflict
	}
	s.states[st.Value] = st
	return nil
}

// Consume removes and returns the state. A second call, or a call after
// expiry, is ErrNotFound or ErrExpired.
func (s *InMemoryStore) Consume(_ context.Context, value string, now time.Time) (models.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[value]
	if !ok {
		return models.State{}, sentinel.ErrNotFound
	}
	delete(s.states, value)
	if !now.Before(st.ExpiresAt) {
		return models.State{}, sentinel.ErrExpired
	}
	return st, nil
}
