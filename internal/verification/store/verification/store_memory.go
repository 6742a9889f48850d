// Package verification persists terminal service verification records.
package verification

import (
	"context"
	"sync"

	"lifenavigator/internal/verification/models"
	id "lifenavigator/pkg/domain"
	"lifenavigator/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.RegistrantID]models.ServiceVerification
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.RegistrantID]models.ServiceVerification)}
}

// Insert keeps the first record for a registrant and reports ErrConflict afterwards.
func (s *InMemoryStore) Insert(_ context.Context, v *models.ServiceVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[v.RegistrantID]; ok {
		return sentinel.ErrConflict
	}
	s.records[v.RegistrantID] = *v
	return nil
}

func (s *InMemoryStore) FindByRegistrant(_ context.Context, registrantID id.RegistrantID) (*models.ServiceVerification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[registrantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &v, nil
}

func (s *InMemoryStore) CountByType(_ context.Context) (map[models.ServiceType]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[models.ServiceType]int)
	for _, v := range s.records {
		out[v.ServiceType]++
	}
	return out, nil
}
