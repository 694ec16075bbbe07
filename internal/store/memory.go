package store

import (
	"context"
	"sync"

	"github.com/safebite/server/internal/models"
)

// MemoryStore is the in-memory counterpart of PostgresStore, used in tests
// and available as a single-process fallback.
type MemoryStore struct {
	mu           sync.RWMutex
	quotas       map[string]map[models.FeatureID]models.FeatureQuota
	entitlements map[string]models.Entitlement
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		quotas:       make(map[string]map[models.FeatureID]models.FeatureQuota),
		entitlements: make(map[string]models.Entitlement),
	}
}

func (s *MemoryStore) GetQuota(ctx context.Context, userID string, featureID models.FeatureID) (*models.FeatureQuota, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byFeature, ok := s.quotas[userID]
	if !ok {
		return nil, nil
	}
	q, ok := byFeature[featureID]
	if !ok {
		return nil, nil
	}
	out := q
	return &out, nil
}

func (s *MemoryStore) SaveQuota(ctx context.Context, userID string, quota *models.FeatureQuota) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byFeature, ok := s.quotas[userID]
	if !ok {
		byFeature = make(map[models.FeatureID]models.FeatureQuota)
		s.quotas[userID] = byFeature
	}
	byFeature[quota.FeatureID] = *quota
	return nil
}

func (s *MemoryStore) GetEntitlement(ctx context.Context, userID string) (*models.Entitlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ent, ok := s.entitlements[userID]
	if !ok {
		return nil, nil
	}
	out := ent
	return &out, nil
}

func (s *MemoryStore) SaveEntitlement(ctx context.Context, userID string, ent *models.Entitlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entitlements[userID] = *ent
	return nil
}

func (s *MemoryStore) ResetUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.quotas, userID)
	delete(s.entitlements, userID)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
