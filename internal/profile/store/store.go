// Package store defines profile persistence and its in-memory
// implementation.
package store

import (
	"context"
	"fmt"
	"sync"

	"idplane/internal/profile/models"
	id "idplane/pkg/domain"
	"idplane/pkg/platform/sentinel"
)

// ProfileStore persists profiles, keyed one-to-one by user ID. Save is an
// upsert; implementations join an active transaction carried in the
// context.
type ProfileStore interface {
	Save(ctx context.Context, profile *models.Profile) error
	FindByUserID(ctx context.Context, userID id.UserID) (*models.Profile, error)
	DeleteByUserID(ctx context.Context, userID id.UserID) error
}

// InMemoryProfileStore is a thread-safe in-memory store for tests and local
// development.
type InMemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[id.UserID]*models.Profile
}

// NewMemory creates an empty in-memory profile store.
func NewMemory() *InMemoryProfileStore {
	return &InMemoryProfileStore{profiles: make(map[id.UserID]*models.Profile)}
}

func (s *InMemoryProfileStore) Save(_ context.Context, profile *models.Profile) error {
	if profile == nil {
		return fmt.Errorf("profile is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *profile
	s.profiles[profile.UserID] = &cp
	return nil
}

func (s *InMemoryProfileStore) FindByUserID(_ context.Context, userID id.UserID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile not found: %w", sentinel.ErrNotFound)
	}
	cp := *profile
	return &cp, nil
}

func (s *InMemoryProfileStore) DeleteByUserID(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[userID]; !ok {
		return fmt.Errorf("profile not found: %w", sentinel.ErrNotFound)
	}
	delete(s.profiles, userID)
	return nil
}
