package profile

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	dErrors "mentora/pkg/domain-errors"
)

// MemoryStore backs tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]UserProfile
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[uuid.UUID]UserProfile),
		now:      time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) InsertIfAbsent(_ context.Context, p UserProfile) (InsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[p.ID]; ok {
		return InsertAlreadyExists, nil
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.profiles[p.ID] = p
	return InsertCreated, nil
}

func (s *MemoryStore) FindByID(_ context.Context, id uuid.UUID) (*UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "profile not found")
	}
	return &p, nil
}

func (s *MemoryStore) SetEducator(_ context.Context, id uuid.UUID, educator bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return false, dErrors.New(dErrors.CodeNotFound, "profile not found")
	}
	if p.Educator == educator {
		return false, nil
	}
	p.Educator = educator
	s.profiles[id] = p
	return true, nil
}
