package dedupe

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps markers in process memory. Fine for a single replica and
// for tests; multi-replica deployments use the Redis store.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	seen    map[string]time.Time
	now     func() time.Time
	lastGC  time.Time
	gcEvery time.Duration
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		seen:    make(map[string]time.Time),
		now:     time.Now,
		gcEvery: time.Minute,
	}
}

func (s *MemoryStore) MarkIfFirst(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)

	if expiry, ok := s.seen[eventID]; ok && now.Before(expiry) {
		return false, nil
	}
	s.seen[eventID] = now.Add(s.ttl)
	return true, nil
}

func (s *MemoryStore) Unmark(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, eventID)
	return nil
}

func (s *MemoryStore) pruneLocked(now time.Time) {
	if now.Sub(s.lastGC) < s.gcEvery {
		return
	}
	s.lastGC = now
	for id, expiry := range s.seen {
		if !now.Before(expiry) {
			delete(s.seen, id)
		}
	}
}
