package audit

import (
	"context"
	"sync"
)

// Store persists audit events. Implementations must tolerate concurrent
// appends.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByCorrelation(ctx context.Context, correlationID string) ([]Event, error)
}

// MemoryStore keeps the trail in process memory for tests and local runs.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryStore) ListByCorrelation(_ context.Context, correlationID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, e := range s.events {
		if e.CorrelationID == correlationID {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns a snapshot of every recorded event.
func (s *MemoryStore) All() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event(nil), s.events...)
}
