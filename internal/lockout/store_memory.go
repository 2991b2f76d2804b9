package lockout

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	count     int64
	expiresAt time.Time
}

// InMemoryStore counts failures in a map behind a mutex. Expired
// windows are dropped lazily on access.
type InMemoryStore struct {
	mu       sync.Mutex
	counters map[string]counter
	now      func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		counters: make(map[string]counter),
		now:      time.Now,
	}
}

func (s *InMemoryStore) Increment(_ context.Context, identifier string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.counters[identifier]
	if !ok || now.After(entry.expiresAt) {
		entry = counter{expiresAt: now.Add(window)}
	}
	entry.count++
	s.counters[identifier] = entry
	return entry.count, nil
}

func (s *InMemoryStore) Count(_ context.Context, identifier string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.counters[identifier]
	if !ok {
		return 0, nil
	}
	if s.now().After(entry.expiresAt) {
		delete(s.counters, identifier)
		return 0, nil
	}
	return entry.count, nil
}

func (s *InMemoryStore) Clear(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, identifier)
	return nil
}
