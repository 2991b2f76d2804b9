package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"kindmesh/internal/recipient"
	"kindmesh/pkg/platform/sentinel"
)

// InMemory keeps the registry in a map behind a mutex. The single lock
// makes CreateOrTouch atomic per key.
type InMemory struct {
	mu         sync.Mutex
	recipients map[string]recipient.Recipient
}

func NewInMemory() *InMemory {
	return &InMemory{recipients: make(map[string]recipient.Recipient)}
}

func (s *InMemory) CreateOrTouch(_ context.Context, key, pseudonym string) (recipient.Recipient, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.recipients[key]
	if !ok {
		created := recipient.Recipient{Key: key, Pseudonym: pseudonym, CreatedAt: time.Now()}
		s.recipients[key] = created
		return created, true, nil
	}
	if pseudonym != "" {
		existing.Pseudonym = pseudonym
		s.recipients[key] = existing
	}
	return existing, false, nil
}

func (s *InMemory) Get(_ context.Context, key string) (recipient.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.recipients[key]
	if !ok {
		return recipient.Recipient{}, sentinel.ErrNotFound
	}
	return entry, nil
}

func (s *InMemory) List(_ context.Context) ([]recipient.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]recipient.Recipient, 0, len(s.recipients))
	for _, entry := range s.recipients {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

func (s *InMemory) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.recipients))
	for key := range s.recipients {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recipients), nil
}
