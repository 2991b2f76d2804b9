package store

import (
	"context"
	"sync"

	"kindmesh/internal/interaction"
)

// InMemory keeps the ledger as an append-only slice behind a mutex.
type InMemory struct {
	mu      sync.Mutex
	entries []interaction.Interaction
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(_ context.Context, entry interaction.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemory) List(_ context.Context, limit int, recipientKey string) ([]interaction.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []interaction.Interaction
	for i := len(s.entries) - 1; i >= 0; i-- {
		entry := s.entries[i]
		if recipientKey != "" && entry.RecipientKey != recipientKey {
			continue
		}
		matched = append(matched, entry)
		if limit > 0 && len(matched) == limit {
			break
		}
	}
	return matched, nil
}

func (s *InMemory) ExportAll(_ context.Context) ([]interaction.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]interaction.Interaction, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

func (s *InMemory) CountByType(_ context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int)
	for _, entry := range s.entries {
		counts[entry.ResourceType]++
	}
	return counts, nil
}
