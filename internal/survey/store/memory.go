package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"kindmesh/internal/survey"
	"kindmesh/pkg/platform/sentinel"
)

// InMemoryCatalog keeps survey definitions in a map behind a mutex.
type InMemoryCatalog struct {
	mu      sync.Mutex
	surveys map[uuid.UUID]survey.Survey
}

func NewInMemoryCatalog() *InMemoryCatalog {
	return &InMemoryCatalog{surveys: make(map[uuid.UUID]survey.Survey)}
}

func (s *InMemoryCatalog) Create(_ context.Context, entry survey.Survey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.surveys[entry.ID]; exists {
		return sentinel.ErrConflict
	}
	s.surveys[entry.ID] = entry
	return nil
}

func (s *InMemoryCatalog) Update(_ context.Context, entry survey.Survey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.surveys[entry.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	stored.Name = entry.Name
	stored.Description = entry.Description
	stored.Sections = entry.Sections
	stored.UpdatedAt = entry.UpdatedAt
	s.surveys[entry.ID] = stored
	return nil
}

func (s *InMemoryCatalog) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.surveys[id]; !ok {
		return false, nil
	}
	delete(s.surveys, id)
	return true, nil
}

func (s *InMemoryCatalog) Get(_ context.Context, id uuid.UUID) (survey.Survey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.surveys[id]
	if !ok {
		return survey.Survey{}, sentinel.ErrNotFound
	}
	return entry, nil
}

func (s *InMemoryCatalog) List(_ context.Context) ([]survey.Survey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]survey.Survey, 0, len(s.surveys))
	for _, entry := range s.surveys {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

type responseKey struct {
	recipientKey string
	section      string
}

// InMemoryResponses keeps response documents keyed by (recipient,
// section) behind a mutex, making the upsert atomic per key.
type InMemoryResponses struct {
	mu        sync.Mutex
	responses map[responseKey]survey.Response
}

func NewInMemoryResponses() *InMemoryResponses {
	return &InMemoryResponses{responses: make(map[responseKey]survey.Response)}
}

func (s *InMemoryResponses) Upsert(_ context.Context, response survey.Response) (survey.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := responseKey{recipientKey: response.RecipientKey, section: response.Section}
	now := time.Now()
	stored, ok := s.responses[key]
	if !ok {
		response.CreatedAt = now
		response.UpdatedAt = time.Time{}
		s.responses[key] = response
		return response, nil
	}
	stored.Answers = response.Answers
	stored.SurveyID = response.SurveyID
	stored.SubmittedBy = response.SubmittedBy
	stored.UpdatedAt = now
	s.responses[key] = stored
	return stored, nil
}

func (s *InMemoryResponses) List(_ context.Context, recipientKey, section string) ([]survey.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []survey.Response
	for key, response := range s.responses {
		if key.recipientKey != recipientKey {
			continue
		}
		if section != "" && key.section != section {
			continue
		}
		matched = append(matched, response)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Section < matched[j].Section })
	return matched, nil
}
