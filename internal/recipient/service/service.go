// Package service exposes the recipient registry operations.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"kindmesh/internal/recipient"
	"kindmesh/internal/recipient/store"
	dErrors "kindmesh/pkg/domain-errors"
	"kindmesh/pkg/platform/sentinel"
)

// Service validates references into the registry. Merge atomicity is
// the store's job.
type Service struct {
	store  store.Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(st store.Store, opts ...Option) *Service {
	s := &Service{store: st}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register merges a recipient by key. Existing entries keep their
// CreatedAt; a non-empty pseudonym replaces the stored one.
func (s *Service) Register(ctx context.Context, key, pseudonym string) (recipient.Recipient, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return recipient.Recipient{}, dErrors.New(dErrors.CodeValidation, "recipient key is required")
	}
	entry, created, err := s.store.CreateOrTouch(ctx, key, strings.TrimSpace(pseudonym))
	if err != nil {
		return recipient.Recipient{}, storeFailure(err, "failed to merge recipient")
	}
	if created && s.logger != nil {
		s.logger.InfoContext(ctx, "recipient registered", "key", key)
	}
	return entry, nil
}

// Get looks up a recipient by key.
func (s *Service) Get(ctx context.Context, key string) (recipient.Recipient, error) {
	entry, err := s.store.Get(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		return recipient.Recipient{}, dErrors.New(dErrors.CodeNotFound, "recipient not found")
	}
	if err != nil {
		return recipient.Recipient{}, storeFailure(err, "failed to load recipient")
	}
	return entry, nil
}

// List returns all recipients ordered by key.
func (s *Service) List(ctx context.Context) ([]recipient.Recipient, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, storeFailure(err, "failed to list recipients")
	}
	return entries, nil
}

// Keys returns all recipient keys ordered ascending.
func (s *Service) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.store.Keys(ctx)
	if err != nil {
		return nil, storeFailure(err, "failed to list recipient keys")
	}
	return keys, nil
}

// Count returns the number of registered recipients.
func (s *Service) Count(ctx context.Context) (int, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return 0, storeFailure(err, "failed to count recipients")
	}
	return count, nil
}

func storeFailure(err error, message string) error {
	if errors.Is(err, sentinel.ErrUnavailable) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, message)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, message)
}
