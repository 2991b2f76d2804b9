// Package service implements the ledger operations: validated appends
// and read-only rollups.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"kindmesh/internal/audit"
	"kindmesh/internal/identity"
	"kindmesh/internal/interaction"
	"kindmesh/internal/interaction/store"
	"kindmesh/internal/platform/metrics"
	"kindmesh/internal/platform/middleware"
	"kindmesh/internal/recipient"
	dErrors "kindmesh/pkg/domain-errors"
	"kindmesh/pkg/platform/sentinel"
)

// UserDirectory resolves logger usernames. Implemented by the identity
// service.
type UserDirectory interface {
	FindByUsername(ctx context.Context, username string) (identity.User, error)
}

// Registry merges recipients by key. Implemented by the recipient
// service.
type Registry interface {
	Register(ctx context.Context, key, pseudonym string) (recipient.Recipient, error)
	Count(ctx context.Context) (int, error)
}

// AuditPublisher receives audit events for ledger writes.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// LogInput describes one distribution event to append.
type LogInput struct {
	LoggedBy           string
	RecipientKey       string
	ResourceType       string
	Notes              string
	RecipientPseudonym string
}

// Service guards the append path of the ledger. Entries are immutable;
// the service exposes no update or delete.
type Service struct {
	store          store.Store
	users          UserDirectory
	registry       Registry
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func New(st store.Store, users UserDirectory, registry Registry, opts ...Option) *Service {
	s := &Service{store: st, users: users, registry: registry}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Log resolves the recipient through the registry merge and appends one
// immutable entry. The logger must name an existing user so the entry
// is never orphaned at write time.
func (s *Service) Log(ctx context.Context, input LogInput) (interaction.Interaction, error) {
	if strings.TrimSpace(input.ResourceType) == "" {
		return interaction.Interaction{}, dErrors.New(dErrors.CodeValidation, "resource type is required")
	}

	if _, err := s.users.FindByUsername(ctx, input.LoggedBy); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return interaction.Interaction{}, dErrors.New(dErrors.CodeNotFound, "logging user not found")
		}
		return interaction.Interaction{}, storeFailure(err, "failed to verify logging user")
	}

	merged, err := s.registry.Register(ctx, input.RecipientKey, input.RecipientPseudonym)
	if err != nil {
		return interaction.Interaction{}, err
	}

	entry := interaction.Interaction{
		ID:           uuid.New(),
		LoggedBy:     input.LoggedBy,
		RecipientKey: merged.Key,
		ResourceType: strings.TrimSpace(input.ResourceType),
		Notes:        input.Notes,
		LoggedAt:     time.Now(),
	}
	if err := s.store.Append(ctx, entry); err != nil {
		return interaction.Interaction{}, storeFailure(err, "failed to append interaction")
	}

	s.logAudit(ctx, entry)
	if s.metrics != nil {
		s.metrics.InteractionsLogged.Inc()
	}
	return entry, nil
}

// List returns ledger entries most-recent-first, optionally filtered by
// recipient key.
func (s *Service) List(ctx context.Context, limit int, recipientKey string) ([]interaction.Interaction, error) {
	entries, err := s.store.List(ctx, limit, recipientKey)
	if err != nil {
		return nil, storeFailure(err, "failed to list interactions")
	}
	return entries, nil
}

// ExportAll returns every ledger entry oldest-first for reporting.
func (s *Service) ExportAll(ctx context.Context) ([]interaction.Interaction, error) {
	entries, err := s.store.ExportAll(ctx)
	if err != nil {
		return nil, storeFailure(err, "failed to export interactions")
	}
	return entries, nil
}

// Summary fans the three rollup queries out concurrently.
func (s *Service) Summary(ctx context.Context) (interaction.Summary, error) {
	var summary interaction.Summary

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		count, err := s.store.Count(ctx)
		summary.TotalInteractions = count
		return err
	})
	g.Go(func() error {
		count, err := s.registry.Count(ctx)
		summary.TotalRecipients = count
		return err
	})
	g.Go(func() error {
		counts, err := s.store.CountByType(ctx)
		summary.ByType = counts
		return err
	})
	if err := g.Wait(); err != nil {
		return interaction.Summary{}, storeFailure(err, "failed to summarize interactions")
	}
	return summary, nil
}

func (s *Service) logAudit(ctx context.Context, entry interaction.Interaction) {
	requestID := middleware.GetRequestID(ctx)
	if s.logger != nil {
		args := []any{
			"actor", entry.LoggedBy,
			"subject", entry.RecipientKey,
			"resource_type", entry.ResourceType,
			"event", string(audit.EventInteractionLogged),
			"log_type", "audit",
		}
		if requestID != "" {
			args = append(args, "request_id", requestID)
		}
		s.logger.InfoContext(ctx, string(audit.EventInteractionLogged), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		Actor:     entry.LoggedBy,
		Subject:   entry.RecipientKey,
		Action:    string(audit.EventInteractionLogged),
		RequestID: requestID,
	})
}

func storeFailure(err error, message string) error {
	if errors.Is(err, sentinel.ErrUnavailable) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, message)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, message)
}
