// Package service implements the survey catalog and response
// operations.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"kindmesh/internal/audit"
	"kindmesh/internal/platform/metrics"
	"kindmesh/internal/platform/middleware"
	"kindmesh/internal/recipient"
	"kindmesh/internal/survey"
	"kindmesh/internal/survey/store"
	dErrors "kindmesh/pkg/domain-errors"
	"kindmesh/pkg/platform/sentinel"
)

// Registry merges recipients by key. Implemented by the recipient
// service; responses reference recipients through the same merge as
// interactions.
type Registry interface {
	Register(ctx context.Context, key, pseudonym string) (recipient.Recipient, error)
}

// AuditPublisher receives audit events for catalog and response writes.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service validates survey documents and guards the response upsert.
type Service struct {
	catalog        store.CatalogStore
	responses      store.ResponseStore
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

func New(catalog store.CatalogStore, responses store.ResponseStore, registry Registry, opts ...Option) *Service {
	s := &Service{catalog: catalog, responses: responses, registry: registry}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSurvey validates and stores a new survey document.
func (s *Service) CreateSurvey(ctx context.Context, name, description string, sections []survey.Section, createdBy string) (survey.Survey, error) {
	if err := survey.Validate(name, sections); err != nil {
		return survey.Survey{}, err
	}
	now := time.Now()
	entry := survey.Survey{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(name),
		Description: description,
		Sections:    sections,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.catalog.Create(ctx, entry); err != nil {
		return survey.Survey{}, storeFailure(err, "failed to create survey")
	}
	s.logAudit(ctx, audit.EventSurveyCreated, createdBy, entry.ID.String())
	if s.metrics != nil {
		s.metrics.SurveysCreated.Inc()
	}
	return entry, nil
}

// UpdateSurvey replaces name, description, and sections of an existing
// survey.
func (s *Service) UpdateSurvey(ctx context.Context, id uuid.UUID, name, description string, sections []survey.Section, updatedBy string) (survey.Survey, error) {
	if err := survey.Validate(name, sections); err != nil {
		return survey.Survey{}, err
	}
	entry, err := s.catalog.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return survey.Survey{}, dErrors.New(dErrors.CodeNotFound, "survey not found")
	}
	if err != nil {
		return survey.Survey{}, storeFailure(err, "failed to load survey")
	}

	entry.Name = strings.TrimSpace(name)
	entry.Description = description
	entry.Sections = sections
	entry.UpdatedAt = time.Now()
	if err := s.catalog.Update(ctx, entry); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return survey.Survey{}, dErrors.New(dErrors.CodeNotFound, "survey not found")
		}
		return survey.Survey{}, storeFailure(err, "failed to update survey")
	}
	s.logAudit(ctx, audit.EventSurveyUpdated, updatedBy, id.String())
	return entry, nil
}

// DeleteSurvey removes a catalog entry. Responses already stored keep
// the survey id as a plain attribute and survive the deletion. Returns
// false, without error, when the id is unknown.
func (s *Service) DeleteSurvey(ctx context.Context, id uuid.UUID, deletedBy string) (bool, error) {
	deleted, err := s.catalog.Delete(ctx, id)
	if err != nil {
		return false, storeFailure(err, "failed to delete survey")
	}
	if deleted {
		s.logAudit(ctx, audit.EventSurveyDeleted, deletedBy, id.String())
	}
	return deleted, nil
}

// GetSurvey looks up one survey by id.
func (s *Service) GetSurvey(ctx context.Context, id uuid.UUID) (survey.Survey, error) {
	entry, err := s.catalog.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return survey.Survey{}, dErrors.New(dErrors.CodeNotFound, "survey not found")
	}
	if err != nil {
		return survey.Survey{}, storeFailure(err, "failed to load survey")
	}
	return entry, nil
}

// ListSurveys returns the catalog, oldest first.
func (s *Service) ListSurveys(ctx context.Context) ([]survey.Survey, error) {
	entries, err := s.catalog.List(ctx)
	if err != nil {
		return nil, storeFailure(err, "failed to list surveys")
	}
	return entries, nil
}

// SaveResponse upserts the answer document for one (recipient,
// section). The recipient is merged through the registry first so a
// response can never reference an unregistered key. When a survey id is
// supplied it must name an existing survey.
func (s *Service) SaveResponse(ctx context.Context, response survey.Response) (survey.Response, error) {
	if strings.TrimSpace(response.Section) == "" {
		return survey.Response{}, dErrors.New(dErrors.CodeValidation, "section is required")
	}
	if len(response.Answers) == 0 {
		return survey.Response{}, dErrors.New(dErrors.CodeValidation, "answers are required")
	}
	if response.SurveyID != uuid.Nil {
		if _, err := s.GetSurvey(ctx, response.SurveyID); err != nil {
			return survey.Response{}, err
		}
	}

	merged, err := s.registry.Register(ctx, response.RecipientKey, "")
	if err != nil {
		return survey.Response{}, err
	}
	response.RecipientKey = merged.Key

	stored, err := s.responses.Upsert(ctx, response)
	if err != nil {
		return survey.Response{}, storeFailure(err, "failed to save response")
	}
	s.logAudit(ctx, audit.EventResponseSaved, response.SubmittedBy, stored.RecipientKey,
		"section", stored.Section)
	if s.metrics != nil {
		s.metrics.ResponsesSaved.Inc()
	}
	return stored, nil
}

// GetResponses returns the stored documents for a recipient, optionally
// narrowed to one section.
func (s *Service) GetResponses(ctx context.Context, recipientKey, section string) ([]survey.Response, error) {
	responses, err := s.responses.List(ctx, recipientKey, section)
	if err != nil {
		return nil, storeFailure(err, "failed to list responses")
	}
	return responses, nil
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, actor, subject string, attributes ...any) {
	requestID := middleware.GetRequestID(ctx)
	if s.logger != nil {
		args := append(attributes,
			"actor", actor,
			"subject", subject,
			"event", string(event),
			"log_type", "audit",
		)
		if requestID != "" {
			args = append(args, "request_id", requestID)
		}
		s.logger.InfoContext(ctx, string(event), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		Actor:     actor,
		Subject:   subject,
		Action:    string(event),
		RequestID: requestID,
	})
}

func storeFailure(err error, message string) error {
	if errors.Is(err, sentinel.ErrUnavailable) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, message)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, message)
}
