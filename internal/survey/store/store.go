// Package store persists the survey catalog and response documents.
package store

import (
	"context"

	"github.com/google/uuid"

	"kindmesh/internal/survey"
)

// CatalogStore is implemented by the in-memory and PostgreSQL survey
// catalogs.
type CatalogStore interface {
	Create(ctx context.Context, entry survey.Survey) error

	// Update overwrites the mutable fields (name, description,
	// sections, updated_at). Returns sentinel.ErrNotFound for unknown
	// ids.
	Update(ctx context.Context, entry survey.Survey) error

	// Delete removes the catalog entry only; stored responses keep
	// their survey id attribute. Returns false for unknown ids.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)

	Get(ctx context.Context, id uuid.UUID) (survey.Survey, error)
	List(ctx context.Context) ([]survey.Survey, error)
}

// ResponseStore is implemented by the in-memory and PostgreSQL response
// stores. Upsert is atomic per (recipient, section).
type ResponseStore interface {
	// Upsert creates the document with CreatedAt on first write and
	// overwrites Answers, SurveyID, SubmittedBy and stamps UpdatedAt on
	// every later write for the same (recipient, section).
	Upsert(ctx context.Context, response survey.Response) (survey.Response, error)

	// List returns documents for a recipient, optionally narrowed to
	// one section, ordered by section name.
	List(ctx context.Context, recipientKey, section string) ([]survey.Response, error)
}
