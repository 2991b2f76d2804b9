// Package store persists the recipient registry.
package store

import (
	"context"

	"kindmesh/internal/recipient"
)

// Store is implemented by the in-memory and PostgreSQL registries.
type Store interface {
	// CreateOrTouch merges by key in one atomic step: a new key is
	// created with CreatedAt now; an existing key keeps its CreatedAt
	// and has its pseudonym overwritten only when a non-empty value is
	// supplied. Returns the stored entity and whether it was created.
	CreateOrTouch(ctx context.Context, key, pseudonym string) (recipient.Recipient, bool, error)

	// Get returns sentinel.ErrNotFound for unknown keys.
	Get(ctx context.Context, key string) (recipient.Recipient, error)

	// List returns all recipients ordered by key.
	List(ctx context.Context) ([]recipient.Recipient, error)

	// Keys returns all keys ordered ascending.
	Keys(ctx context.Context) ([]string, error)

	// Count returns the number of registered recipients.
	Count(ctx context.Context) (int, error)
}
