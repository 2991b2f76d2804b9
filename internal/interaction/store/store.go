// Package store persists the interaction ledger.
package store

import (
	"context"

	"kindmesh/internal/interaction"
)

// Store is implemented by the in-memory and PostgreSQL ledgers. The
// ledger is append-only; there is no update or delete.
type Store interface {
	Append(ctx context.Context, entry interaction.Interaction) error

	// List returns entries most-recent-first, optionally filtered by
	// recipient key. limit <= 0 means no limit.
	List(ctx context.Context, limit int, recipientKey string) ([]interaction.Interaction, error)

	// ExportAll returns every entry oldest-first for reporting.
	ExportAll(ctx context.Context) ([]interaction.Interaction, error)

	Count(ctx context.Context) (int, error)
	CountByType(ctx context.Context) (map[string]int, error)
}
