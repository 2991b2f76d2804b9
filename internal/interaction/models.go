// Package interaction holds the append-only ledger of
// resource-distribution events. Entries are immutable once logged and
// always link one logger to one recipient.
package interaction

import (
	"time"

	"github.com/google/uuid"
)

// Interaction is one ledger entry. LoggedBy is kept as a plain username
// attribute so deleting the account later never orphans the record.
type Interaction struct {
	ID           uuid.UUID
	LoggedBy     string
	RecipientKey string
	ResourceType string
	Notes        string
	LoggedAt     time.Time
}

// Summary is the read-only rollup over the ledger and the registry.
type Summary struct {
	TotalInteractions int
	TotalRecipients   int
	// ByType counts interactions grouped by resource type.
	ByType map[string]int
}
