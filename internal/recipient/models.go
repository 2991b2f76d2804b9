// Package recipient holds the deduplicated registry of the people
// resources are distributed to. Recipients are keyed by an external
// identifier and merged on every reference so concurrent first-touches
// converge on one entity.
package recipient

import "time"

// Recipient is a registry entry. Key is the external identifier and is
// immutable once created; Pseudonym is a display alias that later
// references may overwrite.
type Recipient struct {
	Key       string
	Pseudonym string
	CreatedAt time.Time
}
