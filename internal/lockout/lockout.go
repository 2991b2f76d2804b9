// Package lockout throttles repeated authentication failures per
// username. It hardens the deliberately undifferentiated login failure
// against online guessing without changing the caller-visible result.
package lockout

import (
	"context"
	"time"
)

// Store counts failures within a rolling window. Implementations are
// pure I/O; the threshold decision lives in the Guard.
type Store interface {
	// Increment adds one failure and returns the count currently in
	// the window.
	Increment(ctx context.Context, identifier string, window time.Duration) (int64, error)

	// Count returns the failures currently in the window.
	Count(ctx context.Context, identifier string) (int64, error)

	// Clear drops the counter, typically after a successful login.
	Clear(ctx context.Context, identifier string) error
}

const (
	// DefaultThreshold is the failure count that trips the lock.
	DefaultThreshold = 5
	// DefaultWindow is how long failures count against the threshold.
	DefaultWindow = 15 * time.Minute
)

// Guard applies the threshold policy over a Store.
type Guard struct {
	store     Store
	threshold int64
	window    time.Duration
}

// NewGuard builds a Guard. Non-positive threshold or window fall back
// to the defaults.
func NewGuard(store Store, threshold int64, window time.Duration) *Guard {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Guard{store: store, threshold: threshold, window: window}
}

// Allow reports whether the identifier is below the failure threshold.
func (g *Guard) Allow(ctx context.Context, identifier string) (bool, error) {
	count, err := g.store.Count(ctx, identifier)
	if err != nil {
		return true, err
	}
	return count < g.threshold, nil
}

// RecordFailure counts one failed attempt in the window.
func (g *Guard) RecordFailure(ctx context.Context, identifier string) error {
	_, err := g.store.Increment(ctx, identifier, g.window)
	return err
}

// Reset clears the counter after a successful authentication.
func (g *Guard) Reset(ctx context.Context, identifier string) error {
	return g.store.Clear(ctx, identifier)
}
