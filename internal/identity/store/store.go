// Package store persists the identity graph: users, role-change
// provenance, and the shared demotion vote sets. The vote set lives in
// the same store as the users so quorum check-and-apply is one atomic
// operation.
package store

import (
	"context"

	"kindmesh/internal/identity"
)

// Store is implemented by the in-memory and PostgreSQL identity stores.
// Each method is atomic with respect to its race window; in particular
// CreateClaimingFirstAdmin and DemoteIfQuorum close the check-then-act
// races of first-admin election and quorum demotion.
type Store interface {
	// CreateClaimingFirstAdmin inserts the user, electing it Admin when
	// it requests Friend and no non-seed user exists yet. Returns the
	// stored user (role possibly elevated), or sentinel.ErrConflict
	// when the username is taken.
	CreateClaimingFirstAdmin(ctx context.Context, user identity.User) (identity.User, error)

	FindByUsername(ctx context.Context, username string) (identity.User, error)
	List(ctx context.Context) ([]identity.User, error)

	// Promote flips the target to Admin and records PROMOTED
	// provenance in one step. Authorization is the service's job.
	Promote(ctx context.Context, target, actor string) error

	// Delete removes the user and detaches identity edges (votes cast
	// by or against it, role-change provenance). Interactions keep the
	// username as a plain attribute and are untouched. Returns false
	// when the user does not exist.
	Delete(ctx context.Context, username string) (bool, error)

	// AddVote records a demotion vote. Idempotent per (target, voter).
	AddVote(ctx context.Context, target, voter string) error
	RemoveVote(ctx context.Context, target, voter string) error
	Votes(ctx context.Context, target string) ([]string, error)

	// DemoteIfQuorum counts the currently-valid votes for target
	// (voters who are still Admins and distinct from the target) and,
	// when they reach quorum and the target is still an Admin, flips
	// the role to Friend, records DEMOTED provenance per voter, and
	// clears the vote set, all atomically. Stale votes from demoted or
	// deleted admins are discarded here, not at cast time.
	DemoteIfQuorum(ctx context.Context, target string, quorum int) (applied bool, validVoters []string, err error)

	// RoleChanges returns promotion/demotion provenance for a target,
	// oldest first.
	RoleChanges(ctx context.Context, target string) ([]identity.RoleChange, error)
}
