package service

import (
	"context"
	"errors"

	"kindmesh/internal/audit"
	"kindmesh/internal/identity"
	dErrors "kindmesh/pkg/domain-errors"
	"kindmesh/pkg/platform/sentinel"
	pstrings "kindmesh/pkg/platform/strings"
)

// CastVote records voter's demotion vote against target and applies the
// demotion when quorum is reached. Casting twice is a no-op for the
// count. Returns whether the demotion was applied.
func (s *Service) CastVote(ctx context.Context, target, voter string) (bool, error) {
	if err := s.checkDemotionPair(ctx, target, voter); err != nil {
		return false, err
	}
	if err := s.store.AddVote(ctx, target, voter); err != nil {
		return false, storeFailure(err, "failed to record vote")
	}
	s.logAudit(ctx, audit.EventVoteCast, voter, target)

	applied, voters, err := s.store.DemoteIfQuorum(ctx, target, identity.DemotionQuorum)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return false, storeFailure(err, "failed to evaluate demotion quorum")
	}
	if applied {
		s.noteDemotion(ctx, target, voters)
	}
	return applied, nil
}

// RetractVote withdraws a previously cast vote. Retracting a vote that
// was never cast is a no-op.
func (s *Service) RetractVote(ctx context.Context, target, voter string) error {
	if err := s.store.RemoveVote(ctx, target, voter); err != nil {
		return storeFailure(err, "failed to retract vote")
	}
	s.logAudit(ctx, audit.EventVoteRetracted, voter, target)
	return nil
}

// Votes returns the currently-valid votes against target: voters who
// still hold Admin and are distinct from the target. Stale entries are
// filtered from the view but stay in the store until the next quorum
// evaluation discards them.
func (s *Service) Votes(ctx context.Context, target string) ([]string, error) {
	voters, err := s.store.Votes(ctx, target)
	if err != nil {
		return nil, storeFailure(err, "failed to list votes")
	}
	valid := make([]string, 0, len(voters))
	for _, voter := range voters {
		if voter == target {
			continue
		}
		user, err := s.store.FindByUsername(ctx, voter)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, storeFailure(err, "failed to verify voter")
		}
		if user.Role == identity.RoleAdmin {
			valid = append(valid, voter)
		}
	}
	return valid, nil
}

// Demote casts votes for every named voter and applies the demotion if
// they reach quorum together. Duplicate and blank voter names are
// dropped first. Quorum and per-voter eligibility are both checked
// before any vote is recorded, so a failing call leaves the shared
// vote set untouched.
func (s *Service) Demote(ctx context.Context, target string, voters []string) (bool, error) {
	voters = pstrings.DedupeAndTrim(voters)
	if len(voters) == 0 {
		return false, dErrors.New(dErrors.CodeValidation, "at least one voter is required")
	}
	if len(voters) < identity.DemotionQuorum {
		return false, dErrors.New(dErrors.CodeQuorumNotMet, "demotion requires two distinct admin votes")
	}
	for _, voter := range voters {
		if err := s.checkDemotionPair(ctx, target, voter); err != nil {
			return false, err
		}
	}
	for _, voter := range voters {
		if err := s.store.AddVote(ctx, target, voter); err != nil {
			return false, storeFailure(err, "failed to record vote")
		}
		s.logAudit(ctx, audit.EventVoteCast, voter, target)
	}

	applied, validVoters, err := s.store.DemoteIfQuorum(ctx, target, identity.DemotionQuorum)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return false, storeFailure(err, "failed to evaluate demotion quorum")
	}
	if !applied {
		return false, dErrors.New(dErrors.CodeQuorumNotMet, "demotion requires two distinct admin votes")
	}
	s.noteDemotion(ctx, target, validVoters)
	return true, nil
}

// RoleChanges returns the promotion/demotion history of a user, oldest
// first.
func (s *Service) RoleChanges(ctx context.Context, target string) ([]identity.RoleChange, error) {
	changes, err := s.store.RoleChanges(ctx, target)
	if err != nil {
		return nil, storeFailure(err, "failed to load role changes")
	}
	return changes, nil
}

func (s *Service) checkDemotionPair(ctx context.Context, target, voter string) error {
	if voter == target {
		return dErrors.New(dErrors.CodeValidation, "admins cannot vote to demote themselves")
	}
	voting, err := s.store.FindByUsername(ctx, voter)
	if errors.Is(err, sentinel.ErrNotFound) || (err == nil && voting.Role != identity.RoleAdmin) {
		return dErrors.New(dErrors.CodeUnauthorized, "demotion votes require an Admin account")
	}
	if err != nil {
		return storeFailure(err, "failed to verify voter")
	}

	subject, err := s.store.FindByUsername(ctx, target)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return storeFailure(err, "failed to load user")
	}
	if subject.Role != identity.RoleAdmin {
		return dErrors.New(dErrors.CodeValidation, "only admins can be demoted")
	}
	return nil
}

func (s *Service) noteDemotion(ctx context.Context, target string, voters []string) {
	actor := ""
	if len(voters) > 0 {
		actor = voters[0]
	}
	s.logAudit(ctx, audit.EventAdminDemoted, actor, target, "voters", voters)
	if s.metrics != nil {
		s.metrics.DemotionsApplied.Inc()
	}
}
