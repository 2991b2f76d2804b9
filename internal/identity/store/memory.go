package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"kindmesh/internal/identity"
	"kindmesh/pkg/platform/sentinel"
)

// InMemory keeps the identity graph in maps behind one mutex. A single
// coarse lock is what makes the first-admin claim and quorum
// check-and-apply atomic here.
type InMemory struct {
	mu      sync.Mutex
	seed    string
	users   map[string]identity.User
	votes   map[string]map[string]time.Time
	changes []identity.RoleChange
}

// NewInMemory builds an empty identity store. seed names the bootstrap
// account excluded from the first-admin rule.
func NewInMemory(seed string) *InMemory {
	return &InMemory{
		seed:  seed,
		users: make(map[string]identity.User),
		votes: make(map[string]map[string]time.Time),
	}
}

func (s *InMemory) CreateClaimingFirstAdmin(_ context.Context, user identity.User) (identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Username]; exists {
		return identity.User{}, sentinel.ErrConflict
	}
	if user.Username != s.seed && user.Role == identity.RoleFriend && s.memberCountLocked() == 0 {
		user.Role = identity.RoleAdmin
	}
	s.users[user.Username] = user
	return user, nil
}

// memberCountLocked counts member accounts: everyone except the seed
// and Greeters. Greeters are provisioning-only, so they leave the
// first-admin election open for the next Friend request.
func (s *InMemory) memberCountLocked() int {
	count := 0
	for _, user := range s.users {
		if user.Username == s.seed || user.Role == identity.RoleGreeter {
			continue
		}
		count++
	}
	return count
}

func (s *InMemory) FindByUsername(_ context.Context, username string) (identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return identity.User{}, sentinel.ErrNotFound
	}
	return user, nil
}

func (s *InMemory) List(_ context.Context) ([]identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]identity.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].Username < users[j].Username
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (s *InMemory) Promote(_ context.Context, target, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[target]
	if !ok {
		return sentinel.ErrNotFound
	}
	user.Role = identity.RoleAdmin
	s.users[target] = user
	s.changes = append(s.changes, identity.RoleChange{
		Action:    identity.ActionPromoted,
		Target:    target,
		Actor:     actor,
		ChangedAt: time.Now(),
	})
	return nil
}

func (s *InMemory) Delete(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; !ok {
		return false, nil
	}
	delete(s.users, username)
	delete(s.votes, username)
	for target, voters := range s.votes {
		delete(voters, username)
		if len(voters) == 0 {
			delete(s.votes, target)
		}
	}
	kept := s.changes[:0]
	for _, change := range s.changes {
		if change.Target != username && change.Actor != username {
			kept = append(kept, change)
		}
	}
	s.changes = kept
	return true, nil
}

func (s *InMemory) AddVote(_ context.Context, target, voter string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	voters, ok := s.votes[target]
	if !ok {
		voters = make(map[string]time.Time)
		s.votes[target] = voters
	}
	if _, cast := voters[voter]; !cast {
		voters[voter] = time.Now()
	}
	return nil
}

func (s *InMemory) RemoveVote(_ context.Context, target, voter string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if voters, ok := s.votes[target]; ok {
		delete(voters, voter)
		if len(voters) == 0 {
			delete(s.votes, target)
		}
	}
	return nil
}

func (s *InMemory) Votes(_ context.Context, target string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	voters := make([]string, 0, len(s.votes[target]))
	for voter := range s.votes[target] {
		voters = append(voters, voter)
	}
	sort.Strings(voters)
	return voters, nil
}

func (s *InMemory) DemoteIfQuorum(_ context.Context, target string, quorum int) (bool, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[target]
	if !ok {
		return false, nil, sentinel.ErrNotFound
	}

	var valid []string
	for voter := range s.votes[target] {
		if voter == target {
			continue
		}
		if admin, ok := s.users[voter]; ok && admin.Role == identity.RoleAdmin {
			valid = append(valid, voter)
		}
	}
	sort.Strings(valid)

	if user.Role != identity.RoleAdmin || len(valid) < quorum {
		return false, valid, nil
	}

	user.Role = identity.RoleFriend
	s.users[target] = user
	now := time.Now()
	for _, voter := range valid {
		s.changes = append(s.changes, identity.RoleChange{
			Action:    identity.ActionDemoted,
			Target:    target,
			Actor:     voter,
			ChangedAt: now,
		})
	}
	delete(s.votes, target)
	return true, valid, nil
}

func (s *InMemory) RoleChanges(_ context.Context, target string) ([]identity.RoleChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changes []identity.RoleChange
	for _, change := range s.changes {
		if change.Target == target {
			changes = append(changes, change)
		}
	}
	return changes, nil
}
