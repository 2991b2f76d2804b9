package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kindmesh/internal/identity"
	"kindmesh/pkg/platform/sentinel"
)

func newUser(username string, role identity.Role) identity.User {
	return identity.User{
		Username:     username,
		PasswordHash: "hash",
		Role:         role,
		CreatedAt:    time.Now(),
	}
}

func TestInMemoryCreateClaimingFirstAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("first friend is elected", func(t *testing.T) {
		s := NewInMemory("Hello")
		stored, err := s.CreateClaimingFirstAdmin(ctx, newUser("alice", identity.RoleFriend))
		require.NoError(t, err)
		assert.Equal(t, identity.RoleAdmin, stored.Role)
	})

	t.Run("seed does not close the election", func(t *testing.T) {
		s := NewInMemory("Hello")
		seed, err := s.CreateClaimingFirstAdmin(ctx, newUser("Hello", identity.RoleFriend))
		require.NoError(t, err)
		assert.Equal(t, identity.RoleFriend, seed.Role, "seed never claims the slot itself")
		stored, err := s.CreateClaimingFirstAdmin(ctx, newUser("alice", identity.RoleFriend))
		require.NoError(t, err)
		assert.Equal(t, identity.RoleAdmin, stored.Role)
	})

	t.Run("greeter does not close the election", func(t *testing.T) {
		s := NewInMemory("Hello")
		greeter, err := s.CreateClaimingFirstAdmin(ctx, newUser("greta", identity.RoleGreeter))
		require.NoError(t, err)
		assert.Equal(t, identity.RoleGreeter, greeter.Role)
		stored, err := s.CreateClaimingFirstAdmin(ctx, newUser("alice", identity.RoleFriend))
		require.NoError(t, err)
		assert.Equal(t, identity.RoleAdmin, stored.Role)
	})

	t.Run("duplicate username conflicts", func(t *testing.T) {
		s := NewInMemory("Hello")
		_, err := s.CreateClaimingFirstAdmin(ctx, newUser("alice", identity.RoleFriend))
		require.NoError(t, err)
		_, err = s.CreateClaimingFirstAdmin(ctx, newUser("alice", identity.RoleFriend))
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("concurrent claims elect exactly one admin", func(t *testing.T) {
		s := NewInMemory("Hello")
		const workers = 32

		var wg sync.WaitGroup
		usernames := make([]string, workers)
		for i := range usernames {
			usernames[i] = string(rune('a'+i%26)) + string(rune('0'+i/26))
		}
		for _, username := range usernames {
			wg.Add(1)
			go func(username string) {
				defer wg.Done()
				_, _ = s.CreateClaimingFirstAdmin(ctx, newUser(username, identity.RoleFriend))
			}(username)
		}
		wg.Wait()

		users, err := s.List(ctx)
		require.NoError(t, err)
		admins := 0
		for _, user := range users {
			if user.Role == identity.RoleAdmin {
				admins++
			}
		}
		assert.Equal(t, 1, admins)
	})
}

func TestInMemoryDemoteIfQuorum(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory("Hello")
	for _, username := range []string{"alice", "bob", "carol"} {
		_, err := s.CreateClaimingFirstAdmin(ctx, newUser(username, identity.RoleAdmin))
		require.NoError(t, err)
	}

	require.NoError(t, s.AddVote(ctx, "alice", "bob"))
	applied, valid, err := s.DemoteIfQuorum(ctx, "alice", identity.DemotionQuorum)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, []string{"bob"}, valid)

	require.NoError(t, s.AddVote(ctx, "alice", "carol"))
	applied, valid, err = s.DemoteIfQuorum(ctx, "alice", identity.DemotionQuorum)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, []string{"bob", "carol"}, valid)

	demoted, err := s.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, identity.RoleFriend, demoted.Role)

	votes, err := s.Votes(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, votes)

	t.Run("unknown target", func(t *testing.T) {
		_, _, err := s.DemoteIfQuorum(ctx, "ghost", identity.DemotionQuorum)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("votes from non admins are ignored", func(t *testing.T) {
		// alice is a Friend now; her vote must not count against bob.
		require.NoError(t, s.AddVote(ctx, "bob", "alice"))
		require.NoError(t, s.AddVote(ctx, "bob", "carol"))
		applied, valid, err := s.DemoteIfQuorum(ctx, "bob", identity.DemotionQuorum)
		require.NoError(t, err)
		assert.False(t, applied)
		assert.Equal(t, []string{"carol"}, valid)
	})
}

func TestInMemoryDeleteDetachesEdges(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory("Hello")
	for _, username := range []string{"alice", "bob"} {
		_, err := s.CreateClaimingFirstAdmin(ctx, newUser(username, identity.RoleAdmin))
		require.NoError(t, err)
	}
	require.NoError(t, s.AddVote(ctx, "alice", "bob"))
	require.NoError(t, s.Promote(ctx, "alice", "bob"))

	deleted, err := s.Delete(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, deleted)

	votes, err := s.Votes(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, votes)

	changes, err := s.RoleChanges(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, changes, "provenance involving the deleted actor is detached")

	deleted, err = s.Delete(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, deleted)
}
