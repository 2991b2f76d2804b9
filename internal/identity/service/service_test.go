package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"kindmesh/internal/identity"
	"kindmesh/internal/identity/store"
	dErrors "kindmesh/pkg/domain-errors"
)

// fakeHasher keeps the suite fast; bcrypt behavior is covered in the
// credential package tests.
type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) { return "hash:" + password, nil }
func (fakeHasher) Verify(password, hash string) bool    { return "hash:"+password == hash }

type ServiceSuite struct {
	suite.Suite

	ctx     context.Context
	store   *store.InMemory
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory("Hello")
	s.service = New(s.store, fakeHasher{})
}

func (s *ServiceSuite) createUser(username string, role identity.Role, createdBy string) identity.User {
	user, err := s.service.CreateUser(s.ctx, identity.NewUser{
		Username:  username,
		Password:  "Str0ng!pass",
		Role:      role,
		CreatedBy: createdBy,
	})
	s.Require().NoError(err)
	return user
}

func (s *ServiceSuite) TestSeedUserDoesNotClaimFirstAdmin() {
	seed := s.createUser("Hello", identity.RoleFriend, "")
	s.Equal(identity.RoleFriend, seed.Role)

	first := s.createUser("alice", identity.RoleFriend, "")
	s.Equal(identity.RoleAdmin, first.Role)
}

func (s *ServiceSuite) TestFirstFriendBecomesAdminOnceOnly() {
	first := s.createUser("alice", identity.RoleFriend, "")
	s.Equal(identity.RoleAdmin, first.Role)

	second := s.createUser("bob", identity.RoleFriend, "alice")
	s.Equal(identity.RoleFriend, second.Role)
}

func (s *ServiceSuite) TestFirstGreeterStaysGreeter() {
	first := s.createUser("greta", identity.RoleGreeter, "")
	s.Equal(identity.RoleGreeter, first.Role)

	// The election is still open for the next Friend request.
	next := s.createUser("alice", identity.RoleFriend, "")
	s.Equal(identity.RoleAdmin, next.Role)
}

func (s *ServiceSuite) TestCreateUserRejectsDuplicateUsername() {
	s.createUser("alice", identity.RoleFriend, "")

	_, err := s.service.CreateUser(s.ctx, identity.NewUser{
		Username: "alice",
		Password: "Str0ng!pass",
		Role:     identity.RoleFriend,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestCreateUserEnforcesPasswordPolicy() {
	_, err := s.service.CreateUser(s.ctx, identity.NewUser{
		Username: "alice",
		Password: "short",
		Role:     identity.RoleFriend,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestCreateUserCreatorRules() {
	s.createUser("alice", identity.RoleFriend, "") // admin
	s.createUser("greta", identity.RoleGreeter, "alice")
	s.createUser("bob", identity.RoleFriend, "alice")

	s.Run("friend cannot create users", func() {
		_, err := s.service.CreateUser(s.ctx, identity.NewUser{
			Username:  "carol",
			Password:  "Str0ng!pass",
			Role:      identity.RoleFriend,
			CreatedBy: "bob",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("greeter creates friends only", func() {
		created, err := s.service.CreateUser(s.ctx, identity.NewUser{
			Username:  "carol",
			Password:  "Str0ng!pass",
			Role:      identity.RoleFriend,
			CreatedBy: "greta",
		})
		s.Require().NoError(err)
		s.Equal(identity.RoleFriend, created.Role)

		_, err = s.service.CreateUser(s.ctx, identity.NewUser{
			Username:  "dave",
			Password:  "Str0ng!pass",
			Role:      identity.RoleAdmin,
			CreatedBy: "greta",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("admin creates any role", func() {
		created, err := s.service.CreateUser(s.ctx, identity.NewUser{
			Username:  "dave",
			Password:  "Str0ng!pass",
			Role:      identity.RoleAdmin,
			CreatedBy: "alice",
		})
		s.Require().NoError(err)
		s.Equal(identity.RoleAdmin, created.Role)
	})

	s.Run("unknown creator rejected", func() {
		_, err := s.service.CreateUser(s.ctx, identity.NewUser{
			Username:  "erin",
			Password:  "Str0ng!pass",
			Role:      identity.RoleFriend,
			CreatedBy: "ghost",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestAuthenticateRoundTrip() {
	s.createUser("alice", identity.RoleFriend, "")

	user, ok, err := s.service.Authenticate(s.ctx, "alice", "Str0ng!pass")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("alice", user.Username)
	s.Empty(user.PasswordHash)
}

func (s *ServiceSuite) TestAuthenticateFailuresAreUniform() {
	s.createUser("alice", identity.RoleFriend, "")

	_, okWrong, err := s.service.Authenticate(s.ctx, "alice", "wrong-password")
	s.Require().NoError(err)
	_, okUnknown, err := s.service.Authenticate(s.ctx, "nobody", "Str0ng!pass")
	s.Require().NoError(err)

	s.False(okWrong)
	s.False(okUnknown)
}

func (s *ServiceSuite) TestPromote() {
	s.createUser("alice", identity.RoleFriend, "") // admin
	s.createUser("bob", identity.RoleFriend, "alice")

	s.Run("admin promotes friend", func() {
		s.Require().NoError(s.service.Promote(s.ctx, "bob", "alice"))
		promoted, err := s.store.FindByUsername(s.ctx, "bob")
		s.Require().NoError(err)
		s.Equal(identity.RoleAdmin, promoted.Role)
	})

	s.Run("provenance recorded", func() {
		changes, err := s.service.RoleChanges(s.ctx, "bob")
		s.Require().NoError(err)
		s.Require().Len(changes, 1)
		s.Equal(identity.ActionPromoted, changes[0].Action)
		s.Equal("alice", changes[0].Actor)
	})

	s.Run("self promotion rejected", func() {
		err := s.service.Promote(s.ctx, "alice", "alice")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("non admin cannot promote", func() {
		s.createUser("carol", identity.RoleFriend, "alice")
		err := s.service.Promote(s.ctx, "bob", "carol")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("missing target", func() {
		err := s.service.Promote(s.ctx, "ghost", "alice")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) threeAdmins() {
	s.createUser("alice", identity.RoleFriend, "") // first admin
	s.createUser("bob", identity.RoleAdmin, "alice")
	s.createUser("carol", identity.RoleAdmin, "alice")
}

func (s *ServiceSuite) TestSingleVoteDoesNotDemote() {
	s.threeAdmins()

	applied, err := s.service.CastVote(s.ctx, "alice", "bob")
	s.Require().NoError(err)
	s.False(applied)

	target, err := s.store.FindByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(identity.RoleAdmin, target.Role)
}

func (s *ServiceSuite) TestSecondVoteAppliesDemotion() {
	s.threeAdmins()

	_, err := s.service.CastVote(s.ctx, "alice", "bob")
	s.Require().NoError(err)
	applied, err := s.service.CastVote(s.ctx, "alice", "carol")
	s.Require().NoError(err)
	s.True(applied)

	target, err := s.store.FindByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(identity.RoleFriend, target.Role)

	s.Run("vote set cleared", func() {
		votes, err := s.service.Votes(s.ctx, "alice")
		s.Require().NoError(err)
		s.Empty(votes)
	})

	s.Run("provenance names both voters", func() {
		changes, err := s.service.RoleChanges(s.ctx, "alice")
		s.Require().NoError(err)
		s.Require().Len(changes, 2)
		actors := []string{changes[0].Actor, changes[1].Actor}
		s.ElementsMatch([]string{"bob", "carol"}, actors)
		s.Equal(identity.ActionDemoted, changes[0].Action)
	})
}

func (s *ServiceSuite) TestDuplicateVoteIsIdempotent() {
	s.threeAdmins()

	applied, err := s.service.CastVote(s.ctx, "alice", "bob")
	s.Require().NoError(err)
	s.False(applied)

	applied, err = s.service.CastVote(s.ctx, "alice", "bob")
	s.Require().NoError(err)
	s.False(applied, "one admin voting twice is one vote")
}

func (s *ServiceSuite) TestSelfVoteRejected() {
	s.threeAdmins()

	_, err := s.service.CastVote(s.ctx, "alice", "alice")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestNonAdminTargetRejected() {
	s.threeAdmins()
	s.createUser("dave", identity.RoleFriend, "alice")

	_, err := s.service.CastVote(s.ctx, "dave", "bob")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestStaleVotesDoNotCount() {
	s.threeAdmins()
	s.createUser("dave", identity.RoleAdmin, "alice")

	// bob votes against alice, then loses Admin himself.
	_, err := s.service.CastVote(s.ctx, "alice", "bob")
	s.Require().NoError(err)
	_, err = s.service.CastVote(s.ctx, "bob", "carol")
	s.Require().NoError(err)
	applied, err := s.service.CastVote(s.ctx, "bob", "dave")
	s.Require().NoError(err)
	s.Require().True(applied)

	// bob's stale vote must not combine with carol's fresh one.
	applied, err = s.service.CastVote(s.ctx, "alice", "carol")
	s.Require().NoError(err)
	s.False(applied)

	target, err := s.store.FindByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(identity.RoleAdmin, target.Role)
}

func (s *ServiceSuite) TestRetractVote() {
	s.threeAdmins()

	_, err := s.service.CastVote(s.ctx, "alice", "bob")
	s.Require().NoError(err)
	s.Require().NoError(s.service.RetractVote(s.ctx, "alice", "bob"))

	votes, err := s.service.Votes(s.ctx, "alice")
	s.Require().NoError(err)
	s.Empty(votes)

	// Retracting again is harmless.
	s.NoError(s.service.RetractVote(s.ctx, "alice", "bob"))
}

func (s *ServiceSuite) TestDemoteWithExplicitVoters() {
	s.threeAdmins()

	applied, err := s.service.Demote(s.ctx, "alice", []string{"bob", "carol"})
	s.Require().NoError(err)
	s.True(applied)

	target, err := s.store.FindByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(identity.RoleFriend, target.Role)
}

func (s *ServiceSuite) TestDemoteBelowQuorumFails() {
	s.threeAdmins()

	_, err := s.service.Demote(s.ctx, "alice", []string{"bob"})
	s.True(dErrors.HasCode(err, dErrors.CodeQuorumNotMet))

	target, findErr := s.store.FindByUsername(s.ctx, "alice")
	s.Require().NoError(findErr)
	s.Equal(identity.RoleAdmin, target.Role)

	s.Run("failed call records no votes", func() {
		votes, err := s.service.Votes(s.ctx, "alice")
		s.Require().NoError(err)
		s.Empty(votes)
	})

	s.Run("single voters cannot combine across calls", func() {
		_, err := s.service.Demote(s.ctx, "alice", []string{"carol"})
		s.True(dErrors.HasCode(err, dErrors.CodeQuorumNotMet))

		target, findErr := s.store.FindByUsername(s.ctx, "alice")
		s.Require().NoError(findErr)
		s.Equal(identity.RoleAdmin, target.Role)
	})

	s.Run("duplicates do not pad the voter list", func() {
		_, err := s.service.Demote(s.ctx, "alice", []string{"bob", "bob"})
		s.True(dErrors.HasCode(err, dErrors.CodeQuorumNotMet))
	})
}

func (s *ServiceSuite) TestDeleteUserDetachesVotes() {
	s.threeAdmins()

	_, err := s.service.CastVote(s.ctx, "alice", "bob")
	s.Require().NoError(err)

	deleted, err := s.service.DeleteUser(s.ctx, "bob")
	s.Require().NoError(err)
	s.True(deleted)

	votes, err := s.service.Votes(s.ctx, "alice")
	s.Require().NoError(err)
	s.Empty(votes)

	s.Run("deleting twice reports absence", func() {
		deleted, err := s.service.DeleteUser(s.ctx, "bob")
		s.Require().NoError(err)
		s.False(deleted)
	})
}

func (s *ServiceSuite) TestListUsersOmitsHashes() {
	s.threeAdmins()

	users, err := s.service.ListUsers(s.ctx)
	s.Require().NoError(err)
	s.Len(users, 3)
	for _, user := range users {
		s.Empty(user.PasswordHash)
	}
}
