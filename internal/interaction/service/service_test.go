package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"kindmesh/internal/identity"
	identitystore "kindmesh/internal/identity/store"
	"kindmesh/internal/interaction/store"
	recipientservice "kindmesh/internal/recipient/service"
	recipientstore "kindmesh/internal/recipient/store"
	dErrors "kindmesh/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite

	ctx        context.Context
	users      *identitystore.InMemory
	recipients *recipientstore.InMemory
	service    *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.users = identitystore.NewInMemory("Hello")
	s.recipients = recipientstore.NewInMemory()
	registry := recipientservice.New(s.recipients)
	s.service = New(store.NewInMemory(), s.users, registry)

	_, err := s.users.CreateClaimingFirstAdmin(s.ctx, identity.User{
		Username: "alice",
		Role:     identity.RoleFriend,
	})
	s.Require().NoError(err)
}

func (s *ServiceSuite) log(recipientKey, resourceType string) {
	_, err := s.service.Log(s.ctx, LogInput{
		LoggedBy:     "alice",
		RecipientKey: recipientKey,
		ResourceType: resourceType,
	})
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestLogCreatesRecipientOnce() {
	for i := 0; i < 3; i++ {
		s.log("R1", "Food")
	}

	count, err := s.recipients.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, count)

	entries, err := s.service.List(s.ctx, 0, "R1")
	s.Require().NoError(err)
	s.Len(entries, 3)
}

func (s *ServiceSuite) TestLogUnknownUserRejected() {
	_, err := s.service.Log(s.ctx, LogInput{
		LoggedBy:     "ghost",
		RecipientKey: "R1",
		ResourceType: "Food",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	count, err := s.recipients.Count(s.ctx)
	s.Require().NoError(err)
	s.Zero(count, "no recipient is merged when the logger is unknown")
}

func (s *ServiceSuite) TestLogRequiresResourceType() {
	_, err := s.service.Log(s.ctx, LogInput{
		LoggedBy:     "alice",
		RecipientKey: "R1",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestLogPassesPseudonymThroughMerge() {
	_, err := s.service.Log(s.ctx, LogInput{
		LoggedBy:           "alice",
		RecipientKey:       "R1",
		ResourceType:       "Food",
		RecipientPseudonym: "Robin",
	})
	s.Require().NoError(err)

	merged, err := s.recipients.Get(s.ctx, "R1")
	s.Require().NoError(err)
	s.Equal("Robin", merged.Pseudonym)
}

func (s *ServiceSuite) TestListOrderingAndLimit() {
	s.log("R1", "Food")
	s.log("R2", "Clothing")
	s.log("R1", "Hygiene")

	entries, err := s.service.List(s.ctx, 0, "")
	s.Require().NoError(err)
	s.Require().Len(entries, 3)
	s.Equal("Hygiene", entries[0].ResourceType, "most recent first")

	limited, err := s.service.List(s.ctx, 2, "")
	s.Require().NoError(err)
	s.Len(limited, 2)

	filtered, err := s.service.List(s.ctx, 0, "R1")
	s.Require().NoError(err)
	s.Len(filtered, 2)
}

func (s *ServiceSuite) TestExportAllOldestFirst() {
	s.log("R1", "Food")
	s.log("R2", "Clothing")

	entries, err := s.service.ExportAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal("Food", entries[0].ResourceType)
	s.Equal("Clothing", entries[1].ResourceType)
}

func (s *ServiceSuite) TestSummary() {
	s.log("R1", "Food")
	s.log("R1", "Clothing")

	summary, err := s.service.Summary(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, summary.TotalInteractions)
	s.Equal(1, summary.TotalRecipients)
	s.Equal(map[string]int{"Food": 1, "Clothing": 1}, summary.ByType)
}
