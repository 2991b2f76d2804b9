package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kindmesh/internal/credential"
	"kindmesh/internal/identity"
	identityservice "kindmesh/internal/identity/service"
	identitystore "kindmesh/internal/identity/store"
	interactionservice "kindmesh/internal/interaction/service"
	interactionstore "kindmesh/internal/interaction/store"
	recipientservice "kindmesh/internal/recipient/service"
	recipientstore "kindmesh/internal/recipient/store"
	surveyservice "kindmesh/internal/survey/service"
	surveystore "kindmesh/internal/survey/store"
	"kindmesh/pkg/platform/token"
)

const testPassword = "Str0ng!pass"

type RouterSuite struct {
	suite.Suite

	ctx      context.Context
	identity *identityservice.Service
	server   *httptest.Server
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	users := identitystore.NewInMemory("Hello")
	recipients := recipientservice.New(recipientstore.NewInMemory())
	s.identity = identityservice.New(users, credential.NewHasher())
	ledger := interactionservice.New(interactionstore.NewInMemory(), users, recipients)
	surveys := surveyservice.New(surveystore.NewInMemoryCatalog(), surveystore.NewInMemoryResponses(), recipients)

	manager := token.NewManager("router-test-key", time.Hour)
	router := NewRouter(Deps{
		Identity:    s.identity,
		Recipients:  recipients,
		Interaction: ledger,
		Surveys:     surveys,
		Tokens:      manager,
		Validator:   NewTokenValidator(manager),
		Logger:      logger,
		HealthCheck: func() bool { return true },
	})
	s.server = httptest.NewServer(router)
	s.T().Cleanup(s.server.Close)

	// First non-seed account; elected Admin.
	_, err := s.identity.CreateUser(s.ctx, identity.NewUser{
		Username: "alice",
		Password: testPassword,
		Role:     identity.RoleFriend,
	})
	s.Require().NoError(err)
}

func (s *RouterSuite) request(method, path, tokenString string, body any) *http.Response {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	s.Require().NoError(err)
	if tokenString != "" {
		req.Header.Set("Authorization", "Bearer "+tokenString)
	}
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *RouterSuite) decode(resp *http.Response, target any) {
	defer resp.Body.Close()
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(target))
}

func (s *RouterSuite) login(username, password string) string {
	resp := s.request(http.MethodPost, "/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var body struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	s.decode(resp, &body)
	s.Require().NotEmpty(body.Token)
	return body.Token
}

func (s *RouterSuite) TestHealthz() {
	resp := s.request(http.MethodGet, "/healthz", "", nil)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *RouterSuite) TestLoginRejectsBadCredentials() {
	resp := s.request(http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice",
		"password": "wrong-password",
	})
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	unknown := s.request(http.MethodPost, "/auth/login", "", map[string]string{
		"username": "nobody",
		"password": testPassword,
	})
	defer unknown.Body.Close()
	s.Equal(http.StatusUnauthorized, unknown.StatusCode,
		"unknown user and wrong password are indistinguishable")
}

func (s *RouterSuite) TestProtectedRoutesRequireToken() {
	resp := s.request(http.MethodGet, "/users", "", nil)
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *RouterSuite) TestUserLifecycle() {
	adminToken := s.login("alice", testPassword)

	resp := s.request(http.MethodPost, "/users", adminToken, map[string]string{
		"username": "bob",
		"password": testPassword,
		"role":     "Friend",
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	var created struct {
		Username  string `json:"username"`
		Role      string `json:"role"`
		CreatedBy string `json:"created_by"`
	}
	s.decode(resp, &created)
	s.Equal("bob", created.Username)
	s.Equal("Friend", created.Role)
	s.Equal("alice", created.CreatedBy)

	s.Run("duplicate conflicts", func() {
		resp := s.request(http.MethodPost, "/users", adminToken, map[string]string{
			"username": "bob",
			"password": testPassword,
		})
		defer resp.Body.Close()
		s.Equal(http.StatusConflict, resp.StatusCode)
	})

	s.Run("weak password rejected", func() {
		resp := s.request(http.MethodPost, "/users", adminToken, map[string]string{
			"username": "carol",
			"password": "weak",
		})
		defer resp.Body.Close()
		s.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	})

	s.Run("friend cannot reach admin routes", func() {
		friendToken := s.login("bob", testPassword)
		resp := s.request(http.MethodDelete, "/users/alice", friendToken, nil)
		defer resp.Body.Close()
		s.Equal(http.StatusForbidden, resp.StatusCode)
	})

	s.Run("promote and demote", func() {
		resp := s.request(http.MethodPost, "/users/bob/promote", adminToken, nil)
		defer resp.Body.Close()
		s.Require().Equal(http.StatusNoContent, resp.StatusCode)

		// One admin vote is not quorum.
		vote := s.request(http.MethodPost, "/users/bob/demotion-votes", adminToken, nil)
		var outcome struct {
			Demoted bool `json:"demoted"`
		}
		s.Require().Equal(http.StatusOK, vote.StatusCode)
		s.decode(vote, &outcome)
		s.False(outcome.Demoted)

		bobToken := s.login("bob", testPassword)
		second := s.request(http.MethodPost, "/users/alice/demotion-votes", bobToken, nil)
		s.Require().Equal(http.StatusOK, second.StatusCode)
		s.decode(second, &outcome)
		s.False(outcome.Demoted, "single vote against alice")
	})

	s.Run("delete user", func() {
		resp := s.request(http.MethodDelete, "/users/bob", adminToken, nil)
		defer resp.Body.Close()
		s.Equal(http.StatusNoContent, resp.StatusCode)

		again := s.request(http.MethodDelete, "/users/bob", adminToken, nil)
		defer again.Body.Close()
		s.Equal(http.StatusNotFound, again.StatusCode)
	})
}

func (s *RouterSuite) TestInteractionFlow() {
	adminToken := s.login("alice", testPassword)

	for _, resourceType := range []string{"Food", "Clothing"} {
		resp := s.request(http.MethodPost, "/interactions", adminToken, map[string]string{
			"recipient_key": "R1",
			"resource_type": resourceType,
		})
		s.Require().Equal(http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp := s.request(http.MethodGet, "/interactions/summary", adminToken, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var summary struct {
		TotalInteractions int            `json:"total_interactions"`
		TotalRecipients   int            `json:"total_recipients"`
		InteractionTypes  map[string]int `json:"interaction_types"`
	}
	s.decode(resp, &summary)
	s.Equal(2, summary.TotalInteractions)
	s.Equal(1, summary.TotalRecipients)
	s.Equal(map[string]int{"Food": 1, "Clothing": 1}, summary.InteractionTypes)

	s.Run("list newest first", func() {
		resp := s.request(http.MethodGet, "/interactions?recipient_key=R1", adminToken, nil)
		s.Require().Equal(http.StatusOK, resp.StatusCode)
		var entries []struct {
			ResourceType string `json:"resource_type"`
		}
		s.decode(resp, &entries)
		s.Require().Len(entries, 2)
		s.Equal("Clothing", entries[0].ResourceType)
	})

	s.Run("export oldest first", func() {
		resp := s.request(http.MethodGet, "/interactions/export", adminToken, nil)
		s.Require().Equal(http.StatusOK, resp.StatusCode)
		var entries []struct {
			ResourceType string `json:"resource_type"`
		}
		s.decode(resp, &entries)
		s.Require().Len(entries, 2)
		s.Equal("Food", entries[0].ResourceType)
	})
}

func (s *RouterSuite) TestSurveyFlow() {
	adminToken := s.login("alice", testPassword)

	create := s.request(http.MethodPost, "/surveys", adminToken, map[string]any{
		"name": "intake",
		"sections": []map[string]any{
			{
				"name": "financial",
				"questions": []map[string]any{
					{"id": "income", "prompt": "Monthly income", "kind": "number"},
				},
			},
		},
	})
	s.Require().Equal(http.StatusCreated, create.StatusCode)
	var created struct {
		ID string `json:"id"`
	}
	s.decode(create, &created)

	save := s.request(http.MethodPost, "/responses", adminToken, map[string]any{
		"recipient_key": "R1",
		"section":       "financial",
		"answers":       map[string]any{"income": 1200},
		"survey_id":     created.ID,
	})
	s.Require().Equal(http.StatusOK, save.StatusCode)
	save.Body.Close()

	resave := s.request(http.MethodPost, "/responses", adminToken, map[string]any{
		"recipient_key": "R1",
		"section":       "financial",
		"answers":       map[string]any{"income": 900},
	})
	s.Require().Equal(http.StatusOK, resave.StatusCode)
	var updated struct {
		UpdatedAt *time.Time `json:"updated_at"`
	}
	s.decode(resave, &updated)
	s.NotNil(updated.UpdatedAt)

	list := s.request(http.MethodGet, "/responses?recipient_key=R1", adminToken, nil)
	s.Require().Equal(http.StatusOK, list.StatusCode)
	var responses []struct {
		Section string         `json:"section"`
		Answers map[string]any `json:"answers"`
	}
	s.decode(list, &responses)
	s.Require().Len(responses, 1)
	s.Equal(float64(900), responses[0].Answers["income"])

	s.Run("invalid survey rejected", func() {
		resp := s.request(http.MethodPost, "/surveys", adminToken, map[string]any{
			"name": "bad",
			"sections": []map[string]any{
				{
					"name": "a",
					"questions": []map[string]any{
						{"id": "q1", "kind": "single-choice"},
					},
				},
			},
		})
		defer resp.Body.Close()
		s.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	})

	s.Run("delete keeps responses", func() {
		resp := s.request(http.MethodDelete, "/surveys/"+created.ID, adminToken, nil)
		defer resp.Body.Close()
		s.Require().Equal(http.StatusNoContent, resp.StatusCode)

		list := s.request(http.MethodGet, "/responses?recipient_key=R1", adminToken, nil)
		s.Require().Equal(http.StatusOK, list.StatusCode)
		var responses []json.RawMessage
		s.decode(list, &responses)
		s.Len(responses, 1)
	})
}
