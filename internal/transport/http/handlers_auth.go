package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"kindmesh/internal/identity"
	"kindmesh/internal/platform/middleware"
	dErrors "kindmesh/pkg/domain-errors"
)

// IdentityService is the slice of the identity service the HTTP layer
// needs.
type IdentityService interface {
	Authenticate(ctx context.Context, username, password string) (identity.User, bool, error)
	CreateUser(ctx context.Context, input identity.NewUser) (identity.User, error)
	ListUsers(ctx context.Context) ([]identity.User, error)
	DeleteUser(ctx context.Context, username string) (bool, error)
	Promote(ctx context.Context, target, by string) error
	CastVote(ctx context.Context, target, voter string) (bool, error)
	RetractVote(ctx context.Context, target, voter string) error
	Votes(ctx context.Context, target string) ([]string, error)
	RoleChanges(ctx context.Context, target string) ([]identity.RoleChange, error)
}

// TokenIssuer mints bearer tokens after a successful login.
type TokenIssuer interface {
	Issue(subject, role string) (string, error)
}

type AuthHandler struct {
	identity IdentityService
	tokens   TokenIssuer
	logger   *slog.Logger
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	user, ok, err := h.identity.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		h.logger.ErrorContext(ctx, "authentication unavailable",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		writeError(w, err)
		return
	}
	if !ok {
		// Absent username and wrong password are indistinguishable.
		writeError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials"))
		return
	}

	token, err := h.tokens.Issue(user.Username, string(user.Role))
	if err != nil {
		h.logger.ErrorContext(ctx, "token issue failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		writeError(w, dErrors.New(dErrors.CodeInternal, "failed to issue token"))
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:    token,
		Username: user.Username,
		Role:     string(user.Role),
	})
}
