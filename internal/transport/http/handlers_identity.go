package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kindmesh/internal/identity"
	"kindmesh/internal/platform/middleware"
	dErrors "kindmesh/pkg/domain-errors"
)

type IdentityHandler struct {
	identity IdentityService
	logger   *slog.Logger
}

func (h *IdentityHandler) Register(r chi.Router) {
	r.Get("/users", h.handleList)
	r.Post("/users", h.handleCreate)

	r.Group(func(admin chi.Router) {
		admin.Use(middleware.RequireAdmin)
		admin.Delete("/users/{username}", h.handleDelete)
		admin.Post("/users/{username}/promote", h.handlePromote)
		admin.Get("/users/{username}/role-changes", h.handleRoleChanges)
		admin.Get("/users/{username}/demotion-votes", h.handleListVotes)
		admin.Post("/users/{username}/demotion-votes", h.handleCastVote)
		admin.Delete("/users/{username}/demotion-votes", h.handleRetractVote)
	})
}

type userResponse struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by,omitempty"`
}

func toUserResponse(user identity.User) userResponse {
	return userResponse{
		Username:  user.Username,
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt,
		CreatedBy: user.CreatedBy,
	}
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

func (h *IdentityHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	created, err := h.identity.CreateUser(ctx, identity.NewUser{
		Username:  req.Username,
		Password:  req.Password,
		Role:      identity.Role(req.Role),
		CreatedBy: middleware.GetPrincipal(ctx).Username,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(created))
}

func (h *IdentityHandler) handleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.identity.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, user := range users {
		out = append(out, toUserResponse(user))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *IdentityHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.identity.DeleteUser(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		writeError(w, dErrors.New(dErrors.CodeNotFound, "user not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *IdentityHandler) handlePromote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := h.identity.Promote(ctx, chi.URLParam(r, "username"), middleware.GetPrincipal(ctx).Username)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *IdentityHandler) handleRoleChanges(w http.ResponseWriter, r *http.Request) {
	changes, err := h.identity.RoleChanges(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, err)
		return
	}
	type changeResponse struct {
		Action    string    `json:"action"`
		Actor     string    `json:"actor"`
		ChangedAt time.Time `json:"changed_at"`
	}
	out := make([]changeResponse, 0, len(changes))
	for _, change := range changes {
		out = append(out, changeResponse{
			Action:    string(change.Action),
			Actor:     change.Actor,
			ChangedAt: change.ChangedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *IdentityHandler) handleCastVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applied, err := h.identity.CastVote(ctx, chi.URLParam(r, "username"), middleware.GetPrincipal(ctx).Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"demoted": applied})
}

func (h *IdentityHandler) handleRetractVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.identity.RetractVote(ctx, chi.URLParam(r, "username"), middleware.GetPrincipal(ctx).Username); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *IdentityHandler) handleListVotes(w http.ResponseWriter, r *http.Request) {
	voters, err := h.identity.Votes(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, err)
		return
	}
	if voters == nil {
		voters = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"voters": voters})
}
