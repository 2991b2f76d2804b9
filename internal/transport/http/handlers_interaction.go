package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"kindmesh/internal/interaction"
	interactionservice "kindmesh/internal/interaction/service"
	"kindmesh/internal/platform/middleware"
	dErrors "kindmesh/pkg/domain-errors"
)

// InteractionService is the slice of the ledger service the HTTP layer
// needs.
type InteractionService interface {
	Log(ctx context.Context, input interactionservice.LogInput) (interaction.Interaction, error)
	List(ctx context.Context, limit int, recipientKey string) ([]interaction.Interaction, error)
	ExportAll(ctx context.Context) ([]interaction.Interaction, error)
	Summary(ctx context.Context) (interaction.Summary, error)
}

type InteractionHandler struct {
	ledger InteractionService
	logger *slog.Logger
}

func (h *InteractionHandler) Register(r chi.Router) {
	r.Post("/interactions", h.handleLog)
	r.Get("/interactions", h.handleList)
	r.Get("/interactions/summary", h.handleSummary)

	r.Group(func(admin chi.Router) {
		admin.Use(middleware.RequireAdmin)
		admin.Get("/interactions/export", h.handleExport)
	})
}

type logInteractionRequest struct {
	RecipientKey       string `json:"recipient_key"`
	ResourceType       string `json:"resource_type"`
	Notes              string `json:"notes,omitempty"`
	RecipientPseudonym string `json:"recipient_pseudonym,omitempty"`
}

type interactionResponse struct {
	ID           string    `json:"id"`
	LoggedBy     string    `json:"logged_by"`
	RecipientKey string    `json:"recipient_key"`
	ResourceType string    `json:"resource_type"`
	Notes        string    `json:"notes,omitempty"`
	LoggedAt     time.Time `json:"logged_at"`
}

func toInteractionResponse(entry interaction.Interaction) interactionResponse {
	return interactionResponse{
		ID:           entry.ID.String(),
		LoggedBy:     entry.LoggedBy,
		RecipientKey: entry.RecipientKey,
		ResourceType: entry.ResourceType,
		Notes:        entry.Notes,
		LoggedAt:     entry.LoggedAt,
	}
}

func (h *InteractionHandler) handleLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req logInteractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	entry, err := h.ledger.Log(ctx, interactionservice.LogInput{
		LoggedBy:           middleware.GetPrincipal(ctx).Username,
		RecipientKey:       req.RecipientKey,
		ResourceType:       req.ResourceType,
		Notes:              req.Notes,
		RecipientPseudonym: req.RecipientPseudonym,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInteractionResponse(entry))
}

func (h *InteractionHandler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	entries, err := h.ledger.List(r.Context(), limit, r.URL.Query().Get("recipient_key"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]interactionResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toInteractionResponse(entry))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *InteractionHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ledger.ExportAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]interactionResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toInteractionResponse(entry))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *InteractionHandler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.ledger.Summary(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if summary.ByType == nil {
		summary.ByType = map[string]int{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_interactions": summary.TotalInteractions,
		"total_recipients":   summary.TotalRecipients,
		"interaction_types":  summary.ByType,
	})
}
