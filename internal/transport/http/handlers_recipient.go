package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kindmesh/internal/recipient"
	dErrors "kindmesh/pkg/domain-errors"
)

// RecipientService is the slice of the recipient service the HTTP
// layer needs.
type RecipientService interface {
	Register(ctx context.Context, key, pseudonym string) (recipient.Recipient, error)
	Get(ctx context.Context, key string) (recipient.Recipient, error)
	List(ctx context.Context) ([]recipient.Recipient, error)
	Keys(ctx context.Context) ([]string, error)
}

type RecipientHandler struct {
	recipients RecipientService
	logger     *slog.Logger
}

func (h *RecipientHandler) Register(r chi.Router) {
	r.Post("/recipients", h.handleMerge)
	r.Get("/recipients", h.handleList)
	r.Get("/recipients/keys", h.handleKeys)
	r.Get("/recipients/{key}", h.handleGet)
}

type recipientResponse struct {
	Key       string    `json:"key"`
	Pseudonym string    `json:"pseudonym,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toRecipientResponse(entry recipient.Recipient) recipientResponse {
	return recipientResponse{Key: entry.Key, Pseudonym: entry.Pseudonym, CreatedAt: entry.CreatedAt}
}

type mergeRecipientRequest struct {
	Key       string `json:"key"`
	Pseudonym string `json:"pseudonym,omitempty"`
}

func (h *RecipientHandler) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req mergeRecipientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	merged, err := h.recipients.Register(r.Context(), req.Key, req.Pseudonym)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecipientResponse(merged))
}

func (h *RecipientHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	entry, err := h.recipients.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecipientResponse(entry))
}

func (h *RecipientHandler) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.recipients.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]recipientResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toRecipientResponse(entry))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *RecipientHandler) handleKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.recipients.Keys(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"keys": keys})
}
