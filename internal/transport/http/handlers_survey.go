package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"kindmesh/internal/platform/middleware"
	"kindmesh/internal/survey"
	dErrors "kindmesh/pkg/domain-errors"
)

// SurveyService is the slice of the survey service the HTTP layer
// needs.
type SurveyService interface {
	CreateSurvey(ctx context.Context, name, description string, sections []survey.Section, createdBy string) (survey.Survey, error)
	UpdateSurvey(ctx context.Context, id uuid.UUID, name, description string, sections []survey.Section, updatedBy string) (survey.Survey, error)
	DeleteSurvey(ctx context.Context, id uuid.UUID, deletedBy string) (bool, error)
	GetSurvey(ctx context.Context, id uuid.UUID) (survey.Survey, error)
	ListSurveys(ctx context.Context) ([]survey.Survey, error)
	SaveResponse(ctx context.Context, response survey.Response) (survey.Response, error)
	GetResponses(ctx context.Context, recipientKey, section string) ([]survey.Response, error)
}

type SurveyHandler struct {
	surveys SurveyService
	logger  *slog.Logger
}

func (h *SurveyHandler) Register(r chi.Router) {
	r.Get("/surveys", h.handleList)
	r.Get("/surveys/{id}", h.handleGet)
	r.Post("/responses", h.handleSaveResponse)
	r.Get("/responses", h.handleGetResponses)

	r.Group(func(admin chi.Router) {
		admin.Use(middleware.RequireAdmin)
		admin.Post("/surveys", h.handleCreate)
		admin.Put("/surveys/{id}", h.handleUpdate)
		admin.Delete("/surveys/{id}", h.handleDelete)
	})
}

type surveyRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Sections    []survey.Section `json:"sections"`
}

type surveyResponseBody struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Sections    []survey.Section `json:"sections"`
	CreatedBy   string           `json:"created_by,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func toSurveyResponse(entry survey.Survey) surveyResponseBody {
	return surveyResponseBody{
		ID:          entry.ID.String(),
		Name:        entry.Name,
		Description: entry.Description,
		Sections:    entry.Sections,
		CreatedBy:   entry.CreatedBy,
		CreatedAt:   entry.CreatedAt,
		UpdatedAt:   entry.UpdatedAt,
	}
}

func (h *SurveyHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req surveyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	entry, err := h.surveys.CreateSurvey(ctx, req.Name, req.Description, req.Sections,
		middleware.GetPrincipal(ctx).Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSurveyResponse(entry))
}

func (h *SurveyHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid survey id"))
		return
	}
	var req surveyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	entry, err := h.surveys.UpdateSurvey(ctx, id, req.Name, req.Description, req.Sections,
		middleware.GetPrincipal(ctx).Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSurveyResponse(entry))
}

func (h *SurveyHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid survey id"))
		return
	}
	deleted, err := h.surveys.DeleteSurvey(ctx, id, middleware.GetPrincipal(ctx).Username)
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		writeError(w, dErrors.New(dErrors.CodeNotFound, "survey not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SurveyHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid survey id"))
		return
	}
	entry, err := h.surveys.GetSurvey(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSurveyResponse(entry))
}

func (h *SurveyHandler) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.surveys.ListSurveys(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]surveyResponseBody, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toSurveyResponse(entry))
	}
	writeJSON(w, http.StatusOK, out)
}

type saveResponseRequest struct {
	RecipientKey string         `json:"recipient_key"`
	Section      string         `json:"section"`
	Answers      map[string]any `json:"answers"`
	SurveyID     string         `json:"survey_id,omitempty"`
}

type responseBody struct {
	RecipientKey string         `json:"recipient_key"`
	Section      string         `json:"section"`
	Answers      map[string]any `json:"answers"`
	SurveyID     string         `json:"survey_id,omitempty"`
	SubmittedBy  string         `json:"submitted_by,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    *time.Time     `json:"updated_at,omitempty"`
}

func toResponseBody(stored survey.Response) responseBody {
	body := responseBody{
		RecipientKey: stored.RecipientKey,
		Section:      stored.Section,
		Answers:      stored.Answers,
		SubmittedBy:  stored.SubmittedBy,
		CreatedAt:    stored.CreatedAt,
	}
	if stored.SurveyID != uuid.Nil {
		body.SurveyID = stored.SurveyID.String()
	}
	if !stored.UpdatedAt.IsZero() {
		updatedAt := stored.UpdatedAt
		body.UpdatedAt = &updatedAt
	}
	return body
}

func (h *SurveyHandler) handleSaveResponse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req saveResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	response := survey.Response{
		RecipientKey: req.RecipientKey,
		Section:      req.Section,
		Answers:      req.Answers,
		SubmittedBy:  middleware.GetPrincipal(ctx).Username,
	}
	if req.SurveyID != "" {
		id, err := uuid.Parse(req.SurveyID)
		if err != nil {
			writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid survey id"))
			return
		}
		response.SurveyID = id
	}

	stored, err := h.surveys.SaveResponse(ctx, response)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponseBody(stored))
}

func (h *SurveyHandler) handleGetResponses(w http.ResponseWriter, r *http.Request) {
	recipientKey := r.URL.Query().Get("recipient_key")
	if recipientKey == "" {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "recipient_key is required"))
		return
	}
	responses, err := h.surveys.GetResponses(r.Context(), recipientKey, r.URL.Query().Get("section"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]responseBody, 0, len(responses))
	for _, stored := range responses {
		out = append(out, toResponseBody(stored))
	}
	writeJSON(w, http.StatusOK, out)
}
