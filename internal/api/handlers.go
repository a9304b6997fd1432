package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/unibox-design/reelforge/internal/models"
	"github.com/unibox-design/reelforge/internal/render"
	"github.com/unibox-design/reelforge/internal/services"
)

// StoryboardGenerator drafts a storyboard from a topic prompt.
type StoryboardGenerator interface {
	GenerateStoryboard(ctx context.Context, req models.GenerateRequest) (*models.Storyboard, error)
}

type Handler struct {
	controller *render.Controller
	generator  StoryboardGenerator
	media      render.MediaSearcher
	validate   *validator.Validate
}

func NewHandler(controller *render.Controller, generator StoryboardGenerator, media render.MediaSearcher) *Handler {
	return &Handler{
		controller: controller,
		generator:  generator,
		media:      media,
		validate:   validator.New(),
	}
}

// SubmitRender handles POST /v1/render
func (h *Handler) SubmitRender(w http.ResponseWriter, r *http.Request) {
	var req models.RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.controller.Submit(r.Context(), req.Storyboard, req.ProjectID)
	if err != nil {
		respondRenderError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, models.RenderResponse{
		JobID:  job.ID,
		Status: job.State,
	})
}

// GetRenderStatus handles GET /v1/render/{jobId}
func (h *Handler) GetRenderStatus(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseJobID(w, r)
	if !ok {
		return
	}

	job, err := h.controller.GetStatus(r.Context(), jobID)
	if err != nil {
		respondRenderError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, statusResponse(job))
}

// CancelRender handles POST /v1/render/{jobId}/cancel
func (h *Handler) CancelRender(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseJobID(w, r)
	if !ok {
		return
	}

	job, err := h.controller.RequestCancel(r.Context(), jobID)
	if err != nil {
		respondRenderError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, statusResponse(job))
}

// PauseRender handles POST /v1/render/{jobId}/pause
func (h *Handler) PauseRender(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseJobID(w, r)
	if !ok {
		return
	}

	job, err := h.controller.RequestPause(r.Context(), jobID)
	if err != nil {
		respondRenderError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, statusResponse(job))
}

// GenerateStoryboard handles POST /v1/storyboard/generate
func (h *Handler) GenerateStoryboard(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Format != "" && !req.Format.Valid() {
		respondError(w, http.StatusBadRequest, "Unknown format: "+string(req.Format))
		return
	}

	board, err := h.generator.GenerateStoryboard(r.Context(), req)
	if err != nil {
		respondError(w, http.StatusBadGateway, "Storyboard generation failed: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, models.GenerateResponse{Storyboard: *board})
}

// SearchMedia handles GET /v1/media/search?query=...&format=...
func (h *Handler) SearchMedia(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		respondError(w, http.StatusBadRequest, "query parameter is required")
		return
	}
	format := models.AspectFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = models.FormatLandscape
	}
	if !format.Valid() {
		respondError(w, http.StatusBadRequest, "Unknown format: "+string(format))
		return
	}

	results, err := h.media.SearchVideos(r.Context(), query, format)
	if err != nil {
		respondError(w, http.StatusBadGateway, "Media search failed: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, models.MediaSearchResponse{Query: query, Results: results})
}

// ListVoices handles GET /v1/voices
func (h *Handler) ListVoices(w http.ResponseWriter, r *http.Request) {
	profiles := services.ListVoices()
	out := make([]models.VoiceProfileResponse, len(profiles))
	for i, p := range profiles {
		out[i] = models.VoiceProfileResponse{
			Key:       p.Key,
			VoiceName: p.VoiceName,
			Language:  p.Language,
		}
	}
	respondJSON(w, http.StatusOK, out)
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helpers

func parseJobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	jobID, err := uuid.Parse(chi.URLParam(r, "jobId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job ID")
		return uuid.Nil, false
	}
	return jobID, true
}

func statusResponse(job models.RenderJob) models.JobStatusResponse {
	return models.JobStatusResponse{
		JobID:    job.ID,
		Status:   job.State,
		Progress: job.Progress,
		VideoURL: job.VideoURL,
		Error:    job.Error,
	}
}

// respondRenderError maps the render error taxonomy onto HTTP statuses.
func respondRenderError(w http.ResponseWriter, err error) {
	var (
		verr     *render.ValidationError
		nferr    *render.NotFoundError
		conflict *render.ConflictError
	)
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, verr.Error())
	case errors.As(err, &nferr):
		respondError(w, http.StatusNotFound, nferr.Error())
	case errors.As(err, &conflict):
		respondError(w, http.StatusConflict, conflict.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
