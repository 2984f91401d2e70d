package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/buildkeeb/engine/internal/catalog"
	"github.com/buildkeeb/engine/internal/criteria"
	"github.com/buildkeeb/engine/internal/observability"
	"github.com/buildkeeb/engine/internal/recommend"
)

// BuildHandler serves the recommendation endpoints.
type BuildHandler struct {
	logger   *observability.Logger
	pipeline recommend.Pipeline
}

// NewBuildHandler creates a new build handler.
func NewBuildHandler(logger *observability.Logger, pipeline recommend.Pipeline) *BuildHandler {
	return &BuildHandler{logger: observability.OrNop(logger), pipeline: pipeline}
}

// CriteriaRequestDTO is the body of POST /criteria/extract.
type CriteriaRequestDTO struct {
	Text    string            `json:"text"`
	Answers []criteria.Answer `json:"answers,omitempty"`
}

// CriteriaResponseDTO is the response of POST /criteria/extract.
type CriteriaResponseDTO struct {
	Criteria criteria.Criteria `json:"criteria"`
	Summary  string            `json:"summary"`
}

// Recommend handles POST /builds/recommend.
func (h *BuildHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req recommend.Request
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	resp, err := h.pipeline.Recommend(r.Context(), req)
	if err != nil {
		h.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Tweak handles POST /builds/tweak.
func (h *BuildHandler) Tweak(w http.ResponseWriter, r *http.Request) {
	var req recommend.TweakRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	resp, err := h.pipeline.Tweak(r.Context(), req)
	if err != nil {
		h.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Chat handles POST /builds/chat.
func (h *BuildHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req recommend.ChatRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	resp, err := h.pipeline.Chat(r.Context(), req)
	if err != nil {
		h.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ExtractCriteria handles POST /criteria/extract.
func (h *BuildHandler) ExtractCriteria(w http.ResponseWriter, r *http.Request) {
	var req CriteriaRequestDTO
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	c := h.pipeline.ExtractCriteria(req.Text, req.Answers)
	writeJSON(w, http.StatusOK, CriteriaResponseDTO{Criteria: c, Summary: c.Describe()})
}

func (h *BuildHandler) fail(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, recommend.ErrEmptyRequest):
		writeError(w, http.StatusBadRequest, "request is empty", err.Error())
	case errors.Is(err, catalog.ErrCatalogUnavailable):
		h.logger.WithContext(ctx).Error().Err(err).Msg("Catalog unavailable")
		writeError(w, http.StatusServiceUnavailable, "catalog unavailable", "")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request timed out", "")
	default:
		h.logger.WithContext(ctx).Error().Err(err).Msg("Build request failed")
		writeError(w, http.StatusInternalServerError, "internal error", "")
	}
}
