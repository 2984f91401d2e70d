package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/buildkeeb/engine/internal/observability"
	"github.com/buildkeeb/engine/internal/research"
	"github.com/buildkeeb/engine/internal/usage"
)

// Researcher is the cached research capability. It never fails.
type Researcher interface {
	Search(ctx context.Context, query string) []research.Result
	DeepResearch(ctx context.Context, query string) research.Answer
}

// UsageRecorder receives research usage events.
type UsageRecorder interface {
	Record(userID, action, period string)
}

// ResearchHandler serves the research endpoints.
type ResearchHandler struct {
	logger     *observability.Logger
	researcher Researcher
	usage      UsageRecorder
}

// NewResearchHandler creates a research handler. researcher may be nil when no
// research service is configured; usage may be nil.
func NewResearchHandler(logger *observability.Logger, researcher Researcher, usage UsageRecorder) *ResearchHandler {
	return &ResearchHandler{logger: observability.OrNop(logger), researcher: researcher, usage: usage}
}

// ResearchRequestDTO is the body of both research endpoints.
type ResearchRequestDTO struct {
	Query string `json:"query"`
}

// SearchResponseDTO is the response of POST /research/search.
type SearchResponseDTO struct {
	Query   string            `json:"query"`
	Results []research.Result `json:"results"`
}

// Search handles POST /research/search.
func (h *ResearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query, ok := h.query(w, r)
	if !ok {
		return
	}
	results := h.researcher.Search(r.Context(), query)
	writeJSON(w, http.StatusOK, SearchResponseDTO{Query: query, Results: results})
}

// Deep handles POST /research/deep.
func (h *ResearchHandler) Deep(w http.ResponseWriter, r *http.Request) {
	query, ok := h.query(w, r)
	if !ok {
		return
	}
	ans := h.researcher.DeepResearch(r.Context(), query)
	if ans.Complete {
		h.record(r.Context())
	}
	writeJSON(w, http.StatusOK, ans)
}

func (h *ResearchHandler) query(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.researcher == nil {
		writeError(w, http.StatusServiceUnavailable, "research is not configured", "")
		return "", false
	}
	var req ResearchRequestDTO
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return "", false
	}
	q := strings.TrimSpace(req.Query)
	if q == "" {
		writeError(w, http.StatusBadRequest, "query is required", "")
		return "", false
	}
	return q, true
}

func (h *ResearchHandler) record(ctx context.Context) {
	if h.usage == nil {
		return
	}
	if uid := observability.UserIDFromContext(ctx); uid != "" {
		h.usage.Record(uid, usage.ActionResearch, usage.Period(time.Now()))
	}
}
