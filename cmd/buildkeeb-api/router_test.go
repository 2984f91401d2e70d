package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildkeeb/engine/internal/build"
	"github.com/buildkeeb/engine/internal/catalog"
	"github.com/buildkeeb/engine/internal/criteria"
	"github.com/buildkeeb/engine/internal/recommend"
	"github.com/buildkeeb/engine/internal/research"
)

type fakePipeline struct {
	err error
}

func (f *fakePipeline) Recommend(_ context.Context, req recommend.Request) (*recommend.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &recommend.Response{Build: build.Bundle{Name: "Thock 65", EstimatedTotal: 351}}, nil
}

func (f *fakePipeline) Tweak(context.Context, recommend.TweakRequest) (*recommend.Response, error) {
	return &recommend.Response{Build: build.Bundle{Name: "Tweaked"}}, f.err
}

func (f *fakePipeline) Chat(context.Context, recommend.ChatRequest) (*recommend.ChatResponse, error) {
	return &recommend.ChatResponse{Reply: "What size?"}, f.err
}

func (f *fakePipeline) ExtractCriteria(text string, answers []criteria.Answer) criteria.Criteria {
	return criteria.NewExtractor(criteria.DefaultVocabulary()).Extract(text, answers)
}

type fakeResearcher struct{}

func (fakeResearcher) Search(_ context.Context, q string) []research.Result {
	return []research.Result{{Title: "about " + q}}
}

func (fakeResearcher) DeepResearch(_ context.Context, q string) research.Answer {
	return research.Answer{Query: q, Summary: "done", Complete: true}
}

type fakeUsage struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeUsage) Record(userID, action, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, userID+"/"+action)
}

func post(t *testing.T, h http.Handler, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	h := NewRouter(Deps{Pipeline: &fakePipeline{}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestRouter_Ready(t *testing.T) {
	h := NewRouter(Deps{Pipeline: &fakePipeline{}, Ready: func(context.Context) error { return errors.New("db down") }})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_Recommend(t *testing.T) {
	h := NewRouter(Deps{Pipeline: &fakePipeline{}})

	rec := post(t, h, "/api/v1/builds/recommend", recommend.Request{Text: "thocky"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp recommend.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Thock 65", resp.Build.Name)
	assert.Equal(t, 351.0, resp.Build.EstimatedTotal)
}

func TestRouter_RecommendErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{recommend.ErrEmptyRequest, http.StatusBadRequest},
		{fmt.Errorf("load catalog: %w", catalog.ErrCatalogUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			h := NewRouter(Deps{Pipeline: &fakePipeline{err: tc.err}})
			rec := post(t, h, "/api/v1/builds/recommend", recommend.Request{Text: "x"})
			assert.Equal(t, tc.status, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestRouter_BadBody(t *testing.T) {
	h := NewRouter(Deps{Pipeline: &fakePipeline{}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/builds/chat", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_ChatAndTweak(t *testing.T) {
	h := NewRouter(Deps{Pipeline: &fakePipeline{}})

	rec := post(t, h, "/api/v1/builds/chat", recommend.ChatRequest{Messages: []recommend.Message{{Role: "user", Content: "hi"}}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "What size?")

	rec = post(t, h, "/api/v1/builds/tweak", recommend.TweakRequest{Change: "cheaper"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Tweaked")
}

func TestRouter_ExtractCriteria(t *testing.T) {
	h := NewRouter(Deps{Pipeline: &fakePipeline{}})

	rec := post(t, h, "/api/v1/criteria/extract", map[string]any{
		"text":    "thocky keyboard under $250",
		"answers": []map[string]any{{"question_id": "size", "value": "tkl"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Criteria criteria.Criteria `json:"criteria"`
		Summary  string            `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Criteria.Budget)
	assert.Equal(t, 250, *resp.Criteria.Budget)
	assert.Equal(t, "TKL", resp.Criteria.Size)
	assert.Contains(t, resp.Summary, "sound: thocky")
}

func TestRouter_Research(t *testing.T) {
	usage := &fakeUsage{}
	h := NewRouter(Deps{Pipeline: &fakePipeline{}, Researcher: fakeResearcher{}, Usage: usage})

	rec := post(t, h, "/api/v1/research/search", map[string]string{"query": "oil king"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "about oil king")

	rec = post(t, h, "/api/v1/research/deep", map[string]string{"query": "why thock"}, "X-User-ID", "u7")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"complete":true`)
	assert.Equal(t, []string{"u7/research"}, usage.events)

	rec = post(t, h, "/api/v1/research/search", map[string]string{"query": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_ResearchDisabled(t *testing.T) {
	h := NewRouter(Deps{Pipeline: &fakePipeline{}})
	rec := post(t, h, "/api/v1/research/search", map[string]string{"query": "x"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_ConnectMounted(t *testing.T) {
	h := NewRouter(Deps{Pipeline: &fakePipeline{}})
	rec := post(t, h, "/buildkeeb.v1.BuildService/Recommend", recommend.Request{Text: "thocky"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Thock 65")
}
