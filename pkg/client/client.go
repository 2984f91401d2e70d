// Package client provides the public Go SDK for the build API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is used when Config.BaseURL is empty.
const DefaultBaseURL = "http://localhost:8090"

// userHeader carries the caller's user ID for usage accounting.
const userHeader = "X-User-ID"

// Client is the public SDK client for the build API. It is safe for concurrent
// use.
type Client struct {
	baseURL string
	userID  string
	http    *http.Client
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	// UserID is sent with every request so the service can attribute usage.
	UserID     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewClient creates a new build API client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Minute
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		userID:  cfg.UserID,
		http:    hc,
	}
}

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("build api: %d %s", e.StatusCode, e.Message)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// IsUnavailable reports whether err is a 503 from the service, returned while
// the catalog or the research service cannot be reached.
func IsUnavailable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable
}

// Recommend requests a fresh build. A response whose Build.Error is set is not
// an error: it carries the service's explanation in Build.Notes.
func (c *Client) Recommend(ctx context.Context, req RecommendRequest) (*BuildResponse, error) {
	var resp BuildResponse
	if err := c.post(ctx, "/api/v1/builds/recommend", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Tweak adjusts a previously returned build.
func (c *Client) Tweak(ctx context.Context, req TweakRequest) (*BuildResponse, error) {
	var resp BuildResponse
	if err := c.post(ctx, "/api/v1/builds/tweak", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Chat continues a conversation.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var resp ChatResponse
	if err := c.post(ctx, "/api/v1/builds/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExtractCriteria returns the criteria the service derives from a request
// without generating a build.
func (c *Client) ExtractCriteria(ctx context.Context, text string, answers []Answer) (*CriteriaResponse, error) {
	var resp CriteriaResponse
	body := RecommendRequest{Text: text, Answers: answers}
	if err := c.post(ctx, "/api/v1/criteria/extract", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Search runs a cached web search.
func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	var resp struct {
		Results []SearchResult `json:"results"`
	}
	if err := c.post(ctx, "/api/v1/research/search", map[string]string{"query": query}, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// DeepResearch requests a synthesized research answer.
func (c *Client) DeepResearch(ctx context.Context, query string) (*ResearchAnswer, error) {
	var resp ResearchAnswer
	if err := c.post(ctx, "/api/v1/research/deep", map[string]string{"query": query}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health checks service liveness.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set(userHeader, c.userID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
