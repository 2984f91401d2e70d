package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/buildkeeb/engine/internal/config"
	"github.com/buildkeeb/engine/internal/observability"
)

// Client calls a Tavily-compatible search API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxResults int
	logger     *observability.Logger
	now        func() time.Time
}

var _ Provider = (*Client)(nil)

// NewClient creates a research client from configuration.
func NewClient(cfg config.ResearchConfig, logger *observability.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.tavily.com"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		maxResults: cfg.MaxResults,
		logger:     observability.OrNop(logger),
		now:        time.Now,
	}, nil
}

type searchRequest struct {
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type searchResponse struct {
	Answer  string   `json:"answer"`
	Results []Result `json:"results"`
	Detail  *struct {
		Error string `json:"error"`
	} `json:"detail,omitempty"`
}

// Search runs a basic web search.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	resp, err := c.do(ctx, searchRequest{
		Query:       query,
		SearchDepth: "basic",
		MaxResults:  c.maxResults,
	})
	if err != nil {
		return nil, err
	}
	if resp.Results == nil {
		return []Result{}, nil
	}
	return resp.Results, nil
}

// DeepResearch runs an advanced search and returns the synthesized answer.
func (c *Client) DeepResearch(ctx context.Context, query string) (Answer, error) {
	resp, err := c.do(ctx, searchRequest{
		Query:         query,
		SearchDepth:   "advanced",
		MaxResults:    c.maxResults,
		IncludeAnswer: true,
	})
	if err != nil {
		return Answer{}, err
	}

	ans := Answer{
		Query:      query,
		Summary:    strings.TrimSpace(resp.Answer),
		Sources:    resp.Results,
		Complete:   true,
		ResearchAt: c.now().UTC(),
	}
	if ans.Sources == nil {
		ans.Sources = []Result{}
	}
	if ans.Summary == "" {
		ans.Summary = neutralSummary
		ans.Complete = false
	}
	return ans, nil
}

func (c *Client) do(ctx context.Context, body searchRequest) (*searchResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrProviderUnavailable, httpResp.StatusCode, truncate(string(respBody), 200))
	}

	var out searchResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if out.Detail != nil && out.Detail.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, out.Detail.Error)
	}

	c.logger.Debug().
		Str("depth", body.SearchDepth).
		Int("results", len(out.Results)).
		Dur("duration", time.Since(start)).
		Msg("Research request completed")

	return &out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
