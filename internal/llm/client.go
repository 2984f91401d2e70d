package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/buildkeeb/engine/internal/build"
	"github.com/buildkeeb/engine/internal/config"
	"github.com/buildkeeb/engine/internal/observability"
)

// Client calls an OpenAI-compatible chat completions endpoint (OpenRouter by
// default) using function tools for structured output.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	logger      *observability.Logger
}

var _ Service = (*Client)(nil)

// NewClient creates a client from configuration.
func NewClient(cfg config.LLMConfig, logger *observability.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "anthropic/claude-sonnet-4.5"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      observability.OrNop(logger),
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []chatTool    `json:"tools,omitempty"`
	ToolChoice  any           `json:"tool_choice,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type toolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// Invoke sends one chat completion request. There is no retry: a failed call
// is reported immediately.
func (c *Client) Invoke(ctx context.Context, inv Invocation) (Outcome, error) {
	reqBody, err := c.buildRequest(inv)
	if err != nil {
		return Outcome{}, err
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return Outcome{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return Outcome{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", "https://buildkeeb.com")
	req.Header.Set("X-Title", "Buildkeeb")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: read response: %v", ErrServiceUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp chatResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
			return Outcome{}, fmt.Errorf("%w: %s (type: %s)", ErrServiceUnavailable, errResp.Error.Message, errResp.Error.Type)
		}
		return Outcome{}, fmt.Errorf("%w: status %d, body: %s", ErrServiceUnavailable, resp.StatusCode, truncate(string(body), 512))
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return Outcome{}, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return Outcome{}, fmt.Errorf("%w: no choices in response", ErrNoStructuredResult)
	}

	c.logger.Debug().
		Str("model", c.model).
		Bool("forced", inv.ForceSchema).
		Int("prompt_tokens", chat.Usage.PromptTokens).
		Int("completion_tokens", chat.Usage.CompletionTokens).
		Dur("latency", time.Since(start)).
		Msg("Recommendation service responded")

	msg := chat.Choices[0].Message
	for _, tc := range msg.ToolCalls {
		if !strings.EqualFold(tc.Function.Name, ToolName) {
			continue
		}
		var b build.Bundle
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &b); err != nil {
			return Outcome{}, fmt.Errorf("%w: decode %s arguments: %v", ErrNoStructuredResult, ToolName, err)
		}
		return Outcome{Build: &b}, nil
	}

	if inv.ForceSchema {
		return Outcome{}, ErrNoStructuredResult
	}
	return Outcome{Text: strings.TrimSpace(msg.Content)}, nil
}

func (c *Client) buildRequest(inv Invocation) (*chatRequest, error) {
	messages, err := toMessages(inv.System, inv.Turns)
	if err != nil {
		return nil, err
	}

	schema := inv.Schema
	if schema == nil {
		schema = build.Schema()
	}

	req := &chatRequest{
		Model:    c.model,
		Messages: messages,
		Tools: []chatTool{{
			Type: "function",
			Function: toolFunction{
				Name:        ToolName,
				Description: "Submit the complete keyboard build recommendation.",
				Parameters:  schema,
			},
		}},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	if inv.ForceSchema {
		req.ToolChoice = map[string]any{
			"type":     "function",
			"function": map[string]string{"name": ToolName},
		}
	} else {
		req.ToolChoice = "auto"
	}
	return req, nil
}

// toMessages converts turns to chat messages. An assistant build becomes a
// tool call; the next tool turn answers that call.
func toMessages(system string, turns []Turn) ([]chatMessage, error) {
	messages := make([]chatMessage, 0, len(turns)+1)
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}

	lastCallID := ""
	calls := 0
	for _, t := range turns {
		switch t.Role {
		case RoleUser:
			messages = append(messages, chatMessage{Role: "user", Content: t.Text})
		case RoleAssistant:
			if t.Build == nil {
				messages = append(messages, chatMessage{Role: "assistant", Content: t.Text})
				continue
			}
			args, err := json.Marshal(t.Build)
			if err != nil {
				return nil, fmt.Errorf("marshal previous build: %w", err)
			}
			calls++
			lastCallID = fmt.Sprintf("call_prev_%d", calls)
			messages = append(messages, chatMessage{
				Role:    "assistant",
				Content: t.Text,
				ToolCalls: []toolCall{{
					ID:       lastCallID,
					Type:     "function",
					Function: functionCall{Name: ToolName, Arguments: string(args)},
				}},
			})
		case RoleTool:
			if lastCallID == "" {
				return nil, fmt.Errorf("tool turn without a preceding build")
			}
			messages = append(messages, chatMessage{Role: "tool", Content: t.Text, ToolCallID: lastCallID})
			lastCallID = ""
		default:
			return nil, fmt.Errorf("unknown turn role %q", t.Role)
		}
	}
	return messages, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
