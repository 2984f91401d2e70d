package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildkeeb/engine/internal/build"
	"github.com/buildkeeb/engine/internal/config"
)

const validBuildJSON = `{
	"name": "Thock Monster",
	"summary": "Deep and smooth.",
	"keyboard": {"name": "Tofu65", "price": 129.99, "reason": "Aluminum"},
	"switches": {"name": "Gateron Oil King", "price": 58.5, "reason": "Deep", "quantity": 90, "price_per_switch": 0.65},
	"keycaps": {"name": "GMK Olivia", "price": 140, "reason": "ABS"},
	"stabilizers": {"name": "Durock V2", "price": 22.5, "reason": "Quiet"},
	"mods": [{"name": "Tape mod", "cost": 5, "effect": "Deeper", "difficulty": "beginner"}],
	"estimated_total": 356,
	"sound_profile": "deep thock",
	"difficulty": "Intermediate",
	"notes": "Lube stabs."
}`

func toolCallResponse(args string) string {
	resp := map[string]any{
		"id": "gen-1",
		"choices": []map[string]any{{
			"message": map[string]any{
				"role":    "assistant",
				"content": "",
				"tool_calls": []map[string]any{{
					"id":       "call_1",
					"type":     "function",
					"function": map[string]any{"name": ToolName, "arguments": args},
				}},
			},
			"finish_reason": "tool_calls",
		}},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func textResponse(text string) string {
	data, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": text}}},
	})
	return string(data)
}

type capture struct {
	body    map[string]any
	headers http.Header
}

func newServer(t *testing.T, status int, reply string, got *capture) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		if got != nil {
			got.headers = r.Header.Clone()
			assert.NoError(t, json.Unmarshal(raw, &got.body))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(config.LLMConfig{BaseURL: srv.URL + "/", APIKey: "sk-test", Model: "test/model"}, nil)
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(config.LLMConfig{}, nil)
	assert.Error(t, err)
}

func TestClient_ForcedInvocation(t *testing.T) {
	var got capture
	c := newServer(t, http.StatusOK, toolCallResponse(validBuildJSON), &got)

	out, err := c.Invoke(context.Background(), Invocation{
		System:      "sys",
		Turns:       []Turn{UserTurn("thocky please")},
		ForceSchema: true,
	})
	require.NoError(t, err)
	require.NotNil(t, out.Build)
	assert.Equal(t, "Gateron Oil King", out.Build.Switches.Name)

	assert.Equal(t, "Bearer sk-test", got.headers.Get("Authorization"))
	assert.Equal(t, "test/model", got.body["model"])
	assert.Equal(t, map[string]any{"type": "function", "function": map[string]any{"name": ToolName}}, got.body["tool_choice"])

	msgs := got.body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "thocky please", msgs[1].(map[string]any)["content"])

	tools := got.body["tools"].([]any)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, ToolName, fn["name"])
	assert.NotNil(t, fn["parameters"])
}

func TestClient_ConversationalTextReply(t *testing.T) {
	var got capture
	c := newServer(t, http.StatusOK, textResponse(" What size do you prefer? "), &got)

	out, err := c.Invoke(context.Background(), Invocation{Turns: []Turn{UserTurn("hi")}})
	require.NoError(t, err)
	assert.Nil(t, out.Build)
	assert.Equal(t, "What size do you prefer?", out.Text)
	assert.Equal(t, "auto", got.body["tool_choice"])
}

func TestClient_ForcedWithoutToolCall(t *testing.T) {
	c := newServer(t, http.StatusOK, textResponse("prose"), nil)
	_, err := c.Invoke(context.Background(), Invocation{Turns: []Turn{UserTurn("x")}, ForceSchema: true})
	assert.ErrorIs(t, err, ErrNoStructuredResult)
}

func TestClient_HTTPError(t *testing.T) {
	c := newServer(t, http.StatusTooManyRequests, `{"error":{"message":"rate limited","type":"rate_limit"}}`, nil)
	_, err := c.Invoke(context.Background(), Invocation{Turns: []Turn{UserTurn("x")}, ForceSchema: true})
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.ErrorContains(t, err, "rate limited")
}

func TestClient_MalformedArguments(t *testing.T) {
	c := newServer(t, http.StatusOK, toolCallResponse(`{"name": `), nil)
	_, err := c.Invoke(context.Background(), Invocation{Turns: []Turn{UserTurn("x")}, ForceSchema: true})
	assert.ErrorIs(t, err, ErrNoStructuredResult)
}

func TestToMessages_TweakReplay(t *testing.T) {
	prev := build.Bundle{Name: "Prev"}
	msgs, err := toMessages("sys", []Turn{
		UserTurn("original"),
		{Role: RoleAssistant, Build: &prev},
		{Role: RoleTool, Text: tweakAcknowledgement},
		UserTurn("make it quieter"),
	})
	require.NoError(t, err)
	require.Len(t, msgs, 5)

	assert.Equal(t, "assistant", msgs[2].Role)
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.Equal(t, ToolName, msgs[2].ToolCalls[0].Function.Name)
	assert.Contains(t, msgs[2].ToolCalls[0].Function.Arguments, `"name":"Prev"`)

	assert.Equal(t, "tool", msgs[3].Role)
	assert.Equal(t, msgs[2].ToolCalls[0].ID, msgs[3].ToolCallID)
	assert.Equal(t, "make it quieter", msgs[4].Content)
}

func TestToMessages_Errors(t *testing.T) {
	_, err := toMessages("", []Turn{{Role: RoleTool, Text: "ack"}})
	assert.Error(t, err)

	_, err = toMessages("", []Turn{{Role: "narrator"}})
	assert.Error(t, err)
}

type fakeService struct {
	out  Outcome
	err  error
	seen []Invocation
}

func (f *fakeService) Invoke(_ context.Context, inv Invocation) (Outcome, error) {
	f.seen = append(f.seen, inv)
	return f.out, f.err
}

func decodeBuild(t *testing.T) *build.Bundle {
	t.Helper()
	var b build.Bundle
	require.NoError(t, json.Unmarshal([]byte(validBuildJSON), &b))
	return &b
}

func TestInvoker_Recommend(t *testing.T) {
	svc := &fakeService{out: Outcome{Build: decodeBuild(t)}}
	b := NewInvoker(svc, nil).Recommend(context.Background(), "sys", "thocky")

	assert.False(t, b.Error)
	assert.Equal(t, build.DifficultyIntermediate, b.Difficulty)
	assert.Equal(t, build.SchemaVersion, b.SchemaVersion)

	require.Len(t, svc.seen, 1)
	assert.True(t, svc.seen[0].ForceSchema)
	assert.Equal(t, "sys", svc.seen[0].System)
}

func TestInvoker_RecommendFailuresYieldErrorBundle(t *testing.T) {
	malformed := decodeBuild(t)
	malformed.Keycaps.Name = ""

	tests := []struct {
		name string
		svc  *fakeService
	}{
		{"service error", &fakeService{err: ErrServiceUnavailable}},
		{"no build", &fakeService{out: Outcome{Text: "sorry"}}},
		{"malformed build", &fakeService{out: Outcome{Build: malformed}}},
		{"timeout", &fakeService{err: context.DeadlineExceeded}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := NewInvoker(tc.svc, nil).Recommend(context.Background(), "sys", "x")
			assert.True(t, b.Error)
			assert.Zero(t, b.EstimatedTotal)
			assert.NotEmpty(t, b.Notes)
		})
	}
}

func TestInvoker_Tweak(t *testing.T) {
	svc := &fakeService{out: Outcome{Build: decodeBuild(t)}}
	prev := *decodeBuild(t)

	b := NewInvoker(svc, nil).Tweak(context.Background(), "sys", "", prev, "cheaper keycaps")
	assert.False(t, b.Error)

	turns := svc.seen[0].Turns
	require.Len(t, turns, 4)
	assert.Equal(t, defaultOpening, turns[0].Text)
	assert.Equal(t, RoleAssistant, turns[1].Role)
	require.NotNil(t, turns[1].Build)
	assert.Equal(t, prev.Name, turns[1].Build.Name)
	assert.Equal(t, RoleTool, turns[2].Role)
	assert.Equal(t, "cheaper keycaps", turns[3].Text)
	assert.True(t, svc.seen[0].ForceSchema)
}

func TestInvoker_Converse(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		svc := &fakeService{out: Outcome{Text: "Which layout?"}}
		r := NewInvoker(svc, nil).Converse(context.Background(), "sys", []Turn{UserTurn("hi")})
		assert.False(t, r.IsBuild())
		assert.Equal(t, "Which layout?", r.Text)
		assert.False(t, svc.seen[0].ForceSchema)
	})

	t.Run("build", func(t *testing.T) {
		svc := &fakeService{out: Outcome{Build: decodeBuild(t)}}
		r := NewInvoker(svc, nil).Converse(context.Background(), "sys", []Turn{UserTurn("build it")})
		require.True(t, r.IsBuild())
		assert.False(t, r.Build.Error)
	})

	t.Run("failure", func(t *testing.T) {
		svc := &fakeService{err: errors.New("boom")}
		r := NewInvoker(svc, nil).Converse(context.Background(), "sys", []Turn{UserTurn("x")})
		require.True(t, r.IsBuild())
		assert.True(t, r.Build.Error)
	})
}
