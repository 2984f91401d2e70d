// Package llm talks to the generative recommendation service and wraps it in
// an invoker that always yields a well-formed build.
package llm

import (
	"context"
	"errors"

	"github.com/buildkeeb/engine/internal/build"
)

// ToolName is the function the service calls to submit a structured build.
const ToolName = "submit_build"

var (
	// ErrNoStructuredResult is returned when a forced invocation yields no build.
	ErrNoStructuredResult = errors.New("service returned no structured build")
	// ErrServiceUnavailable wraps transport failures and non-2xx responses.
	ErrServiceUnavailable = errors.New("recommendation service unavailable")
)

// Role is the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleTool acknowledges the assistant's most recent structured build.
	RoleTool Role = "tool"
)

// Turn is one message of the conversation. An assistant turn carrying Build is
// replayed as the service's own structured answer.
type Turn struct {
	Role  Role          `json:"role"`
	Text  string        `json:"text,omitempty"`
	Build *build.Bundle `json:"build,omitempty"`
}

// UserTurn is shorthand for a user message.
func UserTurn(text string) Turn { return Turn{Role: RoleUser, Text: text} }

// Invocation is one request to the service.
type Invocation struct {
	System string
	Turns  []Turn
	Schema map[string]any
	// ForceSchema requires a structured build; otherwise the service may
	// answer with free text.
	ForceSchema bool
}

// Outcome holds whichever answer the service chose. Exactly one of Build and
// Text is meaningful.
type Outcome struct {
	Build *build.Bundle
	Text  string
}

// Service is the generative recommendation capability.
type Service interface {
	Invoke(ctx context.Context, inv Invocation) (Outcome, error)
}
