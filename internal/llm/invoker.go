package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/buildkeeb/engine/internal/build"
	"github.com/buildkeeb/engine/internal/observability"
)

// tweakAcknowledgement is the synthetic reply to the replayed build.
const tweakAcknowledgement = "Build shown to the user. Waiting for their feedback."

// defaultOpening stands in for the original request when it is not known.
const defaultOpening = "Recommend a custom mechanical keyboard build."

// Reply is the result of a conversational turn: either a build or text.
type Reply struct {
	Build *build.Bundle `json:"build,omitempty"`
	Text  string        `json:"text,omitempty"`
}

// IsBuild reports whether the service chose to answer with a build.
func (r Reply) IsBuild() bool { return r.Build != nil }

// Invoker enforces the bundle contract on top of a Service: callers receive
// either a validated-shape bundle or the error bundle, never an error.
type Invoker struct {
	svc    Service
	logger *observability.Logger
}

// NewInvoker wraps svc.
func NewInvoker(svc Service, logger *observability.Logger) *Invoker {
	return &Invoker{svc: svc, logger: observability.OrNop(logger)}
}

// Recommend requests a build with the schema forced.
func (i *Invoker) Recommend(ctx context.Context, system, request string) build.Bundle {
	return i.forced(ctx, "recommend", Invocation{
		System:      system,
		Turns:       []Turn{UserTurn(opening(request))},
		Schema:      build.Schema(),
		ForceSchema: true,
	})
}

// Tweak replays previous as the service's own answer, acknowledges it, then
// asks for the change.
func (i *Invoker) Tweak(ctx context.Context, system, originalRequest string, previous build.Bundle, change string) build.Bundle {
	prev := previous
	prev.Error = false
	return i.forced(ctx, "tweak", Invocation{
		System: system,
		Turns: []Turn{
			UserTurn(opening(originalRequest)),
			{Role: RoleAssistant, Build: &prev},
			{Role: RoleTool, Text: tweakAcknowledgement},
			UserTurn(change),
		},
		Schema:      build.Schema(),
		ForceSchema: true,
	})
}

// Converse lets the service choose between a build and a text reply. Failures
// yield the error bundle.
func (i *Invoker) Converse(ctx context.Context, system string, history []Turn) Reply {
	logger := i.logger.WithContext(ctx).WithOperation("converse")

	out, err := i.svc.Invoke(ctx, Invocation{
		System:      system,
		Turns:       history,
		Schema:      build.Schema(),
		ForceSchema: false,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Conversation turn failed, returning error bundle")
		eb := build.ErrorBundle(reasonFor(err))
		return Reply{Build: &eb}
	}

	if out.Build == nil {
		if strings.TrimSpace(out.Text) == "" {
			logger.Error().Msg("Service returned neither a build nor text")
			eb := build.ErrorBundle("the recommendation service sent an empty reply")
			return Reply{Build: &eb}
		}
		return Reply{Text: out.Text}
	}

	b := i.checked(logger, *out.Build)
	return Reply{Build: &b}
}

func (i *Invoker) forced(ctx context.Context, op string, inv Invocation) build.Bundle {
	logger := i.logger.WithContext(ctx).WithOperation(op)

	out, err := i.svc.Invoke(ctx, inv)
	if err != nil {
		logger.Error().Err(err).Msg("Recommendation failed, returning error bundle")
		return build.ErrorBundle(reasonFor(err))
	}
	if out.Build == nil {
		logger.Error().Err(ErrNoStructuredResult).Msg("Forced invocation returned no build")
		return build.ErrorBundle(reasonFor(ErrNoStructuredResult))
	}
	return i.checked(logger, *out.Build)
}

// checked validates shape and stamps the schema version, substituting the
// error bundle for anything malformed.
func (i *Invoker) checked(logger *observability.Logger, b build.Bundle) build.Bundle {
	if err := b.Validate(); err != nil {
		logger.Error().Err(err).Msg("Service returned a malformed build")
		return build.ErrorBundle("the recommendation was incomplete")
	}
	if b.Mods == nil {
		b.Mods = []build.Modification{}
	}
	b.Error = false
	b.SchemaVersion = build.SchemaVersion
	return b
}

func opening(request string) string {
	if strings.TrimSpace(request) == "" {
		return defaultOpening
	}
	return request
}

// reasonFor turns an invocation error into text safe to show a user.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "the recommendation service timed out"
	case errors.Is(err, ErrServiceUnavailable):
		return "the recommendation service is unavailable"
	default:
		return "the recommendation could not be read"
	}
}
