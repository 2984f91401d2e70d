// Package recommend runs the build recommendation pipeline: criteria
// extraction, catalog filtering, prompt assembly, the generative call and
// validation against the catalog.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/buildkeeb/engine/internal/build"
	"github.com/buildkeeb/engine/internal/catalog"
	"github.com/buildkeeb/engine/internal/config"
	"github.com/buildkeeb/engine/internal/criteria"
	"github.com/buildkeeb/engine/internal/filter"
	"github.com/buildkeeb/engine/internal/llm"
	"github.com/buildkeeb/engine/internal/observability"
	"github.com/buildkeeb/engine/internal/prompt"
	"github.com/buildkeeb/engine/internal/usage"
	"github.com/buildkeeb/engine/internal/validate"
)

// ErrEmptyRequest is returned when a request carries no text, answers or
// messages.
var ErrEmptyRequest = errors.New("request has no text, answers or messages")

// UsageRecorder receives one event per completed request. Implementations
// must not block.
type UsageRecorder interface {
	Record(userID, action, period string)
}

// Pipeline is the request surface served by the HTTP and RPC layers.
type Pipeline interface {
	Recommend(ctx context.Context, req Request) (*Response, error)
	Tweak(ctx context.Context, req TweakRequest) (*Response, error)
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	ExtractCriteria(text string, answers []criteria.Answer) criteria.Criteria
}

var _ Pipeline = (*Service)(nil)

// Request asks for a fresh build.
type Request struct {
	Text    string            `json:"text"`
	Answers []criteria.Answer `json:"answers,omitempty"`
}

// Message is one chat message from the client.
type Message struct {
	Role    string        `json:"role"` // user or assistant
	Content string        `json:"content,omitempty"`
	Build   *build.Bundle `json:"build,omitempty"`
}

// ChatRequest continues an open-ended conversation.
type ChatRequest struct {
	Messages []Message         `json:"messages"`
	Answers  []criteria.Answer `json:"answers,omitempty"`
}

// TweakRequest adjusts a previously recommended build.
type TweakRequest struct {
	OriginalRequest string            `json:"original_request"`
	Previous        build.Bundle      `json:"previous"`
	Change          string            `json:"change"`
	Answers         []criteria.Answer `json:"answers,omitempty"`
}

// Response is a validated build with diagnostics.
type Response struct {
	Build      build.Bundle      `json:"build"`
	Criteria   criteria.Criteria `json:"criteria"`
	Validation validate.Report   `json:"validation"`
	Filter     []filter.Step     `json:"filter_steps"`
	LatencyMs  int64             `json:"latency_ms"`
}

// ChatResponse holds either a validated build or a text reply.
type ChatResponse struct {
	Reply      string            `json:"reply,omitempty"`
	Build      *build.Bundle     `json:"build,omitempty"`
	Criteria   criteria.Criteria `json:"criteria"`
	Validation *validate.Report  `json:"validation,omitempty"`
	LatencyMs  int64             `json:"latency_ms"`
}

// Service wires the pipeline stages together.
type Service struct {
	logger    *observability.Logger
	catalog   catalog.Reader
	extractor *criteria.Extractor
	filter    *filter.Filter
	invoker   *llm.Invoker
	validator *validate.Validator
	usage     UsageRecorder
	now       func() time.Time
}

// Options configure optional collaborators of a Service.
type Options struct {
	Vocabulary *criteria.Vocabulary
	Usage      UsageRecorder
	Now        func() time.Time
}

// NewService creates the pipeline over a catalog reader and a generative
// service.
func NewService(
	logger *observability.Logger,
	reader catalog.Reader,
	svc llm.Service,
	cfg *config.Config,
	opts Options,
) *Service {
	logger = observability.OrNop(logger)

	vocab := criteria.DefaultVocabulary()
	if opts.Vocabulary != nil {
		vocab = *opts.Vocabulary
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		logger:    logger,
		catalog:   reader,
		extractor: criteria.NewExtractor(vocab),
		filter:    filter.New(cfg.Filter, logger),
		invoker:   llm.NewInvoker(svc, logger),
		validator: validate.New(cfg.Validation, logger),
		usage:     opts.Usage,
		now:       now,
	}
}

// ExtractCriteria exposes the extraction stage on its own.
func (s *Service) ExtractCriteria(text string, answers []criteria.Answer) criteria.Criteria {
	return s.extractor.Extract(text, answers)
}

// Recommend runs the full pipeline for a fresh build. The only error returned
// is total catalog unavailability; a generative failure yields the error
// bundle.
func (s *Service) Recommend(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Text) == "" && len(req.Answers) == 0 {
		return nil, ErrEmptyRequest
	}
	start := s.now()
	logger := s.logger.WithContext(ctx).WithOperation("recommend")

	c := s.extractor.Extract(req.Text, req.Answers)
	res, snap, err := s.prepare(ctx, logger, c)
	if err != nil {
		return nil, err
	}

	system := prompt.SystemPrompt(prompt.ModeRecommend, c, res)
	b := s.invoker.Recommend(ctx, system, requestText(req.Text, c))

	resp := s.finish(ctx, logger, usage.ActionRecommend, b, c, res, snap)
	resp.LatencyMs = s.now().Sub(start).Milliseconds()
	return resp, nil
}

// Tweak replays a previous build and applies the requested change.
func (s *Service) Tweak(ctx context.Context, req TweakRequest) (*Response, error) {
	if strings.TrimSpace(req.Change) == "" {
		return nil, fmt.Errorf("%w: change is required", ErrEmptyRequest)
	}
	start := s.now()
	logger := s.logger.WithContext(ctx).WithOperation("tweak")

	// The change can add constraints ("make it wireless"), so it is scanned
	// together with the original request.
	c := s.extractor.Extract(req.OriginalRequest+"\n"+req.Change, req.Answers)
	res, snap, err := s.prepare(ctx, logger, c)
	if err != nil {
		return nil, err
	}

	system := prompt.SystemPrompt(prompt.ModeTweak, c, res)
	b := s.invoker.Tweak(ctx, system, req.OriginalRequest, req.Previous, req.Change)

	resp := s.finish(ctx, logger, usage.ActionTweak, b, c, res, snap)
	resp.LatencyMs = s.now().Sub(start).Milliseconds()
	return resp, nil
}

// Chat continues a conversation. The service may answer with text or a build;
// builds are validated like any other.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	history, userText := toTurns(req.Messages)
	if len(history) == 0 {
		return nil, ErrEmptyRequest
	}
	start := s.now()
	logger := s.logger.WithContext(ctx).WithOperation("chat")

	c := s.extractor.Extract(userText, req.Answers)
	res, snap, err := s.prepare(ctx, logger, c)
	if err != nil {
		return nil, err
	}

	system := prompt.SystemPrompt(prompt.ModeChat, c, res)
	reply := s.invoker.Converse(ctx, system, history)

	out := &ChatResponse{Criteria: c}
	if reply.IsBuild() {
		resp := s.finish(ctx, logger, usage.ActionChat, *reply.Build, c, res, snap)
		out.Build = &resp.Build
		out.Validation = &resp.Validation
	} else {
		out.Reply = reply.Text
		s.record(ctx, usage.ActionChat)
	}
	out.LatencyMs = s.now().Sub(start).Milliseconds()
	return out, nil
}

// prepare loads the catalog and narrows it for the criteria.
func (s *Service) prepare(ctx context.Context, logger *observability.Logger, c criteria.Criteria) (filter.Result, catalog.Snapshot, error) {
	snap, err := catalog.LoadSnapshot(ctx, s.catalog, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Catalog unavailable")
		return filter.Result{}, catalog.Snapshot{}, fmt.Errorf("load catalog: %w", err)
	}

	res := s.filter.Apply(c, snap)
	logger.Debug().
		Str("criteria", c.Describe()).
		Int("switches", len(res.Switches)).
		Int("boards", len(res.Boards)).
		Int("keycap_sets", len(res.KeycapSets)).
		Int("skipped_predicates", len(res.Skipped())).
		Msg("Catalog narrowed")
	return res, snap, nil
}

// finish validates b against the full snapshot and records usage.
func (s *Service) finish(ctx context.Context, logger *observability.Logger, action string, b build.Bundle, c criteria.Criteria, res filter.Result, snap catalog.Snapshot) *Response {
	validated, report := s.validator.Validate(b, snap)
	if validated.Error {
		logger.Warn().Msg("Returning error bundle")
	} else {
		s.record(ctx, action)
	}

	logger.Info().
		Str("build", validated.Name).
		Int("corrections", report.Corrections()).
		Float64("total", validated.EstimatedTotal).
		Bool("error_bundle", validated.Error).
		Msg("Build ready")

	return &Response{
		Build:      validated,
		Criteria:   c,
		Validation: report,
		Filter:     res.Steps,
	}
}

func (s *Service) record(ctx context.Context, action string) {
	if s.usage == nil {
		return
	}
	userID := observability.UserIDFromContext(ctx)
	if userID == "" {
		return
	}
	s.usage.Record(userID, action, usage.Period(s.now()))
}

// requestText is the opening user turn. Answer-only requests are phrased from
// the extracted criteria.
func requestText(text string, c criteria.Criteria) string {
	if strings.TrimSpace(text) != "" {
		return text
	}
	return "Recommend a custom mechanical keyboard build with these preferences: " + c.Describe() + "."
}

// toTurns converts client messages into invocation turns and returns the
// concatenated user text for criteria extraction. Empty messages are dropped.
func toTurns(msgs []Message) ([]llm.Turn, string) {
	var (
		turns []llm.Turn
		user  []string
	)
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "assistant":
			if m.Build != nil {
				prev := *m.Build
				turns = append(turns,
					llm.Turn{Role: llm.RoleAssistant, Build: &prev},
					llm.Turn{Role: llm.RoleTool, Text: "Build shown to the user."},
				)
				continue
			}
			if strings.TrimSpace(m.Content) != "" {
				turns = append(turns, llm.Turn{Role: llm.RoleAssistant, Text: m.Content})
			}
		default:
			if strings.TrimSpace(m.Content) == "" {
				continue
			}
			turns = append(turns, llm.UserTurn(m.Content))
			user = append(user, m.Content)
		}
	}
	return turns, strings.Join(user, "\n")
}
