// Package rpc exposes the build pipeline as a Connect service using a JSON
// codec over plain Go message types.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"connectrpc.com/connect"

	"github.com/buildkeeb/engine/internal/catalog"
	"github.com/buildkeeb/engine/internal/criteria"
	"github.com/buildkeeb/engine/internal/observability"
	"github.com/buildkeeb/engine/internal/recommend"
)

// Service path and procedures.
const (
	BuildServiceName         = "buildkeeb.v1.BuildService"
	RecommendProcedure       = "/" + BuildServiceName + "/Recommend"
	TweakProcedure           = "/" + BuildServiceName + "/Tweak"
	ChatProcedure            = "/" + BuildServiceName + "/Chat"
	ExtractCriteriaProcedure = "/" + BuildServiceName + "/ExtractCriteria"
	buildServicePathPrefix   = "/" + BuildServiceName + "/"
)

// ExtractCriteriaRequest is the ExtractCriteria input message.
type ExtractCriteriaRequest struct {
	Text    string            `json:"text"`
	Answers []criteria.Answer `json:"answers,omitempty"`
}

// ExtractCriteriaResponse is the ExtractCriteria output message.
type ExtractCriteriaResponse struct {
	Criteria criteria.Criteria `json:"criteria"`
	Summary  string            `json:"summary"`
}

// BuildService implements the Connect build service.
type BuildService struct {
	logger   *observability.Logger
	pipeline recommend.Pipeline
}

// NewBuildService creates a new build service.
func NewBuildService(logger *observability.Logger, pipeline recommend.Pipeline) *BuildService {
	return &BuildService{logger: observability.OrNop(logger), pipeline: pipeline}
}

// Recommend handles a fresh build request.
func (s *BuildService) Recommend(ctx context.Context, req *connect.Request[recommend.Request]) (*connect.Response[recommend.Response], error) {
	resp, err := s.pipeline.Recommend(ctx, *req.Msg)
	if err != nil {
		return nil, s.toConnectError(ctx, err)
	}
	return connect.NewResponse(resp), nil
}

// Tweak handles a build adjustment.
func (s *BuildService) Tweak(ctx context.Context, req *connect.Request[recommend.TweakRequest]) (*connect.Response[recommend.Response], error) {
	resp, err := s.pipeline.Tweak(ctx, *req.Msg)
	if err != nil {
		return nil, s.toConnectError(ctx, err)
	}
	return connect.NewResponse(resp), nil
}

// Chat handles one conversational turn.
func (s *BuildService) Chat(ctx context.Context, req *connect.Request[recommend.ChatRequest]) (*connect.Response[recommend.ChatResponse], error) {
	resp, err := s.pipeline.Chat(ctx, *req.Msg)
	if err != nil {
		return nil, s.toConnectError(ctx, err)
	}
	return connect.NewResponse(resp), nil
}

// ExtractCriteria runs criteria extraction only.
func (s *BuildService) ExtractCriteria(_ context.Context, req *connect.Request[ExtractCriteriaRequest]) (*connect.Response[ExtractCriteriaResponse], error) {
	c := s.pipeline.ExtractCriteria(req.Msg.Text, req.Msg.Answers)
	return connect.NewResponse(&ExtractCriteriaResponse{Criteria: c, Summary: c.Describe()}), nil
}

func (s *BuildService) toConnectError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, recommend.ErrEmptyRequest):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, catalog.ErrCatalogUnavailable):
		s.logger.WithContext(ctx).Error().Err(err).Msg("Catalog unavailable")
		return connect.NewError(connect.CodeUnavailable, errors.New("catalog unavailable"))
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		s.logger.WithContext(ctx).Error().Err(err).Msg("Build service error")
		return connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}
}

// Handler mounts every procedure and returns the path prefix to route to it.
func (s *BuildService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(RecommendProcedure, connect.NewUnaryHandler(RecommendProcedure, s.Recommend, opts...))
	mux.Handle(TweakProcedure, connect.NewUnaryHandler(TweakProcedure, s.Tweak, opts...))
	mux.Handle(ChatProcedure, connect.NewUnaryHandler(ChatProcedure, s.Chat, opts...))
	mux.Handle(ExtractCriteriaProcedure, connect.NewUnaryHandler(ExtractCriteriaProcedure, s.ExtractCriteria, opts...))
	return buildServicePathPrefix, mux
}

// JSONCodec marshals plain Go structs with encoding/json. It replaces
// Connect's protobuf-only JSON codec.
type JSONCodec struct{}

var _ connect.Codec = JSONCodec{}

// Name implements connect.Codec.
func (JSONCodec) Name() string { return "json" }

// Marshal implements connect.Codec.
func (JSONCodec) Marshal(msg any) ([]byte, error) { return json.Marshal(msg) }

// Unmarshal implements connect.Codec.
func (JSONCodec) Unmarshal(data []byte, msg any) error { return json.Unmarshal(data, msg) }
