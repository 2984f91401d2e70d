package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/buildkeeb/engine/cmd/buildkeeb-api/handlers"
	"github.com/buildkeeb/engine/cmd/buildkeeb-api/middleware"
	"github.com/buildkeeb/engine/internal/api/rpc"
	"github.com/buildkeeb/engine/internal/observability"
	"github.com/buildkeeb/engine/internal/recommend"
)

// Deps holds everything the router serves.
type Deps struct {
	Logger         *observability.Logger
	Pipeline       recommend.Pipeline
	Researcher     handlers.Researcher // nil disables the research routes
	Usage          handlers.UsageRecorder
	Ready          func(ctx context.Context) error
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// NewRouter creates the API router with all routes configured.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(d.AllowedOrigins))
	r.Use(middleware.Identity)
	if d.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(d.RequestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy","service":"buildkeeb"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				observability.OrNop(d.Logger).Warn().Err(err).Msg("Readiness check failed")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"not_ready"}`))
				return
			}
		}
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	buildHandler := handlers.NewBuildHandler(d.Logger, d.Pipeline)
	researchHandler := handlers.NewResearchHandler(d.Logger, d.Researcher, d.Usage)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/builds", func(r chi.Router) {
			r.Post("/recommend", buildHandler.Recommend)
			r.Post("/chat", buildHandler.Chat)
			r.Post("/tweak", buildHandler.Tweak)
		})

		r.Post("/criteria/extract", buildHandler.ExtractCriteria)

		r.Route("/research", func(r chi.Router) {
			r.Post("/search", researchHandler.Search)
			r.Post("/deep", researchHandler.Deep)
		})
	})

	path, rpcHandler := rpc.NewBuildService(d.Logger, d.Pipeline).Handler()
	r.Mount(path, rpcHandler)

	return r
}
