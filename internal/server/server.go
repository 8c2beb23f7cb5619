// Package server implements the HTTP layer of the NASA media proxy.
package server

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/Sternrassler/nasa-media-proxy/pkg/metrics"
	"github.com/Sternrassler/nasa-media-proxy/pkg/pagination"
	"github.com/Sternrassler/nasa-media-proxy/pkg/ratelimit"
	"github.com/Sternrassler/nasa-media-proxy/pkg/reconcile"
)

// Searcher returns a caller window of a paginated upstream endpoint.
type Searcher interface {
	Reconcile(ctx context.Context, endpoint string, base url.Values, window pagination.CallerWindow) (*reconcile.Result, error)
}

// CachedFetcher returns the raw payload of a non-paginated upstream endpoint.
type CachedFetcher interface {
	Cached(ctx context.Context, endpoint string, params url.Values) ([]byte, error)
}

// QuotaGate decides whether the upstream quota allows another request.
type QuotaGate interface {
	ShouldAllowRequest(ctx context.Context) (bool, error)
	RetryAfter(ctx context.Context) time.Duration
}

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Images  Searcher            // images-api media search
	API     CachedFetcher       // api.nasa.gov single fetches
	Limiter *ratelimit.Registry // nil = no per-client limit
	Quota   QuotaGate           // nil = no upstream quota gate
	Logger  zerolog.Logger
}

type server struct {
	deps Deps
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()

	// Global middleware
	r.Use(hlog.NewHandler(deps.Logger))
	r.Use(requestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.AccessHandler(accessLog))
	r.Use(recovery)
	r.Use(securityHeaders)
	r.Use(cors)
	r.Use(chimw.Compress(5))
	r.Use(instrument)

	r.Get("/api/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.gate)
		r.Get("/media/search", s.handleMediaSearch)
		r.Get("/apod", s.handleAPOD)
		r.Get("/mars/photos", s.handleMarsPhotos)
		r.Get("/neo/feed", s.handleNeoFeed)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, messageBody("Not found"))
	})

	return r
}
