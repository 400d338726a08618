// Package api serves the survey views, on-demand aggregations and pipeline
// controls over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/gabriellymonarca/Ecotrack/internal/aggregate"
	"github.com/gabriellymonarca/Ecotrack/internal/docstore"
	"github.com/gabriellymonarca/Ecotrack/internal/pipeline"
	"github.com/gabriellymonarca/Ecotrack/internal/relational"
	"github.com/gabriellymonarca/Ecotrack/internal/search"
	"github.com/gabriellymonarca/Ecotrack/internal/validation"
)

// DocumentReader reads stored views.
type DocumentReader interface {
	Get(ctx context.Context, collection, key string) (docstore.Document, error)
	List(ctx context.Context, collection string) ([]docstore.Document, error)
	Collections(ctx context.Context) ([]docstore.CollectionInfo, error)
	Ping(ctx context.Context) error
}

// LabelReader lists classification labels from the relational store.
type LabelReader interface {
	Labels(ctx context.Context, lookup string) ([]string, error)
	Ping(ctx context.Context) error
}

// LabelSearcher runs full-text label queries.
type LabelSearcher interface {
	Search(ctx context.Context, params search.Params) (*search.Result, error)
	DocumentCount() (uint64, error)
}

// OnDemand computes and stores the parameterized views.
type OnDemand interface {
	CommerceVolumeYearly(ctx context.Context) (docstore.Document, error)
	CommerceRevenueExpenseYearly(ctx context.Context) (docstore.Document, error)
	CommerceDivisionForYear(ctx context.Context, year string) (docstore.Document, error)
	CommerceRankingForYear(ctx context.Context, year string) (docstore.Document, error)
	CommerceRevenueExpenseForYear(ctx context.Context, year string) (docstore.Document, error)
	IndustryProductionForYear(ctx context.Context, year, activity string) (docstore.Document, error)
	IndustryRevenueForActivity(ctx context.Context, activity string) (docstore.Document, error)
	ServiceMonthlyForYear(ctx context.Context, metric aggregate.ServiceMetric, year, segment string) (docstore.Document, error)
	ServiceTopN(ctx context.Context, metric aggregate.ServiceMetric, year string, topN int) (docstore.Document, error)
}

// PipelineRunner triggers runs and exposes their results.
type PipelineRunner interface {
	Run(ctx context.Context, trigger string) (*pipeline.Report, error)
	Latest(ctx context.Context) (*pipeline.Report, error)
	Collections() aggregate.Collections
	Tables() relational.Tables
}

// Deps are the components the handlers call. Search and Events may be nil.
type Deps struct {
	Documents DocumentReader
	Labels    LabelReader
	Search    LabelSearcher
	OnDemand  OnDemand
	Pipeline  PipelineRunner
	// Events streams pipeline run events as Server-Sent Events.
	Events http.Handler
}

// Options tunes the HTTP surface.
type Options struct {
	Version     string
	CORSOrigins []string
	// WritesPerMinute limits POST requests per client IP.
	WritesPerMinute int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	deps         Deps
	router       *chi.Mux
	api          huma.API
	validator    *validation.Validator
	writeLimiter *RateLimiter
	logger       *slog.Logger
}

// NewServer creates the HTTP server with all routes configured.
func NewServer(deps Deps, opts Options, logger *slog.Logger) *Server {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.WritesPerMinute <= 0 {
		opts.WritesPerMinute = 30
	}

	s := &Server{
		deps:         deps,
		router:       chi.NewRouter(),
		validator:    validation.New(),
		writeLimiter: NewRateLimiter(opts.WritesPerMinute, time.Minute, max(opts.WritesPerMinute/3, 1)),
		logger:       logger,
	}

	s.setupMiddleware(opts)

	humaConfig := huma.DefaultConfig("Ecotrack API", opts.Version)
	humaConfig.Info.Description = "Monthly IBGE survey aggregates for commerce, industry and services."
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerViewRoutes()
	s.registerDocumentRoutes()
	s.registerClassificationRoutes()
	s.registerOnDemandRoutes()
	s.registerPipelineRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.writeLimiter.Stop()
}

func (s *Server) setupMiddleware(opts Options) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
}
