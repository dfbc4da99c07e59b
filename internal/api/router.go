// Package api serves the archive directory to the web layer as JSON.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/nationalarchives/wa-frontend/internal/metrics"
	"github.com/nationalarchives/wa-frontend/internal/model"
)

// ArchiveService is the read side consumed by the handlers.
type ArchiveService interface {
	Characters(ctx context.Context) ([]string, error)
	RecordsByCharacter(ctx context.Context, character string) (*model.RecordPage, error)
	Stats(ctx context.Context) (*model.ArchiveStats, error)
}

// Pinger reports storage liveness for the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config controls the HTTP surface.
type Config struct {
	// Debug exposes error details in 500 responses.
	Debug       bool
	CORSOrigins []string
}

// Server holds the handler dependencies.
type Server struct {
	svc    ArchiveService
	pinger Pinger
	cfg    Config
	log    *zap.Logger
}

// NewServer creates a Server. pinger may be nil.
func NewServer(svc ArchiveService, pinger Pinger, cfg Config) *Server {
	return &Server{
		svc:    svc,
		pinger: pinger,
		cfg:    cfg,
		log:    zap.L().With(zap.String("component", "api")),
	}
}

// Router builds the chi router with middleware and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.recoverer)
	r.Use(s.requestLogger)
	r.Use(metrics.Middleware)

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/metrics", metrics.Handler().ServeHTTP)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Route("/archive", func(r chi.Router) {
			r.Get("/characters", s.characters)
			r.Get("/records", s.records)
			r.Get("/stats", s.stats)
		})
	})
	return r
}
