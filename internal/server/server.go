// Package server provides the HTTP server and routing for the tail-risk service.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/aristath/tailrisk/internal/database"
	tailriskhandlers "github.com/aristath/tailrisk/internal/modules/tailrisk/handlers"
	"github.com/aristath/tailrisk/internal/scheduler"
)

// requestTimeout bounds every request, including the longest comparison batch.
const requestTimeout = 150 * time.Second

// JobRunner runs a job outside its schedule.
type JobRunner interface {
	RunNow(job scheduler.Job) error
}

// Config holds server configuration
type Config struct {
	Log      zerolog.Logger
	CacheDB  *database.DB
	Port     int
	DevMode  bool
	TailRisk *tailriskhandlers.Handler
	Runner   JobRunner
	Jobs     []scheduler.Job
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	port           int
	cacheDB        *database.DB
	tailRisk       *tailriskhandlers.Handler
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		port:           cfg.Port,
		cacheDB:        cfg.CacheDB,
		tailRisk:       cfg.TailRisk,
		systemHandlers: NewSystemHandlers(cfg.Log, cfg.CacheDB, cfg.Runner, cfg.Jobs),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Router exposes the configured router (used by tests)
func (s *Server) Router() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(requestTimeout))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Get("/jobs", s.systemHandlers.HandleListJobs)
			r.Post("/jobs/{name}", s.systemHandlers.HandleTriggerJob)
		})

		if s.tailRisk != nil {
			s.tailRisk.RegisterRoutes(r)
		}
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
