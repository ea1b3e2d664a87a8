// Package server provides the HTTP API: quarter analyses, promising-stock
// rankings, single-stock views, non-quarterly activity, fund performance
// and system health.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/fundscope/fundscope/internal/database"
)

// Config holds server wiring.
type Config struct {
	Log       zerolog.Logger
	Port      int
	DevMode   bool
	Tracker   TrackerAPI
	Quarters  QuarterLister
	Evaluator PerformanceAPI
	Databases map[string]*database.DB
	DataDir   string
}

// Server is the HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
}

func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
	}

	s.setupMiddleware(cfg.DevMode)

	handlers := NewHandlers(cfg.Tracker, cfg.Quarters, cfg.Evaluator, cfg.Log)
	system := NewSystemHandlers(cfg.Databases, cfg.DataDir, cfg.Log)
	s.setupRoutes(handlers, system)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.router,
	}
	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes(h *Handlers, system *SystemHandlers) {
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/funds", h.HandleFunds)
		r.Get("/quarters", h.HandleQuarters)
		r.Get("/quarters/{quarter}/analysis", h.HandleQuarterAnalysis)
		r.Get("/quarters/{quarter}/promising", h.HandlePromisingStocks)
		r.Get("/quarters/{quarter}/stocks/{ticker}", h.HandleStockAnalysis)
		r.Get("/activity", h.HandleActivity)
		r.Get("/performance", h.HandlePerformance)
		r.Get("/system/health", system.HandleHealth)
	})
}

// Router exposes the mux, for tests and embedding.
func (s *Server) Router() http.Handler { return s.router }

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Request handled")
	})
}
