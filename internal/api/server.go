// Package api serves the monitor's operations over a local HTTP control API.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/ankityadav/craftwatch/internal/metrics"
	"github.com/ankityadav/craftwatch/internal/monitor"
)

type Server struct {
	router     *chi.Mux
	monitor    *monitor.Monitor
	metrics    *metrics.Metrics
	addr       string
	origins    []string
	log        zerolog.Logger
	httpServer *http.Server
}

// NewServer builds the router. A nil metrics disables /metrics.
func NewServer(mon *monitor.Monitor, m *metrics.Metrics, addr string, origins []string, log zerolog.Logger) *Server {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s := &Server{
		router:  chi.NewRouter(),
		monitor: mon,
		metrics: m,
		addr:    addr,
		origins: origins,
		log:     log.With().Str("component", "api").Logger(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Get("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Route("/monitoring", func(r chi.Router) {
			r.Post("/start", s.handleStart)
			r.Post("/stop", s.handleStop)
			r.Post("/cycle", s.handleCycle)
		})

		r.Route("/servers", func(r chi.Router) {
			r.Get("/", s.handleListServers)
			r.Post("/", s.handleAddServer)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetServer)
				r.Put("/", s.handleUpdateServer)
				r.Delete("/", s.handleRemoveServer)
				r.Post("/toggle", s.handleToggleServer)
			})
		})

		r.Route("/players", func(r chi.Router) {
			r.Get("/", s.handleListPlayers)
			r.Post("/login", s.handleLogin)
			r.Post("/logout", s.handleLogout)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetPlayer)
				r.Put("/", s.handleUpdatePlayer)
				r.Post("/favorite", s.handleToggleFavorite)
				r.Get("/sessions", s.handlePlayerSessions)
			})
		})

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handleSaveSettings)

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", s.handleGetAlerts)
			r.Put("/", s.handleAlertOptions)
			r.Put("/rules/{id}", s.handleAlertRule)
			r.Post("/read", s.handleMarkRead)
			r.Delete("/history", s.handleClearHistory)
		})

		r.Get("/logs", s.handleLogs)
		r.Get("/events", s.handleEvents)
		r.Get("/export", s.handleExport)

		r.Route("/backups", func(r chi.Router) {
			r.Get("/", s.handleListBackups)
			r.Post("/", s.handleCreateBackup)
			r.Post("/{key}/restore", s.handleRestoreBackup)
		})
		r.Post("/data/clear", s.handleClearData)
	})
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info().Str("addr", s.addr).Msg("starting HTTP API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.log.Info().Msg("shutting down HTTP API server")
	return s.httpServer.Shutdown(ctx)
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
			Dur("duration", time.Since(start)).
			Int("bytes", ww.BytesWritten()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
