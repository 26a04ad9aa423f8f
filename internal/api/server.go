// Package api is the HTTP surface of the captioning service.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/config"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/events"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/gpu"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/history"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/metrics"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/notify"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/pipeline"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/watch"
)

// Deps bundles the service components the handlers draw on. History,
// Notifier, and Watcher are nil when their feature is not configured.
type Deps struct {
	Pipeline *pipeline.Pipeline
	Hub      *events.Hub
	History  *history.DB
	Notifier *notify.Publisher
	Watcher  *watch.Watcher
	Caps     gpu.Caps

	ProviderName string
	ModelName    string
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(cfg *config.Config, deps Deps, version string, startTime time.Time, log zerolog.Logger) *Server {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(metrics.InstrumentHandler)

	caption := NewCaptionHandler(deps.Pipeline, cfg.MaxUploadMB, log)
	status := NewStatusHandler(deps, version, startTime)
	health := NewHealthHandler(deps, version, startTime)

	// Original endpoints, no auth for compatibility with existing clients.
	r.Get("/status", status.ServeHTTP)
	r.Post("/caption/", caption.ServeHTTP)
	r.Post("/caption", caption.ServeHTTP)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	// Extended API
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(CORS)

		// Health stays unauthenticated for container health checks.
		r.Get("/health", health.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(cfg.AuthToken))
			r.Get("/jobs", NewJobsHandler(deps.History).List)
			r.Get("/events/stream", NewEventsHandler(deps.Hub).StreamEvents)
		})
	})

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
