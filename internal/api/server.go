// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes playback sessions over HTTP so engines and ad or DRM
// services running out of process can feed events into the dispatcher.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ManuGH/playerplatform/internal/api/middleware"
	"github.com/ManuGH/playerplatform/internal/log"
	"github.com/ManuGH/playerplatform/internal/player/dispatch"
	"github.com/ManuGH/playerplatform/internal/player/drm"
	"github.com/ManuGH/playerplatform/internal/player/event"
	"github.com/ManuGH/playerplatform/internal/player/session"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// EventReader serves recently recorded events. The Redis stream sink
// satisfies it.
type EventReader interface {
	Recent(ctx context.Context, n int64) ([]event.Event, error)
}

// HealthChecker reports whether a dependency is usable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config wires a Server.
type Config struct {
	Registry          *session.Registry
	Dispatcher        *dispatch.Dispatcher
	DRMTimeout        time.Duration
	HeartbeatInterval time.Duration

	// Optional.
	License      drm.LicenseTransport
	Events       EventReader
	Health       map[string]HealthChecker
	RateLimitRPM int
	TracingName  string
	Logger       *zerolog.Logger
}

// Server is the HTTP surface over a session registry.
type Server struct {
	cfg    Config
	logger zerolog.Logger
	router *chi.Mux
}

// New builds the router. Registry and Dispatcher are required.
func New(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("api: registry is required")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("api: dispatcher is required")
	}
	s := &Server{cfg: cfg, logger: log.WithComponent("api")}
	if cfg.Logger != nil {
		s.logger = *cfg.Logger
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *chi.Mux {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		EnableLogging:  true,
		TracingService: s.cfg.TracingName,
		RateLimitRPM:   s.cfg.RateLimitRPM,
	})

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Get("/", s.handleListSessions)
		r.Post("/", s.handleCreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Use(s.sessionCtx)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/signals", s.handleSignal)
			r.Post("/adbreaks", s.handleStartAdBreak)
			r.Post("/adbreaks/{breakID}/complete", s.handleCompleteAdBreak)
			r.Get("/drm", s.handleDRMState)
			r.Post("/drm/exchanges", s.handleBeginExchange)
			r.Post("/drm/responses", s.handleExchangeResponse)
			r.Post("/drm/authorize", s.handleAuthorize)
			r.Get("/events", s.handleRecentEvents)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.cfg.Health))
	for name, hc := range s.cfg.Health {
		if err := hc.HealthCheck(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	writeJSON(w, status, healthResponse{
		Status:   http.StatusText(status),
		Sessions: s.cfg.Registry.Len(),
		Checks:   checks,
	})
}
