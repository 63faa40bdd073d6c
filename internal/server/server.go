// Package server exposes the optional management endpoints: health,
// metrics, configuration and circuit breaker state.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.trai.ch/sompack/internal/app"
	"go.trai.ch/sompack/internal/core/ports"
)

const readHeaderTimeout = 5 * time.Second

// Server wraps the management HTTP server.
type Server struct {
	httpServer *http.Server
	logger     ports.Logger
}

// New creates a Server listening on addr.
func New(addr string, application *app.App, logger ports.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewMux(application, logger),
			ReadHeaderTimeout: readHeaderTimeout,
		},
		logger: logger,
	}
}

// Start serves until Shutdown is called. It does not return on a clean stop.
func (s *Server) Start() error {
	s.logger.Info("management server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// NewMux builds the management routes.
func NewMux(application *app.App, logger ports.Logger) http.Handler {
	h := &handlers{app: application, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /health/ready", h.ready)
	mux.HandleFunc("GET /metrics", h.metrics)
	mux.Handle("GET /metrics/prometheus", newPrometheusHandler(application))
	mux.HandleFunc("GET /config", h.config)
	mux.HandleFunc("GET /circuit-breakers", h.breakers)
	mux.HandleFunc("POST /admin/reset", h.reset)
	return mux
}

type handlers struct {
	app    *app.App
	logger ports.Logger
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ready reports readiness from graph consistency. An inconsistent graph
// means loads are landing partially and the instance should not take
// traffic.
func (h *handlers) ready(w http.ResponseWriter, _ *http.Request) {
	result := h.app.Validate()
	status := http.StatusOK
	if !result.IsValid {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, result)
}

func (h *handlers) metrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"statistics": h.app.Statistics(),
		"budget":     h.app.Budget(),
	})
}

func (h *handlers) config(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Config())
}

func (h *handlers) breakers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"states":      h.app.BreakerStates(),
		"transitions": h.app.BreakerTransitions(),
	})
}

func (h *handlers) reset(w http.ResponseWriter, _ *http.Request) {
	h.app.Reset()
	h.logger.Info("state reset via management endpoint")
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
