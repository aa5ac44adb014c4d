// Package http serves the operational endpoints for the retrieval service:
// liveness, pipeline readiness, and Prometheus metrics.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineStatus is the pipeline's view of its own progress, consumed by the
// readiness endpoint.
type PipelineStatus interface {
	// CheckReadiness returns nil once at least one document has been
	// normalized and loaded.
	CheckReadiness(ctx context.Context) error
	// LastLoad reports when the sinks last received a document.
	LastLoad() (time.Time, bool)
}

const readinessTimeout = 2 * time.Second

// Server exposes /healthz, /readyz, and /metrics.
type Server struct {
	srv    *http.Server
	status PipelineStatus
	logger *slog.Logger
}

func NewServer(addr string, status PipelineStatus, logger *slog.Logger) *Server {
	s := &Server{
		status: status,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// ServeHTTP delegates to the route mux so tests can drive the server without
// binding a port.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.srv.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "nwisdr",
	})
}

// handleReady reports 200 only after the pipeline has delivered a document to
// its sinks, so orchestrators hold traffic until the first retrieval lands.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if err := s.status.CheckReadiness(ctx); err != nil {
		s.respond(w, http.StatusServiceUnavailable, map[string]string{
			"status": "waiting",
			"reason": err.Error(),
		})
		return
	}

	body := map[string]string{"status": "ready"}
	if at, ok := s.status.LastLoad(); ok {
		body["last_load"] = at.UTC().Format(time.RFC3339)
	}
	s.respond(w, http.StatusOK, body)
}

func (s *Server) respond(w http.ResponseWriter, code int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("status response write failed", "error", err)
	}
}
