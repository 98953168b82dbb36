// Package monitor serves the operational HTTP surface: liveness and
// Prometheus metrics.
package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes /healthz and /metrics on a dedicated listener.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds a monitor server bound to addr.
func NewServer(addr string, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Get("/healthz", handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Start serves until the listener fails. It is intended to run in its
// own goroutine; http.ErrServerClosed is not reported as a failure.
func (s *Server) Start() error {
	s.logger.Info("monitor server listening", slog.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
