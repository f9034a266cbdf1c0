package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// MetricsServer serves /metrics (Prometheus) and /health over plain HTTP.
type MetricsServer struct {
	server   *http.Server
	listener net.Listener
	logger   *zap.Logger
}

// NewMetricsServer creates a metrics server on addr exposing metricsHandler.
func NewMetricsServer(addr string, metricsHandler http.Handler, logger *zap.Logger) *MetricsServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetricsServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           NewMetricsRouter(metricsHandler),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// NewMetricsRouter returns the HTTP routes of the metrics endpoint.
func NewMetricsRouter(metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", metricsHandler)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Head("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

// Listen binds the configured address.
func (s *MetricsServer) Listen() error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind metrics address %s: %w", s.server.Addr, err)
	}
	s.listener = listener
	return nil
}

// Start serves HTTP requests until Shutdown, binding first if needed.
// Returns nil after a clean shutdown.
func (s *MetricsServer) Start() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.logger.Info("metrics server listening", zap.String("addr", s.listener.Addr().String()))
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight scrapes until ctx ends.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
