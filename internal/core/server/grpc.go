// Package server provides gRPC and metrics server lifecycle management.
package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/netutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/solatis/listingkeeper/internal/core/api"
	"github.com/solatis/listingkeeper/internal/core/auth"
	"github.com/solatis/listingkeeper/internal/core/config"
	"github.com/solatis/listingkeeper/internal/core/metrics"
)

// shutdownTimeout bounds graceful shutdown before in-flight RPCs are cut.
const shutdownTimeout = 30 * time.Second

// GRPCServer manages gRPC server lifecycle.
type GRPCServer struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	config   *config.RulesAPIConfig
	logger   *zap.Logger
}

// NewGRPCServer creates the gRPC server with its interceptor chain and
// registers the ProductRules and health services.
//
// Interceptor order, outermost first: metrics, logging, authentication,
// rate limiting. Health checks bypass authentication.
func NewGRPCServer(cfg *config.RulesAPIConfig, service *api.Service, authenticator *auth.Authenticator, collector *metrics.Collector, logger *zap.Logger) (*GRPCServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if authenticator == nil {
		return nil, fmt.Errorf("authenticator cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var interceptors []grpc.UnaryServerInterceptor
	if collector != nil {
		interceptors = append(interceptors, collector.UnaryInterceptor())
	}
	interceptors = append(interceptors,
		LoggingInterceptor(logger),
		authenticator.UnaryInterceptor(grpc_health_v1.Health_Check_FullMethodName),
	)
	if cfg.RateLimit > 0 {
		var onReject func()
		if collector != nil {
			onReject = collector.ObserveRateLimited
		}
		interceptors = append(interceptors,
			NewRateLimiter(cfg.RateLimit, cfg.RateBurst, onReject).UnaryInterceptor())
	}

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	api.RegisterProductRulesServer(server, service)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(api.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &GRPCServer{
		server: server,
		health: healthServer,
		config: cfg,
		logger: logger,
	}, nil
}

// Listen binds the configured address. Connections beyond MaxConnections
// wait in the accept queue.
func (s *GRPCServer) Listen() error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	if s.config.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, s.config.MaxConnections)
	}
	s.listener = listener
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *GRPCServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start serves gRPC requests, binding first if Listen was not called.
// Blocks until Shutdown is called.
func (s *GRPCServer) Start(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.logger.Info("gRPC server listening", zap.String("addr", s.listener.Addr().String()))
	return s.server.Serve(s.listener)
}

// Shutdown marks the server not serving and stops it gracefully, forcing
// a stop after ctx ends or shutdownTimeout elapses.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("shutdown cancelled by context: %w", ctx.Err())
	case <-time.After(shutdownTimeout):
		s.server.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}
}
