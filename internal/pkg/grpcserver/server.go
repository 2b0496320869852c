// Package grpcserver runs the gRPC health service the workers expose to
// their orchestrator.
package grpcserver

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Checker reports whether a dependency is usable.
type Checker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	addr   string
	lis    net.Listener
	health *health.Server
	Server *grpc.Server
}

func New(addr string) *Server {
	s := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	return &Server{
		addr:   addr,
		health: hs,
		Server: s,
	}
}

// Listen binds the address without serving, so callers can learn the
// chosen port when addr ends in ":0".
func (s *Server) Listen() (net.Addr, error) {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, err
	}
	s.lis = lis
	return lis.Addr(), nil
}

func (s *Server) Start() error {
	if s.lis == nil {
		if _, err := s.Listen(); err != nil {
			return err
		}
	}
	return s.Server.Serve(s.lis)
}

// SetServing flips the status reported for service. The empty name is the
// overall server status.
func (s *Server) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(service, status)
}

// Watch pings checker every interval and mirrors the result into the
// health status of service until ctx is done.
func (s *Server) Watch(ctx context.Context, service string, checker Checker, interval time.Duration) {
	probe := func() {
		pctx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()
		err := checker.Ping(pctx)
		if err != nil && ctx.Err() == nil {
			slog.WarnContext(ctx, "Health probe failed", "service", service, "error", err)
		}
		s.SetServing(service, err == nil)
	}

	probe()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.Server.GracefulStop()
	if s.lis != nil {
		_ = s.lis.Close()
	}
}
