package api

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/vision.nav/internal/estimator"
	"github.com/banshee-data/vision.nav/internal/monitoring"
	"github.com/banshee-data/vision.nav/internal/timeutil"
)

// HealthService is the service name reported alongside the server-wide
// status.
const HealthService = "visionnav.Estimator"

// Health mirrors the estimator state into a gRPC health server: SERVING
// while Running, NOT_SERVING otherwise.
type Health struct {
	server *health.Server
	state  func() estimator.State
	clock  timeutil.Clock
	last   healthpb.HealthCheckResponse_ServingStatus
}

// NewHealth returns a reporter polling state. The initial status is
// NOT_SERVING.
func NewHealth(state func() estimator.State, clock timeutil.Clock) *Health {
	h := &Health{
		server: health.NewServer(),
		state:  state,
		clock:  clock,
		last:   healthpb.HealthCheckResponse_NOT_SERVING,
	}
	h.set(h.last)
	return h
}

// Server returns the health service implementation.
func (h *Health) Server() *health.Server { return h.server }

func (h *Health) set(st healthpb.HealthCheckResponse_ServingStatus) {
	h.server.SetServingStatus("", st)
	h.server.SetServingStatus(HealthService, st)
}

// Update samples the estimator state once and returns the status now being
// reported.
func (h *Health) Update() healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if h.state() == estimator.Running {
		st = healthpb.HealthCheckResponse_SERVING
	}
	if st != h.last {
		monitoring.Logf("[health] %s -> %s", h.last, st)
		h.last = st
		h.set(st)
	}
	return st
}

// Run updates the status every interval until ctx is done.
func (h *Health) Run(ctx context.Context, interval time.Duration) error {
	t := h.clock.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return ctx.Err()
		case <-t.C():
			h.Update()
		}
	}
}

// Serve exposes the health service on lis until ctx is done.
func (h *Health) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, h.server)

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(lis) }()
	monitoring.Logf("[health] gRPC health listening on %s", lis.Addr())

	select {
	case <-ctx.Done():
		srv.GracefulStop()
		<-errc
		return nil
	case err := <-errc:
		return fmt.Errorf("grpc serve: %w", err)
	}
}

// ListenAndServe listens on addr and calls Serve.
func (h *Health) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return h.Serve(ctx, lis)
}
