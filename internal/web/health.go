package web

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the service reported by the gRPC health server.
const ServiceName = "ammvault.Vault"

// HealthServer exposes the standard gRPC health protocol. Serving status follows the check
// function, polled every interval.
type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	check    func() error
	interval time.Duration
}

// NewHealthServer returns a health server. A nil check always reports SERVING.
func NewHealthServer(check func() error, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	hs := &HealthServer{
		server:   grpc.NewServer(),
		health:   health.NewServer(),
		check:    check,
		interval: interval,
	}
	healthpb.RegisterHealthServer(hs.server, hs.health)
	hs.refresh()
	return hs
}

// refresh updates the serving status of the overall server and of ServiceName.
func (hs *HealthServer) refresh() healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if hs.check != nil {
		if err := hs.check(); err != nil {
			webLogger.Warn().Err(err).Msg("Health check failed")
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	hs.health.SetServingStatus("", status)
	hs.health.SetServingStatus(ServiceName, status)
	return status
}

// Serve accepts connections on lis and polls the check until ctx is cancelled.
func (hs *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		ticker := time.NewTicker(hs.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				hs.health.Shutdown()
				hs.server.GracefulStop()
				return
			case <-ticker.C:
				hs.refresh()
			}
		}
	}()

	webLogger.Info().Str("addr", lis.Addr().String()).Msg("Starting gRPC health server")
	if err := hs.server.Serve(lis); err != nil {
		return fmt.Errorf("grpc health server: %w", err)
	}
	return nil
}

// ListenAndServe listens on port and calls Serve.
func (hs *HealthServer) ListenAndServe(ctx context.Context, port string) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", port, err)
	}
	return hs.Serve(ctx, lis)
}
