// Package grpc serves the standard gRPC health service. The empty service
// name reports the process itself and "device/<id>" reports each terminal.
package grpc

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/srbio/internal/logging"
	"github.com/dmitrijs2005/srbio/internal/models"
)

const devicePrefix = "device/"

// ServiceName is the health service name of one device.
func ServiceName(deviceID string) string {
	return devicePrefix + deviceID
}

type HealthServer struct {
	address string
	health  *health.Server
	logger  logging.Logger
}

func NewHealthServer(address string, logger logging.Logger) *HealthServer {
	if logger == nil {
		logger = logging.NewNop()
	}
	h := health.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return &HealthServer{address: address, health: h, logger: logger.With("module", "grpc_server")}
}

func servingStatus(st models.Status) healthpb.HealthCheckResponse_ServingStatus {
	if st == models.StatusOnline {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

// Seed publishes the stored status of every device.
func (s *HealthServer) Seed(list []models.Device) {
	for _, d := range list {
		s.health.SetServingStatus(ServiceName(d.ID), servingStatus(d.Status))
	}
}

// DeviceStatusChanged implements status.Notifier.
func (s *HealthServer) DeviceStatusChanged(_ context.Context, change models.StatusChange) {
	s.health.SetServingStatus(ServiceName(change.DeviceID), servingStatus(change.Status))
}

func (s *HealthServer) logCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug(ctx, "grpc call", "method", info.FullMethod, "duration", time.Since(start), "err", err)
	return resp, err
}

func (s *HealthServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())
	return s.serve(ctx, listen)
}

func (s *HealthServer) serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.logCalls))
	healthpb.RegisterHealthServer(srv, s.health)

	go func() {
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	return srv.Serve(listen)
}
