package grpc_control

import (
	"fmt"
	"net"

	"trading-simulator/src/logger"
	"trading-simulator/src/models"

	"google.golang.org/grpc"
	healthgrpc "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// -----------------------------------------------------------------------------
// HealthServer exposes the standard grpc health service. The simulator is
// SERVING once at least one symbol has real history to seed lobbies from.
// -----------------------------------------------------------------------------

type HealthServer struct {
	Config  *models.MConfig
	Logger  *logger.Logger
	service string

	health *healthgrpc.Server
	grpc   *grpc.Server
}

// -----------------------------------------------------------------------------

func NewHealthServer(cfg *models.MConfig, log *logger.Logger) *HealthServer {
	h := &HealthServer{
		Config:  cfg,
		Logger:  log.Named("HealthServer"),
		service: cfg.Name,
		health:  healthgrpc.NewServer(),
		grpc:    grpc.NewServer(),
	}

	h.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	h.health.SetServingStatus(h.service, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(h.grpc, h.health)
	return h
}

// -----------------------------------------------------------------------------

// SetPopulated updates the serving status from the number of populated symbols.
func (h *HealthServer) SetPopulated(populated int) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if populated > 0 {
		status = healthpb.HealthCheckResponse_SERVING
	}

	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(h.service, status)
	h.Logger.Debug("Health %s (%d symbols populated)", status, populated)
}

// -----------------------------------------------------------------------------

// Serve blocks serving on lis.
func (h *HealthServer) Serve(lis net.Listener) error {
	return h.grpc.Serve(lis)
}

// Start listens on the configured grpc port and serves until Stop.
func (h *HealthServer) Start() error {
	addr := fmt.Sprintf("%s:%d", h.Config.Host, h.Config.GrpcPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	h.Logger.Info("gRPC health service listening on %s", addr)
	return h.Serve(lis)
}

// -----------------------------------------------------------------------------

// Stop marks everything NOT_SERVING and drains in-flight calls.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
}
