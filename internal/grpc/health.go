package grpc

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger reports whether the database answers
type Pinger interface {
	Ping() error
}

// Broker reports whether the event broker connection is up
type Broker interface {
	IsHealthy() bool
}

// HealthServer implements the gRPC health checking protocol
type HealthServer struct {
	grpc_health_v1.UnimplementedHealthServer
	db     Pinger
	broker Broker
	log    *zap.Logger
}

// NewHealthServer creates a new health check server. broker may be nil when events are disabled.
func NewHealthServer(database Pinger, broker Broker, log *zap.Logger) *HealthServer {
	return &HealthServer{
		db:     database,
		broker: broker,
		log:    log,
	}
}

// Check implements the health check
func (h *HealthServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	return &grpc_health_v1.HealthCheckResponse{Status: h.status()}, nil
}

// Watch sends the current status once
func (h *HealthServer) Watch(req *grpc_health_v1.HealthCheckRequest, server grpc_health_v1.Health_WatchServer) error {
	return server.Send(&grpc_health_v1.HealthCheckResponse{Status: h.status()})
}

func (h *HealthServer) status() grpc_health_v1.HealthCheckResponse_ServingStatus {
	if err := h.db.Ping(); err != nil {
		h.log.Error("Database health check failed", zap.Error(err))
		return grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}

	if h.broker != nil && !h.broker.IsHealthy() {
		h.log.Error("RabbitMQ health check failed")
		return grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}

	return grpc_health_v1.HealthCheckResponse_SERVING
}
