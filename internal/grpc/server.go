// Package grpc exposes the library's gRPC surface: the standard health service and reflection.
package grpc

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// NewServer builds a gRPC server with request logging, health checks and reflection
func NewServer(health *HealthServer, log *zap.Logger) *grpc.Server {
	server := grpc.NewServer(
		grpc.UnaryInterceptor(LoggingInterceptor(log)),
	)
	grpc_health_v1.RegisterHealthServer(server, health)
	reflection.Register(server)
	return server
}

// LoggingInterceptor logs all gRPC requests
func LoggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)

		if err != nil {
			log.Error("gRPC request failed",
				zap.String("method", info.FullMethod),
				zap.Error(err),
			)
		} else {
			log.Debug("gRPC request completed",
				zap.String("method", info.FullMethod),
			)
		}

		return resp, err
	}
}
