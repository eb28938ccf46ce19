package handler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthcheck "xend-auth/backend/internal/health"
)

// ServiceName is the gRPC health service name reported alongside the overall ("") status.
const ServiceName = "xend.auth"

// NewGRPCServer returns a grpc health server starting in NOT_SERVING.
func NewGRPCServer() *health.Server {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return hs
}

// Sync runs checker every interval and mirrors the result into hs until ctx is done, then
// marks everything NOT_SERVING so load balancers drain the instance.
func Sync(ctx context.Context, checker *healthcheck.Checker, hs *health.Server, interval time.Duration, log *zap.Logger) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	last := healthpb.HealthCheckResponse_UNKNOWN
	update := func() {
		status := healthpb.HealthCheckResponse_SERVING
		rep := checker.Run(ctx)
		if !rep.Ready() {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		if status != last {
			log.Info("health: serving status changed", zap.String("status", status.String()), zap.Any("checks", rep.Checks))
			last = status
		}
		hs.SetServingStatus("", status)
		hs.SetServingStatus(ServiceName, status)
	}

	update()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-t.C:
			update()
		}
	}
}
