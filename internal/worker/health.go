package worker

import (
	"sync/atomic"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the gRPC health service name reported by workers
const HealthService = "platewise.worker"

// Health mirrors asynq's periodic broker check onto a gRPC health service
type Health struct {
	srv     *health.Server
	serving atomic.Bool
	logger  *zap.Logger
}

// NewHealth starts in NOT_SERVING until the first successful broker check
func NewHealth(logger *zap.Logger) *Health {
	h := &Health{srv: health.NewServer(), logger: logger}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Check is an asynq HealthCheckFunc
func (h *Health) Check(err error) {
	ok := err == nil
	if h.serving.Swap(ok) == ok {
		return
	}
	if ok {
		h.logger.Info("broker reachable, worker serving")
		h.set(healthpb.HealthCheckResponse_SERVING)
		return
	}
	h.logger.Warn("broker check failed, worker not serving", zap.Error(err))
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
}

func (h *Health) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(HealthService, status)
}

// Register exposes the health service on s
func (h *Health) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// Shutdown reports NOT_SERVING for good
func (h *Health) Shutdown() {
	h.srv.Shutdown()
}
