package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func healthStatus(t *testing.T, h *Health, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := h.srv.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthFollowsBrokerChecks(t *testing.T) {
	h := NewHealth(zaptest.NewLogger(t))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, healthStatus(t, h, HealthService))

	h.Check(nil)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, healthStatus(t, h, HealthService))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, healthStatus(t, h, ""))

	h.Check(errors.New("dial tcp: connection refused"))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, healthStatus(t, h, HealthService))

	h.Check(nil)
	h.Shutdown()
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, healthStatus(t, h, HealthService))
}
