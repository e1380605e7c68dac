package admin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/jeeves-cluster-organization/netsim/netsim"
)

func checkStatus(t *testing.T, hs *HealthService, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := hs.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.Status
}

func TestNewHealthServiceOverallIsServing(t *testing.T) {
	reg := netsim.NewRegistry(nil, nil, true)
	hs := NewHealthService(reg)

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, checkStatus(t, hs, ""))
}

func TestSyncMarksRegisteredUniversesServing(t *testing.T) {
	reg := netsim.NewRegistry(nil, nil, true)
	reg.GetOrCreate("alice-net")
	hs := NewHealthService(reg)

	hs.Sync()

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, checkStatus(t, hs, "alice-net"))
}

func TestMarkNotServing(t *testing.T) {
	reg := netsim.NewRegistry(nil, nil, true)
	reg.GetOrCreate("alice-net")
	hs := NewHealthService(reg)
	hs.Sync()

	hs.MarkNotServing("alice-net")

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, checkStatus(t, hs, "alice-net"))
}

func TestUnknownServiceReturnsError(t *testing.T) {
	reg := netsim.NewRegistry(nil, nil, true)
	hs := NewHealthService(reg)

	_, err := hs.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "nope"})
	assert.Error(t, err)
}

func TestRunSyncLoopPicksUpNewUniverses(t *testing.T) {
	reg := netsim.NewRegistry(nil, nil, true)
	hs := NewHealthService(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go RunSyncLoop(ctx, hs, 10*time.Millisecond)

	reg.GetOrCreate("bob-net")

	require.Eventually(t, func() bool {
		return checkStatus(t, hs, "bob-net") == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 5*time.Millisecond)
}
