// Package admin wires an operational gRPC surface around a netsim
// Registry: the standard gRPC Health Checking Protocol, reporting
// SERVING for every registered universe so an operator or orchestrator
// can poll simulator liveness without touching the simulated transport.
package admin

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/jeeves-cluster-organization/netsim/netsim"
)

// HealthService keeps a grpc/health Server's serving status in sync with
// the universes present in a netsim.Registry.
type HealthService struct {
	registry *netsim.Registry
	health   *health.Server
}

// NewHealthService creates a HealthService backed by registry. The
// overall health service (empty service name) is marked SERVING
// immediately; per-universe status is populated by Sync.
func NewHealthService(registry *netsim.Registry) *HealthService {
	h := health.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return &HealthService{registry: registry, health: h}
}

// Register installs the health service (and gRPC reflection, to match
// the teacher's operational binary exposing its service inventory) onto
// an existing grpc.Server.
func (hs *HealthService) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, hs.health)
	reflection.Register(s)
}

// Sync marks every universe currently in the registry as SERVING. It does
// not change the status of a universe that has been removed from the
// registry; MarkNotServing does that. Name mapping is the identity
// function: a universe named "alice-net" is checked under that same
// gRPC health service name.
func (hs *HealthService) Sync() {
	for _, name := range hs.registry.Names() {
		hs.health.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
	}
}

// MarkNotServing flips a single universe's health check service name to
// NOT_SERVING, typically called right after netsim.Registry.Remove.
func (hs *HealthService) MarkNotServing(universe string) {
	hs.health.SetServingStatus(universe, healthpb.HealthCheckResponse_NOT_SERVING)
}

// RunSyncLoop periodically calls Sync until ctx is cancelled, so newly
// created universes are picked up without requiring every call site that
// creates one to also remember to update health status.
func RunSyncLoop(ctx context.Context, hs *HealthService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hs.Sync()
		}
	}
}
