package observability

import (
	"context"
	"time"

	"github.com/jeeves-cluster-organization/netsim/netsim"
)

// SyncGauges polls registry once and reports its current shape through the
// package's universe gauges: the registered-universe count, and each
// universe's clocked-in-client and tracked-dna counts.
func SyncGauges(registry *netsim.Registry) {
	names := registry.Names()
	SetRegisteredUniverses(len(names))
	for _, name := range names {
		s, ok := registry.Get(name)
		if !ok {
			continue
		}
		SetClockedInClients(name, s.ClientCount())
		SetTrackedDnaCount(name, s.TrackedDnaCount())
	}
}

// RunSyncLoop periodically calls SyncGauges until ctx is cancelled, so the
// universe gauges stay current without every call site that clocks a
// client in or tracks a dna also having to remember to update a metric.
func RunSyncLoop(ctx context.Context, registry *netsim.Registry, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			SyncGauges(registry)
		}
	}
}
