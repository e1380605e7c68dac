// Package observability provides Prometheus metrics and OpenTelemetry
// tracing instrumentation for the simulator.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jeeves-cluster-organization/netsim/netsim"
)

// =============================================================================
// ROUTING METRICS
// =============================================================================

var (
	messagesRoutedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netsim_messages_routed_total",
			Help: "Total number of protocol messages multicast by a server",
		},
		[]string{"universe", "kind"},
	)

	routeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netsim_route_errors_total",
			Help: "Total number of Serve calls that returned an error",
		},
		[]string{"universe", "kind"},
	)

	fetchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netsim_fetch_failures_total",
			Help: "Total number of fetch requests that found no peer to forward to",
		},
		[]string{"universe", "kind"},
	)

	fanoutSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netsim_fanout_size",
			Help:    "Number of sinks a multicast message was delivered to",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"universe", "kind"},
	)
)

// =============================================================================
// UNIVERSE GAUGES
// =============================================================================

var (
	clockedInClients = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "netsim_clocked_in_clients",
			Help: "Number of clients currently clocked in to a universe",
		},
		[]string{"universe"},
	)

	trackedDnaCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "netsim_tracked_dna_count",
			Help: "Number of (dna, agent) buckets that have completed the track handshake",
		},
		[]string{"universe"},
	)

	registeredUniverses = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "netsim_registered_universes",
			Help: "Number of universes currently held by the registry",
		},
	)
)

// =============================================================================
// PUBLIC API
// =============================================================================

// Recorder implements netsim.Recorder on top of the package's Prometheus
// collectors, keyed by the universe (server) name.
type Recorder struct {
	universe string
}

// NewRecorder returns a Recorder that labels every metric with universe.
func NewRecorder(universe string) *Recorder {
	return &Recorder{universe: universe}
}

// MessageRouted implements netsim.Recorder.
func (r *Recorder) MessageRouted(dna netsim.DnaAddress, kind netsim.MessageKind, fanout int) {
	messagesRoutedTotal.WithLabelValues(r.universe, string(kind)).Inc()
	if fanout > 0 {
		fanoutSize.WithLabelValues(r.universe, string(kind)).Observe(float64(fanout))
	}
}

// FetchFailed implements netsim.Recorder.
func (r *Recorder) FetchFailed(dna netsim.DnaAddress, kind netsim.MessageKind) {
	fetchFailuresTotal.WithLabelValues(r.universe, string(kind)).Inc()
}

// RouteError implements netsim.Recorder.
func (r *Recorder) RouteError(dna netsim.DnaAddress, kind netsim.MessageKind) {
	routeErrorsTotal.WithLabelValues(r.universe, string(kind)).Inc()
}

// SetClockedInClients sets the clocked-in-clients gauge for a universe.
func SetClockedInClients(universe string, count int) {
	clockedInClients.WithLabelValues(universe).Set(float64(count))
}

// SetTrackedDnaCount sets the tracked-dna gauge for a universe.
func SetTrackedDnaCount(universe string, count int) {
	trackedDnaCount.WithLabelValues(universe).Set(float64(count))
}

// SetRegisteredUniverses sets the total registered-universes gauge.
func SetRegisteredUniverses(count int) {
	registeredUniverses.Set(float64(count))
}
