package observability

import "github.com/jeeves-cluster-organization/netsim/netsim"

// MultiRecorder fans a single netsim.Recorder call out to several
// underlying recorders, letting a caller combine Recorder (Prometheus)
// and TracingRecorder (OpenTelemetry) behind the one slot Server accepts.
type MultiRecorder []netsim.Recorder

// MessageRouted implements netsim.Recorder.
func (m MultiRecorder) MessageRouted(dna netsim.DnaAddress, kind netsim.MessageKind, fanout int) {
	for _, r := range m {
		r.MessageRouted(dna, kind, fanout)
	}
}

// FetchFailed implements netsim.Recorder.
func (m MultiRecorder) FetchFailed(dna netsim.DnaAddress, kind netsim.MessageKind) {
	for _, r := range m {
		r.FetchFailed(dna, kind)
	}
}

// RouteError implements netsim.Recorder.
func (m MultiRecorder) RouteError(dna netsim.DnaAddress, kind netsim.MessageKind) {
	for _, r := range m {
		r.RouteError(dna, kind)
	}
}
