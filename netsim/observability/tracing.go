package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/jeeves-cluster-organization/netsim/netsim"
)

// InitTracer initializes OpenTelemetry tracing with an OTLP/gRPC
// exporter pointed at collectorEndpoint. It returns a shutdown function
// that must be called on process termination to flush pending spans.
func InitTracer(serviceName, collectorEndpoint string) (func(context.Context) error, error) {
	ctx := context.Background()

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(collectorEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// tracer is the package-wide tracer used for TracingRecorder's spans.
var tracer = otel.Tracer("netsim")

// TracingRecorder implements netsim.Recorder by opening one span per
// recorder callback, attaching universe, dna and message kind (plus the
// fanout, for routed messages) as span attributes; the span name records
// the outcome. It is meant to be composed with, not replace,
// metrics.Recorder — callers that want both wire a small wrapper that
// forwards to each.
type TracingRecorder struct {
	universe string
}

// NewTracingRecorder returns a TracingRecorder labeling spans with
// universe.
func NewTracingRecorder(universe string) *TracingRecorder {
	return &TracingRecorder{universe: universe}
}

func (t *TracingRecorder) span(ctx context.Context, name string, dna netsim.DnaAddress, kind netsim.MessageKind, extra ...attribute.KeyValue) {
	_, span := tracer.Start(ctx, name, oteltrace.WithAttributes(
		append([]attribute.KeyValue{
			attribute.String("netsim.universe", t.universe),
			attribute.String("netsim.dna", string(dna)),
			attribute.String("netsim.kind", string(kind)),
		}, extra...)...,
	))
	defer span.End()
}

// MessageRouted implements netsim.Recorder.
func (t *TracingRecorder) MessageRouted(dna netsim.DnaAddress, kind netsim.MessageKind, fanout int) {
	t.span(context.Background(), "netsim.route", dna, kind, attribute.Int("netsim.fanout", fanout))
}

// FetchFailed implements netsim.Recorder.
func (t *TracingRecorder) FetchFailed(dna netsim.DnaAddress, kind netsim.MessageKind) {
	t.span(context.Background(), "netsim.fetch_failed", dna, kind)
}

// RouteError implements netsim.Recorder.
func (t *TracingRecorder) RouteError(dna netsim.DnaAddress, kind netsim.MessageKind) {
	t.span(context.Background(), "netsim.route_error", dna, kind)
}
