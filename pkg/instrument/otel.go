package instrument

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/pulse/pkg/pulse"
)

// Default tracer name for pulse applications.
const defaultTracerName = "pulse"

// TraceConfig configures the OpenTelemetry tracer.
type TraceConfig struct {
	// TracerName is the name of the tracer (default: "pulse").
	TracerName string

	// Filter determines which operations to trace.
	// Return true to trace the operation, false to skip.
	// If nil, all operations are traced.
	Filter func(op, name string) bool

	// AttributeExtractor extracts custom attributes for each traced
	// operation.
	AttributeExtractor func(op, name string) []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// TraceOption configures the OpenTelemetry tracer.
type TraceOption func(*TraceConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TraceOption {
	return func(c *TraceConfig) {
		c.TracerName = name
	}
}

// WithSpanFilter sets a filter function for traced operations.
func WithSpanFilter(filter func(op, name string) bool) TraceOption {
	return func(c *TraceConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(op, name string) []attribute.KeyValue) TraceOption {
	return func(c *TraceConfig) {
		c.AttributeExtractor = extractor
	}
}

// defaultTraceConfig returns the default tracing configuration.
func defaultTraceConfig() TraceConfig {
	return TraceConfig{
		TracerName: defaultTracerName,
	}
}

// Tracer wraps pulse operations in OpenTelemetry spans.
//
// The tracer uses the global OpenTelemetry tracer provider. Configure it in
// your main() before use:
//
//	tp := sdktrace.NewTracerProvider(
//	    sdktrace.WithBatcher(exporter),
//	    sdktrace.WithResource(resource.NewWithAttributes(
//	        semconv.SchemaURL,
//	        semconv.ServiceName("my-app"),
//	    )),
//	)
//	otel.SetTracerProvider(tp)
type Tracer struct {
	config TraceConfig
}

// NewTracer resolves a tracer from the global provider.
func NewTracer(opts ...TraceOption) *Tracer {
	config := defaultTraceConfig()
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)
	return &Tracer{config: config}
}

// Batch runs fn inside a pulse batch wrapped in a span named after the
// operation. The span records the batch duration covering both the writes
// and the flush they trigger.
func (t *Tracer) Batch(ctx context.Context, name string, fn func()) {
	if t.skip("batch", name) {
		pulse.Batch(fn)
		return
	}

	_, span := t.start(ctx, "batch", name)
	defer span.End()

	pulse.Batch(fn)
	span.SetStatus(codes.Ok, "")
}

// Refresh forces a refresh of the signal inside a span, recording any error
// on the span.
func (t *Tracer) Refresh(ctx context.Context, s pulse.Signal) error {
	name := s.Name()
	if t.skip("refresh", name) {
		return s.Refresh()
	}

	_, span := t.start(ctx, "refresh", name)
	defer span.End()

	err := s.Refresh()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return err
}

func (t *Tracer) skip(op, name string) bool {
	return t.config.Filter != nil && !t.config.Filter(op, name)
}

func (t *Tracer) start(ctx context.Context, op, name string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("pulse.op", op),
	}
	if name != "" {
		attrs = append(attrs, attribute.String("pulse.signal", name))
	}
	if t.config.AttributeExtractor != nil {
		attrs = append(attrs, t.config.AttributeExtractor(op, name)...)
	}

	return t.config.tracer.Start(
		ctx,
		formatSpanName(op, name),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
		trace.WithTimestamp(time.Now()),
	)
}

// formatSpanName creates a span name from the operation and signal name.
func formatSpanName(op, name string) string {
	if name == "" {
		return fmt.Sprintf("pulse.%s", op)
	}
	return fmt.Sprintf("pulse.%s %s", op, name)
}
