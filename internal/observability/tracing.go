// Package observability wires OpenTelemetry tracing for dimension
// executions. Grounded on _examples/kbukum-gokit/observability/tracer.go's
// Tracer()/StartSpan()/SetSpanAttribute shape; unlike that reference, this
// package does not configure an OTLP exporter (a deploy-time concern out of
// scope here) and simply uses whatever TracerProvider the host process has
// installed globally, defaulting to OpenTelemetry's no-op provider.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/smilemakc/dimflow/internal/engine"

// Span names used by the execution engine.
const (
	SpanDimensionExecute = "dimension.execute"
	SpanProcess          = "process"
)

// Attribute keys used by the execution engine.
const (
	AttrDimension    = "dimension.name"
	AttrScope        = "dimension.scope"
	AttrSectionIndex = "dimension.section_index"
	AttrProvider     = "dimension.provider"
)

// Tracer returns the named tracer from the globally installed provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span using the package tracer.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// SetSpanAttribute sets a typed attribute on the current span in context.
func SetSpanAttribute(ctx context.Context, key string, value any) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	switch v := value.(type) {
	case string:
		span.SetAttributes(attribute.String(key, v))
	case int:
		span.SetAttributes(attribute.Int(key, v))
	case int64:
		span.SetAttributes(attribute.Int64(key, v))
	case bool:
		span.SetAttributes(attribute.Bool(key, v))
	}
}

// SetSpanError records an error on the current span in context.
func SetSpanError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if span != nil && span.IsRecording() && err != nil {
		span.RecordError(err)
	}
}
