package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope used for unit-of-work spans.
const TracerName = "transact"

// TraceSpan is closed with the operation's error, if any.
type TraceSpan interface {
	End(err error)
}

// Tracer opens a span per unit-of-work operation.
type Tracer interface {
	Start(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, TraceSpan)
}

type noopTracer struct{}

type noopSpan struct{}

func (noopSpan) End(error) {}

func (noopTracer) Start(ctx context.Context, _ string, _ ...attribute.KeyValue) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

// NoopTracer records nothing.
func NoopTracer() Tracer { return noopTracer{} }

// OTelTracer emits OpenTelemetry spans named "transact.unit_of_work.<operation>".
type OTelTracer struct {
	tracer trace.Tracer
}

// NewOTelTracer wraps tp. A nil provider uses the global one.
func NewOTelTracer(tp trace.TracerProvider) *OTelTracer {
	if tp == nil {
		return &OTelTracer{tracer: otel.Tracer(TracerName)}
	}
	return &OTelTracer{tracer: tp.Tracer(TracerName)}
}

// Start implements Tracer.
func (t *OTelTracer) Start(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, TraceSpan) {
	ctx, span := t.tracer.Start(ctx, "transact.unit_of_work."+operation, trace.WithAttributes(attrs...))
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
