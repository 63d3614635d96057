package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/uow-eventbus-go/observability"
)

const attrStatus = "status"

// TracingCollector creates OpenTelemetry spans for the observability tracing hooks.
type TracingCollector struct {
	tracer trace.Tracer
}

func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

// StartSpan starts a span as a child of the span in ctx, if any.
func (t *TracingCollector) StartSpan(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (context.Context, observability.SpanContext) {
	spanCtx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attributes(attrs)...))

	return spanCtx, &OTelSpanContext{span: span}
}

// FinishSpan sets status and attrs and ends the span. Spans not started by a TracingCollector are ignored.
func (t *TracingCollector) FinishSpan(spanCtx observability.SpanContext, status string, attrs map[string]string) {
	otelSpanCtx, ok := spanCtx.(*OTelSpanContext)
	if !ok {
		return
	}

	otelSpanCtx.span.SetAttributes(attributes(attrs)...)
	otelSpanCtx.SetStatus(status)
	otelSpanCtx.span.End()
}

// OTelSpanContext wraps a running OpenTelemetry span.
type OTelSpanContext struct {
	span trace.Span
}

// Span returns the wrapped span.
func (s *OTelSpanContext) Span() trace.Span {
	return s.span
}

// SetStatus maps success to codes.Ok and error-like statuses to codes.Error.
// Other statuses are recorded as a "status" attribute and leave the span status unset.
func (s *OTelSpanContext) SetStatus(status string) {
	switch status {
	case observability.StatusSuccess, "ok", "committed":
		s.span.SetStatus(codes.Ok, "")
	case observability.StatusError, "failed":
		s.span.SetStatus(codes.Error, "operation failed")
	case "timeout":
		s.span.SetStatus(codes.Error, "operation timed out")
	case "aborted":
		s.span.SetStatus(codes.Error, "transaction aborted")
	case "canceled", "cancelled":
		s.span.SetStatus(codes.Error, "operation canceled")
	default:
		s.span.SetAttributes(attribute.String(attrStatus, status))
	}
}

func (s *OTelSpanContext) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

var (
	_ observability.TracingCollector = (*TracingCollector)(nil)
	_ observability.SpanContext      = (*OTelSpanContext)(nil)
)
