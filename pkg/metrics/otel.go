package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pzverkov/quantum-messenger/pkg/version"
)

// OTelTracer forwards spans to an OpenTelemetry TracerProvider. Without an
// SDK installed the global provider drops everything.
type OTelTracer struct {
	tracer trace.Tracer
}

// NewOTelTracer creates a tracer on the global provider.
func NewOTelTracer(scope string) *OTelTracer {
	return NewOTelTracerWithProvider(otel.GetTracerProvider(), scope)
}

// NewOTelTracerWithProvider creates a tracer on tp. An empty scope
// defaults to "qmsg".
func NewOTelTracerWithProvider(tp trace.TracerProvider, scope string) *OTelTracer {
	if scope == "" {
		scope = "qmsg"
	}
	return &OTelTracer{
		tracer: tp.Tracer(scope, trace.WithInstrumentationVersion(version.String())),
	}
}

func (t *OTelTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder) {
	cfg := newSpanConfig(opts)
	ctx, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(otelSpanKind(cfg.kind)),
		trace.WithAttributes(cfg.attrs...))

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

func otelSpanKind(kind SpanKind) trace.SpanKind {
	switch kind {
	case SpanKindServer:
		return trace.SpanKindServer
	case SpanKindClient:
		return trace.SpanKindClient
	default:
		return trace.SpanKindInternal
	}
}
