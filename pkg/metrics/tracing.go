package metrics

import (
	"context"
	"crypto/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans around message and relay operations. Attributes use
// the OpenTelemetry attribute types so that every implementation, including
// the in-process ones below, speaks the same vocabulary.
type Tracer interface {
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder)
}

// SpanEnder ends a span. A non-nil error marks the span failed.
type SpanEnder func(err error)

// SpanOption configures a span at start.
type SpanOption func(*spanConfig)

type spanConfig struct {
	kind  SpanKind
	attrs []attribute.KeyValue
}

func newSpanConfig(opts []SpanOption) spanConfig {
	var cfg spanConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// SpanKind is the role of a span. The zero value is SpanKindInternal.
type SpanKind int

const (
	SpanKindInternal SpanKind = iota
	SpanKindServer
	SpanKindClient
)

func (k SpanKind) String() string {
	switch k {
	case SpanKindServer:
		return "server"
	case SpanKindClient:
		return "client"
	default:
		return "internal"
	}
}

// WithSpanKind sets the span kind.
func WithSpanKind(kind SpanKind) SpanOption {
	return func(c *spanConfig) { c.kind = kind }
}

// WithAttributes appends attributes. Later values for a key win.
func WithAttributes(attrs ...attribute.KeyValue) SpanOption {
	return func(c *spanConfig) { c.attrs = append(c.attrs, attrs...) }
}

// Span names.
const (
	SpanMessageEncrypt = "qmsg.message.encrypt"
	SpanMessageDecrypt = "qmsg.message.decrypt"
	SpanRelayHandle    = "qmsg.relay.handle"
)

// Attribute keys. Identities and inboxes are only ever recorded as
// fingerprints.
const (
	AttrCryptoMode   = attribute.Key("qmsg.crypto_mode")
	AttrInbox        = attribute.Key("qmsg.inbox")
	AttrPayloadBytes = attribute.Key("qmsg.payload_bytes")
	AttrMessageType  = attribute.Key("qmsg.relay.message_type")
)

// --- No-op ---

// NoOpTracer records nothing.
type NoOpTracer struct{}

func (NoOpTracer) StartSpan(ctx context.Context, _ string, _ ...SpanOption) (context.Context, SpanEnder) {
	return ctx, func(error) {}
}

// --- In-memory ---

// RecordedSpan is a finished span kept by a SimpleTracer.
type RecordedSpan struct {
	Name       string
	Kind       SpanKind
	Start, End time.Time
	Attributes attribute.Set
	Err        error

	TraceID trace.TraceID
	SpanID  trace.SpanID
	Parent  trace.SpanID // invalid for root spans
}

// Duration is End minus Start.
func (s RecordedSpan) Duration() time.Duration { return s.End.Sub(s.Start) }

// Attr returns the value recorded for key, or an empty value.
func (s RecordedSpan) Attr(key attribute.Key) attribute.Value {
	v, _ := s.Attributes.Value(key)
	return v
}

// SimpleTracer keeps finished spans in memory. Spans started from a context
// carrying another SimpleTracer span share its trace ID.
type SimpleTracer struct {
	mu    sync.Mutex
	spans []RecordedSpan
}

// NewSimpleTracer creates an empty in-memory tracer.
func NewSimpleTracer() *SimpleTracer { return &SimpleTracer{} }

type activeSpanKey struct{}

func (t *SimpleTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder) {
	cfg := newSpanConfig(opts)
	span := RecordedSpan{
		Name:       name,
		Kind:       cfg.kind,
		Start:      time.Now(),
		Attributes: attribute.NewSet(cfg.attrs...),
	}
	_, _ = rand.Read(span.SpanID[:])
	if parent, ok := ctx.Value(activeSpanKey{}).(RecordedSpan); ok {
		span.TraceID = parent.TraceID
		span.Parent = parent.SpanID
	} else {
		_, _ = rand.Read(span.TraceID[:])
	}

	var ended atomic.Bool
	return context.WithValue(ctx, activeSpanKey{}, span), func(err error) {
		if !ended.CompareAndSwap(false, true) {
			return
		}
		span.End = time.Now()
		span.Err = err
		t.mu.Lock()
		t.spans = append(t.spans, span)
		t.mu.Unlock()
	}
}

// Spans returns a copy of the finished spans in end order.
func (t *SimpleTracer) Spans() []RecordedSpan {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]RecordedSpan(nil), t.spans...)
}

// Reset discards all finished spans.
func (t *SimpleTracer) Reset() {
	t.mu.Lock()
	t.spans = nil
	t.mu.Unlock()
}

// --- Global Tracer ---

type tracerHolder struct{ Tracer }

var globalTracer atomic.Pointer[tracerHolder]

func init() {
	globalTracer.Store(&tracerHolder{NoOpTracer{}})
}

// SetTracer replaces the global tracer. nil restores the no-op tracer.
func SetTracer(t Tracer) {
	if t == nil {
		t = NoOpTracer{}
	}
	globalTracer.Store(&tracerHolder{t})
}

// GetTracer returns the global tracer.
func GetTracer() Tracer {
	return globalTracer.Load().Tracer
}

// StartSpan starts a span on the global tracer.
func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder) {
	return GetTracer().StartSpan(ctx, name, opts...)
}
