package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestNoOpTracer(t *testing.T) {
	ctx := context.WithValue(context.Background(), activeSpanKey{}, "marker")

	got, end := NoOpTracer{}.StartSpan(ctx, "anything", WithAttributes(AttrInbox.String("x")))
	if got != ctx {
		t.Error("NoOpTracer should hand back the caller's context")
	}
	end(nil)
	end(errors.New("ignored"))
}

// --- SimpleTracer ---

func TestSimpleTracerRecordsSpan(t *testing.T) {
	tracer := NewSimpleTracer()
	failure := errors.New("verify failed")

	_, end := tracer.StartSpan(context.Background(), SpanRelayHandle,
		WithSpanKind(SpanKindServer),
		WithAttributes(AttrMessageType.String("send_message"), AttrPayloadBytes.Int(64)),
		WithAttributes(AttrPayloadBytes.Int(128)))
	end(failure)

	spans := tracer.Spans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]

	if span.Name != SpanRelayHandle || span.Kind != SpanKindServer {
		t.Errorf("span = %s/%s", span.Name, span.Kind)
	}
	if !errors.Is(span.Err, failure) {
		t.Errorf("Err = %v, want %v", span.Err, failure)
	}
	if span.Duration() < 0 || span.End.Before(span.Start) {
		t.Errorf("span ended before it started: %v", span.Duration())
	}
	if got := span.Attr(AttrMessageType).AsString(); got != "send_message" {
		t.Errorf("message type = %q", got)
	}
	if got := span.Attr(AttrPayloadBytes).AsInt64(); got != 128 {
		t.Errorf("payload bytes = %d, want the later value 128", got)
	}
	if span.Attr(AttrCryptoMode).Type() != attribute.INVALID {
		t.Error("unset attribute should be invalid")
	}
}

func TestSimpleTracerEndIsIdempotent(t *testing.T) {
	tracer := NewSimpleTracer()
	_, end := tracer.StartSpan(context.Background(), "once")
	end(nil)
	end(errors.New("late"))

	spans := tracer.Spans()
	if len(spans) != 1 || spans[0].Err != nil {
		t.Errorf("expected one clean span, got %+v", spans)
	}
}

func TestSimpleTracerParentChild(t *testing.T) {
	tracer := NewSimpleTracer()

	ctx, endParent := tracer.StartSpan(context.Background(), "parent")
	_, endChild := tracer.StartSpan(ctx, "child")
	endChild(nil)
	endParent(nil)
	_, endOther := tracer.StartSpan(context.Background(), "other")
	endOther(nil)

	spans := tracer.Spans()
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}
	child, parent, other := spans[0], spans[1], spans[2]

	if !parent.TraceID.IsValid() || !parent.SpanID.IsValid() {
		t.Fatal("root span should carry valid IDs")
	}
	if parent.Parent.IsValid() {
		t.Error("root span should have no parent")
	}
	if child.TraceID != parent.TraceID {
		t.Error("child should join the parent's trace")
	}
	if child.Parent != parent.SpanID {
		t.Errorf("child parent = %s, want %s", child.Parent, parent.SpanID)
	}
	if child.SpanID == parent.SpanID {
		t.Error("child and parent share a span ID")
	}
	if other.TraceID == parent.TraceID {
		t.Error("unrelated root span joined an existing trace")
	}
}

func TestSimpleTracerReset(t *testing.T) {
	tracer := NewSimpleTracer()
	for i := 0; i < 3; i++ {
		_, end := tracer.StartSpan(context.Background(), "span")
		end(nil)
	}
	tracer.Reset()

	if n := len(tracer.Spans()); n != 0 {
		t.Errorf("expected no spans after Reset, got %d", n)
	}
}

func TestSimpleTracerConcurrent(t *testing.T) {
	tracer := NewSimpleTracer()

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_, end := tracer.StartSpan(context.Background(), SpanMessageEncrypt)
				end(nil)
			}
		}()
	}
	wg.Wait()

	if n := len(tracer.Spans()); n != 1000 {
		t.Errorf("expected 1000 spans, got %d", n)
	}
}

// --- Global Tracer ---

func TestGlobalTracer(t *testing.T) {
	prev := GetTracer()
	defer SetTracer(prev)

	tracer := NewSimpleTracer()
	SetTracer(tracer)
	_, end := StartSpan(context.Background(), SpanMessageDecrypt)
	end(nil)

	if spans := tracer.Spans(); len(spans) != 1 || spans[0].Name != SpanMessageDecrypt {
		t.Errorf("global StartSpan did not reach the installed tracer: %+v", spans)
	}

	SetTracer(nil)
	if _, ok := GetTracer().(NoOpTracer); !ok {
		t.Errorf("SetTracer(nil) installed %T, want NoOpTracer", GetTracer())
	}
}

func TestSpanKindString(t *testing.T) {
	tests := []struct {
		kind SpanKind
		want string
	}{
		{SpanKindInternal, "internal"},
		{SpanKindServer, "server"},
		{SpanKindClient, "client"},
		{SpanKind(9), "internal"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("SpanKind(%d) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
