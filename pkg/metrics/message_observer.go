package metrics

import (
	"context"
	"time"

	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
	"github.com/pzverkov/quantum-messenger/pkg/mode"
)

// MessageObserver records metrics, spans and log entries for client-side
// message operations.
type MessageObserver struct {
	collector *Collector
	tracer    Tracer
	logger    *Logger
}

// MessageObserverConfig configures a message observer.
// Nil fields fall back to the global collector, tracer and logger.
type MessageObserverConfig struct {
	Collector *Collector
	Tracer    Tracer
	Logger    *Logger
}

// NewMessageObserver creates a new message observer.
func NewMessageObserver(cfg MessageObserverConfig) *MessageObserver {
	if cfg.Collector == nil {
		cfg.Collector = Global()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = GetTracer()
	}
	if cfg.Logger == nil {
		cfg.Logger = GetLogger()
	}

	return &MessageObserver{
		collector: cfg.Collector,
		tracer:    cfg.Tracer,
		logger:    cfg.Logger.Named("messaging"),
	}
}

// OnEncrypt starts an encrypt span. The returned function records latency
// and the sealed message count.
func (o *MessageObserver) OnEncrypt(ctx context.Context, m mode.Mode, payloadLen int) (context.Context, func(error)) {
	start := time.Now()
	ctx, endSpan := o.tracer.StartSpan(ctx, SpanMessageEncrypt, WithAttributes(
		AttrCryptoMode.String(m.String()),
		AttrPayloadBytes.Int(payloadLen),
	))

	return ctx, func(err error) {
		o.collector.RecordEncryptLatency(time.Since(start))
		if err != nil {
			o.logger.Debug("encrypt failed", Fields{"mode": m.String(), "error": err})
		} else {
			o.collector.RecordMessageSealed(m, payloadLen)
		}
		endSpan(err)
	}
}

// OnDecrypt starts a decrypt span. The returned function records latency
// and classifies the outcome.
func (o *MessageObserver) OnDecrypt(ctx context.Context, m mode.Mode, inboxID string) (context.Context, func(plaintextLen int, err error)) {
	start := time.Now()
	ctx, endSpan := o.tracer.StartSpan(ctx, SpanMessageDecrypt, WithAttributes(
		AttrCryptoMode.String(m.String()),
		AttrInbox.String(FingerprintString(inboxID)),
	))

	return ctx, func(plaintextLen int, err error) {
		o.collector.RecordDecryptLatency(time.Since(start))
		switch {
		case err == nil:
			o.collector.RecordMessageOpened(m, plaintextLen)
		case qerrors.Classify(err) == qerrors.CategoryPolicy:
			o.collector.RecordPolicyRejection()
		case qerrors.Is(err, qerrors.ErrSignatureVerification):
			o.collector.RecordVerifyFailure()
		default:
			o.collector.RecordDecryptFailure()
		}
		endSpan(err)
	}
}

// OnKeyGeneration returns a function that records a key generation in mode m.
func (o *MessageObserver) OnKeyGeneration(m mode.Mode) func(error) {
	start := time.Now()
	return func(err error) {
		if err != nil {
			o.logger.Error("key generation failed", Fields{"mode": m.String(), "error": err})
			return
		}
		o.collector.RecordKeyGeneration(m, time.Since(start))
	}
}

// OnSkipped logs an envelope dropped by a receive loop. Only the inbox
// identifier and the error are logged.
func (o *MessageObserver) OnSkipped(inboxID string, err error) {
	o.logger.Warn("skipping undecryptable message", Fields{
		"inbox_id": inboxID,
		"error":    err,
	})
}
