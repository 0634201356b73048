package metrics

import (
	"context"

	"github.com/pzverkov/quantum-messenger/pkg/mode"
)

// RelayObserver records relay admission decisions.
type RelayObserver struct {
	collector *Collector
	tracer    Tracer
	logger    *Logger
}

// NewRelayObserver creates a relay observer that records metrics and logs
// events. Nil arguments fall back to the globals.
func NewRelayObserver(collector *Collector, tracer Tracer, logger *Logger) *RelayObserver {
	if collector == nil {
		collector = Global()
	}
	if tracer == nil {
		tracer = GetTracer()
	}
	if logger == nil {
		logger = GetLogger()
	}

	return &RelayObserver{
		collector: collector,
		tracer:    tracer,
		logger:    logger.Named("relay"),
	}
}

// OnHandle starts a span around one relay request.
func (o *RelayObserver) OnHandle(ctx context.Context, msgType string) (context.Context, func(error)) {
	ctx, endSpan := o.tracer.StartSpan(ctx, SpanRelayHandle,
		WithSpanKind(SpanKindServer),
		WithAttributes(AttrMessageType.String(msgType)))
	return ctx, func(err error) {
		if err != nil {
			o.collector.RecordProtocolError()
			o.logger.Debug("request failed", Fields{"type": msgType, "error": err})
		}
		endSpan(err)
	}
}

// OnStored records an envelope accepted into a mailbox.
func (o *RelayObserver) OnStored(inboxID string, m mode.Mode) {
	o.collector.RecordEnvelopeStored()
	o.logger.Debug("envelope stored", Fields{"inbox_id": inboxID, "mode": m.String()})
}

// OnPolicyRejection records an envelope refused by the mode policy.
func (o *RelayObserver) OnPolicyRejection(inboxID string, m mode.Mode, err error) {
	o.collector.RecordPolicyRejection()
	o.logger.Warn("envelope rejected by crypto policy", Fields{
		"inbox_id": inboxID,
		"mode":     m.String(),
		"error":    err,
	})
}

// OnRateLimited records an envelope refused by the per-inbox limiter.
func (o *RelayObserver) OnRateLimited(inboxID string) {
	o.collector.RecordRateLimited()
	o.logger.Warn("inbox rate limit exceeded", Fields{"inbox_id": inboxID})
}

// OnFetched records n envelopes delivered from a mailbox.
func (o *RelayObserver) OnFetched(inboxID string, n int) {
	o.collector.RecordEnvelopesFetched(n)
	if n > 0 {
		o.logger.Debug("envelopes fetched", Fields{"inbox_id": inboxID, "count": n})
	}
}

// OnExpired records n envelopes dropped by an expiry sweep.
func (o *RelayObserver) OnExpired(n int) {
	if n == 0 {
		return
	}
	o.collector.RecordExpired(n)
	o.logger.Info("expired envelopes swept", Fields{"count": n})
}

// OnClaimPublished records an accepted username claim.
func (o *RelayObserver) OnClaimPublished(username string) {
	o.collector.RecordClaimPublished()
	o.logger.Info("username claim published", Fields{"username": username})
}
