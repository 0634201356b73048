package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pzverkov/quantum-messenger/pkg/mode"
)

// Collector aggregates metrics from the messaging client and the relay.
type Collector struct {
	// Messaging metrics, indexed by mode
	messagesSealed [modeSlots]atomic.Uint64
	messagesOpened [modeSlots]atomic.Uint64
	keyPairs       [modeSlots]atomic.Uint64
	bytesSealed    atomic.Uint64
	bytesOpened    atomic.Uint64

	// Security metrics
	policyRejections atomic.Uint64
	rateLimited      atomic.Uint64
	decryptFailures  atomic.Uint64
	verifyFailures   atomic.Uint64
	expiredDropped   atomic.Uint64

	// Relay metrics
	envelopesStored  atomic.Uint64
	envelopesFetched atomic.Uint64
	claimsPublished  atomic.Uint64
	protocolErrors   atomic.Uint64

	// Performance histograms
	encryptLatency *Histogram
	decryptLatency *Histogram
	keyGenLatency  *Histogram

	createdAt time.Time
	labels    Labels
}

// modeSlots is one more than the highest mode so out-of-range values land
// in a slot that is never exported.
const modeSlots = int(mode.Quantum) + 2

// Labels represents key-value pairs for metric labeling.
type Labels map[string]string

// NewCollector creates a new metrics collector.
func NewCollector(labels Labels) *Collector {
	if labels == nil {
		labels = make(Labels)
	}

	return &Collector{
		encryptLatency: NewHistogram(LatencyBuckets),
		decryptLatency: NewHistogram(LatencyBuckets),
		keyGenLatency:  NewHistogram(KeyGenLatencyBuckets),
		createdAt:      time.Now(),
		labels:         labels,
	}
}

// Default bucket configurations for histograms.
var (
	// LatencyBuckets for message encrypt/decrypt operations (microseconds).
	LatencyBuckets = []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

	// KeyGenLatencyBuckets for key pair generation (microseconds).
	KeyGenLatencyBuckets = []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 25000}
)

func slot(m mode.Mode) int {
	if !m.Valid() {
		return modeSlots - 1
	}
	return int(m)
}

// --- Messaging Metrics ---

// RecordMessageSealed counts an outgoing envelope of n payload bytes.
func (c *Collector) RecordMessageSealed(m mode.Mode, n int) {
	c.messagesSealed[slot(m)].Add(1)
	c.bytesSealed.Add(uint64(n))
}

// RecordMessageOpened counts a decrypted and verified envelope.
func (c *Collector) RecordMessageOpened(m mode.Mode, n int) {
	c.messagesOpened[slot(m)].Add(1)
	c.bytesOpened.Add(uint64(n))
}

// RecordKeyGeneration counts a key pair generated in mode m.
func (c *Collector) RecordKeyGeneration(m mode.Mode, d time.Duration) {
	c.keyPairs[slot(m)].Add(1)
	c.keyGenLatency.ObserveDuration(d)
}

// --- Security Metrics ---

// RecordPolicyRejection counts an envelope refused by the mode policy.
func (c *Collector) RecordPolicyRejection() {
	c.policyRejections.Add(1)
}

// RecordRateLimited counts an envelope refused by the relay limiter.
func (c *Collector) RecordRateLimited() {
	c.rateLimited.Add(1)
}

// RecordDecryptFailure counts a message that could not be decrypted.
func (c *Collector) RecordDecryptFailure() {
	c.decryptFailures.Add(1)
}

// RecordVerifyFailure counts a message whose signature did not verify.
func (c *Collector) RecordVerifyFailure() {
	c.verifyFailures.Add(1)
}

// RecordExpired adds n envelopes dropped after their expiry.
func (c *Collector) RecordExpired(n int) {
	c.expiredDropped.Add(uint64(n))
}

// --- Relay Metrics ---

// RecordEnvelopeStored counts an envelope accepted into a mailbox.
func (c *Collector) RecordEnvelopeStored() {
	c.envelopesStored.Add(1)
}

// RecordEnvelopesFetched adds n envelopes handed out by fetch requests.
func (c *Collector) RecordEnvelopesFetched(n int) {
	c.envelopesFetched.Add(uint64(n))
}

// RecordClaimPublished counts an accepted username claim.
func (c *Collector) RecordClaimPublished() {
	c.claimsPublished.Add(1)
}

// RecordProtocolError counts a malformed or unsupported relay message.
func (c *Collector) RecordProtocolError() {
	c.protocolErrors.Add(1)
}

// --- Performance Metrics ---

// RecordEncryptLatency records message encryption latency.
func (c *Collector) RecordEncryptLatency(d time.Duration) {
	c.encryptLatency.ObserveDuration(d)
}

// RecordDecryptLatency records message decryption latency.
func (c *Collector) RecordDecryptLatency(d time.Duration) {
	c.decryptLatency.ObserveDuration(d)
}

// --- Snapshot ---

// ModeCounts holds one counter per crypto mode.
type ModeCounts struct {
	Classical uint64
	Hybrid    uint64
	Quantum   uint64
}

// Total sums the per-mode counts.
func (m ModeCounts) Total() uint64 {
	return m.Classical + m.Hybrid + m.Quantum
}

// Get returns the count for mode m.
func (m ModeCounts) Get(md mode.Mode) uint64 {
	switch md {
	case mode.Classical:
		return m.Classical
	case mode.Hybrid:
		return m.Hybrid
	case mode.Quantum:
		return m.Quantum
	}
	return 0
}

func loadModeCounts(a *[modeSlots]atomic.Uint64) ModeCounts {
	return ModeCounts{
		Classical: a[mode.Classical].Load(),
		Hybrid:    a[mode.Hybrid].Load(),
		Quantum:   a[mode.Quantum].Load(),
	}
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	Timestamp time.Time
	Uptime    time.Duration

	// Messaging metrics
	MessagesSealed ModeCounts
	MessagesOpened ModeCounts
	KeyPairs       ModeCounts
	BytesSealed    uint64
	BytesOpened    uint64

	// Security metrics
	PolicyRejections uint64
	RateLimited      uint64
	DecryptFailures  uint64
	VerifyFailures   uint64
	ExpiredDropped   uint64

	// Relay metrics
	EnvelopesStored  uint64
	EnvelopesFetched uint64
	ClaimsPublished  uint64
	ProtocolErrors   uint64

	// Histogram summaries
	EncryptLatency HistogramSummary
	DecryptLatency HistogramSummary
	KeyGenLatency  HistogramSummary

	Labels Labels
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Timestamp:        time.Now(),
		Uptime:           time.Since(c.createdAt),
		MessagesSealed:   loadModeCounts(&c.messagesSealed),
		MessagesOpened:   loadModeCounts(&c.messagesOpened),
		KeyPairs:         loadModeCounts(&c.keyPairs),
		BytesSealed:      c.bytesSealed.Load(),
		BytesOpened:      c.bytesOpened.Load(),
		PolicyRejections: c.policyRejections.Load(),
		RateLimited:      c.rateLimited.Load(),
		DecryptFailures:  c.decryptFailures.Load(),
		VerifyFailures:   c.verifyFailures.Load(),
		ExpiredDropped:   c.expiredDropped.Load(),
		EnvelopesStored:  c.envelopesStored.Load(),
		EnvelopesFetched: c.envelopesFetched.Load(),
		ClaimsPublished:  c.claimsPublished.Load(),
		ProtocolErrors:   c.protocolErrors.Load(),
		EncryptLatency:   c.encryptLatency.Summary(),
		DecryptLatency:   c.decryptLatency.Summary(),
		KeyGenLatency:    c.keyGenLatency.Summary(),
		Labels:           c.labels,
	}
}

// Reset clears all metrics (useful for testing).
func (c *Collector) Reset() {
	for i := 0; i < modeSlots; i++ {
		c.messagesSealed[i].Store(0)
		c.messagesOpened[i].Store(0)
		c.keyPairs[i].Store(0)
	}
	c.bytesSealed.Store(0)
	c.bytesOpened.Store(0)
	c.policyRejections.Store(0)
	c.rateLimited.Store(0)
	c.decryptFailures.Store(0)
	c.verifyFailures.Store(0)
	c.expiredDropped.Store(0)
	c.envelopesStored.Store(0)
	c.envelopesFetched.Store(0)
	c.claimsPublished.Store(0)
	c.protocolErrors.Store(0)
	c.encryptLatency.Reset()
	c.decryptLatency.Reset()
	c.keyGenLatency.Reset()
	c.createdAt = time.Now()
}

// --- Global Collector ---

var (
	globalCollector     *Collector
	globalCollectorOnce sync.Once
	globalCollectorMu   sync.RWMutex
)

// Global returns the global metrics collector.
// Creates one with default settings if not already initialized.
func Global() *Collector {
	globalCollectorOnce.Do(func() {
		globalCollectorMu.Lock()
		if globalCollector == nil {
			globalCollector = NewCollector(Labels{"instance": "default"})
		}
		globalCollectorMu.Unlock()
	})
	globalCollectorMu.RLock()
	defer globalCollectorMu.RUnlock()
	return globalCollector
}

// SetGlobal sets the global metrics collector.
// Should be called during initialization before any metrics are recorded.
func SetGlobal(c *Collector) {
	globalCollectorMu.Lock()
	defer globalCollectorMu.Unlock()
	globalCollector = c
}
