package relay

import (
	"sync"
	"time"
)

// InboxLimiter limits the rate of envelopes stored per inbox using a token
// bucket for each inbox.
type InboxLimiter struct {
	mu      sync.Mutex
	rate    float64 // Tokens per second
	burst   int     // Max bucket size
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewInboxLimiter creates a new InboxLimiter. A rate of zero or less
// disables limiting.
func NewInboxLimiter(rate float64, burst int) *InboxLimiter {
	return &InboxLimiter{
		rate:    rate,
		burst:   burst,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow checks if another envelope may be stored for inboxID (consumes 1
// token).
func (l *InboxLimiter) Allow(inboxID string) bool {
	if l.rate <= 0 {
		return true // No limit
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[inboxID]
	if !ok {
		b = &bucket{tokens: float64(l.burst), lastRefill: now}
		l.buckets[inboxID] = b
	}

	// Refill tokens
	b.tokens += now.Sub(b.lastRefill).Seconds() * l.rate
	if b.tokens > float64(l.burst) {
		b.tokens = float64(l.burst)
	}
	b.lastRefill = now

	// Consume token
	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		return true
	}
	return false
}

// Prune drops the buckets that have refilled completely, which behave the
// same as a new bucket. It returns the number dropped.
func (l *InboxLimiter) Prune() int {
	if l.rate <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for id, b := range l.buckets {
		if b.tokens+now.Sub(b.lastRefill).Seconds()*l.rate >= float64(l.burst) {
			delete(l.buckets, id) // Cleanup to prevent map growth
			n++
		}
	}
	return n
}

// Len returns the number of tracked inboxes.
func (l *InboxLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
