// Package relay implements a mailbox relay for messenger envelopes.
//
// The relay never sees plaintext. It stores envelopes under their inbox
// identifiers, hands them out on request, and publishes username claims.
// Mailboxes live in memory unless a persistent Mailboxes store is supplied
// with WithMailboxes.
// Before an envelope is stored it must pass admission:
//
//   - the envelope is well formed and not expired;
//   - its crypto mode meets the relay's minimum mode;
//   - its inbox is within the per-inbox rate limit.
//
// Rejections are answered with a protocol error message carrying the
// reason, and are counted by the observer.
package relay

import (
	"context"
	"fmt"
	"time"

	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
	"github.com/pzverkov/quantum-messenger/pkg/messaging"
	"github.com/pzverkov/quantum-messenger/pkg/metrics"
	"github.com/pzverkov/quantum-messenger/pkg/mode"
	"github.com/pzverkov/quantum-messenger/pkg/protocol"
	"github.com/pzverkov/quantum-messenger/pkg/unified"
)

// Observer provides hooks for relay admission, metrics, and tracing.
type Observer interface {
	OnHandle(ctx context.Context, msgType string) (context.Context, func(error))
	OnStored(inboxID string, m mode.Mode)
	OnPolicyRejection(inboxID string, m mode.Mode, err error)
	OnRateLimited(inboxID string)
	OnFetched(inboxID string, n int)
	OnExpired(n int)
	OnClaimPublished(username string)
}

var _ Observer = (*metrics.RelayObserver)(nil)

type nopObserver struct{}

func (nopObserver) OnHandle(ctx context.Context, _ string) (context.Context, func(error)) {
	return ctx, func(error) {}
}
func (nopObserver) OnStored(string, mode.Mode)                 {}
func (nopObserver) OnPolicyRejection(string, mode.Mode, error) {}
func (nopObserver) OnRateLimited(string)                       {}
func (nopObserver) OnFetched(string, int)                      {}
func (nopObserver) OnExpired(int)                              {}
func (nopObserver) OnClaimPublished(string)                    {}

// Config holds relay configuration.
type Config struct {
	// Policy sets the weakest crypto mode admitted. Only MinimumMode is
	// consulted.
	Policy mode.Config

	// MaxMessagesPerInbox caps each mailbox. The oldest envelope is dropped
	// when a new one would exceed it.
	MaxMessagesPerInbox int

	// MessageTTL is how long an envelope is kept after it was stored,
	// independent of its own expiry.
	MessageTTL time.Duration

	// InboxRate and InboxBurst configure the per-inbox token bucket.
	// A rate of zero disables limiting.
	InboxRate  float64
	InboxBurst int

	// LegacyReplies answers fetch_inbox with inbox_messages carrying v1.1
	// envelopes. Envelopes that cannot be downgraded are left out.
	LegacyReplies bool
}

// DefaultConfig returns the default relay configuration.
func DefaultConfig() Config {
	return Config{
		Policy:              mode.DefaultConfig(),
		MaxMessagesPerInbox: 100,
		MessageTTL:          24 * time.Hour,
		InboxRate:           10,
		InboxBurst:          20,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	if c.MaxMessagesPerInbox <= 0 {
		return fmt.Errorf("%w: max messages per inbox must be positive", qerrors.ErrInvalidConfig)
	}
	if c.MessageTTL <= 0 {
		return fmt.Errorf("%w: message TTL must be positive", qerrors.ErrInvalidConfig)
	}
	if c.InboxRate > 0 && c.InboxBurst < 1 {
		return fmt.Errorf("%w: inbox burst must be at least 1", qerrors.ErrInvalidConfig)
	}
	return nil
}

// Relay is a mailbox relay. It is safe for concurrent use.
type Relay struct {
	config    Config
	observer  Observer
	now       func() time.Time
	mailboxes Mailboxes

	registry *Registry
	limiter  *InboxLimiter
}

// Option configures a Relay.
type Option func(*Relay)

// WithObserver sets the observer. The default records nothing.
func WithObserver(o Observer) Option {
	return func(r *Relay) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithClock replaces time.Now for expiry and rate limiting.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) {
		if now != nil {
			r.now = now
		}
	}
}

// WithMailboxes stores envelopes in m instead of memory. The relay closes m
// on Close.
func WithMailboxes(m Mailboxes) Option {
	return func(r *Relay) {
		if m != nil {
			r.mailboxes = m
		}
	}
}

// New creates a relay.
func New(cfg Config, opts ...Option) (*Relay, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Relay{
		config:    cfg,
		observer:  nopObserver{},
		now:       time.Now,
		mailboxes: NewMemoryMailboxes(),
		registry:  NewRegistry(),
		limiter:   NewInboxLimiter(cfg.InboxRate, cfg.InboxBurst),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.limiter.now = r.now
	return r, nil
}

// Config returns the relay configuration.
func (r *Relay) Config() Config {
	return r.config
}

// Registry returns the username registry.
func (r *Relay) Registry() *Registry {
	return r.registry
}

// Handle processes one client message and returns the reply. Failures are
// returned as *protocol.Error replies.
func (r *Relay) Handle(ctx context.Context, msg protocol.Message) protocol.Message {
	if msg == nil {
		return protocol.NewError(qerrors.ErrInvalidMessage)
	}

	_, done := r.observer.OnHandle(ctx, string(msg.Type()))
	reply, err := r.dispatch(msg)
	done(err)
	if err != nil {
		return protocol.NewError(err)
	}
	return reply
}

func (r *Relay) dispatch(msg protocol.Message) (protocol.Message, error) {
	switch m := msg.(type) {
	case *protocol.SendQuantumMessage:
		return r.handleSend(m.Envelope)
	case protocol.SendQuantumMessage:
		return r.handleSend(m.Envelope)
	case *protocol.SendMessage:
		return r.handleSend(messaging.UpgradeLegacyEnvelope(m.Envelope))
	case protocol.SendMessage:
		return r.handleSend(messaging.UpgradeLegacyEnvelope(m.Envelope))
	case *protocol.FetchInbox:
		return r.handleFetch(m.InboxID)
	case protocol.FetchInbox:
		return r.handleFetch(m.InboxID)
	case *protocol.PublishClaim:
		return r.handlePublishClaim(m.Claim)
	case protocol.PublishClaim:
		return r.handlePublishClaim(m.Claim)
	case *protocol.LookupUsername:
		return r.handleLookup(m.Username), nil
	case protocol.LookupUsername:
		return r.handleLookup(m.Username), nil
	default:
		return nil, fmt.Errorf("%w: unsupported message type %q", qerrors.ErrInvalidMessage, msg.Type())
	}
}

func (r *Relay) handleSend(env messaging.Envelope) (protocol.Message, error) {
	if err := r.Store(env); err != nil {
		return nil, err
	}
	return &protocol.Success{Message: "Message delivered"}, nil
}

func (r *Relay) handleFetch(inboxID string) (protocol.Message, error) {
	if inboxID == "" {
		return nil, fmt.Errorf("%w: inbox ID cannot be empty", qerrors.ErrInvalidMessage)
	}
	envelopes, err := r.Fetch(inboxID)
	if err != nil {
		return nil, err
	}
	if !r.config.LegacyReplies {
		return &protocol.QuantumInboxMessages{Messages: envelopes}, nil
	}

	legacy := make([]messaging.LegacyEnvelope, 0, len(envelopes))
	for _, env := range envelopes {
		l, err := messaging.DowngradeToLegacy(env)
		if err != nil {
			continue
		}
		legacy = append(legacy, l)
	}
	return &protocol.InboxMessages{Messages: legacy}, nil
}

func (r *Relay) handlePublishClaim(claim *messaging.UsernameClaim) (protocol.Message, error) {
	if err := r.PublishClaim(claim); err != nil {
		return nil, err
	}
	return &protocol.Success{Message: fmt.Sprintf("Username '%s' claimed successfully", claim.Username)}, nil
}

func (r *Relay) handleLookup(username string) protocol.Message {
	keys, _ := r.registry.Lookup(username)
	return &protocol.UsernameResult{Username: username, PublicKeys: keys}
}

// Store admits env into its inbox. It fails with ErrExpired for an expired
// envelope, a PolicyError wrapping ErrModeNotAccepted for a mode below the
// minimum, and ErrRateLimited when the inbox is over its rate.
func (r *Relay) Store(env messaging.Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	now := r.now()
	if env.IsExpiredAt(now) {
		return qerrors.ErrExpired
	}
	if err := r.config.Policy.CheckIncoming("relay.Store", env.CryptoMode); err != nil {
		r.observer.OnPolicyRejection(env.InboxID, env.CryptoMode, err)
		return err
	}
	if !r.limiter.Allow(env.InboxID) {
		r.observer.OnRateLimited(env.InboxID)
		return fmt.Errorf("%w: inbox %s", qerrors.ErrRateLimited, metrics.FingerprintString(env.InboxID))
	}

	rec := Record{Envelope: env, StoredAt: now}
	if err := r.mailboxes.Append(env.InboxID, rec, r.config.MaxMessagesPerInbox); err != nil {
		return fmt.Errorf("relay: store: %w", err)
	}

	r.observer.OnStored(env.InboxID, env.CryptoMode)
	return nil
}

// Fetch returns the unexpired envelopes held for inboxID, oldest first.
// The envelopes stay in the mailbox.
func (r *Relay) Fetch(inboxID string) ([]messaging.Envelope, error) {
	box, err := r.mailboxes.List(inboxID)
	if err != nil {
		return nil, fmt.Errorf("relay: fetch: %w", err)
	}

	now := r.now()
	out := make([]messaging.Envelope, 0, len(box))
	for _, rec := range box {
		if !rec.expired(now, r.config.MessageTTL) {
			out = append(out, rec.Envelope)
		}
	}

	r.observer.OnFetched(inboxID, len(out))
	return out, nil
}

// PublishClaim verifies claim and records it in the registry.
func (r *Relay) PublishClaim(claim *messaging.UsernameClaim) error {
	if err := r.registry.Register(claim); err != nil {
		return err
	}
	r.observer.OnClaimPublished(claim.Username)
	return nil
}

// Lookup returns the public keys bound to username.
func (r *Relay) Lookup(username string) (*unified.PublicKeys, bool) {
	return r.registry.Lookup(username)
}

// Sweep removes expired envelopes and empty mailboxes. It returns the number
// of envelopes removed.
func (r *Relay) Sweep() (int, error) {
	now := r.now()
	removed, err := r.mailboxes.Sweep(func(rec Record) bool {
		return rec.expired(now, r.config.MessageTTL)
	})
	r.limiter.Prune()
	r.observer.OnExpired(removed)
	if err != nil {
		return removed, fmt.Errorf("relay: sweep: %w", err)
	}
	return removed, nil
}

// Run sweeps every interval until ctx is done or a sweep fails. The
// interval must be positive.
func (r *Relay) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: sweep interval %v", qerrors.ErrInvalidConfig, interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Sweep(); err != nil {
				return err
			}
		}
	}
}

// Stats is a point-in-time view of relay contents.
type Stats struct {
	Inboxes   int `json:"inboxes"`
	Envelopes int `json:"envelopes"`
	Usernames int `json:"usernames"`
}

// Stats returns the current relay contents.
func (r *Relay) Stats() (Stats, error) {
	inboxes, envelopes, err := r.mailboxes.Count()
	if err != nil {
		return Stats{}, fmt.Errorf("relay: stats: %w", err)
	}
	return Stats{Inboxes: inboxes, Envelopes: envelopes, Usernames: r.registry.Len()}, nil
}

// Close releases the mailbox store.
func (r *Relay) Close() error {
	return r.mailboxes.Close()
}
