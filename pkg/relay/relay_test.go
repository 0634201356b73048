package relay_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
	"github.com/pzverkov/quantum-messenger/pkg/messaging"
	"github.com/pzverkov/quantum-messenger/pkg/metrics"
	"github.com/pzverkov/quantum-messenger/pkg/mode"
	"github.com/pzverkov/quantum-messenger/pkg/protocol"
	"github.com/pzverkov/quantum-messenger/pkg/relay"
	"github.com/pzverkov/quantum-messenger/pkg/unified"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newRelay(t *testing.T, cfg relay.Config, opts ...relay.Option) *relay.Relay {
	t.Helper()
	r, err := relay.New(cfg, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r
}

func fetch(t *testing.T, r *relay.Relay, inboxID string) []messaging.Envelope {
	t.Helper()
	envs, err := r.Fetch(inboxID)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	return envs
}

func sweep(t *testing.T, r *relay.Relay) int {
	t.Helper()
	n, err := r.Sweep()
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	return n
}

func stats(t *testing.T, r *relay.Relay) relay.Stats {
	t.Helper()
	s, err := r.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	return s
}

func observedRelay(t *testing.T, cfg relay.Config, logOut *bytes.Buffer, opts ...relay.Option) (*relay.Relay, *metrics.Collector) {
	t.Helper()
	logger := metrics.NullLogger()
	if logOut != nil {
		logger = metrics.TestLogger(logOut)
	}
	collector := metrics.NewCollector(nil)
	obs := metrics.NewRelayObserver(collector, metrics.NoOpTracer{}, logger)
	return newRelay(t, cfg, append(opts, relay.WithObserver(obs))...), collector
}

func mustKeyPair(t *testing.T, m mode.Mode) *unified.KeyPair {
	t.Helper()
	kp, err := unified.GenerateKeyPair(m)
	if err != nil {
		t.Fatalf("GenerateKeyPair(%s) failed: %v", m, err)
	}
	return kp
}

func envelope(m mode.Mode, inboxID string, payload string) messaging.Envelope {
	return messaging.NewEnvelope(m, inboxID, []byte(payload))
}

func expectSuccess(t *testing.T, reply protocol.Message) {
	t.Helper()
	if e, ok := reply.(*protocol.Error); ok {
		t.Fatalf("expected success, got error reply: %s", e.Message)
	}
	if _, ok := reply.(*protocol.Success); !ok {
		t.Fatalf("expected success, got %T", reply)
	}
}

func expectError(t *testing.T, reply protocol.Message, contains string) {
	t.Helper()
	e, ok := reply.(*protocol.Error)
	if !ok {
		t.Fatalf("expected error reply, got %T", reply)
	}
	if !strings.Contains(e.Message, contains) {
		t.Errorf("error reply %q does not mention %q", e.Message, contains)
	}
}

// --- Config Tests ---

func TestNewInvalidConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*relay.Config)
	}{
		{"zero capacity", func(c *relay.Config) { c.MaxMessagesPerInbox = 0 }},
		{"zero ttl", func(c *relay.Config) { c.MessageTTL = 0 }},
		{"zero burst", func(c *relay.Config) { c.InboxBurst = 0 }},
		{"policy below minimum", func(c *relay.Config) {
			c.Policy = mode.Config{Mode: mode.Classical, MinimumMode: mode.Hybrid}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := relay.DefaultConfig()
			tc.mutate(&cfg)
			if _, err := relay.New(cfg); !errors.Is(err, qerrors.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	cfg := relay.DefaultConfig()
	cfg.InboxRate = 0
	cfg.InboxBurst = 0
	if _, err := relay.New(cfg); err != nil {
		t.Errorf("disabled limiter rejected: %v", err)
	}
}

// --- Delivery Tests ---

func TestSendAndFetch(t *testing.T) {
	r, collector := observedRelay(t, relay.DefaultConfig(), nil)
	ctx := context.Background()

	for _, m := range mode.All() {
		expectSuccess(t, r.Handle(ctx, &protocol.SendQuantumMessage{Envelope: envelope(m, "inbox-a", m.String())}))
	}

	got := fetch(t, r, "inbox-a")
	if len(got) != 3 {
		t.Fatalf("fetched %d envelopes, want 3", len(got))
	}
	for i, m := range mode.All() {
		if got[i].CryptoMode != m {
			t.Errorf("envelope %d: mode %s, want %s", i, got[i].CryptoMode, m)
		}
	}

	// Fetching does not drain the mailbox.
	if again := fetch(t, r, "inbox-a"); len(again) != 3 {
		t.Errorf("second fetch returned %d envelopes", len(again))
	}
	if empty := fetch(t, r, "inbox-unknown"); len(empty) != 0 {
		t.Errorf("unknown inbox returned %d envelopes", len(empty))
	}

	snap := collector.Snapshot()
	if snap.EnvelopesStored != 3 {
		t.Errorf("EnvelopesStored = %d, want 3", snap.EnvelopesStored)
	}
	if snap.EnvelopesFetched != 6 {
		t.Errorf("EnvelopesFetched = %d, want 6", snap.EnvelopesFetched)
	}
}

func TestMailboxCapacity(t *testing.T) {
	cfg := relay.DefaultConfig()
	cfg.MaxMessagesPerInbox = 3
	cfg.InboxRate = 0
	r := newRelay(t, cfg)

	for i := 0; i < 5; i++ {
		if err := r.Store(envelope(mode.Classical, "inbox", fmt.Sprintf("m%d", i))); err != nil {
			t.Fatalf("Store failed: %v", err)
		}
	}

	got := fetch(t, r, "inbox")
	if len(got) != 3 {
		t.Fatalf("mailbox holds %d envelopes, want 3", len(got))
	}
	for i, want := range []string{"m2", "m3", "m4"} {
		payload, err := got[i].DecodePayload()
		if err != nil {
			t.Fatalf("DecodePayload failed: %v", err)
		}
		if string(payload) != want {
			t.Errorf("envelope %d = %q, want %q", i, payload, want)
		}
	}
}

func TestRejectExpired(t *testing.T) {
	clock := newFakeClock()
	r := newRelay(t, relay.DefaultConfig(), relay.WithClock(clock.Now))

	stale := envelope(mode.Hybrid, "inbox", "old").WithExpiry(clock.Now().Add(-time.Minute))
	if err := r.Store(stale); !errors.Is(err, qerrors.ErrExpired) {
		t.Errorf("expected ErrExpired, got %v", err)
	}
	expectError(t, r.Handle(context.Background(), &protocol.SendQuantumMessage{Envelope: stale}), "expired")
}

func TestRejectMalformed(t *testing.T) {
	r := newRelay(t, relay.DefaultConfig())
	ctx := context.Background()

	bad := envelope(mode.Classical, "", "x")
	if err := r.Store(bad); !errors.Is(err, qerrors.ErrInvalidMessage) {
		t.Errorf("expected ErrInvalidMessage, got %v", err)
	}
	expectError(t, r.Handle(ctx, &protocol.FetchInbox{}), "inbox ID")
	expectError(t, r.Handle(ctx, &protocol.Success{Message: "hi"}), "unsupported message type")
	expectError(t, r.Handle(ctx, nil), "invalid message")
}

// --- Admission Policy Tests ---

func TestPolicyRejection(t *testing.T) {
	var logs bytes.Buffer
	cfg := relay.DefaultConfig()
	cfg.Policy = mode.HighSecurityConfig()
	r, collector := observedRelay(t, cfg, &logs)
	ctx := context.Background()

	reply := r.Handle(ctx, &protocol.SendQuantumMessage{Envelope: envelope(mode.Classical, "inbox", "weak")})
	expectError(t, reply, qerrors.ErrModeNotAccepted.Error())

	err := r.Store(envelope(mode.Classical, "inbox", "weak"))
	var policyErr *qerrors.PolicyError
	if !errors.As(err, &policyErr) {
		t.Fatalf("expected PolicyError, got %v", err)
	}
	if policyErr.Minimum != "hybrid" {
		t.Errorf("PolicyError.Minimum = %q", policyErr.Minimum)
	}
	if qerrors.Classify(err) != qerrors.CategoryPolicy {
		t.Errorf("Classify = %s", qerrors.Classify(err))
	}

	expectSuccess(t, r.Handle(ctx, &protocol.SendQuantumMessage{Envelope: envelope(mode.Hybrid, "inbox", "ok")}))
	expectSuccess(t, r.Handle(ctx, &protocol.SendQuantumMessage{Envelope: envelope(mode.Quantum, "inbox", "ok")}))

	snap := collector.Snapshot()
	if snap.PolicyRejections != 2 {
		t.Errorf("PolicyRejections = %d, want 2", snap.PolicyRejections)
	}
	if snap.EnvelopesStored != 2 {
		t.Errorf("EnvelopesStored = %d, want 2", snap.EnvelopesStored)
	}
	if snap.ProtocolErrors != 1 {
		t.Errorf("ProtocolErrors = %d, want 1", snap.ProtocolErrors)
	}
	if !strings.Contains(logs.String(), "envelope rejected by crypto policy") {
		t.Errorf("policy rejection not logged: %s", logs.String())
	}
}

func TestLegacyEnvelopeAdmission(t *testing.T) {
	ctx := context.Background()
	legacy := messaging.NewLegacyEnvelope("inbox", []byte("old client"))

	r := newRelay(t, relay.DefaultConfig())
	expectSuccess(t, r.Handle(ctx, &protocol.SendMessage{Envelope: legacy}))

	got := fetch(t, r, "inbox")
	if len(got) != 1 {
		t.Fatalf("fetched %d envelopes", len(got))
	}
	if got[0].CryptoMode != mode.Classical || !got[0].IsLegacyCompat() {
		t.Errorf("legacy envelope stored as %s, legacy compat %v", got[0].CryptoMode, got[0].IsLegacyCompat())
	}

	cfg := relay.DefaultConfig()
	cfg.Policy = mode.HighSecurityConfig()
	strict := newRelay(t, cfg)
	expectError(t, strict.Handle(ctx, &protocol.SendMessage{Envelope: legacy}), qerrors.ErrModeNotAccepted.Error())
}

func TestLegacyReplies(t *testing.T) {
	cfg := relay.DefaultConfig()
	cfg.LegacyReplies = true
	r := newRelay(t, cfg)

	for _, m := range mode.All() {
		if err := r.Store(envelope(m, "inbox", m.String())); err != nil {
			t.Fatalf("Store failed: %v", err)
		}
	}

	reply := r.Handle(context.Background(), &protocol.FetchInbox{InboxID: "inbox"})
	msgs, ok := reply.(*protocol.InboxMessages)
	if !ok {
		t.Fatalf("expected inbox_messages, got %T", reply)
	}
	if len(msgs.Messages) != 1 {
		t.Fatalf("got %d legacy envelopes, want only the classical one", len(msgs.Messages))
	}
	if msgs.Messages[0].Version != "1.1" {
		t.Errorf("version = %q", msgs.Messages[0].Version)
	}
}

// --- Rate Limit Tests ---

func TestInboxRateLimit(t *testing.T) {
	clock := newFakeClock()
	cfg := relay.DefaultConfig()
	cfg.InboxRate = 1
	cfg.InboxBurst = 2
	r, collector := observedRelay(t, cfg, nil, relay.WithClock(clock.Now))

	for i := 0; i < 2; i++ {
		if err := r.Store(envelope(mode.Classical, "busy", "x")); err != nil {
			t.Fatalf("Store %d failed: %v", i, err)
		}
	}
	if err := r.Store(envelope(mode.Classical, "busy", "x")); !errors.Is(err, qerrors.ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
	if err := r.Store(envelope(mode.Classical, "quiet", "x")); err != nil {
		t.Errorf("other inbox limited: %v", err)
	}

	clock.Advance(time.Second)
	if err := r.Store(envelope(mode.Classical, "busy", "x")); err != nil {
		t.Errorf("Store after refill failed: %v", err)
	}

	if got := collector.Snapshot().RateLimited; got != 1 {
		t.Errorf("RateLimited = %d, want 1", got)
	}
}

// --- Expiry Tests ---

func TestSweep(t *testing.T) {
	clock := newFakeClock()
	r, collector := observedRelay(t, relay.DefaultConfig(), nil, relay.WithClock(clock.Now))

	short := envelope(mode.Classical, "a", "short").WithExpiry(clock.Now().Add(time.Hour))
	for _, env := range []messaging.Envelope{short, envelope(mode.Classical, "a", "long"), envelope(mode.Hybrid, "b", "long")} {
		if err := r.Store(env); err != nil {
			t.Fatalf("Store failed: %v", err)
		}
	}

	clock.Advance(2 * time.Hour)
	if got := fetch(t, r, "a"); len(got) != 1 {
		t.Errorf("fetched %d envelopes after expiry, want 1", len(got))
	}
	if n := sweep(t, r); n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}

	clock.Advance(23 * time.Hour)
	if n := sweep(t, r); n != 2 {
		t.Errorf("Sweep removed %d, want 2", n)
	}
	if st := stats(t, r); st.Inboxes != 0 || st.Envelopes != 0 {
		t.Errorf("stats after sweep = %+v", st)
	}
	if got := collector.Snapshot().ExpiredDropped; got != 3 {
		t.Errorf("ExpiredDropped = %d, want 3", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	r := newRelay(t, relay.DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, time.Millisecond) }()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunRejectsNonPositiveInterval(t *testing.T) {
	r := newRelay(t, relay.DefaultConfig())
	for _, interval := range []time.Duration{0, -time.Second} {
		if err := r.Run(context.Background(), interval); !errors.Is(err, qerrors.ErrInvalidConfig) {
			t.Errorf("Run(%v): expected ErrInvalidConfig, got %v", interval, err)
		}
	}
}

// --- Username Tests ---

func TestPublishAndLookup(t *testing.T) {
	r, collector := observedRelay(t, relay.DefaultConfig(), nil)
	ctx := context.Background()
	alice := mustKeyPair(t, mode.Hybrid)

	claim, err := messaging.NewUsernameClaim("alice", alice)
	if err != nil {
		t.Fatalf("NewUsernameClaim failed: %v", err)
	}
	expectSuccess(t, r.Handle(ctx, &protocol.PublishClaim{Claim: claim}))

	reply := r.Handle(ctx, &protocol.LookupUsername{Username: "alice"})
	result, ok := reply.(*protocol.UsernameResult)
	if !ok {
		t.Fatalf("expected username_result, got %T", reply)
	}
	if !result.PublicKeys.Equal(alice.PublicKeys()) {
		t.Error("lookup returned different keys")
	}
	if pk, ok := r.Registry().SenderKeys(alice.PublicKeyString()); !ok || !pk.Equal(alice.PublicKeys()) {
		t.Error("SenderKeys did not resolve the claimed identity")
	}
	if _, ok := r.Registry().SenderKeys(mustKeyPair(t, mode.Hybrid).PublicKeyString()); ok {
		t.Error("SenderKeys resolved an unclaimed identity")
	}

	missing := r.Handle(ctx, &protocol.LookupUsername{Username: "bob"}).(*protocol.UsernameResult)
	if missing.PublicKeys != nil {
		t.Error("unclaimed username returned keys")
	}

	if got := collector.Snapshot().ClaimsPublished; got != 1 {
		t.Errorf("ClaimsPublished = %d, want 1", got)
	}
}

func TestClaimConflicts(t *testing.T) {
	r := newRelay(t, relay.DefaultConfig())
	alice := mustKeyPair(t, mode.Classical)

	claim, err := messaging.NewUsernameClaim("alice", alice)
	if err != nil {
		t.Fatalf("NewUsernameClaim failed: %v", err)
	}
	if err := r.PublishClaim(claim); err != nil {
		t.Fatalf("PublishClaim failed: %v", err)
	}

	mallory, err := messaging.NewUsernameClaim("alice", mustKeyPair(t, mode.Classical))
	if err != nil {
		t.Fatalf("NewUsernameClaim failed: %v", err)
	}
	if err := r.PublishClaim(mallory); !errors.Is(err, qerrors.ErrUsernameTaken) {
		t.Errorf("foreign key: expected ErrUsernameTaken, got %v", err)
	}

	replay := *claim
	if err := r.PublishClaim(&replay); !errors.Is(err, qerrors.ErrInvalidMessage) {
		t.Errorf("replayed claim: expected ErrInvalidMessage, got %v", err)
	}

	newer := *claim
	newer.Timestamp++
	if err := newer.Sign(alice); err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if err := r.PublishClaim(&newer); err != nil {
		t.Errorf("newer claim rejected: %v", err)
	}

	forged := newer
	forged.Timestamp += 10
	if err := r.PublishClaim(&forged); !errors.Is(err, qerrors.ErrSignatureVerification) {
		t.Errorf("unsigned update: expected ErrSignatureVerification, got %v", err)
	}

	if names := r.Registry().Usernames(); len(names) != 1 || names[0] != "alice" {
		t.Errorf("Usernames = %v", names)
	}
	expectError(t, r.Handle(context.Background(), &protocol.PublishClaim{Claim: mallory}), "already claimed")
}

// --- End-to-End Tests ---

func TestEndToEndDelivery(t *testing.T) {
	ctx := context.Background()
	codec := protocol.NewCodec()
	r := newRelay(t, relay.DefaultConfig())

	iface, err := unified.New(mode.NewConfig(mode.Hybrid))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	alice := mustKeyPair(t, mode.Hybrid)
	bob := mustKeyPair(t, mode.Hybrid)

	env, err := messaging.CreateEncryptedMessage(ctx, iface, alice, bob.PublicKeys(), "hello bob", 1, "", nil)
	if err != nil {
		t.Fatalf("CreateEncryptedMessage failed: %v", err)
	}

	// Both directions cross the wire codec.
	wire, err := codec.Encode(&protocol.SendQuantumMessage{Envelope: env})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	request, err := codec.Decode(wire)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	expectSuccess(t, r.Handle(ctx, request))

	wire, err = codec.Encode(r.Handle(ctx, &protocol.FetchInbox{InboxID: messaging.DeriveInboxID(bob.PublicKeyString(), 1)}))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	reply, err := codec.Decode(wire)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	received := messaging.Receive(ctx, iface, reply.(*protocol.QuantumInboxMessages).Messages, bob)
	if len(received) != 1 {
		t.Fatalf("received %d messages, want 1", len(received))
	}
	if received[0].Payload.Body != "hello bob" {
		t.Errorf("body = %q", received[0].Payload.Body)
	}
	if received[0].Payload.FromPubkey != alice.PublicKeyString() {
		t.Errorf("from = %q", received[0].Payload.FromPubkey)
	}
}

func TestConcurrentStore(t *testing.T) {
	cfg := relay.DefaultConfig()
	cfg.InboxRate = 0
	r := newRelay(t, cfg)

	const workers = 8
	const perWorker = 20

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			inboxID := fmt.Sprintf("inbox-%d", w)
			for i := 0; i < perWorker; i++ {
				if err := r.Store(envelope(mode.Classical, inboxID, "x")); err != nil {
					t.Errorf("Store failed: %v", err)
					return
				}
				if _, err := r.Fetch(inboxID); err != nil {
					t.Errorf("Fetch failed: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	if st := stats(t, r); st.Inboxes != workers || st.Envelopes != workers*perWorker {
		t.Errorf("stats = %+v", st)
	}
}
