package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pzverkov/quantum-messenger/pkg/inbox"
	"github.com/pzverkov/quantum-messenger/pkg/messaging"
	"github.com/pzverkov/quantum-messenger/pkg/metrics"
	"github.com/pzverkov/quantum-messenger/pkg/mode"
	"github.com/pzverkov/quantum-messenger/pkg/protocol"
	"github.com/pzverkov/quantum-messenger/pkg/relay"
	"github.com/pzverkov/quantum-messenger/pkg/relay/boltstore"
	"github.com/pzverkov/quantum-messenger/pkg/unified"
)

// demoUser is one side of the demo conversation.
type demoUser struct {
	name    string
	keys    *unified.KeyPair
	manager *inbox.ConversationManager
	sent    uint64
}

// wire carries every request and reply through the protocol codec, the way
// a network client would.
type wire struct {
	codec *protocol.Codec
	relay *relay.Relay
}

func (w *wire) roundTrip(ctx context.Context, req protocol.Message) (protocol.Message, error) {
	data, err := w.codec.Encode(req)
	if err != nil {
		return nil, err
	}
	decoded, err := w.codec.Decode(data)
	if err != nil {
		return nil, err
	}
	data, err = w.codec.Encode(w.relay.Handle(ctx, decoded))
	if err != nil {
		return nil, err
	}
	return w.codec.Decode(data)
}

type demoOptions struct {
	peerMode string
	message  string
	rounds   int
	verbose  bool
	relayDB  string
}

func runDemo(env *cliEnv, opts demoOptions) {
	message, rounds, verbose := opts.message, opts.rounds, opts.verbose

	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║      Quantum-Safe Messenger Demo                         ║")
	fmt.Println("║      Alice ⇄ relay ⇄ Bob                                 ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	ctx := context.Background()

	peerMode := env.config.Mode
	if opts.peerMode != "" {
		m, err := mode.Parse(opts.peerMode)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		peerMode = m
	}

	relayCfg := relay.DefaultConfig()
	relayCfg.Policy = env.config
	relayOpts := []relay.Option{relay.WithObserver(metrics.NewRelayObserver(env.collector, nil, env.logger))}
	if opts.relayDB != "" {
		store, err := boltstore.Open(opts.relayDB)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		relayOpts = append(relayOpts, relay.WithMailboxes(store))
	}
	r, err := relay.New(relayCfg, relayOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: relay: %v\n", err)
		os.Exit(1)
	}
	defer r.Close()
	w := &wire{codec: protocol.NewCodec(), relay: r}

	fmt.Printf("Relay minimum mode: %s\n\n", env.config.MinimumMode)

	alice := newDemoUser(env, "alice", env.config.Mode, verbose)
	bob := newDemoUser(env, "bob", peerMode, verbose)
	defer alice.keys.Zeroize()
	defer bob.keys.Zeroize()

	fmt.Println()
	fmt.Println("Username directory")
	fmt.Println(strings.Repeat("─", 60))
	for _, u := range []*demoUser{alice, bob} {
		publishClaim(ctx, w, u)
	}
	bobKeys := lookup(ctx, w, "bob")
	aliceKeys := lookup(ctx, w, "alice")
	if bobKeys == nil || aliceKeys == nil {
		fmt.Fprintln(os.Stderr, "Error: username lookup failed")
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("Messages")
	fmt.Println(strings.Repeat("─", 60))
	for i := 1; i <= rounds; i++ {
		exchange(ctx, env, w, alice, bob, bobKeys, fmt.Sprintf("%s (#%d)", message, i), verbose)
		exchange(ctx, env, w, bob, alice, aliceKeys, fmt.Sprintf("Re: %s (#%d)", message, i), verbose)
	}

	if verbose {
		fmt.Println()
		fmt.Println("Conversation inboxes")
		fmt.Println(strings.Repeat("─", 60))
		for _, u := range []*demoUser{alice, bob} {
			printConversations(u)
		}
	}

	swept, err := r.Sweep()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	stats, err := r.Stats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	snap := env.collector.Snapshot()

	fmt.Println()
	fmt.Println("Summary")
	fmt.Println(strings.Repeat("─", 60))
	fmt.Printf("  Relay: %d inboxes, %d envelopes, %d usernames (%d expired)\n",
		stats.Inboxes, stats.Envelopes, stats.Usernames, swept)
	fmt.Printf("  Sealed: %d  Opened: %d  Bytes sealed: %s\n",
		snap.MessagesSealed.Total(), snap.MessagesOpened.Total(), formatSize(int64(snap.BytesSealed)))
	fmt.Printf("  Policy rejections: %d  Decrypt failures: %d  Verify failures: %d\n",
		snap.PolicyRejections, snap.DecryptFailures, snap.VerifyFailures)
	if snap.EncryptLatency.Count > 0 {
		fmt.Printf("  Encrypt latency: avg %v\n", time.Duration(snap.EncryptLatency.Mean*float64(time.Microsecond)))
	}
}

func newDemoUser(env *cliEnv, name string, m mode.Mode, verbose bool) *demoUser {
	kp, err := unified.GenerateKeyPair(m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: key generation for %s failed: %v\n", name, err)
		os.Exit(1)
	}
	u := &demoUser{name: name, keys: kp}

	manager, err := inbox.NewConversationManager(kp, inbox.WithLogger(env.logger))
	if err == nil {
		u.manager = manager
	} else if verbose {
		fmt.Printf("  (%s has no X25519 key, conversation inboxes disabled)\n", name)
	}

	fmt.Printf("✓ %-5s %-9s %s  (%d bytes of public keys)\n",
		name, m, metrics.Fingerprint(kp.PublicKeys().Bytes()), len(kp.PublicKeys().Bytes()))
	return u
}

func publishClaim(ctx context.Context, w *wire, u *demoUser) {
	claim, err := messaging.NewUsernameClaim(u.name, u.keys)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: claim for %s: %v\n", u.name, err)
		os.Exit(1)
	}
	reply, err := w.roundTrip(ctx, &protocol.PublishClaim{Claim: claim})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	printReply("publish "+u.name, reply)
}

// senderKeys resolves senders from u's conversations first, then from the
// relay's username directory.
func (w *wire) senderKeys(u *demoUser) messaging.SenderKeys {
	return func(id string) (*unified.PublicKeys, bool) {
		if u.manager != nil {
			if pk, ok := u.manager.SenderKeys(id); ok {
				return pk, true
			}
		}
		return w.relay.Registry().SenderKeys(id)
	}
}

func lookup(ctx context.Context, w *wire, username string) *unified.PublicKeys {
	reply, err := w.roundTrip(ctx, &protocol.LookupUsername{Username: username})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	result, ok := reply.(*protocol.UsernameResult)
	if !ok || result.PublicKeys == nil {
		fmt.Printf("  ✗ lookup %s: not found\n", username)
		return nil
	}
	fmt.Printf("  ✓ lookup %s: %s keys\n", username, result.PublicKeys.Mode())
	return result.PublicKeys
}

func exchange(ctx context.Context, env *cliEnv, w *wire, from, to *demoUser, toKeys *unified.PublicKeys, body string, verbose bool) {
	from.sent++
	counter := from.sent

	if from.manager != nil {
		if _, err := from.manager.GetOrCreate(toKeys); err != nil && verbose {
			fmt.Printf("  (no conversation state with %s: %v)\n", to.name, err)
		}
	}

	envelope, err := messaging.CreateEncryptedMessage(ctx, env.iface, from.keys, toKeys, body, counter, "", nil)
	if err != nil {
		fmt.Printf("  ✗ %s → %s: %v\n", from.name, to.name, err)
		return
	}

	reply, err := w.roundTrip(ctx, &protocol.SendQuantumMessage{Envelope: envelope})
	if err != nil {
		fmt.Printf("  ✗ %s → %s: %v\n", from.name, to.name, err)
		return
	}
	if e, ok := reply.(*protocol.Error); ok {
		fmt.Printf("  ✗ %s → %s [%s]: relay refused: %s\n", from.name, to.name, envelope.CryptoMode, e.Message)
		return
	}

	reply, err = w.roundTrip(ctx, &protocol.FetchInbox{InboxID: envelope.InboxID})
	if err != nil {
		fmt.Printf("  ✗ fetch for %s: %v\n", to.name, err)
		return
	}
	fetched, ok := reply.(*protocol.QuantumInboxMessages)
	if !ok {
		fmt.Printf("  ✗ fetch for %s: unexpected %s\n", to.name, reply.Type())
		return
	}

	for _, received := range messaging.ReceiveFrom(ctx, env.iface, fetched.Messages, to.keys, w.senderKeys(to)) {
		if received.Payload.FromPubkey != from.keys.PublicKeyString() || received.Payload.Counter != counter {
			continue
		}
		fmt.Printf("  ✓ %s → %s [%s]: %q\n", from.name, to.name, envelope.CryptoMode, received.Payload.Body)
		if verbose {
			fmt.Printf("      inbox %s, signature %s\n", envelope.InboxID, received.Payload.SignatureMode())
		}
		if to.manager != nil {
			if conv, err := to.manager.GetOrCreate(from.keys.PublicKeys()); err == nil {
				conv.UpdateTheirCounter(counter)
			}
		}
		return
	}
	fmt.Printf("  ✗ %s → %s [%s]: %s could not open the message\n", from.name, to.name, envelope.CryptoMode, to.name)
}

func printConversations(u *demoUser) {
	if u.manager == nil {
		fmt.Printf("  %s: none\n", u.name)
		return
	}
	for id, inboxes := range u.manager.PendingInboxes() {
		conv, _ := u.manager.Get(id)
		fmt.Printf("  %s with %s: next counter %d, their last %d\n",
			u.name, metrics.FingerprintString(id), conv.OurCounter(), conv.TheirLastCounter())
		if len(inboxes) > 0 {
			fmt.Printf("      watching %s… (+%d more)\n", inboxes[0][:16], len(inboxes)-1)
		}
	}
}

func printReply(what string, reply protocol.Message) {
	switch m := reply.(type) {
	case *protocol.Success:
		fmt.Printf("  ✓ %s: %s\n", what, m.Message)
	case *protocol.Error:
		fmt.Printf("  ✗ %s: %s\n", what, m.Message)
	default:
		fmt.Printf("  ? %s: %s\n", what, reply.Type())
	}
}
