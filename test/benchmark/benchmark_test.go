// Package benchmark measures the messenger hot paths: primitives, per-mode
// key generation, message sealing and opening, and relay admission.
//
//	go test -bench=. -benchmem ./test/benchmark/
//	go test -bench=Message -cpuprofile=cpu.prof ./test/benchmark/
package benchmark

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pzverkov/quantum-messenger/pkg/crypto"
	"github.com/pzverkov/quantum-messenger/pkg/inbox"
	"github.com/pzverkov/quantum-messenger/pkg/messaging"
	"github.com/pzverkov/quantum-messenger/pkg/mode"
	"github.com/pzverkov/quantum-messenger/pkg/protocol"
	"github.com/pzverkov/quantum-messenger/pkg/relay"
	"github.com/pzverkov/quantum-messenger/pkg/relay/boltstore"
	"github.com/pzverkov/quantum-messenger/pkg/unified"
)

// must unwraps fixture constructors. Fixture failures abort the run.
func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// --- Primitives ---

func BenchmarkPrimitives(b *testing.B) {
	dh1 := must(crypto.GenerateX25519KeyPair())
	dh2 := must(crypto.GenerateX25519KeyPair())
	kem := must(crypto.GenerateMLKEMKeyPair())
	kemCT, _, err := crypto.MLKEMEncapsulate(kem.EncapsulationKey)
	if err != nil {
		b.Fatal(err)
	}
	dsa := must(crypto.GenerateMLDSAKeyPair())
	msg := []byte("benchmark message")
	sig := must(crypto.MLDSASign(dsa.SigningKey, msg))
	ikm := must(crypto.SecureRandomBytes(64))

	ops := []struct {
		name string
		fn   func() error
	}{
		{"x25519/agree", func() error { _, err := crypto.X25519(dh1.PrivateKey, dh2.PublicKey); return err }},
		{"mlkem768/encapsulate", func() error { _, _, err := crypto.MLKEMEncapsulate(kem.EncapsulationKey); return err }},
		{"mlkem768/decapsulate", func() error { _, err := crypto.MLKEMDecapsulate(kem.DecapsulationKey, kemCT); return err }},
		{"mldsa65/sign", func() error { _, err := crypto.MLDSASign(dsa.SigningKey, msg); return err }},
		{"mldsa65/verify", func() error { return crypto.MLDSAVerify(dsa.VerifyingKey, msg, sig) }},
		{"shake256/derive32", func() error { _, err := crypto.DeriveKey("benchmark", ikm, 32); return err }},
	}
	for _, op := range ops {
		b.Run(op.name, func(b *testing.B) {
			for b.Loop() {
				if err := op.fn(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkAEADSeal(b *testing.B) {
	aead := must(crypto.NewAEAD(must(crypto.SecureRandomBytes(32))))
	for _, size := range []int{64, 1 << 10, 64 << 10} {
		plaintext := make([]byte, size)
		b.Run(fmt.Sprintf("%dB", size), func(b *testing.B) {
			b.SetBytes(int64(size))
			for b.Loop() {
				if _, err := aead.Seal(plaintext, nil); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// --- Per Mode ---

func BenchmarkKeyGeneration(b *testing.B) {
	for _, m := range mode.All() {
		b.Run(m.String(), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				kp, err := unified.GenerateKeyPair(m)
				if err != nil {
					b.Fatal(err)
				}
				kp.Zeroize()
			}
		})
	}
}

func BenchmarkSign(b *testing.B) {
	data := []byte("benchmark payload")
	for _, m := range mode.All() {
		kp := must(unified.GenerateKeyPair(m))
		b.Run(m.String(), func(b *testing.B) {
			for b.Loop() {
				if _, err := kp.Sign(data); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

type messageFixture struct {
	iface     *unified.Interface
	sender    *unified.KeyPair
	recipient *unified.KeyPair
}

func newMessageFixture(m mode.Mode) messageFixture {
	return messageFixture{
		iface:     must(unified.New(mode.NewConfig(m))),
		sender:    must(unified.GenerateKeyPair(m)),
		recipient: must(unified.GenerateKeyPair(m)),
	}
}

func BenchmarkMessage(b *testing.B) {
	ctx := context.Background()
	body := strings.Repeat("x", 1024)

	for _, m := range mode.All() {
		f := newMessageFixture(m)
		env := must(messaging.CreateEncryptedMessage(ctx, f.iface, f.sender, f.recipient.PublicKeys(), body, 1, "", nil))

		b.Run("seal/"+m.String(), func(b *testing.B) {
			b.SetBytes(int64(len(body)))
			var seq uint64
			for b.Loop() {
				seq++
				if _, err := messaging.CreateEncryptedMessage(ctx, f.iface, f.sender, f.recipient.PublicKeys(), body, seq, "", nil); err != nil {
					b.Fatal(err)
				}
			}
		})
		b.Run("open/"+m.String(), func(b *testing.B) {
			b.SetBytes(int64(len(body)))
			for b.Loop() {
				if _, err := messaging.DecryptMessage(ctx, f.iface, env, f.recipient); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// --- Addressing, Codec and Relay ---

func BenchmarkDeriveConversationInbox(b *testing.B) {
	secret := must(crypto.SecureRandomBytes(32))
	var counter uint64
	for b.Loop() {
		counter++
		_ = inbox.DeriveConversationInbox(secret, counter)
	}
}

func BenchmarkCodecRoundTrip(b *testing.B) {
	f := newMessageFixture(mode.Hybrid)
	env := must(messaging.CreateEncryptedMessage(context.Background(), f.iface, f.sender, f.recipient.PublicKeys(), "hello", 1, "", nil))
	codec := protocol.NewCodec()
	msg := &protocol.SendQuantumMessage{Envelope: env}

	for b.Loop() {
		data, err := codec.Encode(msg)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := codec.Decode(data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRelayStore(b *testing.B) {
	stores := []struct {
		name string
		open func(dir string) relay.Mailboxes
	}{
		{"memory", func(string) relay.Mailboxes { return relay.NewMemoryMailboxes() }},
		{"bolt", func(dir string) relay.Mailboxes { return must(boltstore.Open(filepath.Join(dir, "relay.db"))) }},
	}

	cfg := relay.DefaultConfig()
	cfg.InboxRate = 0
	for _, s := range stores {
		b.Run(s.name, func(b *testing.B) {
			r := must(relay.New(cfg, relay.WithMailboxes(s.open(b.TempDir()))))
			defer r.Close()

			b.RunParallel(func(pb *testing.PB) {
				i := 0
				for pb.Next() {
					env := messaging.NewEnvelope(mode.Classical, fmt.Sprintf("inbox-%d", i%64), []byte("payload"))
					if err := r.Store(env); err != nil {
						b.Error(err)
						return
					}
					i++
				}
			})
		})
	}
}
