// Package quantummessenger is the crypto-agility core of a privacy-focused
// messenger: one messaging API over classical, hybrid and post-quantum
// cryptography.
//
// Each user holds a key pair in one of three modes. Messages are signed by
// the sender, encrypted to the recipient, and wrapped in an envelope that
// names its mode, so peers in different modes can still talk wherever the
// compatibility table allows.
//
// # Quick Start
//
// Configure the process-wide mode once, then generate keys and exchange
// messages:
//
//	import (
//		"github.com/pzverkov/quantum-messenger/pkg/messaging"
//		"github.com/pzverkov/quantum-messenger/pkg/mode"
//		"github.com/pzverkov/quantum-messenger/pkg/unified"
//	)
//
//	_ = unified.Default().Init(mode.NewConfig(mode.Hybrid))
//	iface, _ := unified.Default().Interface()
//
//	alice, _ := iface.GenerateKeyPair()
//	bob, _ := iface.GenerateKeyPair()
//
//	env, _ := messaging.CreateEncryptedMessage(ctx, iface, alice, bob.PublicKeys(), "hi", 1, "", nil)
//	payload, _ := messaging.DecryptMessage(ctx, iface, env, bob)
//
// # Package Structure
//
//   - pkg/crypto: Low-level primitives (X25519, Ed25519, ML-KEM-768, ML-DSA-65, HKDF, AEAD, POST)
//   - pkg/suite: Shared suite contract and the length-prefixed pair codec
//   - pkg/classical: X25519/Ed25519 suite with ECIES encryption
//   - pkg/postquantum: ML-KEM-768/ML-DSA-65 suite with KEM-DEM encryption
//   - pkg/hybrid: Both suites combined; both signatures must verify
//   - pkg/mode: Crypto modes, policy configuration and the compatibility table
//   - pkg/unified: Mode-agnostic key pairs, public keys and dispatch
//   - pkg/messaging: Payloads, envelopes, legacy conversion and username claims
//   - pkg/inbox: First-contact and per-conversation inbox addressing
//   - pkg/protocol: Relay message types and the JSON line codec
//   - pkg/relay: In-memory mailbox relay with policy admission and rate limits
//   - pkg/metrics: Structured logging, metrics, tracing and health endpoints
//   - internal/constants: Sizes, prefixes and domain separators
//   - internal/errors: Sentinel errors and error classification
//
// # Security Properties
//
//   - Classical: X25519 ECDH and Ed25519 signatures (128-bit security)
//   - Post-quantum: ML-KEM-768 and ML-DSA-65 (NIST Category 3)
//   - Hybrid secret: SHA-256 over both shared secrets, secure if either holds
//   - Hybrid signatures: valid only when both halves verify
//   - Authenticated encryption: ChaCha20-Poly1305 with a fresh random nonce per call
//   - Policy: messages below the configured minimum mode are rejected before decryption
//   - Unlinkable inboxes: conversation inboxes derive from a shared secret and a counter
//
// # Testing
//
//	go test ./...                                       # All tests
//	go test -fuzz=FuzzDecodeMessage ./test/fuzz/       # Fuzz tests
//	go test -run TestKAT ./pkg/...                      # Known Answer Tests
//	go test -bench=. ./test/benchmark                   # Benchmarks
//
// # References
//
//   - NIST FIPS 203: Module-Lattice-Based Key-Encapsulation Mechanism Standard
//   - NIST FIPS 204: Module-Lattice-Based Digital Signature Standard
//   - RFC 7748: Elliptic Curves for Security
//   - RFC 8032: Edwards-Curve Digital Signature Algorithm
//   - RFC 5869: HMAC-based Extract-and-Expand Key Derivation Function
package quantummessenger
