package hybrid_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
	"github.com/pzverkov/quantum-messenger/pkg/classical"
	"github.com/pzverkov/quantum-messenger/pkg/hybrid"
	"github.com/pzverkov/quantum-messenger/pkg/postquantum"
	"github.com/pzverkov/quantum-messenger/pkg/suite"
)

func mustKeyPair(t *testing.T) *hybrid.KeyPair {
	t.Helper()
	kp, err := hybrid.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	return kp
}

func TestKeyPairGeneration(t *testing.T) {
	kp := mustKeyPair(t)

	s := kp.PublicKeyString()
	if !strings.HasPrefix(s, "hybrid-pubkey:") {
		t.Errorf("PublicKeyString %q lacks hybrid prefix", s)
	}
	if s != "hybrid-"+kp.Classical.PublicKeyString() {
		t.Error("hybrid identity should wrap the classical identity")
	}
	if s != kp.PublicKeys().String() {
		t.Error("KeyPair and PublicKeys render different identity strings")
	}

	inner, err := hybrid.ClassicalPublicKeyString(s)
	if err != nil {
		t.Fatalf("ClassicalPublicKeyString failed: %v", err)
	}
	if inner != kp.Classical.PublicKeyString() {
		t.Errorf("inner identity = %q", inner)
	}
	if _, err := hybrid.ClassicalPublicKeyString("pubkey:abc"); !errors.Is(err, qerrors.ErrInvalidPublicKey) {
		t.Errorf("expected ErrInvalidPublicKey, got %v", err)
	}
}

func TestPublicKeySerialization(t *testing.T) {
	pub := mustKeyPair(t).PublicKeys()

	data := pub.Bytes()
	parsed, err := hybrid.ParsePublicKeys(data)
	if err != nil {
		t.Fatalf("ParsePublicKeys failed: %v", err)
	}
	if !parsed.Equal(pub) {
		t.Error("parsed public keys differ")
	}

	if _, err := hybrid.ParsePublicKeys(data[:len(data)-1]); !errors.Is(err, qerrors.ErrInvalidFormat) {
		t.Errorf("truncated: expected ErrInvalidFormat, got %v", err)
	}
	if _, err := hybrid.ParsePublicKeys(append(append([]byte(nil), data...), 0)); !errors.Is(err, qerrors.ErrInvalidFormat) {
		t.Errorf("trailing byte: expected ErrInvalidFormat, got %v", err)
	}
}

// --- Key Agreement Tests ---

func TestKeyExchangeRequiresKEM(t *testing.T) {
	s := hybrid.Suite{}
	a := mustKeyPair(t)
	b := mustKeyPair(t)
	if _, err := s.KeyExchange(a, b.PublicKeys()); !errors.Is(err, qerrors.ErrKEMRequired) {
		t.Errorf("expected ErrKEMRequired, got %v", err)
	}
}

func TestEncapsulationDecapsulation(t *testing.T) {
	s := hybrid.Suite{}
	alice := mustKeyPair(t)
	bob := mustKeyPair(t)

	ct, aliceSecret, err := s.Encapsulate(alice, bob.PublicKeys())
	if err != nil {
		t.Fatalf("Encapsulate failed: %v", err)
	}
	bobSecret, err := s.Decapsulate(bob, alice.PublicKeys(), ct)
	if err != nil {
		t.Fatalf("Decapsulate failed: %v", err)
	}

	if aliceSecret.Combined() != bobSecret.Combined() {
		t.Error("combined secrets do not match")
	}
	if len(aliceSecret.Bytes()) != 32 {
		t.Errorf("combined secret size = %d", len(aliceSecret.Bytes()))
	}
}

// TestCombinedSecretIsHashOfParts recomputes SHA-256(classical ‖ pq) from the
// sub-suites and compares it with the hybrid result.
func TestCombinedSecretIsHashOfParts(t *testing.T) {
	s := hybrid.Suite{}
	alice := mustKeyPair(t)
	bob := mustKeyPair(t)

	ct, combined, err := s.Encapsulate(alice, bob.PublicKeys())
	if err != nil {
		t.Fatalf("Encapsulate failed: %v", err)
	}

	classicalSecret, err := classical.Suite{}.KeyExchange(bob.Classical, alice.Classical.PublicKeys())
	if err != nil {
		t.Fatalf("classical KeyExchange failed: %v", err)
	}
	pqSecret, err := postquantum.Suite{}.Decapsulate(bob.PostQuantum, ct)
	if err != nil {
		t.Fatalf("postquantum Decapsulate failed: %v", err)
	}

	want := hybrid.CombineSecrets(classicalSecret.Bytes(), pqSecret.Bytes())
	if combined.Combined() != want {
		t.Error("combined secret != SHA-256(classical ‖ pq)")
	}
}

func TestDecapsulateTamperedCiphertext(t *testing.T) {
	s := hybrid.Suite{}
	alice := mustKeyPair(t)
	bob := mustKeyPair(t)

	ct, _, _ := s.Encapsulate(alice, bob.PublicKeys())
	ct[len(ct)-1] ^= 0x01
	if _, err := s.Decapsulate(bob, alice.PublicKeys(), ct); !errors.Is(err, qerrors.ErrInvalidCiphertext) {
		t.Errorf("expected ErrInvalidCiphertext, got %v", err)
	}
}

// --- Signature Tests ---

func TestSignVerify(t *testing.T) {
	s := hybrid.Suite{}
	kp := mustKeyPair(t)
	data := []byte("hybrid signed message")

	sig, err := s.Sign(kp, data)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if err := s.Verify(kp.PublicKeys(), data, sig); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	parsed, err := hybrid.ParseSignature(sig.Bytes())
	if err != nil {
		t.Fatalf("ParseSignature failed: %v", err)
	}
	if err := s.Verify(kp.PublicKeys(), data, parsed); err != nil {
		t.Errorf("Verify of re-parsed signature failed: %v", err)
	}

	tampered := append([]byte(nil), data...)
	tampered[3] ^= 0x01
	if err := s.Verify(kp.PublicKeys(), tampered, sig); !errors.Is(err, qerrors.ErrSignatureVerification) {
		t.Errorf("expected ErrSignatureVerification, got %v", err)
	}
}

// TestVerifyRequiresBothHalves corrupts each half while the other stays valid.
func TestVerifyRequiresBothHalves(t *testing.T) {
	s := hybrid.Suite{}
	kp := mustKeyPair(t)
	data := []byte("both halves")

	sig, err := s.Sign(kp, data)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	badClassical := &hybrid.Signature{
		Classical:   append([]byte(nil), sig.Classical...),
		PostQuantum: sig.PostQuantum,
	}
	badClassical.Classical[0] ^= 0x01
	if err := s.Verify(kp.PublicKeys(), data, badClassical); err == nil {
		t.Error("Verify succeeded with a corrupted classical half")
	}

	badPQ := &hybrid.Signature{
		Classical:   sig.Classical,
		PostQuantum: append([]byte(nil), sig.PostQuantum...),
	}
	badPQ.PostQuantum[0] ^= 0x01
	if err := s.Verify(kp.PublicKeys(), data, badPQ); err == nil {
		t.Error("Verify succeeded with a corrupted post-quantum half")
	}

	if _, err := hybrid.ParseSignature(sig.Bytes()[:10]); !errors.Is(err, qerrors.ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
}

// --- Encryption Tests ---

func TestEncryptDecrypt(t *testing.T) {
	s := hybrid.Suite{}
	kp := mustKeyPair(t)
	plaintext := []byte("hybrid payload")

	ct, err := s.Encrypt(kp.PublicKeys(), plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	pt, err := s.Decrypt(kp, ct)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Errorf("plaintext = %q", pt)
	}
}

// TestDecryptEitherHalf checks that decryption succeeds when only one
// sub-ciphertext is intact and fails only when both are damaged.
func TestDecryptEitherHalf(t *testing.T) {
	s := hybrid.Suite{}
	kp := mustKeyPair(t)
	plaintext := []byte("either half")

	ct, _ := s.Encrypt(kp.PublicKeys(), plaintext)
	c, pq, err := suite.DecodePair(ct)
	if err != nil {
		t.Fatalf("DecodePair failed: %v", err)
	}

	corrupt := func(b []byte) []byte {
		out := append([]byte(nil), b...)
		out[len(out)-1] ^= 0x01
		return out
	}

	cases := []struct {
		name    string
		c, pq   []byte
		wantErr bool
	}{
		{"classical damaged", corrupt(c), pq, false},
		{"post-quantum damaged", c, corrupt(pq), false},
		{"both damaged", corrupt(c), corrupt(pq), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pt, err := s.Decrypt(kp, suite.EncodePair(tc.c, tc.pq))
			if tc.wantErr {
				if !errors.Is(err, qerrors.ErrHybridDecrypt) {
					t.Errorf("expected ErrHybridDecrypt, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decrypt failed: %v", err)
			}
			if !bytes.Equal(pt, plaintext) {
				t.Errorf("plaintext = %q", pt)
			}
		})
	}
}

func TestDecryptMalformed(t *testing.T) {
	s := hybrid.Suite{}
	kp := mustKeyPair(t)
	if _, err := s.Decrypt(kp, []byte{0, 0, 0, 5, 1}); !errors.Is(err, qerrors.ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
}
