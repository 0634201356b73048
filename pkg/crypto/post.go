// post.go implements Power-On Self-Tests (POST) for the primitives in this package.
//
// POST runs once when the package is loaded and checks every primitive against
// a known answer or a pairwise-consistency round trip:
//
//   - SHAKE-256 DeriveKey (KAT)
//   - HKDF-SHA-512 ExpandKey (KAT)
//   - ChaCha20-Poly1305 (KAT, fixed nonce)
//   - X25519 (RFC 7748 section 6.1 vectors)
//   - Ed25519, ML-KEM-768, ML-DSA-65 (pairwise consistency from fixed seeds)
//
// A failure does not panic. RequirePOST turns it into ErrSelfTestFailed so the
// CLI and health checks can refuse to operate on a broken build.
package crypto

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"

	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
)

// POSTDomain is the domain separator used in POST KDF tests
const POSTDomain = "POST-KAT-TEST"

// Known answers, computed with independent reference implementations.
var (
	postKATInput, _ = hex.DecodeString("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")

	postKATKDFExpected, _  = hex.DecodeString("f6cd6267523cd5717f431170c2501816d6b1439b1fe8f084cd028e892cff9b6a")
	postKATHKDFExpected, _ = hex.DecodeString("0b5cb4933d998ad3c4786ef09777f6d9f153c5846cca5224d36c95b6a1fe497e")

	// Key = postKATInput, nonce = 0^12, plaintext = "POST-KAT-TEST", no AAD.
	postKATChaChaNonce       = make([]byte, chacha20poly1305.NonceSize)
	postKATChaChaPlaintext   = []byte(POSTDomain)
	postKATChaChaExpected, _ = hex.DecodeString("40a9ff609a53490c94c20e5b7a69a6139796413115a0ed39f2f015e011")

	postKATX25519Alice, _  = hex.DecodeString("77076d0a7318a57d3c16c17251b26645df4c2f87ebc0992ab177fba51db92c2a")
	postKATX25519BobPub, _ = hex.DecodeString("de9edb7d7b7dc1b4d35b61c2ece435373f8343c85b78674dadfc7e146f882b4f")
	postKATX25519Shared, _ = hex.DecodeString("4a5d9d5ba4ce2de1728e3bf480350f25e07e21c947d19e3376f09b3c1e161742")

	postKATSeed64, _ = hex.DecodeString(
		"0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef" +
			"fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210")
)

// SelfTest is the outcome of one POST check.
type SelfTest struct {
	Name   string
	Passed bool
	Err    error
}

// POSTResult contains the results of Power-On Self-Tests
type POSTResult struct {
	Passed bool
	Tests  []SelfTest
	Errors []string
}

// Test returns the named check, if it ran.
func (r *POSTResult) Test(name string) (SelfTest, bool) {
	for _, t := range r.Tests {
		if t.Name == name {
			return t, true
		}
	}
	return SelfTest{}, false
}

var (
	postResult     *POSTResult
	postResultOnce sync.Once
)

var postChecks = []struct {
	name string
	run  func() error
}{
	{"shake256-kdf", runKDFKAT},
	{"hkdf-sha512", runHKDFKAT},
	{"chacha20-poly1305", runChaChaKAT},
	{"x25519", runX25519KAT},
	{"ed25519", runEd25519Pairwise},
	{"ml-kem-768", runMLKEMPairwise},
	{"ml-dsa-65", runMLDSAPairwise},
}

// RunPOST executes the self-tests once and returns the cached result.
func RunPOST() *POSTResult {
	postResultOnce.Do(func() {
		result := &POSTResult{Passed: true}
		for _, check := range postChecks {
			err := check.run()
			result.Tests = append(result.Tests, SelfTest{Name: check.name, Passed: err == nil, Err: err})
			if err != nil {
				result.Passed = false
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", check.name, err))
			}
		}
		postResult = result
	})

	return postResult
}

// POSTPassed returns true if POST has run and all tests passed
func POSTPassed() bool {
	return RunPOST().Passed
}

// RequirePOST returns ErrSelfTestFailed, wrapped with the failing checks, if POST failed.
func RequirePOST() error {
	r := RunPOST()
	if r.Passed {
		return nil
	}
	return qerrors.NewCryptoError("RequirePOST", fmt.Errorf("%w: %v", qerrors.ErrSelfTestFailed, r.Errors))
}

func runKDFKAT() error {
	output, err := DeriveKey(POSTDomain, postKATInput, 32)
	if err != nil {
		return fmt.Errorf("DeriveKey failed: %w", err)
	}
	if !bytes.Equal(output, postKATKDFExpected) {
		return fmt.Errorf("KDF output mismatch: got %x, want %x", output, postKATKDFExpected)
	}
	return nil
}

func runHKDFKAT() error {
	output, err := ExpandKey(postKATInput, nil, []byte(POSTDomain), 32)
	if err != nil {
		return fmt.Errorf("ExpandKey failed: %w", err)
	}
	if !bytes.Equal(output, postKATHKDFExpected) {
		return fmt.Errorf("HKDF output mismatch: got %x, want %x", output, postKATHKDFExpected)
	}
	return nil
}

func runChaChaKAT() error {
	c, err := chacha20poly1305.New(postKATInput)
	if err != nil {
		return fmt.Errorf("chacha20poly1305.New failed: %w", err)
	}

	ciphertext := c.Seal(nil, postKATChaChaNonce, postKATChaChaPlaintext, nil) //nolint:gosec // fixed nonce is the point of a KAT
	if !bytes.Equal(ciphertext, postKATChaChaExpected) {
		return fmt.Errorf("ChaCha20-Poly1305 encrypt mismatch: got %x, want %x", ciphertext, postKATChaChaExpected)
	}

	plaintext, err := c.Open(nil, postKATChaChaNonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("ChaCha20-Poly1305 decrypt failed: %w", err)
	}
	if !bytes.Equal(plaintext, postKATChaChaPlaintext) {
		return fmt.Errorf("ChaCha20-Poly1305 decrypt mismatch")
	}
	return nil
}

func runX25519KAT() error {
	alice, err := NewX25519KeyPairFromBytes(postKATX25519Alice)
	if err != nil {
		return err
	}
	bob, err := ParseX25519PublicKey(postKATX25519BobPub)
	if err != nil {
		return err
	}
	shared, err := X25519(alice.PrivateKey, bob)
	if err != nil {
		return err
	}
	if !bytes.Equal(shared, postKATX25519Shared) {
		return fmt.Errorf("X25519 shared secret mismatch: got %x", shared)
	}
	return nil
}

func runEd25519Pairwise() error {
	kp, err := NewEd25519KeyPairFromSeed(postKATInput)
	if err != nil {
		return err
	}
	sig, err := Ed25519Sign(kp.PrivateKey, postKATChaChaPlaintext)
	if err != nil {
		return err
	}
	if err := Ed25519Verify(kp.PublicKey, postKATChaChaPlaintext, sig); err != nil {
		return fmt.Errorf("Ed25519 pairwise verify failed: %w", err)
	}
	sig[0] ^= 0x01
	if Ed25519Verify(kp.PublicKey, postKATChaChaPlaintext, sig) == nil {
		return fmt.Errorf("Ed25519 accepted a corrupted signature")
	}
	return nil
}

func runMLKEMPairwise() error {
	kp, err := NewMLKEMKeyPairFromSeed(postKATSeed64)
	if err != nil {
		return fmt.Errorf("NewMLKEMKeyPairFromSeed failed: %w", err)
	}
	if n := len(kp.PublicKeyBytes()); n != 1184 {
		return fmt.Errorf("public key size mismatch: got %d, want 1184", n)
	}

	ciphertext, ss1, err := MLKEMEncapsulate(kp.EncapsulationKey)
	if err != nil {
		return fmt.Errorf("MLKEMEncapsulate failed: %w", err)
	}
	ss2, err := MLKEMDecapsulate(kp.DecapsulationKey, ciphertext)
	if err != nil {
		return fmt.Errorf("MLKEMDecapsulate failed: %w", err)
	}
	if !bytes.Equal(ss1, ss2) {
		return fmt.Errorf("shared secret mismatch after decapsulation")
	}
	return nil
}

func runMLDSAPairwise() error {
	kp, err := NewMLDSAKeyPairFromSeed(postKATInput)
	if err != nil {
		return fmt.Errorf("NewMLDSAKeyPairFromSeed failed: %w", err)
	}
	sig, err := MLDSASign(kp.SigningKey, postKATChaChaPlaintext)
	if err != nil {
		return fmt.Errorf("MLDSASign failed: %w", err)
	}
	if err := MLDSAVerify(kp.VerifyingKey, postKATChaChaPlaintext, sig); err != nil {
		return fmt.Errorf("ML-DSA pairwise verify failed: %w", err)
	}
	return nil
}

func init() {
	RunPOST()
}
