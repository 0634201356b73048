package crypto_test

import (
	"testing"

	"github.com/pzverkov/quantum-messenger/pkg/crypto"
)

// TestPOSTPassed verifies that all self-tests passed at package load
func TestPOSTPassed(t *testing.T) {
	if !crypto.POSTPassed() {
		t.Errorf("POST should have passed: %v", crypto.RunPOST().Errors)
	}
	if err := crypto.RequirePOST(); err != nil {
		t.Errorf("RequirePOST failed: %v", err)
	}
}

func TestRunPOSTChecks(t *testing.T) {
	result := crypto.RunPOST()
	if result == nil {
		t.Fatal("RunPOST() returned nil")
	}

	for _, name := range []string{"shake256-kdf", "hkdf-sha512", "chacha20-poly1305", "x25519", "ed25519", "ml-kem-768", "ml-dsa-65"} {
		check, ok := result.Test(name)
		if !ok {
			t.Errorf("check %q did not run", name)
			continue
		}
		if !check.Passed {
			t.Errorf("check %q failed: %v", name, check.Err)
		}
	}

	if _, ok := result.Test("nonexistent"); ok {
		t.Error("Test() found a check that does not exist")
	}
}

// TestRunPOSTIdempotent verifies that POST only runs once
func TestRunPOSTIdempotent(t *testing.T) {
	if crypto.RunPOST() != crypto.RunPOST() {
		t.Error("RunPOST() should return the same result on subsequent calls")
	}
}
