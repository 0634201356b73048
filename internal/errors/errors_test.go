package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestCryptoError tests CryptoError type.
func TestCryptoError(t *testing.T) {
	baseErr := errors.New("base error")
	cerr := NewCryptoError("pq-decapsulate", baseErr)

	errStr := cerr.Error()
	if !strings.Contains(errStr, "pq-decapsulate") {
		t.Errorf("Error string should contain operation: %q", errStr)
	}
	if !strings.Contains(errStr, "base error") {
		t.Errorf("Error string should contain base error: %q", errStr)
	}

	if unwrapped := cerr.Unwrap(); unwrapped != baseErr {
		t.Errorf("Unwrap() returned %v, want %v", unwrapped, baseErr)
	}
}

// TestPolicyError tests PolicyError formatting and unwrapping.
func TestPolicyError(t *testing.T) {
	perr := NewPolicyError("decrypt-message", "classical", "hybrid", ErrModeNotAccepted)

	errStr := perr.Error()
	for _, want := range []string{"decrypt-message", "classical", "hybrid", "minimum"} {
		if !strings.Contains(errStr, want) {
			t.Errorf("Error string %q should contain %q", errStr, want)
		}
	}
	if !errors.Is(perr, ErrModeNotAccepted) {
		t.Error("PolicyError should unwrap to ErrModeNotAccepted")
	}

	noMin := NewPolicyError("encrypt", "quantum", "", ErrIncompatibleModes)
	if strings.Contains(noMin.Error(), "minimum") {
		t.Errorf("Error string without minimum should not mention it: %q", noMin.Error())
	}
}

// TestClassify checks each sentinel lands in its taxonomy group, even when wrapped.
func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Category
	}{
		{ErrInvalidKeySize, CategoryMalformed},
		{ErrInvalidFormat, CategoryMalformed},
		{ErrCiphertextTooShort, CategoryMalformed},
		{ErrDecryptionFailed, CategoryCryptographic},
		{ErrSignatureVerification, CategoryCryptographic},
		{ErrInvalidCiphertext, CategoryCryptographic},
		{ErrModeNotAccepted, CategoryPolicy},
		{ErrDowngrade, CategoryPolicy},
		{ErrIncompatibleModes, CategoryPolicy},
		{ErrAlreadyInitialized, CategoryConfig},
		{ErrInvalidConfig, CategoryConfig},
		{ErrInvalidMessage, CategoryProtocol},
		{NewCryptoError("op", ErrHybridDecrypt), CategoryCryptographic},
		{fmt.Errorf("outer: %w", NewPolicyError("op", "classical", "hybrid", ErrModeNotAccepted)), CategoryPolicy},
		{errors.New("something else"), CategoryUnknown},
		{nil, CategoryUnknown},
	}

	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestCategoryString(t *testing.T) {
	if CategoryPolicy.String() != "policy" {
		t.Errorf("CategoryPolicy.String() = %q", CategoryPolicy.String())
	}
	if Category(99).String() != "unknown" {
		t.Errorf("Category(99).String() = %q", Category(99).String())
	}
}

// TestIsAs tests the Is and As wrapper functions.
func TestIsAs(t *testing.T) {
	wrapped := NewCryptoError("hybrid-verify", ErrSignatureVerification)

	if !Is(wrapped, ErrSignatureVerification) {
		t.Error("Is should find ErrSignatureVerification in chain")
	}
	if Is(wrapped, ErrDecryptionFailed) {
		t.Error("Is should not match unrelated sentinel")
	}

	var cerr *CryptoError
	if !As(wrapped, &cerr) {
		t.Fatal("As should find *CryptoError")
	}
	if cerr.Op != "hybrid-verify" {
		t.Errorf("Op = %q, want %q", cerr.Op, "hybrid-verify")
	}
}

// TestSentinelMessages guards the human-readable reasons relayed to clients.
func TestSentinelMessages(t *testing.T) {
	if !strings.Contains(ErrLegacyDowngrade.Error(), "cannot downgrade") {
		t.Errorf("unexpected ErrLegacyDowngrade message: %q", ErrLegacyDowngrade)
	}
	if !strings.Contains(ErrHybridDecrypt.Error(), "both hybrid") {
		t.Errorf("unexpected ErrHybridDecrypt message: %q", ErrHybridDecrypt)
	}
}
