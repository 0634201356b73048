package messaging_test

import (
	"errors"
	"strings"
	"testing"

	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
	"github.com/pzverkov/quantum-messenger/pkg/messaging"
	"github.com/pzverkov/quantum-messenger/pkg/mode"
)

// --- Username Claim Tests ---

func TestValidateUsername(t *testing.T) {
	cases := []struct {
		name string
		ok   bool
	}{
		{"alice", true},
		{"alice2024", true},
		{"a_b-c", true},
		{"9lives", true},
		{strings.Repeat("x", 32), true},
		{"", false},
		{strings.Repeat("x", 33), false},
		{"_alice", false},
		{"-alice", false},
		{"alice smith", false},
		{"alice@home", false},
	}
	for _, tc := range cases {
		err := messaging.ValidateUsername(tc.name)
		if tc.ok && err != nil {
			t.Errorf("ValidateUsername(%q) failed: %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, qerrors.ErrInvalidMessage) {
			t.Errorf("ValidateUsername(%q): expected ErrInvalidMessage, got %v", tc.name, err)
		}
	}
}

func TestUsernameClaimSignVerify(t *testing.T) {
	for _, m := range mode.All() {
		kp := mustKeyPair(t, m)
		claim, err := messaging.NewUsernameClaim("alice2024", kp)
		if err != nil {
			t.Fatalf("%s: NewUsernameClaim failed: %v", m, err)
		}
		if claim.ClaimType != "username_claim" {
			t.Errorf("claim type = %q", claim.ClaimType)
		}
		if err := claim.Verify(); err != nil {
			t.Errorf("%s: Verify failed: %v", m, err)
		}

		data, err := claim.ToJSON()
		if err != nil {
			t.Fatalf("%s: ToJSON failed: %v", m, err)
		}
		decoded, err := messaging.UsernameClaimFromJSON(data)
		if err != nil {
			t.Fatalf("%s: UsernameClaimFromJSON failed: %v", m, err)
		}
		if err := decoded.Verify(); err != nil {
			t.Errorf("%s: decoded claim failed to verify: %v", m, err)
		}
		if !decoded.PublicKeys.Equal(kp.PublicKeys()) {
			t.Errorf("%s: decoded claim names different keys", m)
		}
	}
}

func TestUsernameClaimTampered(t *testing.T) {
	kp := mustKeyPair(t, mode.Classical)
	claim, err := messaging.NewUsernameClaim("alice", kp)
	if err != nil {
		t.Fatalf("NewUsernameClaim failed: %v", err)
	}

	renamed := *claim
	renamed.Username = "mallory"
	if err := renamed.Verify(); !errors.Is(err, qerrors.ErrSignatureVerification) {
		t.Errorf("renamed: expected ErrSignatureVerification, got %v", err)
	}

	rekeyed := *claim
	rekeyed.PublicKeys = mustKeyPair(t, mode.Classical).PublicKeys()
	if err := rekeyed.Verify(); !errors.Is(err, qerrors.ErrSignatureVerification) {
		t.Errorf("rekeyed: expected ErrSignatureVerification, got %v", err)
	}

	wrongType := *claim
	wrongType.ClaimType = "other"
	if err := wrongType.Verify(); !errors.Is(err, qerrors.ErrInvalidMessage) {
		t.Errorf("claim type: expected ErrInvalidMessage, got %v", err)
	}
}

func TestUsernameClaimErrors(t *testing.T) {
	kp := mustKeyPair(t, mode.Classical)
	if _, err := messaging.NewUsernameClaim("_bad", kp); !errors.Is(err, qerrors.ErrInvalidMessage) {
		t.Errorf("expected ErrInvalidMessage, got %v", err)
	}

	claim, err := messaging.NewUsernameClaim("alice", kp)
	if err != nil {
		t.Fatalf("NewUsernameClaim failed: %v", err)
	}
	if err := claim.Sign(mustKeyPair(t, mode.Classical)); !errors.Is(err, qerrors.ErrInvalidPublicKey) {
		t.Errorf("foreign key: expected ErrInvalidPublicKey, got %v", err)
	}
	if _, err := messaging.UsernameClaimFromJSON([]byte("[")); !errors.Is(err, qerrors.ErrInvalidMessage) {
		t.Errorf("expected ErrInvalidMessage, got %v", err)
	}
}
