package mode_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
	"github.com/pzverkov/quantum-messenger/pkg/mode"
)

// --- Mode Tests ---

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want mode.Mode
	}{
		{"classical", mode.Classical},
		{"Classic", mode.Classical},
		{"HYBRID", mode.Hybrid},
		{"quantum", mode.Quantum},
		{"postquantum", mode.Quantum},
		{"Post-Quantum", mode.Quantum},
		{"pq", mode.Quantum},
		{" quantum-safe ", mode.Quantum},
	}
	for _, tc := range cases {
		got, err := mode.Parse(tc.in)
		if err != nil {
			t.Errorf("Parse(%q) failed: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Parse(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"", "invalid", "rsa", "hybrid2"} {
		_, err := mode.Parse(in)
		if !errors.Is(err, qerrors.ErrInvalidMode) {
			t.Errorf("Parse(%q): expected ErrInvalidMode, got %v", in, err)
		}
	}
	_, err := mode.Parse("bogus")
	if err == nil || !strings.Contains(err.Error(), "Valid options: classical, hybrid, quantum") {
		t.Errorf("error should list valid options: %v", err)
	}
}

func TestQuantumSafeAlias(t *testing.T) {
	if mode.QuantumSafe != mode.Quantum {
		t.Error("QuantumSafe should alias Quantum")
	}
}

func TestCanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to mode.Mode
		want     bool
	}{
		{mode.Classical, mode.Classical, true},
		{mode.Hybrid, mode.Hybrid, true},
		{mode.Quantum, mode.Quantum, true},
		{mode.Classical, mode.Hybrid, true},
		{mode.Classical, mode.Quantum, true},
		{mode.Hybrid, mode.Quantum, true},
		{mode.Hybrid, mode.Classical, false},
		{mode.Quantum, mode.Classical, false},
		{mode.Quantum, mode.Hybrid, false},
		{mode.Classical, mode.Mode(9), false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s.CanTransitionTo(%s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestSecurityLevelMonotonic(t *testing.T) {
	modes := mode.All()
	if len(modes) != 3 {
		t.Fatalf("All() returned %d modes", len(modes))
	}
	for i, m := range modes {
		if int(m.SecurityLevel()) != i+1 {
			t.Errorf("%s.SecurityLevel() = %d, want %d", m, m.SecurityLevel(), i+1)
		}
		for _, other := range modes {
			want := other.SecurityLevel() >= m.SecurityLevel()
			if m.CanTransitionTo(other) != want {
				t.Errorf("CanTransitionTo disagrees with security level for %s -> %s", m, other)
			}
		}
	}
}

func TestAttributes(t *testing.T) {
	if mode.Classical.IsQuantumResistant() {
		t.Error("Classical should not be quantum resistant")
	}
	if !mode.Hybrid.IsQuantumResistant() || !mode.Quantum.IsQuantumResistant() {
		t.Error("Hybrid and Quantum should be quantum resistant")
	}
	if mode.Classical.PerformanceCost() != 1.0 || mode.Hybrid.PerformanceCost() != 1.8 || mode.Quantum.PerformanceCost() != 1.4 {
		t.Error("unexpected performance costs")
	}
	if mode.Classical.SizeOverhead() != 0 || mode.Hybrid.SizeOverhead() != 2048 || mode.Quantum.SizeOverhead() != 1536 {
		t.Error("unexpected size overheads")
	}
	for _, m := range mode.All() {
		if m.Description() == "" || m.SecurityDescription() == "" {
			t.Errorf("%s lacks a description", m)
		}
	}
}

func TestRecommendedForThreatModel(t *testing.T) {
	if got := mode.RecommendedForThreatModel(false, true); got != mode.Classical {
		t.Errorf("no threat: got %s", got)
	}
	if got := mode.RecommendedForThreatModel(true, true); got != mode.Quantum {
		t.Errorf("threat + performance: got %s", got)
	}
	if got := mode.RecommendedForThreatModel(true, false); got != mode.Hybrid {
		t.Errorf("threat + security: got %s", got)
	}
}

func TestJSON(t *testing.T) {
	type wrapper struct {
		Mode mode.Mode `json:"crypto_mode"`
	}

	data, err := json.Marshal(wrapper{Mode: mode.Hybrid})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"crypto_mode":"hybrid"}` {
		t.Errorf("Marshal = %s", data)
	}

	var w wrapper
	if err := json.Unmarshal([]byte(`{"crypto_mode":"pq"}`), &w); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if w.Mode != mode.Quantum {
		t.Errorf("Unmarshal = %s", w.Mode)
	}

	if err := json.Unmarshal([]byte(`{"crypto_mode":"nope"}`), &w); !errors.Is(err, qerrors.ErrInvalidMode) {
		t.Errorf("expected ErrInvalidMode, got %v", err)
	}
	if _, err := json.Marshal(wrapper{Mode: mode.Mode(7)}); err == nil {
		t.Error("Marshal of undefined mode should fail")
	}
}

// --- Config Tests ---

func TestConfigConstructors(t *testing.T) {
	cases := []struct {
		name string
		cfg  mode.Config
		want mode.Config
	}{
		{"default", mode.DefaultConfig(), mode.Config{Mode: mode.Classical, MinimumMode: mode.Classical, AllowAutoUpgrade: true}},
		{"high security", mode.HighSecurityConfig(), mode.Config{Mode: mode.Hybrid, MinimumMode: mode.Hybrid, AllowAutoUpgrade: true}},
		{"performance", mode.PerformanceConfig(), mode.Config{Mode: mode.Classical, MinimumMode: mode.Classical, AdaptiveMode: true}},
		{"new", mode.NewConfig(mode.Quantum), mode.Config{Mode: mode.Quantum, MinimumMode: mode.Classical, AllowAutoUpgrade: true}},
	}
	for _, tc := range cases {
		if tc.cfg != tc.want {
			t.Errorf("%s: got %+v, want %+v", tc.name, tc.cfg, tc.want)
		}
		if err := tc.cfg.Validate(); err != nil {
			t.Errorf("%s: Validate failed: %v", tc.name, err)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	valid := mode.Config{Mode: mode.Hybrid, MinimumMode: mode.Classical}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}

	invalid := mode.Config{Mode: mode.Classical, MinimumMode: mode.Hybrid}
	if err := invalid.Validate(); !errors.Is(err, qerrors.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestAcceptsMode(t *testing.T) {
	cfg := mode.HighSecurityConfig()

	if cfg.AcceptsMode(mode.Classical) {
		t.Error("high security config should reject classical")
	}
	if !cfg.AcceptsMode(mode.Hybrid) || !cfg.AcceptsMode(mode.Quantum) {
		t.Error("high security config should accept hybrid and quantum")
	}

	err := cfg.CheckIncoming("test", mode.Classical)
	if !errors.Is(err, qerrors.ErrModeNotAccepted) {
		t.Fatalf("expected ErrModeNotAccepted, got %v", err)
	}
	var pe *qerrors.PolicyError
	if !errors.As(err, &pe) || pe.Incoming != "classical" || pe.Minimum != "hybrid" {
		t.Errorf("unexpected policy error: %#v", err)
	}
}

func TestCheckOutgoing(t *testing.T) {
	tests := []struct {
		cfg     mode.Config
		m       mode.Mode
		wantErr bool
	}{
		{mode.DefaultConfig(), mode.Classical, false},
		{mode.HighSecurityConfig(), mode.Classical, true},
		{mode.HighSecurityConfig(), mode.Hybrid, false},
		{mode.Config{Mode: mode.Quantum, MinimumMode: mode.Quantum}, mode.Hybrid, true},
		{mode.Config{Mode: mode.Quantum, MinimumMode: mode.Quantum}, mode.Quantum, false},
	}
	for _, tt := range tests {
		err := tt.cfg.CheckOutgoing("test", tt.m)
		if tt.wantErr != errors.Is(err, qerrors.ErrModeNotAccepted) {
			t.Errorf("CheckOutgoing(%s) under minimum %s: got %v", tt.m, tt.cfg.MinimumMode, err)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("CheckOutgoing(%s) failed: %v", tt.m, err)
		}
	}
}

func TestWithMode(t *testing.T) {
	cfg := mode.DefaultConfig()

	upgraded, err := cfg.WithMode(mode.Hybrid)
	if err != nil {
		t.Fatalf("WithMode(Hybrid) failed: %v", err)
	}
	if upgraded.Mode != mode.Hybrid || cfg.Mode != mode.Classical {
		t.Error("WithMode should return a modified copy")
	}

	if _, err := upgraded.WithMode(mode.Classical); !errors.Is(err, qerrors.ErrDowngrade) {
		t.Errorf("expected ErrDowngrade, got %v", err)
	}
	if _, err := cfg.WithMode(mode.Mode(5)); !errors.Is(err, qerrors.ErrInvalidMode) {
		t.Errorf("expected ErrInvalidMode, got %v", err)
	}
}

func TestNegotiate(t *testing.T) {
	cfg := mode.DefaultConfig()
	if got := cfg.Negotiate(mode.Hybrid); got != mode.Hybrid {
		t.Errorf("auto-upgrade: got %s", got)
	}

	noUpgrade := mode.PerformanceConfig()
	if got := noUpgrade.Negotiate(mode.Hybrid); got != mode.Classical {
		t.Errorf("no auto-upgrade: got %s", got)
	}

	hybrid := mode.HighSecurityConfig()
	if got := hybrid.Negotiate(mode.Classical); got != mode.Hybrid {
		t.Errorf("weaker peer must not downgrade: got %s", got)
	}
}

// --- Compatibility Tests ---

func TestCompatibilityTable(t *testing.T) {
	cases := []struct {
		sender, recipient mode.Mode
		route             mode.Route
	}{
		{mode.Classical, mode.Classical, mode.RouteClassical},
		{mode.Hybrid, mode.Hybrid, mode.RouteHybrid},
		{mode.Quantum, mode.Quantum, mode.RoutePostQuantum},
		{mode.Classical, mode.Hybrid, mode.RouteHybridClassicalHalf},
		{mode.Quantum, mode.Hybrid, mode.RouteHybridPostQuantumHalf},
		{mode.Classical, mode.Quantum, mode.RouteNone},
		{mode.Quantum, mode.Classical, mode.RouteNone},
		{mode.Hybrid, mode.Classical, mode.RouteNone},
		{mode.Hybrid, mode.Quantum, mode.RouteNone},
	}

	for _, tc := range cases {
		enc, encErr := mode.EncryptRoute(tc.sender, tc.recipient)
		dec, decErr := mode.DecryptRoute(tc.sender, tc.recipient)

		if tc.route == mode.RouteNone {
			if !errors.Is(encErr, qerrors.ErrIncompatibleModes) || !errors.Is(decErr, qerrors.ErrIncompatibleModes) {
				t.Errorf("(%s, %s): expected ErrIncompatibleModes, got %v / %v", tc.sender, tc.recipient, encErr, decErr)
			}
			continue
		}
		if encErr != nil || decErr != nil {
			t.Errorf("(%s, %s): unexpected errors %v / %v", tc.sender, tc.recipient, encErr, decErr)
			continue
		}
		if enc != tc.route || dec != tc.route {
			t.Errorf("(%s, %s): routes %s / %s, want %s", tc.sender, tc.recipient, enc, dec, tc.route)
		}
	}
}

func TestIncompatibleMessage(t *testing.T) {
	_, err := mode.EncryptRoute(mode.Classical, mode.Quantum)
	if err == nil || !strings.Contains(err.Error(), "cannot encrypt classical message to post-quantum-only recipient") {
		t.Errorf("unexpected error text: %v", err)
	}
}
