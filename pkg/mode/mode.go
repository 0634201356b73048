// Package mode defines the crypto modes, the anti-downgrade transition rule,
// the crypto configuration and the single sender/recipient compatibility
// table consulted by both the encrypt and the decrypt path.
//
// Modes form a strict order by security level:
//
//	Classical (1) < Hybrid (2) < Quantum (3)
//
// CanTransitionTo is the only downgrade gate. Every component that changes
// mode asks it first.
package mode

import (
	"fmt"
	"strings"

	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
)

// Mode selects an algorithm suite.
type Mode uint8

const (
	// Classical uses X25519, Ed25519 and ChaCha20-Poly1305.
	Classical Mode = iota
	// Hybrid combines the classical suite with ML-KEM-768 and ML-DSA-65.
	Hybrid
	// Quantum uses ML-KEM-768 and ML-DSA-65 only.
	Quantum
)

// QuantumSafe is an alias of Quantum.
const QuantumSafe = Quantum

var all = []Mode{Classical, Hybrid, Quantum}

// All returns every mode in ascending security order.
func All() []Mode {
	return append([]Mode(nil), all...)
}

// Parse parses a mode name. Matching is case-insensitive and ignores
// surrounding whitespace.
func Parse(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "classical", "classic":
		return Classical, nil
	case "hybrid":
		return Hybrid, nil
	case "quantum", "postquantum", "post-quantum", "pq", "quantumsafe", "quantum-safe":
		return Quantum, nil
	}
	return Classical, fmt.Errorf("%w: %s. Valid options: classical, hybrid, quantum", qerrors.ErrInvalidMode, s)
}

// Valid reports whether m is a defined mode.
func (m Mode) Valid() bool {
	return m <= Quantum
}

func (m Mode) String() string {
	switch m {
	case Classical:
		return "classical"
	case Hybrid:
		return "hybrid"
	case Quantum:
		return "quantum"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// MarshalText encodes the mode as its lowercase name.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", qerrors.ErrInvalidMode, uint8(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText accepts every alias Parse accepts.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Description returns a human-readable summary of the suite.
func (m Mode) Description() string {
	switch m {
	case Classical:
		return "Classical cryptography using X25519 key exchange, Ed25519 signatures, and ChaCha20-Poly1305 encryption"
	case Hybrid:
		return "Hybrid security combining classical algorithms with post-quantum ML-KEM-768 and ML-DSA-65"
	case Quantum:
		return "Pure post-quantum cryptography using ML-KEM-768 and ML-DSA-65"
	}
	return "unknown crypto mode"
}

// SecurityLevel returns 1, 2 or 3. Higher is stronger.
func (m Mode) SecurityLevel() uint8 {
	switch m {
	case Classical:
		return 1
	case Hybrid:
		return 2
	case Quantum:
		return 3
	}
	return 0
}

// SecurityDescription describes what the mode resists.
func (m Mode) SecurityDescription() string {
	switch m {
	case Classical:
		return "Strong against classical attacks, vulnerable to quantum attacks"
	case Hybrid:
		return "Strong against both classical and quantum attacks (best security)"
	case Quantum:
		return "Strong against quantum attacks, standard classical security"
	}
	return "unknown"
}

// IsQuantumResistant reports whether the mode uses a post-quantum algorithm.
func (m Mode) IsQuantumResistant() bool {
	return m == Hybrid || m == Quantum
}

// PerformanceCost is the relative cost of the mode, with Classical = 1.0.
func (m Mode) PerformanceCost() float64 {
	switch m {
	case Hybrid:
		return 1.8
	case Quantum:
		return 1.4
	}
	return 1.0
}

// SizeOverhead is the approximate extra message size in bytes over Classical.
func (m Mode) SizeOverhead() int {
	switch m {
	case Hybrid:
		return 2048
	case Quantum:
		return 1536
	}
	return 0
}

// CanTransitionTo reports whether moving from m to other keeps or raises the
// security level. Downgrades are refused.
func (m Mode) CanTransitionTo(other Mode) bool {
	if !m.Valid() || !other.Valid() {
		return false
	}
	return other.SecurityLevel() >= m.SecurityLevel()
}

// RecommendedForThreatModel picks a mode for the given threat model.
func RecommendedForThreatModel(quantumThreat, performanceCritical bool) Mode {
	switch {
	case !quantumThreat:
		return Classical
	case performanceCritical:
		return Quantum
	default:
		return Hybrid
	}
}
