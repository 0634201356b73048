// Package unified dispatches crypto operations over the three algorithm
// suites.
//
// KeyPair and PublicKeys are sealed unions: exactly one suite variant is set
// and it always matches Mode(). Every entry point switches on the variant
// before calling a suite, so a suite only ever sees its own key types.
//
// Routing between a message mode and a key mode is decided by the
// compatibility table in package mode; this package only executes the route.
package unified

import (
	"crypto/ecdh"
	"fmt"

	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
	"github.com/pzverkov/quantum-messenger/pkg/classical"
	"github.com/pzverkov/quantum-messenger/pkg/hybrid"
	"github.com/pzverkov/quantum-messenger/pkg/mode"
	"github.com/pzverkov/quantum-messenger/pkg/postquantum"
)

// KeyPair is a user key pair in exactly one mode.
type KeyPair struct {
	mode        mode.Mode
	classical   *classical.KeyPair
	hybrid      *hybrid.KeyPair
	postQuantum *postquantum.KeyPair
}

// FromClassical wraps a classical key pair. Existing classical identities
// enter the unified world through this constructor.
func FromClassical(kp *classical.KeyPair) *KeyPair {
	return &KeyPair{mode: mode.Classical, classical: kp}
}

// FromHybrid wraps a hybrid key pair.
func FromHybrid(kp *hybrid.KeyPair) *KeyPair {
	return &KeyPair{mode: mode.Hybrid, hybrid: kp}
}

// FromPostQuantum wraps a post-quantum key pair.
func FromPostQuantum(kp *postquantum.KeyPair) *KeyPair {
	return &KeyPair{mode: mode.Quantum, postQuantum: kp}
}

// GenerateKeyPair generates a key pair of the variant for m.
func GenerateKeyPair(m mode.Mode) (*KeyPair, error) {
	switch m {
	case mode.Classical:
		kp, err := classical.GenerateKeyPair()
		if err != nil {
			return nil, err
		}
		return FromClassical(kp), nil
	case mode.Hybrid:
		kp, err := hybrid.GenerateKeyPair()
		if err != nil {
			return nil, err
		}
		return FromHybrid(kp), nil
	case mode.Quantum:
		kp, err := postquantum.GenerateKeyPair()
		if err != nil {
			return nil, err
		}
		return FromPostQuantum(kp), nil
	}
	return nil, fmt.Errorf("%w: %d", qerrors.ErrInvalidMode, uint8(m))
}

// Mode returns the mode of the key pair.
func (kp *KeyPair) Mode() mode.Mode {
	return kp.mode
}

// Validate reports ErrInvalidPrivateKey unless the variant for Mode() is
// set and complete. Unions built from nil suite keys, and zero values, fail.
func (kp *KeyPair) Validate() error {
	if kp == nil {
		return qerrors.ErrInvalidPrivateKey
	}
	ok := false
	switch kp.mode {
	case mode.Classical:
		ok = kp.classical != nil
	case mode.Hybrid:
		ok = kp.hybrid != nil && kp.hybrid.Classical != nil && kp.hybrid.PostQuantum != nil
	case mode.Quantum:
		ok = kp.postQuantum != nil
	}
	if !ok {
		return qerrors.NewCryptoError("unified.KeyPair", qerrors.ErrInvalidPrivateKey)
	}
	return nil
}

// Classical returns the classical variant, if that is the one set.
func (kp *KeyPair) Classical() (*classical.KeyPair, bool) {
	return kp.classical, kp.classical != nil
}

// Hybrid returns the hybrid variant, if that is the one set.
func (kp *KeyPair) Hybrid() (*hybrid.KeyPair, bool) {
	return kp.hybrid, kp.hybrid != nil
}

// PostQuantum returns the post-quantum variant, if that is the one set.
func (kp *KeyPair) PostQuantum() (*postquantum.KeyPair, bool) {
	return kp.postQuantum, kp.postQuantum != nil
}

// PublicKeyString returns the canonical identity string of the key pair.
func (kp *KeyPair) PublicKeyString() string {
	if kp.Validate() != nil {
		return ""
	}
	switch kp.mode {
	case mode.Classical:
		return kp.classical.PublicKeyString()
	case mode.Hybrid:
		return kp.hybrid.PublicKeyString()
	case mode.Quantum:
		return kp.postQuantum.PublicKeyString()
	}
	return ""
}

// PublicKeys returns the public half of the key pair, or nil for an
// invalid union.
func (kp *KeyPair) PublicKeys() *PublicKeys {
	if kp.Validate() != nil {
		return nil
	}
	switch kp.mode {
	case mode.Classical:
		return PublicKeysFromClassical(kp.classical.PublicKeys())
	case mode.Hybrid:
		return PublicKeysFromHybrid(kp.hybrid.PublicKeys())
	case mode.Quantum:
		return PublicKeysFromPostQuantum(kp.postQuantum.PublicKeys())
	}
	return nil
}

// ExchangePrivateKey returns the X25519 key used for conversation secrets.
// Hybrid key pairs return their classical half; post-quantum key pairs have
// no static Diffie-Hellman key and fail with ErrKEMRequired.
func (kp *KeyPair) ExchangePrivateKey() (*ecdh.PrivateKey, error) {
	if err := kp.Validate(); err != nil {
		return nil, err
	}
	switch kp.mode {
	case mode.Classical:
		return kp.classical.ExchangePrivateKey(), nil
	case mode.Hybrid:
		return kp.hybrid.Classical.ExchangePrivateKey(), nil
	}
	return nil, qerrors.NewCryptoError("unified.ExchangePrivateKey", qerrors.ErrKEMRequired)
}

// Sign signs data with the variant's suite and returns the wire encoding of
// the signature: 64 bytes for classical, the ML-DSA-65 signature for
// post-quantum, and the length-prefixed pair for hybrid.
func (kp *KeyPair) Sign(data []byte) ([]byte, error) {
	if err := kp.Validate(); err != nil {
		return nil, err
	}
	switch kp.mode {
	case mode.Classical:
		return classicalSuite.Sign(kp.classical, data)
	case mode.Hybrid:
		sig, err := hybridSuite.Sign(kp.hybrid, data)
		if err != nil {
			return nil, err
		}
		return sig.Bytes(), nil
	case mode.Quantum:
		return postQuantumSuite.Sign(kp.postQuantum, data)
	}
	return nil, qerrors.ErrInvalidPrivateKey
}

// Decrypt opens a ciphertext produced for a message in mode messageMode.
// The route is taken from the compatibility table, so any pair Encrypt
// refuses is refused here with the same ErrIncompatibleModes.
func (kp *KeyPair) Decrypt(messageMode mode.Mode, ciphertext []byte) ([]byte, error) {
	if err := kp.Validate(); err != nil {
		return nil, err
	}
	route, err := mode.DecryptRoute(messageMode, kp.mode)
	if err != nil {
		return nil, err
	}

	switch route {
	case mode.RouteClassical:
		return classicalSuite.Decrypt(kp.classical, ciphertext)
	case mode.RouteHybrid:
		return hybridSuite.Decrypt(kp.hybrid, ciphertext)
	case mode.RoutePostQuantum:
		return postQuantumSuite.Decrypt(kp.postQuantum, ciphertext)
	case mode.RouteHybridClassicalHalf:
		return classicalSuite.Decrypt(kp.hybrid.Classical, ciphertext)
	case mode.RouteHybridPostQuantumHalf:
		return postQuantumSuite.Decrypt(kp.hybrid.PostQuantum, ciphertext)
	}
	return nil, qerrors.ErrIncompatibleModes
}

// Zeroize erases the private key material of the set variant.
func (kp *KeyPair) Zeroize() {
	if kp == nil {
		return
	}
	switch {
	case kp.classical != nil:
		kp.classical.Zeroize()
	case kp.hybrid != nil:
		kp.hybrid.Zeroize()
	case kp.postQuantum != nil:
		kp.postQuantum.Zeroize()
	}
}

var (
	classicalSuite   classical.Suite
	hybridSuite      hybrid.Suite
	postQuantumSuite postquantum.Suite
)
