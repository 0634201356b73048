package unified

import (
	"crypto/ecdh"
	"encoding/base64"
	"encoding/json"
	"fmt"

	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
	"github.com/pzverkov/quantum-messenger/pkg/classical"
	"github.com/pzverkov/quantum-messenger/pkg/hybrid"
	"github.com/pzverkov/quantum-messenger/pkg/mode"
	"github.com/pzverkov/quantum-messenger/pkg/postquantum"
)

// PublicKeys is the public half of a KeyPair in exactly one mode.
type PublicKeys struct {
	mode        mode.Mode
	classical   *classical.PublicKeys
	hybrid      *hybrid.PublicKeys
	postQuantum *postquantum.PublicKeys
}

// PublicKeysFromClassical wraps classical public keys.
func PublicKeysFromClassical(pk *classical.PublicKeys) *PublicKeys {
	return &PublicKeys{mode: mode.Classical, classical: pk}
}

// PublicKeysFromHybrid wraps hybrid public keys.
func PublicKeysFromHybrid(pk *hybrid.PublicKeys) *PublicKeys {
	return &PublicKeys{mode: mode.Hybrid, hybrid: pk}
}

// PublicKeysFromPostQuantum wraps post-quantum public keys.
func PublicKeysFromPostQuantum(pk *postquantum.PublicKeys) *PublicKeys {
	return &PublicKeys{mode: mode.Quantum, postQuantum: pk}
}

// Mode returns the mode of the keys.
func (pk *PublicKeys) Mode() mode.Mode {
	return pk.mode
}

// Validate reports ErrInvalidPublicKey unless the variant for Mode() is set
// and complete.
func (pk *PublicKeys) Validate() error {
	if pk == nil {
		return qerrors.ErrInvalidPublicKey
	}
	ok := false
	switch pk.mode {
	case mode.Classical:
		ok = pk.classical != nil
	case mode.Hybrid:
		ok = pk.hybrid != nil && pk.hybrid.Classical != nil && pk.hybrid.PostQuantum != nil
	case mode.Quantum:
		ok = pk.postQuantum != nil
	}
	if !ok {
		return qerrors.NewCryptoError("unified.PublicKeys", qerrors.ErrInvalidPublicKey)
	}
	return nil
}

// Classical returns the classical variant, if that is the one set.
func (pk *PublicKeys) Classical() (*classical.PublicKeys, bool) {
	return pk.classical, pk.classical != nil
}

// Hybrid returns the hybrid variant, if that is the one set.
func (pk *PublicKeys) Hybrid() (*hybrid.PublicKeys, bool) {
	return pk.hybrid, pk.hybrid != nil
}

// PostQuantum returns the post-quantum variant, if that is the one set.
func (pk *PublicKeys) PostQuantum() (*postquantum.PublicKeys, bool) {
	return pk.postQuantum, pk.postQuantum != nil
}

// String returns the canonical identity string.
func (pk *PublicKeys) String() string {
	if pk.Validate() != nil {
		return ""
	}
	switch pk.mode {
	case mode.Classical:
		return pk.classical.String()
	case mode.Hybrid:
		return pk.hybrid.String()
	case mode.Quantum:
		return pk.postQuantum.String()
	}
	return ""
}

// Bytes returns the suite encoding of the set variant.
func (pk *PublicKeys) Bytes() []byte {
	if pk.Validate() != nil {
		return nil
	}
	switch pk.mode {
	case mode.Classical:
		return pk.classical.Bytes()
	case mode.Hybrid:
		return pk.hybrid.Bytes()
	case mode.Quantum:
		return pk.postQuantum.Bytes()
	}
	return nil
}

// ParsePublicKeys decodes the suite encoding of keys in mode m.
func ParsePublicKeys(m mode.Mode, data []byte) (*PublicKeys, error) {
	switch m {
	case mode.Classical:
		pk, err := classical.ParsePublicKeys(data)
		if err != nil {
			return nil, err
		}
		return PublicKeysFromClassical(pk), nil
	case mode.Hybrid:
		pk, err := hybrid.ParsePublicKeys(data)
		if err != nil {
			return nil, err
		}
		return PublicKeysFromHybrid(pk), nil
	case mode.Quantum:
		pk, err := postquantum.ParsePublicKeys(data)
		if err != nil {
			return nil, err
		}
		return PublicKeysFromPostQuantum(pk), nil
	}
	return nil, fmt.Errorf("%w: %d", qerrors.ErrInvalidMode, uint8(m))
}

// AddressKey returns the raw key that first-contact inboxes are derived
// from: the X25519 key for classical and hybrid keys, the ML-KEM
// encapsulation key for post-quantum keys.
func (pk *PublicKeys) AddressKey() []byte {
	if pk.Validate() != nil {
		return nil
	}
	switch pk.mode {
	case mode.Classical:
		return pk.classical.Exchange.Bytes()
	case mode.Hybrid:
		return pk.hybrid.Classical.Exchange.Bytes()
	case mode.Quantum:
		return pk.postQuantum.KEM.Bytes()
	}
	return nil
}

// ExchangePublicKey returns the X25519 key used for conversation secrets.
// Post-quantum keys fail with ErrKEMRequired.
func (pk *PublicKeys) ExchangePublicKey() (*ecdh.PublicKey, error) {
	if err := pk.Validate(); err != nil {
		return nil, err
	}
	switch pk.mode {
	case mode.Classical:
		return pk.classical.Exchange, nil
	case mode.Hybrid:
		return pk.hybrid.Classical.Exchange, nil
	}
	return nil, qerrors.NewCryptoError("unified.ExchangePublicKey", qerrors.ErrKEMRequired)
}

// Equal reports whether both values hold the same mode and keys.
func (pk *PublicKeys) Equal(other *PublicKeys) bool {
	if pk == nil || other == nil {
		return pk == other
	}
	if pk.mode != other.mode || pk.Validate() != nil || other.Validate() != nil {
		return false
	}
	switch pk.mode {
	case mode.Classical:
		return pk.classical.Equal(other.classical)
	case mode.Hybrid:
		return pk.hybrid.Equal(other.hybrid)
	case mode.Quantum:
		return pk.postQuantum.Equal(other.postQuantum)
	}
	return false
}

type publicKeysJSON struct {
	Mode mode.Mode `json:"mode"`
	Keys string    `json:"keys"`
}

// MarshalJSON encodes the keys as {"mode": ..., "keys": <base64>}.
func (pk *PublicKeys) MarshalJSON() ([]byte, error) {
	return json.Marshal(publicKeysJSON{
		Mode: pk.mode,
		Keys: base64.StdEncoding.EncodeToString(pk.Bytes()),
	})
}

// UnmarshalJSON reverses MarshalJSON.
func (pk *PublicKeys) UnmarshalJSON(data []byte) error {
	var raw publicKeysJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	keys, err := base64.StdEncoding.DecodeString(raw.Keys)
	if err != nil {
		return qerrors.NewCryptoError("unified.PublicKeys", qerrors.ErrInvalidEncoding)
	}
	parsed, err := ParsePublicKeys(raw.Mode, keys)
	if err != nil {
		return err
	}
	*pk = *parsed
	return nil
}

// Encrypt encrypts plaintext for recipient as a message in mode sender.
//
// The compatibility table decides the route. A classical sender reaches a
// hybrid recipient through its classical half, a post-quantum sender
// through its post-quantum half. Any other mismatch fails with
// ErrIncompatibleModes.
func Encrypt(sender mode.Mode, recipient *PublicKeys, plaintext []byte) ([]byte, error) {
	if err := recipient.Validate(); err != nil {
		return nil, err
	}
	route, err := mode.EncryptRoute(sender, recipient.mode)
	if err != nil {
		return nil, err
	}

	switch route {
	case mode.RouteClassical:
		return classicalSuite.Encrypt(recipient.classical, plaintext)
	case mode.RouteHybrid:
		return hybridSuite.Encrypt(recipient.hybrid, plaintext)
	case mode.RoutePostQuantum:
		return postQuantumSuite.Encrypt(recipient.postQuantum, plaintext)
	case mode.RouteHybridClassicalHalf:
		return classicalSuite.Encrypt(recipient.hybrid.Classical, plaintext)
	case mode.RouteHybridPostQuantumHalf:
		return postQuantumSuite.Encrypt(recipient.hybrid.PostQuantum, plaintext)
	}
	return nil, qerrors.ErrIncompatibleModes
}

// VerifyWithKeys checks a signature in the wire encoding produced by
// KeyPair.Sign against pub.
func VerifyWithKeys(pub *PublicKeys, data, sig []byte) error {
	if err := pub.Validate(); err != nil {
		return err
	}
	switch pub.mode {
	case mode.Classical:
		return classicalSuite.Verify(pub.classical, data, sig)
	case mode.Hybrid:
		parsed, err := hybrid.ParseSignature(sig)
		if err != nil {
			return qerrors.NewCryptoError("unified.VerifyWithKeys", qerrors.ErrInvalidSignature)
		}
		return hybridSuite.Verify(pub.hybrid, data, parsed)
	case mode.Quantum:
		return postQuantumSuite.Verify(pub.postQuantum, data, sig)
	}
	return qerrors.ErrInvalidPublicKey
}
