// Package classical implements the classical algorithm suite:
//
//   - X25519 static Diffie-Hellman key exchange (RFC 7748)
//   - Ed25519 signatures over raw message bytes (RFC 8032)
//   - ChaCha20-Poly1305 symmetric AEAD (RFC 8439)
//   - ECIES: ephemeral X25519 + HKDF-SHA-512 + ChaCha20-Poly1305
//
// A user's classical identity is its Ed25519 verifying key, rendered as
// "pubkey:<base64>". The X25519 key is published alongside it in PublicKeys.
package classical

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"encoding/base64"
	"strings"

	"github.com/pzverkov/quantum-messenger/internal/constants"
	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
	"github.com/pzverkov/quantum-messenger/pkg/crypto"
	"github.com/pzverkov/quantum-messenger/pkg/suite"
)

// SeedSize is the size of the seed a KeyPair is derived from:
// a 32-byte Ed25519 seed followed by a 32-byte X25519 private key.
const SeedSize = constants.Ed25519SeedSize + constants.X25519PrivateKeySize

// PublicKeysSize is the encoded size of PublicKeys.
const PublicKeysSize = constants.Ed25519PublicKeySize + constants.X25519PublicKeySize

// KeyPair is a classical user key pair: an Ed25519 signing key and an X25519
// key-exchange key.
type KeyPair struct {
	signing  *crypto.Ed25519KeyPair
	exchange *crypto.X25519KeyPair
}

// PublicKeys is the public half of a KeyPair.
type PublicKeys struct {
	Signing  ed25519.PublicKey
	Exchange *ecdh.PublicKey
}

// SharedSecret is an X25519 shared secret. It is single use: callers should
// Zeroize it once the derived keys exist.
type SharedSecret struct {
	b []byte
}

// GenerateKeyPair generates a new classical key pair.
func GenerateKeyPair() (*KeyPair, error) {
	signing, err := crypto.GenerateEd25519KeyPair()
	if err != nil {
		return nil, qerrors.NewCryptoError("classical.GenerateKeyPair", err)
	}
	exchange, err := crypto.GenerateX25519KeyPair()
	if err != nil {
		return nil, qerrors.NewCryptoError("classical.GenerateKeyPair", err)
	}
	return &KeyPair{signing: signing, exchange: exchange}, nil
}

// NewKeyPairFromSeed rebuilds a key pair from the 64-byte seed returned by Seed.
func NewKeyPairFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != SeedSize {
		return nil, qerrors.ErrInvalidKeySize
	}
	signing, err := crypto.NewEd25519KeyPairFromSeed(seed[:constants.Ed25519SeedSize])
	if err != nil {
		return nil, err
	}
	exchange, err := crypto.NewX25519KeyPairFromBytes(seed[constants.Ed25519SeedSize:])
	if err != nil {
		return nil, err
	}
	return &KeyPair{signing: signing, exchange: exchange}, nil
}

// Seed returns the secret material of the key pair.
// Warning: Handle with care - this exposes the secret key material.
func (kp *KeyPair) Seed() []byte {
	out := make([]byte, 0, SeedSize)
	out = append(out, kp.signing.Seed()...)
	return append(out, kp.exchange.PrivateKeyBytes()...)
}

// PublicKeys returns the public half of the key pair.
func (kp *KeyPair) PublicKeys() *PublicKeys {
	return &PublicKeys{
		Signing:  kp.signing.PublicKey,
		Exchange: kp.exchange.PublicKey,
	}
}

// PublicKeyString returns the canonical identity string "pubkey:<base64>".
func (kp *KeyPair) PublicKeyString() string {
	return FormatPublicKeyString(kp.signing.PublicKey)
}

// ExchangePublicKey returns the raw X25519 public key.
func (kp *KeyPair) ExchangePublicKey() []byte {
	return kp.exchange.PublicKeyBytes()
}

// ExchangePrivateKey returns the X25519 private key.
func (kp *KeyPair) ExchangePrivateKey() *ecdh.PrivateKey {
	return kp.exchange.PrivateKey
}

// Zeroize erases the private key material.
func (kp *KeyPair) Zeroize() {
	if kp.signing != nil {
		kp.signing.Zeroize()
	}
	if kp.exchange != nil {
		kp.exchange.Zeroize()
	}
}

// NewPublicKeys builds PublicKeys from a raw Ed25519 and X25519 key.
func NewPublicKeys(signing, exchange []byte) (*PublicKeys, error) {
	sig, err := crypto.ParseEd25519PublicKey(signing)
	if err != nil {
		return nil, err
	}
	x, err := crypto.ParseX25519PublicKey(exchange)
	if err != nil {
		return nil, err
	}
	return &PublicKeys{Signing: sig, Exchange: x}, nil
}

// String returns the canonical identity string "pubkey:<base64>".
func (pk *PublicKeys) String() string {
	return FormatPublicKeyString(pk.Signing)
}

// Bytes encodes the keys as ed25519_pub(32) ‖ x25519_pub(32).
func (pk *PublicKeys) Bytes() []byte {
	out := make([]byte, 0, PublicKeysSize)
	out = append(out, pk.Signing...)
	return append(out, pk.Exchange.Bytes()...)
}

// ParsePublicKeys reverses Bytes.
func ParsePublicKeys(data []byte) (*PublicKeys, error) {
	if len(data) != PublicKeysSize {
		return nil, qerrors.ErrInvalidPublicKey
	}
	return NewPublicKeys(data[:constants.Ed25519PublicKeySize], data[constants.Ed25519PublicKeySize:])
}

// Equal reports whether both keys match.
func (pk *PublicKeys) Equal(other *PublicKeys) bool {
	if pk == nil || other == nil {
		return pk == other
	}
	return pk.Signing.Equal(other.Signing) && pk.Exchange.Equal(other.Exchange)
}

// FormatPublicKeyString renders an Ed25519 verifying key as "pubkey:<base64>".
func FormatPublicKeyString(pub ed25519.PublicKey) string {
	return constants.ClassicalKeyPrefix + base64.StdEncoding.EncodeToString(pub)
}

// ParsePublicKeyString extracts the Ed25519 verifying key from a
// "pubkey:<base64>" identity string.
func ParsePublicKeyString(s string) (ed25519.PublicKey, error) {
	encoded, ok := strings.CutPrefix(s, constants.ClassicalKeyPrefix)
	if !ok {
		return nil, qerrors.NewCryptoError("classical.ParsePublicKeyString", qerrors.ErrInvalidPublicKey)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, qerrors.NewCryptoError("classical.ParsePublicKeyString", qerrors.ErrInvalidEncoding)
	}
	return crypto.ParseEd25519PublicKey(raw)
}

// Bytes returns the secret. The slice aliases the secret's storage.
func (s *SharedSecret) Bytes() []byte {
	return s.b
}

// Zeroize erases the secret.
func (s *SharedSecret) Zeroize() {
	crypto.Zeroize(s.b)
	s.b = nil
}

// Suite is the classical algorithm suite.
type Suite struct {
	suite.ChaCha20Poly1305
}

var _ suite.Suite[*KeyPair, *PublicKeys, *SharedSecret, []byte] = Suite{}

// GeneratePrivateKey generates a fresh key pair from the CSPRNG.
func (Suite) GeneratePrivateKey() (*KeyPair, error) {
	return GenerateKeyPair()
}

// PublicKey returns the public half of kp.
func (Suite) PublicKey(kp *KeyPair) *PublicKeys {
	return kp.PublicKeys()
}

// KeyExchange computes the X25519 shared secret between kp and peer.
// Both sides of an exchange obtain the same bytes.
func (Suite) KeyExchange(kp *KeyPair, peer *PublicKeys) (*SharedSecret, error) {
	if kp == nil || kp.exchange == nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	if peer == nil || peer.Exchange == nil {
		return nil, qerrors.ErrInvalidPublicKey
	}
	secret, err := crypto.X25519(kp.exchange.PrivateKey, peer.Exchange)
	if err != nil {
		return nil, qerrors.NewCryptoError("classical.KeyExchange", err)
	}
	return &SharedSecret{b: secret}, nil
}

// Sign produces a 64-byte Ed25519 signature over data.
func (Suite) Sign(kp *KeyPair, data []byte) ([]byte, error) {
	if kp == nil || kp.signing == nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	return crypto.Ed25519Sign(kp.signing.PrivateKey, data)
}

// Verify checks an Ed25519 signature.
func (Suite) Verify(pub *PublicKeys, data, sig []byte) error {
	if pub == nil {
		return qerrors.ErrInvalidPublicKey
	}
	return VerifyWithKey(pub.Signing, data, sig)
}

// VerifyWithKey checks an Ed25519 signature against a bare verifying key, as
// recovered from an identity string.
func VerifyWithKey(pub ed25519.PublicKey, data, sig []byte) error {
	if err := crypto.Ed25519Verify(pub, data, sig); err != nil {
		return qerrors.NewCryptoError("classical.Verify", err)
	}
	return nil
}
