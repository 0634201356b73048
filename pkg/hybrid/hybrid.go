// Package hybrid implements the hybrid algorithm suite, which composes one
// classical and one post-quantum instance per operation.
//
// # Security Model
//
// The hybrid suite is at least as strong as its stronger half for key
// agreement and signatures:
//
//  1. Key agreement combines the X25519 secret and the ML-KEM-768 secret,
//     so an attacker must break both to learn the combined secret.
//  2. Verify requires BOTH sub-signatures (logical AND).
//
// Decrypt is deliberately asymmetric with Verify: it succeeds if EITHER
// sub-ciphertext opens (logical OR). This lets a recipient read messages
// while only one half of its key material is usable, at the cost of hybrid
// confidentiality being only as strong as the weaker half.
//
// # Construction
//
// Key agreement (KEM-style, static-ephemeral):
//
//	K_x ← X25519(sk_x_ours, pk_x_peer)
//	(ct, K_m) ← PQ.Encaps(pk_m_peer)
//	K ← SHA-256(K_x ‖ K_m)
//
// Public keys, signatures and ciphertexts are encoded as
//
//	u32be(len(classical)) ‖ classical ‖ u32be(len(pq)) ‖ pq
//
// # Identity
//
// A hybrid identity string is "hybrid-" followed by the classical identity
// string, e.g. "hybrid-pubkey:<base64>". It does not carry the post-quantum
// key; verifiers obtain that from PublicKeys.
package hybrid

import (
	"strings"

	"github.com/pzverkov/quantum-messenger/internal/constants"
	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
	"github.com/pzverkov/quantum-messenger/pkg/classical"
	"github.com/pzverkov/quantum-messenger/pkg/crypto"
	"github.com/pzverkov/quantum-messenger/pkg/postquantum"
	"github.com/pzverkov/quantum-messenger/pkg/suite"
)

// KeyPair owns one classical and one post-quantum key pair.
type KeyPair struct {
	Classical   *classical.KeyPair
	PostQuantum *postquantum.KeyPair
}

// PublicKeys is the public half of a KeyPair.
type PublicKeys struct {
	Classical   *classical.PublicKeys
	PostQuantum *postquantum.PublicKeys
}

// Signature holds both sub-signatures.
type Signature struct {
	Classical   []byte
	PostQuantum []byte
}

// SharedSecret is the combined hybrid secret. The sub-secrets are erased as
// soon as they are combined; only the digest survives.
type SharedSecret struct {
	combined [constants.CombinedSecretSize]byte
}

// GenerateKeyPair generates both sub key pairs.
func GenerateKeyPair() (*KeyPair, error) {
	c, err := classical.GenerateKeyPair()
	if err != nil {
		return nil, qerrors.NewCryptoError("hybrid.GenerateKeyPair", err)
	}
	pq, err := postquantum.GenerateKeyPair()
	if err != nil {
		return nil, qerrors.NewCryptoError("hybrid.GenerateKeyPair", err)
	}
	return &KeyPair{Classical: c, PostQuantum: pq}, nil
}

// NewKeyPair wraps existing sub key pairs. Ownership passes to the result.
func NewKeyPair(c *classical.KeyPair, pq *postquantum.KeyPair) (*KeyPair, error) {
	if c == nil || pq == nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	return &KeyPair{Classical: c, PostQuantum: pq}, nil
}

// PublicKeys returns the public half of the key pair.
func (kp *KeyPair) PublicKeys() *PublicKeys {
	return &PublicKeys{
		Classical:   kp.Classical.PublicKeys(),
		PostQuantum: kp.PostQuantum.PublicKeys(),
	}
}

// PublicKeyString returns "hybrid-pubkey:<base64>".
func (kp *KeyPair) PublicKeyString() string {
	return constants.HybridKeyPrefix + kp.Classical.PublicKeyString()
}

// Zeroize erases both sub key pairs.
func (kp *KeyPair) Zeroize() {
	if kp.Classical != nil {
		kp.Classical.Zeroize()
	}
	if kp.PostQuantum != nil {
		kp.PostQuantum.Zeroize()
	}
}

// String returns "hybrid-pubkey:<base64>".
func (pk *PublicKeys) String() string {
	return constants.HybridKeyPrefix + pk.Classical.String()
}

// Bytes encodes the keys with length prefixes.
func (pk *PublicKeys) Bytes() []byte {
	return suite.EncodePair(pk.Classical.Bytes(), pk.PostQuantum.Bytes())
}

// Equal reports whether both halves match.
func (pk *PublicKeys) Equal(other *PublicKeys) bool {
	if pk == nil || other == nil {
		return pk == other
	}
	return pk.Classical.Equal(other.Classical) && pk.PostQuantum.Equal(other.PostQuantum)
}

// ParsePublicKeys reverses Bytes.
func ParsePublicKeys(data []byte) (*PublicKeys, error) {
	c, pq, err := suite.DecodePair(data)
	if err != nil {
		return nil, err
	}
	classicalKeys, err := classical.ParsePublicKeys(c)
	if err != nil {
		return nil, err
	}
	pqKeys, err := postquantum.ParsePublicKeys(pq)
	if err != nil {
		return nil, err
	}
	return &PublicKeys{Classical: classicalKeys, PostQuantum: pqKeys}, nil
}

// ClassicalPublicKeyString strips the hybrid prefix from an identity string,
// returning the embedded "pubkey:<base64>" string.
func ClassicalPublicKeyString(s string) (string, error) {
	inner, ok := strings.CutPrefix(s, constants.HybridKeyPrefix)
	if !ok || !strings.HasPrefix(inner, constants.ClassicalKeyPrefix) {
		return "", qerrors.NewCryptoError("hybrid.ParsePublicKeyString", qerrors.ErrInvalidPublicKey)
	}
	return inner, nil
}

// Bytes encodes the signature with length prefixes.
func (s *Signature) Bytes() []byte {
	return suite.EncodePair(s.Classical, s.PostQuantum)
}

// ParseSignature reverses Signature.Bytes.
func ParseSignature(data []byte) (*Signature, error) {
	c, pq, err := suite.DecodePair(data)
	if err != nil {
		return nil, err
	}
	return &Signature{Classical: c, PostQuantum: pq}, nil
}

// Combined returns the 32-byte combined secret.
func (s *SharedSecret) Combined() [constants.CombinedSecretSize]byte {
	return s.combined
}

// Bytes returns a copy of the combined secret.
func (s *SharedSecret) Bytes() []byte {
	return append([]byte(nil), s.combined[:]...)
}

// Zeroize erases the combined secret.
func (s *SharedSecret) Zeroize() {
	crypto.Zeroize(s.combined[:])
}

// CombineSecrets returns SHA-256(classicalSecret ‖ pqSecret).
func CombineSecrets(classicalSecret, pqSecret []byte) [constants.CombinedSecretSize]byte {
	return crypto.Sum256(classicalSecret, pqSecret)
}

// newSharedSecret combines and erases both sub-secrets.
func newSharedSecret(c *classical.SharedSecret, pq *postquantum.SharedSecret) *SharedSecret {
	s := &SharedSecret{combined: CombineSecrets(c.Bytes(), pq.Bytes())}
	c.Zeroize()
	pq.Zeroize()
	return s
}
