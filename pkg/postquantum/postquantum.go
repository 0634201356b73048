// Package postquantum implements the post-quantum algorithm suite.
//
// # Construction
//
// Key material is two independent seeds, expanded deterministically:
//
//	kem_seed  (64 bytes) → ML-KEM-768 key pair   (NIST FIPS 203)
//	sign_seed (32 bytes) → ML-DSA-65 key pair    (NIST FIPS 204)
//	public key = kem_pk (1184) ‖ sig_pk (1952)
//
// Key agreement is KEM-only; KeyExchange returns ErrKEMRequired.
//
// Encapsulation appends an integrity tag to the ML-KEM ciphertext:
//
//	(ct_m, K) ← ML-KEM-768.Encaps(kem_pk)
//	tag       ← SHAKE-256(domain, ct_m, K, kem_pk)[0:32]
//	ct        = ct_m ‖ tag
//
// ML-KEM decapsulation rejects implicitly (a modified ciphertext yields an
// unrelated secret). Recomputing the tag on decapsulation turns that into an
// explicit ErrInvalidCiphertext, so a caller never receives a wrong secret.
//
// Asymmetric encryption is KEM-DEM: the KEM secret keys ChaCha20-Poly1305
// through HKDF-SHA-512 with the KEM ciphertext hash as salt.
//
// Security Level: NIST Category 3
package postquantum

import (
	"encoding/base64"
	"strings"

	"github.com/pzverkov/quantum-messenger/internal/constants"
	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
	"github.com/pzverkov/quantum-messenger/pkg/crypto"
	"github.com/pzverkov/quantum-messenger/pkg/suite"
)

// SeedSize is the size of the secret a KeyPair is expanded from.
const SeedSize = constants.MLKEMSeedSize + constants.MLDSASeedSize

// KeyPair is a post-quantum user key pair.
type KeyPair struct {
	kem  *crypto.MLKEMKeyPair
	sig  *crypto.MLDSAKeyPair
	seed []byte
}

// PublicKeys is the public half of a KeyPair.
type PublicKeys struct {
	KEM     *crypto.MLKEMPublicKey
	Signing *crypto.MLDSAPublicKey
}

// SharedSecret is an ML-KEM-768 shared secret.
type SharedSecret struct {
	b []byte
}

// GenerateKeyPair draws both seeds from the CSPRNG and expands them.
func GenerateKeyPair() (*KeyPair, error) {
	seed, err := crypto.SecureRandomBytes(SeedSize)
	if err != nil {
		return nil, qerrors.NewCryptoError("postquantum.GenerateKeyPair", err)
	}
	defer crypto.Zeroize(seed)
	return NewKeyPairFromSeed(seed)
}

// NewKeyPairFromSeed expands kem_seed(64) ‖ sign_seed(32).
// The same seed always produces the same key pair.
func NewKeyPairFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != SeedSize {
		return nil, qerrors.ErrInvalidKeySize
	}
	kem, err := crypto.NewMLKEMKeyPairFromSeed(seed[:constants.MLKEMSeedSize])
	if err != nil {
		return nil, err
	}
	sig, err := crypto.NewMLDSAKeyPairFromSeed(seed[constants.MLKEMSeedSize:])
	if err != nil {
		return nil, err
	}
	return &KeyPair{kem: kem, sig: sig, seed: append([]byte(nil), seed...)}, nil
}

// Seed returns a copy of the secret the key pair was expanded from.
// Warning: Handle with care - this exposes the secret key material.
func (kp *KeyPair) Seed() []byte {
	return append([]byte(nil), kp.seed...)
}

// PublicKeys returns the public half of the key pair.
func (kp *KeyPair) PublicKeys() *PublicKeys {
	return &PublicKeys{KEM: kp.kem.EncapsulationKey, Signing: kp.sig.VerifyingKey}
}

// PublicKeyString returns "pq-pubkey:<base64 kem_pk‖sig_pk>".
func (kp *KeyPair) PublicKeyString() string {
	return kp.PublicKeys().String()
}

// Zeroize erases the private key material.
func (kp *KeyPair) Zeroize() {
	crypto.Zeroize(kp.seed)
	kp.seed = nil
	if kp.kem != nil {
		kp.kem.Zeroize()
	}
	if kp.sig != nil {
		kp.sig.Zeroize()
	}
}

// Bytes encodes the keys as kem_pk(1184) ‖ sig_pk(1952).
func (pk *PublicKeys) Bytes() []byte {
	out := make([]byte, 0, constants.PQPublicKeySize)
	out = append(out, pk.KEM.Bytes()...)
	return append(out, pk.Signing.Bytes()...)
}

// String returns "pq-pubkey:<base64>".
func (pk *PublicKeys) String() string {
	return constants.PostQuantumKeyPrefix + base64.StdEncoding.EncodeToString(pk.Bytes())
}

// Equal reports whether both keys match.
func (pk *PublicKeys) Equal(other *PublicKeys) bool {
	if pk == nil || other == nil {
		return pk == other
	}
	return crypto.ConstantTimeCompare(pk.Bytes(), other.Bytes())
}

// ParsePublicKeys reverses Bytes.
func ParsePublicKeys(data []byte) (*PublicKeys, error) {
	if len(data) != constants.PQPublicKeySize {
		return nil, qerrors.ErrInvalidPublicKey
	}
	kem, err := crypto.ParseMLKEMPublicKey(data[:constants.MLKEMPublicKeySize])
	if err != nil {
		return nil, err
	}
	sig, err := crypto.ParseMLDSAPublicKey(data[constants.MLKEMPublicKeySize:])
	if err != nil {
		return nil, err
	}
	return &PublicKeys{KEM: kem, Signing: sig}, nil
}

// ParsePublicKeyString parses a "pq-pubkey:<base64>" identity string.
func ParsePublicKeyString(s string) (*PublicKeys, error) {
	encoded, ok := strings.CutPrefix(s, constants.PostQuantumKeyPrefix)
	if !ok {
		return nil, qerrors.NewCryptoError("postquantum.ParsePublicKeyString", qerrors.ErrInvalidPublicKey)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, qerrors.NewCryptoError("postquantum.ParsePublicKeyString", qerrors.ErrInvalidEncoding)
	}
	return ParsePublicKeys(raw)
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

// Suite is the post-quantum algorithm suite.
type Suite struct {
	suite.ChaCha20Poly1305
}

var (
	_ suite.Suite[*KeyPair, *PublicKeys, *SharedSecret, []byte] = Suite{}
	_ suite.KEM[*KeyPair, *PublicKeys, *SharedSecret]           = Suite{}
)

// GeneratePrivateKey generates a fresh key pair from the CSPRNG.
func (Suite) GeneratePrivateKey() (*KeyPair, error) {
	return GenerateKeyPair()
}

// PublicKey returns the public half of kp.
func (Suite) PublicKey(kp *KeyPair) *PublicKeys {
	return kp.PublicKeys()
}

// KeyExchange is not supported by a KEM; use Encapsulate.
func (Suite) KeyExchange(*KeyPair, *PublicKeys) (*SharedSecret, error) {
	return nil, qerrors.NewCryptoError("postquantum.KeyExchange", qerrors.ErrKEMRequired)
}

// Encapsulate creates a fresh shared secret for pub.
//
// Returns:
//   - ciphertext: constants.PQCiphertextSize bytes (ML-KEM ciphertext ‖ tag)
//   - secret: 32-byte shared secret
func (Suite) Encapsulate(pub *PublicKeys) ([]byte, *SharedSecret, error) {
	if pub == nil || pub.KEM == nil {
		return nil, nil, qerrors.ErrInvalidPublicKey
	}

	kemCT, ss, err := crypto.MLKEMEncapsulate(pub.KEM)
	if err != nil {
		return nil, nil, qerrors.NewCryptoError("postquantum.Encapsulate", err)
	}

	tag, err := integrityTag(kemCT, ss, pub.KEM.Bytes())
	if err != nil {
		crypto.Zeroize(ss)
		return nil, nil, err
	}

	ct := make([]byte, 0, constants.PQCiphertextSize)
	ct = append(ct, kemCT...)
	ct = append(ct, tag...)

	return ct, &SharedSecret{b: ss}, nil
}

// Decapsulate recovers the shared secret. A ciphertext of the wrong size or
// with a tag that does not match fails with ErrInvalidCiphertext.
func (Suite) Decapsulate(kp *KeyPair, ciphertext []byte) (*SharedSecret, error) {
	if kp == nil || kp.kem == nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	if len(ciphertext) != constants.PQCiphertextSize {
		return nil, qerrors.NewCryptoError("postquantum.Decapsulate", qerrors.ErrInvalidCiphertext)
	}

	kemCT := ciphertext[:constants.MLKEMCiphertextSize]
	ss, err := crypto.MLKEMDecapsulate(kp.kem.DecapsulationKey, kemCT)
	if err != nil {
		return nil, qerrors.NewCryptoError("postquantum.Decapsulate", err)
	}

	expected, err := integrityTag(kemCT, ss, kp.kem.PublicKeyBytes())
	if err != nil {
		crypto.Zeroize(ss)
		return nil, err
	}
	if !crypto.ConstantTimeCompare(expected, ciphertext[constants.MLKEMCiphertextSize:]) {
		crypto.Zeroize(ss)
		return nil, qerrors.NewCryptoError("postquantum.Decapsulate", qerrors.ErrInvalidCiphertext)
	}

	return &SharedSecret{b: ss}, nil
}

func integrityTag(kemCT, ss, kemPub []byte) ([]byte, error) {
	return crypto.DeriveKeyMultiple(constants.DomainSeparatorPQTag, [][]byte{kemCT, ss, kemPub}, constants.PQIntegrityTagSize)
}

// Sign produces an ML-DSA-65 signature over data.
func (Suite) Sign(kp *KeyPair, data []byte) ([]byte, error) {
	if kp == nil || kp.sig == nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	sig, err := crypto.MLDSASign(kp.sig.SigningKey, data)
	if err != nil {
		return nil, qerrors.NewCryptoError("postquantum.Sign", err)
	}
	return sig, nil
}

// Verify checks an ML-DSA-65 signature.
func (Suite) Verify(pub *PublicKeys, data, sig []byte) error {
	if pub == nil {
		return qerrors.ErrInvalidPublicKey
	}
	if err := crypto.MLDSAVerify(pub.Signing, data, sig); err != nil {
		return qerrors.NewCryptoError("postquantum.Verify", err)
	}
	return nil
}
