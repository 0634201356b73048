// mldsa.go implements the ML-DSA-65 signature wrapper (NIST FIPS 204).
//
// ML-DSA is a Fiat-Shamir-with-aborts lattice signature over the same ring
// structure as ML-KEM. The 65 parameter set targets NIST Category 3.
//
// Every signature is bound to constants.SignatureContext, so a signature
// produced by this module cannot be replayed into another protocol that uses
// the same key with a different context.
package crypto

import (
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"

	"github.com/pzverkov/quantum-messenger/internal/constants"
	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
)

// MLDSAPublicKey wraps an ML-DSA-65 verifying key.
type MLDSAPublicKey struct {
	key *mldsa65.PublicKey
}

// MLDSAPrivateKey wraps an ML-DSA-65 signing key.
type MLDSAPrivateKey struct {
	key *mldsa65.PrivateKey
}

// MLDSAKeyPair is an ML-DSA-65 key pair.
type MLDSAKeyPair struct {
	VerifyingKey *MLDSAPublicKey
	SigningKey   *MLDSAPrivateKey
}

// GenerateMLDSAKeyPair generates a new ML-DSA-65 key pair.
func GenerateMLDSAKeyPair() (*MLDSAKeyPair, error) {
	pk, sk, err := mldsa65.GenerateKey(Reader)
	if err != nil {
		return nil, qerrors.NewCryptoError("MLDSAKeyPair.Generate", err)
	}
	return &MLDSAKeyPair{
		VerifyingKey: &MLDSAPublicKey{key: pk},
		SigningKey:   &MLDSAPrivateKey{key: sk},
	}, nil
}

// NewMLDSAKeyPairFromSeed expands a 32-byte seed into a key pair.
func NewMLDSAKeyPairFromSeed(seed []byte) (*MLDSAKeyPair, error) {
	if len(seed) != constants.MLDSASeedSize {
		return nil, qerrors.ErrInvalidKeySize
	}

	var s [mldsa65.SeedSize]byte
	copy(s[:], seed)
	defer Zeroize(s[:])

	pk, sk := mldsa65.NewKeyFromSeed(&s)
	return &MLDSAKeyPair{
		VerifyingKey: &MLDSAPublicKey{key: pk},
		SigningKey:   &MLDSAPrivateKey{key: sk},
	}, nil
}

// MLDSASign produces a hedged (randomized) ML-DSA-65 signature over message.
func MLDSASign(sk *MLDSAPrivateKey, message []byte) ([]byte, error) {
	if sk == nil || sk.key == nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}

	sig := make([]byte, mldsa65.SignatureSize)
	if err := mldsa65.SignTo(sk.key, message, []byte(constants.SignatureContext), true, sig); err != nil {
		return nil, qerrors.NewCryptoError("MLDSASign", err)
	}
	return sig, nil
}

// MLDSAVerify checks sig over message.
func MLDSAVerify(pk *MLDSAPublicKey, message, sig []byte) error {
	if pk == nil || pk.key == nil {
		return qerrors.ErrInvalidPublicKey
	}
	if len(sig) != constants.MLDSASignatureSize {
		return qerrors.ErrInvalidSignature
	}
	if !mldsa65.Verify(pk.key, message, []byte(constants.SignatureContext), sig) {
		return qerrors.ErrSignatureVerification
	}
	return nil
}

// Bytes returns the packed verifying key.
func (pk *MLDSAPublicKey) Bytes() []byte {
	if pk == nil || pk.key == nil {
		return nil
	}
	return pk.key.Bytes()
}

// ParseMLDSAPublicKey parses a packed ML-DSA-65 verifying key.
func ParseMLDSAPublicKey(data []byte) (*MLDSAPublicKey, error) {
	if len(data) != constants.MLDSAPublicKeySize {
		return nil, qerrors.ErrInvalidPublicKey
	}

	pk := new(mldsa65.PublicKey)
	if err := pk.UnmarshalBinary(data); err != nil {
		return nil, qerrors.NewCryptoError("ParseMLDSAPublicKey", qerrors.ErrInvalidPublicKey)
	}
	return &MLDSAPublicKey{key: pk}, nil
}

// Zeroize drops the key references.
func (kp *MLDSAKeyPair) Zeroize() {
	kp.SigningKey = nil
	kp.VerifyingKey = nil
}
