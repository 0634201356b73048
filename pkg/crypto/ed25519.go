// ed25519.go wraps Ed25519 (RFC 8032) signing for the classical suite.
package crypto

import (
	"crypto/ed25519"

	"github.com/pzverkov/quantum-messenger/internal/constants"
	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
)

// Ed25519KeyPair is an Ed25519 signing key and its verifying key.
type Ed25519KeyPair struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// GenerateEd25519KeyPair generates a new Ed25519 key pair.
func GenerateEd25519KeyPair() (*Ed25519KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(Reader)
	if err != nil {
		return nil, qerrors.NewCryptoError("Ed25519KeyPair.Generate", err)
	}
	return &Ed25519KeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

// NewEd25519KeyPairFromSeed derives a key pair from a 32-byte seed.
func NewEd25519KeyPairFromSeed(seed []byte) (*Ed25519KeyPair, error) {
	if len(seed) != constants.Ed25519SeedSize {
		return nil, qerrors.ErrInvalidKeySize
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Ed25519KeyPair{
		PublicKey:  priv.Public().(ed25519.PublicKey),
		PrivateKey: priv,
	}, nil
}

// Ed25519Sign signs message with the private key.
func Ed25519Sign(priv ed25519.PrivateKey, message []byte) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	return ed25519.Sign(priv, message), nil
}

// Ed25519Verify checks sig over message.
// A signature of the wrong length fails with ErrInvalidSignature; a mismatch
// with ErrSignatureVerification.
func Ed25519Verify(pub ed25519.PublicKey, message, sig []byte) error {
	if len(pub) != constants.Ed25519PublicKeySize {
		return qerrors.ErrInvalidPublicKey
	}
	if len(sig) != constants.Ed25519SignatureSize {
		return qerrors.ErrInvalidSignature
	}
	if !ed25519.Verify(pub, message, sig) {
		return qerrors.ErrSignatureVerification
	}
	return nil
}

// ParseEd25519PublicKey validates and copies a 32-byte verifying key.
func ParseEd25519PublicKey(data []byte) (ed25519.PublicKey, error) {
	if len(data) != constants.Ed25519PublicKeySize {
		return nil, qerrors.ErrInvalidPublicKey
	}
	pub := make(ed25519.PublicKey, constants.Ed25519PublicKeySize)
	copy(pub, data)
	return pub, nil
}

// Seed returns the 32-byte seed of the signing key.
func (kp *Ed25519KeyPair) Seed() []byte {
	return kp.PrivateKey.Seed()
}

// Zeroize overwrites the signing key.
func (kp *Ed25519KeyPair) Zeroize() {
	Zeroize(kp.PrivateKey)
	kp.PrivateKey = nil
}
