package crypto

import (
	"crypto/ecdh"

	"github.com/pzverkov/quantum-messenger/internal/constants"
	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
)

// X25519KeyPair is an RFC 7748 key agreement pair. It backs the classical
// suite, the classical half of the hybrid suite, and inbox derivation. It
// offers no protection against a quantum adversary.
type X25519KeyPair struct {
	PublicKey  *ecdh.PublicKey
	PrivateKey *ecdh.PrivateKey
}

func newX25519KeyPair(priv *ecdh.PrivateKey) *X25519KeyPair {
	return &X25519KeyPair{PublicKey: priv.PublicKey(), PrivateKey: priv}
}

// GenerateX25519KeyPair draws a fresh pair from Reader.
func GenerateX25519KeyPair() (*X25519KeyPair, error) {
	priv, err := ecdh.X25519().GenerateKey(Reader)
	if err != nil {
		return nil, qerrors.NewCryptoError("GenerateX25519KeyPair", err)
	}
	return newX25519KeyPair(priv), nil
}

// NewX25519KeyPairFromBytes rebuilds a pair from its 32-byte scalar.
func NewX25519KeyPairFromBytes(scalar []byte) (*X25519KeyPair, error) {
	if len(scalar) != constants.X25519PrivateKeySize {
		return nil, qerrors.ErrInvalidKeySize
	}
	priv, err := ecdh.X25519().NewPrivateKey(scalar)
	if err != nil {
		return nil, qerrors.NewCryptoError("NewX25519KeyPairFromBytes", err)
	}
	return newX25519KeyPair(priv), nil
}

// ParseX25519PublicKey decodes a 32-byte public key.
func ParseX25519PublicKey(data []byte) (*ecdh.PublicKey, error) {
	if len(data) != constants.X25519PublicKeySize {
		return nil, qerrors.ErrInvalidPublicKey
	}
	pub, err := ecdh.X25519().NewPublicKey(data)
	if err != nil {
		return nil, qerrors.NewCryptoError("ParseX25519PublicKey", err)
	}
	return pub, nil
}

// X25519 returns the shared secret of priv and peer. Low-order peer keys,
// which would give an all-zero secret, are rejected.
func X25519(priv *ecdh.PrivateKey, peer *ecdh.PublicKey) ([]byte, error) {
	switch {
	case priv == nil:
		return nil, qerrors.ErrInvalidPrivateKey
	case peer == nil:
		return nil, qerrors.ErrInvalidPublicKey
	}
	secret, err := priv.ECDH(peer)
	if err != nil {
		return nil, qerrors.NewCryptoError("X25519", err)
	}
	return secret, nil
}

func (kp *X25519KeyPair) PublicKeyBytes() []byte { return kp.PublicKey.Bytes() }

// PrivateKeyBytes returns a copy of the secret scalar.
func (kp *X25519KeyPair) PrivateKeyBytes() []byte { return kp.PrivateKey.Bytes() }

// Zeroize drops both keys. crypto/ecdh keeps the scalar in memory it does
// not expose, so it cannot be overwritten here.
func (kp *X25519KeyPair) Zeroize() {
	kp.PrivateKey, kp.PublicKey = nil, nil
}
