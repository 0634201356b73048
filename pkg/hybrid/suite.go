package hybrid

import (
	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
	"github.com/pzverkov/quantum-messenger/pkg/classical"
	"github.com/pzverkov/quantum-messenger/pkg/postquantum"
	"github.com/pzverkov/quantum-messenger/pkg/suite"
)

// Suite is the hybrid algorithm suite.
type Suite struct {
	suite.ChaCha20Poly1305

	classical   classical.Suite
	postQuantum postquantum.Suite
}

var _ suite.Suite[*KeyPair, *PublicKeys, *SharedSecret, *Signature] = Suite{}

// GeneratePrivateKey generates a fresh hybrid key pair.
func (Suite) GeneratePrivateKey() (*KeyPair, error) {
	return GenerateKeyPair()
}

// PublicKey returns the public half of kp.
func (Suite) PublicKey(kp *KeyPair) *PublicKeys {
	return kp.PublicKeys()
}

// KeyExchange is not supported directly because the post-quantum half is a
// KEM; use Encapsulate and Decapsulate.
func (Suite) KeyExchange(*KeyPair, *PublicKeys) (*SharedSecret, error) {
	return nil, qerrors.NewCryptoError("hybrid.KeyExchange", qerrors.ErrKEMRequired)
}

// Encapsulate agrees a combined secret with peer.
//
// This operation:
// 1. Performs static X25519 between ours and the peer's classical key
// 2. Encapsulates a fresh secret to the peer's ML-KEM key
// 3. Combines both secrets with SHA-256
//
// Returns:
//   - ciphertext: the post-quantum KEM ciphertext for the peer
//   - secret: the combined secret
func (s Suite) Encapsulate(ours *KeyPair, peer *PublicKeys) ([]byte, *SharedSecret, error) {
	if ours == nil || ours.Classical == nil || ours.PostQuantum == nil {
		return nil, nil, qerrors.ErrInvalidPrivateKey
	}
	if peer == nil || peer.Classical == nil || peer.PostQuantum == nil {
		return nil, nil, qerrors.ErrInvalidPublicKey
	}

	classicalSecret, err := s.classical.KeyExchange(ours.Classical, peer.Classical)
	if err != nil {
		return nil, nil, qerrors.NewCryptoError("hybrid.Encapsulate", err)
	}

	ct, pqSecret, err := s.postQuantum.Encapsulate(peer.PostQuantum)
	if err != nil {
		classicalSecret.Zeroize()
		return nil, nil, qerrors.NewCryptoError("hybrid.Encapsulate", err)
	}

	return ct, newSharedSecret(classicalSecret, pqSecret), nil
}

// Decapsulate recovers the combined secret from the peer's ciphertext.
func (s Suite) Decapsulate(ours *KeyPair, peer *PublicKeys, ciphertext []byte) (*SharedSecret, error) {
	if ours == nil || ours.Classical == nil || ours.PostQuantum == nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	if peer == nil || peer.Classical == nil {
		return nil, qerrors.ErrInvalidPublicKey
	}

	classicalSecret, err := s.classical.KeyExchange(ours.Classical, peer.Classical)
	if err != nil {
		return nil, qerrors.NewCryptoError("hybrid.Decapsulate", err)
	}

	pqSecret, err := s.postQuantum.Decapsulate(ours.PostQuantum, ciphertext)
	if err != nil {
		classicalSecret.Zeroize()
		return nil, qerrors.NewCryptoError("hybrid.Decapsulate", err)
	}

	return newSharedSecret(classicalSecret, pqSecret), nil
}

// Sign produces both sub-signatures over data.
func (s Suite) Sign(kp *KeyPair, data []byte) (*Signature, error) {
	if kp == nil || kp.Classical == nil || kp.PostQuantum == nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}

	c, err := s.classical.Sign(kp.Classical, data)
	if err != nil {
		return nil, qerrors.NewCryptoError("hybrid.Sign", err)
	}
	pq, err := s.postQuantum.Sign(kp.PostQuantum, data)
	if err != nil {
		return nil, qerrors.NewCryptoError("hybrid.Sign", err)
	}

	return &Signature{Classical: c, PostQuantum: pq}, nil
}

// Verify requires both sub-signatures to verify. A valid post-quantum half
// does not rescue a corrupted classical half, and vice versa.
func (s Suite) Verify(pub *PublicKeys, data []byte, sig *Signature) error {
	if pub == nil || pub.Classical == nil || pub.PostQuantum == nil {
		return qerrors.ErrInvalidPublicKey
	}
	if sig == nil {
		return qerrors.ErrInvalidSignature
	}

	if err := s.classical.Verify(pub.Classical, data, sig.Classical); err != nil {
		return qerrors.NewCryptoError("hybrid.Verify", err)
	}
	if err := s.postQuantum.Verify(pub.PostQuantum, data, sig.PostQuantum); err != nil {
		return qerrors.NewCryptoError("hybrid.Verify", err)
	}
	return nil
}

// Encrypt encrypts plaintext under both halves and length-prefixes the two
// ciphertexts.
func (s Suite) Encrypt(pub *PublicKeys, plaintext []byte) ([]byte, error) {
	if pub == nil || pub.Classical == nil || pub.PostQuantum == nil {
		return nil, qerrors.ErrInvalidPublicKey
	}

	c, err := s.classical.Encrypt(pub.Classical, plaintext)
	if err != nil {
		return nil, qerrors.NewCryptoError("hybrid.Encrypt", err)
	}
	pq, err := s.postQuantum.Encrypt(pub.PostQuantum, plaintext)
	if err != nil {
		return nil, qerrors.NewCryptoError("hybrid.Encrypt", err)
	}

	return suite.EncodePair(c, pq), nil
}

// Decrypt tries the classical half, then the post-quantum half, and returns
// the first plaintext that opens. If neither does it fails with
// ErrHybridDecrypt.
func (s Suite) Decrypt(kp *KeyPair, ciphertext []byte) ([]byte, error) {
	if kp == nil || kp.Classical == nil || kp.PostQuantum == nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}

	c, pq, err := suite.DecodePair(ciphertext)
	if err != nil {
		return nil, err
	}

	if plaintext, err := s.classical.Decrypt(kp.Classical, c); err == nil {
		return plaintext, nil
	}
	if plaintext, err := s.postQuantum.Decrypt(kp.PostQuantum, pq); err == nil {
		return plaintext, nil
	}

	return nil, qerrors.NewCryptoError("hybrid.Decrypt", qerrors.ErrHybridDecrypt)
}
