// aead.go implements ChaCha20-Poly1305 authenticated encryption (RFC 8439).
//
// ChaCha20 is a 256-bit-key stream cipher and Poly1305 a one-time authenticator;
// together they are IND-CCA2 secure with a 128-bit tag. A 256-bit symmetric key
// retains 128-bit strength against Grover's algorithm, so the same AEAD serves
// every crypto mode.
//
// Wire format:
//
//	+-----------+----------------------+-----------+
//	| Nonce     | Ciphertext           | Tag       |
//	| 12B       | len(plaintext)       | 16B       |
//	+-----------+----------------------+-----------+
//
// CRITICAL: Nonce reuse under one key breaks confidentiality and integrity.
// Seal always draws a fresh random nonce; callers cannot supply one.
package crypto

import (
	"crypto/cipher"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/pzverkov/quantum-messenger/internal/constants"
	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
)

// AEAD is a ChaCha20-Poly1305 cipher bound to one key.
// It holds no mutable state and is safe for concurrent use.
type AEAD struct {
	cipher cipher.AEAD
}

// NewAEAD creates a cipher for a 32-byte key.
func NewAEAD(key []byte) (*AEAD, error) {
	if len(key) != constants.ChaCha20KeySize {
		return nil, qerrors.ErrInvalidKeySize
	}

	c, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, qerrors.NewCryptoError("NewAEAD", err)
	}

	return &AEAD{cipher: c}, nil
}

// Seal encrypts plaintext and returns nonce‖ciphertext‖tag.
// additionalData is authenticated but not encrypted; it may be nil.
func (a *AEAD) Seal(plaintext, additionalData []byte) ([]byte, error) {
	out := make([]byte, constants.ChaCha20NonceSize, constants.ChaCha20NonceSize+len(plaintext)+a.cipher.Overhead())
	if err := SecureRandom(out); err != nil {
		return nil, qerrors.NewCryptoError("AEAD.Seal", err)
	}

	return a.cipher.Seal(out, out[:constants.ChaCha20NonceSize], plaintext, additionalData), nil
}

// Open decrypts nonce‖ciphertext‖tag.
//
// Input shorter than the nonce fails with ErrCiphertextTooShort; any
// authentication failure with ErrDecryptionFailed.
func (a *AEAD) Open(data, additionalData []byte) ([]byte, error) {
	if len(data) < constants.MinSymmetricCiphertextSize {
		return nil, qerrors.NewCryptoError("AEAD.Open", qerrors.ErrCiphertextTooShort)
	}

	nonce := data[:constants.ChaCha20NonceSize]
	plaintext, err := a.cipher.Open(nil, nonce, data[constants.ChaCha20NonceSize:], additionalData)
	if err != nil {
		return nil, qerrors.NewCryptoError("AEAD.Open", qerrors.ErrDecryptionFailed)
	}

	return plaintext, nil
}

// Overhead returns the bytes Seal adds to a plaintext (nonce plus tag).
func (a *AEAD) Overhead() int {
	return constants.ChaCha20NonceSize + a.cipher.Overhead()
}

// SealWithKey is a one-shot Seal for callers holding a raw key.
func SealWithKey(key, plaintext []byte) ([]byte, error) {
	a, err := NewAEAD(key)
	if err != nil {
		return nil, err
	}
	return a.Seal(plaintext, nil)
}

// OpenWithKey is a one-shot Open for callers holding a raw key.
func OpenWithKey(key, data []byte) ([]byte, error) {
	a, err := NewAEAD(key)
	if err != nil {
		return nil, err
	}
	return a.Open(data, nil)
}
