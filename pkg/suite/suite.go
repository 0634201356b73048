// Package suite defines the capability interfaces every algorithm suite
// implements, and the length-prefixed encoding the hybrid suite uses to carry
// two sub-values in one byte string.
//
// A suite binds the interfaces to its own concrete types:
//
//	classical.Suite   suite.Suite[*classical.KeyPair, *classical.PublicKeys, *classical.SharedSecret, []byte]
//	postquantum.Suite suite.Suite[*postquantum.KeyPair, *postquantum.PublicKeys, *postquantum.SharedSecret, []byte]
//	hybrid.Suite      suite.Suite[*hybrid.KeyPair, *hybrid.PublicKeys, *hybrid.SharedSecret, *hybrid.Signature]
//
// Dispatch between suites happens on the unified key types, never by
// converting one suite's key into another's.
package suite

import (
	"github.com/pzverkov/quantum-messenger/pkg/crypto"
)

// KeyExchange is a static key agreement.
//
// Suites built on a KEM return ErrKEMRequired from KeyExchange and expose
// an encapsulation API instead.
type KeyExchange[Priv, Pub, Secret any] interface {
	GeneratePrivateKey() (Priv, error)
	PublicKey(priv Priv) Pub
	KeyExchange(priv Priv, peer Pub) (Secret, error)
}

// DigitalSignature signs raw message bytes.
// Verify returns nil only when the signature is valid for data under pub.
type DigitalSignature[Priv, Pub, Sig any] interface {
	Sign(priv Priv, data []byte) (Sig, error)
	Verify(pub Pub, data []byte, sig Sig) error
}

// AsymmetricEncryption encrypts to a public key.
type AsymmetricEncryption[Priv, Pub any] interface {
	Encrypt(pub Pub, plaintext []byte) ([]byte, error)
	Decrypt(priv Priv, ciphertext []byte) ([]byte, error)
}

// SymmetricEncryption is an AEAD keyed by a raw 32-byte key.
type SymmetricEncryption interface {
	EncryptSymmetric(key, plaintext []byte) ([]byte, error)
	DecryptSymmetric(key, ciphertext []byte) ([]byte, error)
}

// KEM is a key encapsulation mechanism.
type KEM[Priv, Pub, Secret any] interface {
	Encapsulate(pub Pub) (ciphertext []byte, secret Secret, err error)
	Decapsulate(priv Priv, ciphertext []byte) (Secret, error)
}

// Suite is the full set of capabilities.
type Suite[Priv, Pub, Secret, Sig any] interface {
	KeyExchange[Priv, Pub, Secret]
	DigitalSignature[Priv, Pub, Sig]
	AsymmetricEncryption[Priv, Pub]
	SymmetricEncryption
}

// ChaCha20Poly1305 is the symmetric AEAD shared by all suites.
// A 256-bit key keeps 128-bit strength against Grover search, so no suite
// needs a different cipher.
type ChaCha20Poly1305 struct{}

// EncryptSymmetric returns nonce‖ciphertext‖tag under a fresh random nonce.
func (ChaCha20Poly1305) EncryptSymmetric(key, plaintext []byte) ([]byte, error) {
	return crypto.SealWithKey(key, plaintext)
}

// DecryptSymmetric opens nonce‖ciphertext‖tag.
func (ChaCha20Poly1305) DecryptSymmetric(key, ciphertext []byte) ([]byte, error) {
	return crypto.OpenWithKey(key, ciphertext)
}

var _ SymmetricEncryption = ChaCha20Poly1305{}
