package classical

import (
	"crypto/ecdh"

	"github.com/pzverkov/quantum-messenger/internal/constants"
	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
	"github.com/pzverkov/quantum-messenger/pkg/crypto"
)

// ECIES wire format:
//
//	+------------------+-----------+----------------------+-----------+
//	| Ephemeral pubkey | Nonce     | Ciphertext           | Tag       |
//	| 32B              | 12B       | len(plaintext)       | 16B       |
//	+------------------+-----------+----------------------+-----------+
//
// The AEAD key is HKDF-SHA-512(dh, salt = SHA-256(eph_pub ‖ recipient_pub),
// info = constants.HKDFContextECIES).

// Encrypt seals plaintext to the recipient's X25519 key under a fresh
// ephemeral key pair.
func (Suite) Encrypt(pub *PublicKeys, plaintext []byte) ([]byte, error) {
	if pub == nil || pub.Exchange == nil {
		return nil, qerrors.ErrInvalidPublicKey
	}

	ephemeral, err := crypto.GenerateX25519KeyPair()
	if err != nil {
		return nil, qerrors.NewCryptoError("classical.Encrypt", err)
	}
	defer ephemeral.Zeroize()

	ephemeralPub := ephemeral.PublicKeyBytes()
	key, err := eciesKey(ephemeral.PrivateKey, pub.Exchange, ephemeralPub, pub.Exchange.Bytes())
	if err != nil {
		return nil, qerrors.NewCryptoError("classical.Encrypt", err)
	}
	defer crypto.Zeroize(key)

	sealed, err := crypto.SealWithKey(key, plaintext)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(ephemeralPub)+len(sealed))
	out = append(out, ephemeralPub...)
	return append(out, sealed...), nil
}

// Decrypt opens an ECIES ciphertext with the recipient's static key.
func (Suite) Decrypt(kp *KeyPair, ciphertext []byte) ([]byte, error) {
	if kp == nil || kp.exchange == nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	if len(ciphertext) < constants.X25519PublicKeySize {
		return nil, qerrors.NewCryptoError("classical.Decrypt", qerrors.ErrCiphertextTooShort)
	}

	ephemeralPub := ciphertext[:constants.X25519PublicKeySize]
	peer, err := crypto.ParseX25519PublicKey(ephemeralPub)
	if err != nil {
		return nil, qerrors.NewCryptoError("classical.Decrypt", err)
	}

	key, err := eciesKey(kp.exchange.PrivateKey, peer, ephemeralPub, kp.exchange.PublicKeyBytes())
	if err != nil {
		return nil, qerrors.NewCryptoError("classical.Decrypt", err)
	}
	defer crypto.Zeroize(key)

	return crypto.OpenWithKey(key, ciphertext[constants.X25519PublicKeySize:])
}

func eciesKey(priv *ecdh.PrivateKey, peer *ecdh.PublicKey, ephemeralPub, recipientPub []byte) ([]byte, error) {
	dh, err := crypto.X25519(priv, peer)
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(dh)

	salt := crypto.Sum256(ephemeralPub, recipientPub)
	return crypto.ExpandKey(dh, salt[:], []byte(constants.HKDFContextECIES), constants.ChaCha20KeySize)
}
