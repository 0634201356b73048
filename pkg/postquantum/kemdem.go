package postquantum

import (
	"github.com/pzverkov/quantum-messenger/internal/constants"
	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
	"github.com/pzverkov/quantum-messenger/pkg/crypto"
)

// KEM-DEM wire format:
//
//	+---------------------------+-----------+----------------------+-----------+
//	| KEM ciphertext (with tag) | Nonce     | Ciphertext           | Tag       |
//	| 1120B                     | 12B       | len(plaintext)       | 16B       |
//	+---------------------------+-----------+----------------------+-----------+

// Encrypt seals plaintext to pub under a fresh encapsulated secret.
func (s Suite) Encrypt(pub *PublicKeys, plaintext []byte) ([]byte, error) {
	kemCT, secret, err := s.Encapsulate(pub)
	if err != nil {
		return nil, err
	}
	defer secret.Zeroize()

	key, err := demKey(secret.Bytes(), kemCT)
	if err != nil {
		return nil, qerrors.NewCryptoError("postquantum.Encrypt", err)
	}
	defer crypto.Zeroize(key)

	sealed, err := crypto.SealWithKey(key, plaintext)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(kemCT)+len(sealed))
	out = append(out, kemCT...)
	return append(out, sealed...), nil
}

// Decrypt opens a KEM-DEM ciphertext.
func (s Suite) Decrypt(kp *KeyPair, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < constants.PQCiphertextSize {
		return nil, qerrors.NewCryptoError("postquantum.Decrypt", qerrors.ErrCiphertextTooShort)
	}

	kemCT := ciphertext[:constants.PQCiphertextSize]
	secret, err := s.Decapsulate(kp, kemCT)
	if err != nil {
		return nil, err
	}
	defer secret.Zeroize()

	key, err := demKey(secret.Bytes(), kemCT)
	if err != nil {
		return nil, qerrors.NewCryptoError("postquantum.Decrypt", err)
	}
	defer crypto.Zeroize(key)

	return crypto.OpenWithKey(key, ciphertext[constants.PQCiphertextSize:])
}

func demKey(secret, kemCT []byte) ([]byte, error) {
	salt := crypto.Sum256(kemCT)
	return crypto.ExpandKey(secret, salt[:], []byte(constants.HKDFContextKEMDEM), constants.ChaCha20KeySize)
}
