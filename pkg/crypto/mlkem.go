package crypto

import (
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"

	"github.com/pzverkov/quantum-messenger/internal/constants"
	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
)

// ML-KEM-768 (FIPS 203, NIST category 3) through CIRCL.
//
// Decapsulation rejects implicitly: a modified ciphertext of the right
// length decapsulates to an unrelated pseudorandom secret. Callers that must
// detect tampering bind the ciphertext into a separate integrity tag, as the
// post-quantum suite does.

// MLKEMPublicKey is an encapsulation key.
type MLKEMPublicKey struct{ key *mlkem768.PublicKey }

// MLKEMPrivateKey is a decapsulation key.
type MLKEMPrivateKey struct{ key *mlkem768.PrivateKey }

type MLKEMKeyPair struct {
	EncapsulationKey *MLKEMPublicKey
	DecapsulationKey *MLKEMPrivateKey
}

func newMLKEMKeyPair(pk *mlkem768.PublicKey, sk *mlkem768.PrivateKey) *MLKEMKeyPair {
	return &MLKEMKeyPair{
		EncapsulationKey: &MLKEMPublicKey{key: pk},
		DecapsulationKey: &MLKEMPrivateKey{key: sk},
	}
}

// GenerateMLKEMKeyPair draws a fresh pair from Reader.
func GenerateMLKEMKeyPair() (*MLKEMKeyPair, error) {
	pk, sk, err := mlkem768.GenerateKeyPair(Reader)
	if err != nil {
		return nil, qerrors.NewCryptoError("GenerateMLKEMKeyPair", err)
	}
	return newMLKEMKeyPair(pk, sk), nil
}

// NewMLKEMKeyPairFromSeed expands the 64-byte (d || z) seed
// deterministically.
func NewMLKEMKeyPairFromSeed(seed []byte) (*MLKEMKeyPair, error) {
	if len(seed) != constants.MLKEMSeedSize {
		return nil, qerrors.ErrInvalidKeySize
	}
	return newMLKEMKeyPair(mlkem768.NewKeyFromSeed(seed)), nil
}

// ParseMLKEMPublicKey unpacks an encapsulation key.
func ParseMLKEMPublicKey(data []byte) (*MLKEMPublicKey, error) {
	if len(data) != constants.MLKEMPublicKeySize {
		return nil, qerrors.ErrInvalidPublicKey
	}
	var pk mlkem768.PublicKey
	if err := pk.Unpack(data); err != nil {
		return nil, qerrors.NewCryptoError("ParseMLKEMPublicKey", qerrors.ErrInvalidPublicKey)
	}
	return &MLKEMPublicKey{key: &pk}, nil
}

// Bytes packs the key. A nil key packs to nil.
func (pk *MLKEMPublicKey) Bytes() []byte {
	if pk == nil || pk.key == nil {
		return nil
	}
	out := make([]byte, mlkem768.PublicKeySize)
	pk.key.Pack(out)
	return out
}

func (kp *MLKEMKeyPair) PublicKeyBytes() []byte { return kp.EncapsulationKey.Bytes() }

// Zeroize drops both keys. CIRCL does not expose the key storage for
// overwriting.
func (kp *MLKEMKeyPair) Zeroize() {
	kp.EncapsulationKey, kp.DecapsulationKey = nil, nil
}

// MLKEMEncapsulate returns a 1088-byte ciphertext and the 32-byte secret it
// carries to ek.
func MLKEMEncapsulate(ek *MLKEMPublicKey) (ciphertext, sharedSecret []byte, err error) {
	if ek == nil || ek.key == nil {
		return nil, nil, qerrors.ErrInvalidPublicKey
	}

	var coins [mlkem768.EncapsulationSeedSize]byte
	defer Zeroize(coins[:])
	if err := SecureRandom(coins[:]); err != nil {
		return nil, nil, err
	}

	ciphertext = make([]byte, mlkem768.CiphertextSize)
	sharedSecret = make([]byte, mlkem768.SharedKeySize)
	ek.key.EncapsulateTo(ciphertext, sharedSecret, coins[:])
	return ciphertext, sharedSecret, nil
}

// MLKEMDecapsulate returns the secret carried by ciphertext. Only the
// length is validated.
func MLKEMDecapsulate(dk *MLKEMPrivateKey, ciphertext []byte) ([]byte, error) {
	if dk == nil || dk.key == nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	if len(ciphertext) != constants.MLKEMCiphertextSize {
		return nil, qerrors.ErrInvalidCiphertext
	}
	ss := make([]byte, mlkem768.SharedKeySize)
	dk.key.DecapsulateTo(ss, ciphertext)
	return ss, nil
}
