// Package crypto holds the primitives the algorithm suites are built from:
//
//   - X25519 key agreement and Ed25519 signatures;
//   - ML-KEM-768 encapsulation and ML-DSA-65 signatures;
//   - ChaCha20-Poly1305 sealing;
//   - SHAKE-256 and HKDF-SHA-512 key derivation;
//   - the power-on self-test.
//
// Randomness for keys, nonces and ephemeral values comes from Reader.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"io"

	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
)

// Reader is the system CSPRNG.
var Reader io.Reader = rand.Reader

// SecureRandom fills b from Reader. An error means the system generator is
// broken and no key material should be produced.
func SecureRandom(b []byte) error {
	if _, err := io.ReadFull(Reader, b); err != nil {
		return qerrors.NewCryptoError("SecureRandom", err)
	}
	return nil
}

// SecureRandomBytes returns n fresh random bytes.
func SecureRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if err := SecureRandom(b); err != nil {
		return nil, err
	}
	return b, nil
}

// MustSecureRandomBytes is SecureRandomBytes for values such as envelope
// nonces whose constructors cannot fail. It panics if Reader fails.
func MustSecureRandomBytes(n int) []byte {
	b, err := SecureRandomBytes(n)
	if err != nil {
		panic(err)
	}
	return b
}

// ConstantTimeCompare reports whether a and b are equal without leaking
// where they differ. Different lengths are unequal.
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Zeroize clears each slice. Copies made by the runtime or by callers are
// not reached.
func Zeroize(bufs ...[]byte) {
	for _, b := range bufs {
		clear(b)
	}
}
