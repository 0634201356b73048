// Package errors defines the error taxonomy for the quantum-messenger crypto core.
//
// Every failure surfaced by the core is a sentinel from one of four groups
// (malformed input, cryptographic failure, policy violation, configuration),
// usually wrapped in a CryptoError or PolicyError that records the operation.
// Messages never contain key material or plaintext.
package errors

import (
	"errors"
	"fmt"
)

// Malformed input: wrong lengths, truncated or undecodable buffers.
var (
	// ErrInvalidKeySize indicates that a key has an incorrect size
	ErrInvalidKeySize = errors.New("crypto: invalid key size")

	// ErrInvalidPublicKey indicates that a public key or public key string is invalid
	ErrInvalidPublicKey = errors.New("crypto: invalid public key")

	// ErrInvalidPrivateKey indicates that a private key is invalid
	ErrInvalidPrivateKey = errors.New("crypto: invalid private key")

	// ErrInvalidSignature indicates a signature of the wrong length or shape
	ErrInvalidSignature = errors.New("crypto: invalid signature length")

	// ErrCiphertextTooShort indicates ciphertext is too short to be valid
	ErrCiphertextTooShort = errors.New("crypto: ciphertext too short")

	// ErrInvalidFormat indicates a length-prefixed buffer that does not decode exactly
	ErrInvalidFormat = errors.New("crypto: invalid length-prefixed format")

	// ErrInvalidEncoding indicates a base64 or JSON field that cannot be decoded
	ErrInvalidEncoding = errors.New("crypto: invalid encoding")
)

// Cryptographic failures.
var (
	// ErrDecryptionFailed indicates AEAD authentication/decryption failed
	ErrDecryptionFailed = errors.New("crypto: decryption failed")

	// ErrSignatureVerification indicates a signature did not verify
	ErrSignatureVerification = errors.New("crypto: signature verification failed")

	// ErrInvalidCiphertext indicates a KEM ciphertext failed its integrity check
	ErrInvalidCiphertext = errors.New("crypto: invalid ciphertext")

	// ErrHybridDecrypt indicates neither half of a hybrid ciphertext decrypted
	ErrHybridDecrypt = errors.New("crypto: both hybrid decryption methods failed")

	// ErrKEMRequired indicates direct key exchange on a suite that only offers a KEM
	ErrKEMRequired = errors.New("crypto: direct key exchange not supported, use encapsulate")

	// ErrKeyGenerationFailed indicates that key generation failed
	ErrKeyGenerationFailed = errors.New("crypto: key generation failed")

	// ErrSelfTestFailed indicates a power-on self-test did not pass
	ErrSelfTestFailed = errors.New("crypto: self-test failed")
)

// Policy violations.
var (
	// ErrModeNotAccepted indicates an incoming mode below the configured minimum
	ErrModeNotAccepted = errors.New("policy: crypto mode below configured minimum")

	// ErrDowngrade indicates a mode change that reduces security level
	ErrDowngrade = errors.New("policy: crypto mode downgrade not allowed")

	// ErrIncompatibleModes indicates a (sender, recipient) pair outside the compatibility table
	ErrIncompatibleModes = errors.New("policy: incompatible crypto modes")

	// ErrLegacyDowngrade indicates conversion of a non-classical envelope to the legacy format
	ErrLegacyDowngrade = errors.New("policy: cannot downgrade non-classical message to legacy format")

	// ErrRateLimited indicates a relay refused an envelope for an inbox over its rate
	ErrRateLimited = errors.New("policy: inbox rate limit exceeded")
)

// Configuration errors.
var (
	// ErrAlreadyInitialized indicates a second initialization of the process config
	ErrAlreadyInitialized = errors.New("config: crypto config already initialized")

	// ErrInvalidConfig indicates a config whose minimum mode is stronger than its mode
	ErrInvalidConfig = errors.New("config: invalid crypto config")

	// ErrInvalidMode indicates an unparseable crypto mode string
	ErrInvalidMode = errors.New("config: invalid crypto mode")
)

// Protocol errors at the relay boundary.
var (
	// ErrInvalidMessage indicates a protocol message is malformed
	ErrInvalidMessage = errors.New("protocol: invalid message")

	// ErrUnsupportedVersion indicates an unsupported envelope version
	ErrUnsupportedVersion = errors.New("protocol: unsupported version")

	// ErrMessageTooLarge indicates message exceeds maximum size
	ErrMessageTooLarge = errors.New("protocol: message too large")

	// ErrExpired indicates an envelope past its expiry
	ErrExpired = errors.New("protocol: envelope expired")

	// ErrUsernameTaken indicates a username claim for a name owned by another key
	ErrUsernameTaken = errors.New("protocol: username already claimed")
)

// CryptoError wraps a core error with the operation that failed.
type CryptoError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// NewCryptoError creates a new CryptoError
func NewCryptoError(op string, err error) *CryptoError {
	return &CryptoError{Op: op, Err: err}
}

// PolicyError records a rejected mode together with the configured floor.
// Incoming and Minimum hold mode names so this package stays import-free.
type PolicyError struct {
	Op       string
	Incoming string
	Minimum  string
	Err      error
}

func (e *PolicyError) Error() string {
	if e.Minimum == "" {
		return fmt.Sprintf("%s: %v (mode %s)", e.Op, e.Err, e.Incoming)
	}
	return fmt.Sprintf("%s: %v (mode %s, minimum %s)", e.Op, e.Err, e.Incoming, e.Minimum)
}

func (e *PolicyError) Unwrap() error {
	return e.Err
}

// NewPolicyError creates a new PolicyError
func NewPolicyError(op, incoming, minimum string, err error) *PolicyError {
	return &PolicyError{Op: op, Incoming: incoming, Minimum: minimum, Err: err}
}

// Category is the taxonomy group an error belongs to.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryMalformed
	CategoryCryptographic
	CategoryPolicy
	CategoryConfig
	CategoryProtocol
)

func (c Category) String() string {
	switch c {
	case CategoryMalformed:
		return "malformed"
	case CategoryCryptographic:
		return "cryptographic"
	case CategoryPolicy:
		return "policy"
	case CategoryConfig:
		return "config"
	case CategoryProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

var categories = []struct {
	cat  Category
	errs []error
}{
	{CategoryPolicy, []error{ErrModeNotAccepted, ErrDowngrade, ErrIncompatibleModes, ErrLegacyDowngrade, ErrRateLimited}},
	{CategoryConfig, []error{ErrAlreadyInitialized, ErrInvalidConfig, ErrInvalidMode}},
	{CategoryCryptographic, []error{ErrDecryptionFailed, ErrSignatureVerification, ErrInvalidCiphertext, ErrHybridDecrypt, ErrKEMRequired, ErrKeyGenerationFailed, ErrSelfTestFailed}},
	{CategoryMalformed, []error{ErrInvalidKeySize, ErrInvalidPublicKey, ErrInvalidPrivateKey, ErrInvalidSignature, ErrCiphertextTooShort, ErrInvalidFormat, ErrInvalidEncoding}},
	{CategoryProtocol, []error{ErrInvalidMessage, ErrUnsupportedVersion, ErrMessageTooLarge, ErrExpired, ErrUsernameTaken}},
}

// Classify returns the taxonomy group of err, or CategoryUnknown.
// Policy is checked first so a policy failure wrapping a crypto error reports as policy.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}
	for _, group := range categories {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.cat
			}
		}
	}
	return CategoryUnknown
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
