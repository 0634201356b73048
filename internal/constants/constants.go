// Package constants defines key sizes, wire-format sizes, domain separators and
// protocol versions for the quantum-messenger crypto core.
//
// Post-quantum parameters target NIST Category 3 (ML-KEM-768, ML-DSA-65), paired
// with X25519/Ed25519 for the classical and hybrid suites.
package constants

// Protocol identification
const (
	// ProtocolName is used for domain separation in key derivation
	ProtocolName = "quantum-messenger-v1"

	// LegacyEnvelopeVersion is the version string of the classical-only MessageEnvelope
	LegacyEnvelopeVersion = "1.1"

	// QuantumEnvelopeVersion is the version string of the QuantumSafeEnvelope
	QuantumEnvelopeVersion = "2.0-quantum"

	// SignatureContext is the ML-DSA context string bound into every PQ signature
	SignatureContext = "quantum-messenger"
)

// X25519 Parameters (RFC 7748)
const (
	X25519PublicKeySize    = 32
	X25519PrivateKeySize   = 32
	X25519SharedSecretSize = 32
)

// Ed25519 Parameters (RFC 8032)
const (
	Ed25519PublicKeySize = 32
	Ed25519SeedSize      = 32
	Ed25519SignatureSize = 64
)

// ML-KEM-768 Parameters (NIST FIPS 203)
const (
	// MLKEMPublicKeySize is the size of the ML-KEM-768 encapsulation key in bytes
	MLKEMPublicKeySize = 1184

	// MLKEMPrivateKeySize is the size of the packed ML-KEM-768 decapsulation key in bytes
	MLKEMPrivateKeySize = 2400

	// MLKEMCiphertextSize is the size of an ML-KEM-768 ciphertext in bytes
	MLKEMCiphertextSize = 1088

	// MLKEMSharedSecretSize is the size of the shared secret from ML-KEM in bytes
	MLKEMSharedSecretSize = 32

	// MLKEMSeedSize is the size of the (d, z) seed ML-KEM keys are expanded from
	MLKEMSeedSize = 64

	// MLKEMEncapsulationSeedSize is the size of the randomness consumed by encapsulation
	MLKEMEncapsulationSeedSize = 32
)

// ML-DSA-65 Parameters (NIST FIPS 204)
const (
	MLDSAPublicKeySize = 1952
	MLDSASignatureSize = 3309
	MLDSASeedSize      = 32
)

// Post-quantum suite wire sizes
const (
	// PQIntegrityTagSize is the size of the tag appended to every KEM ciphertext
	PQIntegrityTagSize = 32

	// PQCiphertextSize is the fixed size of a post-quantum KEM ciphertext
	PQCiphertextSize = MLKEMCiphertextSize + PQIntegrityTagSize

	// PQPublicKeySize is the size of a post-quantum public key (KEM key followed by signing key)
	PQPublicKeySize = MLKEMPublicKeySize + MLDSAPublicKeySize

	// PQSharedSecretSize is the size of a post-quantum shared secret
	PQSharedSecretSize = MLKEMSharedSecretSize
)

// Symmetric encryption parameters (ChaCha20-Poly1305)
const (
	ChaCha20KeySize   = 32
	ChaCha20NonceSize = 12
	ChaCha20TagSize   = 16

	// MinSymmetricCiphertextSize is the smallest valid nonce-prefixed ciphertext
	MinSymmetricCiphertextSize = ChaCha20NonceSize
)

// Key derivation parameters
const (
	// KDFOutputSize is the default output size for key derivation in bytes
	KDFOutputSize = 32

	// CombinedSecretSize is the size of the hybrid combined shared secret (SHA-256)
	CombinedSecretSize = 32

	// DomainSeparatorPQTag is used to derive the KEM ciphertext integrity tag
	DomainSeparatorPQTag = "quantum-messenger-v1-pq-kem-tag"

	// HKDFContextECIES is the HKDF info string for classical ECIES keys
	HKDFContextECIES = "quantum-messenger:ecies:v1"

	// HKDFContextKEMDEM is the HKDF info string for post-quantum KEM-DEM keys
	HKDFContextKEMDEM = "quantum-messenger:kem-dem:v1"
)

// Addressing parameters
const (
	// FirstContactPrefix is hashed in front of the recipient key for first-contact inboxes
	FirstContactPrefix = "first_contact:"

	// InboxIDSize is the number of SHA-256 bytes kept for envelope inbox identifiers
	InboxIDSize = 16

	// DefaultIncomingWindow is the default look-ahead when scanning for incoming messages
	DefaultIncomingWindow = 5

	// EnvelopeNonceSize is the size of the random envelope nonce
	EnvelopeNonceSize = 16
)

// Public key string prefixes
const (
	ClassicalKeyPrefix   = "pubkey:"
	PostQuantumKeyPrefix = "pq-pubkey:"
	HybridKeyPrefix      = "hybrid-"
)

// Algorithm names advertised in envelopes and performance reports
const (
	AlgorithmKEM       = "ML-KEM-768"
	AlgorithmSignature = "ML-DSA-65"
	AlgorithmAEAD      = "ChaCha20-Poly1305"
	AlgorithmKDF       = "HKDF-SHA-512"
)

// Message size limits
const (
	// MaxMessageSize is the largest protocol message the relay will decode
	MaxMessageSize = 1 << 20

	// MaxBodySize is the largest message body accepted for encryption
	MaxBodySize = 64 << 10
)
