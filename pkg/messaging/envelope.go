package messaging

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pzverkov/quantum-messenger/internal/constants"
	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
	"github.com/pzverkov/quantum-messenger/pkg/crypto"
	"github.com/pzverkov/quantum-messenger/pkg/mode"
)

// Envelope is the quantum-safe envelope (version "2.0-quantum") handed to a
// relay. The With methods return modified copies; an Envelope is never
// changed in place.
//
// Wire format (JSON):
//
//	{
//	  "version":       "2.0-quantum",
//	  "crypto_mode":   "classical" | "hybrid" | "quantum",
//	  "inbox_id":      string,
//	  "payload":       base64 ciphertext,
//	  "pq_ciphertext": base64, optional,
//	  "pq_signature":  base64, optional,
//	  "expiry":        unix seconds, optional,
//	  "nonce":         base64 of 16 random bytes,
//	  "legacy_compat": bool, optional
//	}
type Envelope struct {
	Version      string    `json:"version"`
	CryptoMode   mode.Mode `json:"crypto_mode"`
	InboxID      string    `json:"inbox_id"`
	Payload      string    `json:"payload"`
	PQCiphertext string    `json:"pq_ciphertext,omitempty"`
	PQSignature  string    `json:"pq_signature,omitempty"`
	Expiry       *int64    `json:"expiry,omitempty"`
	Nonce        string    `json:"nonce"`
	LegacyCompat *bool     `json:"legacy_compat,omitempty"`
}

// NewEnvelope wraps an encrypted payload for inboxID with a fresh nonce.
func NewEnvelope(m mode.Mode, inboxID string, encryptedPayload []byte) Envelope {
	return Envelope{
		Version:    constants.QuantumEnvelopeVersion,
		CryptoMode: m,
		InboxID:    inboxID,
		Payload:    base64.StdEncoding.EncodeToString(encryptedPayload),
		Nonce:      newNonce(),
	}
}

func newNonce() string {
	return base64.StdEncoding.EncodeToString(crypto.MustSecureRandomBytes(constants.EnvelopeNonceSize))
}

// WithExpiry returns a copy that expires at t (second precision).
func (e Envelope) WithExpiry(t time.Time) Envelope {
	expiry := t.Unix()
	e.Expiry = &expiry
	return e
}

// WithPQData returns a copy carrying detached post-quantum material. Nil
// arguments leave the corresponding field unchanged.
func (e Envelope) WithPQData(ciphertext, signature []byte) Envelope {
	if ciphertext != nil {
		e.PQCiphertext = base64.StdEncoding.EncodeToString(ciphertext)
	}
	if signature != nil {
		e.PQSignature = base64.StdEncoding.EncodeToString(signature)
	}
	return e
}

// WithLegacyCompat returns a copy flagged as convertible to the legacy format.
func (e Envelope) WithLegacyCompat() Envelope {
	compat := true
	e.LegacyCompat = &compat
	return e
}

// IsLegacyCompat reports whether the legacy_compat flag is set.
func (e Envelope) IsLegacyCompat() bool {
	return e.LegacyCompat != nil && *e.LegacyCompat
}

// IsExpired reports whether the envelope is past its expiry.
func (e Envelope) IsExpired() bool {
	return e.IsExpiredAt(time.Now())
}

// IsExpiredAt reports whether the envelope is past its expiry at now.
// Envelopes without an expiry never expire.
func (e Envelope) IsExpiredAt(now time.Time) bool {
	return e.Expiry != nil && now.Unix() > *e.Expiry
}

// DecodePayload returns the encrypted payload bytes.
func (e Envelope) DecodePayload() ([]byte, error) {
	return decodeField("messaging.Envelope.DecodePayload", e.Payload)
}

// DecodePQData returns the detached post-quantum material, nil where absent.
func (e Envelope) DecodePQData() (ciphertext, signature []byte, err error) {
	if e.PQCiphertext != "" {
		if ciphertext, err = decodeField("messaging.Envelope.DecodePQData", e.PQCiphertext); err != nil {
			return nil, nil, err
		}
	}
	if e.PQSignature != "" {
		if signature, err = decodeField("messaging.Envelope.DecodePQData", e.PQSignature); err != nil {
			return nil, nil, err
		}
	}
	return ciphertext, signature, nil
}

// Validate checks the fields a relay depends on.
func (e Envelope) Validate() error {
	if e.Version != constants.QuantumEnvelopeVersion {
		return fmt.Errorf("%w: envelope version %q", qerrors.ErrUnsupportedVersion, e.Version)
	}
	if !e.CryptoMode.Valid() {
		return fmt.Errorf("%w: %d", qerrors.ErrInvalidMode, uint8(e.CryptoMode))
	}
	if e.InboxID == "" {
		return fmt.Errorf("%w: inbox ID cannot be empty", qerrors.ErrInvalidMessage)
	}
	if e.Payload == "" {
		return fmt.Errorf("%w: empty payload", qerrors.ErrInvalidMessage)
	}
	return nil
}

// ToJSON encodes the envelope.
func (e Envelope) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EnvelopeFromJSON decodes and validates an envelope.
func EnvelopeFromJSON(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", qerrors.ErrInvalidMessage, err)
	}
	if err := e.Validate(); err != nil {
		return Envelope{}, err
	}
	return e, nil
}

// ToLegacy converts a classical envelope to the v1.1 format. Envelopes in
// any other mode fail with ErrLegacyDowngrade because a legacy reader
// would not know how to decrypt them.
func (e Envelope) ToLegacy() (LegacyEnvelope, error) {
	if e.CryptoMode != mode.Classical {
		return LegacyEnvelope{}, qerrors.NewPolicyError("messaging.Envelope.ToLegacy",
			e.CryptoMode.String(), "", qerrors.ErrLegacyDowngrade)
	}
	return LegacyEnvelope{
		Version: constants.LegacyEnvelopeVersion,
		InboxID: e.InboxID,
		Payload: e.Payload,
		Expiry:  e.Expiry,
		Nonce:   e.Nonce,
	}, nil
}

// FromLegacy converts a v1.1 envelope. Legacy envelopes are always
// classical and the result is flagged legacy-compatible.
func FromLegacy(l LegacyEnvelope) Envelope {
	return Envelope{
		Version:    constants.QuantumEnvelopeVersion,
		CryptoMode: mode.Classical,
		InboxID:    l.InboxID,
		Payload:    l.Payload,
		Expiry:     l.Expiry,
		Nonce:      l.Nonce,
	}.WithLegacyCompat()
}

// UpgradeLegacyEnvelope converts a legacy envelope for the quantum-safe path.
func UpgradeLegacyEnvelope(l LegacyEnvelope) Envelope {
	return FromLegacy(l)
}

// DowngradeToLegacy converts a classical envelope for a legacy relay or
// client.
func DowngradeToLegacy(e Envelope) (LegacyEnvelope, error) {
	return e.ToLegacy()
}

// LegacyEnvelope is the classical-only v1.1 message envelope.
type LegacyEnvelope struct {
	Version string `json:"version"`
	InboxID string `json:"inbox_id"`
	Payload string `json:"payload"`
	Expiry  *int64 `json:"expiry,omitempty"`
	Nonce   string `json:"nonce"`
}

// NewLegacyEnvelope wraps an encrypted payload with a fresh nonce.
func NewLegacyEnvelope(inboxID string, encryptedPayload []byte) LegacyEnvelope {
	return LegacyEnvelope{
		Version: constants.LegacyEnvelopeVersion,
		InboxID: inboxID,
		Payload: base64.StdEncoding.EncodeToString(encryptedPayload),
		Nonce:   newNonce(),
	}
}

// WithExpiry returns a copy that expires at t.
func (l LegacyEnvelope) WithExpiry(t time.Time) LegacyEnvelope {
	expiry := t.Unix()
	l.Expiry = &expiry
	return l
}

// IsExpired reports whether the envelope is past its expiry.
func (l LegacyEnvelope) IsExpired() bool {
	return l.IsExpiredAt(time.Now())
}

// IsExpiredAt reports whether the envelope is past its expiry at now.
func (l LegacyEnvelope) IsExpiredAt(now time.Time) bool {
	return l.Expiry != nil && now.Unix() > *l.Expiry
}

// DecodePayload returns the encrypted payload bytes.
func (l LegacyEnvelope) DecodePayload() ([]byte, error) {
	return decodeField("messaging.LegacyEnvelope.DecodePayload", l.Payload)
}

// Validate checks the fields a relay depends on.
func (l LegacyEnvelope) Validate() error {
	if l.Version != constants.LegacyEnvelopeVersion {
		return fmt.Errorf("%w: envelope version %q", qerrors.ErrUnsupportedVersion, l.Version)
	}
	if l.InboxID == "" {
		return fmt.Errorf("%w: inbox ID cannot be empty", qerrors.ErrInvalidMessage)
	}
	return nil
}

// ToJSON encodes the envelope.
func (l LegacyEnvelope) ToJSON() ([]byte, error) {
	return json.Marshal(l)
}

// LegacyEnvelopeFromJSON decodes and validates a legacy envelope.
func LegacyEnvelopeFromJSON(data []byte) (LegacyEnvelope, error) {
	var l LegacyEnvelope
	if err := json.Unmarshal(data, &l); err != nil {
		return LegacyEnvelope{}, fmt.Errorf("%w: %v", qerrors.ErrInvalidMessage, err)
	}
	if err := l.Validate(); err != nil {
		return LegacyEnvelope{}, err
	}
	return l, nil
}

func decodeField(op, s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, qerrors.NewCryptoError(op, qerrors.ErrInvalidEncoding)
	}
	return b, nil
}
