// Package messaging implements quantum-safe messages: the signed Payload,
// the Envelope that carries it encrypted to a relay, and the legacy v1.1
// envelope that classical messages can still be converted to.
//
// # Message Flow
//
//	sender:    Payload ─sign─▶ JSON ─encrypt(route)─▶ Envelope{inbox_id}
//	recipient: Envelope ─policy─▶ decrypt(route) ─▶ JSON ─▶ Payload ─verify─▶ body
//
// The route is taken from the compatibility table in package mode, so the
// encrypt and decrypt paths cannot disagree about which suite applies.
//
// # Signatures
//
// The signature covers the canonical JSON of every payload field except
// sig. The payload records the mode of the signing key in crypto_mode.
// Hybrid identities carry only the classical key, so hybrid payloads also
// carry the sender's post-quantum verification key in pq_pubkey, covered by
// both sub-signatures. A self-asserted pq_pubkey proves only that the
// signer holds the classical key. VerifySignatureWith checks against keys
// learned out of band and restores the post-quantum binding.
package messaging

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pzverkov/quantum-messenger/internal/constants"
	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
	"github.com/pzverkov/quantum-messenger/pkg/classical"
	"github.com/pzverkov/quantum-messenger/pkg/hybrid"
	"github.com/pzverkov/quantum-messenger/pkg/mode"
	"github.com/pzverkov/quantum-messenger/pkg/postquantum"
	"github.com/pzverkov/quantum-messenger/pkg/unified"
)

// Payload is the plaintext content of a message.
type Payload struct {
	FromPubkey string     `json:"from_pubkey"`
	Timestamp  int64      `json:"timestamp"`
	Body       string     `json:"body"`
	Room       string     `json:"room,omitempty"`
	Counter    uint64     `json:"counter"`
	CryptoMode *mode.Mode `json:"crypto_mode,omitempty"`
	PQPubkey   string     `json:"pq_pubkey,omitempty"`
	Sig        string     `json:"sig"`
}

// signablePayload fixes the field order of the signed bytes.
type signablePayload struct {
	FromPubkey string     `json:"from_pubkey"`
	Timestamp  int64      `json:"timestamp"`
	Body       string     `json:"body"`
	Room       string     `json:"room,omitempty"`
	Counter    uint64     `json:"counter"`
	CryptoMode *mode.Mode `json:"crypto_mode,omitempty"`
	PQPubkey   string     `json:"pq_pubkey,omitempty"`
}

// NewPayload creates an unsigned payload stamped with the current time.
func NewPayload(fromPubkey, body string, counter uint64, room string) *Payload {
	return &Payload{
		FromPubkey: fromPubkey,
		Timestamp:  time.Now().Unix(),
		Body:       body,
		Room:       room,
		Counter:    counter,
	}
}

// SignableData returns the canonical bytes the signature covers.
func (p *Payload) SignableData() ([]byte, error) {
	return json.Marshal(signablePayload{
		FromPubkey: p.FromPubkey,
		Timestamp:  p.Timestamp,
		Body:       p.Body,
		Room:       p.Room,
		Counter:    p.Counter,
		CryptoMode: p.CryptoMode,
		PQPubkey:   p.PQPubkey,
	})
}

// Sign signs the payload with kp. The payload must name kp as its sender.
// Sign records kp's mode in CryptoMode, and for hybrid keys the
// post-quantum verification key in PQPubkey, before computing the signed
// bytes.
func (p *Payload) Sign(kp *unified.KeyPair) error {
	if err := kp.Validate(); err != nil {
		return err
	}
	if p.FromPubkey != kp.PublicKeyString() {
		return qerrors.NewCryptoError("messaging.Payload.Sign", qerrors.ErrInvalidPublicKey)
	}

	m := kp.Mode()
	p.CryptoMode = &m
	p.PQPubkey = ""
	if h, ok := kp.Hybrid(); ok {
		p.PQPubkey = base64.StdEncoding.EncodeToString(h.PostQuantum.PublicKeys().Bytes())
	}

	data, err := p.SignableData()
	if err != nil {
		return err
	}
	sig, err := kp.Sign(data)
	if err != nil {
		return err
	}
	p.Sig = base64.StdEncoding.EncodeToString(sig)
	return nil
}

// SignatureMode returns the mode of the signature: CryptoMode if set,
// otherwise the mode implied by the sender identity prefix.
func (p *Payload) SignatureMode() mode.Mode {
	if p.CryptoMode != nil {
		return *p.CryptoMode
	}
	return identityMode(p.FromPubkey)
}

// VerifySignature checks the signature against the sender identity.
//
// The identity prefix must agree with the signature mode, so a payload
// cannot claim a weaker suite than its sender key.
func (p *Payload) VerifySignature() error {
	const op = "messaging.Payload.VerifySignature"

	m := p.SignatureMode()
	if identityMode(p.FromPubkey) != m {
		return qerrors.NewCryptoError(op, fmt.Errorf("%w: %s signature from %s identity",
			qerrors.ErrInvalidPublicKey, m, identityMode(p.FromPubkey)))
	}

	sig, err := base64.StdEncoding.DecodeString(p.Sig)
	if err != nil {
		return qerrors.NewCryptoError(op, qerrors.ErrInvalidEncoding)
	}
	data, err := p.SignableData()
	if err != nil {
		return qerrors.NewCryptoError(op, err)
	}

	switch m {
	case mode.Classical:
		pub, err := classical.ParsePublicKeyString(p.FromPubkey)
		if err != nil {
			return err
		}
		return classical.VerifyWithKey(pub, data, sig)

	case mode.Hybrid:
		pub, err := p.hybridPublicKeys()
		if err != nil {
			return err
		}
		parsed, err := hybrid.ParseSignature(sig)
		if err != nil {
			return qerrors.NewCryptoError(op, qerrors.ErrInvalidSignature)
		}
		return hybrid.Suite{}.Verify(pub, data, parsed)

	case mode.Quantum:
		pub, err := postquantum.ParsePublicKeyString(p.FromPubkey)
		if err != nil {
			return err
		}
		return postquantum.Suite{}.Verify(pub, data, sig)
	}
	return qerrors.NewCryptoError(op, qerrors.ErrInvalidMode)
}

// VerifySignatureWith checks the signature against known, the full public
// keys of the sender. The payload must name known as its sender, in the
// same mode, and a hybrid payload's pq_pubkey must equal known's
// post-quantum key.
func (p *Payload) VerifySignatureWith(known *unified.PublicKeys) error {
	const op = "messaging.Payload.VerifySignatureWith"

	if err := known.Validate(); err != nil {
		return err
	}
	if p.FromPubkey != known.String() {
		return qerrors.NewCryptoError(op, fmt.Errorf("%w: payload sender is not the known key", qerrors.ErrInvalidPublicKey))
	}
	if m := p.SignatureMode(); m != known.Mode() {
		return qerrors.NewCryptoError(op, fmt.Errorf("%w: %s signature from %s sender",
			qerrors.ErrInvalidPublicKey, m, known.Mode()))
	}
	if h, ok := known.Hybrid(); ok && p.PQPubkey != base64.StdEncoding.EncodeToString(h.PostQuantum.Bytes()) {
		return qerrors.NewCryptoError(op, fmt.Errorf("%w: pq_pubkey is not the sender's post-quantum key", qerrors.ErrInvalidPublicKey))
	}

	sig, err := base64.StdEncoding.DecodeString(p.Sig)
	if err != nil {
		return qerrors.NewCryptoError(op, qerrors.ErrInvalidEncoding)
	}
	data, err := p.SignableData()
	if err != nil {
		return qerrors.NewCryptoError(op, err)
	}
	return unified.VerifyWithKeys(known, data, sig)
}

// hybridPublicKeys rebuilds the sender's verification keys from the
// identity string and PQPubkey. The X25519 half is not needed to verify.
func (p *Payload) hybridPublicKeys() (*hybrid.PublicKeys, error) {
	inner, err := hybrid.ClassicalPublicKeyString(p.FromPubkey)
	if err != nil {
		return nil, err
	}
	signing, err := classical.ParsePublicKeyString(inner)
	if err != nil {
		return nil, err
	}

	if p.PQPubkey == "" {
		return nil, qerrors.NewCryptoError("messaging.Payload.VerifySignature",
			fmt.Errorf("%w: hybrid payload without pq_pubkey", qerrors.ErrInvalidPublicKey))
	}
	raw, err := base64.StdEncoding.DecodeString(p.PQPubkey)
	if err != nil {
		return nil, qerrors.NewCryptoError("messaging.Payload.VerifySignature", qerrors.ErrInvalidEncoding)
	}
	pq, err := postquantum.ParsePublicKeys(raw)
	if err != nil {
		return nil, err
	}

	return &hybrid.PublicKeys{
		Classical:   &classical.PublicKeys{Signing: signing},
		PostQuantum: pq,
	}, nil
}

// ToJSON encodes the payload.
func (p *Payload) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}

// PayloadFromJSON decodes a payload.
func PayloadFromJSON(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, qerrors.NewCryptoError("messaging.PayloadFromJSON", fmt.Errorf("%w: %v", qerrors.ErrInvalidEncoding, err))
	}
	return &p, nil
}

// identityMode infers the suite of an identity string from its prefix.
// Anything unrecognised is treated as classical and fails to parse later.
func identityMode(identity string) mode.Mode {
	switch {
	case strings.HasPrefix(identity, constants.PostQuantumKeyPrefix):
		return mode.Quantum
	case strings.HasPrefix(identity, constants.HybridKeyPrefix):
		return mode.Hybrid
	}
	return mode.Classical
}
