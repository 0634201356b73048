package messaging

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/pzverkov/quantum-messenger/internal/constants"
	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
	"github.com/pzverkov/quantum-messenger/pkg/crypto"
	"github.com/pzverkov/quantum-messenger/pkg/mode"
	"github.com/pzverkov/quantum-messenger/pkg/unified"
)

// DeriveInboxID returns the envelope inbox identifier for the n-th message
// to recipient:
//
//	base64(SHA-256(recipient ‖ u64be(counter))[0:16])
func DeriveInboxID(recipient string, counter uint64) string {
	var c [8]byte
	binary.BigEndian.PutUint64(c[:], counter)
	sum := crypto.Sum256([]byte(recipient), c[:])
	return base64.StdEncoding.EncodeToString(sum[:constants.InboxIDSize])
}

// CreateEncryptedMessage signs, encrypts and wraps body for recipient.
//
// The message mode is explicitMode when given, otherwise the mode of the
// sender key pair. A mode below the interface's minimum is refused with a
// policy error. The envelope's inbox is derived from the recipient identity
// and counter.
func CreateEncryptedMessage(
	ctx context.Context,
	iface *unified.Interface,
	sender *unified.KeyPair,
	recipient *unified.PublicKeys,
	body string,
	counter uint64,
	room string,
	explicitMode *mode.Mode,
) (Envelope, error) {
	const op = "messaging.CreateEncryptedMessage"

	if sender.Validate() != nil {
		return Envelope{}, qerrors.NewCryptoError(op, qerrors.ErrInvalidPrivateKey)
	}
	if recipient.Validate() != nil {
		return Envelope{}, qerrors.NewCryptoError(op, qerrors.ErrInvalidPublicKey)
	}
	if len(body) > constants.MaxBodySize {
		return Envelope{}, qerrors.NewCryptoError(op, qerrors.ErrMessageTooLarge)
	}

	m := sender.Mode()
	if explicitMode != nil {
		m = *explicitMode
	}
	if err := iface.CheckOutgoing(op, m); err != nil {
		return Envelope{}, err
	}

	_, done := iface.Observer().OnEncrypt(ctx, m, len(body))
	env, err := createEncryptedMessage(sender, recipient, body, counter, room, m)
	done(err)
	return env, err
}

func createEncryptedMessage(sender *unified.KeyPair, recipient *unified.PublicKeys, body string, counter uint64, room string, m mode.Mode) (Envelope, error) {
	payload := NewPayload(sender.PublicKeyString(), body, counter, room)
	if err := payload.Sign(sender); err != nil {
		return Envelope{}, err
	}

	plaintext, err := payload.ToJSON()
	if err != nil {
		return Envelope{}, err
	}

	ciphertext, err := unified.Encrypt(m, recipient, plaintext)
	if err != nil {
		return Envelope{}, err
	}

	return NewEnvelope(m, DeriveInboxID(recipient.String(), counter), ciphertext), nil
}

// SenderKeys resolves a sender identity string to the full public keys
// known for it, such as a contact list or a username registry.
type SenderKeys func(identity string) (*unified.PublicKeys, bool)

// DecryptMessage opens env with own and verifies the sender signature.
//
// An envelope whose mode is below the interface's minimum is rejected with
// a policy error before any decryption is attempted. The signature is
// checked against the keys the payload carries; see DecryptMessageFrom.
func DecryptMessage(ctx context.Context, iface *unified.Interface, env Envelope, own *unified.KeyPair) (*Payload, error) {
	return DecryptMessageFrom(ctx, iface, env, own, nil)
}

// DecryptMessageFrom is DecryptMessage with a sender key lookup. When keys
// knows the sender, the signature must verify against those keys, which
// binds the post-quantum half of a hybrid signature to the sender.
// Unknown senders fall back to the payload's own pq_pubkey.
func DecryptMessageFrom(ctx context.Context, iface *unified.Interface, env Envelope, own *unified.KeyPair, keys SenderKeys) (*Payload, error) {
	_, done := iface.Observer().OnDecrypt(ctx, env.CryptoMode, env.InboxID)
	payload, err := decryptMessage(iface, env, own, keys)
	if err != nil {
		done(0, err)
		return nil, err
	}
	done(len(payload.Body), nil)
	return payload, nil
}

func decryptMessage(iface *unified.Interface, env Envelope, own *unified.KeyPair, keys SenderKeys) (*Payload, error) {
	const op = "messaging.DecryptMessage"

	if err := iface.CheckIncoming(op, env.CryptoMode); err != nil {
		return nil, err
	}
	if env.Version != constants.QuantumEnvelopeVersion {
		return nil, fmt.Errorf("%w: envelope version %q", qerrors.ErrUnsupportedVersion, env.Version)
	}
	if own.Validate() != nil {
		return nil, qerrors.NewCryptoError(op, qerrors.ErrInvalidPrivateKey)
	}

	ciphertext, err := env.DecodePayload()
	if err != nil {
		return nil, err
	}

	plaintext, err := own.Decrypt(env.CryptoMode, ciphertext)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(plaintext) {
		return nil, qerrors.NewCryptoError(op, fmt.Errorf("%w: payload is not UTF-8", qerrors.ErrInvalidEncoding))
	}

	payload, err := PayloadFromJSON(plaintext)
	if err != nil {
		return nil, err
	}
	if keys != nil {
		if known, ok := keys(payload.FromPubkey); ok {
			if err := payload.VerifySignatureWith(known); err != nil {
				return nil, err
			}
			return payload, nil
		}
	}
	if err := payload.VerifySignature(); err != nil {
		return nil, err
	}
	return payload, nil
}

// Received is a message that decrypted and verified.
type Received struct {
	InboxID string
	Payload *Payload
}

// Receive decrypts every envelope it can. Expired, undecryptable and
// unverifiable envelopes are reported to the observer and skipped; they
// never abort the batch.
func Receive(ctx context.Context, iface *unified.Interface, envelopes []Envelope, own *unified.KeyPair) []Received {
	return ReceiveFrom(ctx, iface, envelopes, own, nil)
}

// ReceiveFrom is Receive with the sender key lookup of DecryptMessageFrom.
func ReceiveFrom(ctx context.Context, iface *unified.Interface, envelopes []Envelope, own *unified.KeyPair, keys SenderKeys) []Received {
	out := make([]Received, 0, len(envelopes))
	for _, env := range envelopes {
		if env.IsExpired() {
			iface.Observer().OnSkipped(env.InboxID, qerrors.ErrExpired)
			continue
		}
		payload, err := DecryptMessageFrom(ctx, iface, env, own, keys)
		if err != nil {
			iface.Observer().OnSkipped(env.InboxID, err)
			continue
		}
		out = append(out, Received{InboxID: env.InboxID, Payload: payload})
	}
	return out
}
