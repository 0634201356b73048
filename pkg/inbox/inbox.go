// Package inbox derives the relay inbox identifiers that unlink messages
// from their recipients.
//
// A first message goes to an inbox derived from the recipient's public key.
// Every later message in a conversation goes to a fresh inbox derived from
// the X25519 shared secret of the two parties and a per-direction counter:
//
//	first contact: hex(SHA-256("first_contact:" ‖ recipient_key))
//	conversation:  hex(SHA-256(shared_secret ‖ u64be(counter)))
//
// Both parties derive the same secret, so the recipient can compute the
// inboxes the sender will use without any coordination.
package inbox

import (
	"crypto/ecdh"
	"encoding/binary"
	"encoding/hex"

	"github.com/pzverkov/quantum-messenger/internal/constants"
	"github.com/pzverkov/quantum-messenger/pkg/crypto"
)

// DeriveFirstContactInbox returns the inbox for first contact with the
// owner of recipientKey. Identical keys always give the identical inbox.
func DeriveFirstContactInbox(recipientKey []byte) string {
	sum := crypto.Sum256([]byte(constants.FirstContactPrefix), recipientKey)
	return hex.EncodeToString(sum[:])
}

// DeriveConversationInbox returns the inbox for message counter of a
// conversation keyed by secret.
func DeriveConversationInbox(secret []byte, counter uint64) string {
	var c [8]byte
	binary.BigEndian.PutUint64(c[:], counter)
	sum := crypto.Sum256(secret, c[:])
	return hex.EncodeToString(sum[:])
}

// DeriveRecentInboxes returns the inboxes for current, current-1, ... going
// back count messages, stopping at counter 0. A count below 1 gives nil.
func DeriveRecentInboxes(secret []byte, current uint64, count int) []string {
	if count <= 0 {
		return nil
	}
	inboxes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if uint64(i) > current {
			break
		}
		inboxes = append(inboxes, DeriveConversationInbox(secret, current-uint64(i)))
	}
	return inboxes
}

// ComputeSharedSecret performs X25519 between our private key and their
// public key.
func ComputeSharedSecret(ours *ecdh.PrivateKey, theirs *ecdh.PublicKey) ([]byte, error) {
	return crypto.X25519(ours, theirs)
}
