package inbox

import (
	"crypto/ecdh"
	"sort"
	"sync"

	"github.com/pzverkov/quantum-messenger/internal/constants"
	"github.com/pzverkov/quantum-messenger/pkg/crypto"
	"github.com/pzverkov/quantum-messenger/pkg/metrics"
	"github.com/pzverkov/quantum-messenger/pkg/unified"
)

// ConversationState tracks the inbox counters of one conversation.
//
// Our counter starts at 1 because counter 0 is the first-contact message.
// Both counters only move forward. A ConversationState is safe for
// concurrent use.
type ConversationState struct {
	mu               sync.Mutex
	theirPublicKey   *ecdh.PublicKey
	sharedSecret     []byte
	ourCounter       uint64
	theirLastCounter uint64
}

// NewConversationState derives the shared secret between ours and theirs.
func NewConversationState(ours *ecdh.PrivateKey, theirs *ecdh.PublicKey) (*ConversationState, error) {
	secret, err := ComputeSharedSecret(ours, theirs)
	if err != nil {
		return nil, err
	}
	return &ConversationState{
		theirPublicKey: theirs,
		sharedSecret:   secret,
		ourCounter:     1,
	}, nil
}

// OutgoingInbox returns the inbox for our next message and advances our
// counter. Successive calls never return the same inbox.
func (c *ConversationState) OutgoingInbox() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	inbox := DeriveConversationInbox(c.sharedSecret, c.ourCounter)
	c.ourCounter++
	return inbox
}

// IncomingInboxes returns the inboxes for their next window messages,
// counters last+1 through last+window. A window below 1 gives nil.
func (c *ConversationState) IncomingInboxes(window int) []string {
	if window <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	inboxes := make([]string, 0, window)
	for i := 1; i <= window; i++ {
		inboxes = append(inboxes, DeriveConversationInbox(c.sharedSecret, c.theirLastCounter+uint64(i)))
	}
	return inboxes
}

// UpdateTheirCounter records that their message counter was seen. Counters
// not above the last one seen are ignored.
func (c *ConversationState) UpdateTheirCounter(counter uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if counter > c.theirLastCounter {
		c.theirLastCounter = counter
	}
}

// FirstContactInbox returns the first-contact inbox of the peer.
func (c *ConversationState) FirstContactInbox() string {
	return DeriveFirstContactInbox(c.theirPublicKey.Bytes())
}

// OurCounter returns the counter of our next outgoing message.
func (c *ConversationState) OurCounter() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ourCounter
}

// TheirLastCounter returns the highest counter seen from the peer.
func (c *ConversationState) TheirLastCounter() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.theirLastCounter
}

// SharedSecret returns a copy of the conversation secret.
func (c *ConversationState) SharedSecret() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.sharedSecret...)
}

// TheirPublicKey returns the peer's X25519 key.
func (c *ConversationState) TheirPublicKey() *ecdh.PublicKey {
	return c.theirPublicKey
}

// Zeroize erases the shared secret. The state is unusable afterwards.
func (c *ConversationState) Zeroize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	crypto.Zeroize(c.sharedSecret)
}

// ConversationManager keeps one ConversationState per peer identity,
// created on first use.
type ConversationManager struct {
	mu            sync.Mutex
	ours          *ecdh.PrivateKey
	conversations map[string]*ConversationState
	peers         map[string]*unified.PublicKeys
	window        int
	logger        *metrics.Logger
}

// ManagerOption configures a ConversationManager.
type ManagerOption func(*ConversationManager)

// WithLogger sets the logger. The default is the global logger.
func WithLogger(l *metrics.Logger) ManagerOption {
	return func(m *ConversationManager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithWindow sets the look-ahead used by PendingInboxes.
func WithWindow(window int) ManagerOption {
	return func(m *ConversationManager) {
		if window > 0 {
			m.window = window
		}
	}
}

// NewConversationManager creates a manager for the owner of own.
// Post-quantum key pairs have no X25519 key and fail with ErrKEMRequired.
func NewConversationManager(own *unified.KeyPair, opts ...ManagerOption) (*ConversationManager, error) {
	ours, err := own.ExchangePrivateKey()
	if err != nil {
		return nil, err
	}

	m := &ConversationManager{
		ours:          ours,
		conversations: make(map[string]*ConversationState),
		peers:         make(map[string]*unified.PublicKeys),
		window:        constants.DefaultIncomingWindow,
		logger:        metrics.GetLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("inbox")
	return m, nil
}

// GetOrCreate returns the conversation with peer, creating it on first use.
// Concurrent callers for the same peer receive the same state.
func (m *ConversationManager) GetOrCreate(peer *unified.PublicKeys) (*ConversationState, error) {
	id := peer.String()

	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.conversations[id]; ok {
		return c, nil
	}

	theirs, err := peer.ExchangePublicKey()
	if err != nil {
		return nil, err
	}
	c, err := NewConversationState(m.ours, theirs)
	if err != nil {
		return nil, err
	}
	m.conversations[id] = c
	m.peers[id] = peer

	m.logger.Debug("conversation created", metrics.Fields{
		"peer": metrics.Fingerprint(theirs.Bytes()),
		"mode": peer.Mode().String(),
	})
	return c, nil
}

// Get returns the conversation with the peer whose identity string is id.
func (m *ConversationManager) Get(id string) (*ConversationState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	return c, ok
}

// SenderKeys returns the full public keys of the peer whose identity
// string is id. It has the shape of messaging.SenderKeys.
func (m *ConversationManager) SenderKeys(id string) (*unified.PublicKeys, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk, ok := m.peers[id]
	return pk, ok
}

// List returns the identity strings of all conversations, sorted.
func (m *ConversationManager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.conversations))
	for id := range m.conversations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PendingInboxes returns, per conversation, the inboxes to poll for the
// peer's next messages.
func (m *ConversationManager) PendingInboxes() map[string][]string {
	m.mu.Lock()
	conversations := make(map[string]*ConversationState, len(m.conversations))
	for id, c := range m.conversations {
		conversations[id] = c
	}
	m.mu.Unlock()

	out := make(map[string][]string, len(conversations))
	for id, c := range conversations {
		out[id] = c.IncomingInboxes(m.window)
	}
	return out
}
