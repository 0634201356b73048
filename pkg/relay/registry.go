package relay

import (
	"fmt"
	"sort"
	"sync"

	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
	"github.com/pzverkov/quantum-messenger/pkg/messaging"
	"github.com/pzverkov/quantum-messenger/pkg/unified"
)

// Registry maps usernames to the public keys that claimed them.
//
// A username belongs to the first key set that claims it. Later claims are
// accepted only from the same keys and only with a newer timestamp.
type Registry struct {
	mu     sync.RWMutex
	claims map[string]messaging.UsernameClaim
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{claims: make(map[string]messaging.UsernameClaim)}
}

// Register verifies claim and records it.
func (r *Registry) Register(claim *messaging.UsernameClaim) error {
	if claim == nil {
		return fmt.Errorf("%w: missing claim", qerrors.ErrInvalidMessage)
	}
	if err := claim.Verify(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.claims[claim.Username]; ok {
		if !existing.PublicKeys.Equal(claim.PublicKeys) {
			return fmt.Errorf("%w: %q", qerrors.ErrUsernameTaken, claim.Username)
		}
		if claim.Timestamp <= existing.Timestamp {
			return fmt.Errorf("%w: claim for %q is not newer than the existing claim",
				qerrors.ErrInvalidMessage, claim.Username)
		}
	}
	r.claims[claim.Username] = *claim
	return nil
}

// Lookup returns the public keys bound to username.
func (r *Registry) Lookup(username string) (*unified.PublicKeys, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	claim, ok := r.claims[username]
	if !ok {
		return nil, false
	}
	return claim.PublicKeys, true
}

// SenderKeys returns the claimed public keys whose identity string is id.
// It has the shape of messaging.SenderKeys.
func (r *Registry) SenderKeys(id string) (*unified.PublicKeys, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, claim := range r.claims {
		if claim.PublicKeys.String() == id {
			return claim.PublicKeys, true
		}
	}
	return nil, false
}

// Usernames returns all claimed usernames, sorted.
func (r *Registry) Usernames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.claims))
	for name := range r.claims {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of claimed usernames.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.claims)
}
