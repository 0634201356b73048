package relay

import (
	"sync"
	"time"

	"github.com/pzverkov/quantum-messenger/pkg/messaging"
)

// Record is an envelope held in a mailbox together with the time the relay
// accepted it.
type Record struct {
	Envelope messaging.Envelope
	StoredAt time.Time
}

func (rec Record) expired(now time.Time, ttl time.Duration) bool {
	return rec.Envelope.IsExpiredAt(now) || now.Sub(rec.StoredAt) > ttl
}

// Mailboxes stores envelopes by inbox identifier. Implementations must be
// safe for concurrent use.
type Mailboxes interface {
	// Append adds rec to inboxID. When the mailbox then holds more than
	// limit records the oldest are dropped.
	Append(inboxID string, rec Record, limit int) error

	// List returns the records of inboxID, oldest first. An unknown inbox
	// is empty, not an error.
	List(inboxID string) ([]Record, error)

	// Sweep deletes every record for which drop returns true, removes
	// mailboxes left empty, and returns the number deleted.
	Sweep(drop func(Record) bool) (int, error)

	// Count returns the number of non-empty mailboxes and of records.
	Count() (inboxes, records int, err error)

	Close() error
}

// MemoryMailboxes keeps mailboxes in a map. Its contents are lost when the
// process exits.
type MemoryMailboxes struct {
	mu    sync.Mutex
	boxes map[string][]Record
}

var _ Mailboxes = (*MemoryMailboxes)(nil)

// NewMemoryMailboxes creates an empty in-memory store.
func NewMemoryMailboxes() *MemoryMailboxes {
	return &MemoryMailboxes{boxes: make(map[string][]Record)}
}

func (m *MemoryMailboxes) Append(inboxID string, rec Record, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	box := append(m.boxes[inboxID], rec)
	if limit > 0 && len(box) > limit {
		box = append(box[:0:0], box[len(box)-limit:]...)
	}
	m.boxes[inboxID] = box
	return nil
}

func (m *MemoryMailboxes) List(inboxID string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.boxes[inboxID]...), nil
}

func (m *MemoryMailboxes) Sweep(drop func(Record) bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, box := range m.boxes {
		kept := box[:0]
		for _, rec := range box {
			if drop(rec) {
				removed++
				continue
			}
			kept = append(kept, rec)
		}
		if len(kept) == 0 {
			delete(m.boxes, id)
		} else {
			m.boxes[id] = kept
		}
	}
	return removed, nil
}

func (m *MemoryMailboxes) Count() (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := 0
	for _, box := range m.boxes {
		records += len(box)
	}
	return len(m.boxes), records, nil
}

// Close drops all mailboxes.
func (m *MemoryMailboxes) Close() error {
	m.mu.Lock()
	clear(m.boxes)
	m.mu.Unlock()
	return nil
}
