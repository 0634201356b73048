// Package boltstore keeps relay mailboxes in a bbolt database so that
// stored envelopes survive a relay restart.
//
// Each inbox is a bucket under "inboxes". Records are keyed by the bucket's
// big-endian sequence number, so a cursor walks them oldest first, and the
// values are CBOR-encoded.
package boltstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/pzverkov/quantum-messenger/pkg/messaging"
	"github.com/pzverkov/quantum-messenger/pkg/relay"
)

const (
	metadataBucket = "metadata"
	inboxesBucket  = "inboxes"
	versionKey     = "version"

	schemaVersion = 1
)

// ErrIncompatibleVersion is returned by Open for a database written with a
// different schema.
var ErrIncompatibleVersion = errors.New("boltstore: incompatible database version")

type record struct {
	_        struct{} `cbor:",toarray"`
	StoredAt int64
	Envelope messaging.Envelope
}

func encode(rec relay.Record) ([]byte, error) {
	data, err := cbor.Marshal(record{StoredAt: rec.StoredAt.UnixNano(), Envelope: rec.Envelope})
	if err != nil {
		return nil, fmt.Errorf("boltstore: encode: %w", err)
	}
	return data, nil
}

func decode(data []byte) (relay.Record, error) {
	var r record
	if err := cbor.Unmarshal(data, &r); err != nil {
		return relay.Record{}, fmt.Errorf("boltstore: decode: %w", err)
	}
	return relay.Record{Envelope: r.Envelope, StoredAt: time.Unix(0, r.StoredAt)}, nil
}

func seqKey(seq uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], seq)
	return k[:]
}

// Store is a relay.Mailboxes backed by a bbolt file.
type Store struct {
	db *bolt.DB
}

var _ relay.Mailboxes = (*Store)(nil)

// Open creates or loads the database at path. It waits at most one second
// for another process holding the file lock.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists([]byte(metadataBucket))
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(inboxesBucket)); err != nil {
			return err
		}

		if v := meta.Get([]byte(versionKey)); v != nil {
			if len(v) != 1 || v[0] != schemaVersion {
				return fmt.Errorf("%w: %x", ErrIncompatibleVersion, v)
			}
			return nil
		}
		return meta.Put([]byte(versionKey), []byte{schemaVersion})
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Path returns the database file name.
func (s *Store) Path() string {
	return s.db.Path()
}

func (s *Store) Append(inboxID string, rec relay.Record, limit int) error {
	data, err := encode(rec)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		box, err := tx.Bucket([]byte(inboxesBucket)).CreateBucketIfNotExists([]byte(inboxID))
		if err != nil {
			return err
		}
		seq, err := box.NextSequence()
		if err != nil {
			return err
		}
		if err := box.Put(seqKey(seq), data); err != nil {
			return err
		}
		if limit <= 0 {
			return nil
		}

		n := 0
		c := box.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			n++
		}
		for k, _ := c.First(); k != nil && n > limit; k, _ = c.First() {
			if err := c.Delete(); err != nil {
				return err
			}
			n--
		}
		return nil
	})
}

func (s *Store) List(inboxID string) ([]relay.Record, error) {
	var out []relay.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		box := tx.Bucket([]byte(inboxesBucket)).Bucket([]byte(inboxID))
		if box == nil {
			return nil
		}
		return box.ForEach(func(_, v []byte) error {
			rec, err := decode(v)
			if err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

// Sweep deletes the records drop selects. A record that cannot be decoded
// aborts the sweep and nothing is deleted.
func (s *Store) Sweep(drop func(relay.Record) bool) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		inboxes := tx.Bucket([]byte(inboxesBucket))

		var names [][]byte
		if err := inboxes.ForEachBucket(func(name []byte) error {
			names = append(names, append([]byte(nil), name...))
			return nil
		}); err != nil {
			return err
		}

		for _, name := range names {
			box := inboxes.Bucket(name)

			var doomed [][]byte
			kept := 0
			if err := box.ForEach(func(k, v []byte) error {
				rec, err := decode(v)
				if err != nil {
					return err
				}
				if drop(rec) {
					doomed = append(doomed, append([]byte(nil), k...))
				} else {
					kept++
				}
				return nil
			}); err != nil {
				return err
			}

			removed += len(doomed)
			if kept == 0 {
				if err := inboxes.DeleteBucket(name); err != nil {
					return err
				}
				continue
			}
			for _, k := range doomed {
				if err := box.Delete(k); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *Store) Count() (inboxes, records int, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(inboxesBucket))
		return root.ForEachBucket(func(name []byte) error {
			n := 0
			if err := root.Bucket(name).ForEach(func(_, _ []byte) error {
				n++
				return nil
			}); err != nil {
				return err
			}
			if n > 0 {
				inboxes++
				records += n
			}
			return nil
		})
	})
	return inboxes, records, err
}

// Close closes the database file.
func (s *Store) Close() error {
	return s.db.Close()
}
