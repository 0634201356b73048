package boltstore_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/pzverkov/quantum-messenger/pkg/messaging"
	"github.com/pzverkov/quantum-messenger/pkg/mode"
	"github.com/pzverkov/quantum-messenger/pkg/protocol"
	"github.com/pzverkov/quantum-messenger/pkg/relay"
	"github.com/pzverkov/quantum-messenger/pkg/relay/boltstore"
)

var epoch = time.Unix(1_700_000_000, 0)

func openStore(t *testing.T, path string) *boltstore.Store {
	t.Helper()
	s, err := boltstore.Open(path)
	require.NoError(t, err, "Open()")
	return s
}

func testRecord(inboxID, payload string, at time.Time) relay.Record {
	return relay.Record{
		Envelope: messaging.NewEnvelope(mode.Hybrid, inboxID, []byte(payload)).
			WithPQData([]byte("kem-ciphertext"), []byte("signature")).
			WithExpiry(at.Add(time.Hour)),
		StoredAt: at,
	}
}

func payloads(t *testing.T, recs []relay.Record) []string {
	t.Helper()
	out := make([]string, 0, len(recs))
	for _, rec := range recs {
		p, err := rec.Envelope.DecodePayload()
		require.NoError(t, err, "DecodePayload()")
		out = append(out, string(p))
	}
	return out
}

func TestStoreCreateAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.db")

	want := []relay.Record{
		testRecord("inbox-a", "first", epoch),
		testRecord("inbox-a", "second", epoch.Add(time.Second)),
		testRecord("inbox-b", "other", epoch.Add(2*time.Second)),
	}

	s := openStore(t, path)
	assert.Equal(t, path, s.Path())
	for _, rec := range want {
		require.NoError(t, s.Append(rec.Envelope.InboxID, rec, 10), "Append()")
	}
	require.NoError(t, s.Close(), "Close()")

	s = openStore(t, path)
	defer s.Close()

	got, err := s.List("inbox-a")
	require.NoError(t, err, "List()")
	require.Len(t, got, 2)
	for i, rec := range got {
		assert.Equal(t, want[i].Envelope, rec.Envelope, "envelope %d", i)
		assert.True(t, want[i].StoredAt.Equal(rec.StoredAt), "stored time %d", i)
	}

	inboxes, records, err := s.Count()
	require.NoError(t, err, "Count()")
	assert.Equal(t, 2, inboxes)
	assert.Equal(t, 3, records)
}

func TestStoreListUnknownInbox(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "relay.db"))
	defer s.Close()

	got, err := s.List("nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStoreLimitDropsOldest(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "relay.db"))
	defer s.Close()

	for i := 0; i < 5; i++ {
		rec := testRecord("inbox", fmt.Sprintf("m%d", i), epoch.Add(time.Duration(i)*time.Second))
		require.NoError(t, s.Append("inbox", rec, 3))
	}

	got, err := s.List("inbox")
	require.NoError(t, err)
	assert.Equal(t, []string{"m2", "m3", "m4"}, payloads(t, got))
}

func TestStoreSweep(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "relay.db"))
	defer s.Close()

	require.NoError(t, s.Append("a", testRecord("a", "old", epoch), 0))
	require.NoError(t, s.Append("a", testRecord("a", "new", epoch.Add(time.Hour)), 0))
	require.NoError(t, s.Append("b", testRecord("b", "old", epoch), 0))

	cutoff := epoch.Add(time.Minute)
	removed, err := s.Sweep(func(rec relay.Record) bool { return rec.StoredAt.Before(cutoff) })
	require.NoError(t, err, "Sweep()")
	assert.Equal(t, 2, removed)

	got, err := s.List("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, payloads(t, got))

	inboxes, records, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, inboxes, "emptied mailbox should be removed")
	assert.Equal(t, 1, records)

	// A later append to a swept inbox starts a fresh mailbox.
	require.NoError(t, s.Append("b", testRecord("b", "again", epoch.Add(2*time.Hour)), 0))
	got, err = s.List("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"again"}, payloads(t, got))
}

func TestStoreIncompatibleVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.db")

	db, err := bolt.Open(path, 0o600, nil)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucket([]byte("metadata"))
		if err != nil {
			return err
		}
		return meta.Put([]byte("version"), []byte{42})
	}))
	require.NoError(t, db.Close())

	_, err = boltstore.Open(path)
	assert.ErrorIs(t, err, boltstore.ErrIncompatibleVersion)
}

// --- Relay Integration ---

func TestRelaySurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.db")
	cfg := relay.DefaultConfig()
	cfg.InboxRate = 0

	newRelay := func() *relay.Relay {
		r, err := relay.New(cfg, relay.WithMailboxes(openStore(t, path)))
		require.NoError(t, err, "relay.New()")
		return r
	}

	r := newRelay()
	env := messaging.NewEnvelope(mode.Classical, "inbox-1", []byte("persisted"))
	reply := r.Handle(context.Background(), &protocol.SendQuantumMessage{Envelope: env})
	require.IsType(t, &protocol.Success{}, reply)
	require.NoError(t, r.Close())

	r = newRelay()
	defer r.Close()

	got, err := r.Fetch("inbox-1")
	require.NoError(t, err, "Fetch()")
	require.Len(t, got, 1)
	assert.Equal(t, env, got[0])

	st, err := r.Stats()
	require.NoError(t, err)
	assert.Equal(t, relay.Stats{Inboxes: 1, Envelopes: 1}, st)
}
