// Package storage persists slab snapshots and the instruction log a
// devnet host replays them from: one Pebble handle, one small fixed
// key schema, not-found surfaced as an ordinary miss.
package storage

import (
	"fmt"

	"github.com/cockroachdb/pebble"
)

// SlabStore persists raw slab snapshots keyed by the slab's own
// address, plus an append-only instruction log per slab.
type SlabStore struct {
	db *pebble.DB
}

// NewSlabStore opens (creating if absent) a Pebble database at path.
func NewSlabStore(path string) (*SlabStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble store: %w", err)
	}
	return &SlabStore{db: db}, nil
}

func (s *SlabStore) Close() error { return s.db.Close() }

// SaveSlab writes the full raw slab bytes as the latest snapshot for
// slabKey. Callers are expected to call this after every successfully
// applied instruction; the write is synced since a lost snapshot means
// replaying the whole WAL from scratch.
func (s *SlabStore) SaveSlab(slabKey [32]byte, data []byte) error {
	return s.db.Set(slabKeyBytes(slabKey), data, pebble.Sync)
}

// LoadSlab returns the latest snapshot for slabKey, or ok=false if
// none has ever been saved.
func (s *SlabStore) LoadSlab(slabKey [32]byte) (data []byte, ok bool, err error) {
	val, closer, err := s.db.Get(slabKeyBytes(slabKey))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load slab: %w", err)
	}
	defer closer.Close()
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

// AppendWAL records one applied-instruction entry at the next
// sequence number after the highest currently stored for slabKey.
// Entries are written with NoSync: the snapshot written by SaveSlab
// after a successful Process call is the durability boundary the
// store actually relies on, not any single WAL record.
func (s *SlabStore) AppendWAL(slabKey [32]byte, entry WALEntry) error {
	seq, err := s.nextSeq(slabKey)
	if err != nil {
		return err
	}
	entry.Seq = seq
	return s.db.Set(walKey(slabKey, seq), entry.encode(), pebble.NoSync)
}

func (s *SlabStore) nextSeq(slabKey [32]byte) (uint64, error) {
	prefix := walPrefix(slabKey)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	if !iter.Last() {
		return 0, nil
	}
	entry, err := decodeWALEntry(iter.Value())
	if err != nil {
		return 0, err
	}
	return entry.Seq + 1, nil
}

// LoadWAL returns every instruction-log entry recorded for slabKey, in
// ascending sequence order.
func (s *SlabStore) LoadWAL(slabKey [32]byte) ([]WALEntry, error) {
	prefix := walPrefix(slabKey)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var entries []WALEntry
	for iter.First(); iter.Valid(); iter.Next() {
		entry, err := decodeWALEntry(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("decode wal entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
