package storage

import (
	"encoding/binary"
	"encoding/hex"
)

// Key schema for Pebble storage. Two families, disjoint prefixes so a
// range scan of one never crosses into the other:
//
//	slab:<slab_key>             → latest raw slab snapshot
//	wal:<slab_key>:<seq, 8B BE> → one applied-instruction record
const (
	prefixSlab = "slab:"
	prefixWAL  = "wal:"
)

func slabKeyBytes(slabKey [32]byte) []byte {
	return []byte(prefixSlab + hex.EncodeToString(slabKey[:]))
}

func walKey(slabKey [32]byte, seq uint64) []byte {
	k := []byte(prefixWAL + hex.EncodeToString(slabKey[:]) + ":")
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)
	return append(k, seqBuf[:]...)
}

func walPrefix(slabKey [32]byte) []byte {
	return []byte(prefixWAL + hex.EncodeToString(slabKey[:]) + ":")
}

func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
