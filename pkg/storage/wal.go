package storage

import (
	"encoding/binary"
	"fmt"
)

// WALEntry is one record of the per-slab instruction log: enough to
// replay or audit what was applied, independent of the snapshot.
type WALEntry struct {
	Seq  uint64 // assigned by AppendWAL, ignored on input
	Slot uint64
	Tag  byte
	Data []byte // raw instruction bytes, tag included
	Err  string // empty on success
}

func (e WALEntry) encode() []byte {
	out := make([]byte, 0, 8+8+1+4+len(e.Data)+2+len(e.Err))
	var buf8 [8]byte

	binary.LittleEndian.PutUint64(buf8[:], e.Seq)
	out = append(out, buf8[:]...)
	binary.LittleEndian.PutUint64(buf8[:], e.Slot)
	out = append(out, buf8[:]...)
	out = append(out, e.Tag)

	var buf4 [4]byte
	binary.LittleEndian.PutUint32(buf4[:], uint32(len(e.Data)))
	out = append(out, buf4[:]...)
	out = append(out, e.Data...)

	var buf2 [2]byte
	binary.LittleEndian.PutUint16(buf2[:], uint16(len(e.Err)))
	out = append(out, buf2[:]...)
	out = append(out, e.Err...)
	return out
}

func decodeWALEntry(b []byte) (WALEntry, error) {
	var e WALEntry
	if len(b) < 21 {
		return e, fmt.Errorf("wal entry too short: %d bytes", len(b))
	}
	e.Seq = binary.LittleEndian.Uint64(b[0:8])
	e.Slot = binary.LittleEndian.Uint64(b[8:16])
	e.Tag = b[16]
	dataLen := binary.LittleEndian.Uint32(b[17:21])
	b = b[21:]
	if uint32(len(b)) < dataLen {
		return e, fmt.Errorf("wal entry truncated data: want %d have %d", dataLen, len(b))
	}
	e.Data = append([]byte(nil), b[:dataLen]...)
	b = b[dataLen:]
	if len(b) < 2 {
		return e, fmt.Errorf("wal entry missing err length")
	}
	errLen := binary.LittleEndian.Uint16(b[0:2])
	b = b[2:]
	if uint16(len(b)) < errLen {
		return e, fmt.Errorf("wal entry truncated err: want %d have %d", errLen, len(b))
	}
	e.Err = string(b[:errLen])
	return e, nil
}
