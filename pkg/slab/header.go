package slab

import "encoding/binary"

// Header layout (64 bytes):
//
//	magic      u64   [0:8]
//	version    u32   [8:12]
//	bump       u8    [12]
//	_padding   [3]byte
//	admin      [32]byte
//	_reserved  [16]byte
type Header struct{ b []byte }

func (v *View) Header() Header { return Header{b: v.region(OffHeader, HeaderLen)} }

func (h Header) Magic() uint64   { return binary.LittleEndian.Uint64(h.b[0:8]) }
func (h Header) setMagic(m uint64) { binary.LittleEndian.PutUint64(h.b[0:8], m) }

func (h Header) Version() uint32   { return binary.LittleEndian.Uint32(h.b[8:12]) }
func (h Header) setVersion(v uint32) { binary.LittleEndian.PutUint32(h.b[8:12], v) }

func (h Header) Bump() uint8     { return h.b[12] }
func (h Header) SetBump(b uint8) { h.b[12] = b }

// Admin returns the admin key. All-zeros means the admin has been
// permanently burned: no admin instruction may ever succeed again.
func (h Header) Admin() [32]byte {
	var out [32]byte
	copy(out[:], h.b[16:48])
	return out
}

func (h Header) SetAdmin(admin [32]byte) { copy(h.b[16:48], admin[:]) }

// AdminBurned reports whether the admin key is the all-zero sentinel.
// Burn status must always be checked against this explicit sentinel,
// never by an "is present" style check.
func (h Header) AdminBurned() bool {
	a := h.Admin()
	return a == [32]byte{}
}
