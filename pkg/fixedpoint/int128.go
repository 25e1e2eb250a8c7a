// Package fixedpoint implements the checked/saturating 128-bit signed
// arithmetic the risk engine and matcher ABI need, plus basis-point
// (per-10,000) and e6 (six-decimal) conversions.
//
// Go has no native int128, so Int128 is modeled the way wide-integer
// libraries model unsigned 256-bit values: two machine words with
// manual carry propagation, with uint256.Int as the 256-bit scratch
// space wherever a full product is needed for an exact overflow check.
package fixedpoint

import (
	"encoding/binary"
	"math/bits"

	"github.com/holiman/uint256"
)

// Int128 is a signed 128-bit two's-complement integer: Hi holds the
// sign-extended high 64 bits, Lo the low 64 bits.
type Int128 struct {
	Hi int64
	Lo uint64
}

// Uint128 is an unsigned 128-bit magnitude, used as the result of
// SignedAbs (which must represent 2^127, one past the signed range).
type Uint128 struct {
	Hi uint64
	Lo uint64
}

// MinInt128 is the most negative Int128 (-2^127).
var MinInt128 = Int128{Hi: -9223372036854775808, Lo: 0}

// MaxInt128 is the most positive Int128 (2^127 - 1).
var MaxInt128 = Int128{Hi: 9223372036854775807, Lo: 0xFFFFFFFFFFFFFFFF}

// Zero is the additive identity.
var Zero = Int128{}

// FromInt64 widens an int64 into an Int128.
func FromInt64(v int64) Int128 {
	if v < 0 {
		return Int128{Hi: -1, Lo: uint64(v)}
	}
	return Int128{Hi: 0, Lo: uint64(v)}
}

// Int128FromBytes decodes a 16-byte little-endian two's-complement
// value, the wire layout of position_size and exec_size.
func Int128FromBytes(b []byte) Int128 {
	_ = b[15]
	lo := binary.LittleEndian.Uint64(b[0:8])
	hi := binary.LittleEndian.Uint64(b[8:16])
	return Int128{Hi: int64(hi), Lo: lo}
}

// Bytes encodes v as 16 little-endian two's-complement bytes.
func (v Int128) Bytes() [16]byte {
	var out [16]byte
	binary.LittleEndian.PutUint64(out[0:8], v.Lo)
	binary.LittleEndian.PutUint64(out[8:16], uint64(v.Hi))
	return out
}

// IsZero reports whether v is exactly zero.
func (v Int128) IsZero() bool { return v.Hi == 0 && v.Lo == 0 }

// Sign returns -1, 0, or 1.
func (v Int128) Sign() int {
	if v.Hi < 0 {
		return -1
	}
	if v.Hi == 0 && v.Lo == 0 {
		return 0
	}
	return 1
}

// SameSign reports whether a and b have equal signum; zero is its own
// sign class.
func SameSign(a, b Int128) bool {
	return a.Sign() == b.Sign()
}

// Cmp returns -1, 0, 1 for v<w, v==w, v>w.
func (v Int128) Cmp(w Int128) int {
	if v.Hi != w.Hi {
		if v.Hi < w.Hi {
			return -1
		}
		return 1
	}
	if v.Lo != w.Lo {
		if v.Lo < w.Lo {
			return -1
		}
		return 1
	}
	return 0
}

// Add returns v+w and whether the result did not overflow the signed
// 128-bit range.
func (v Int128) Add(w Int128) (Int128, bool) {
	lo, carry := bits.Add64(v.Lo, w.Lo, 0)
	hi, _ := bits.Add64(uint64(v.Hi), uint64(w.Hi), carry)
	r := Int128{Hi: int64(hi), Lo: lo}

	// Overflow iff operands share a sign and the result's sign differs.
	if v.Sign() != 0 && w.Sign() != 0 && v.Hi>>63 == w.Hi>>63 && r.Hi>>63 != v.Hi>>63 {
		return r, false
	}
	return r, true
}

// Sub returns v-w and whether the result did not overflow.
func (v Int128) Sub(w Int128) (Int128, bool) {
	lo, borrow := bits.Sub64(v.Lo, w.Lo, 0)
	hi, _ := bits.Sub64(uint64(v.Hi), uint64(w.Hi), borrow)
	r := Int128{Hi: int64(hi), Lo: lo}

	// Overflow iff operand signs differ and the result's sign differs
	// from v's.
	if v.Hi>>63 != w.Hi>>63 && r.Hi>>63 != v.Hi>>63 {
		return r, false
	}
	return r, true
}

// Neg returns -v and whether that negation did not overflow (false only
// for MinInt128, whose negation does not fit in signed 128 bits).
func (v Int128) Neg() (Int128, bool) {
	if v == MinInt128 {
		return MinInt128, false
	}
	lo, borrow := bits.Sub64(0, v.Lo, 0)
	hi, _ := bits.Sub64(0, uint64(v.Hi), borrow)
	return Int128{Hi: int64(hi), Lo: lo}, true
}

// SignedAbs is a total saturating absolute value: it never panics, and
// for MinInt128 returns the magnitude 2^127 (one past the signed
// range), represented exactly as a Uint128.
func (v Int128) SignedAbs() Uint128 {
	if v.Hi >= 0 {
		return Uint128{Hi: uint64(v.Hi), Lo: v.Lo}
	}
	if v == MinInt128 {
		return Uint128{Hi: 1 << 63, Lo: 0}
	}
	neg, _ := v.Neg()
	return Uint128{Hi: uint64(neg.Hi), Lo: neg.Lo}
}

// Uint128FromBytes decodes a 16-byte little-endian unsigned magnitude.
func Uint128FromBytes(b []byte) Uint128 {
	_ = b[15]
	lo := binary.LittleEndian.Uint64(b[0:8])
	hi := binary.LittleEndian.Uint64(b[8:16])
	return Uint128{Hi: hi, Lo: lo}
}

// Bytes encodes v as 16 little-endian bytes.
func (v Uint128) Bytes() [16]byte {
	var out [16]byte
	binary.LittleEndian.PutUint64(out[0:8], v.Lo)
	binary.LittleEndian.PutUint64(out[8:16], v.Hi)
	return out
}

// FromUint64 widens a uint64 into a Uint128.
func FromUint64(v uint64) Uint128 { return Uint128{Lo: v} }

// IsZero reports whether v is exactly zero.
func (v Uint128) IsZero() bool { return v.Hi == 0 && v.Lo == 0 }

// Add returns v+w and whether the sum did not overflow 128 bits.
func (v Uint128) Add(w Uint128) (Uint128, bool) {
	lo, carry := bits.Add64(v.Lo, w.Lo, 0)
	hi, carry2 := bits.Add64(v.Hi, w.Hi, carry)
	return Uint128{Hi: hi, Lo: lo}, carry2 == 0
}

// Sub returns v-w and whether the difference did not underflow.
func (v Uint128) Sub(w Uint128) (Uint128, bool) {
	lo, borrow := bits.Sub64(v.Lo, w.Lo, 0)
	hi, borrow2 := bits.Sub64(v.Hi, w.Hi, borrow)
	return Uint128{Hi: hi, Lo: lo}, borrow2 == 0
}

// ToInt128 reinterprets a magnitude as a signed Int128, true iff it
// fits (i.e. is <= MaxInt128's magnitude).
func (v Uint128) ToInt128() (Int128, bool) {
	if v.Hi>>63 != 0 {
		return Zero, false
	}
	return Int128{Hi: int64(v.Hi), Lo: v.Lo}, true
}

// Cmp compares two magnitudes.
func (v Uint128) Cmp(w Uint128) int {
	if v.Hi != w.Hi {
		if v.Hi < w.Hi {
			return -1
		}
		return 1
	}
	if v.Lo != w.Lo {
		if v.Lo < w.Lo {
			return -1
		}
		return 1
	}
	return 0
}

func (v Uint128) toUint256() *uint256.Int {
	return uint256.NewInt(0).SetBytes(append(beBytes(v.Hi), beBytes(v.Lo)...))
}

// String renders v in decimal, the way uint256.Int does.
func (v Uint128) String() string { return v.toUint256().Dec() }

// String renders v in decimal, negating the magnitude for negative
// values the way Sign/SignedAbs already reason about sign separately
// from magnitude.
func (v Int128) String() string {
	abs := v.SignedAbs()
	if v.Sign() < 0 {
		return "-" + abs.String()
	}
	return abs.String()
}

func uint128FromUint256(x *uint256.Int) Uint128 {
	words := x.Bytes32()
	lo := binary.BigEndian.Uint64(words[24:32])
	hi := binary.BigEndian.Uint64(words[16:24])
	return Uint128{Hi: hi, Lo: lo}
}

// Mul returns v*w and whether the product fits back into 128 bits. Like
// Int128.Mul, the multiply itself runs in a 256-bit uint256 scratch so
// the overflow check is exact.
func (v Uint128) Mul(w Uint128) (Uint128, bool) {
	product := uint256.NewInt(0).Mul(v.toUint256(), w.toUint256())
	limit := uint256.NewInt(0).Lsh(uint256.NewInt(1), 128)
	if product.Cmp(limit) >= 0 {
		return Uint128{}, false
	}
	return uint128FromUint256(product), true
}

// DivUint64 divides v by a positive divisor, truncating toward zero,
// and reports whether the division was well-formed (divisor != 0).
func (v Uint128) DivUint64(divisor uint64) (Uint128, bool) {
	if divisor == 0 {
		return Uint128{}, false
	}
	q := uint256.NewInt(0).Div(v.toUint256(), uint256.NewInt(divisor))
	return uint128FromUint256(q), true
}

// Div divides v by w, truncating toward zero, and reports whether the
// division was well-formed (w != 0) — the general case DivUint64 can't
// cover when the divisor itself doesn't fit a uint64 (e.g. dividing a
// weighted-average numerator by a position magnitude near 2^127).
func (v Uint128) Div(w Uint128) (Uint128, bool) {
	if w.IsZero() {
		return Uint128{}, false
	}
	q := uint256.NewInt(0).Div(v.toUint256(), w.toUint256())
	return uint128FromUint256(q), true
}

// MulDivUint64 computes v*numerator/denominator without an intermediate
// overflow, the 128-bit analogue of the e6/bps scaling MulBps does for
// Int128 — used for margin-requirement and fee math where the
// intermediate product would otherwise exceed 128 bits.
func (v Uint128) MulDivUint64(numerator, denominator uint64) (Uint128, bool) {
	if denominator == 0 {
		return Uint128{}, false
	}
	product := uint256.NewInt(0).Mul(v.toUint256(), uint256.NewInt(numerator))
	q := uint256.NewInt(0).Div(product, uint256.NewInt(denominator))
	limit128 := uint256.NewInt(0).Lsh(uint256.NewInt(1), 128)
	if q.Cmp(limit128) >= 0 {
		return Uint128{}, false
	}
	return uint128FromUint256(q), true
}

func beBytes(x uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], x)
	return b[:]
}

// Mul returns v*w as a full 128-bit signed product and whether it fits
// back into signed 128 bits. The magnitude multiply is carried out in a
// 256-bit uint256.Int intermediate so the overflow check is exact
// rather than inferred from word-level carries.
func (v Int128) Mul(w Int128) (Int128, bool) {
	if v.IsZero() || w.IsZero() {
		return Zero, true
	}
	negative := v.Sign() != w.Sign()
	magV := v.SignedAbs().toUint256()
	magW := w.SignedAbs().toUint256()
	product := uint256.NewInt(0).Mul(magV, magW)

	// Bound: magnitude must fit in 128 bits, and if negative, may equal
	// 2^127 (i.e. MinInt128); if positive, must be < 2^127.
	limit := uint256.NewInt(1)
	limit.Lsh(limit, 127)
	if negative {
		if product.Gt(limit) {
			return Zero, false
		}
	} else {
		if product.Cmp(limit) >= 0 {
			return Zero, false
		}
	}

	words := product.Bytes32()
	lo := binary.BigEndian.Uint64(words[24:32])
	hiWord := binary.BigEndian.Uint64(words[16:24])
	mag := Uint128{Hi: hiWord, Lo: lo}
	if negative {
		r := Int128{Hi: int64(mag.Hi), Lo: mag.Lo}
		r, _ = r.Neg()
		if r == MinInt128 {
			// mag == 2^127 exactly: MinInt128 via Neg special-cases to
			// itself, which is the correct bit pattern.
			return MinInt128, true
		}
		return r, true
	}
	return Int128{Hi: int64(mag.Hi), Lo: mag.Lo}, true
}

// MulBps computes x * bpsNumerator / 10_000, truncating toward zero on
// the division, matching the integer basis-point math used throughout
// the risk engine (e.g. |position| × mark_price × bps / 10_000).
func MulBps(x Int128, bpsNumerator int64) (Int128, bool) {
	product, ok := x.Mul(FromInt64(bpsNumerator))
	if !ok {
		return Zero, false
	}
	return product.DivInt64(10_000)
}

// DivInt64 divides v by a positive int64 divisor, truncating toward
// zero, and reports whether the division was well-formed (divisor != 0).
func (v Int128) DivInt64(divisor int64) (Int128, bool) {
	if divisor == 0 {
		return Zero, false
	}
	neg := (v.Sign() < 0) != (divisor < 0)
	mag := v.SignedAbs().toUint256()
	d := uint256.NewInt(0).SetUint64(absInt64(divisor))
	q := uint256.NewInt(0).Div(mag, d)
	words := q.Bytes32()
	lo := binary.BigEndian.Uint64(words[24:32])
	hi := binary.BigEndian.Uint64(words[16:24])
	r := Int128{Hi: int64(hi), Lo: lo}
	if neg {
		r, _ = r.Neg()
	}
	return r, true
}

func absInt64(x int64) uint64 {
	if x < 0 {
		return uint64(-x)
	}
	return uint64(x)
}
