// Package slab implements the bit-exact, zero-copy byte layout of a
// Percolator market: header, config, risk parameters, risk engine
// state, used-bitmap, and account table, all packed into one
// fixed-size []byte. Every accessor here is a view over a slice of the
// same backing array; nothing is copied in or out except at the leaf
// field level.
package slab

import "github.com/percolator-labs/percolator/pkg/percoerr"

// Magic and Version identify a formatted slab.
const (
	Magic   uint64 = 0x504552434f4c4154 // "PERCOLAT"
	Version uint32 = 1
)

// MaxAccounts bounds the fixed-capacity account table. The
// runtime-configured max_accounts ceiling must never exceed this
// compile-time bound.
const MaxAccounts = 256

// Byte sizes of each top-level region, computed from the field layout
// documented in header.go / config.go / riskparams.go / enginestate.go
// / account.go — never hand-adjusted independently of those files.
const (
	HeaderLen       = 64
	MarketConfigLen = 176
	RiskParamsLen   = 144
	EngineStateLen  = 112
	BitmapLen       = MaxAccounts / 8
	AccountLen      = 176
	AccountTableLen = MaxAccounts * AccountLen
)

// Offsets of each region within the slab, in layout order.
const (
	OffHeader       = 0
	OffMarketConfig = OffHeader + HeaderLen
	OffRiskParams   = OffMarketConfig + MarketConfigLen
	OffEngineState  = OffRiskParams + RiskParamsLen
	OffBitmap       = OffEngineState + EngineStateLen
	OffAccountTable = OffBitmap + BitmapLen

	// Len is the total fixed size of a Percolator slab (SLAB_LEN).
	Len = OffAccountTable + AccountTableLen
)

// AccountKind distinguishes a margin-trading user from a liquidity
// provider bound to a matcher program.
type AccountKind uint8

const (
	KindUser AccountKind = 1
	KindLP   AccountKind = 2
)

func (k AccountKind) Valid() bool { return k == KindUser || k == KindLP }

func (k AccountKind) String() string {
	switch k {
	case KindUser:
		return "User"
	case KindLP:
		return "LP"
	default:
		return "Invalid"
	}
}

// View is a zero-copy accessor over a slab's backing bytes. All of its
// sub-accessors (Header, Config, RiskParams, Engine, Bitmap, Account)
// alias the same underlying array.
type View struct {
	buf []byte
}

// Open validates buf as a well-formed, already-initialized slab and
// returns a View over it. It never copies buf.
func Open(buf []byte) (*View, error) {
	if len(buf) < Len {
		return nil, percoerr.New(percoerr.InvalidLayout, "buffer too small for slab layout")
	}
	v := &View{buf: buf[:Len]}
	h := v.Header()
	if h.Magic() != Magic {
		return nil, percoerr.New(percoerr.InvalidMagic, "magic mismatch")
	}
	if h.Version() != Version {
		return nil, percoerr.New(percoerr.InvalidVersion, "version mismatch")
	}
	return v, nil
}

// Init formats buf as a brand-new slab by writing the magic and
// version only; the InitMarket instruction fills in config and risk
// parameters afterwards. buf must already be exactly Len bytes,
// typically a freshly allocated, zeroed account.
func Init(buf []byte) (*View, error) {
	if len(buf) != Len {
		return nil, percoerr.New(percoerr.InvalidLayout, "buffer must be exactly slab.Len bytes")
	}
	v := &View{buf: buf}
	h := v.Header()
	if h.Magic() != 0 {
		return nil, percoerr.New(percoerr.AlreadyInitialized, "slab already formatted")
	}
	h.setMagic(Magic)
	h.setVersion(Version)
	return v, nil
}

// Bytes returns the full backing slice (for persistence layers only;
// callers must not use it to bypass the typed accessors).
func (v *View) Bytes() []byte { return v.buf }

func (v *View) region(off, length int) []byte { return v.buf[off : off+length] }
