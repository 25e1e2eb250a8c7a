package slab

import (
	"encoding/binary"

	"github.com/percolator-labs/percolator/pkg/fixedpoint"
)

// AccountRecord layout (176 bytes), meaningful iff the corresponding
// bitmap bit is set:
//
//	owner                    [32]byte
//	kind                     u8
//	_padding                 [7]byte
//	collateral_balance       u64    (unsigned)
//	position_size            i128
//	avg_entry_price_e6       u64
//	realized_pnl             i128
//	last_funding_update_slot u64
//	matcher_program          [32]byte  (LP only)
//	matcher_ctx              [32]byte  (LP only)
//	nonce                    u64       (LP only)
//	_reserved                [8]byte
type AccountRecord struct{ b []byte }

// Account returns the accessor for record idx. Callers must check
// Bitmap().Get(idx) before trusting its contents.
func (v *View) Account(idx uint16) AccountRecord {
	off := OffAccountTable + int(idx)*AccountLen
	return AccountRecord{b: v.region(off, AccountLen)}
}

const (
	acOwner                  = 0
	acKind                   = 32
	acCollateralBalance      = 40
	acPositionSize           = 48
	acAvgEntryPriceE6        = 64
	acRealizedPnl            = 72
	acLastFundingUpdateSlot  = 88
	acMatcherProgram         = 96
	acMatcherCtx             = 128
	acNonce                  = 160
)

func (a AccountRecord) Owner() [32]byte     { return read32(a.b, acOwner) }
func (a AccountRecord) SetOwner(k [32]byte) { write32(a.b, acOwner, k) }

func (a AccountRecord) Kind() AccountKind { return AccountKind(a.b[acKind]) }

// SetKindForInit writes the account kind. Kind is immutable after
// init; only accounttable.Add may call this, exactly once, on a
// freshly zeroed record.
func (a AccountRecord) SetKindForInit(k AccountKind) { a.b[acKind] = byte(k) }

func (a AccountRecord) CollateralBalance() uint64 {
	return binary.LittleEndian.Uint64(a.b[acCollateralBalance : acCollateralBalance+8])
}
func (a AccountRecord) SetCollateralBalance(v uint64) {
	binary.LittleEndian.PutUint64(a.b[acCollateralBalance:acCollateralBalance+8], v)
}

func (a AccountRecord) PositionSize() fixedpoint.Int128 {
	return fixedpoint.Int128FromBytes(a.b[acPositionSize : acPositionSize+16])
}
func (a AccountRecord) SetPositionSize(v fixedpoint.Int128) {
	b := v.Bytes()
	copy(a.b[acPositionSize:acPositionSize+16], b[:])
}

func (a AccountRecord) AvgEntryPriceE6() uint64 {
	return binary.LittleEndian.Uint64(a.b[acAvgEntryPriceE6 : acAvgEntryPriceE6+8])
}
func (a AccountRecord) SetAvgEntryPriceE6(v uint64) {
	binary.LittleEndian.PutUint64(a.b[acAvgEntryPriceE6:acAvgEntryPriceE6+8], v)
}

func (a AccountRecord) RealizedPnl() fixedpoint.Int128 {
	return fixedpoint.Int128FromBytes(a.b[acRealizedPnl : acRealizedPnl+16])
}
func (a AccountRecord) SetRealizedPnl(v fixedpoint.Int128) {
	b := v.Bytes()
	copy(a.b[acRealizedPnl:acRealizedPnl+16], b[:])
}

func (a AccountRecord) LastFundingUpdateSlot() uint64 {
	return binary.LittleEndian.Uint64(a.b[acLastFundingUpdateSlot : acLastFundingUpdateSlot+8])
}
func (a AccountRecord) SetLastFundingUpdateSlot(v uint64) {
	binary.LittleEndian.PutUint64(a.b[acLastFundingUpdateSlot:acLastFundingUpdateSlot+8], v)
}

// MatcherProgram / MatcherCtx / Nonce are meaningful only for LP
// records: the matcher identity a delegated-match trade is bound to,
// and the nonce it advances.
func (a AccountRecord) MatcherProgram() [32]byte     { return read32(a.b, acMatcherProgram) }
func (a AccountRecord) SetMatcherProgram(k [32]byte) { write32(a.b, acMatcherProgram, k) }

func (a AccountRecord) MatcherCtx() [32]byte     { return read32(a.b, acMatcherCtx) }
func (a AccountRecord) SetMatcherCtx(k [32]byte) { write32(a.b, acMatcherCtx, k) }

func (a AccountRecord) Nonce() uint64 { return binary.LittleEndian.Uint64(a.b[acNonce : acNonce+8]) }
func (a AccountRecord) SetNonce(v uint64) {
	binary.LittleEndian.PutUint64(a.b[acNonce:acNonce+8], v)
}

// Zero clears the record back to its zero value. Used only by
// accounttable.Remove (account destruction) and Add (formatting a
// freshly claimed slot).
func (a AccountRecord) Zero() {
	for i := range a.b {
		a.b[i] = 0
	}
}
