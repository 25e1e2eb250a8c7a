// Package matcher implements the delegated-match return-record layout
// and validator: a fixed 64-byte, little-endian record a matcher
// program writes back into its context account, re-parsed from raw
// bytes (never trusted as an in-process typed handle) and checked
// bit-exactly before any position update is applied.
package matcher

import (
	"encoding/binary"

	"github.com/percolator-labs/percolator/pkg/fixedpoint"
)

// ABIVersion is the only accepted matcher return-record version.
const ABIVersion uint32 = 1

// Flags bitset.
const (
	FlagValid     uint32 = 1
	FlagPartialOK uint32 = 2
	FlagRejected  uint32 = 4
)

// ReturnRecordLen is the fixed wire size of ReturnRecord.
const ReturnRecordLen = 64

// ReturnRecord is the matcher's 64-byte return record:
//
//	abi_version      u32
//	flags            u32
//	exec_price_e6    u64
//	exec_size        i128
//	req_id           u64
//	lp_account_id    u64
//	oracle_price_e6  u64
//	reserved         u64
type ReturnRecord struct {
	ABIVersion    uint32
	Flags         uint32
	ExecPriceE6   uint64
	ExecSize      fixedpoint.Int128
	ReqID         uint64
	LPAccountID   uint64
	OraclePriceE6 uint64
	Reserved      uint64
}

// ParseReturnRecord decodes a ReturnRecord from the first
// ReturnRecordLen bytes of buf. Callers must always re-parse from the
// raw matcher-context bytes after a cross-program call, never carry
// forward a pre-call typed value.
func ParseReturnRecord(buf []byte) ReturnRecord {
	_ = buf[ReturnRecordLen-1]
	return ReturnRecord{
		ABIVersion:    binary.LittleEndian.Uint32(buf[0:4]),
		Flags:         binary.LittleEndian.Uint32(buf[4:8]),
		ExecPriceE6:   binary.LittleEndian.Uint64(buf[8:16]),
		ExecSize:      fixedpoint.Int128FromBytes(buf[16:32]),
		ReqID:         binary.LittleEndian.Uint64(buf[32:40]),
		LPAccountID:   binary.LittleEndian.Uint64(buf[40:48]),
		OraclePriceE6: binary.LittleEndian.Uint64(buf[48:56]),
		Reserved:      binary.LittleEndian.Uint64(buf[56:64]),
	}
}

// Bytes encodes r into a 64-byte wire record (used by the fake matcher
// in tests, and by a real matcher implementation writing its response).
func (r ReturnRecord) Bytes() [ReturnRecordLen]byte {
	var out [ReturnRecordLen]byte
	binary.LittleEndian.PutUint32(out[0:4], r.ABIVersion)
	binary.LittleEndian.PutUint32(out[4:8], r.Flags)
	binary.LittleEndian.PutUint64(out[8:16], r.ExecPriceE6)
	sz := r.ExecSize.Bytes()
	copy(out[16:32], sz[:])
	binary.LittleEndian.PutUint64(out[32:40], r.ReqID)
	binary.LittleEndian.PutUint64(out[40:48], r.LPAccountID)
	binary.LittleEndian.PutUint64(out[48:56], r.OraclePriceE6)
	binary.LittleEndian.PutUint64(out[56:64], r.Reserved)
	return out
}

func (f uint32Flags) has(flag uint32) bool { return uint32(f)&flag != 0 }

type uint32Flags uint32

// AbiOk validates a matcher's return record bit-exactly: version,
// flags, reserved field, non-zero execution price, echo of every
// request-identifying field, and an exec_size bounded by the request
// under saturating absolute value.
func AbiOk(ret ReturnRecord, lpAccountID uint64, oraclePriceE6 uint64, reqSize fixedpoint.Int128, reqID uint64) bool {
	flags := uint32Flags(ret.Flags)

	if ret.ABIVersion != ABIVersion {
		return false
	}
	if !flags.has(FlagValid) || flags.has(FlagRejected) {
		return false
	}
	if ret.Reserved != 0 {
		return false
	}
	if ret.ExecPriceE6 == 0 {
		return false
	}
	// Every request-identifying field must echo back exactly.
	if ret.ReqID != reqID || ret.LPAccountID != lpAccountID || ret.OraclePriceE6 != oraclePriceE6 {
		return false
	}
	// A zero fill is only acceptable when explicitly flagged partial.
	if ret.ExecSize.IsZero() {
		return flags.has(FlagPartialOK)
	}
	if !fixedpoint.SameSign(ret.ExecSize, reqSize) {
		return false
	}
	execAbs := ret.ExecSize.SignedAbs()
	reqAbs := reqSize.SignedAbs()
	if execAbs.Cmp(reqAbs) > 0 {
		return false
	}
	return true
}
