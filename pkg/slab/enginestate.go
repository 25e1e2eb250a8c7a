package slab

import (
	"encoding/binary"

	"github.com/percolator-labs/percolator/pkg/fixedpoint"
)

// EngineState is the mutable risk-engine state region (112 bytes):
//
//	insurance_fund           u128
//	oracle_price_e6          u64
//	oracle_timestamp         i64   (slot/time units the oracle was last pushed at)
//	last_crank_slot          u64
//	total_notional_volume    u128  (global aggregate counter)
//	total_trade_count        u64   (global aggregate counter)
//	total_liquidation_count  u64   (global aggregate counter)
//	lp_sum_abs               u128  (per-LP risk summary: Σ|position|)
//	lp_max_abs               u128  (per-LP risk summary: max |position|)
//	_reserved                [8]byte
type EngineState struct{ b []byte }

func (v *View) Engine() EngineState { return EngineState{b: v.region(OffEngineState, EngineStateLen)} }

const (
	esInsuranceFund          = 0
	esOraclePriceE6          = 16
	esOracleTimestamp        = 24
	esLastCrankSlot          = 32
	esTotalNotionalVolume    = 40
	esTotalTradeCount        = 56
	esTotalLiquidationCount  = 64
	esLPSumAbs               = 72
	esLPMaxAbs               = 88
)

func (e EngineState) u64(off int) uint64       { return binary.LittleEndian.Uint64(e.b[off : off+8]) }
func (e EngineState) setU64(off int, v uint64) { binary.LittleEndian.PutUint64(e.b[off:off+8], v) }
func (e EngineState) u128(off int) fixedpoint.Uint128 {
	return fixedpoint.Uint128FromBytes(e.b[off : off+16])
}
func (e EngineState) setU128(off int, v fixedpoint.Uint128) {
	b := v.Bytes()
	copy(e.b[off:off+16], b[:])
}

func (e EngineState) InsuranceFund() fixedpoint.Uint128     { return e.u128(esInsuranceFund) }
func (e EngineState) SetInsuranceFund(v fixedpoint.Uint128) { e.setU128(esInsuranceFund, v) }

func (e EngineState) OraclePriceE6() uint64     { return e.u64(esOraclePriceE6) }
func (e EngineState) SetOraclePriceE6(v uint64) { e.setU64(esOraclePriceE6, v) }

func (e EngineState) OracleTimestamp() int64 {
	return int64(e.u64(esOracleTimestamp))
}
func (e EngineState) SetOracleTimestamp(v int64) { e.setU64(esOracleTimestamp, uint64(v)) }

func (e EngineState) LastCrankSlot() uint64     { return e.u64(esLastCrankSlot) }
func (e EngineState) SetLastCrankSlot(v uint64) { e.setU64(esLastCrankSlot, v) }

func (e EngineState) TotalNotionalVolume() fixedpoint.Uint128 { return e.u128(esTotalNotionalVolume) }
func (e EngineState) SetTotalNotionalVolume(v fixedpoint.Uint128) {
	e.setU128(esTotalNotionalVolume, v)
}

func (e EngineState) TotalTradeCount() uint64     { return e.u64(esTotalTradeCount) }
func (e EngineState) SetTotalTradeCount(v uint64) { e.setU64(esTotalTradeCount, v) }

func (e EngineState) TotalLiquidationCount() uint64     { return e.u64(esTotalLiquidationCount) }
func (e EngineState) SetTotalLiquidationCount(v uint64) { e.setU64(esTotalLiquidationCount, v) }

// LPSumAbs and LPMaxAbs are the O(1)-maintained LP risk aggregate.
// LPMaxAbs is only a conservative over-estimate between cranks; Crank
// recomputes both exactly.
func (e EngineState) LPSumAbs() fixedpoint.Uint128     { return e.u128(esLPSumAbs) }
func (e EngineState) SetLPSumAbs(v fixedpoint.Uint128) { e.setU128(esLPSumAbs, v) }
func (e EngineState) LPMaxAbs() fixedpoint.Uint128     { return e.u128(esLPMaxAbs) }
func (e EngineState) SetLPMaxAbs(v fixedpoint.Uint128) { e.setU128(esLPMaxAbs, v) }

// RiskMetric computes R = max_abs + sum_abs / 8, the scalar risk
// metric the insurance gate measures trades against.
func (e EngineState) RiskMetric() fixedpoint.Uint128 {
	eighth, _ := e.LPSumAbs().DivUint64(8)
	sum, _ := e.LPMaxAbs().Add(eighth)
	return sum
}
