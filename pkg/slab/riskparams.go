package slab

import (
	"encoding/binary"

	"github.com/percolator-labs/percolator/pkg/fixedpoint"
)

// RiskParams is the in-slab copy of the wire RiskParams structure,
// stored field-for-field in the same order it is decoded off the wire
// so InitMarket can memcpy it directly.
//
//	warmup_period_slots        u64
//	maintenance_margin_bps     u64
//	initial_margin_bps         u64
//	trading_fee_bps            u64
//	max_accounts               u64
//	new_account_fee            u128
//	risk_reduction_threshold   u128
//	maintenance_fee_per_slot   u128
//	max_crank_staleness_slots  u64
//	liquidation_fee_bps        u64
//	liquidation_fee_cap        u128
//	liquidation_buffer_bps     u64
//	min_liquidation_abs        u128
type RiskParams struct{ b []byte }

func (v *View) RiskParams() RiskParams { return RiskParams{b: v.region(OffRiskParams, RiskParamsLen)} }

const (
	rpWarmupPeriodSlots       = 0
	rpMaintenanceMarginBps    = 8
	rpInitialMarginBps        = 16
	rpTradingFeeBps           = 24
	rpMaxAccounts             = 32
	rpNewAccountFee           = 40
	rpRiskReductionThreshold  = 56
	rpMaintenanceFeePerSlot   = 72
	rpMaxCrankStalenessSlots  = 88
	rpLiquidationFeeBps       = 96
	rpLiquidationFeeCap       = 104
	rpLiquidationBufferBps    = 120
	rpMinLiquidationAbs       = 128
)

func (r RiskParams) u64(off int) uint64        { return binary.LittleEndian.Uint64(r.b[off : off+8]) }
func (r RiskParams) setU64(off int, v uint64)  { binary.LittleEndian.PutUint64(r.b[off:off+8], v) }
func (r RiskParams) u128(off int) fixedpoint.Uint128 {
	return fixedpoint.Uint128FromBytes(r.b[off : off+16])
}
func (r RiskParams) setU128(off int, v fixedpoint.Uint128) {
	b := v.Bytes()
	copy(r.b[off:off+16], b[:])
}

func (r RiskParams) WarmupPeriodSlots() uint64       { return r.u64(rpWarmupPeriodSlots) }
func (r RiskParams) SetWarmupPeriodSlots(v uint64)   { r.setU64(rpWarmupPeriodSlots, v) }
func (r RiskParams) MaintenanceMarginBps() uint64     { return r.u64(rpMaintenanceMarginBps) }
func (r RiskParams) SetMaintenanceMarginBps(v uint64) { r.setU64(rpMaintenanceMarginBps, v) }
func (r RiskParams) InitialMarginBps() uint64         { return r.u64(rpInitialMarginBps) }
func (r RiskParams) SetInitialMarginBps(v uint64)     { r.setU64(rpInitialMarginBps, v) }
func (r RiskParams) TradingFeeBps() uint64            { return r.u64(rpTradingFeeBps) }
func (r RiskParams) SetTradingFeeBps(v uint64)        { r.setU64(rpTradingFeeBps, v) }
func (r RiskParams) MaxAccounts() uint64              { return r.u64(rpMaxAccounts) }
func (r RiskParams) SetMaxAccounts(v uint64)          { r.setU64(rpMaxAccounts, v) }
func (r RiskParams) NewAccountFee() fixedpoint.Uint128 { return r.u128(rpNewAccountFee) }
func (r RiskParams) SetNewAccountFee(v fixedpoint.Uint128) { r.setU128(rpNewAccountFee, v) }
func (r RiskParams) RiskReductionThreshold() fixedpoint.Uint128 {
	return r.u128(rpRiskReductionThreshold)
}
func (r RiskParams) SetRiskReductionThreshold(v fixedpoint.Uint128) {
	r.setU128(rpRiskReductionThreshold, v)
}
func (r RiskParams) MaintenanceFeePerSlot() fixedpoint.Uint128 {
	return r.u128(rpMaintenanceFeePerSlot)
}
func (r RiskParams) SetMaintenanceFeePerSlot(v fixedpoint.Uint128) {
	r.setU128(rpMaintenanceFeePerSlot, v)
}
func (r RiskParams) MaxCrankStalenessSlots() uint64     { return r.u64(rpMaxCrankStalenessSlots) }
func (r RiskParams) SetMaxCrankStalenessSlots(v uint64) { r.setU64(rpMaxCrankStalenessSlots, v) }
func (r RiskParams) LiquidationFeeBps() uint64          { return r.u64(rpLiquidationFeeBps) }
func (r RiskParams) SetLiquidationFeeBps(v uint64)      { r.setU64(rpLiquidationFeeBps, v) }
func (r RiskParams) LiquidationFeeCap() fixedpoint.Uint128 { return r.u128(rpLiquidationFeeCap) }
func (r RiskParams) SetLiquidationFeeCap(v fixedpoint.Uint128) {
	r.setU128(rpLiquidationFeeCap, v)
}
func (r RiskParams) LiquidationBufferBps() uint64     { return r.u64(rpLiquidationBufferBps) }
func (r RiskParams) SetLiquidationBufferBps(v uint64) { r.setU64(rpLiquidationBufferBps, v) }
func (r RiskParams) MinLiquidationAbs() fixedpoint.Uint128 { return r.u128(rpMinLiquidationAbs) }
func (r RiskParams) SetMinLiquidationAbs(v fixedpoint.Uint128) {
	r.setU128(rpMinLiquidationAbs, v)
}

// RiskReductionGateActive reports whether risk_reduction_threshold > 0
// and the current insurance fund balance has fallen to or below it.
func (r RiskParams) RiskReductionGateActive(insuranceFund fixedpoint.Uint128) bool {
	threshold := r.RiskReductionThreshold()
	if threshold.IsZero() {
		return false
	}
	return insuranceFund.Cmp(threshold) <= 0
}
