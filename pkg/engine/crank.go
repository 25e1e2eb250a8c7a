package engine

import (
	"github.com/percolator-labs/percolator/pkg/fixedpoint"
	"github.com/percolator-labs/percolator/pkg/percoerr"
	"github.com/percolator-labs/percolator/pkg/slab"
)

// SkippedAccount records an account the crank could not settle when
// allowPanic is false: the error is reported through this side
// channel, never by leaving the account in a partially-updated state.
type SkippedAccount struct {
	Index uint16
	Err   error
}

// Crank is the idempotent per-slot maintenance instruction: it
// accrues maintenance fees and funding settlement on every used
// account, recomputes the LP risk aggregate exactly, and advances
// last_crank_slot. It fails with CrankStale if the cached oracle price
// is older than max_crank_staleness_slots relative to currentSlot —
// the engine state's oracle_timestamp doubles as the "last push"
// reference for both the oracle read path and this check, since the
// wire protocol never threads a separate crank-push timestamp.
//
// When allowPanic is true, the first per-account arithmetic error
// aborts the whole crank (propagated, no partial application beyond
// accounts already settled this call is meaningful since each account's
// update is independent). When false, a failing account is recorded in
// the returned slice and the crank continues.
func Crank(v *slab.View, currentSlot uint64, fundingRate int64, allowPanic bool) ([]SkippedAccount, error) {
	eng := v.Engine()
	rp := v.RiskParams()

	if int64(currentSlot)-eng.OracleTimestamp() > int64(rp.MaxCrankStalenessSlots()) {
		return nil, percoerr.New(percoerr.CrankStale, "oracle price older than max_crank_staleness_slots")
	}

	elapsed := uint64(0)
	if last := eng.LastCrankSlot(); currentSlot > last {
		elapsed = currentSlot - last
	}

	var skipped []SkippedAccount
	bm := v.Bitmap()
	for i := uint16(0); i < slab.MaxAccounts; i++ {
		if !bm.Get(i) {
			continue
		}
		rec := v.Account(i)
		if rec.PositionSize().IsZero() {
			rec.SetLastFundingUpdateSlot(currentSlot)
			continue
		}
		if err := accrueAccount(v, rec, elapsed, fundingRate); err != nil {
			if allowPanic {
				return skipped, err
			}
			skipped = append(skipped, SkippedAccount{Index: i, Err: err})
			continue
		}
		rec.SetLastFundingUpdateSlot(currentSlot)
	}

	if err := ReconcileLPRiskAggregate(v); err != nil {
		return skipped, err
	}
	eng.SetLastCrankSlot(currentSlot)
	return skipped, nil
}

// accrueAccount charges maintenance_fee_per_slot × elapsed × |position|
// to the account's balance (credited to the insurance fund), and
// settles a funding payment of position × funding_rate × elapsed / 1e6
// against realized PnL, with the insurance fund absorbing the other
// side — the simplest conservation-preserving funding model the
// source's unimplemented SettleFunding stub leaves room for.
func accrueAccount(v *slab.View, rec slab.AccountRecord, elapsed uint64, fundingRate int64) error {
	rp := v.RiskParams()
	eng := v.Engine()

	posAbs := rec.PositionSize().SignedAbs()
	fee, ok := rp.MaintenanceFeePerSlot().Mul(fixedpoint.FromUint64(elapsed))
	if !ok {
		return percoerr.New(percoerr.MathOverflow, "maintenance fee overflow")
	}
	fee, ok = fee.Mul(posAbs)
	if !ok {
		return percoerr.New(percoerr.MathOverflow, "maintenance fee overflow")
	}
	if fee.Hi != 0 {
		return percoerr.New(percoerr.MathOverflow, "maintenance fee does not fit balance")
	}

	balance := rec.CollateralBalance()
	if fee.Lo > balance {
		return percoerr.New(percoerr.InsufficientMargin, "maintenance fee exceeds balance")
	}
	newBalance := balance - fee.Lo

	insFund, ok := eng.InsuranceFund().Add(fee)
	if !ok {
		return percoerr.New(percoerr.MathOverflow, "insurance fund overflow")
	}

	funding, ok := rec.PositionSize().Mul(fixedpoint.FromInt64(fundingRate))
	if !ok {
		return percoerr.New(percoerr.MathOverflow, "funding overflow")
	}
	funding, ok = funding.Mul(fixedpoint.FromInt64(int64(elapsed)))
	if !ok {
		return percoerr.New(percoerr.MathOverflow, "funding overflow")
	}
	funding, ok = funding.DivInt64(1_000_000)
	if !ok {
		return percoerr.New(percoerr.MathOverflow, "funding overflow")
	}

	newRealized, ok := rec.RealizedPnl().Sub(funding)
	if !ok {
		return percoerr.New(percoerr.MathOverflow, "realized pnl overflow")
	}

	switch funding.Sign() {
	case 1:
		insFund, ok = insFund.Add(funding.SignedAbs())
		if !ok {
			return percoerr.New(percoerr.MathOverflow, "insurance fund overflow")
		}
	case -1:
		mag := funding.SignedAbs()
		if insFund.Cmp(mag) < 0 {
			return percoerr.New(percoerr.InsufficientMargin, "insurance fund cannot cover funding payout")
		}
		insFund, _ = insFund.Sub(mag)
	}

	rec.SetCollateralBalance(newBalance)
	rec.SetRealizedPnl(newRealized)
	eng.SetInsuranceFund(insFund)
	return nil
}
