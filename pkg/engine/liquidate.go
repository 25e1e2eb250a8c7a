package engine

import (
	"github.com/percolator-labs/percolator/pkg/accounttable"
	"github.com/percolator-labs/percolator/pkg/fixedpoint"
	"github.com/percolator-labs/percolator/pkg/percoerr"
	"github.com/percolator-labs/percolator/pkg/slab"
)

// LiquidationResult reports what a Liquidate call actually did, since
// "charge the fee, cover negative equity from insurance, and if that's
// not enough someone eats a loss" has three distinct outcomes a caller
// needs to tell apart.
type LiquidationResult struct {
	Liquidated     bool
	Fee            fixedpoint.Uint128
	InsuranceDrawn fixedpoint.Uint128
	// SocializedLoss is the negative equity left over after the
	// insurance fund is fully drained. It stays visible on the account
	// record as negative realized PnL; who ultimately absorbs it is a
	// product decision this engine does not make.
	SocializedLoss fixedpoint.Uint128
	// Closed reports that the account record was destroyed: balance and
	// position both reached zero with no residual equity left to track.
	Closed bool
}

// Liquidate closes closeSize of account idx's position at markPriceE6,
// charging liquidation_fee_bps of the close notional (capped by
// liquidation_fee_cap, floored by min_liquidation_abs) plus
// liquidation_buffer_bps, both credited to the insurance fund (the
// liquidator's compensation is settled out of band, like every other
// token movement here). If the account's equity is negative after the
// close, the shortfall is drawn from the insurance fund; whatever the
// fund cannot cover remains visible on the record as negative realized
// PnL and is reported as SocializedLoss.
//
// Precondition (enforced by the caller, the instruction processor,
// not re-checked here): closeSize is opposite-signed to the account's
// current position and |closeSize| <= |position|.
func Liquidate(v *slab.View, idx uint16, closeSize fixedpoint.Int128, markPriceE6 uint64) (LiquidationResult, error) {
	rec := v.Account(idx)
	pos := rec.PositionSize()
	if pos.IsZero() {
		return LiquidationResult{}, nil
	}

	rp := v.RiskParams()
	equity, err := Equity(rec.CollateralBalance(), rec.RealizedPnl(), pos, rec.AvgEntryPriceE6(), markPriceE6)
	if err != nil {
		return LiquidationResult{}, err
	}
	ok, err := MaintenanceMarginOk(equity, pos, markPriceE6, rp.MaintenanceMarginBps())
	if err != nil {
		return LiquidationResult{}, err
	}
	if ok {
		return LiquidationResult{}, nil
	}

	notional, okM := Notional(closeSize, markPriceE6)
	if !okM {
		return LiquidationResult{}, percoerr.New(percoerr.MathOverflow, "liquidation notional overflow")
	}
	fee, okM := notional.MulDivUint64(rp.LiquidationFeeBps(), 10_000)
	if !okM {
		return LiquidationResult{}, percoerr.New(percoerr.MathOverflow, "liquidation fee overflow")
	}
	if cap := rp.LiquidationFeeCap(); fee.Cmp(cap) > 0 {
		fee = cap
	}
	if min := rp.MinLiquidationAbs(); fee.Cmp(min) < 0 {
		fee = min
	}
	buffer, okM := notional.MulDivUint64(rp.LiquidationBufferBps(), 10_000)
	if !okM {
		return LiquidationResult{}, percoerr.New(percoerr.MathOverflow, "liquidation buffer overflow")
	}
	totalCharge, okM := fee.Add(buffer)
	if !okM {
		return LiquidationResult{}, percoerr.New(percoerr.MathOverflow, "liquidation charge overflow")
	}

	// The closed leg carries the position's sign, not the close delta's.
	closedSigned, okM := closeSize.Neg()
	if !okM {
		return LiquidationResult{}, percoerr.New(percoerr.MathOverflow, "close size has no representable negation")
	}
	realizedDelta, ok := UnrealizedPnL(closedSigned, rec.AvgEntryPriceE6(), markPriceE6)
	if !ok {
		return LiquidationResult{}, percoerr.New(percoerr.MathOverflow, "realized pnl overflow")
	}
	newPos, okM := pos.Add(closeSize)
	if !okM {
		return LiquidationResult{}, percoerr.New(percoerr.MathOverflow, "position overflow")
	}
	newRealized, okM := rec.RealizedPnl().Add(realizedDelta)
	if !okM {
		return LiquidationResult{}, percoerr.New(percoerr.MathOverflow, "realized pnl overflow")
	}

	eng := v.Engine()
	result := LiquidationResult{Liquidated: true, Fee: fee}

	// The account pays as much of the charge as it has; an unpayable
	// remainder is simply never received. Only negative equity, below,
	// is ever drawn out of the fund.
	balanceMag := fixedpoint.FromUint64(rec.CollateralBalance())
	paid := totalCharge
	if balanceMag.Cmp(paid) < 0 {
		paid = balanceMag
	}
	remaining, _ := balanceMag.Sub(paid)
	newBalance := remaining.Lo
	insFund, okM := eng.InsuranceFund().Add(paid)
	if !okM {
		return LiquidationResult{}, percoerr.New(percoerr.MathOverflow, "insurance fund overflow")
	}

	// Residual equity after the close and charge. Negative means the
	// account's losses exceeded its collateral: the fund makes the
	// ledger whole by crediting realized PnL back toward zero.
	residual, okM := fixedpoint.FromInt64(int64(newBalance)).Add(newRealized)
	if !okM {
		return LiquidationResult{}, percoerr.New(percoerr.MathOverflow, "residual equity overflow")
	}
	if newPos.IsZero() && residual.Sign() < 0 {
		shortfall := residual.SignedAbs()
		drawn := shortfall
		if insFund.Cmp(drawn) < 0 {
			drawn = insFund
		}
		insFund, _ = insFund.Sub(drawn)
		drawnSigned, okD := drawn.ToInt128()
		if !okD {
			return LiquidationResult{}, percoerr.New(percoerr.MathOverflow, "insurance draw does not fit signed range")
		}
		newRealized, okM = newRealized.Add(drawnSigned)
		if !okM {
			return LiquidationResult{}, percoerr.New(percoerr.MathOverflow, "realized pnl overflow")
		}
		result.InsuranceDrawn = drawn
		result.SocializedLoss, _ = shortfall.Sub(drawn)
	}
	eng.SetInsuranceFund(insFund)

	newAvg := rec.AvgEntryPriceE6()
	if newPos.IsZero() {
		newAvg = 0
	}

	if rec.Kind() == slab.KindLP {
		if err := UpdateLPRiskAggregate(v, pos, newPos); err != nil {
			return LiquidationResult{}, err
		}
	}

	eng.SetTotalLiquidationCount(eng.TotalLiquidationCount() + 1)

	// Destruction: balance and position both zero with nothing left to
	// account for. A record carrying residual negative equity stays
	// visible instead.
	if newPos.IsZero() && newBalance == 0 && newRealized.IsZero() {
		accounttable.Remove(v, idx)
		result.Closed = true
		return result, nil
	}

	rec.SetPositionSize(newPos)
	rec.SetAvgEntryPriceE6(newAvg)
	rec.SetRealizedPnl(newRealized)
	rec.SetCollateralBalance(newBalance)
	return result, nil
}
