package engine

import (
	"github.com/percolator-labs/percolator/pkg/fixedpoint"
	"github.com/percolator-labs/percolator/pkg/percoerr"
	"github.com/percolator-labs/percolator/pkg/slab"
)

// ApplyTrade applies a signed position delta to account idx: updates
// position size, recomputes the volume-weighted average entry price on
// same-direction (opening/adding) deltas, realizes PnL on the portion
// of any opposite-direction delta that reduces or closes the existing
// position, and charges tradingFeeBps of the trade's notional to the
// account's balance, crediting it to the insurance fund. Callers apply
// this once per leg of a trade (e.g. once for the user, once for the
// LP, with equal and opposite deltas for a direct trade).
func ApplyTrade(v *slab.View, idx uint16, delta fixedpoint.Int128, markPriceE6, tradingFeeBps uint64) error {
	rec := v.Account(idx)
	oldPos := rec.PositionSize()
	oldAvg := rec.AvgEntryPriceE6()
	oldRealized := rec.RealizedPnl()

	newPos, ok := oldPos.Add(delta)
	if !ok {
		return percoerr.New(percoerr.MathOverflow, "position overflow")
	}

	newAvg := oldAvg
	realizedDelta := fixedpoint.Zero

	opening := oldPos.IsZero() || fixedpoint.SameSign(oldPos, delta)
	if opening {
		avg, err := vwapEntry(oldPos, oldAvg, delta, markPriceE6)
		if err != nil {
			return err
		}
		newAvg = avg
	} else {
		// Opposite-direction delta: the portion up to min(|delta|,
		// |oldPos|) reduces or closes the position and realizes PnL at
		// the old average entry price; any remainder flips the position
		// open at the current mark price.
		oldAbs := oldPos.SignedAbs()
		deltaAbs := delta.SignedAbs()
		closedAbs := oldAbs
		if deltaAbs.Cmp(oldAbs) < 0 {
			closedAbs = deltaAbs
		}
		closedSigned, ok := closedAbs.ToInt128()
		if !ok {
			return percoerr.New(percoerr.MathOverflow, "closed size does not fit signed range")
		}
		if oldPos.Sign() < 0 {
			closedSigned, _ = closedSigned.Neg()
		}
		pnl, okP := UnrealizedPnL(closedSigned, oldAvg, markPriceE6)
		if !okP {
			return percoerr.New(percoerr.MathOverflow, "realized pnl overflow")
		}
		realizedDelta = pnl

		if newPos.IsZero() {
			newAvg = 0
		} else if fixedpoint.SameSign(newPos, delta) {
			// Flipped through zero: the remainder opens fresh at mark.
			newAvg = markPriceE6
		}
	}

	fee, err := tradeFee(delta, markPriceE6, tradingFeeBps)
	if err != nil {
		return err
	}

	newRealized, ok := oldRealized.Add(realizedDelta)
	if !ok {
		return percoerr.New(percoerr.MathOverflow, "realized pnl overflow")
	}

	balance := rec.CollateralBalance()
	if fee > balance {
		return percoerr.New(percoerr.InsufficientMargin, "trading fee exceeds balance")
	}
	newBalance := balance - fee

	eng := v.Engine()
	insFund, ok := eng.InsuranceFund().Add(fixedpoint.FromUint64(fee))
	if !ok {
		return percoerr.New(percoerr.MathOverflow, "insurance fund overflow")
	}

	if rec.Kind() == slab.KindLP {
		if err := UpdateLPRiskAggregate(v, oldPos, newPos); err != nil {
			return err
		}
	}

	rec.SetPositionSize(newPos)
	rec.SetAvgEntryPriceE6(newAvg)
	rec.SetRealizedPnl(newRealized)
	rec.SetCollateralBalance(newBalance)
	eng.SetInsuranceFund(insFund)
	return nil
}

// RecordTradeStats bumps the global aggregate counters after a trade's
// legs have both applied: one trade, its user-leg notional.
func RecordTradeStats(v *slab.View, size fixedpoint.Int128, markPriceE6 uint64) error {
	notional, ok := Notional(size, markPriceE6)
	if !ok {
		return percoerr.New(percoerr.MathOverflow, "trade notional overflow")
	}
	eng := v.Engine()
	vol, ok := eng.TotalNotionalVolume().Add(notional)
	if !ok {
		return percoerr.New(percoerr.MathOverflow, "notional volume overflow")
	}
	eng.SetTotalNotionalVolume(vol)
	eng.SetTotalTradeCount(eng.TotalTradeCount() + 1)
	return nil
}

// vwapEntry computes the volume-weighted average entry price after
// adding delta (same direction as oldPos, or opening from flat) at
// markPriceE6.
func vwapEntry(oldPos fixedpoint.Int128, oldAvg uint64, delta fixedpoint.Int128, markPriceE6 uint64) (uint64, error) {
	oldAbs := oldPos.SignedAbs()
	deltaAbs := delta.SignedAbs()

	weightedOld, ok := oldAbs.MulDivUint64(oldAvg, 1)
	if !ok {
		return 0, percoerr.New(percoerr.MathOverflow, "vwap overflow")
	}
	weightedNew, ok := deltaAbs.MulDivUint64(markPriceE6, 1)
	if !ok {
		return 0, percoerr.New(percoerr.MathOverflow, "vwap overflow")
	}
	sum, ok := weightedOld.Add(weightedNew)
	if !ok {
		return 0, percoerr.New(percoerr.MathOverflow, "vwap overflow")
	}

	newPosAbs, ok := oldAbs.Add(deltaAbs)
	if !ok {
		return 0, percoerr.New(percoerr.MathOverflow, "vwap overflow")
	}
	if newPosAbs.IsZero() {
		return 0, nil
	}
	avg, ok := sum.Div(newPosAbs)
	if !ok || avg.Hi != 0 {
		return 0, percoerr.New(percoerr.MathOverflow, "average entry price does not fit")
	}
	return avg.Lo, nil
}

// tradeFee computes |delta| × mark_price_e6 / 1e6 × trading_fee_bps /
// 10_000, floored to the account's collateral unit.
func tradeFee(delta fixedpoint.Int128, markPriceE6, tradingFeeBps uint64) (uint64, error) {
	notional, ok := Notional(delta, markPriceE6)
	if !ok {
		return 0, percoerr.New(percoerr.MathOverflow, "fee notional overflow")
	}
	fee, ok := notional.MulDivUint64(tradingFeeBps, 10_000)
	if !ok {
		return 0, percoerr.New(percoerr.MathOverflow, "fee overflow")
	}
	if fee.Hi != 0 {
		return 0, percoerr.New(percoerr.MathOverflow, "fee does not fit u64")
	}
	return fee.Lo, nil
}
