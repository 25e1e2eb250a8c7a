// Package engine implements the risk engine: margin math, trade
// application, the LP risk aggregate, the insurance gate, liquidation,
// and the crank, all operating in place on a slab.View.
package engine

import (
	"github.com/percolator-labs/percolator/pkg/fixedpoint"
	"github.com/percolator-labs/percolator/pkg/percoerr"
)

// Notional returns |position| × mark_price_e6 / 1e6, the de-scaled
// quote-unit exposure a margin check is measured against.
func Notional(position fixedpoint.Int128, markPriceE6 uint64) (fixedpoint.Uint128, bool) {
	abs := position.SignedAbs()
	return abs.MulDivUint64(markPriceE6, 1_000_000)
}

// UnrealizedPnL computes (mark_price_e6 - avg_entry_price_e6) ×
// position / 1e6. Positive is profit, negative is loss.
func UnrealizedPnL(position fixedpoint.Int128, avgEntryPriceE6, markPriceE6 uint64) (fixedpoint.Int128, bool) {
	if position.IsZero() {
		return fixedpoint.Zero, true
	}
	delta := int64(markPriceE6) - int64(avgEntryPriceE6)
	pnl, ok := position.Mul(fixedpoint.FromInt64(delta))
	if !ok {
		return fixedpoint.Zero, false
	}
	return pnl.DivInt64(1_000_000)
}

// Equity computes balance + realized_pnl + unrealized_pnl(mark_price).
func Equity(balance uint64, realizedPnl, position fixedpoint.Int128, avgEntryPriceE6, markPriceE6 uint64) (fixedpoint.Int128, error) {
	unrealized, ok := UnrealizedPnL(position, avgEntryPriceE6, markPriceE6)
	if !ok {
		return fixedpoint.Zero, percoerr.New(percoerr.MathOverflow, "unrealized pnl overflow")
	}
	eq, ok := fixedpoint.FromInt64(int64(balance)).Add(realizedPnl)
	if !ok {
		return fixedpoint.Zero, percoerr.New(percoerr.MathOverflow, "equity overflow")
	}
	eq, ok = eq.Add(unrealized)
	if !ok {
		return fixedpoint.Zero, percoerr.New(percoerr.MathOverflow, "equity overflow")
	}
	return eq, nil
}

// requiredMargin computes notional × bps / 10_000 as a signed Int128
// comparable against equity.
func requiredMargin(position fixedpoint.Int128, markPriceE6 uint64, bps uint64) (fixedpoint.Int128, error) {
	notional, ok := Notional(position, markPriceE6)
	if !ok {
		return fixedpoint.Zero, percoerr.New(percoerr.MathOverflow, "notional overflow")
	}
	req, ok := notional.MulDivUint64(bps, 10_000)
	if !ok {
		return fixedpoint.Zero, percoerr.New(percoerr.MathOverflow, "margin requirement overflow")
	}
	signed, ok := req.ToInt128()
	if !ok {
		return fixedpoint.Zero, percoerr.New(percoerr.MathOverflow, "margin requirement does not fit signed range")
	}
	return signed, nil
}

// InitialMarginOk reports whether equity covers |position| ×
// mark_price_e6 × initial_margin_bps / 10_000.
func InitialMarginOk(equity, position fixedpoint.Int128, markPriceE6, initialMarginBps uint64) (bool, error) {
	required, err := requiredMargin(position, markPriceE6, initialMarginBps)
	if err != nil {
		return false, err
	}
	return equity.Cmp(required) >= 0, nil
}

// MaintenanceMarginOk reports whether equity covers |position| ×
// mark_price_e6 × maintenance_margin_bps / 10_000. A position failing
// this check is liquidatable.
func MaintenanceMarginOk(equity, position fixedpoint.Int128, markPriceE6, maintenanceMarginBps uint64) (bool, error) {
	required, err := requiredMargin(position, markPriceE6, maintenanceMarginBps)
	if err != nil {
		return false, err
	}
	return equity.Cmp(required) >= 0, nil
}
