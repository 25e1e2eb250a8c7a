package engine

import (
	"github.com/percolator-labs/percolator/pkg/fixedpoint"
	"github.com/percolator-labs/percolator/pkg/percoerr"
	"github.com/percolator-labs/percolator/pkg/slab"
)

// UpdateLPRiskAggregate maintains sum_abs and max_abs in O(1): sum_abs
// moves by exactly -|oldPos|+|newPos|; max_abs only ever grows here (a
// conservative over-estimate when a position shrinks below the prior
// maximum). Crank reconciles both exactly.
func UpdateLPRiskAggregate(v *slab.View, oldPos, newPos fixedpoint.Int128) error {
	eng := v.Engine()
	oldAbs := oldPos.SignedAbs()
	newAbs := newPos.SignedAbs()

	sumAbs, ok := eng.LPSumAbs().Sub(oldAbs)
	if !ok {
		return percoerr.New(percoerr.MathOverflow, "lp sum_abs underflow")
	}
	sumAbs, ok = sumAbs.Add(newAbs)
	if !ok {
		return percoerr.New(percoerr.MathOverflow, "lp sum_abs overflow")
	}

	maxAbs := eng.LPMaxAbs()
	if newAbs.Cmp(maxAbs) >= 0 {
		maxAbs = newAbs
	}

	eng.SetLPSumAbs(sumAbs)
	eng.SetLPMaxAbs(maxAbs)
	return nil
}

// ReconcileLPRiskAggregate recomputes sum_abs and max_abs from scratch
// over every used LP record, the exact reconciliation Crank performs
// to correct max_abs's conservative drift.
func ReconcileLPRiskAggregate(v *slab.View) error {
	bm := v.Bitmap()
	sumAbs := fixedpoint.Uint128{}
	maxAbs := fixedpoint.Uint128{}
	for i := uint16(0); i < slab.MaxAccounts; i++ {
		if !bm.Get(i) {
			continue
		}
		rec := v.Account(i)
		if rec.Kind() != slab.KindLP {
			continue
		}
		abs := rec.PositionSize().SignedAbs()
		var ok bool
		sumAbs, ok = sumAbs.Add(abs)
		if !ok {
			return percoerr.New(percoerr.MathOverflow, "lp sum_abs overflow during reconciliation")
		}
		if abs.Cmp(maxAbs) >= 0 {
			maxAbs = abs
		}
	}
	eng := v.Engine()
	eng.SetLPSumAbs(sumAbs)
	eng.SetLPMaxAbs(maxAbs)
	return nil
}

// WouldIncreaseRisk reports whether applying delta to an LP currently
// at oldPos would strictly increase the scalar risk metric R = max_abs
// + sum_abs/8.
func WouldIncreaseRisk(v *slab.View, oldPos, delta fixedpoint.Int128) (bool, error) {
	eng := v.Engine()
	currentMetric := eng.RiskMetric()

	newPos, ok := oldPos.Add(delta)
	if !ok {
		return false, percoerr.New(percoerr.MathOverflow, "position overflow")
	}
	oldAbs := oldPos.SignedAbs()
	newAbs := newPos.SignedAbs()

	sumAbs, ok := eng.LPSumAbs().Sub(oldAbs)
	if !ok {
		return false, percoerr.New(percoerr.MathOverflow, "lp sum_abs underflow")
	}
	sumAbs, ok = sumAbs.Add(newAbs)
	if !ok {
		return false, percoerr.New(percoerr.MathOverflow, "lp sum_abs overflow")
	}

	maxAbs := eng.LPMaxAbs()
	if newAbs.Cmp(maxAbs) >= 0 {
		maxAbs = newAbs
	}

	eighth, _ := sumAbs.DivUint64(8)
	newMetric, ok := maxAbs.Add(eighth)
	if !ok {
		return false, percoerr.New(percoerr.MathOverflow, "risk metric overflow")
	}
	return newMetric.Cmp(currentMetric) > 0, nil
}

// GateActive reports whether the insurance-fund risk-reduction gate is
// active: risk_reduction_threshold > 0 and insurance_fund <= threshold.
func GateActive(v *slab.View) bool {
	return v.RiskParams().RiskReductionGateActive(v.Engine().InsuranceFund())
}
