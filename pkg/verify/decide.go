package verify

import "github.com/percolator-labs/percolator/pkg/fixedpoint"

// Decision is the result of a pure trade decision: either Reject, or
// Accept carrying the size actually applied and the LP's advanced
// nonce. A processor must apply state iff Outcome is Accept, and must
// never advance the nonce on Reject.
type Decision struct {
	Outcome    Outcome
	ChosenSize fixedpoint.Int128
	NewNonce   uint64
}

type Outcome uint8

const (
	Reject Outcome = iota
	Accept
)

// DecideTradeCPI is the single pure function gating a delegated-match
// trade. It returns Accept iff every one of shapeOk, identityOk,
// pdaOk, abiOk, userAuthOk, lpAuthOk holds and the gate/risk-increase
// pair does not forbid it. A false identityOk must reject even when
// abiOk is true; no predicate here is allowed to compensate for
// another.
func DecideTradeCPI(
	oldNonce uint64,
	shapeOk bool,
	identityOk bool,
	pdaOk bool,
	abiOk bool,
	userAuthOk bool,
	lpAuthOk bool,
	gateActive bool,
	riskIncrease bool,
	execSize fixedpoint.Int128,
) Decision {
	if !shapeOk || !identityOk || !pdaOk || !abiOk || !userAuthOk || !lpAuthOk {
		return Decision{Outcome: Reject, NewNonce: oldNonce}
	}
	if gateActive && riskIncrease {
		return Decision{Outcome: Reject, NewNonce: oldNonce}
	}
	return Decision{Outcome: Accept, ChosenSize: execSize, NewNonce: oldNonce + 1}
}

// DecideTradeNoCPI is the non-delegated analogue of DecideTradeCPI:
// the same gate/risk-increase rule, restricted to the two
// authorization predicates a direct trade actually has (no matcher
// identity, ABI, or PDA fields involved).
func DecideTradeNoCPI(userAuthOk, lpAuthOk bool, gateActive bool, riskIncrease bool) Outcome {
	if !userAuthOk || !lpAuthOk {
		return Reject
	}
	if gateActive && riskIncrease {
		return Reject
	}
	return Accept
}
