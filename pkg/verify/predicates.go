// Package verify holds the pure authorization and identity predicates
// and the trade decision functions: no I/O, no slab mutation, safe to
// exercise exhaustively in property tests.
package verify

// SignerOK reports whether an account position that must be a signer
// actually signed the transaction.
func SignerOK(isSigner bool) bool { return isSigner }

// WritableOK reports whether an account position that must be
// writable actually is.
func WritableOK(isWritable bool) bool { return isWritable }

// LenOK reports whether a supplied buffer is at least minLen bytes —
// the generic shape check behind every fixed-layout account read.
func LenOK(buf []byte, minLen int) bool { return len(buf) >= minLen }

// OwnerOK reports whether the signer key matches the account's stored
// owner.
func OwnerOK(stored, signer [32]byte) bool { return stored == signer }

// AdminOK reports whether signer is authorized as admin. Admin-burn is
// the all-zero sentinel, never an "is-some" check: a zero admin key
// never authorizes, even if signer also happens to be the zero key.
func AdminOK(admin, signer [32]byte) bool {
	if admin == ([32]byte{}) {
		return false
	}
	return admin == signer
}

// PdaKeyMatches reports whether a derived PDA matches the key supplied
// by the caller.
func PdaKeyMatches(expected, provided [32]byte) bool { return expected == provided }

// MatcherIdentityOK reports whether the accounts supplied for a
// delegated-match call are exactly the LP's stored matcher program and
// context; both must match. A mismatched lp_account_id in the return
// record is a separate, ABI-level check; this is the account identity
// check made before the call is even issued.
func MatcherIdentityOK(lpProgram, lpCtx, providedProgram, providedCtx [32]byte) bool {
	return lpProgram == providedProgram && lpCtx == providedCtx
}

// MatcherShapeOK reports whether the supplied matcher program/context
// accounts have the expected executable/ownership shape: the program
// account must be executable, the context account must not be, must be
// owned by the program, and must be at least the matcher context's
// minimum length.
func MatcherShapeOK(programExecutable, ctxExecutable, ctxOwnedByProgram bool, ctxLen, minCtxLen int) bool {
	return programExecutable && !ctxExecutable && ctxOwnedByProgram && ctxLen >= minCtxLen
}

// GateActive reports whether the insurance-fund risk-reduction gate is
// active: threshold > 0 and the fund balance has fallen to or below
// it. Callers typically get this from slab.RiskParams.RiskReductionGateActive;
// this free function exists so the decision functions below can take it
// as a plain bool without importing the slab package.
func GateActive(thresholdPositive bool, fundAtOrBelowThreshold bool) bool {
	return thresholdPositive && fundAtOrBelowThreshold
}
