package verify

import (
	"testing"
	"testing/quick"

	"github.com/percolator-labs/percolator/pkg/fixedpoint"
)

func TestAdminOKBurnedSentinel(t *testing.T) {
	var zero [32]byte
	var admin, other [32]byte
	admin[0] = 1
	other[0] = 2

	if !AdminOK(admin, admin) {
		t.Fatal("admin signing as itself must authorize")
	}
	if AdminOK(admin, other) {
		t.Fatal("non-admin signer must not authorize")
	}
	// Burned admin authorizes nobody — not even the zero key itself.
	if AdminOK(zero, zero) {
		t.Fatal("burned admin must reject the zero signer too")
	}
	if AdminOK(zero, other) {
		t.Fatal("burned admin must reject every signer")
	}
}

func TestSignerWritableLenPredicates(t *testing.T) {
	if !SignerOK(true) || SignerOK(false) {
		t.Fatal("SignerOK must mirror the signer flag")
	}
	if !WritableOK(true) || WritableOK(false) {
		t.Fatal("WritableOK must mirror the writable flag")
	}
	buf := make([]byte, 64)
	if !LenOK(buf, 64) || LenOK(buf, 65) {
		t.Fatal("LenOK must compare against the minimum length")
	}
}

func TestOwnerAndPdaPredicates(t *testing.T) {
	var a, b [32]byte
	a[0], b[0] = 1, 2

	if !OwnerOK(a, a) || OwnerOK(a, b) {
		t.Fatal("OwnerOK must be bit-exact equality")
	}
	if !PdaKeyMatches(a, a) || PdaKeyMatches(a, b) {
		t.Fatal("PdaKeyMatches must be bit-exact equality")
	}
}

func TestMatcherIdentityOKRequiresBoth(t *testing.T) {
	var prog, ctx, other [32]byte
	prog[0], ctx[0], other[0] = 1, 2, 3

	if !MatcherIdentityOK(prog, ctx, prog, ctx) {
		t.Fatal("exact identity must pass")
	}
	if MatcherIdentityOK(prog, ctx, other, ctx) {
		t.Fatal("wrong program must fail")
	}
	if MatcherIdentityOK(prog, ctx, prog, other) {
		t.Fatal("wrong context must fail")
	}
}

func TestMatcherShapeOK(t *testing.T) {
	if !MatcherShapeOK(true, false, true, 64, 64) {
		t.Fatal("well-shaped accounts must pass")
	}
	cases := []struct {
		name                             string
		progExec, ctxExec, ctxOwned      bool
		ctxLen, minLen                   int
	}{
		{"program not executable", false, false, true, 64, 64},
		{"context executable", true, true, true, 64, 64},
		{"context not owned", true, false, false, 64, 64},
		{"context too short", true, false, true, 63, 64},
	}
	for _, c := range cases {
		if MatcherShapeOK(c.progExec, c.ctxExec, c.ctxOwned, c.ctxLen, c.minLen) {
			t.Fatalf("%s: expected shape check to fail", c.name)
		}
	}
}

func TestGateActive(t *testing.T) {
	if GateActive(false, true) || GateActive(true, false) || GateActive(false, false) {
		t.Fatal("gate requires both a positive threshold and a depleted fund")
	}
	if !GateActive(true, true) {
		t.Fatal("gate must activate when both conditions hold")
	}
}

func TestDecideTradeCPIAcceptAdvancesNonce(t *testing.T) {
	size := fixedpoint.FromInt64(100)
	d := DecideTradeCPI(41, true, true, true, true, true, true, false, true, size)
	if d.Outcome != Accept {
		t.Fatal("all predicates true, gate inactive: must accept")
	}
	if d.NewNonce != 42 {
		t.Fatalf("nonce = %d, want 42", d.NewNonce)
	}
	if d.ChosenSize.Cmp(size) != 0 {
		t.Fatal("accept must carry exec_size")
	}
}

// The strong-adversary case: a bit-perfect ABI record must still lose
// to an identity mismatch, and every other single false predicate also
// rejects on its own.
func TestDecideTradeCPIEachPredicateRejectsAlone(t *testing.T) {
	size := fixedpoint.FromInt64(100)
	flip := []string{"shape", "identity", "pda", "abi", "userAuth", "lpAuth"}
	for i, name := range flip {
		preds := [6]bool{true, true, true, true, true, true}
		preds[i] = false
		d := DecideTradeCPI(7, preds[0], preds[1], preds[2], preds[3], preds[4], preds[5], false, false, size)
		if d.Outcome != Reject {
			t.Fatalf("false %s must reject", name)
		}
		if d.NewNonce != 7 {
			t.Fatalf("false %s: nonce moved to %d on reject", name, d.NewNonce)
		}
	}
}

func TestDecideTradeCPIGateBlocksOnlyRiskIncrease(t *testing.T) {
	size := fixedpoint.FromInt64(100)

	d := DecideTradeCPI(0, true, true, true, true, true, true, true, true, size)
	if d.Outcome != Reject || d.NewNonce != 0 {
		t.Fatal("active gate + risk increase must reject without advancing the nonce")
	}

	d = DecideTradeCPI(0, true, true, true, true, true, true, true, false, size)
	if d.Outcome != Accept {
		t.Fatal("active gate must let a risk-reducing trade through")
	}
	d = DecideTradeCPI(0, true, true, true, true, true, true, false, true, size)
	if d.Outcome != Accept {
		t.Fatal("inactive gate must let a risk-increasing trade through")
	}
}

// Exhaustive equivalence over the whole boolean input space: Accept
// iff every predicate holds and the gate/risk pair does not forbid,
// and the nonce moves iff the decision is Accept.
func TestDecideTradeCPITruthTable(t *testing.T) {
	size := fixedpoint.FromInt64(5)
	for mask := 0; mask < 1<<8; mask++ {
		bit := func(i int) bool { return mask&(1<<i) != 0 }
		shape, identity, pdaOk, abiOk := bit(0), bit(1), bit(2), bit(3)
		userAuth, lpAuth, gate, risk := bit(4), bit(5), bit(6), bit(7)

		d := DecideTradeCPI(9, shape, identity, pdaOk, abiOk, userAuth, lpAuth, gate, risk, size)
		wantAccept := shape && identity && pdaOk && abiOk && userAuth && lpAuth && !(gate && risk)
		if (d.Outcome == Accept) != wantAccept {
			t.Fatalf("mask %08b: outcome %v, want accept=%v", mask, d.Outcome, wantAccept)
		}
		wantNonce := uint64(9)
		if wantAccept {
			wantNonce = 10
		}
		if d.NewNonce != wantNonce {
			t.Fatalf("mask %08b: nonce %d, want %d", mask, d.NewNonce, wantNonce)
		}
	}
}

func TestDecideTradeNoCPI(t *testing.T) {
	for mask := 0; mask < 1<<4; mask++ {
		bit := func(i int) bool { return mask&(1<<i) != 0 }
		userAuth, lpAuth, gate, risk := bit(0), bit(1), bit(2), bit(3)

		got := DecideTradeNoCPI(userAuth, lpAuth, gate, risk)
		wantAccept := userAuth && lpAuth && !(gate && risk)
		if (got == Accept) != wantAccept {
			t.Fatalf("mask %04b: outcome %v, want accept=%v", mask, got, wantAccept)
		}
	}
}

// Nonce never moves more than one step, and only on Accept, whatever
// the inputs.
func TestDecideTradeCPINonceProperty(t *testing.T) {
	f := func(oldNonce uint64, shape, identity, pdaOk, abiOk, userAuth, lpAuth, gate, risk bool, lo int64) bool {
		if oldNonce == ^uint64(0) {
			oldNonce-- // keep oldNonce+1 representable
		}
		d := DecideTradeCPI(oldNonce, shape, identity, pdaOk, abiOk, userAuth, lpAuth, gate, risk, fixedpoint.FromInt64(lo))
		switch d.Outcome {
		case Accept:
			return d.NewNonce == oldNonce+1
		default:
			return d.NewNonce == oldNonce
		}
	}
	if err := quick.Check(f, nil); err != nil {
		t.Fatal(err)
	}
}
