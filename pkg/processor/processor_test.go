package processor

import (
	"encoding/binary"
	"testing"

	"github.com/percolator-labs/percolator/pkg/fixedpoint"
	"github.com/percolator-labs/percolator/pkg/instruction"
	"github.com/percolator-labs/percolator/pkg/matcher"
	"github.com/percolator-labs/percolator/pkg/pda"
	"github.com/percolator-labs/percolator/pkg/percoerr"
	"github.com/percolator-labs/percolator/pkg/slab"
)

// echoMatcher answers every call by parsing the request record out of
// the context bytes and echoing it back as a fully valid fill, after
// letting mutate tamper with the response.
type echoMatcher struct {
	calls  int
	mutate func(*matcher.ReturnRecord)
}

func (m *echoMatcher) Call(_ [32]byte, ctx []byte) error {
	m.calls++
	ret := matcher.ReturnRecord{
		ABIVersion:    matcher.ABIVersion,
		Flags:         matcher.FlagValid,
		ExecPriceE6:   binary.LittleEndian.Uint64(ctx[19:27]),
		ExecSize:      fixedpoint.Int128FromBytes(ctx[27:43]),
		ReqID:         binary.LittleEndian.Uint64(ctx[1:9]),
		LPAccountID:   binary.LittleEndian.Uint64(ctx[11:19]),
		OraclePriceE6: binary.LittleEndian.Uint64(ctx[19:27]),
	}
	if m.mutate != nil {
		m.mutate(&ret)
	}
	b := ret.Bytes()
	copy(ctx, b[:])
	return nil
}

type harness struct {
	t         *testing.T
	v         *slab.View
	p         *Processor
	slabKey   [32]byte
	programID [32]byte
	slot      uint64

	admin       [32]byte
	userOwner   [32]byte
	lpOwner     [32]byte
	matcherProg [32]byte
	matcherCtx  [32]byte
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	v, err := slab.Init(make([]byte, slab.Len))
	if err != nil {
		t.Fatalf("init slab: %v", err)
	}
	h := &harness{t: t, v: v, slot: 1}
	h.slabKey[0] = 0x51
	h.programID[0] = 2
	h.admin[0] = 0xA1
	h.userOwner[0] = 0xB1
	h.lpOwner[0] = 0xC1
	h.matcherProg[0] = 0xD1
	h.matcherCtx[0] = 0xE1
	h.p = New(h.programID)
	return h
}

func (h *harness) process(ixData []byte, accounts any, cpi CPICaller) error {
	h.slot++
	return h.p.Process(h.v, h.slabKey, h.slot, ixData, accounts, cpi)
}

func le16(v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return b[:]
}

func le64(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

func le128u(v uint64) []byte {
	b := fixedpoint.FromUint64(v).Bytes()
	return b[:]
}

func le128i(v fixedpoint.Int128) []byte {
	b := v.Bytes()
	return b[:]
}

// initMarket formats the slab through the InitMarket wire path:
// maintenance 500, initial 1000, max_accounts 64, zero fees.
func (h *harness) initMarket(riskThreshold uint64) {
	h.t.Helper()
	var mint, oi, oc, vault [32]byte
	mint[0], oi[0], oc[0], vault[0] = 3, 4, 5, 6

	ix := []byte{byte(instruction.TagInitMarket)}
	ix = append(ix, h.admin[:]...)
	ix = append(ix, mint[:]...)
	ix = append(ix, oi[:]...)
	ix = append(ix, oc[:]...)
	ix = append(ix, le64(1000)...) // max_staleness
	ix = append(ix, 0, 0)          // conf_bps
	ix = append(ix, le64(0)...)    // warmup
	ix = append(ix, le64(500)...)  // maintenance bps
	ix = append(ix, le64(1000)...) // initial bps
	ix = append(ix, le64(0)...)    // trading fee bps
	ix = append(ix, le64(64)...)   // max accounts
	ix = append(ix, le128u(0)...)  // new account fee
	ix = append(ix, le128u(riskThreshold)...)
	ix = append(ix, le128u(0)...) // maintenance fee per slot
	ix = append(ix, le64(1000)...) // max crank staleness
	ix = append(ix, le64(0)...)   // liquidation fee bps
	ix = append(ix, le128u(0)...) // liquidation fee cap
	ix = append(ix, le64(0)...)   // liquidation buffer bps
	ix = append(ix, le128u(0)...) // min liquidation abs

	acc := InitMarketAccounts{
		Admin:             Signer{Key: h.admin, IsSigner: true},
		CollateralMint:    mint,
		VaultTokenAccount: vault,
	}
	if err := h.process(ix, acc, nil); err != nil {
		h.t.Fatalf("init market: %v", err)
	}
}

func (h *harness) pushOracle(priceE6 uint64) {
	h.t.Helper()
	ix := []byte{byte(instruction.TagPushOraclePrice)}
	ix = append(ix, le64(priceE6)...)
	ix = append(ix, le64(h.slot+1)...)
	acc := PushOraclePriceAccounts{Pusher: Signer{Key: h.admin, IsSigner: true}}
	if err := h.process(ix, acc, nil); err != nil {
		h.t.Fatalf("push oracle: %v", err)
	}
}

func (h *harness) initUser() uint16 {
	h.t.Helper()
	ix := append([]byte{byte(instruction.TagInitUser)}, le64(0)...)
	acc := InitUserAccounts{Owner: Signer{Key: h.userOwner, IsSigner: true}}
	if err := h.process(ix, acc, nil); err != nil {
		h.t.Fatalf("init user: %v", err)
	}
	return uint16(h.v.Bitmap().PopCount() - 1)
}

func (h *harness) initLP() uint16 {
	h.t.Helper()
	ix := []byte{byte(instruction.TagInitLP)}
	ix = append(ix, h.matcherProg[:]...)
	ix = append(ix, h.matcherCtx[:]...)
	ix = append(ix, le64(0)...)
	acc := InitLPAccounts{Owner: Signer{Key: h.lpOwner, IsSigner: true}}
	if err := h.process(ix, acc, nil); err != nil {
		h.t.Fatalf("init lp: %v", err)
	}
	return uint16(h.v.Bitmap().PopCount() - 1)
}

func (h *harness) deposit(owner [32]byte, idx uint16, amount uint64) error {
	ix := []byte{byte(instruction.TagDeposit)}
	ix = append(ix, le16(idx)...)
	ix = append(ix, le64(amount)...)
	return h.process(ix, DepositAccounts{Owner: Signer{Key: owner, IsSigner: true}}, nil)
}

func (h *harness) withdraw(owner [32]byte, idx uint16, amount uint64) error {
	ix := []byte{byte(instruction.TagWithdraw)}
	ix = append(ix, le16(idx)...)
	ix = append(ix, le64(amount)...)
	acc := WithdrawAccounts{
		Owner:          Signer{Key: owner, IsSigner: true},
		VaultAuthority: pda.VaultAuthority(h.slabKey, h.programID),
	}
	return h.process(ix, acc, nil)
}

func (h *harness) topUpInsurance(amount uint64) {
	h.t.Helper()
	ix := append([]byte{byte(instruction.TagTopUpInsurance)}, le64(amount)...)
	acc := TopUpInsuranceAccounts{Contributor: Signer{Key: h.userOwner, IsSigner: true}}
	if err := h.process(ix, acc, nil); err != nil {
		h.t.Fatalf("top up insurance: %v", err)
	}
}

func (h *harness) tradeCpiAccounts(lpIdx uint16) TradeCpiAccounts {
	return TradeCpiAccounts{
		UserOwner: Signer{Key: h.userOwner, IsSigner: true},
		LPOwner:   Signer{Key: h.lpOwner, IsSigner: true},
		MatcherProgram: ExternalAccount{
			Key:        h.matcherProg,
			Executable: true,
		},
		MatcherCtx: ExternalAccount{
			Key:   h.matcherCtx,
			Owner: h.matcherProg,
			Data:  make([]byte, matcher.ReturnRecordLen),
		},
		LPSignerPDA: pda.LPSigner(h.slabKey, lpIdx, h.programID),
	}
}

func (h *harness) tradeCpi(lpIdx, userIdx uint16, reqSize fixedpoint.Int128, acc TradeCpiAccounts, cpi CPICaller) error {
	ix := []byte{byte(instruction.TagTradeCpi)}
	ix = append(ix, le16(lpIdx)...)
	ix = append(ix, le16(userIdx)...)
	ix = append(ix, le128i(reqSize)...)
	return h.process(ix, acc, cpi)
}

// tradedHarness bootstraps a tradable market: funded user, funded LP,
// insurance, fresh oracle at 1.0.
func tradedHarness(t *testing.T, riskThreshold uint64) (*harness, uint16, uint16) {
	h := newHarness(t)
	h.initMarket(riskThreshold)
	userIdx := h.initUser()
	lpIdx := h.initLP()
	if err := h.deposit(h.userOwner, userIdx, 1000); err != nil {
		t.Fatalf("deposit user: %v", err)
	}
	if err := h.deposit(h.lpOwner, lpIdx, 1000); err != nil {
		t.Fatalf("deposit lp: %v", err)
	}
	h.topUpInsurance(100)
	h.pushOracle(1_000_000)
	return h, userIdx, lpIdx
}

func TestBootstrapDeposit(t *testing.T) {
	h := newHarness(t)
	h.initMarket(0)
	userIdx := h.initUser()

	if err := h.deposit(h.userOwner, userIdx, 1000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if got := h.v.Account(userIdx).CollateralBalance(); got != 1000 {
		t.Fatalf("balance = %d, want 1000", got)
	}
}

func TestInitMarketRejectsSecondCall(t *testing.T) {
	h := newHarness(t)
	h.initMarket(0)

	ix := []byte{byte(instruction.TagInitMarket)}
	ix = append(ix, h.admin[:]...)
	// Truncated args decode first, so reuse the full encoder path by
	// just calling initMarket's body again and checking the error.
	var mint, oi, oc [32]byte
	ix = append(ix, mint[:]...)
	ix = append(ix, oi[:]...)
	ix = append(ix, oc[:]...)
	ix = append(ix, le64(1000)...)
	ix = append(ix, 0, 0)
	for i := 0; i < 5; i++ {
		ix = append(ix, le64(0)...)
	}
	ix = append(ix, le128u(0)...)
	ix = append(ix, le128u(0)...)
	ix = append(ix, le128u(0)...)
	ix = append(ix, le64(0)...)
	ix = append(ix, le64(0)...)
	ix = append(ix, le128u(0)...)
	ix = append(ix, le64(0)...)
	ix = append(ix, le128u(0)...)

	err := h.process(ix, InitMarketAccounts{Admin: Signer{Key: h.admin, IsSigner: true}}, nil)
	if !percoerr.Is(err, percoerr.AlreadyInitialized) {
		t.Fatalf("expected AlreadyInitialized, got %v", err)
	}
}

func TestDepositRequiresOwner(t *testing.T) {
	h := newHarness(t)
	h.initMarket(0)
	userIdx := h.initUser()

	var stranger [32]byte
	stranger[0] = 0x99
	err := h.deposit(stranger, userIdx, 10)
	if !percoerr.Is(err, percoerr.InvalidAccountOwner) {
		t.Fatalf("expected InvalidAccountOwner, got %v", err)
	}
}

// InitUser, Deposit, Withdraw brings the account back to zero with
// zero-fee test configuration.
func TestDepositWithdrawRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.initMarket(0)
	userIdx := h.initUser()
	h.pushOracle(1_000_000)

	if err := h.deposit(h.userOwner, userIdx, 500); err != nil {
		t.Fatal(err)
	}
	if err := h.withdraw(h.userOwner, userIdx, 500); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := h.v.Account(userIdx).CollateralBalance(); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}

	// One token more than the balance must bounce.
	if err := h.withdraw(h.userOwner, userIdx, 1); !percoerr.Is(err, percoerr.InsufficientMargin) {
		t.Fatalf("expected InsufficientMargin, got %v", err)
	}
}

func TestWithdrawRejectsWrongVaultPda(t *testing.T) {
	h := newHarness(t)
	h.initMarket(0)
	userIdx := h.initUser()
	h.pushOracle(1_000_000)
	if err := h.deposit(h.userOwner, userIdx, 500); err != nil {
		t.Fatal(err)
	}

	ix := []byte{byte(instruction.TagWithdraw)}
	ix = append(ix, le16(userIdx)...)
	ix = append(ix, le64(100)...)
	acc := WithdrawAccounts{
		Owner:          Signer{Key: h.userOwner, IsSigner: true},
		VaultAuthority: [32]byte{0xBA, 0xD0},
	}
	if err := h.process(ix, acc, nil); !percoerr.Is(err, percoerr.InvalidPda) {
		t.Fatalf("expected InvalidPda, got %v", err)
	}
}

// The delegated-match happy path.
func TestTradeCpiHappyPath(t *testing.T) {
	h, userIdx, lpIdx := tradedHarness(t, 0)
	m := &echoMatcher{}

	err := h.tradeCpi(lpIdx, userIdx, fixedpoint.FromInt64(100), h.tradeCpiAccounts(lpIdx), m)
	if err != nil {
		t.Fatalf("trade: %v", err)
	}
	if m.calls != 1 {
		t.Fatalf("matcher called %d times, want 1", m.calls)
	}
	if got := h.v.Account(userIdx).PositionSize(); got.Cmp(fixedpoint.FromInt64(100)) != 0 {
		t.Fatalf("user position = %s, want +100", got)
	}
	if got := h.v.Account(lpIdx).PositionSize(); got.Cmp(fixedpoint.FromInt64(-100)) != 0 {
		t.Fatalf("lp position = %s, want -100", got)
	}
	if got := h.v.Account(lpIdx).Nonce(); got != 1 {
		t.Fatalf("lp nonce = %d, want 1", got)
	}
	if h.v.Engine().TotalTradeCount() != 1 {
		t.Fatal("trade count not bumped")
	}
}

// The applied size is the matcher's exec_size, never the requested one.
func TestTradeCpiUsesExecSize(t *testing.T) {
	h, userIdx, lpIdx := tradedHarness(t, 0)
	m := &echoMatcher{mutate: func(r *matcher.ReturnRecord) {
		r.ExecSize = fixedpoint.FromInt64(60)
	}}

	if err := h.tradeCpi(lpIdx, userIdx, fixedpoint.FromInt64(100), h.tradeCpiAccounts(lpIdx), m); err != nil {
		t.Fatalf("trade: %v", err)
	}
	if got := h.v.Account(userIdx).PositionSize(); got.Cmp(fixedpoint.FromInt64(60)) != 0 {
		t.Fatalf("user position = %s, want the 60 the matcher filled", got)
	}
	if got := h.v.Account(lpIdx).PositionSize(); got.Cmp(fixedpoint.FromInt64(-60)) != 0 {
		t.Fatalf("lp position = %s, want -60", got)
	}
}

// A matcher lying about identity is rejected after the call, with
// no nonce movement and no position change.
func TestTradeCpiMatcherLiesAboutIdentity(t *testing.T) {
	h, userIdx, lpIdx := tradedHarness(t, 0)
	m := &echoMatcher{mutate: func(r *matcher.ReturnRecord) {
		r.LPAccountID++
	}}

	err := h.tradeCpi(lpIdx, userIdx, fixedpoint.FromInt64(100), h.tradeCpiAccounts(lpIdx), m)
	if !percoerr.Is(err, percoerr.MatcherAbiInvalid) {
		t.Fatalf("expected MatcherAbiInvalid, got %v", err)
	}
	if got := h.v.Account(lpIdx).Nonce(); got != 0 {
		t.Fatalf("lp nonce = %d, want unchanged 0", got)
	}
	if !h.v.Account(userIdx).PositionSize().IsZero() || !h.v.Account(lpIdx).PositionSize().IsZero() {
		t.Fatal("rejected trade moved a position")
	}
}

// A TradeCpi signed by someone other than the stored LP owner.
func TestTradeCpiWrongLPSigner(t *testing.T) {
	h, userIdx, lpIdx := tradedHarness(t, 0)
	m := &echoMatcher{}

	acc := h.tradeCpiAccounts(lpIdx)
	acc.LPOwner = Signer{Key: [32]byte{0x77}, IsSigner: true}
	err := h.tradeCpi(lpIdx, userIdx, fixedpoint.FromInt64(100), acc, m)
	if !percoerr.Is(err, percoerr.EngineUnauthorized) {
		t.Fatalf("expected EngineUnauthorized, got %v", err)
	}
	if m.calls != 0 {
		t.Fatal("matcher must not be called for an unauthorized trade")
	}
}

func TestTradeCpiWrongMatcherIdentity(t *testing.T) {
	h, userIdx, lpIdx := tradedHarness(t, 0)
	m := &echoMatcher{}

	acc := h.tradeCpiAccounts(lpIdx)
	acc.MatcherProgram.Key = [32]byte{0x66}
	acc.MatcherCtx.Owner = acc.MatcherProgram.Key
	err := h.tradeCpi(lpIdx, userIdx, fixedpoint.FromInt64(100), acc, m)
	if !percoerr.Is(err, percoerr.MatcherIdentityMismatch) {
		t.Fatalf("expected MatcherIdentityMismatch, got %v", err)
	}
	if m.calls != 0 {
		t.Fatal("matcher must not be called under a mismatched identity")
	}
}

func TestTradeCpiWrongLPPda(t *testing.T) {
	h, userIdx, lpIdx := tradedHarness(t, 0)

	acc := h.tradeCpiAccounts(lpIdx)
	acc.LPSignerPDA = [32]byte{0x55}
	err := h.tradeCpi(lpIdx, userIdx, fixedpoint.FromInt64(100), acc, &echoMatcher{})
	if !percoerr.Is(err, percoerr.InvalidPda) {
		t.Fatalf("expected InvalidPda, got %v", err)
	}
}

// With the insurance gate active, risk-increasing trades bounce
// and risk-reducing trades still go through.
func TestTradeCpiGateSemantics(t *testing.T) {
	h, userIdx, lpIdx := tradedHarness(t, 1_000_000_000)

	err := h.tradeCpi(lpIdx, userIdx, fixedpoint.FromInt64(100), h.tradeCpiAccounts(lpIdx), &echoMatcher{})
	if !percoerr.Is(err, percoerr.RiskGateActive) {
		t.Fatalf("expected RiskGateActive, got %v", err)
	}
	if got := h.v.Account(lpIdx).Nonce(); got != 0 {
		t.Fatalf("lp nonce = %d, want unchanged 0", got)
	}

	// Seed an existing LP short directly so a user sell reduces it.
	h.v.Account(lpIdx).SetPositionSize(fixedpoint.FromInt64(-100))
	h.v.Engine().SetLPSumAbs(fixedpoint.FromUint64(100))
	h.v.Engine().SetLPMaxAbs(fixedpoint.FromUint64(100))

	err = h.tradeCpi(lpIdx, userIdx, fixedpoint.FromInt64(-50), h.tradeCpiAccounts(lpIdx), &echoMatcher{})
	if err != nil {
		t.Fatalf("risk-reducing trade must pass the active gate: %v", err)
	}
	if got := h.v.Account(lpIdx).PositionSize(); got.Cmp(fixedpoint.FromInt64(-50)) != 0 {
		t.Fatalf("lp position = %s, want -50", got)
	}
	if got := h.v.Account(lpIdx).Nonce(); got != 1 {
		t.Fatalf("lp nonce = %d, want 1", got)
	}
}

// exec_size at the minimum i128 against req_size = MIN+1 fails the
// saturating-absolute bound.
func TestTradeCpiMinBoundary(t *testing.T) {
	h, userIdx, lpIdx := tradedHarness(t, 0)
	m := &echoMatcher{mutate: func(r *matcher.ReturnRecord) {
		r.ExecSize = fixedpoint.MinInt128
	}}

	reqSize, ok := fixedpoint.MinInt128.Add(fixedpoint.FromInt64(1))
	if !ok {
		t.Fatal("MinInt128+1 must not overflow")
	}
	err := h.tradeCpi(lpIdx, userIdx, reqSize, h.tradeCpiAccounts(lpIdx), m)
	if !percoerr.Is(err, percoerr.MatcherAbiInvalid) {
		t.Fatalf("expected MatcherAbiInvalid, got %v", err)
	}
	if got := h.v.Account(lpIdx).Nonce(); got != 0 {
		t.Fatal("boundary reject must not advance the nonce")
	}
}

func TestTradeNoCpi(t *testing.T) {
	h, userIdx, lpIdx := tradedHarness(t, 0)

	ix := []byte{byte(instruction.TagTradeNoCpi)}
	ix = append(ix, le16(lpIdx)...)
	ix = append(ix, le16(userIdx)...)
	ix = append(ix, le128i(fixedpoint.FromInt64(100))...)
	acc := TradeNoCpiAccounts{
		UserOwner: Signer{Key: h.userOwner, IsSigner: true},
		LPOwner:   Signer{Key: h.lpOwner, IsSigner: true},
	}
	if err := h.process(ix, acc, nil); err != nil {
		t.Fatalf("trade: %v", err)
	}
	if got := h.v.Account(userIdx).PositionSize(); got.Cmp(fixedpoint.FromInt64(100)) != 0 {
		t.Fatalf("user position = %s, want +100", got)
	}
	if got := h.v.Account(lpIdx).PositionSize(); got.Cmp(fixedpoint.FromInt64(-100)) != 0 {
		t.Fatalf("lp position = %s, want -100", got)
	}
	// The direct path has no matcher round trip and no nonce to spend.
	if got := h.v.Account(lpIdx).Nonce(); got != 0 {
		t.Fatalf("lp nonce = %d, want untouched 0", got)
	}
}

// With the admin burned, every admin instruction is rejected
// regardless of who signs.
func TestAdminBurnedRejectsAdminInstructions(t *testing.T) {
	h := newHarness(t)
	h.initMarket(0)
	h.v.Header().SetAdmin([32]byte{})

	ix := []byte{byte(instruction.TagSetOracleAuthority)}
	var newAuth [32]byte
	newAuth[0] = 9
	ix = append(ix, newAuth[:]...)
	err := h.process(ix, SetOracleAuthorityAccounts{Admin: Signer{Key: h.admin, IsSigner: true}}, nil)
	if !percoerr.Is(err, percoerr.AdminBurned) {
		t.Fatalf("expected AdminBurned, got %v", err)
	}

	push := []byte{byte(instruction.TagPushOraclePrice)}
	push = append(push, le64(1_000_000)...)
	push = append(push, le64(50)...)
	err = h.process(push, PushOraclePriceAccounts{Pusher: Signer{Key: h.admin, IsSigner: true}}, nil)
	if !percoerr.Is(err, percoerr.EngineUnauthorized) {
		t.Fatalf("expected EngineUnauthorized, got %v", err)
	}

	// The zero key itself must not slip through the sentinel.
	err = h.process(push, PushOraclePriceAccounts{Pusher: Signer{Key: [32]byte{}, IsSigner: true}}, nil)
	if !percoerr.Is(err, percoerr.EngineUnauthorized) {
		t.Fatalf("expected EngineUnauthorized for zero signer, got %v", err)
	}
}

func TestDelegatedOraclePushAuthority(t *testing.T) {
	h := newHarness(t)
	h.initMarket(0)

	var delegate [32]byte
	delegate[0] = 0xDD
	ix := []byte{byte(instruction.TagSetOracleAuthority)}
	ix = append(ix, delegate[:]...)
	if err := h.process(ix, SetOracleAuthorityAccounts{Admin: Signer{Key: h.admin, IsSigner: true}}, nil); err != nil {
		t.Fatalf("set authority: %v", err)
	}

	push := []byte{byte(instruction.TagPushOraclePrice)}
	push = append(push, le64(2_000_000)...)
	push = append(push, le64(60)...)
	if err := h.process(push, PushOraclePriceAccounts{Pusher: Signer{Key: delegate, IsSigner: true}}, nil); err != nil {
		t.Fatalf("delegated push: %v", err)
	}
	if h.v.Engine().OraclePriceE6() != 2_000_000 {
		t.Fatal("delegated push did not land")
	}

	// Burning the admin keeps the delegate working.
	h.v.Header().SetAdmin([32]byte{})
	push = []byte{byte(instruction.TagPushOraclePrice)}
	push = append(push, le64(3_000_000)...)
	push = append(push, le64(70)...)
	if err := h.process(push, PushOraclePriceAccounts{Pusher: Signer{Key: delegate, IsSigner: true}}, nil); err != nil {
		t.Fatalf("delegated push after burn: %v", err)
	}
}

func TestCrankThroughProcessor(t *testing.T) {
	h, userIdx, _ := tradedHarness(t, 0)

	ix := []byte{byte(instruction.TagCrank)}
	ix = append(ix, le16(userIdx)...)
	ix = append(ix, le64(0)...)
	ix = append(ix, 1)
	acc := CrankAccounts{Caller: Signer{Key: h.userOwner, IsSigner: true}}
	if err := h.process(ix, acc, nil); err != nil {
		t.Fatalf("crank: %v", err)
	}
	if h.v.Engine().LastCrankSlot() != h.slot {
		t.Fatal("crank did not advance last_crank_slot")
	}
}

func TestLiquidateThroughProcessor(t *testing.T) {
	h, userIdx, _ := tradedHarness(t, 0)

	// Sink the user: long 1000 from 1.0, then mark down to 0.9.
	rec := h.v.Account(userIdx)
	rec.SetCollateralBalance(10)
	rec.SetPositionSize(fixedpoint.FromInt64(1000))
	rec.SetAvgEntryPriceE6(1_000_000)
	h.pushOracle(900_000)

	var liquidator [32]byte
	liquidator[0] = 0xF0

	// A same-signed close size is malformed.
	bad := []byte{byte(instruction.TagLiquidate)}
	bad = append(bad, le16(userIdx)...)
	bad = append(bad, le128i(fixedpoint.FromInt64(1000))...)
	if err := h.process(bad, LiquidateAccounts{Liquidator: Signer{Key: liquidator, IsSigner: true}}, nil); !percoerr.Is(err, percoerr.InvalidLayout) {
		t.Fatalf("expected InvalidLayout for same-signed close, got %v", err)
	}

	ix := []byte{byte(instruction.TagLiquidate)}
	ix = append(ix, le16(userIdx)...)
	ix = append(ix, le128i(fixedpoint.FromInt64(-1000))...)
	if err := h.process(ix, LiquidateAccounts{Liquidator: Signer{Key: liquidator, IsSigner: true}}, nil); err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if h.v.Engine().TotalLiquidationCount() != 1 {
		t.Fatal("liquidation count not bumped")
	}
}

func TestProcessRejectsMismatchedAccountsType(t *testing.T) {
	h := newHarness(t)
	h.initMarket(0)

	ix := append([]byte{byte(instruction.TagInitUser)}, le64(0)...)
	err := h.process(ix, DepositAccounts{}, nil)
	if !percoerr.Is(err, percoerr.InvalidLayout) {
		t.Fatalf("expected InvalidLayout, got %v", err)
	}
}
