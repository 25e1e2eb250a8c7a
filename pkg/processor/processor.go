// Package processor is the single instruction dispatch point: for each
// instruction tag it decodes arguments, validates every account
// position, derives any required PDAs, borrows the engine, calls the
// matching pure decision, and applies state only on Accept.
package processor

import (
	"github.com/percolator-labs/percolator/pkg/accounttable"
	"github.com/percolator-labs/percolator/pkg/engine"
	"github.com/percolator-labs/percolator/pkg/fixedpoint"
	"github.com/percolator-labs/percolator/pkg/instruction"
	"github.com/percolator-labs/percolator/pkg/matcher"
	"github.com/percolator-labs/percolator/pkg/oracle"
	"github.com/percolator-labs/percolator/pkg/pda"
	"github.com/percolator-labs/percolator/pkg/percoerr"
	"github.com/percolator-labs/percolator/pkg/slab"
	"github.com/percolator-labs/percolator/pkg/verify"
)

// CPICaller is the boundary to the host's cross-program-call plumbing.
// Call must write the matcher's 64-byte return record into ctx before
// returning — production wiring supplies a real implementation, tests
// supply a fake matcher.
type CPICaller interface {
	Call(matcherProgram [32]byte, ctx []byte) error
}

// Processor dispatches wire instructions against one slab.
type Processor struct {
	ProgramID [32]byte
}

func New(programID [32]byte) *Processor { return &Processor{ProgramID: programID} }

// Process decodes ixData's tag and arguments, validates accounts
// (whose concrete type must match the tag — see the per-instruction
// *Accounts types in accounts.go), and applies the instruction against
// v. slabKey is the slab account's own address, needed for PDA
// derivation; currentSlot is the host's ambient clock, needed for
// oracle staleness and the crank — neither is carried in any wire
// instruction's argument bytes, mirroring how a Solana program reads
// its own key and the Clock sysvar out of band rather than off the
// instruction data.
func (p *Processor) Process(v *slab.View, slabKey [32]byte, currentSlot uint64, ixData []byte, accounts any, cpi CPICaller) error {
	tag, rest, err := instruction.DecodeTag(ixData)
	if err != nil {
		return err
	}

	switch tag {
	case instruction.TagInitMarket:
		a, ok := accounts.(InitMarketAccounts)
		if !ok {
			return percoerr.New(percoerr.InvalidLayout, "accounts do not match InitMarket")
		}
		args, err := instruction.DecodeInitMarket(rest)
		if err != nil {
			return err
		}
		return p.initMarket(v, a, args)

	case instruction.TagInitUser:
		a, ok := accounts.(InitUserAccounts)
		if !ok {
			return percoerr.New(percoerr.InvalidLayout, "accounts do not match InitUser")
		}
		args, err := instruction.DecodeInitUser(rest)
		if err != nil {
			return err
		}
		return p.initUser(v, a, args)

	case instruction.TagInitLP:
		a, ok := accounts.(InitLPAccounts)
		if !ok {
			return percoerr.New(percoerr.InvalidLayout, "accounts do not match InitLP")
		}
		args, err := instruction.DecodeInitLP(rest)
		if err != nil {
			return err
		}
		return p.initLP(v, a, args)

	case instruction.TagDeposit:
		a, ok := accounts.(DepositAccounts)
		if !ok {
			return percoerr.New(percoerr.InvalidLayout, "accounts do not match Deposit")
		}
		args, err := instruction.DecodeDeposit(rest)
		if err != nil {
			return err
		}
		return p.deposit(v, a, args)

	case instruction.TagWithdraw:
		a, ok := accounts.(WithdrawAccounts)
		if !ok {
			return percoerr.New(percoerr.InvalidLayout, "accounts do not match Withdraw")
		}
		args, err := instruction.DecodeWithdraw(rest)
		if err != nil {
			return err
		}
		return p.withdraw(v, slabKey, currentSlot, a, args)

	case instruction.TagCrank:
		a, ok := accounts.(CrankAccounts)
		if !ok {
			return percoerr.New(percoerr.InvalidLayout, "accounts do not match Crank")
		}
		args, err := instruction.DecodeCrank(rest)
		if err != nil {
			return err
		}
		return p.crank(v, currentSlot, a, args)

	case instruction.TagLiquidate:
		a, ok := accounts.(LiquidateAccounts)
		if !ok {
			return percoerr.New(percoerr.InvalidLayout, "accounts do not match Liquidate")
		}
		args, err := instruction.DecodeLiquidate(rest)
		if err != nil {
			return err
		}
		return p.liquidate(v, currentSlot, a, args)

	case instruction.TagTradeNoCpi:
		a, ok := accounts.(TradeNoCpiAccounts)
		if !ok {
			return percoerr.New(percoerr.InvalidLayout, "accounts do not match TradeNoCpi")
		}
		args, err := instruction.DecodeTradeNoCpi(rest)
		if err != nil {
			return err
		}
		return p.tradeNoCpi(v, currentSlot, a, args)

	case instruction.TagTradeCpi:
		a, ok := accounts.(TradeCpiAccounts)
		if !ok {
			return percoerr.New(percoerr.InvalidLayout, "accounts do not match TradeCpi")
		}
		args, err := instruction.DecodeTradeCpi(rest)
		if err != nil {
			return err
		}
		return p.tradeCpi(v, slabKey, currentSlot, a, args, cpi)

	case instruction.TagTopUpInsurance:
		a, ok := accounts.(TopUpInsuranceAccounts)
		if !ok {
			return percoerr.New(percoerr.InvalidLayout, "accounts do not match TopUpInsurance")
		}
		args, err := instruction.DecodeTopUpInsurance(rest)
		if err != nil {
			return err
		}
		return p.topUpInsurance(v, a, args)

	case instruction.TagSetOracleAuthority:
		a, ok := accounts.(SetOracleAuthorityAccounts)
		if !ok {
			return percoerr.New(percoerr.InvalidLayout, "accounts do not match SetOracleAuthority")
		}
		args, err := instruction.DecodeSetOracleAuthority(rest)
		if err != nil {
			return err
		}
		return p.setOracleAuthority(v, a, args)

	case instruction.TagPushOraclePrice:
		a, ok := accounts.(PushOraclePriceAccounts)
		if !ok {
			return percoerr.New(percoerr.InvalidLayout, "accounts do not match PushOraclePrice")
		}
		args, err := instruction.DecodePushOraclePrice(rest)
		if err != nil {
			return err
		}
		return p.pushOraclePrice(v, a, args)

	default:
		return percoerr.New(percoerr.InvalidLayout, "unknown instruction tag")
	}
}

func (p *Processor) initMarket(v *slab.View, a InitMarketAccounts, args instruction.InitMarketArgs) error {
	if !verify.SignerOK(a.Admin.IsSigner) {
		return percoerr.New(percoerr.ExpectedSigner, "admin must sign InitMarket")
	}
	if a.Admin.Key != args.Admin {
		return percoerr.New(percoerr.EngineUnauthorized, "admin signer does not match declared admin")
	}
	if args.RiskParams.MaxAccounts > slab.MaxAccounts {
		return percoerr.New(percoerr.InvalidLayout, "max_accounts exceeds compile-time MAX_ACCOUNTS")
	}

	h := v.Header()
	if !h.AdminBurned() {
		return percoerr.New(percoerr.AlreadyInitialized, "market config already written")
	}
	h.SetAdmin(args.Admin)

	cfg := v.Config()
	cfg.SetCollateralMint(args.Mint)
	cfg.SetVaultTokenAccount(a.VaultTokenAccount)
	cfg.SetIndexOracle(args.OracleIndex)
	cfg.SetCollateralOracle(args.OracleCollateral)
	cfg.SetMaxStalenessSlots(args.MaxStalenessSlots)
	cfg.SetConfFilterBps(args.ConfBps)

	rp := v.RiskParams()
	rp.SetWarmupPeriodSlots(args.RiskParams.WarmupPeriodSlots)
	rp.SetMaintenanceMarginBps(args.RiskParams.MaintenanceMarginBps)
	rp.SetInitialMarginBps(args.RiskParams.InitialMarginBps)
	rp.SetTradingFeeBps(args.RiskParams.TradingFeeBps)
	rp.SetMaxAccounts(args.RiskParams.MaxAccounts)
	rp.SetNewAccountFee(args.RiskParams.NewAccountFee)
	rp.SetRiskReductionThreshold(args.RiskParams.RiskReductionThreshold)
	rp.SetMaintenanceFeePerSlot(args.RiskParams.MaintenanceFeePerSlot)
	rp.SetMaxCrankStalenessSlots(args.RiskParams.MaxCrankStalenessSlots)
	rp.SetLiquidationFeeBps(args.RiskParams.LiquidationFeeBps)
	rp.SetLiquidationFeeCap(args.RiskParams.LiquidationFeeCap)
	rp.SetLiquidationBufferBps(args.RiskParams.LiquidationBufferBps)
	rp.SetMinLiquidationAbs(args.RiskParams.MinLiquidationAbs)
	return nil
}

func (p *Processor) initUser(v *slab.View, a InitUserAccounts, args instruction.InitUserArgs) error {
	if !verify.SignerOK(a.Owner.IsSigner) {
		return percoerr.New(percoerr.ExpectedSigner, "owner must sign InitUser")
	}
	_, err := accounttable.Add(v, slab.KindUser, a.Owner.Key)
	if err != nil {
		return err
	}
	return creditAccountCreationFee(v, args.Fee)
}

func (p *Processor) initLP(v *slab.View, a InitLPAccounts, args instruction.InitLPArgs) error {
	if !verify.SignerOK(a.Owner.IsSigner) {
		return percoerr.New(percoerr.ExpectedSigner, "owner must sign InitLP")
	}
	idx, err := accounttable.Add(v, slab.KindLP, a.Owner.Key)
	if err != nil {
		return err
	}
	rec := v.Account(idx)
	rec.SetMatcherProgram(args.MatcherProgram)
	rec.SetMatcherCtx(args.MatcherCtx)
	rec.SetNonce(0)
	return creditAccountCreationFee(v, args.Fee)
}

// creditAccountCreationFee credits the wire-declared account-creation
// fee straight to the insurance fund, the same way TopUpInsurance does:
// a brand-new account necessarily starts at a zero balance, so there is
// nothing in the slab to deduct the fee from. The fee is paid
// out-of-band (the native-token side of account creation that this
// repo's scope leaves unmodeled); only its insurance-fund credit is
// represented here.
func creditAccountCreationFee(v *slab.View, fee uint64) error {
	if fee == 0 {
		return nil
	}
	eng := v.Engine()
	newFund, ok := eng.InsuranceFund().Add(fixedpoint.FromUint64(fee))
	if !ok {
		return percoerr.New(percoerr.MathOverflow, "insurance fund overflow")
	}
	eng.SetInsuranceFund(newFund)
	return nil
}

func (p *Processor) deposit(v *slab.View, a DepositAccounts, args instruction.DepositArgs) error {
	if !verify.SignerOK(a.Owner.IsSigner) {
		return percoerr.New(percoerr.ExpectedSigner, "owner must sign Deposit")
	}
	if err := accounttable.MustBeUsed(v, args.Idx); err != nil {
		return err
	}
	rec := v.Account(args.Idx)
	if !verify.OwnerOK(rec.Owner(), a.Owner.Key) {
		return percoerr.New(percoerr.InvalidAccountOwner, "signer does not own account")
	}
	newBalance := rec.CollateralBalance() + args.Amount
	if newBalance < rec.CollateralBalance() {
		return percoerr.New(percoerr.MathOverflow, "deposit overflows balance")
	}
	rec.SetCollateralBalance(newBalance)
	return nil
}

func (p *Processor) withdraw(v *slab.View, slabKey [32]byte, currentSlot uint64, a WithdrawAccounts, args instruction.WithdrawArgs) error {
	if !verify.SignerOK(a.Owner.IsSigner) {
		return percoerr.New(percoerr.ExpectedSigner, "owner must sign Withdraw")
	}
	expected := pda.VaultAuthority(slabKey, p.ProgramID)
	if !verify.PdaKeyMatches(expected, a.VaultAuthority) {
		return percoerr.New(percoerr.InvalidPda, "vault authority PDA mismatch")
	}
	if err := accounttable.MustBeUsed(v, args.Idx); err != nil {
		return err
	}
	rec := v.Account(args.Idx)
	if !verify.OwnerOK(rec.Owner(), a.Owner.Key) {
		return percoerr.New(percoerr.InvalidAccountOwner, "signer does not own account")
	}
	if args.Amount > rec.CollateralBalance() {
		return percoerr.New(percoerr.InsufficientMargin, "withdraw amount exceeds balance")
	}
	newBalance := rec.CollateralBalance() - args.Amount

	reading, err := oracle.Read(v, int64(currentSlot), 0)
	if err != nil {
		return err
	}
	eq, err := engine.Equity(newBalance, rec.RealizedPnl(), rec.PositionSize(), rec.AvgEntryPriceE6(), reading.PriceE6)
	if err != nil {
		return err
	}
	ok, err := engine.InitialMarginOk(eq, rec.PositionSize(), reading.PriceE6, v.RiskParams().InitialMarginBps())
	if err != nil {
		return err
	}
	if !ok {
		return percoerr.New(percoerr.InsufficientMargin, "withdraw would breach initial margin")
	}
	rec.SetCollateralBalance(newBalance)
	return nil
}

func (p *Processor) topUpInsurance(v *slab.View, a TopUpInsuranceAccounts, args instruction.TopUpInsuranceArgs) error {
	if !verify.SignerOK(a.Contributor.IsSigner) {
		return percoerr.New(percoerr.ExpectedSigner, "contributor must sign TopUpInsurance")
	}
	eng := v.Engine()
	newFund, ok := eng.InsuranceFund().Add(fixedpoint.FromUint64(args.Amount))
	if !ok {
		return percoerr.New(percoerr.MathOverflow, "insurance fund overflow")
	}
	eng.SetInsuranceFund(newFund)
	return nil
}

func (p *Processor) setOracleAuthority(v *slab.View, a SetOracleAuthorityAccounts, args instruction.SetOracleAuthorityArgs) error {
	h := v.Header()
	if h.AdminBurned() {
		return percoerr.New(percoerr.AdminBurned, "admin is burned")
	}
	if !verify.SignerOK(a.Admin.IsSigner) {
		return percoerr.New(percoerr.ExpectedSigner, "admin must sign SetOracleAuthority")
	}
	if !verify.AdminOK(h.Admin(), a.Admin.Key) {
		return percoerr.New(percoerr.EngineUnauthorized, "signer is not admin")
	}
	v.Config().SetOraclePushAuthority(args.NewAuthority)
	return nil
}

func (p *Processor) pushOraclePrice(v *slab.View, a PushOraclePriceAccounts, args instruction.PushOraclePriceArgs) error {
	cfg := v.Config()
	h := v.Header()
	pushAuthority := cfg.OraclePushAuthority()
	authorized := false
	if !h.AdminBurned() && verify.AdminOK(h.Admin(), a.Pusher.Key) {
		authorized = true
	}
	if pushAuthority != ([32]byte{}) && a.Pusher.Key == pushAuthority {
		authorized = true
	}
	if !verify.SignerOK(a.Pusher.IsSigner) || !authorized {
		return percoerr.New(percoerr.EngineUnauthorized, "pusher is neither admin nor delegated push authority")
	}
	oracle.Push(v, args.PriceE6, args.Timestamp)
	return nil
}

func (p *Processor) crank(v *slab.View, currentSlot uint64, a CrankAccounts, args instruction.CrankArgs) error {
	if !verify.SignerOK(a.Caller.IsSigner) {
		return percoerr.New(percoerr.ExpectedSigner, "caller must sign Crank")
	}
	if err := accounttable.MustBeUsed(v, args.CallerIdx); err != nil {
		return err
	}
	_, err := engine.Crank(v, currentSlot, args.FundingRate, args.AllowPanic)
	return err
}

func (p *Processor) liquidate(v *slab.View, currentSlot uint64, a LiquidateAccounts, args instruction.LiquidateArgs) error {
	if !verify.SignerOK(a.Liquidator.IsSigner) {
		return percoerr.New(percoerr.ExpectedSigner, "liquidator must sign Liquidate")
	}
	if err := accounttable.MustBeUsed(v, args.Idx); err != nil {
		return err
	}
	pos := v.Account(args.Idx).PositionSize()
	if !pos.IsZero() {
		if args.CloseSize.IsZero() || fixedpoint.SameSign(pos, args.CloseSize) {
			return percoerr.New(percoerr.InvalidLayout, "close size must oppose the position")
		}
		if args.CloseSize.SignedAbs().Cmp(pos.SignedAbs()) > 0 {
			return percoerr.New(percoerr.InvalidLayout, "close size exceeds the position")
		}
	}
	reading, err := oracle.Read(v, int64(currentSlot), 0)
	if err != nil {
		return err
	}
	_, err = engine.Liquidate(v, args.Idx, args.CloseSize, reading.PriceE6)
	return err
}

// tradeNoCpi is the direct, non-delegated trade path: both owners sign
// in the same transaction, so there is no matcher round trip and no
// nonce to advance. Treat it as a test-only ingress unless explicitly
// enabled in production configuration — that gate lives in the host,
// not here.
func (p *Processor) tradeNoCpi(v *slab.View, currentSlot uint64, a TradeNoCpiAccounts, args instruction.TradeNoCpiArgs) error {
	if err := accounttable.MustBeUsed(v, args.LPIdx); err != nil {
		return err
	}
	if err := accounttable.MustBeUsed(v, args.UserIdx); err != nil {
		return err
	}
	lpRec := v.Account(args.LPIdx)
	userRec := v.Account(args.UserIdx)
	if lpRec.Kind() != slab.KindLP || userRec.Kind() != slab.KindUser {
		return percoerr.New(percoerr.InvalidLayout, "account kind mismatch for trade legs")
	}

	if !verify.SignerOK(a.UserOwner.IsSigner) {
		return percoerr.New(percoerr.ExpectedSigner, "user owner must sign TradeNoCpi")
	}
	if !verify.OwnerOK(userRec.Owner(), a.UserOwner.Key) {
		return percoerr.New(percoerr.EngineUnauthorized, "signer does not own user account")
	}
	if !verify.SignerOK(a.LPOwner.IsSigner) {
		return percoerr.New(percoerr.ExpectedSigner, "lp owner must sign TradeNoCpi")
	}
	if !verify.OwnerOK(lpRec.Owner(), a.LPOwner.Key) {
		return percoerr.New(percoerr.EngineUnauthorized, "signer does not own lp account")
	}

	lpDelta, ok := args.Size.Neg()
	if !ok {
		return percoerr.New(percoerr.MathOverflow, "trade size has no representable negation")
	}
	riskIncrease, err := engine.WouldIncreaseRisk(v, lpRec.PositionSize(), lpDelta)
	if err != nil {
		return err
	}
	gateActive := engine.GateActive(v)
	if verify.DecideTradeNoCPI(true, true, gateActive, riskIncrease) != verify.Accept {
		return percoerr.New(percoerr.RiskGateActive, "trade would increase risk while insurance gate active")
	}

	reading, err := oracle.Read(v, int64(currentSlot), 0)
	if err != nil {
		return err
	}
	feeBps := v.RiskParams().TradingFeeBps()
	if err := engine.ApplyTrade(v, args.UserIdx, args.Size, reading.PriceE6, feeBps); err != nil {
		return err
	}
	if err := engine.ApplyTrade(v, args.LPIdx, lpDelta, reading.PriceE6, feeBps); err != nil {
		return err
	}
	return engine.RecordTradeStats(v, args.Size, reading.PriceE6)
}

// tradeCpi is the delegated-match path: it writes a request record
// into the matcher's context, issues one cross-program call signed by
// the LP's derived PDA, re-parses the return record from raw bytes,
// validates it bit-exactly, and applies exec_size — never req_size —
// on Accept.
func (p *Processor) tradeCpi(v *slab.View, slabKey [32]byte, currentSlot uint64, a TradeCpiAccounts, args instruction.TradeCpiArgs, cpi CPICaller) error {
	if err := accounttable.MustBeUsed(v, args.LPIdx); err != nil {
		return err
	}
	if err := accounttable.MustBeUsed(v, args.UserIdx); err != nil {
		return err
	}
	lpRec := v.Account(args.LPIdx)
	userRec := v.Account(args.UserIdx)
	if lpRec.Kind() != slab.KindLP || userRec.Kind() != slab.KindUser {
		return percoerr.New(percoerr.InvalidLayout, "account kind mismatch for trade legs")
	}

	if !verify.SignerOK(a.UserOwner.IsSigner) {
		return percoerr.New(percoerr.ExpectedSigner, "user owner must sign TradeCpi")
	}
	if !verify.OwnerOK(userRec.Owner(), a.UserOwner.Key) {
		return percoerr.New(percoerr.EngineUnauthorized, "signer does not own user account")
	}
	if !verify.SignerOK(a.LPOwner.IsSigner) {
		return percoerr.New(percoerr.ExpectedSigner, "lp owner must sign TradeCpi")
	}
	if !verify.OwnerOK(lpRec.Owner(), a.LPOwner.Key) {
		return percoerr.New(percoerr.EngineUnauthorized, "signer does not own lp account")
	}

	shapeOk := verify.MatcherShapeOK(a.MatcherProgram.Executable, a.MatcherCtx.Executable,
		a.MatcherCtx.Owner == a.MatcherProgram.Key, len(a.MatcherCtx.Data), matcher.ReturnRecordLen)
	if !shapeOk {
		return percoerr.New(percoerr.MatcherAbiInvalid, "matcher program/context account shape invalid")
	}
	identityOk := verify.MatcherIdentityOK(lpRec.MatcherProgram(), lpRec.MatcherCtx(), a.MatcherProgram.Key, a.MatcherCtx.Key)
	if !identityOk {
		return percoerr.New(percoerr.MatcherIdentityMismatch, "matcher accounts do not match lp's stored identity")
	}
	expectedPda := pda.LPSigner(slabKey, args.LPIdx, p.ProgramID)
	pdaOk := verify.PdaKeyMatches(expectedPda, a.LPSignerPDA)
	if !pdaOk {
		return percoerr.New(percoerr.InvalidPda, "lp signer pda mismatch")
	}

	reading, err := oracle.Read(v, int64(currentSlot), 0)
	if err != nil {
		return err
	}

	oldNonce := lpRec.Nonce()
	req := instruction.MatcherCallRequest{
		ReqID:         oldNonce,
		LPAccountID:   uint64(args.LPIdx),
		OraclePriceE6: reading.PriceE6,
		ReqSize:       args.ReqSize,
	}
	copy(a.MatcherCtx.Data, req.Bytes())
	if err := cpi.Call(a.MatcherProgram.Key, a.MatcherCtx.Data); err != nil {
		return percoerr.Wrap(percoerr.MatcherAbiInvalid, err)
	}

	ret := matcher.ParseReturnRecord(a.MatcherCtx.Data)
	abiOk := matcher.AbiOk(ret, uint64(args.LPIdx), reading.PriceE6, args.ReqSize, oldNonce)

	var lpDelta fixedpoint.Int128
	var riskIncrease bool
	if abiOk {
		var negOk bool
		lpDelta, negOk = ret.ExecSize.Neg()
		if !negOk {
			return percoerr.New(percoerr.MathOverflow, "exec size has no representable negation")
		}
		riskIncrease, err = engine.WouldIncreaseRisk(v, lpRec.PositionSize(), lpDelta)
		if err != nil {
			return err
		}
	}
	gateActive := engine.GateActive(v)

	decision := verify.DecideTradeCPI(oldNonce, shapeOk, identityOk, pdaOk, abiOk, true, true, gateActive, riskIncrease, ret.ExecSize)
	if decision.Outcome != verify.Accept {
		if !abiOk {
			return percoerr.New(percoerr.MatcherAbiInvalid, "matcher return record failed abi validation")
		}
		return percoerr.New(percoerr.RiskGateActive, "trade would increase risk while insurance gate active")
	}

	feeBps := v.RiskParams().TradingFeeBps()
	if err := engine.ApplyTrade(v, args.UserIdx, decision.ChosenSize, ret.ExecPriceE6, feeBps); err != nil {
		return err
	}
	if err := engine.ApplyTrade(v, args.LPIdx, lpDelta, ret.ExecPriceE6, feeBps); err != nil {
		return err
	}
	if err := engine.RecordTradeStats(v, decision.ChosenSize, ret.ExecPriceE6); err != nil {
		return err
	}
	lpRec.SetNonce(decision.NewNonce)
	return nil
}
