package processor

// Per-instruction account metadata, typed rather than a loosely-ordered
// slice of account handles. Each struct documents the account order its
// instruction expects on the wire.

// Signer is an account position that must have signed the transaction,
// carrying the raw key so owner/admin/PDA predicates can compare
// against it.
type Signer struct {
	Key      [32]byte
	IsSigner bool
}

// ExternalAccount is an account position belonging to a cross-program
// call collaborator (token program, matcher program) whose shape
// (executable, owner, length) this processor validates but whose
// contents it never interprets beyond that.
type ExternalAccount struct {
	Key        [32]byte
	Owner      [32]byte
	Executable bool
	Data       []byte
}

// InitMarketAccounts is InitMarket's account order:
//
//	[0] signer, writable: Admin
//	[1] writable: Slab (uninitialized) — the *slab.View passed to Process
//	[2] readonly: Collateral Mint (recorded; token-mint validation
//	    belongs to the token program, not this processor)
//	[3] writable: Vault Token Account
type InitMarketAccounts struct {
	Admin              Signer
	CollateralMint     [32]byte
	VaultTokenAccount  [32]byte
}

// InitUserAccounts is InitUser's account order:
//
//	[0] signer, writable: User
//	[1] writable: Slab
type InitUserAccounts struct {
	Owner Signer
}

// InitLPAccounts is InitLP's account order:
//
//	[0] signer, writable: LP Owner
//	[1] writable: Slab
type InitLPAccounts struct {
	Owner Signer
}

// DepositAccounts is Deposit's account order:
//
//	[0] signer: Account Owner
//	[1] writable: Slab
//	[2] writable: User Token Account
//	[3] writable: Vault Token Account
//
// Token movement itself is settled by the host's token-transfer calls;
// this processor validates authorization and applies the balance delta
// directly.
type DepositAccounts struct {
	Owner Signer
}

// WithdrawAccounts is Withdraw's account order:
//
//	[0] signer: Account Owner
//	[1] writable: Slab
//	[2] writable: Vault Token Account
//	[3] writable: User Token Account
//	[4] readonly: Vault Authority PDA
type WithdrawAccounts struct {
	Owner          Signer
	VaultAuthority [32]byte // key the caller supplied for the vault PDA, checked against the derived one
}

// CrankAccounts is Crank's account order:
//
//	[0] signer: Crank Caller (any account may call; identity recorded,
//	    not privileged — the instruction itself has no admin gate)
//	[1] writable: Slab
type CrankAccounts struct {
	Caller Signer
}

// TradeNoCpiAccounts is TradeNoCpi's account order:
//
//	[0] signer: User Owner
//	[1] signer: LP Owner
//	[2] writable: Slab
//
// Treat this as a test-only ingress unless explicitly enabled in
// production configuration.
type TradeNoCpiAccounts struct {
	UserOwner Signer
	LPOwner   Signer
}

// TradeCpiAccounts is TradeCpi's account order:
//
//	[0] signer: User Owner
//	[1] signer: LP Owner — authorizes the program to act on the LP's
//	    behalf; the matcher call itself is signed by the derived
//	    LP-signer PDA below, a distinct check
//	[2] writable: Slab
//	[3] writable, readonly-data: Matcher Program
//	[4] writable: Matcher Context
//	[5] readonly: LP-signer PDA (derived, compared bit-for-bit)
type TradeCpiAccounts struct {
	UserOwner      Signer
	LPOwner        Signer
	MatcherProgram ExternalAccount
	MatcherCtx     ExternalAccount
	LPSignerPDA    [32]byte // key the caller supplied, checked against the derived one
}

// TopUpInsuranceAccounts is TopUpInsurance's account order:
//
//	[0] signer: Contributor
//	[1] writable: Slab
type TopUpInsuranceAccounts struct {
	Contributor Signer
}

// SetOracleAuthorityAccounts is SetOracleAuthority's account order:
//
//	[0] signer: Admin
//	[1] writable: Slab
type SetOracleAuthorityAccounts struct {
	Admin Signer
}

// PushOraclePriceAccounts is PushOraclePrice's account order:
//
//	[0] signer: Admin or delegated Oracle Push Authority
//	[1] writable: Slab
type PushOraclePriceAccounts struct {
	Pusher Signer
}

// LiquidateAccounts is Liquidate's account order. Liquidation is
// permissionless, mirroring typical perpetual-futures design: any
// caller may liquidate an account that fails its maintenance margin
// check, so the caller's identity is recorded but not privileged.
//
//	[0] signer: Liquidator
//	[1] writable: Slab
type LiquidateAccounts struct {
	Liquidator Signer
}
