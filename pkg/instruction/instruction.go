// Package instruction decodes the wire instruction tags and their
// little-endian arguments, and encodes the delegated-match call
// request written into a matcher's context account.
package instruction

import (
	"encoding/binary"

	"github.com/percolator-labs/percolator/pkg/fixedpoint"
	"github.com/percolator-labs/percolator/pkg/percoerr"
)

// Tag identifies an instruction's wire discriminant.
type Tag byte

const (
	TagInitMarket          Tag = 0
	TagInitUser            Tag = 1
	TagInitLP              Tag = 2
	TagDeposit             Tag = 3
	TagWithdraw            Tag = 4
	TagCrank               Tag = 5
	TagTradeNoCpi          Tag = 6
	TagLiquidate           Tag = 7
	TagTopUpInsurance      Tag = 9
	TagTradeCpi            Tag = 10
	TagSetOracleAuthority  Tag = 16
	TagPushOraclePrice     Tag = 17
)

// MatcherCallTag is the tag byte a request record written into a
// matcher's context account begins with.
const MatcherCallTag byte = 0xFF

func decodeTag(data []byte) (Tag, []byte, error) {
	if len(data) < 1 {
		return 0, nil, percoerr.New(percoerr.InvalidLayout, "empty instruction data")
	}
	return Tag(data[0]), data[1:], nil
}

// InitMarketArgs decodes tag 0's arguments.
type InitMarketArgs struct {
	Admin            [32]byte
	Mint             [32]byte
	OracleIndex      [32]byte
	OracleCollateral [32]byte
	MaxStalenessSlots uint64
	ConfBps          uint16
	RiskParams       RiskParamsArgs
}

// RiskParamsArgs is the packed-field decode of the RiskParams wire
// encoding, fields in wire order.
type RiskParamsArgs struct {
	WarmupPeriodSlots      uint64
	MaintenanceMarginBps   uint64
	InitialMarginBps       uint64
	TradingFeeBps          uint64
	MaxAccounts            uint64
	NewAccountFee          fixedpoint.Uint128
	RiskReductionThreshold fixedpoint.Uint128
	MaintenanceFeePerSlot  fixedpoint.Uint128
	MaxCrankStalenessSlots uint64
	LiquidationFeeBps      uint64
	LiquidationFeeCap      fixedpoint.Uint128
	LiquidationBufferBps   uint64
	MinLiquidationAbs      fixedpoint.Uint128
}

func decodeKey(b []byte) ([32]byte, []byte, error) {
	if len(b) < 32 {
		return [32]byte{}, nil, percoerr.New(percoerr.InvalidLayout, "truncated key argument")
	}
	var k [32]byte
	copy(k[:], b[:32])
	return k, b[32:], nil
}

func decodeU64(b []byte) (uint64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, percoerr.New(percoerr.InvalidLayout, "truncated u64 argument")
	}
	return binary.LittleEndian.Uint64(b[:8]), b[8:], nil
}

func decodeU16(b []byte) (uint16, []byte, error) {
	if len(b) < 2 {
		return 0, nil, percoerr.New(percoerr.InvalidLayout, "truncated u16 argument")
	}
	return binary.LittleEndian.Uint16(b[:2]), b[2:], nil
}

func decodeI64(b []byte) (int64, []byte, error) {
	v, rest, err := decodeU64(b)
	return int64(v), rest, err
}

func decodeU128(b []byte) (fixedpoint.Uint128, []byte, error) {
	if len(b) < 16 {
		return fixedpoint.Uint128{}, nil, percoerr.New(percoerr.InvalidLayout, "truncated u128 argument")
	}
	return fixedpoint.Uint128FromBytes(b[:16]), b[16:], nil
}

func decodeI128(b []byte) (fixedpoint.Int128, []byte, error) {
	if len(b) < 16 {
		return fixedpoint.Int128{}, nil, percoerr.New(percoerr.InvalidLayout, "truncated i128 argument")
	}
	return fixedpoint.Int128FromBytes(b[:16]), b[16:], nil
}

// DecodeRiskParams decodes the RiskParams wire encoding.
func DecodeRiskParams(b []byte) (RiskParamsArgs, []byte, error) {
	var a RiskParamsArgs
	var err error
	if a.WarmupPeriodSlots, b, err = decodeU64(b); err != nil {
		return a, nil, err
	}
	if a.MaintenanceMarginBps, b, err = decodeU64(b); err != nil {
		return a, nil, err
	}
	if a.InitialMarginBps, b, err = decodeU64(b); err != nil {
		return a, nil, err
	}
	if a.TradingFeeBps, b, err = decodeU64(b); err != nil {
		return a, nil, err
	}
	if a.MaxAccounts, b, err = decodeU64(b); err != nil {
		return a, nil, err
	}
	if a.NewAccountFee, b, err = decodeU128(b); err != nil {
		return a, nil, err
	}
	if a.RiskReductionThreshold, b, err = decodeU128(b); err != nil {
		return a, nil, err
	}
	if a.MaintenanceFeePerSlot, b, err = decodeU128(b); err != nil {
		return a, nil, err
	}
	if a.MaxCrankStalenessSlots, b, err = decodeU64(b); err != nil {
		return a, nil, err
	}
	if a.LiquidationFeeBps, b, err = decodeU64(b); err != nil {
		return a, nil, err
	}
	if a.LiquidationFeeCap, b, err = decodeU128(b); err != nil {
		return a, nil, err
	}
	if a.LiquidationBufferBps, b, err = decodeU64(b); err != nil {
		return a, nil, err
	}
	if a.MinLiquidationAbs, b, err = decodeU128(b); err != nil {
		return a, nil, err
	}
	return a, b, nil
}

// DecodeInitMarket decodes tag 0's argument bytes (after the tag byte).
func DecodeInitMarket(b []byte) (InitMarketArgs, error) {
	var a InitMarketArgs
	var err error
	if a.Admin, b, err = decodeKey(b); err != nil {
		return a, err
	}
	if a.Mint, b, err = decodeKey(b); err != nil {
		return a, err
	}
	if a.OracleIndex, b, err = decodeKey(b); err != nil {
		return a, err
	}
	if a.OracleCollateral, b, err = decodeKey(b); err != nil {
		return a, err
	}
	if a.MaxStalenessSlots, b, err = decodeU64(b); err != nil {
		return a, err
	}
	if a.ConfBps, b, err = decodeU16(b); err != nil {
		return a, err
	}
	a.RiskParams, _, err = DecodeRiskParams(b)
	return a, err
}

type InitUserArgs struct{ Fee uint64 }

func DecodeInitUser(b []byte) (InitUserArgs, error) {
	fee, _, err := decodeU64(b)
	return InitUserArgs{Fee: fee}, err
}

type InitLPArgs struct {
	MatcherProgram [32]byte
	MatcherCtx     [32]byte
	Fee            uint64
}

func DecodeInitLP(b []byte) (InitLPArgs, error) {
	var a InitLPArgs
	var err error
	if a.MatcherProgram, b, err = decodeKey(b); err != nil {
		return a, err
	}
	if a.MatcherCtx, b, err = decodeKey(b); err != nil {
		return a, err
	}
	a.Fee, _, err = decodeU64(b)
	return a, err
}

type DepositArgs struct {
	Idx    uint16
	Amount uint64
}

func DecodeDeposit(b []byte) (DepositArgs, error) {
	var a DepositArgs
	var err error
	if a.Idx, b, err = decodeU16(b); err != nil {
		return a, err
	}
	a.Amount, _, err = decodeU64(b)
	return a, err
}

type WithdrawArgs struct {
	Idx    uint16
	Amount uint64
}

func DecodeWithdraw(b []byte) (WithdrawArgs, error) {
	var a WithdrawArgs
	var err error
	if a.Idx, b, err = decodeU16(b); err != nil {
		return a, err
	}
	a.Amount, _, err = decodeU64(b)
	return a, err
}

type CrankArgs struct {
	CallerIdx   uint16
	FundingRate int64
	AllowPanic  bool
}

func DecodeCrank(b []byte) (CrankArgs, error) {
	var a CrankArgs
	var err error
	if a.CallerIdx, b, err = decodeU16(b); err != nil {
		return a, err
	}
	if a.FundingRate, b, err = decodeI64(b); err != nil {
		return a, err
	}
	if len(b) < 1 {
		return a, percoerr.New(percoerr.InvalidLayout, "truncated allow_panic argument")
	}
	a.AllowPanic = b[0] != 0
	return a, nil
}

type TradeNoCpiArgs struct {
	LPIdx   uint16
	UserIdx uint16
	Size    fixedpoint.Int128
}

func DecodeTradeNoCpi(b []byte) (TradeNoCpiArgs, error) {
	var a TradeNoCpiArgs
	var err error
	if a.LPIdx, b, err = decodeU16(b); err != nil {
		return a, err
	}
	if a.UserIdx, b, err = decodeU16(b); err != nil {
		return a, err
	}
	a.Size, _, err = decodeI128(b)
	return a, err
}

type TradeCpiArgs struct {
	LPIdx   uint16
	UserIdx uint16
	ReqSize fixedpoint.Int128
}

func DecodeTradeCpi(b []byte) (TradeCpiArgs, error) {
	var a TradeCpiArgs
	var err error
	if a.LPIdx, b, err = decodeU16(b); err != nil {
		return a, err
	}
	if a.UserIdx, b, err = decodeU16(b); err != nil {
		return a, err
	}
	a.ReqSize, _, err = decodeI128(b)
	return a, err
}

type LiquidateArgs struct {
	Idx       uint16
	CloseSize fixedpoint.Int128
}

func DecodeLiquidate(b []byte) (LiquidateArgs, error) {
	var a LiquidateArgs
	var err error
	if a.Idx, b, err = decodeU16(b); err != nil {
		return a, err
	}
	a.CloseSize, _, err = decodeI128(b)
	return a, err
}

type TopUpInsuranceArgs struct{ Amount uint64 }

func DecodeTopUpInsurance(b []byte) (TopUpInsuranceArgs, error) {
	amount, _, err := decodeU64(b)
	return TopUpInsuranceArgs{Amount: amount}, err
}

type SetOracleAuthorityArgs struct{ NewAuthority [32]byte }

func DecodeSetOracleAuthority(b []byte) (SetOracleAuthorityArgs, error) {
	k, _, err := decodeKey(b)
	return SetOracleAuthorityArgs{NewAuthority: k}, err
}

type PushOraclePriceArgs struct {
	PriceE6   uint64
	Timestamp int64
}

func DecodePushOraclePrice(b []byte) (PushOraclePriceArgs, error) {
	var a PushOraclePriceArgs
	var err error
	if a.PriceE6, b, err = decodeU64(b); err != nil {
		return a, err
	}
	a.Timestamp, _, err = decodeI64(b)
	return a, err
}

// DecodeTag splits the tag byte off raw instruction data.
func DecodeTag(data []byte) (Tag, []byte, error) { return decodeTag(data) }

// MatcherCallRequest is the request record the processor writes into a
// matcher's context account before issuing the cross-program call.
type MatcherCallRequest struct {
	ReqID         uint64
	LPAccountID   uint64
	OraclePriceE6 uint64
	ReqSize       fixedpoint.Int128
}

const matcherCallRequestLen = 1 + 8 + 2 + 8 + 8 + 16

// Bytes encodes the matcher call request: MATCHER_CALL_TAG, req_id,
// reserved(u16)=0, lp_account_id, oracle_price_e6, req_size.
func (r MatcherCallRequest) Bytes() []byte {
	out := make([]byte, matcherCallRequestLen)
	out[0] = MatcherCallTag
	binary.LittleEndian.PutUint64(out[1:9], r.ReqID)
	binary.LittleEndian.PutUint16(out[9:11], 0)
	binary.LittleEndian.PutUint64(out[11:19], r.LPAccountID)
	binary.LittleEndian.PutUint64(out[19:27], r.OraclePriceE6)
	sz := r.ReqSize.Bytes()
	copy(out[27:43], sz[:])
	return out
}
