// Package api is the devnet harness surface: a thin HTTP/WebSocket
// front end over one in-process slab, serving Percolator's
// instruction/account/engine-state model.
package api

// AccountRef names one account position an instruction call supplies:
// its 32-byte key, hex-encoded, and whether the caller is presenting
// it as a signer. Executable/owner shape (used only by the two
// external-account positions in TradeCpi, which this harness does not
// expose — see server.go) is not represented here.
type AccountRef struct {
	Key    string `json:"key"`
	Signer bool   `json:"signer,omitempty"`
}

// InstructionRequest is the POST /api/v1/instruction body: a wire tag,
// its little-endian argument bytes (hex), and the account list in
// wire order for that tag.
type InstructionRequest struct {
	Tag      byte         `json:"tag"`
	Data     string       `json:"data"` // hex, tag byte excluded
	Accounts []AccountRef `json:"accounts"`
}

// InstructionResponse reports the outcome of one applied instruction.
type InstructionResponse struct {
	Status string `json:"status"` // "applied" or "rejected"
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
	Slot   uint64 `json:"slot"`
}

// EngineStateInfo mirrors slab.EngineState for JSON consumers.
type EngineStateInfo struct {
	InsuranceFund     string `json:"insuranceFund"`
	OraclePriceE6     uint64 `json:"oraclePriceE6"`
	OracleTimestamp   int64  `json:"oracleTimestamp"`
	LastCrankSlot     uint64 `json:"lastCrankSlot"`
	TotalNotional     string `json:"totalNotionalVolume"`
	TotalTradeCount   uint64 `json:"totalTradeCount"`
	TotalLiqCount     uint64 `json:"totalLiquidationCount"`
	LPSumAbs          string `json:"lpSumAbs"`
	LPMaxAbs          string `json:"lpMaxAbs"`
	RiskMetric        string `json:"riskMetric"`
}

// AccountInfo mirrors one slab.AccountRecord for JSON consumers.
type AccountInfo struct {
	Index           uint16 `json:"index"`
	Used            bool   `json:"used"`
	Kind            string `json:"kind"`
	Owner           string `json:"owner"`
	Balance         uint64 `json:"collateralBalance"`
	PositionSize    string `json:"positionSize"`
	AvgEntryPriceE6 uint64 `json:"avgEntryPriceE6"`
	RealizedPnl     string `json:"realizedPnl"`
	Nonce           uint64 `json:"nonce"`
}

// WSSubscribeRequest is sent by a client to subscribe to channels,
// e.g. ["accounts", "engine"].
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// AccountUpdate is the message shape for an "accounts" channel. The
// server does not broadcast it; only EngineUpdate is sent.
type AccountUpdate struct {
	Type    string      `json:"type"` // "account"
	Slot    uint64      `json:"slot"`
	Account AccountInfo `json:"account"`
}

// EngineUpdate is broadcast on the "engine" channel after any
// instruction that mutates engine state (trades, crank, liquidation).
type EngineUpdate struct {
	Type  string          `json:"type"` // "engine"
	Slot  uint64          `json:"slot"`
	State EngineStateInfo `json:"state"`
}

// ErrorResponse is returned for all HTTP errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
