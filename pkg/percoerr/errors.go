// Package percoerr defines the wire-surfaced error codes Percolator
// instructions can fail with and a Go error type that carries one.
package percoerr

import (
	"errors"
	"fmt"
)

// Code is the small integer error code surfaced to callers, mirroring
// the PercolatorError enum of the original program.
type Code uint32

const (
	InvalidMagic Code = iota
	InvalidVersion
	InvalidLayout
	AlreadyInitialized
	NotInitialized
	UserTableFull
	UserNotFound
	MathOverflow
	OracleStale
	OracleInvalid
	InvalidAccountOwner
	InvalidPda
	ExpectedSigner
	ExpectedWritable
	AdminBurned
	MatcherAbiInvalid
	MatcherIdentityMismatch
	EngineUnauthorized
	CrankStale
	RiskGateActive
	InsufficientMargin
)

var names = map[Code]string{
	InvalidMagic:            "InvalidMagic",
	InvalidVersion:          "InvalidVersion",
	InvalidLayout:           "InvalidLayout",
	AlreadyInitialized:      "AlreadyInitialized",
	NotInitialized:          "NotInitialized",
	UserTableFull:           "UserTableFull",
	UserNotFound:            "UserNotFound",
	MathOverflow:            "MathOverflow",
	OracleStale:             "OracleStale",
	OracleInvalid:           "OracleInvalid",
	InvalidAccountOwner:     "InvalidAccountOwner",
	InvalidPda:              "InvalidPda",
	ExpectedSigner:          "ExpectedSigner",
	ExpectedWritable:        "ExpectedWritable",
	AdminBurned:             "AdminBurned",
	MatcherAbiInvalid:       "MatcherAbiInvalid",
	MatcherIdentityMismatch: "MatcherIdentityMismatch",
	EngineUnauthorized:      "EngineUnauthorized",
	CrankStale:              "CrankStale",
	RiskGateActive:          "RiskGateActive",
	InsufficientMargin:      "InsufficientMargin",
}

func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("Code(%d)", uint32(c))
}

// Error is the error type every Percolator-facing function returns.
// It always carries a wire Code so a caller can distinguish a client
// bug (validation/authorization) from a policy denial (engine) without
// string-matching.
type Error struct {
	Code  Code
	Msg   string
	Cause error
}

func New(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

func Wrap(code Code, cause error) *Error {
	return &Error{Code: code, Msg: cause.Error(), Cause: cause}
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether err carries the given wire code.
func Is(err error, code Code) bool {
	code2, ok := CodeOf(err)
	return ok && code2 == code
}

// CodeOf extracts the wire code from err, if err (or something it
// wraps) is a *Error.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}
