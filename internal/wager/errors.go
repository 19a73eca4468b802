package wager

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes wager failures.
type ErrorCode string

const (
	// ErrCodeDuplicateSession indicates Setup found a live record for the pair.
	ErrCodeDuplicateSession ErrorCode = "DUPLICATE_SESSION"

	// ErrCodeInsufficientFunds indicates a participant cannot cover a debit.
	ErrCodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"

	// ErrCodeNotFound indicates no record (or account) exists for the key.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeAlreadyResolved indicates Play was attempted on a played session.
	ErrCodeAlreadyResolved ErrorCode = "ALREADY_RESOLVED"

	// ErrCodeSettlementFailure indicates the payout could not be applied.
	// Escrow is left intact for manual reconciliation.
	ErrCodeSettlementFailure ErrorCode = "SETTLEMENT_FAILURE"

	// ErrCodeInvalidArgument indicates a request violates a record invariant
	// (zero stake, side count out of range, malformed identity).
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// ErrCodeUnauthorized indicates the caller could not act as the identity.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
)

// Sentinels for errors.Is. Matching is by code, so any *Error carrying the
// same code satisfies errors.Is(err, ErrNotFound).
var (
	ErrDuplicateSession  = &Error{Code: ErrCodeDuplicateSession}
	ErrInsufficientFunds = &Error{Code: ErrCodeInsufficientFunds}
	ErrNotFound          = &Error{Code: ErrCodeNotFound}
	ErrAlreadyResolved   = &Error{Code: ErrCodeAlreadyResolved}
	ErrSettlementFailure = &Error{Code: ErrCodeSettlementFailure}
	ErrInvalidArgument   = &Error{Code: ErrCodeInvalidArgument}
	ErrUnauthorized      = &Error{Code: ErrCodeUnauthorized}
)

// Error is a classified wager failure.
//
// Every failure aborts its operation with no partial mutation; the code tells
// the caller whether a retry is safe (it is for everything except
// ALREADY_RESOLVED and SETTLEMENT_FAILURE).
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Session is the session address involved, if any.
	Session SessionID

	// Account is the ledger account involved, if any.
	Account Account

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	} else {
		msg = fmt.Sprintf("%s: %s", e.Code, msg)
	}
	switch {
	case e.Session != "" && e.Account != "":
		msg = fmt.Sprintf("%s (session=%s, account=%s)", msg, e.Session, e.Account)
	case e.Session != "":
		msg = fmt.Sprintf("%s (session=%s)", msg, e.Session)
	case e.Account != "":
		msg = fmt.Sprintf("%s (account=%s)", msg, e.Account)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Errorf creates an *Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error around an underlying cause.
func Wrap(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the code from err. Returns "" if err carries no *Error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var we *Error
	if errors.As(err, &we) {
		return we.Code
	}
	return ""
}

// IsRetrySafe reports whether repeating the failed call cannot double-apply
// anything. Only codes whose failure left no state behind qualify.
func IsRetrySafe(err error) bool {
	switch CodeOf(err) {
	case ErrCodeDuplicateSession, ErrCodeInsufficientFunds, ErrCodeNotFound, ErrCodeInvalidArgument:
		return true
	default:
		return false
	}
}
