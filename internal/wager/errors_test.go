package wager

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := Errorf(ErrCodeNotFound, "no session for %s", "alice→bob")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrDuplicateSession))
}

func TestError_IsThroughWrapping(t *testing.T) {
	inner := &Error{Code: ErrCodeInsufficientFunds, Account: "alice"}
	wrapped := fmt.Errorf("setup: %w", inner)

	assert.True(t, errors.Is(wrapped, ErrInsufficientFunds))
	assert.Equal(t, ErrCodeInsufficientFunds, CodeOf(wrapped))
}

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"code only", &Error{Code: ErrCodeNotFound}, "NOT_FOUND"},
		{"with message", Errorf(ErrCodeAlreadyResolved, "played"), "ALREADY_RESOLVED: played"},
		{"with session", &Error{Code: ErrCodeNotFound, Message: "gone", Session: "abc"}, "NOT_FOUND: gone (session=abc)"},
		{"with account", &Error{Code: ErrCodeInsufficientFunds, Message: "short", Account: "bob"}, "INSUFFICIENT_FUNDS: short (account=bob)"},
		{"with both", &Error{Code: ErrCodeSettlementFailure, Message: "x", Session: "s", Account: "a"}, "SETTLEMENT_FAILURE: x (session=s, account=a)"},
		{"with cause", Wrap(ErrCodeSettlementFailure, "credit", errors.New("boom")), "SETTLEMENT_FAILURE: credit: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(ErrCodeSettlementFailure, "credit winner", cause)

	assert.True(t, errors.Is(err, cause))
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}

func TestIsRetrySafe(t *testing.T) {
	assert.True(t, IsRetrySafe(ErrInsufficientFunds))
	assert.True(t, IsRetrySafe(ErrDuplicateSession))
	assert.True(t, IsRetrySafe(ErrNotFound))
	assert.False(t, IsRetrySafe(ErrAlreadyResolved))
	assert.False(t, IsRetrySafe(ErrSettlementFailure))
	assert.False(t, IsRetrySafe(errors.New("unknown")))
}
