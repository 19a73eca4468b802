package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Invoke: OpDeposit, Args: map[string]any{"id": "alice", "amount": 100}, Case: CaseOK},
		{Seq: 2, Invoke: OpSetup, Args: map[string]any{"vendor": "alice", "player": "bob", "stake": 10}, Case: CaseOK},
		{Seq: 3, Invoke: OpPlay, Args: map[string]any{"vendor": "alice", "player": "bob"}, Case: "INSUFFICIENT_FUNDS"},
		{Seq: 4, Invoke: OpPlay, Args: map[string]any{"vendor": "alice", "player": "bob"}, Case: CaseOK},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Invoke: OpSetup, Args: map[string]any{"stake": 10}}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Invoke: OpPlay, Case: "INSUFFICIENT_FUNDS"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Invoke: OpDeposit}))

	err := assertTraceContains(trace, Assertion{Invoke: OpSetup, Args: map[string]any{"stake": 11}})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Contains(t, err.Error(), "Full trace:")

	assert.Error(t, assertTraceContains(trace, Assertion{Invoke: OpDelete}))
	assert.Error(t, assertTraceContains(trace, Assertion{Invoke: OpSetup, Case: "DUPLICATE_SESSION"}))
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Invokes: []string{OpDeposit, OpSetup, OpPlay}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Invokes: []string{OpDeposit, OpPlay}}))

	err := assertTraceOrder(trace, Assertion{Invokes: []string{OpPlay, OpSetup}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should be before")

	err = assertTraceOrder(trace, Assertion{Invokes: []string{OpSetup, OpDelete}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing operation: delete")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Invoke: OpPlay, Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Invoke: OpDelete, Count: 0}))
	assert.Error(t, assertTraceCount(trace, Assertion{Invoke: OpSetup, Count: 2}))
}

func TestBuildWhereClause(t *testing.T) {
	sql, args, err := buildWhereClause(map[string]any{"vendor": "alice", "phase": "open"})
	require.NoError(t, err)
	assert.Equal(t, "phase = ? AND vendor = ?", sql)
	assert.Equal(t, []any{"open", "alice"}, args)

	sql, args, err = buildWhereClause(nil)
	require.NoError(t, err)
	assert.Empty(t, sql)
	assert.Nil(t, args)

	_, _, err = buildWhereClause(map[string]any{"vendor; DROP TABLE accounts": "x"})
	assert.Error(t, err)
}

func TestStateValuesEqual(t *testing.T) {
	tests := []struct {
		expected any
		actual   any
		want     bool
	}{
		{"open", "open", true},
		{"open", []byte("open"), true},
		{"open", "settled", false},
		{2, int64(2), true},
		{2, int64(3), false},
		{int64(7), int64(7), true},
		{true, int64(1), true},
		{false, int64(0), true},
		{true, int64(0), false},
		{nil, nil, true},
		{nil, "x", false},
		{"2", int64(2), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stateValuesEqual(tt.expected, tt.actual), "%v vs %v", tt.expected, tt.actual)
	}
}

func TestMatchSubset(t *testing.T) {
	actual := map[string]any{
		"outcome": "player",
		"payout":  20.0,
		"roll":    map[string]any{"vendor": 1.0, "player": 4.0},
	}

	assert.True(t, matchSubset(actual, nil))
	assert.True(t, matchSubset(actual, map[string]any{"outcome": "player"}))
	assert.True(t, matchSubset(actual, map[string]any{"roll": map[string]any{"player": 4.0}}))
	assert.False(t, matchSubset(actual, map[string]any{"payout": 10.0}))
	assert.False(t, matchSubset(actual, map[string]any{"refund": 0.0}))
	assert.False(t, matchSubset(actual, map[string]any{"roll": map[string]any{"player": 5.0}}))
}
