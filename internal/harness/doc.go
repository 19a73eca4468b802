// Package harness runs wager scenarios end to end against a real controller.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: player_wins
//	description: "Player out-rolls the vendor and takes the pot"
//	rolls: [1, 4]
//	accounts:
//	  - id: alice
//	    balance: 100
//	  - id: bob
//	    balance: 100
//	flow:
//	  - invoke: setup
//	    args: { vendor: alice, player: bob, stake: 10, sides: 5 }
//	  - invoke: play
//	    args: { vendor: alice, player: bob }
//	    expect:
//	      case: ok
//	      result: { outcome: player, payout: 20 }
//	assertions:
//	  - type: balance
//	    account: bob
//	    equals: 110
//	  - type: conserved
//
// Every file is checked against an embedded CUE schema before it is decoded,
// so typos and missing fields fail with a position rather than a surprise.
//
// # Steps
//
// invoke names a controller operation: open_account, deposit, withdraw,
// setup, play or delete. A step's case is "ok" on success, the wager error
// code on a classified failure and "ERROR" otherwise. Without an expect
// clause a step must succeed.
//
// # Assertion Types
//
//   - trace_contains: an invocation with the given args (and case) occurred
//   - trace_order: invocations occurred in the given order
//   - trace_count: an operation occurred exactly N times
//   - balance: an identity's balance equals N
//   - escrow: the (vendor, player) escrow holds N
//   - conserved: all balances sum to zero and every operation posts to zero
//   - final_state: one row of accounts, sessions or postings matches
//
// # Deterministic Execution
//
// Each scenario runs in a fresh in-memory store, with scripted dice, counting
// operation ids and a testutil.DeterministicClock for sequence numbers, so
// the trace is byte-identical across runs and can be compared to golden
// files under testdata/golden.
package harness
