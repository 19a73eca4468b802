// Package wager provides the core types shared by every diceroll package:
// participant identities, ledger accounts, the session record and the error
// taxonomy.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import wager; wager imports nothing internal.
//
// Key design constraints:
//   - Amounts are uint64 in the smallest unit and never exceed MaxAmount
//   - A session is addressed by the ordered pair (vendor, player) only
//   - All JSON tags use snake_case
package wager
