// Package store provides SQLite-backed storage for the diceroll ledger.
//
// Three tables make up the state:
//   - accounts: balances and credential hashes
//   - sessions: one record per (vendor, player) pair
//   - postings: append-only double-entry journal
//
// Every mutation runs inside Atomically, which opens one SQLite transaction,
// stamps each posting with the caller's operation id and logical sequence
// number, and commits only if the callback succeeds. Readers order journal
// rows by seq ASC, id ASC so results are identical across runs.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - One connection: a single writer, and in-memory databases survive
package store
