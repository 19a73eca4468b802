// Package dice resolves a wager from two die rolls.
//
// Resolution is a pure function of the side count and the bytes drawn from a
// Source. Production uses Crypto; tests and scenarios script the bytes with
// Fixed; Committed derives them from a server seed whose commitment is
// published ahead of play, so any roll can be re-derived with Verify.
package dice
