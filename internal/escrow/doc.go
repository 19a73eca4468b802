// Package escrow runs the wager lifecycle: Setup, Play and Delete.
//
// A Controller owns no state of its own beyond locks and counters. Every
// operation authenticates its caller, takes the per-pair lock, and then does
// all of its reads and writes inside one Backend.Atomically call, so a
// failure at any step leaves balances, records and the journal exactly as
// they were.
//
// Settlement failures are the one case that writes after a rollback: the
// session is marked held in a separate unit so no further Play can run, and
// the vendor recovers the escrow through Delete.
package escrow
