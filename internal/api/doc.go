// Package api exposes the escrow controller over HTTP.
//
// Callers name themselves with the X-Diceroll-Identity header and prove it
// with X-Diceroll-Credential. The identity must match the role the route
// acts as: the vendor for setup and delete, the player for play, the account
// owner for deposit and withdraw. Every /v1 route shares a per-identity token
// bucket.
//
// Errors are returned as {"error": {"code": ..., "message": ...}} with the
// status chosen by the wager error code.
package api
