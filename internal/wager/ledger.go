package wager

import (
	"context"
	"time"
)

// OpKind names the operation that produced a journal entry.
type OpKind string

const (
	OpOpenAccount OpKind = "open_account"
	OpDeposit     OpKind = "deposit"
	OpWithdraw    OpKind = "withdraw"
	OpSetup       OpKind = "setup"
	OpPlay        OpKind = "play"
	OpHold        OpKind = "hold"
	OpDelete      OpKind = "delete"
)

// Op stamps every posting written inside one atomic unit.
type Op struct {
	ID      string
	Seq     int64
	Kind    OpKind
	Session SessionID
	At      time.Time
}

// Posting is one journal line. Every Op's postings sum to zero.
type Posting struct {
	ID      int64     `json:"id"`
	OpID    string    `json:"op_id"`
	Seq     int64     `json:"seq"`
	Kind    OpKind    `json:"kind"`
	Session SessionID `json:"session,omitempty"`
	Account Account   `json:"account"`
	Delta   int64     `json:"delta"`
	At      time.Time `json:"at"`
}

// AccountInfo is a ledger account as seen by readers.
type AccountInfo struct {
	Name      Account   `json:"name"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// Ledger moves value between accounts.
//
// Debit fails with ErrInsufficientFunds if the account (other than a system
// account) holds less than amount; a missing account holds zero. Credit
// creates the account on first use and fails if the balance would overflow.
type Ledger interface {
	Debit(ctx context.Context, acct Account, amount uint64) error
	Credit(ctx context.Context, acct Account, amount uint64) error
	Balance(ctx context.Context, acct Account) (uint64, error)
}

// Tx is one atomic unit over the ledger and the session records. Nothing
// written through a Tx is visible to others until the unit commits, and
// nothing survives if it does not.
type Tx interface {
	Ledger

	// OpenAccount registers an identity with its credential hash.
	// Fails with ErrInvalidArgument if the account already exists.
	OpenAccount(ctx context.Context, id Identity, credentialHash string) error

	// Session loads a record by address. Fails with ErrNotFound.
	Session(ctx context.Context, id SessionID) (*Session, error)

	// InsertSession stores a new record. Fails with ErrDuplicateSession if
	// the pair already has one.
	InsertSession(ctx context.Context, s *Session) error

	// UpdateSession overwrites the mutable fields of an existing record.
	UpdateSession(ctx context.Context, s *Session) error

	// DeleteSession removes a record together with its escrow account,
	// which must already be empty.
	DeleteSession(ctx context.Context, id SessionID) error
}
