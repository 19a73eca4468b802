package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/diceroll/internal/wager"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testTime = time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

// testOp builds an Op with a readable id.
func testOp(id string, seq int64, kind wager.OpKind, session wager.SessionID) wager.Op {
	return wager.Op{ID: id, Seq: seq, Kind: kind, Session: session, At: testTime}
}

// fund mints amount into acct.
func fund(t *testing.T, s *Store, acct wager.Account, amount uint64, seq int64) {
	t.Helper()
	err := s.Atomically(context.Background(), testOp("fund", seq, wager.OpDeposit, ""), func(tx wager.Tx) error {
		if err := tx.Debit(context.Background(), wager.MintAccount, amount); err != nil {
			return err
		}
		return tx.Credit(context.Background(), acct, amount)
	})
	if err != nil {
		t.Fatalf("fund %s: %v", acct, err)
	}
}

// createTestSession builds an open session for alice→bob.
func createTestSession(t *testing.T, stake uint64) *wager.Session {
	t.Helper()
	sess, err := wager.NewSession(wager.Key{Vendor: "alice", Player: "bob"}, stake, 5, 99, testTime)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return sess
}
