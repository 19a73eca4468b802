package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/diceroll/internal/wager"
)

// Atomically runs fn inside one SQLite transaction.
//
// Every posting written through the Tx is stamped with op. The transaction
// commits only if fn returns nil; any error (or a cancelled ctx) rolls back
// every balance, session and journal change made by fn.
func (s *Store) Atomically(ctx context.Context, op wager.Op, fn func(wager.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", op.Kind, err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(&sqlTx{tx: tx, op: op}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op.Kind, err)
	}
	return nil
}

// sqlTx implements wager.Tx over a *sql.Tx.
type sqlTx struct {
	tx *sql.Tx
	op wager.Op
}

var _ wager.Tx = (*sqlTx)(nil)

func (t *sqlTx) balance(ctx context.Context, acct wager.Account) (int64, error) {
	var bal int64
	err := t.tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE name = ?`, string(acct)).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance %s: %w", acct, err)
	}
	return bal, nil
}

// Balance implements wager.Ledger. System accounts report zero when negative.
func (t *sqlTx) Balance(ctx context.Context, acct wager.Account) (uint64, error) {
	bal, err := t.balance(ctx, acct)
	if err != nil {
		return 0, err
	}
	if bal < 0 {
		return 0, nil
	}
	return uint64(bal), nil
}

// Debit implements wager.Ledger.
func (t *sqlTx) Debit(ctx context.Context, acct wager.Account, amount uint64) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	bal, err := t.balance(ctx, acct)
	if err != nil {
		return err
	}
	if !acct.IsSystem() && uint64(bal) < amount {
		return &wager.Error{
			Code:    wager.ErrCodeInsufficientFunds,
			Message: fmt.Sprintf("balance %d, need %d", bal, amount),
			Session: t.op.Session,
			Account: acct,
		}
	}
	if acct.IsSystem() && bal < math.MinInt64+int64(amount) {
		return wager.Errorf(wager.ErrCodeInvalidArgument, "debit of %d underflows %s", amount, acct)
	}
	return t.apply(ctx, acct, -int64(amount))
}

// Credit implements wager.Ledger.
func (t *sqlTx) Credit(ctx context.Context, acct wager.Account, amount uint64) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	bal, err := t.balance(ctx, acct)
	if err != nil {
		return err
	}
	if bal > math.MaxInt64-int64(amount) {
		return &wager.Error{
			Code:    wager.ErrCodeInvalidArgument,
			Message: fmt.Sprintf("credit of %d overflows balance %d", amount, bal),
			Session: t.op.Session,
			Account: acct,
		}
	}
	return t.apply(ctx, acct, int64(amount))
}

// apply moves the balance and journals the change.
func (t *sqlTx) apply(ctx context.Context, acct wager.Account, delta int64) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO accounts (name, balance, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET balance = balance + excluded.balance
	`, string(acct), delta, toNanos(t.op.At))
	if err != nil {
		return fmt.Errorf("write balance %s: %w", acct, err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO postings (op_id, seq, kind, session, account, delta, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		t.op.ID,
		t.op.Seq,
		string(t.op.Kind),
		string(t.op.Session),
		string(acct),
		delta,
		toNanos(t.op.At),
	)
	if err != nil {
		return fmt.Errorf("write posting %s: %w", acct, err)
	}
	return nil
}

// OpenAccount implements wager.Tx. An account created implicitly by a
// deposit may be claimed once by setting its credential.
func (t *sqlTx) OpenAccount(ctx context.Context, id wager.Identity, credentialHash string) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO accounts (name, credential, balance, created_at)
		VALUES (?, ?, 0, ?)
		ON CONFLICT(name) DO UPDATE SET credential = excluded.credential
		WHERE accounts.credential = ''
	`, string(id), credentialHash, toNanos(t.op.At))
	if err != nil {
		return fmt.Errorf("open account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("open account: rows affected: %w", err)
	}
	if n == 0 {
		return &wager.Error{Code: wager.ErrCodeInvalidArgument, Message: "account already exists", Account: id.Account()}
	}
	return nil
}

// Session implements wager.Tx.
func (t *sqlTx) Session(ctx context.Context, id wager.SessionID) (*wager.Session, error) {
	row := t.tx.QueryRowContext(ctx, selectSession+` WHERE id = ?`, string(id))
	return scanSessionRow(row, id)
}

// InsertSession implements wager.Tx.
func (t *sqlTx) InsertSession(ctx context.Context, s *wager.Session) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO sessions
		(id, vendor, player, vendor_seed, stake, sides, phase, status, winner,
		 vendor_roll, player_roll, hold_reason, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(s.ID),
		string(s.Vendor()),
		string(s.Player()),
		s.VendorSeed,
		int64(s.Stake),
		int(s.Sides),
		string(s.Phase),
		string(s.Status.Kind),
		string(s.Status.Winner),
		int(s.VendorRoll),
		int(s.PlayerRoll),
		s.HoldReason,
		toNanos(s.CreatedAt),
		toNanos(s.ResolvedAt),
	)
	if isConstraint(err) {
		return &wager.Error{Code: wager.ErrCodeDuplicateSession, Message: s.Key.String(), Session: s.ID}
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// UpdateSession implements wager.Tx. Participants, stake, sides and seed
// are immutable and not written.
func (t *sqlTx) UpdateSession(ctx context.Context, s *wager.Session) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE sessions SET
			phase = ?, status = ?, winner = ?, vendor_roll = ?, player_roll = ?,
			hold_reason = ?, resolved_at = ?
		WHERE id = ?
	`,
		string(s.Phase),
		string(s.Status.Kind),
		string(s.Status.Winner),
		int(s.VendorRoll),
		int(s.PlayerRoll),
		s.HoldReason,
		toNanos(s.ResolvedAt),
		string(s.ID),
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return requireRow(res, s.ID)
}

// DeleteSession implements wager.Tx.
func (t *sqlTx) DeleteSession(ctx context.Context, id wager.SessionID) error {
	escrow := wager.EscrowAccount(id)
	bal, err := t.balance(ctx, escrow)
	if err != nil {
		return err
	}
	if bal != 0 {
		return &wager.Error{
			Code:    wager.ErrCodeSettlementFailure,
			Message: fmt.Sprintf("escrow still holds %d", bal),
			Session: id,
			Account: escrow,
		}
	}

	res, err := t.tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := requireRow(res, id); err != nil {
		return err
	}

	if _, err := t.tx.ExecContext(ctx, `DELETE FROM accounts WHERE name = ?`, string(escrow)); err != nil {
		return fmt.Errorf("delete escrow account: %w", err)
	}
	return nil
}

func checkAmount(amount uint64) error {
	if amount == 0 || amount > math.MaxInt64 {
		return wager.Errorf(wager.ErrCodeInvalidArgument, "amount %d outside 1..%d", amount, int64(math.MaxInt64))
	}
	return nil
}

func requireRow(res sql.Result, id wager.SessionID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return &wager.Error{Code: wager.ErrCodeNotFound, Session: id}
	}
	return nil
}

func isConstraint(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
