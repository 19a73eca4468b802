package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/diceroll/internal/wager"
)

const selectSession = `
	SELECT id, vendor, player, vendor_seed, stake, sides, phase, status, winner,
	       vendor_roll, player_roll, hold_reason, created_at, resolved_at
	FROM sessions`

// Session returns the record at id. Fails with wager.ErrNotFound.
func (s *Store) Session(ctx context.Context, id wager.SessionID) (*wager.Session, error) {
	row := s.db.QueryRowContext(ctx, selectSession+` WHERE id = ?`, string(id))
	return scanSessionRow(row, id)
}

// Sessions returns every record in which id takes part, either as vendor or
// as player, ordered by creation time then address.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) Sessions(ctx context.Context, id wager.Identity) ([]*wager.Session, error) {
	rows, err := s.db.QueryContext(ctx, selectSession+`
		WHERE vendor = ? OR player = ?
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`, string(id), string(id))
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*wager.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// Account returns the named account. Fails with wager.ErrNotFound.
func (s *Store) Account(ctx context.Context, acct wager.Account) (wager.AccountInfo, error) {
	var info wager.AccountInfo
	var name string
	var created int64
	err := s.db.QueryRowContext(ctx, `
		SELECT name, balance, created_at FROM accounts WHERE name = ?
	`, string(acct)).Scan(&name, &info.Balance, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return wager.AccountInfo{}, &wager.Error{Code: wager.ErrCodeNotFound, Account: acct}
	}
	if err != nil {
		return wager.AccountInfo{}, fmt.Errorf("read account: %w", err)
	}
	info.Name = wager.Account(name)
	info.CreatedAt = fromNanos(created)
	return info, nil
}

// Balance returns the balance of acct, or 0 if it does not exist.
func (s *Store) Balance(ctx context.Context, acct wager.Account) (int64, error) {
	var bal int64
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE name = ?`, string(acct)).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return bal, nil
}

// TotalBalance sums every account, system accounts included. Value is
// conserved when this is zero.
func (s *Store) TotalBalance(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(balance), 0) FROM accounts`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum balances: %w", err)
	}
	return total, nil
}

// PostingFilter narrows a journal query. Zero fields match everything.
type PostingFilter struct {
	Session wager.SessionID
	Account wager.Account
}

// Postings returns journal rows matching f.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) Postings(ctx context.Context, f PostingFilter) ([]wager.Posting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, op_id, seq, kind, session, account, delta, at
		FROM postings
		WHERE (? = '' OR session = ?) AND (? = '' OR account = ?)
		ORDER BY seq ASC, id ASC
	`, string(f.Session), string(f.Session), string(f.Account), string(f.Account))
	if err != nil {
		return nil, fmt.Errorf("query postings: %w", err)
	}
	defer rows.Close()

	postings := []wager.Posting{}
	for rows.Next() {
		var p wager.Posting
		var kind, session, account string
		var at int64
		if err := rows.Scan(&p.ID, &p.OpID, &p.Seq, &kind, &session, &account, &p.Delta, &at); err != nil {
			return nil, fmt.Errorf("scan posting: %w", err)
		}
		p.Kind = wager.OpKind(kind)
		p.Session = wager.SessionID(session)
		p.Account = wager.Account(account)
		p.At = fromNanos(at)
		postings = append(postings, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate postings: %w", err)
	}
	return postings, nil
}

// UnbalancedOps returns the ids of operations whose postings do not sum to
// zero. A healthy journal returns an empty slice.
func (s *Store) UnbalancedOps(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT op_id FROM postings
		GROUP BY op_id
		HAVING SUM(delta) != 0
		ORDER BY MIN(seq) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query unbalanced ops: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan op id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate op ids: %w", err)
	}
	return ids, nil
}

// MaxSeq returns the highest journal sequence number, or 0 for an empty
// journal. The controller resumes its clock from here.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM postings`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("read max seq: %w", err)
	}
	return seq, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSessionRow(row *sql.Row, id wager.SessionID) (*wager.Session, error) {
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &wager.Error{Code: wager.ErrCodeNotFound, Session: id}
	}
	return sess, err
}

func scanSession(row rowScanner) (*wager.Session, error) {
	var (
		id, vendor, player, phase, status, winner, holdReason string
		seed, stake, created, resolved                        int64
		sides, vendorRoll, playerRoll                         int
	)
	err := row.Scan(&id, &vendor, &player, &seed, &stake, &sides, &phase, &status, &winner,
		&vendorRoll, &playerRoll, &holdReason, &created, &resolved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &wager.Session{
		ID:         wager.SessionID(id),
		Key:        wager.Key{Vendor: wager.Identity(vendor), Player: wager.Identity(player)},
		VendorSeed: seed,
		Stake:      uint64(stake),
		Sides:      uint8(sides),
		Status:     wager.Status{Kind: wager.StatusKind(status), Winner: wager.Identity(winner)},
		Phase:      wager.Phase(phase),
		VendorRoll: uint8(vendorRoll),
		PlayerRoll: uint8(playerRoll),
		HoldReason: holdReason,
		CreatedAt:  fromNanos(created),
		ResolvedAt: fromNanos(resolved),
	}, nil
}
