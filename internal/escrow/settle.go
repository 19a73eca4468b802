package escrow

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/diceroll/internal/dice"
	"github.com/roach88/diceroll/internal/wager"
)

// settle pays out a resolved roll inside the Play unit and returns the
// amount paid. A draw moves nothing. A finished game releases the whole pot
// to the winner.
//
// An escrow mismatch or a failed payout is a SettlementFailure; the caller's
// rollback then restores the escrow to the vendor's stake. A failed read of
// the escrow balance is returned as is and leaves the session playable.
func settle(ctx context.Context, tx wager.Tx, s *wager.Session, roll dice.Roll) (uint64, error) {
	pot := s.Pot()
	held, err := tx.Balance(ctx, s.Escrow())
	if err != nil {
		return 0, fmt.Errorf("read escrow: %w", err)
	}
	if held != pot {
		return 0, &wager.Error{
			Code:    wager.ErrCodeSettlementFailure,
			Message: fmt.Sprintf("escrow holds %d, expected %d", held, pot),
			Session: s.ID,
			Account: s.Escrow(),
		}
	}

	status := roll.Status(s.Key)
	if status.IsDraw() {
		return 0, nil
	}

	if err := tx.Debit(ctx, s.Escrow(), pot); err != nil {
		return 0, wager.Wrap(wager.ErrCodeSettlementFailure, "release pot", err)
	}
	if err := tx.Credit(ctx, status.Winner.Account(), pot); err != nil {
		return 0, wager.Wrap(wager.ErrCodeSettlementFailure, "credit winner", err)
	}
	return pot, nil
}

// applyOutcome is the only place a record's status is written after Setup.
// It runs once per session, after settle succeeded.
func applyOutcome(s *wager.Session, roll dice.Roll, at time.Time) {
	s.Status = roll.Status(s.Key)
	s.Phase = wager.PhaseSettled
	s.VendorRoll = roll.Vendor
	s.PlayerRoll = roll.Player
	s.ResolvedAt = at
}
