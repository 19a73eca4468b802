package escrow

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/roach88/diceroll/internal/dice"
	"github.com/roach88/diceroll/internal/wager"
)

// SetupRequest carries the vendor's Setup arguments.
type SetupRequest struct {
	Vendor     string
	Player     string
	Stake      uint64
	Sides      uint8
	VendorSeed int64
}

// Setup creates the session for (vendor, player) and moves the vendor's
// stake into escrow. The caller must authenticate as the vendor.
//
// Fails with InvalidArgument (bad identities, zero stake, side count outside
// 1..=254), Unauthorized, DuplicateSession or InsufficientFunds. On any
// failure nothing is persisted.
func (c *Controller) Setup(ctx context.Context, req SetupRequest) (*wager.Session, error) {
	key, err := wager.NewKey(req.Vendor, req.Player)
	if err != nil {
		return nil, err
	}
	if err := c.authenticate(ctx, key.Vendor); err != nil {
		return nil, err
	}

	unlock := c.locks.Lock(key.ID())
	defer unlock()

	op := c.newOp(wager.OpSetup, key.ID())
	sess, err := wager.NewSession(key, req.Stake, req.Sides, req.VendorSeed, op.At)
	if err == nil {
		err = c.backend.Atomically(ctx, op, func(tx wager.Tx) error {
			if _, err := tx.Session(ctx, sess.ID); err == nil {
				return &wager.Error{Code: wager.ErrCodeDuplicateSession, Message: key.String(), Session: sess.ID}
			} else if !errors.Is(err, wager.ErrNotFound) {
				return err
			}
			if err := tx.Debit(ctx, key.Vendor.Account(), sess.Stake); err != nil {
				return err
			}
			if err := tx.Credit(ctx, sess.Escrow(), sess.Stake); err != nil {
				return err
			}
			return tx.InsertSession(ctx, sess)
		})
	}

	c.finish(op, err, func(e *zerolog.Event) {
		e.Str("vendor", string(key.Vendor)).Str("player", string(key.Player)).
			Uint64("stake", req.Stake).Uint8("sides", req.Sides)
	})
	if err != nil {
		return nil, err
	}
	c.metrics.escrowed(sess.Stake)
	return sess, nil
}

// PlayResult is the outcome of a successful Play.
type PlayResult struct {
	Session *wager.Session `json:"session"`
	Roll    dice.Roll      `json:"roll"`
	Payout  uint64         `json:"payout"`
}

// Play collects the player's stake, resolves the dice and settles, all in
// one atomic unit. The caller must authenticate as the player.
//
// Fails with NotFound, AlreadyResolved (played before), InsufficientFunds
// (nothing changes) or SettlementFailure. A settlement failure rolls the
// play back, then marks the session held; only Delete is accepted after.
func (c *Controller) Play(ctx context.Context, vendor, player string) (*PlayResult, error) {
	key, err := wager.NewKey(vendor, player)
	if err != nil {
		return nil, err
	}
	if err := c.authenticate(ctx, key.Player); err != nil {
		return nil, err
	}

	id := key.ID()
	unlock := c.locks.Lock(id)
	defer unlock()

	op := c.newOp(wager.OpPlay, id)
	var (
		res       PlayResult
		settleErr error
	)
	err = c.backend.Atomically(ctx, op, func(tx wager.Tx) error {
		sess, err := tx.Session(ctx, id)
		if err != nil {
			return err
		}
		switch sess.Phase {
		case wager.PhaseSettled:
			return &wager.Error{Code: wager.ErrCodeAlreadyResolved, Message: sess.Status.String(), Session: id}
		case wager.PhaseHeld:
			return &wager.Error{Code: wager.ErrCodeSettlementFailure, Message: "session held: " + sess.HoldReason, Session: id}
		}

		if err := tx.Debit(ctx, key.Player.Account(), sess.Stake); err != nil {
			return err
		}
		if err := tx.Credit(ctx, sess.Escrow(), sess.Stake); err != nil {
			return err
		}

		roll, err := dice.Resolve(sess.Sides, c.dice.SourceFor(sess))
		if err != nil {
			return err
		}

		payout, err := settle(ctx, tx, sess, roll)
		if err != nil {
			settleErr = err
			return err
		}

		applyOutcome(sess, roll, op.At)
		if err := tx.UpdateSession(ctx, sess); err != nil {
			return err
		}
		res = PlayResult{Session: sess, Roll: roll, Payout: payout}
		return nil
	})

	if settleErr != nil && errors.Is(err, wager.ErrSettlementFailure) {
		c.hold(ctx, id, settleErr.Error())
	}

	c.finish(op, err, func(e *zerolog.Event) {
		e.Str("vendor", string(key.Vendor)).Str("player", string(key.Player))
		if err == nil {
			e.Str("outcome", string(res.Roll.Outcome)).
				Uint8("vendor_roll", res.Roll.Vendor).
				Uint8("player_roll", res.Roll.Player).
				Uint64("payout", res.Payout)
		}
	})
	if err != nil {
		return nil, err
	}
	c.metrics.escrowed(res.Session.Stake)
	c.metrics.outcome(res.Roll.Outcome)
	c.metrics.released(res.Payout)
	return &res, nil
}

// hold marks a session held in its own unit. The play has already been
// rolled back, so escrow still holds the vendor's stake.
func (c *Controller) hold(ctx context.Context, id wager.SessionID, reason string) {
	op := c.newOp(wager.OpHold, id)
	err := c.backend.Atomically(ctx, op, func(tx wager.Tx) error {
		sess, err := tx.Session(ctx, id)
		if err != nil {
			return err
		}
		sess.Phase = wager.PhaseHeld
		sess.HoldReason = reason
		return tx.UpdateSession(ctx, sess)
	})
	if err == nil {
		c.metrics.markHeld()
	}
	c.finish(op, err, func(e *zerolog.Event) {
		e.Str("reason", reason)
	})
}

// DeleteResult reports what Delete returned to the vendor.
type DeleteResult struct {
	Session *wager.Session `json:"session"`
	Refund  uint64         `json:"refund"`
}

// Delete releases whatever escrow remains to the vendor and removes the
// record. The caller must authenticate as the vendor.
//
// The refund is the vendor's stake for an unplayed or held session, twice
// the stake after a draw and zero after a finished game. Fails with
// NotFound; a failed credit aborts with SettlementFailure and keeps the
// record.
func (c *Controller) Delete(ctx context.Context, vendor, player string) (*DeleteResult, error) {
	key, err := wager.NewKey(vendor, player)
	if err != nil {
		return nil, err
	}
	if err := c.authenticate(ctx, key.Vendor); err != nil {
		return nil, err
	}

	id := key.ID()
	unlock := c.locks.Lock(id)
	defer unlock()

	op := c.newOp(wager.OpDelete, id)
	var res DeleteResult
	err = c.backend.Atomically(ctx, op, func(tx wager.Tx) error {
		sess, err := tx.Session(ctx, id)
		if err != nil {
			return err
		}
		remaining, err := tx.Balance(ctx, sess.Escrow())
		if err != nil {
			return err
		}
		if remaining != sess.ExpectedEscrow() {
			c.log.Warn().Str("session", string(id)).
				Uint64("escrow", remaining).Uint64("expected", sess.ExpectedEscrow()).
				Msg("escrow differs from record; refunding actual balance")
		}
		if remaining > 0 {
			if err := tx.Debit(ctx, sess.Escrow(), remaining); err != nil {
				return wager.Wrap(wager.ErrCodeSettlementFailure, "release escrow", err)
			}
			if err := tx.Credit(ctx, key.Vendor.Account(), remaining); err != nil {
				return wager.Wrap(wager.ErrCodeSettlementFailure, "refund vendor", err)
			}
		}
		if err := tx.DeleteSession(ctx, id); err != nil {
			return err
		}
		res = DeleteResult{Session: sess, Refund: remaining}
		return nil
	})

	c.finish(op, err, func(e *zerolog.Event) {
		e.Str("vendor", string(key.Vendor)).Str("player", string(key.Player))
		if err == nil {
			e.Uint64("refund", res.Refund)
		}
	})
	if err != nil {
		return nil, err
	}
	c.metrics.released(res.Refund)
	return &res, nil
}
