package escrow

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/roach88/diceroll/internal/auth"
	"github.com/roach88/diceroll/internal/wager"
)

// OpenAccount registers id with a credential. The credential is stored as an
// argon2id hash; the plain value is never persisted.
func (c *Controller) OpenAccount(ctx context.Context, id, credential string) error {
	ident, err := wager.ParseIdentity(id)
	if err != nil {
		return err
	}
	hash, err := auth.Hash(credential, c.params)
	if err != nil {
		return err
	}

	op := c.newOp(wager.OpOpenAccount, "")
	err = c.backend.Atomically(ctx, op, func(tx wager.Tx) error {
		return tx.OpenAccount(ctx, ident, hash)
	})
	c.finish(op, err, func(e *zerolog.Event) {
		e.Str("account", string(ident))
	})
	return err
}

// Deposit mints amount into id's account and returns the new balance.
// The caller must authenticate as id.
func (c *Controller) Deposit(ctx context.Context, id string, amount uint64) (uint64, error) {
	return c.transfer(ctx, wager.OpDeposit, id, amount, wager.MintAccount, true)
}

// Withdraw burns amount from id's account and returns the new balance.
// Fails with InsufficientFunds if the account holds less.
func (c *Controller) Withdraw(ctx context.Context, id string, amount uint64) (uint64, error) {
	return c.transfer(ctx, wager.OpWithdraw, id, amount, wager.MintAccount, false)
}

// transfer moves amount between id and counter. inbound credits id.
func (c *Controller) transfer(ctx context.Context, kind wager.OpKind, id string, amount uint64, counter wager.Account, inbound bool) (uint64, error) {
	ident, err := wager.ParseIdentity(id)
	if err != nil {
		return 0, err
	}
	if err := c.authenticate(ctx, ident); err != nil {
		return 0, err
	}

	acct := ident.Account()
	from, to := counter, acct
	if !inbound {
		from, to = acct, counter
	}

	op := c.newOp(kind, "")
	var balance uint64
	err = c.backend.Atomically(ctx, op, func(tx wager.Tx) error {
		if err := tx.Debit(ctx, from, amount); err != nil {
			return err
		}
		if err := tx.Credit(ctx, to, amount); err != nil {
			return err
		}
		var berr error
		balance, berr = tx.Balance(ctx, acct)
		return berr
	})
	c.finish(op, err, func(e *zerolog.Event) {
		e.Str("account", string(ident)).Uint64("amount", amount)
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// Balance returns id's balance.
func (c *Controller) Balance(ctx context.Context, id string) (uint64, error) {
	ident, err := wager.ParseIdentity(id)
	if err != nil {
		return 0, err
	}
	bal, err := c.backend.Balance(ctx, ident.Account())
	if err != nil {
		return 0, err
	}
	if bal < 0 {
		return 0, nil
	}
	return uint64(bal), nil
}
