package escrow

import (
	"context"

	"github.com/roach88/diceroll/internal/wager"
)

// Authenticate checks the credential in ctx for id without changing
// anything. Fails with Unauthorized.
func (c *Controller) Authenticate(ctx context.Context, id string) error {
	ident, err := wager.ParseIdentity(id)
	if err != nil {
		return err
	}
	return c.authenticate(ctx, ident)
}

// Session returns the record for (vendor, player). Fails with NotFound.
func (c *Controller) Session(ctx context.Context, vendor, player string) (*wager.Session, error) {
	key, err := wager.NewKey(vendor, player)
	if err != nil {
		return nil, err
	}
	return c.backend.Session(ctx, key.ID())
}

// Sessions lists every record in which id is vendor or player.
func (c *Controller) Sessions(ctx context.Context, id string) ([]*wager.Session, error) {
	ident, err := wager.ParseIdentity(id)
	if err != nil {
		return nil, err
	}
	return c.backend.Sessions(ctx, ident)
}

// Escrow returns the balance currently held for (vendor, player).
func (c *Controller) Escrow(ctx context.Context, vendor, player string) (uint64, error) {
	key, err := wager.NewKey(vendor, player)
	if err != nil {
		return 0, err
	}
	bal, err := c.backend.Balance(ctx, wager.EscrowAccount(key.ID()))
	if err != nil {
		return 0, err
	}
	if bal < 0 {
		return 0, nil
	}
	return uint64(bal), nil
}
