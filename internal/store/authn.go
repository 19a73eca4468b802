package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/diceroll/internal/auth"
	"github.com/roach88/diceroll/internal/wager"
)

// Authenticate checks the credential carried in ctx against the hash stored
// for id. Missing accounts, unclaimed accounts and wrong credentials all fail
// with wager.ErrUnauthorized.
func (s *Store) Authenticate(ctx context.Context, id wager.Identity) error {
	presented, ok := auth.CredentialFrom(ctx)
	if !ok {
		return &wager.Error{Code: wager.ErrCodeUnauthorized, Message: "no credential presented", Account: id.Account()}
	}

	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT credential FROM accounts WHERE name = ?`, string(id)).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && stored == "") {
		return &wager.Error{Code: wager.ErrCodeUnauthorized, Message: "unknown account", Account: id.Account()}
	}
	if err != nil {
		return fmt.Errorf("read credential: %w", err)
	}

	match, err := auth.Verify(presented, stored)
	if err != nil {
		return fmt.Errorf("verify credential: %w", err)
	}
	if !match {
		return &wager.Error{Code: wager.ErrCodeUnauthorized, Message: "credential mismatch", Account: id.Account()}
	}
	return nil
}
