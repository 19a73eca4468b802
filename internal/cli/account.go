package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/diceroll/internal/wager"
)

// BalanceView is the output of the balance-changing account commands.
type BalanceView struct {
	Account string `json:"account"`
	Balance uint64 `json:"balance"`
}

// NewAccountCommand creates the account command group.
func NewAccountCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Open accounts and move funds",
		Long: `Open accounts and move funds in and out of the ledger.

Deposits are minted from the system account and withdrawals burn back to
it. Every command except open acts as the identity given and needs its
credential (--credential or DICEROLL_CREDENTIAL).`,
	}

	cmd.AddCommand(newOpenCommand(opts))
	cmd.AddCommand(newTransferCommand(opts, "deposit", "Credit an account from the mint"))
	cmd.AddCommand(newTransferCommand(opts, "withdraw", "Debit an account back to the mint"))
	cmd.AddCommand(newBalanceCommand(opts))

	return cmd
}

func newOpenCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "open <identity>",
		Short: "Register an identity with the configured credential",
		Example: `  diceroll account open alice --credential s3cret
  DICEROLL_CREDENTIAL=s3cret diceroll account open alice --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime) error {
				if opts.Config.Credential == "" {
					return NewExitError(ExitCommandError, "a credential is required to open an account")
				}
				if err := rt.ctl.OpenAccount(ctx, args[0], opts.Config.Credential); err != nil {
					return err
				}
				return rt.out.Successf(BalanceView{Account: args[0]}, "Opened account %s", args[0])
			})
		},
	}
}

func newTransferCommand(opts *RootOptions, verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:     verb + " <identity> <amount>",
		Short:   short,
		Example: fmt.Sprintf("  diceroll account %s alice 100", verb),
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return opts.formatter(cmd).Fail(err)
			}
			return opts.run(cmd, func(ctx context.Context, rt *runtime) error {
				move := rt.ctl.Deposit
				if verb == "withdraw" {
					move = rt.ctl.Withdraw
				}
				bal, err := move(ctx, args[0], amount)
				if err != nil {
					return err
				}
				return rt.out.Successf(BalanceView{Account: args[0], Balance: bal},
					"%s: %d (%s %d)", args[0], bal, verb, amount)
			})
		},
	}
}

func newBalanceCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <identity>",
		Short: "Show an account balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime) error {
				bal, err := rt.ctl.Balance(ctx, args[0])
				if err != nil {
					return err
				}
				return rt.out.Successf(BalanceView{Account: args[0], Balance: bal}, "%s: %d", args[0], bal)
			})
		},
	}
}

// parseAmount parses a positive decimal amount.
func parseAmount(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, wager.Wrap(wager.ErrCodeInvalidArgument, fmt.Sprintf("amount %q", s), err)
	}
	return n, nil
}
