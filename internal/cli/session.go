package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/diceroll/internal/escrow"
	"github.com/roach88/diceroll/internal/store"
	"github.com/roach88/diceroll/internal/wager"
)

// SessionView pairs a record with the escrow currently held for it.
type SessionView struct {
	Session *wager.Session `json:"session"`
	Escrow  uint64         `json:"escrow"`
}

// SetupOptions holds flags for the setup command.
type SetupOptions struct {
	*RootOptions
	Stake      uint64
	Sides      int
	VendorSeed int64
}

// NewSessionCommand creates the session command group.
func NewSessionCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Set up, play and settle wagers",
		Long: `Manage the wager between a vendor and a player.

A session is addressed by its ordered (vendor, player) pair. setup and
delete act as the vendor, play acts as the player; the configured
credential must belong to that identity.`,
	}

	cmd.AddCommand(newSetupCommand(opts))
	cmd.AddCommand(newPlayCommand(opts))
	cmd.AddCommand(newDeleteCommand(opts))
	cmd.AddCommand(newShowCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newJournalCommand(opts))

	return cmd
}

func newSetupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SetupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "setup <vendor> <player>",
		Short: "Create a session and escrow the vendor's stake",
		Example: `  diceroll session setup alice bob --stake 10 --sides 6
  diceroll session setup alice bob --stake 10 --vendor-seed 42 --format json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Range-check before narrowing to the stored width.
			if err := wager.ValidateSides(opts.Sides); err != nil {
				return opts.formatter(cmd).Fail(err)
			}
			return opts.run(cmd, func(ctx context.Context, rt *runtime) error {
				sess, err := rt.ctl.Setup(ctx, escrow.SetupRequest{
					Vendor:     args[0],
					Player:     args[1],
					Stake:      opts.Stake,
					Sides:      uint8(opts.Sides),
					VendorSeed: opts.VendorSeed,
				})
				if err != nil {
					return err
				}
				return rt.out.Successf(SessionView{Session: sess, Escrow: sess.Stake},
					"%s\n  escrow: %d", describeSession(sess), sess.Stake)
			})
		},
	}

	cmd.Flags().Uint64Var(&opts.Stake, "stake", 0, "amount each participant stakes (required)")
	cmd.Flags().IntVar(&opts.Sides, "sides", 6, "highest face of each die (1..254)")
	cmd.Flags().Int64Var(&opts.VendorSeed, "vendor-seed", 0, "opaque value stored with the session")
	_ = cmd.MarkFlagRequired("stake")

	return cmd
}

func newPlayCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "play <vendor> <player>",
		Short: "Escrow the player's stake, roll and settle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime) error {
				res, err := rt.ctl.Play(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return rt.out.Successf(res, "%s\n  rolled: vendor %d, player %d (%s)\n  payout: %d",
					describeSession(res.Session), res.Roll.Vendor, res.Roll.Player, res.Roll.Outcome, res.Payout)
			})
		},
	}
}

func newDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <vendor> <player>",
		Short: "Refund remaining escrow to the vendor and remove the session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime) error {
				res, err := rt.ctl.Delete(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return rt.out.Successf(res, "Deleted %s\n  refund: %d", res.Session.Key, res.Refund)
			})
		},
	}
}

func newShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <vendor> <player>",
		Short: "Show a session and its escrow",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime) error {
				sess, err := rt.ctl.Session(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				held, err := rt.ctl.Escrow(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return rt.out.Successf(SessionView{Session: sess, Escrow: held},
					"%s\n  escrow: %d", describeSession(sess), held)
			})
		},
	}
}

func newListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <identity>",
		Short: "List sessions in which an identity takes part",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime) error {
				sessions, err := rt.ctl.Sessions(ctx, args[0])
				if err != nil {
					return err
				}
				if opts.Format == "json" {
					return rt.out.Success(sessions)
				}
				if len(sessions) == 0 {
					return rt.out.Success("No sessions.")
				}
				lines := make([]string, len(sessions))
				for i, s := range sessions {
					lines[i] = describeSession(s)
				}
				return rt.out.Success(strings.Join(lines, "\n"))
			})
		},
	}
}

func newJournalCommand(opts *RootOptions) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "journal [<vendor> <player>]",
		Short: "Print ledger postings",
		Long: `Print ledger postings in sequence order, optionally narrowed to one
session and/or one account. Every operation's postings sum to zero.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("accepts 0 or 2 arg(s), received %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, rt *runtime) error {
				var filter store.PostingFilter
				if len(args) == 2 {
					key, err := wager.NewKey(args[0], args[1])
					if err != nil {
						return err
					}
					filter.Session = key.ID()
				}
				if account != "" {
					filter.Account = wager.Account(account)
				}

				postings, err := rt.store.Postings(ctx, filter)
				if err != nil {
					return err
				}
				if opts.Format == "json" {
					return rt.out.Success(postings)
				}
				writePostings(rt.out.Writer, postings)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "only postings to this account")

	return cmd
}

// describeSession renders a one-line summary of a record.
func describeSession(s *wager.Session) string {
	line := fmt.Sprintf("%s stake=%d sides=%d phase=%s", s.Key, s.Stake, s.Sides, s.Phase)
	switch s.Phase {
	case wager.PhaseSettled:
		line += fmt.Sprintf(" status=%s rolls=%d/%d", s.Status, s.VendorRoll, s.PlayerRoll)
	case wager.PhaseHeld:
		line += fmt.Sprintf(" reason=%q", s.HoldReason)
	}
	return line
}

func writePostings(w io.Writer, postings []wager.Posting) {
	if len(postings) == 0 {
		fmt.Fprintln(w, "No postings.")
		return
	}
	for _, p := range postings {
		fmt.Fprintf(w, "%4d  %-12s %-32s %+d\n", p.Seq, p.Kind, p.Account, p.Delta)
	}
}
