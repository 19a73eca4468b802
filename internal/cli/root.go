package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/diceroll/internal/auth"
	"github.com/roach88/diceroll/internal/config"
	"github.com/roach88/diceroll/internal/dice"
	"github.com/roach88/diceroll/internal/wager"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	EnvFiles   []string
	DB         string
	Credential string
	Source     string
	LogLevel   string

	// Config is resolved from the environment and flags before any
	// subcommand runs.
	Config config.Config

	// Provider and Params override the configured dice source and the
	// argon2id cost. Zero values use the configuration.
	Provider dice.Provider
	Params   auth.Params
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the diceroll CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "diceroll",
		Version: wager.Version,
		Short:   "diceroll - two-party dice wagers with escrow",
		Long: `Two participants stake equal amounts into escrow, one die is rolled for
each, and the higher roll takes the pot. Balances, sessions and the
posting journal live in a local SQLite database.

Configuration comes from DICEROLL_* environment variables (optionally
loaded from a .env file); flags override them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.resolve(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringSliceVar(&opts.EnvFiles, "env-file", nil, "dotenv files to load (default .env)")
	flags.StringVar(&opts.DB, "db", "", "database path (DICEROLL_DB)")
	flags.StringVar(&opts.Credential, "credential", "", "credential of the acting identity (DICEROLL_CREDENTIAL)")
	flags.StringVar(&opts.Source, "source", "", "dice source: crypto|seeded|committed (DICEROLL_SOURCE)")
	flags.StringVar(&opts.LogLevel, "log-level", "", "log level (DICEROLL_LOG_LEVEL)")

	cmd.AddCommand(NewAccountCommand(opts))
	cmd.AddCommand(NewSessionCommand(opts))
	cmd.AddCommand(NewCommitmentCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// resolve loads the environment configuration and applies flag overrides.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	cfg, err := config.Load(o.EnvFiles...)
	if err != nil {
		return WrapExitError(ExitCommandError, "load configuration", err)
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DB = o.DB
	}
	if flags.Changed("credential") {
		cfg.Credential = o.Credential
	}
	if flags.Changed("source") {
		cfg.Source = o.Source
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.LogLevel
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	o.Config = cfg
	return nil
}

// formatter returns the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
