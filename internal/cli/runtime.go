package cli

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/roach88/diceroll/internal/auth"
	"github.com/roach88/diceroll/internal/dice"
	"github.com/roach88/diceroll/internal/escrow"
	"github.com/roach88/diceroll/internal/logging"
	"github.com/roach88/diceroll/internal/store"
)

// runtime is the open database and controller shared by one command.
type runtime struct {
	store    *store.Store
	ctl      *escrow.Controller
	provider dice.Provider
	log      zerolog.Logger
	out      *OutputFormatter
}

// open builds the runtime from the resolved configuration. reg is optional;
// when set the controller records Prometheus metrics into it.
func (o *RootOptions) open(cmd *cobra.Command, reg prometheus.Registerer) (*runtime, error) {
	cfg := o.Config

	log, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "configure logging", err)
	}

	provider := o.Provider
	if provider == nil {
		provider, err = cfg.Provider()
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "configure dice", err)
		}
	}

	st, err := store.Open(cfg.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open database", err)
	}

	// Resume sequence numbering where the journal left off.
	seq, err := st.MaxSeq(cmd.Context())
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "read journal", err)
	}

	opts := []escrow.Option{
		escrow.WithSequence(escrow.NewClockAt(seq)),
		escrow.WithLogger(log),
	}
	if o.Params != (auth.Params{}) {
		opts = append(opts, escrow.WithCredentialParams(o.Params))
	}
	if reg != nil {
		opts = append(opts, escrow.WithMetrics(escrow.NewMetrics(reg)))
	}

	log.Debug().
		Str("db", cfg.DB).
		Str("source", cfg.Source).
		Int64("seq", seq).
		Msg("runtime ready")

	return &runtime{
		store:    st,
		ctl:      escrow.New(st, st, provider, opts...),
		provider: provider,
		log:      log,
		out:      o.formatter(cmd),
	}, nil
}

// context returns the command context carrying the configured credential.
func (o *RootOptions) context(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if o.Config.Credential != "" {
		ctx = auth.WithCredential(ctx, o.Config.Credential)
	}
	return ctx
}

func (r *runtime) Close() error {
	return r.store.Close()
}

// run opens a runtime, calls fn and reports its error through the formatter.
func (o *RootOptions) run(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime) error) (err error) {
	rt, err := o.open(cmd, nil)
	if err != nil {
		return o.formatter(cmd).Fail(err)
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil && err == nil {
			err = rt.out.Fail(WrapExitError(ExitCommandError, "close database", cerr))
		}
	}()

	if err := fn(o.context(cmd), rt); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) && exitErr.Reported {
			return err
		}
		return rt.out.Fail(err)
	}
	return nil
}
