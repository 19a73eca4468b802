package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/diceroll/internal/api"
	"github.com/roach88/diceroll/internal/dice"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the wager API over HTTP",
		Long: `Serve the JSON API under /v1 with /health and /metrics alongside.

Callers identify with the X-Diceroll-Identity and X-Diceroll-Credential
headers; reads are limited to the account holder or a participant.
Requests are rate limited per client address (DICEROLL_RATE_LIMIT,
DICEROLL_RATE_BURST); behind a reverse proxy set DICEROLL_PROXY_HEADER
(e.g. X-Forwarded-For). SIGINT or SIGTERM drains in-flight requests for up
to DICEROLL_SHUTDOWN_TIMEOUT.`,
		Example: `  diceroll serve --addr :9090
  DICEROLL_SOURCE=committed DICEROLL_SERVER_SEED=... diceroll serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				opts.Config.Addr = opts.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (DICEROLL_ADDR)")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions, cmd *cobra.Command) error {
	cfg := opts.Config

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	rt, err := opts.open(cmd, reg)
	if err != nil {
		return opts.formatter(cmd).Fail(err)
	}
	defer rt.Close()

	app := api.New(api.Config{
		Controller:  rt.ctl,
		Journal:     rt.store,
		Gatherer:    reg,
		Logger:      rt.log,
		RateLimit:   cfg.RateLimit,
		RateBurst:   cfg.RateBurst,
		ProxyHeader: cfg.ProxyHeader,
	})

	start := rt.log.Info().Str("addr", cfg.Addr).Str("db", cfg.DB).Str("source", cfg.Source)
	if c, ok := rt.provider.(*dice.Committer); ok {
		start = start.Str("commitment", c.Commitment())
	}
	start.Msg("listening")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Listen(cfg.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		rt.log.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down")
		return app.ShutdownWithTimeout(cfg.ShutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		return rt.out.Fail(WrapExitError(ExitCommandError, "serve", err))
	}
	rt.log.Info().Msg("stopped")
	return nil
}
