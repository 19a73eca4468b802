package escrow

import (
	"context"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/roach88/diceroll/internal/auth"
	"github.com/roach88/diceroll/internal/dice"
	"github.com/roach88/diceroll/internal/wager"
)

// Backend is the ledger and record storage the controller runs on.
// Implemented by *store.Store.
type Backend interface {
	// Atomically runs fn as one all-or-nothing unit stamped with op.
	Atomically(ctx context.Context, op wager.Op, fn func(wager.Tx) error) error

	Session(ctx context.Context, id wager.SessionID) (*wager.Session, error)
	Sessions(ctx context.Context, id wager.Identity) ([]*wager.Session, error)
	Balance(ctx context.Context, acct wager.Account) (int64, error)
}

// Authenticator confirms the caller may act as id. It must not block on the
// Backend's write transaction; the controller calls it before Atomically.
type Authenticator interface {
	Authenticate(ctx context.Context, id wager.Identity) error
}

// Controller runs the escrow lifecycle.
//
// Thread-safety: all methods are safe for concurrent use. Operations on the
// same (vendor, player) pair are serialised; different pairs only contend
// on the Backend.
type Controller struct {
	backend Backend
	authn   Authenticator
	dice    dice.Provider

	clock   quartz.Clock
	seq     Sequencer
	ids     IDGenerator
	log     zerolog.Logger
	metrics *Metrics
	params  auth.Params

	locks *keyedMutex
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the wall clock used for record timestamps.
// Default: quartz.NewReal().
func WithClock(c quartz.Clock) Option {
	return func(ctl *Controller) {
		ctl.clock = c
	}
}

// Sequencer issues the logical sequence numbers stamped on operations.
// *Clock is the production implementation.
type Sequencer interface {
	Next() int64
	Current() int64
}

// WithSequence sets the logical clock. Use NewClockAt(store.MaxSeq) to
// resume numbering after a restart.
func WithSequence(c Sequencer) Option {
	return func(ctl *Controller) {
		ctl.seq = c
	}
}

// WithIDs sets the operation id generator. Default: UUIDv7Generator.
func WithIDs(g IDGenerator) Option {
	return func(ctl *Controller) {
		ctl.ids = g
	}
}

// WithLogger sets the logger. Default: disabled.
func WithLogger(l zerolog.Logger) Option {
	return func(ctl *Controller) {
		ctl.log = l
	}
}

// WithMetrics enables Prometheus counters.
func WithMetrics(m *Metrics) Option {
	return func(ctl *Controller) {
		ctl.metrics = m
	}
}

// WithCredentialParams sets the argon2id cost used by OpenAccount.
// Default: auth.DefaultParams.
func WithCredentialParams(p auth.Params) Option {
	return func(ctl *Controller) {
		ctl.params = p
	}
}

// New creates a Controller. The dice provider decides which byte stream
// resolves each session.
func New(b Backend, authn Authenticator, provider dice.Provider, opts ...Option) *Controller {
	c := &Controller{
		backend: b,
		authn:   authn,
		dice:    provider,
		clock:   quartz.NewReal(),
		seq:     NewClock(),
		ids:     UUIDv7Generator{},
		log:     zerolog.Nop(),
		params:  auth.DefaultParams,
		locks:   newKeyedMutex(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// newOp stamps a new operation.
func (c *Controller) newOp(kind wager.OpKind, session wager.SessionID) wager.Op {
	return wager.Op{
		ID:      c.ids.Generate(),
		Seq:     c.seq.Next(),
		Kind:    kind,
		Session: session,
		At:      c.clock.Now("escrow", string(kind)).UTC(),
	}
}

func (c *Controller) authenticate(ctx context.Context, id wager.Identity) error {
	if err := c.authn.Authenticate(ctx, id); err != nil {
		if wager.CodeOf(err) == "" {
			return wager.Wrap(wager.ErrCodeUnauthorized, string(id), err)
		}
		return err
	}
	return nil
}

// finish records metrics and logs the outcome of op.
func (c *Controller) finish(op wager.Op, err error, ev func(*zerolog.Event)) {
	c.metrics.observe(op.Kind, err)

	var e *zerolog.Event
	if err != nil {
		e = c.log.Warn().Err(err).Str("code", string(wager.CodeOf(err)))
	} else {
		e = c.log.Info()
	}
	e = e.Str("op", string(op.Kind)).Str("op_id", op.ID).Int64("seq", op.Seq)
	if op.Session != "" {
		e = e.Str("session", string(op.Session))
	}
	if ev != nil {
		ev(e)
	}
	if err != nil {
		e.Msg("operation failed")
		return
	}
	e.Msg("operation committed")
}
