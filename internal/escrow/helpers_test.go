package escrow

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/roach88/diceroll/internal/auth"
	"github.com/roach88/diceroll/internal/dice"
	"github.com/roach88/diceroll/internal/store"
	"github.com/roach88/diceroll/internal/wager"
)

var testNow = time.Date(2030, 3, 4, 5, 6, 7, 0, time.UTC)

type harness struct {
	ctl     *Controller
	store   *store.Store
	metrics *Metrics
	clock   *quartz.Mock
}

// newTestController builds a controller over an in-memory store that trusts
// every caller and resolves from src.
func newTestController(t *testing.T, src dice.Source, opts ...Option) *harness {
	t.Helper()
	return newTestControllerWith(t, auth.Trusted{}, dice.Shared(src), opts...)
}

func newTestControllerWith(t *testing.T, authn Authenticator, provider dice.Provider, opts ...Option) *harness {
	t.Helper()

	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	if authn == nil {
		authn = s
	}

	mClock := quartz.NewMock(t)
	mClock.Set(testNow)
	metrics := NewMetrics(prometheus.NewRegistry())

	base := []Option{
		WithClock(mClock),
		WithIDs(NewCountingGenerator("op")),
		WithMetrics(metrics),
		WithCredentialParams(auth.FastParams),
	}
	ctl := New(s, authn, provider, append(base, opts...)...)
	return &harness{ctl: ctl, store: s, metrics: metrics, clock: mClock}
}

func (h *harness) fund(t *testing.T, id string, amount uint64) {
	t.Helper()
	_, err := h.ctl.Deposit(context.Background(), id, amount)
	require.NoError(t, err)
}

func (h *harness) balance(t *testing.T, acct wager.Account) int64 {
	t.Helper()
	bal, err := h.store.Balance(context.Background(), acct)
	require.NoError(t, err)
	return bal
}

func (h *harness) escrow(t *testing.T, vendor, player string) int64 {
	t.Helper()
	key, err := wager.NewKey(vendor, player)
	require.NoError(t, err)
	return h.balance(t, wager.EscrowAccount(key.ID()))
}

// requireConserved asserts that no value was created or destroyed: all
// balances (mint included) sum to zero and every op's postings balance.
func (h *harness) requireConserved(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	total, err := h.store.TotalBalance(ctx)
	require.NoError(t, err)
	require.Zero(t, total, "balances must sum to zero")

	ops, err := h.store.UnbalancedOps(ctx)
	require.NoError(t, err)
	require.Empty(t, ops, "every operation must post to zero")
}

func (h *harness) setup(t *testing.T, stake uint64, sides uint8) *wager.Session {
	t.Helper()
	sess, err := h.ctl.Setup(context.Background(), SetupRequest{
		Vendor: "alice", Player: "bob", Stake: stake, Sides: sides, VendorSeed: 7,
	})
	require.NoError(t, err)
	return sess
}
