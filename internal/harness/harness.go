package harness

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/roach88/diceroll/internal/auth"
	"github.com/roach88/diceroll/internal/dice"
	"github.com/roach88/diceroll/internal/escrow"
	"github.com/roach88/diceroll/internal/store"
	"github.com/roach88/diceroll/internal/testutil"
	"github.com/roach88/diceroll/internal/wager"
)

// Operation names accepted by FlowStep.Invoke.
const (
	OpOpenAccount = string(wager.OpOpenAccount)
	OpDeposit     = string(wager.OpDeposit)
	OpWithdraw    = string(wager.OpWithdraw)
	OpSetup       = string(wager.OpSetup)
	OpPlay        = string(wager.OpPlay)
	OpDelete      = string(wager.OpDelete)
)

// Harness executes one scenario.
type Harness struct {
	store *store.Store
	ctl   *escrow.Controller
	clock *testutil.DeterministicClock
	dice  *dice.Fixed
	log   zerolog.Logger
}

// stepArgs is the union of every operation's arguments.
type stepArgs struct {
	ID         string `yaml:"id"`
	Credential string `yaml:"credential"`
	Amount     uint64 `yaml:"amount"`
	Vendor     string `yaml:"vendor"`
	Player     string `yaml:"player"`
	Stake      uint64 `yaml:"stake"`
	Sides      int    `yaml:"sides"`
	VendorSeed int64  `yaml:"vendor_seed"`
}

// Run executes a scenario in a fresh in-memory store and evaluates its
// assertions. An error is returned only when the harness itself could not
// run; scenario failures are reported in Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, zerolog.Nop())
}

// RunWithLogger is Run with controller logging sent to log.
func RunWithLogger(scenario *Scenario, log zerolog.Logger) (*Result, error) {
	st, err := store.OpenMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	rolls := make([]byte, len(scenario.Rolls))
	for i, r := range scenario.Rolls {
		if r < 0 || r > 255 {
			return nil, fmt.Errorf("rolls[%d]: %d is not a byte", i, r)
		}
		rolls[i] = byte(r)
	}

	h := &Harness{
		store: st,
		clock: testutil.NewDeterministicClock(),
		dice:  dice.NewFixed(rolls...),
		log:   log,
	}
	h.ctl = escrow.New(st, auth.Trusted{}, dice.Shared(h.dice),
		escrow.WithSequence(h.clock),
		escrow.WithIDs(escrow.NewCountingGenerator("op")),
		escrow.WithLogger(log),
		escrow.WithCredentialParams(auth.FastParams),
	)

	ctx := context.Background()
	result := NewResult()

	if err := h.seedAccounts(ctx, scenario.Accounts, result); err != nil {
		return nil, fmt.Errorf("failed to seed accounts: %w", err)
	}
	h.executeFlow(ctx, scenario.Flow, result)

	for _, msg := range EvaluateAssertions(ctx, result, scenario.Assertions, st) {
		result.AddError(msg)
	}
	return result, nil
}

// seedAccounts deposits each opening balance. Seeding must succeed.
func (h *Harness) seedAccounts(ctx context.Context, seeds []AccountSeed, result *Result) error {
	for i, seed := range seeds {
		if seed.Balance == 0 {
			continue
		}
		args := map[string]any{"id": seed.ID, "amount": seed.Balance}
		summary, err := h.invoke(ctx, OpDeposit, stepArgs{ID: seed.ID, Amount: seed.Balance})
		if err != nil {
			return fmt.Errorf("accounts[%d] %s: %w", i, seed.ID, err)
		}
		result.AddTrace(TraceEvent{
			Seq:    h.clock.Current(),
			Invoke: OpDeposit,
			Args:   args,
			Case:   CaseOK,
			Result: summary,
		})
	}
	return nil
}

// executeFlow runs every step, recording each in the trace and checking its
// expect clause. A failed expectation does not stop the flow.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) {
	for i, step := range flow {
		var args stepArgs
		if err := remarshal(step.Args, &args); err != nil {
			result.AddError(fmt.Sprintf("flow[%d] %s: decode args: %v", i, step.Invoke, err))
			continue
		}

		summary, err := h.invoke(ctx, step.Invoke, args)
		ev := TraceEvent{
			Seq:    h.clock.Current(),
			Invoke: step.Invoke,
			Args:   step.Args,
			Case:   caseOf(err),
			Result: summary,
		}
		result.AddTrace(ev)

		want := CaseOK
		if step.Expect != nil {
			want = step.Expect.Case
		}
		if ev.Case != want {
			msg := fmt.Sprintf("flow[%d] %s: expected case %s, got %s", i, step.Invoke, want, ev.Case)
			if err != nil {
				msg += ": " + err.Error()
			}
			result.AddError(msg)
			continue
		}
		if step.Expect != nil && len(step.Expect.Result) > 0 {
			expected, err := normalize(step.Expect.Result)
			if err != nil {
				result.AddError(fmt.Sprintf("flow[%d] %s: expected result: %v", i, step.Invoke, err))
				continue
			}
			if !matchSubset(summary, expected) {
				result.AddError(fmt.Sprintf("flow[%d] %s: expected result %v, got %v", i, step.Invoke, expected, summary))
			}
		}

		h.log.Debug().Int("step", i).Str("invoke", step.Invoke).Str("case", ev.Case).Msg("flow step completed")
	}
}

// invoke runs one operation and returns its result summary.
func (h *Harness) invoke(ctx context.Context, op string, a stepArgs) (map[string]any, error) {
	var summary map[string]any
	switch op {
	case OpOpenAccount:
		if err := h.ctl.OpenAccount(ctx, a.ID, a.Credential); err != nil {
			return nil, err
		}
		summary = map[string]any{"account": a.ID}

	case OpDeposit, OpWithdraw:
		move := h.ctl.Deposit
		if op == OpWithdraw {
			move = h.ctl.Withdraw
		}
		bal, err := move(ctx, a.ID, a.Amount)
		if err != nil {
			return nil, err
		}
		summary = map[string]any{"account": a.ID, "balance": bal}

	case OpSetup:
		if err := wager.ValidateSides(a.Sides); err != nil {
			return nil, err
		}
		sess, err := h.ctl.Setup(ctx, escrow.SetupRequest{
			Vendor:     a.Vendor,
			Player:     a.Player,
			Stake:      a.Stake,
			Sides:      uint8(a.Sides),
			VendorSeed: a.VendorSeed,
		})
		if err != nil {
			return nil, err
		}
		summary = map[string]any{"phase": sess.Phase, "escrow": sess.Stake}

	case OpPlay:
		res, err := h.ctl.Play(ctx, a.Vendor, a.Player)
		if err != nil {
			return nil, err
		}
		summary = map[string]any{
			"outcome":     res.Roll.Outcome,
			"vendor_roll": res.Roll.Vendor,
			"player_roll": res.Roll.Player,
			"payout":      res.Payout,
			"status":      res.Session.Status.String(),
		}

	case OpDelete:
		res, err := h.ctl.Delete(ctx, a.Vendor, a.Player)
		if err != nil {
			return nil, err
		}
		summary = map[string]any{"refund": res.Refund}

	default:
		return nil, fmt.Errorf("unknown operation %q", op)
	}
	return normalize(summary)
}

// caseOf names a step's outcome.
func caseOf(err error) string {
	if err == nil {
		return CaseOK
	}
	if code := wager.CodeOf(err); code != "" {
		return string(code)
	}
	return CaseError
}

// remarshal decodes a YAML-shaped map into a typed struct.
func remarshal(in map[string]any, out any) error {
	raw, err := yaml.Marshal(in)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, out)
}

// normalize round-trips v through JSON so that expected (YAML) and actual
// (Go) values compare with the same types.
func normalize(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
