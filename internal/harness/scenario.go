package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one scripted run of the escrow lifecycle.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Rolls are the raw dice bytes handed out in order, vendor's die first.
	Rolls []int `yaml:"rolls,omitempty"`

	// Accounts are funded before the flow runs.
	Accounts []AccountSeed `yaml:"accounts,omitempty"`

	// Flow is the list of operations to execute.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the trace and final ledger state.
	Assertions []Assertion `yaml:"assertions"`
}

// AccountSeed funds an identity before the flow.
type AccountSeed struct {
	ID      string `yaml:"id"`
	Balance uint64 `yaml:"balance"`
}

// FlowStep invokes one controller operation.
type FlowStep struct {
	// Invoke is the operation name (setup, play, ...).
	Invoke string `yaml:"invoke"`

	// Args are the operation arguments.
	Args map[string]any `yaml:"args"`

	// Expect checks the outcome. Nil means the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Case is "ok" or the expected error code.
	Case string `yaml:"case"`

	// Result is matched as a subset of the step's result summary.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	Type string `yaml:"type"`

	// Invoke and Args select trace events (trace_contains, trace_count).
	Invoke string         `yaml:"invoke,omitempty"`
	Args   map[string]any `yaml:"args,omitempty"`
	Case   string         `yaml:"case,omitempty"`

	// Invokes is the expected order (trace_order).
	Invokes []string `yaml:"invokes,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Account, Vendor and Player select a balance (balance, escrow).
	Account string `yaml:"account,omitempty"`
	Vendor  string `yaml:"vendor,omitempty"`
	Player  string `yaml:"player,omitempty"`
	Equals  int64  `yaml:"equals,omitempty"`

	// Table, Where and Expect query a store table (final_state).
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertBalance       = "balance"
	AssertEscrow        = "escrow"
	AssertConserved     = "conserved"
	AssertFinalState    = "final_state"
)

// LoadScenario reads a scenario file, validates it against the schema and
// decodes it.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(path, data)
}

// ParseScenario validates and decodes scenario YAML. name is used in error
// messages.
func ParseScenario(name string, data []byte) (*Scenario, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateSchema(raw); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", name, err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to decode scenario %s: %w", name, err)
	}
	return &scenario, nil
}
