package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "one setup"
flow:
  - invoke: setup
    args: { vendor: alice, player: bob, stake: 1, sides: 1 }
assertions:
  - type: conserved
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario("minimal", []byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	require.Len(t, s.Flow, 1)
	assert.Equal(t, OpSetup, s.Flow[0].Invoke)
	assert.Equal(t, "alice", s.Flow[0].Args["vendor"])
	assert.Nil(t, s.Flow[0].Expect)
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, AssertConserved, s.Assertions[0].Type)
}

func TestLoadScenario_Testdata(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		s, err := LoadScenario(f)
		require.NoError(t, err, f)
		assert.NotEmpty(t, s.Flow, f)
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_SchemaRejects(t *testing.T) {
	tests := map[string]string{
		"missing description": `
name: x
flow: [{invoke: play, args: {}}]
assertions: [{type: conserved}]
`,
		"bad name": `
name: Has Spaces
description: d
flow: [{invoke: play, args: {}}]
assertions: [{type: conserved}]
`,
		"unknown operation": `
name: x
description: d
flow: [{invoke: reroll, args: {}}]
assertions: [{type: conserved}]
`,
		"empty flow": `
name: x
description: d
flow: []
assertions: [{type: conserved}]
`,
		"roll out of range": `
name: x
description: d
rolls: [256]
flow: [{invoke: play, args: {}}]
assertions: [{type: conserved}]
`,
		"negative opening balance": `
name: x
description: d
accounts: [{id: alice, balance: -1}]
flow: [{invoke: play, args: {}}]
assertions: [{type: conserved}]
`,
		"unknown top-level field": `
name: x
description: d
flows: []
flow: [{invoke: play, args: {}}]
assertions: [{type: conserved}]
`,
		"balance without equals": `
name: x
description: d
flow: [{invoke: play, args: {}}]
assertions: [{type: balance, account: alice}]
`,
		"final_state on unknown table": `
name: x
description: d
flow: [{invoke: play, args: {}}]
assertions: [{type: final_state, table: users, expect: {a: 1}}]
`,
		"expect without case": `
name: x
description: d
flow: [{invoke: play, args: {}, expect: {result: {payout: 1}}}]
assertions: [{type: conserved}]
`,
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseScenario(name, []byte(doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
		})
	}
}

func TestParseScenario_MalformedYAML(t *testing.T) {
	_, err := ParseScenario("bad", []byte("name: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0o600))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)
}
