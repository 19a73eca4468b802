package wager

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdentity_Valid(t *testing.T) {
	for _, raw := range []string{"alice", "Bob_42", "vendor.eu-1", "zoë"} {
		id, err := ParseIdentity(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, raw, id.String())
	}
}

func TestParseIdentity_NormalizesNFC(t *testing.T) {
	// "e" + combining acute accent vs precomposed "é"
	decomposed, err := ParseIdentity("cafe\u0301")
	require.NoError(t, err)
	composed, err := ParseIdentity("caf\u00e9")
	require.NoError(t, err)

	assert.Equal(t, composed, decomposed)
}

func TestParseIdentity_Rejects(t *testing.T) {
	tests := map[string]string{
		"empty":    "",
		"space":    "al ice",
		"tab":      "al\tice",
		"null":     "al\x00ice",
		"slash":    "escrow/abc",
		"bad utf8": "\xff\xfe",
		"too long": strings.Repeat("a", MaxIdentityLength+1),
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseIdentity(raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestParseIdentity_MaxLengthAccepted(t *testing.T) {
	_, err := ParseIdentity(strings.Repeat("é", MaxIdentityLength))
	assert.NoError(t, err)
}

func TestAccount_EscrowNamespace(t *testing.T) {
	id := MustIdentity("alice")
	assert.Equal(t, Account("alice"), id.Account())
	assert.False(t, id.Account().IsEscrow())

	esc := EscrowAccount("3xYz")
	assert.Equal(t, Account("escrow/3xYz"), esc)
	assert.True(t, esc.IsEscrow())
}

func TestMustIdentity_Panics(t *testing.T) {
	assert.Panics(t, func() { MustIdentity("") })
}

func TestAccount_SystemNamespace(t *testing.T) {
	assert.True(t, MintAccount.IsSystem())
	assert.False(t, MintAccount.IsEscrow())
	assert.False(t, EscrowAccount("x").IsSystem())
	assert.False(t, MustIdentity("alice").Account().IsSystem())
}
