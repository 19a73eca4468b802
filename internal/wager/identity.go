package wager

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxIdentityLength bounds an identity in runes.
const MaxIdentityLength = 64

// Identity names a participant (vendor or player). Identities are NFC
// normalized so that visually identical names address the same session.
type Identity string

// ParseIdentity validates and normalizes a raw identity.
//
// Rejected: empty strings, invalid UTF-8, more than MaxIdentityLength runes,
// whitespace, control characters and '/', which is reserved for system
// accounts (see EscrowAccount).
func ParseIdentity(raw string) (Identity, error) {
	if raw == "" {
		return "", Errorf(ErrCodeInvalidArgument, "identity is empty")
	}
	if !utf8.ValidString(raw) {
		return "", Errorf(ErrCodeInvalidArgument, "identity %q is not valid UTF-8", raw)
	}
	s := norm.NFC.String(raw)
	if n := utf8.RuneCountInString(s); n > MaxIdentityLength {
		return "", Errorf(ErrCodeInvalidArgument, "identity has %d runes, max %d", n, MaxIdentityLength)
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) || r == '/' {
			return "", Errorf(ErrCodeInvalidArgument, "identity %q contains forbidden character %q", s, r)
		}
	}
	return Identity(s), nil
}

// MustIdentity is ParseIdentity for tests and constants. Panics on error.
func MustIdentity(raw string) Identity {
	id, err := ParseIdentity(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the identity as a plain string.
func (id Identity) String() string {
	return string(id)
}

// Account returns the ledger account owned by this identity.
func (id Identity) Account() Account {
	return Account(id)
}

// Account names a ledger balance. Participant accounts share the identity's
// name; system accounts live under a "<kind>/" prefix that identities cannot
// contain.
type Account string

const (
	escrowPrefix = "escrow/"
	systemPrefix = "system/"
)

// MintAccount is the counterparty of deposits and withdrawals. It is the only
// account allowed to run negative, so the sum of all balances stays zero.
const MintAccount Account = systemPrefix + "mint"

// EscrowAccount returns the account holding a session's escrowed stake.
func EscrowAccount(id SessionID) Account {
	return Account(escrowPrefix + string(id))
}

// IsEscrow reports whether the account is a session escrow.
func (a Account) IsEscrow() bool {
	return strings.HasPrefix(string(a), escrowPrefix)
}

// IsSystem reports whether the account is exempt from the non-negative
// balance rule.
func (a Account) IsSystem() bool {
	return strings.HasPrefix(string(a), systemPrefix)
}

// String returns the account name.
func (a Account) String() string {
	return string(a)
}
