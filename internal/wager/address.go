package wager

import (
	"crypto/sha256"

	"github.com/mr-tron/base58"
)

// DomainSession separates session address hashes from every other use of
// SHA-256 in the system. The version suffix allows a future migration.
const DomainSession = "diceroll/session/v1"

// SessionID is the deterministic address of a session record, derived from
// the ordered (vendor, player) pair only.
type SessionID string

// Key is the ordered participant pair that uniquely identifies a session.
// Index 0 is the vendor, index 1 the player; the order is never swapped.
type Key struct {
	Vendor Identity `json:"vendor"`
	Player Identity `json:"player"`
}

// NewKey parses both identities and rejects a pair naming the same
// participant twice.
func NewKey(vendor, player string) (Key, error) {
	v, err := ParseIdentity(vendor)
	if err != nil {
		return Key{}, err
	}
	p, err := ParseIdentity(player)
	if err != nil {
		return Key{}, err
	}
	if v == p {
		return Key{}, Errorf(ErrCodeInvalidArgument, "vendor and player must differ (both %q)", v)
	}
	return Key{Vendor: v, Player: p}, nil
}

// ID computes the session address.
//
// Format: base58(SHA256(domain + 0x00 + vendor + 0x00 + player))
// Identities cannot contain 0x00 (control characters are rejected by
// ParseIdentity), so the separators make the encoding injective.
func (k Key) ID() SessionID {
	return SessionID(base58.Encode(hashWithDomain(DomainSession, []byte(k.Vendor), []byte(k.Player))))
}

// Participants returns [vendor, player].
func (k Key) Participants() [2]Identity {
	return [2]Identity{k.Vendor, k.Player}
}

// String renders the pair as "vendor→player" for logs.
func (k Key) String() string {
	return string(k.Vendor) + "→" + string(k.Player)
}

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + part[0] + 0x00 + part[1] ...)
func hashWithDomain(domain string, parts ...[]byte) []byte {
	h := sha256.New()
	h.Write([]byte(domain))
	for _, p := range parts {
		h.Write([]byte{0x00})
		h.Write(p)
	}
	return h.Sum(nil)
}
