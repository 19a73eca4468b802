package dice

import (
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/roach88/diceroll/internal/wager"
)

// Server seed bounds. blake2b accepts keys of at most 64 bytes.
const (
	MinServerSeed = 16
	MaxServerSeed = blake2b.Size
)

var (
	ErrSeedLength         = fmt.Errorf("dice: server seed must be %d..%d bytes", MinServerSeed, MaxServerSeed)
	ErrCommitmentMismatch = errors.New("dice: server seed does not match commitment")
	ErrRollMismatch       = errors.New("dice: roll does not match committed stream")
)

// Commitment returns the hex blake2b-256 digest of the server seed. It is
// published before any session is played so the seed cannot be swapped
// afterwards.
func Commitment(serverSeed []byte) string {
	sum := blake2b.Sum256(serverSeed)
	return hex.EncodeToString(sum[:])
}

// Committer derives a per-session byte stream from a secret server seed.
type Committer struct {
	seed []byte
}

// NewCommitter validates the seed length and returns a Provider.
func NewCommitter(serverSeed []byte) (*Committer, error) {
	if len(serverSeed) < MinServerSeed || len(serverSeed) > MaxServerSeed {
		return nil, ErrSeedLength
	}
	return &Committer{seed: append([]byte(nil), serverSeed...)}, nil
}

// Commitment returns the published commitment for this committer's seed.
func (c *Committer) Commitment() string {
	return Commitment(c.seed)
}

// SourceFor returns the stream for one session. The session's creation time
// is the nonce, so a pair that is deleted and set up again rolls afresh.
func (c *Committer) SourceFor(s *wager.Session) Source {
	return NewCommitted(c.seed, s.ID, s.CreatedAt.UnixNano())
}

// Committed is a keyed blake2b stream:
//
//	block[i] = BLAKE2b-256(key=serverSeed, sessionID || 0x00 || nonce || i)
//
// with nonce and i big-endian 64-bit. Bytes are consumed block by block.
type Committed struct {
	seed    []byte
	session wager.SessionID
	nonce   int64
	counter uint64
	buf     []byte
}

// NewCommitted returns the stream for session id and nonce. The seed must
// already satisfy the length bounds checked by NewCommitter.
func NewCommitted(serverSeed []byte, id wager.SessionID, nonce int64) *Committed {
	return &Committed{seed: serverSeed, session: id, nonce: nonce}
}

// Next implements Source.
func (c *Committed) Next() (byte, error) {
	if len(c.buf) == 0 {
		block, err := c.block(c.counter)
		if err != nil {
			return 0, err
		}
		c.buf = block
		c.counter++
	}
	b := c.buf[0]
	c.buf = c.buf[1:]
	return b, nil
}

func (c *Committed) block(i uint64) ([]byte, error) {
	h, err := blake2b.New256(c.seed)
	if err != nil {
		return nil, fmt.Errorf("init blake2b: %w", err)
	}
	var n [8]byte
	h.Write([]byte(c.session))
	h.Write([]byte{0x00})
	binary.BigEndian.PutUint64(n[:], uint64(c.nonce))
	h.Write(n[:])
	binary.BigEndian.PutUint64(n[:], i)
	h.Write(n[:])
	return h.Sum(nil), nil
}

// Verify checks a revealed server seed against its commitment and re-derives
// the roll for the session. It returns nil only if both match.
func Verify(serverSeed []byte, commitment string, id wager.SessionID, nonce int64, roll Roll) error {
	got := Commitment(serverSeed)
	if subtle.ConstantTimeCompare([]byte(got), []byte(commitment)) != 1 {
		return ErrCommitmentMismatch
	}
	if len(serverSeed) < MinServerSeed || len(serverSeed) > MaxServerSeed {
		return ErrSeedLength
	}
	want, err := Resolve(roll.Sides, NewCommitted(serverSeed, id, nonce))
	if err != nil {
		return err
	}
	if want != roll {
		return fmt.Errorf("%w: expected vendor=%d player=%d, got vendor=%d player=%d",
			ErrRollMismatch, want.Vendor, want.Player, roll.Vendor, roll.Player)
	}
	return nil
}

// VerifySession runs Verify against the roll recorded on a settled session,
// using its creation time as the nonce.
func VerifySession(serverSeed []byte, commitment string, s *wager.Session) error {
	roll, err := Recorded(s)
	if err != nil {
		return err
	}
	return Verify(serverSeed, commitment, s.ID, s.CreatedAt.UnixNano(), roll)
}
