package dice

import (
	"crypto/rand"
	"errors"
	"fmt"
	mrand "math/rand/v2"
	"sync"

	"github.com/roach88/diceroll/internal/wager"
)

// ErrExhausted is returned by Fixed once every scripted value was consumed.
var ErrExhausted = errors.New("dice: source exhausted")

// Source yields uniformly distributed bytes, one per call.
type Source interface {
	Next() (byte, error)
}

// Provider hands out the Source used to resolve a particular session.
type Provider interface {
	SourceFor(s *wager.Session) Source
}

// Crypto reads from the operating system CSPRNG.
type Crypto struct{}

// Next implements Source.
func (Crypto) Next() (byte, error) {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read entropy: %w", err)
	}
	return b[0], nil
}

const goldenRatio64 = 0x9e3779b97f4a7c15

// Seeded is a reproducible PCG stream. It is safe for concurrent use; the
// sequence observed by any single caller then depends on interleaving.
type Seeded struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSeeded returns a PCG stream seeded deterministically from seed.
func NewSeeded(seed int64) *Seeded {
	u := uint64(seed)
	return &Seeded{rng: mrand.New(mrand.NewPCG(mix(u), mix(u+goldenRatio64)))}
}

// Next implements Source.
func (s *Seeded) Next() (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return byte(s.rng.Uint32()), nil
}

// mix is the splitmix64 finalizer; it spreads nearby seeds across the PCG
// state space.
func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// Fixed replays a scripted byte sequence.
type Fixed struct {
	mu     sync.Mutex
	values []byte
	pos    int
}

// NewFixed returns a source that yields values in order.
func NewFixed(values ...byte) *Fixed {
	return &Fixed{values: append([]byte(nil), values...)}
}

// Next implements Source.
func (f *Fixed) Next() (byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pos >= len(f.values) {
		return 0, ErrExhausted
	}
	b := f.values[f.pos]
	f.pos++
	return b, nil
}

// Push appends more scripted values.
func (f *Fixed) Push(values ...byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = append(f.values, values...)
}

// Remaining reports how many scripted values are left.
func (f *Fixed) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.values) - f.pos
}

// Shared returns a Provider that resolves every session from src.
func Shared(src Source) Provider {
	return sharedProvider{src: src}
}

// PerSession returns a Provider that derives an independent Seeded stream
// for every session from seed, the session ID and its creation time. The
// roll of a session is reproducible from those alone, whichever process
// plays it.
func PerSession(seed int64) Provider {
	return perSessionProvider{seed: uint64(seed)}
}

type perSessionProvider struct {
	seed uint64
}

func (p perSessionProvider) SourceFor(s *wager.Session) Source {
	h := mix(p.seed ^ uint64(s.CreatedAt.UnixNano()))
	for _, b := range []byte(s.ID) {
		h = mix(h ^ uint64(b))
	}
	return NewSeeded(int64(h))
}

type sharedProvider struct {
	src Source
}

func (p sharedProvider) SourceFor(*wager.Session) Source {
	return p.src
}
