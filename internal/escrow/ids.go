package escrow

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces operation ids.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 operation ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predictable ids for tests and golden traces.
type FixedGenerator struct {
	mu     sync.Mutex
	prefix string
	ids    []string
	n      int
}

// NewFixedGenerator returns ids in order, then falls back to prefix-N.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{prefix: "op", ids: ids}
}

// NewCountingGenerator returns prefix-1, prefix-2, ...
func NewCountingGenerator(prefix string) *FixedGenerator {
	return &FixedGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.n++
	if g.n <= len(g.ids) {
		return g.ids[g.n-1]
	}
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
