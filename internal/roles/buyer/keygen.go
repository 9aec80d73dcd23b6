package buyer

import (
	"sync"

	"github.com/google/uuid"
)

// KeyGenerator produces instance keys for new transaction instances.
// The buyer mints one key per request-for-quote; the key correlates every
// later message of that transaction.
type KeyGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 instance keys.
//
// UUIDv7 embeds a timestamp in the most significant bits, so keys sort by
// creation time, which keeps traces readable.
//
// Thread-safety: stateless, safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined keys for testing.
//
// This enables deterministic test execution and golden trace comparison.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu   sync.Mutex
	keys []string
	idx  int
}

// NewFixedGenerator creates a generator that returns keys in order.
// Generate panics when all keys are consumed, to fail fast on test
// misconfiguration.
func NewFixedGenerator(keys ...string) *FixedGenerator {
	return &FixedGenerator{keys: keys}
}

// Generate returns the next predetermined key.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.keys) {
		panic("buyer: FixedGenerator exhausted")
	}
	key := g.keys[g.idx]
	g.idx++
	return key
}
