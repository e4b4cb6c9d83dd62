package random

import (
	"fmt"

	"github.com/baskuit/engine/internal/engine"
)

// LCG constants shared with the reference simulator.
const (
	multiplier = 0x5D588B656C078965
	increment  = 0x269EC3
)

// PRNG is the reference simulator's 64-bit linear congruential generator.
// Identical seeds yield identical sequences. A PRNG is not safe for
// concurrent use; the harness advances it from a single goroutine.
type PRNG struct {
	state uint64
}

// NewPRNG returns a generator starting at seed.
func NewPRNG(seed engine.Seed) (*PRNG, error) {
	if len(seed) != engine.ShowdownSeedSize {
		return nil, fmt.Errorf("prng seed must have %d values, got %d", engine.ShowdownSeedSize, len(seed))
	}
	return &PRNG{state: seed.Pack()}, nil
}

// Seed returns the current state as a seed.
func (p *PRNG) Seed() engine.Seed {
	return engine.SeedFromUint64(p.state)
}

// Next advances the generator and returns a value in [0, n).
func (p *PRNG) Next(n uint32) uint32 {
	p.state = p.state*multiplier + increment
	return uint32((p.state >> 32) * uint64(n) >> 32)
}

// Derive draws a fresh seed from p. It consumes exactly four values, so the
// sequence of derived seeds depends only on p's starting state.
func Derive(p *PRNG) engine.Seed {
	return engine.Seed{
		uint16(p.Next(0x10000)),
		uint16(p.Next(0x10000)),
		uint16(p.Next(0x10000)),
		uint16(p.Next(0x10000)),
	}
}
