// Package random provides the deterministic seed derivation the harness uses
// to turn one root seed into an unbounded, reproducible stream of battles.
//
// It uses crypto/rand only to pick a root seed when none is supplied; every
// value derived afterwards is a pure function of that root.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/baskuit/engine/internal/engine"
)

// NewSeed generates a random Showdown-compatible seed using crypto/rand.
func NewSeed() (engine.Seed, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return nil, fmt.Errorf("read random seed: %w", err)
	}

	return engine.SeedFromUint64(binary.BigEndian.Uint64(b[:])), nil
}

// ParseSeed parses a comma-separated seed such as "1,2,3,4". Each value must
// fit in 16 bits.
func ParseSeed(s string) (engine.Seed, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != engine.ShowdownSeedSize {
		return nil, fmt.Errorf("seed %q: want %d values, got %d", s, engine.ShowdownSeedSize, len(parts))
	}
	seed := make(engine.Seed, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 10, 16)
		if err != nil {
			return nil, fmt.Errorf("seed %q: value %d: %w", s, i, err)
		}
		seed[i] = uint16(v)
	}
	return seed, nil
}
