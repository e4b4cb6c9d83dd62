package engine

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ShowdownSeedSize is the number of 16-bit values in a Showdown-compatible
// seed. Cartridge-mode engines expose a longer seed of one byte per value.
const ShowdownSeedSize = 4

// CartridgeSeedSize is the number of values in a cartridge-mode seed.
const CartridgeSeedSize = 10

// Seed is a PRNG state as a tuple of unsigned 16-bit values. In Showdown
// compatibility mode it has four values, the big-endian 16-bit chunks of a
// 64-bit state.
type Seed []uint16

// SeedFromUint64 splits a 64-bit state into a four-value seed, most
// significant chunk first.
func SeedFromUint64(v uint64) Seed {
	return Seed{uint16(v >> 48), uint16(v >> 32), uint16(v >> 16), uint16(v)}
}

// Pack folds the seed into a single integer with earlier values in the more
// significant positions. Only the last 64 bits survive for long seeds.
func (s Seed) Pack() uint64 {
	var v uint64
	for _, x := range s {
		v = v<<16 | uint64(x)
	}
	return v
}

// Hex renders the seed as 0x-prefixed upper-case hexadecimal. Four-value
// seeds use their packed value; longer seeds list one byte per value.
func (s Seed) Hex() string {
	if len(s) <= ShowdownSeedSize {
		return fmt.Sprintf("0x%X", s.Pack())
	}
	var b strings.Builder
	b.WriteString("0x")
	for _, x := range s {
		fmt.Fprintf(&b, "%02X", uint8(x))
	}
	return b.String()
}

// Equal reports whether both seeds hold the same values.
func (s Seed) Equal(o Seed) bool {
	return slices.Equal(s, o)
}

// Clone returns an independent copy of the seed.
func (s Seed) Clone() Seed {
	return slices.Clone(s)
}

// String renders the seed as comma-separated decimal values, the syntax
// accepted on the command line.
func (s Seed) String() string {
	parts := make([]string, len(s))
	for i, x := range s {
		parts[i] = strconv.Itoa(int(x))
	}
	return strings.Join(parts, ",")
}
