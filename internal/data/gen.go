// Package data holds the static, per-generation tables the decoders rely on:
// binary layout sizes and the species, move and type names indexed by the
// engine's one-byte identifiers.
package data

import (
	"errors"
	"fmt"
)

// ErrUnsupportedGen is returned for generations the harness cannot decode.
var ErrUnsupportedGen = errors.New("unsupported generation")

// Gen is a generation number (1-9).
type Gen uint8

// Sizes are the fixed byte sizes of the engine's state structures.
type Sizes struct {
	Battle        int
	Side          int
	Pokemon       int
	ActivePokemon int
}

// layouts is indexed by generation - 1.
var layouts = []Sizes{
	{Battle: 384, Side: 184, Pokemon: 24, ActivePokemon: 32},
}

// Layout returns the structure sizes for gen.
func Layout(gen Gen) (Sizes, error) {
	if gen == 0 || int(gen) > len(layouts) {
		return Sizes{}, fmt.Errorf("%w: %d", ErrUnsupportedGen, gen)
	}
	return layouts[gen-1], nil
}

// Supported reports whether the harness can decode gen.
func Supported(gen Gen) bool {
	_, err := Layout(gen)
	return err == nil
}

// Format returns the reference simulator's custom-game format id for gen.
func Format(gen Gen) string {
	return fmt.Sprintf("gen%dcustomgame", gen)
}

// ParseFormat extracts the generation from a format id such as
// "gen1customgame".
func ParseFormat(format string) (Gen, error) {
	if len(format) < 4 || format[:3] != "gen" || format[3] < '1' || format[3] > '9' {
		return 0, fmt.Errorf("invalid format %q", format)
	}
	return Gen(format[3] - '0'), nil
}

// DistinctToxic reports whether Toxic's badly-poisoned status is a separate
// status in gen. Before Generation III it is a volatile layered on poison.
func DistinctToxic(gen Gen) bool {
	return gen >= 3
}
