// Package frame decodes the engine's binary trace: a header followed by one
// record per round, each holding the round's result, the choices that led
// to it, a fixed-size battle snapshot and a variable-length protocol log.
package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/baskuit/engine/internal/data"
	"github.com/baskuit/engine/internal/engine"
	"github.com/baskuit/engine/internal/protocol"
)

// TruncatedBufferError reports that a fixed-size region ran past the end of
// the input.
type TruncatedBufferError = protocol.TruncatedBufferError

// headerSize is the 8-byte seed plus the 1-byte initial log length.
const headerSize = 9

// recordPrefix is the result byte and the two choice bytes.
const recordPrefix = 3

// Frame is the state of one engine after one round.
type Frame struct {
	Result engine.Result
	C1, C2 engine.Choice
	// Battle is nil for engines that do not expose snapshots.
	Battle *Battle
	Log    []protocol.ParsedLine
	// Seed and Chunk are only set for reference frames.
	Seed  engine.Seed
	Chunk string
}

// Dump is a fully decoded trace.
type Dump struct {
	Seed    engine.Seed
	Initial []protocol.ParsedLine
	Frames  []Frame
}

// Options controls decoding.
type Options struct {
	// Showdown selects the Showdown-compatible RNG encoding.
	Showdown bool
	// Info resolves identities in logs. When nil, each record's own snapshot
	// names Pokémon after their species.
	Info protocol.Info
}

// Decoder decodes records for one generation.
type Decoder struct {
	gen   data.Gen
	size  int
	names *data.Names
	opts  Options
}

// NewDecoder returns a Decoder for gen.
func NewDecoder(gen data.Gen, opts Options) (*Decoder, error) {
	sizes, err := data.Layout(gen)
	if err != nil {
		return nil, err
	}
	names, err := data.Lookup(gen)
	if err != nil {
		return nil, err
	}
	return &Decoder{gen: gen, size: sizes.Battle, names: names, opts: opts}, nil
}

// Decode decodes a complete trace.
func Decode(gen data.Gen, buf []byte, opts Options) (*Dump, error) {
	d, err := NewDecoder(gen, opts)
	if err != nil {
		return nil, err
	}
	return d.Decode(buf)
}

// Decode decodes a complete trace. Records are consumed until the buffer is
// exhausted; a record cut short anywhere is an error.
func (d *Decoder) Decode(buf []byte) (*Dump, error) {
	if len(buf) < headerSize {
		return nil, &TruncatedBufferError{Offset: 0, Need: headerSize, Have: len(buf)}
	}
	dump := &Dump{Seed: engine.SeedFromUint64(binary.LittleEndian.Uint64(buf))}
	end := headerSize + int(buf[8])
	if len(buf) < end {
		return nil, &TruncatedBufferError{Offset: headerSize, Need: int(buf[8]), Have: len(buf) - headerSize}
	}

	for off := end; off < len(buf); {
		f, n, err := d.DecodeRecord(buf[off:])
		if err != nil {
			return nil, fmt.Errorf("record %d at offset %d: %w", len(dump.Frames), off, shift(err, off))
		}
		dump.Frames = append(dump.Frames, f)
		off += n
	}

	if end > headerSize {
		var first *Battle
		if len(dump.Frames) > 0 {
			first = dump.Frames[0].Battle
		}
		r := protocol.NewBoundedReader(d.names, d.info(first), buf[headerSize:end])
		initial, err := protocol.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("initial log: %w", shift(err, headerSize))
		}
		dump.Initial = initial
	}
	return dump, nil
}

// DecodeRecord decodes one record from the start of buf and returns it along
// with the number of bytes it occupied.
func (d *Decoder) DecodeRecord(buf []byte) (Frame, int, error) {
	need := recordPrefix + d.size
	if len(buf) < need {
		return Frame{}, 0, &TruncatedBufferError{Offset: 0, Need: need, Have: len(buf)}
	}
	result, err := engine.DecodeResult(buf[0])
	if err != nil {
		return Frame{}, 0, err
	}
	c1, err := engine.DecodeChoice(buf[1])
	if err != nil {
		return Frame{}, 0, err
	}
	c2, err := engine.DecodeChoice(buf[2])
	if err != nil {
		return Frame{}, 0, err
	}
	battle, err := DecodeBattle(d.gen, buf[recordPrefix:need], d.opts.Showdown)
	if err != nil {
		return Frame{}, 0, err
	}
	r := protocol.NewReader(d.names, d.info(battle), buf[need:])
	lines, err := protocol.ReadAll(r)
	if err != nil {
		return Frame{}, 0, shift(err, need)
	}
	return Frame{Result: result, C1: c1, C2: c2, Battle: battle, Log: lines}, need + r.Offset(), nil
}

func (d *Decoder) info(b *Battle) protocol.Info {
	if d.opts.Info != nil {
		return d.opts.Info
	}
	return SpeciesInfo{Battle: b, Names: d.names}
}

// shift rebases a truncation offset from a sub-slice onto its parent.
func shift(err error, by int) error {
	if t, ok := err.(*TruncatedBufferError); ok {
		moved := *t
		moved.Offset += by
		return &moved
	}
	return err
}
