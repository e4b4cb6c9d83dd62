package frame

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/baskuit/engine/internal/engine"
	"github.com/baskuit/engine/internal/protocol"
)

const battleSize = 384

// snapshot builds a Gen 1 battle buffer with one Pokémon per side.
func snapshot(turn uint16, rng uint64) []byte {
	buf := make([]byte, battleSize)
	for side, species := range []byte{25, 94} {
		base := side * 184
		p := buf[base : base+24]
		binary.LittleEndian.PutUint16(p[0:], 100)
		binary.LittleEndian.PutUint16(p[2:], 90)
		p[10], p[11] = 85, 24 // Thunderbolt, 24 PP
		binary.LittleEndian.PutUint16(p[18:], 100)
		p[20] = 0x08
		p[21] = species
		p[22] = 0x3B
		p[23] = 100

		a := buf[base+activeOffset : base+activeOffset+32]
		binary.LittleEndian.PutUint16(a[0:], 100)
		a[10] = species
		a[12] = 0xF2 // atk +2, def -1
		a[14] = 0x10 // evasion +1
		bits := uint32(VolatileSubstitute|VolatileToxic) | 3<<18
		a[16], a[17], a[18] = byte(bits), byte(bits>>8), byte(bits>>16)
		a[19] = 25
		binary.LittleEndian.PutUint16(a[20:], 513)
		a[23] = 0x42 // 4 turns of move slot 2 disabled

		buf[base+orderOffset] = 1
	}
	t := buf[trailerOffset:]
	binary.LittleEndian.PutUint16(t[0:], turn)
	binary.LittleEndian.PutUint16(t[2:], 37)
	t[4] = 0x21
	binary.LittleEndian.PutUint64(t[8:], rng)
	return buf
}

func record(result engine.Result, c1, c2 engine.Choice, turn uint16, log ...byte) []byte {
	out := []byte{result.Encode(), c1.Encode(), c2.Encode()}
	out = append(out, snapshot(turn, uint64(turn))...)
	return append(out, log...)
}

func header(seed uint64, initial ...byte) []byte {
	out := binary.LittleEndian.AppendUint64(nil, seed)
	out = append(out, byte(len(initial)))
	return append(out, initial...)
}

func TestDecodeTruncatedHeader(t *testing.T) {
	t.Parallel()

	_, err := Decode(1, make([]byte, 8), Options{Showdown: true})
	var truncated *TruncatedBufferError
	if !errors.As(err, &truncated) {
		t.Fatalf("expected TruncatedBufferError, got %v", err)
	}
	if truncated.Need != 9 || truncated.Have != 8 {
		t.Fatalf("unexpected error fields: %+v", truncated)
	}
}

func TestDecodeDiscoversRecordBoundaries(t *testing.T) {
	t.Parallel()

	pending := engine.Result{P1: engine.ChoiceMove, P2: engine.ChoiceMove}
	buf := header(0x0102030405060708,
		byte(protocol.ArgSwitch), 0x01, 25, 100, 100, 0, 100, 0, 0,
		byte(protocol.ArgTurn), 1, 0,
	)
	buf = append(buf, record(pending, engine.Pass(), engine.Pass(), 1, byte(protocol.ArgNone))...)
	buf = append(buf, record(pending, engine.Move(1), engine.Move(1), 2,
		byte(protocol.ArgMove), 0x01, 85, 0x09, 0x00,
		byte(protocol.ArgTurn), 2, 0,
		byte(protocol.ArgNone),
	)...)
	buf = append(buf, record(engine.Result{Type: engine.ResultTie}, engine.Move(1), engine.Move(1), 3,
		byte(protocol.ArgTie),
		byte(protocol.ArgNone),
	)...)

	dump, err := Decode(1, buf, Options{Showdown: true})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := dump.Seed.Pack(); got != 0x0102030405060708 {
		t.Fatalf("seed = 0x%X", got)
	}
	if len(dump.Initial) != 2 || dump.Initial[0].Tag() != "switch" {
		t.Fatalf("initial = %v", dump.Initial)
	}
	if dump.Initial[0].Args[1] != "p1a: Pikachu" {
		t.Fatalf("initial switch ident = %q", dump.Initial[0].Args[1])
	}
	if len(dump.Frames) != 3 {
		t.Fatalf("frames = %d, want 3", len(dump.Frames))
	}
	if len(dump.Frames[0].Log) != 0 {
		t.Fatalf("frame 0 log = %v", dump.Frames[0].Log)
	}
	move := dump.Frames[1].Log[0]
	want := protocol.NewLine("move", "p1a: Pikachu", "Thunderbolt", "p2a: Gengar")
	if !move.Equal(want) {
		t.Fatalf("move = %v, want %v", move, want)
	}
	if dump.Frames[1].C1 != engine.Move(1) || dump.Frames[1].Battle.Turn != 2 {
		t.Fatalf("frame 1 = %+v", dump.Frames[1])
	}
	last := dump.Frames[2]
	if last.Result.Type != engine.ResultTie || last.Log[0].Tag() != "tie" {
		t.Fatalf("frame 2 = %+v", last)
	}
}

func TestDecodeTruncatedSnapshot(t *testing.T) {
	t.Parallel()

	pending := engine.Result{P1: engine.ChoiceMove, P2: engine.ChoiceMove}
	buf := append(header(1), record(pending, engine.Pass(), engine.Pass(), 1)[:100]...)
	_, err := Decode(1, buf, Options{Showdown: true})
	var truncated *TruncatedBufferError
	if !errors.As(err, &truncated) {
		t.Fatalf("expected TruncatedBufferError, got %v", err)
	}
	if truncated.Offset != 9 || truncated.Need != 3+battleSize || truncated.Have != 100 {
		t.Fatalf("unexpected error fields: %+v", truncated)
	}
}

func TestDecodeUnterminatedLog(t *testing.T) {
	t.Parallel()

	pending := engine.Result{P1: engine.ChoiceMove, P2: engine.ChoiceMove}
	buf := append(header(1), record(pending, engine.Pass(), engine.Pass(), 1, byte(protocol.ArgTurn), 1, 0)...)
	_, err := Decode(1, buf, Options{Showdown: true})
	var truncated *TruncatedBufferError
	if !errors.As(err, &truncated) {
		t.Fatalf("expected TruncatedBufferError, got %v", err)
	}
	if truncated.Offset != len(buf) {
		t.Fatalf("offset = %d, want %d", truncated.Offset, len(buf))
	}
}

func TestDecodeBattle(t *testing.T) {
	t.Parallel()

	b, err := DecodeBattle(1, snapshot(7, 0x1122334455667788), true)
	if err != nil {
		t.Fatalf("decode battle: %v", err)
	}
	if b.Turn != 7 || b.LastDamage != 37 || b.LastMoves != [2]uint8{1, 2} {
		t.Fatalf("trailer = %+v", b)
	}
	if !b.RNG.Equal(engine.Seed{0x1122, 0x3344, 0x5566, 0x7788}) {
		t.Fatalf("rng = %v", b.RNG)
	}
	p := b.Sides[1].Pokemon[0]
	if p.Species != 94 || p.HP != 100 || p.Stats.Atk != 90 || p.Types != [2]uint8{11, 3} || p.Level != 100 {
		t.Fatalf("pokemon = %+v", p)
	}
	if p.Moves[0] != (MoveSlot{ID: 85, PP: 24}) {
		t.Fatalf("moves = %+v", p.Moves)
	}
	a := b.Sides[0].Active
	if a.Boosts.Atk != 2 || a.Boosts.Def != -1 || a.Boosts.Evasion != 1 {
		t.Fatalf("boosts = %+v", a.Boosts)
	}
	v := a.Volatiles
	if v.Flags != VolatileSubstitute|VolatileToxic || v.Toxic != 3 || v.Substitute != 25 || v.State != 513 {
		t.Fatalf("volatiles = %+v", v)
	}
	if v.DisabledDuration != 4 || v.DisabledMove != 2 {
		t.Fatalf("disabled = %d/%d", v.DisabledDuration, v.DisabledMove)
	}
	if got := v.Flags.Names(); len(got) != 2 || got[0] != "Substitute" || got[1] != "Toxic" {
		t.Fatalf("flag names = %v", got)
	}
	if party := b.Sides[0].Party(); len(party) != 1 || party[0].Species != 25 {
		t.Fatalf("party = %v", party)
	}
}

func TestDecodeBattleCartridgeRNG(t *testing.T) {
	t.Parallel()

	buf := snapshot(1, 0)
	for i := 0; i < 10; i++ {
		buf[trailerOffset+6+i] = byte(i + 1)
	}
	b, err := DecodeBattle(1, buf, false)
	if err != nil {
		t.Fatalf("decode battle: %v", err)
	}
	if !b.RNG.Equal(engine.Seed{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}) {
		t.Fatalf("rng = %v", b.RNG)
	}
}

func TestDecodeBattleRejectsShortBuffer(t *testing.T) {
	t.Parallel()

	_, err := DecodeBattle(1, make([]byte, battleSize-1), true)
	var truncated *TruncatedBufferError
	if !errors.As(err, &truncated) {
		t.Fatalf("expected TruncatedBufferError, got %v", err)
	}
}
