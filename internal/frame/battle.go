package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/baskuit/engine/internal/data"
	"github.com/baskuit/engine/internal/engine"
	"github.com/baskuit/engine/internal/protocol"
)

// Battle is a decoded snapshot of the engine's battle state.
type Battle struct {
	Sides      [2]Side
	Turn       uint16
	LastDamage uint16
	// LastMoves holds the index (1-4) of the move slot each side last
	// selected, or 0.
	LastMoves [2]uint8
	RNG       engine.Seed
}

// Side is one player's half of a Battle.
type Side struct {
	// Pokemon is stored in the order the team was submitted; the original
	// party slot of Pokemon[i] is i+1.
	Pokemon [6]Pokemon
	Active  ActivePokemon
	// Order lists original party slots in current party order; 0 marks an
	// empty slot.
	Order            [6]uint8
	LastSelectedMove uint8
	LastUsedMove     uint8
}

// Stats are the five Generation I stats.
type Stats struct {
	HP, Atk, Def, Spe, Spc uint16
}

// MoveSlot is a move with its remaining PP.
type MoveSlot struct {
	ID uint8
	PP uint8
}

// Pokemon is a stored party member.
type Pokemon struct {
	Stats   Stats
	Moves   [4]MoveSlot
	HP      uint16
	Status  uint8
	Species uint8
	Types   [2]uint8
	Level   uint8
}

// Boosts are stat stage modifiers in the range -6..6.
type Boosts struct {
	Atk, Def, Spe, Spc, Accuracy, Evasion int8
}

// VolatileFlags is the set of boolean volatile statuses.
type VolatileFlags uint32

// Volatile statuses, in bit order.
const (
	VolatileBide VolatileFlags = 1 << iota
	VolatileThrashing
	VolatileMultiHit
	VolatileFlinch
	VolatileCharging
	VolatileBinding
	VolatileInvulnerable
	VolatileConfusion
	VolatileMist
	VolatileFocusEnergy
	VolatileSubstitute
	VolatileRecharging
	VolatileRage
	VolatileLeechSeed
	VolatileToxic
	VolatileLightScreen
	VolatileReflect
	VolatileTransform
)

var volatileNames = []string{
	"Bide", "Thrashing", "MultiHit", "Flinch", "Charging", "Binding",
	"Invulnerable", "Confusion", "Mist", "FocusEnergy", "Substitute",
	"Recharging", "Rage", "LeechSeed", "Toxic", "LightScreen", "Reflect",
	"Transform",
}

// Names returns the names of the set flags in bit order.
func (f VolatileFlags) Names() []string {
	var out []string
	for i, name := range volatileNames {
		if f&(1<<i) != 0 {
			out = append(out, name)
		}
	}
	return out
}

// Volatiles is the active Pokémon's volatile state.
type Volatiles struct {
	Flags VolatileFlags
	// Toxic counts turns of badly poisoned damage.
	Toxic      uint8
	Substitute uint8
	// State is shared by Bide damage and multi-turn move counters.
	State uint16
	// Transform is the ident byte of the transform target.
	Transform        uint8
	DisabledDuration uint8
	DisabledMove     uint8
}

// ActivePokemon is the battle-modified copy of the Pokémon in front.
type ActivePokemon struct {
	Stats     Stats
	Species   uint8
	Types     [2]uint8
	Boosts    Boosts
	Volatiles Volatiles
	Moves     [4]MoveSlot
}

// Gen 1 field offsets.
const (
	sideOffset    = 0
	trailerOffset = 2 * 184
	activeOffset  = 6 * 24
	orderOffset   = activeOffset + 32
)

// DecodeBattle decodes a snapshot. The buffer must hold at least the
// generation's full Battle size. showdown selects the RNG encoding: a 64-bit
// state in Showdown-compatibility mode, a 10-byte seed otherwise.
func DecodeBattle(gen data.Gen, buf []byte, showdown bool) (*Battle, error) {
	sizes, err := data.Layout(gen)
	if err != nil {
		return nil, err
	}
	if len(buf) < sizes.Battle {
		return nil, &TruncatedBufferError{Need: sizes.Battle, Have: len(buf)}
	}
	b := &Battle{}
	for i := range b.Sides {
		start := sideOffset + i*sizes.Side
		decodeSide(&b.Sides[i], buf[start:start+sizes.Side])
	}
	t := buf[trailerOffset:sizes.Battle]
	b.Turn = binary.LittleEndian.Uint16(t[0:])
	b.LastDamage = binary.LittleEndian.Uint16(t[2:])
	b.LastMoves = [2]uint8{t[4] & 0x0F, t[4] >> 4}
	if showdown {
		b.RNG = engine.SeedFromUint64(binary.LittleEndian.Uint64(t[8:]))
	} else {
		b.RNG = make(engine.Seed, engine.CartridgeSeedSize)
		for i := range b.RNG {
			b.RNG[i] = uint16(t[6+i])
		}
	}
	return b, nil
}

func decodeSide(s *Side, buf []byte) {
	for i := range s.Pokemon {
		decodePokemon(&s.Pokemon[i], buf[i*24:(i+1)*24])
	}
	decodeActive(&s.Active, buf[activeOffset:activeOffset+32])
	copy(s.Order[:], buf[orderOffset:orderOffset+6])
	s.LastSelectedMove = buf[orderOffset+6]
	s.LastUsedMove = buf[orderOffset+7]
}

func decodeStats(buf []byte) Stats {
	return Stats{
		HP:  binary.LittleEndian.Uint16(buf[0:]),
		Atk: binary.LittleEndian.Uint16(buf[2:]),
		Def: binary.LittleEndian.Uint16(buf[4:]),
		Spe: binary.LittleEndian.Uint16(buf[6:]),
		Spc: binary.LittleEndian.Uint16(buf[8:]),
	}
}

func decodeMoves(buf []byte) [4]MoveSlot {
	var moves [4]MoveSlot
	for i := range moves {
		moves[i] = MoveSlot{ID: buf[2*i], PP: buf[2*i+1]}
	}
	return moves
}

func decodeTypes(b byte) [2]uint8 {
	return [2]uint8{b & 0x0F, b >> 4}
}

func decodePokemon(p *Pokemon, buf []byte) {
	p.Stats = decodeStats(buf)
	p.Moves = decodeMoves(buf[10:18])
	p.HP = binary.LittleEndian.Uint16(buf[18:])
	p.Status = buf[20]
	p.Species = buf[21]
	p.Types = decodeTypes(buf[22])
	p.Level = buf[23]
}

// nibble sign-extends a 4-bit two's complement value.
func nibble(b byte) int8 {
	return int8(b<<4) >> 4
}

func decodeActive(a *ActivePokemon, buf []byte) {
	a.Stats = decodeStats(buf)
	a.Species = buf[10]
	a.Types = decodeTypes(buf[11])
	a.Boosts = Boosts{
		Atk:      nibble(buf[12]),
		Def:      nibble(buf[12] >> 4),
		Spe:      nibble(buf[13]),
		Spc:      nibble(buf[13] >> 4),
		Accuracy: nibble(buf[14]),
		Evasion:  nibble(buf[14] >> 4),
	}
	v := buf[16:24]
	bits := uint32(v[0]) | uint32(v[1])<<8 | uint32(v[2])<<16
	a.Volatiles = Volatiles{
		Flags:            VolatileFlags(bits & 0x3FFFF),
		Toxic:            uint8(bits>>18) & 0x1F,
		Substitute:       v[3],
		State:            binary.LittleEndian.Uint16(v[4:]),
		Transform:        v[6],
		DisabledDuration: v[7] >> 4,
		DisabledMove:     v[7] & 0x07,
	}
	a.Moves = decodeMoves(buf[24:32])
}

// Party returns the side's Pokémon in current party order.
func (s *Side) Party() []*Pokemon {
	party := make([]*Pokemon, 0, len(s.Order))
	for _, slot := range s.Order {
		if slot == 0 || slot > 6 {
			continue
		}
		party = append(party, &s.Pokemon[slot-1])
	}
	return party
}

// SpeciesInfo names every Pokémon after its species, the way the engine
// identifies them when no team names are available.
type SpeciesInfo struct {
	Battle *Battle
	Names  *data.Names
}

var _ protocol.Info = SpeciesInfo{}

// SideName implements protocol.Info.
func (i SpeciesInfo) SideName(p engine.Player) string {
	return fmt.Sprintf("Player %d", int(p)+1)
}

// PokemonName implements protocol.Info.
func (i SpeciesInfo) PokemonName(p engine.Player, id uint8) string {
	if i.Battle == nil || id == 0 || id > 6 {
		return ""
	}
	return i.Names.SpeciesName(i.Battle.Sides[p].Pokemon[id-1].Species)
}
