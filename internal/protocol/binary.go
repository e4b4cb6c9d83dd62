package protocol

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/baskuit/engine/internal/data"
	"github.com/baskuit/engine/internal/engine"
	apperrors "github.com/baskuit/engine/internal/platform/errors"
)

// ArgType is the first byte of every binary log entry.
type ArgType uint8

// Binary log entry tags. None terminates the log for one round.
const (
	ArgNone ArgType = iota
	ArgLastStill
	ArgLastMiss
	ArgMove
	ArgSwitch
	ArgCant
	ArgFaint
	ArgTurn
	ArgWin
	ArgTie
	ArgDamage
	ArgHeal
	ArgStatus
	ArgCureStatus
	ArgBoost
	ArgClearAllBoost
	ArgFail
	ArgMiss
	ArgHitCount
	ArgPrepare
	ArgMustRecharge
	ArgActivate
	ArgFieldActivate
	ArgStart
	ArgEnd
	ArgOHKO
	ArgCrit
	ArgSuperEffective
	ArgResisted
	ArgImmune
	ArgTransform
)

// ErrMalformedLog is returned for entries that cannot be decoded.
var ErrMalformedLog = apperrors.New(apperrors.CodeMalformedLog, "malformed log entry")

// TruncatedBufferError reports a fixed-size region that extends past the end
// of the available bytes. It is never recovered from with a partial value.
type TruncatedBufferError struct {
	Offset int
	Need   int
	Have   int
}

func (e *TruncatedBufferError) Error() string {
	return fmt.Sprintf("truncated buffer at offset %d: need %d bytes, have %d", e.Offset, e.Need, e.Have)
}

// ErrorCode implements apperrors.Coded.
func (e *TruncatedBufferError) ErrorCode() apperrors.Code { return apperrors.CodeTruncatedBuffer }

// Info resolves the display names used when rendering identities.
type Info interface {
	// SideName returns the player's name.
	SideName(p engine.Player) string
	// PokemonName returns the name of the player's Pokémon that started the
	// battle in party slot id (1-6).
	PokemonName(p engine.Player, id uint8) string
}

// SideInfo is the static name information for one side.
type SideInfo struct {
	Name string
	Team []string
}

// StaticInfo is an Info backed by fixed team lists.
type StaticInfo [2]SideInfo

// SideName implements Info.
func (s StaticInfo) SideName(p engine.Player) string { return s[p].Name }

// PokemonName implements Info.
func (s StaticInfo) PokemonName(p engine.Player, id uint8) string {
	team := s[p].Team
	if id == 0 || int(id) > len(team) {
		return ""
	}
	return team[id-1]
}

// Reader decodes binary log entries one at a time from a byte slice. It keeps
// its position explicit: Offset reports how many bytes have been consumed,
// including the terminating None entry once it has been read. A Reader is not
// restartable; create a new one at the region's start to decode again.
type Reader struct {
	buf     []byte
	off     int
	names   *data.Names
	info    Info
	bounded bool
	done    bool
	err     error
}

// NewReader returns a Reader for a log region terminated by a None entry.
// Running out of bytes before the terminator is a TruncatedBufferError.
func NewReader(names *data.Names, info Info, buf []byte) *Reader {
	return &Reader{buf: buf, names: names, info: info}
}

// NewBoundedReader returns a Reader for a region whose length is known: the
// end of buf terminates the log as well as a None entry.
func NewBoundedReader(names *data.Names, info Info, buf []byte) *Reader {
	return &Reader{buf: buf, names: names, info: info, bounded: true}
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int { return r.off }

// Done reports whether the terminating entry (or bounded end) was reached.
func (r *Reader) Done() bool { return r.done }

// Err returns the first decoding error, if any.
func (r *Reader) Err() error { return r.err }

// Next decodes the next entry. It returns false once the log is complete or
// an error occurred; check Err to tell the two apart.
func (r *Reader) Next() (ParsedLine, bool) {
	if r.done || r.err != nil {
		return ParsedLine{}, false
	}
	if r.off >= len(r.buf) {
		if r.bounded {
			r.done = true
		} else {
			r.err = r.truncated(1)
		}
		return ParsedLine{}, false
	}
	start := r.off
	line, err := r.decode()
	if err != nil {
		if _, ok := err.(*TruncatedBufferError); !ok {
			err = fmt.Errorf("log entry at offset %d: %w", start, err)
		}
		r.err = err
		return ParsedLine{}, false
	}
	if r.done {
		return ParsedLine{}, false
	}
	return line, true
}

// ReadAll drains r and returns every entry.
func ReadAll(r *Reader) ([]ParsedLine, error) {
	var lines []ParsedLine
	for {
		line, ok := r.Next()
		if !ok {
			break
		}
		lines = append(lines, line)
	}
	return lines, r.Err()
}

func (r *Reader) truncated(need int) error {
	return &TruncatedBufferError{Offset: r.off, Need: need, Have: len(r.buf) - r.off}
}

// take consumes n bytes of an entry body.
func (r *Reader) take(n int) ([]byte, error) {
	if len(r.buf)-r.off < n {
		return nil, r.truncated(n)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) u8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ident(b byte) (string, error) {
	if b == 0 {
		return "", nil
	}
	id := b & 0x07
	if id == 0 || id > 6 {
		return "", fmt.Errorf("%w: ident 0x%02X", ErrMalformedLog, b)
	}
	player := engine.Player((b >> 3) & 1)
	name := r.info.PokemonName(player, id)
	if name == "" {
		name = "#" + strconv.Itoa(int(id))
	}
	return player.String() + "a: " + name, nil
}

func (r *Reader) move(id uint8) string {
	if name := r.names.MoveName(id); name != "" {
		return name
	}
	return "#" + strconv.Itoa(int(id))
}

func hpStatus(hp, maxhp uint16, status uint8) string {
	if hp == 0 {
		return "0 fnt"
	}
	s := strconv.Itoa(int(hp)) + "/" + strconv.Itoa(int(maxhp))
	if name := data.StatusName(status); name != "" {
		s += " " + name
	}
	return s
}

func enumName(table []string, v uint8) (string, error) {
	if int(v) >= len(table) {
		return "", fmt.Errorf("%w: reason %d", ErrMalformedLog, v)
	}
	return table[v], nil
}

var (
	cantReasons    = []string{"slp", "frz", "par", "partiallytrapped", "flinch", "Disable", "recharge", "nopp"}
	boostStats     = []string{"atk", "def", "spe", "spa", "spd", "accuracy", "evasion"}
	failReasons    = []string{"", "slp", "psn", "brn", "frz", "par", "tox", "move: Substitute", "move: Substitute"}
	activateEffect = []string{"Bide", "confusion", "move: Haze", "move: Mist", "move: Struggle", "Substitute", "move: Splash"}
	startEffect    = []string{"Bide", "confusion", "confusion", "move: Focus Energy", "move: Leech Seed", "Light Screen", "Mist", "Reflect", "Substitute", "typechange", "Disable", "Mimic"}
	endEffect      = []string{"Disable", "confusion", "move: Bide", "Substitute", "Disable", "confusion", "mist", "focusenergy", "leechseed", "lightscreen", "reflect"}
	statusSources  = []string{"psn", "brn", "confusion", "Leech Seed", "Recoil"}
)

// Start effects with extra payload or flags.
const (
	startConfusionSilent = 2
	startTypeChange      = 9
	startDisable         = 10
	startMimic           = 11
	endFirstSilent       = 4
	failWeak             = 8
	activateSubstitute   = 5
)

// decode consumes exactly one entry.
func (r *Reader) decode() (ParsedLine, error) {
	tag, _ := r.u8()
	switch ArgType(tag) {
	case ArgNone:
		r.done = true
		return ParsedLine{}, nil
	case ArgMove:
		return r.decodeMove()
	case ArgSwitch:
		b, err := r.take(8)
		if err != nil {
			return ParsedLine{}, err
		}
		who, err := r.ident(b[0])
		if err != nil {
			return ParsedLine{}, err
		}
		details := r.names.SpeciesName(b[1])
		if b[2] != 100 {
			details += ", L" + strconv.Itoa(int(b[2]))
		}
		hp := binary.LittleEndian.Uint16(b[3:])
		maxhp := binary.LittleEndian.Uint16(b[5:])
		return NewLine("switch", who, details, hpStatus(hp, maxhp, b[7])), nil
	case ArgCant:
		b, err := r.take(2)
		if err != nil {
			return ParsedLine{}, err
		}
		who, err := r.ident(b[0])
		if err != nil {
			return ParsedLine{}, err
		}
		reason, err := enumName(cantReasons, b[1])
		if err != nil {
			return ParsedLine{}, err
		}
		if reason == "Disable" {
			m, err := r.u8()
			if err != nil {
				return ParsedLine{}, err
			}
			return NewLine("cant", who, reason, r.move(m)), nil
		}
		return NewLine("cant", who, reason), nil
	case ArgFaint, ArgMiss, ArgMustRecharge, ArgCrit, ArgSuperEffective, ArgResisted:
		return r.decodeIdentOnly(ArgType(tag))
	case ArgTurn:
		b, err := r.take(2)
		if err != nil {
			return ParsedLine{}, err
		}
		return NewLine("turn", strconv.Itoa(int(binary.LittleEndian.Uint16(b)))), nil
	case ArgWin:
		p, err := r.u8()
		if err != nil {
			return ParsedLine{}, err
		}
		if p > 1 {
			return ParsedLine{}, fmt.Errorf("%w: player %d", ErrMalformedLog, p)
		}
		return NewLine("win", r.info.SideName(engine.Player(p))), nil
	case ArgTie:
		return NewLine("tie"), nil
	case ArgDamage, ArgHeal:
		return r.decodeHealth(ArgType(tag))
	case ArgStatus:
		return r.decodeStatus()
	case ArgCureStatus:
		b, err := r.take(3)
		if err != nil {
			return ParsedLine{}, err
		}
		who, err := r.ident(b[0])
		if err != nil {
			return ParsedLine{}, err
		}
		line := NewLine("-curestatus", who, data.StatusName(b[1]))
		switch b[2] {
		case 0:
			return line.With("msg", ""), nil
		case 1:
			return line.With("silent", ""), nil
		default:
			return ParsedLine{}, fmt.Errorf("%w: cure reason %d", ErrMalformedLog, b[2])
		}
	case ArgBoost:
		b, err := r.take(3)
		if err != nil {
			return ParsedLine{}, err
		}
		who, err := r.ident(b[0])
		if err != nil {
			return ParsedLine{}, err
		}
		stat, err := enumName(boostStats, b[1])
		if err != nil {
			return ParsedLine{}, err
		}
		n := int(int8(b[2]))
		if n < 0 {
			return NewLine("-unboost", who, stat, strconv.Itoa(-n)), nil
		}
		return NewLine("-boost", who, stat, strconv.Itoa(n)), nil
	case ArgClearAllBoost:
		return NewLine("-clearallboost"), nil
	case ArgFail:
		b, err := r.take(2)
		if err != nil {
			return ParsedLine{}, err
		}
		who, err := r.ident(b[0])
		if err != nil {
			return ParsedLine{}, err
		}
		reason, err := enumName(failReasons, b[1])
		if err != nil {
			return ParsedLine{}, err
		}
		if reason == "" {
			return NewLine("-fail", who), nil
		}
		line := NewLine("-fail", who, reason)
		if b[1] == failWeak {
			line = line.With("weak", "")
		}
		return line, nil
	case ArgHitCount:
		b, err := r.take(2)
		if err != nil {
			return ParsedLine{}, err
		}
		who, err := r.ident(b[0])
		if err != nil {
			return ParsedLine{}, err
		}
		return NewLine("-hitcount", who, strconv.Itoa(int(b[1]))), nil
	case ArgPrepare:
		b, err := r.take(2)
		if err != nil {
			return ParsedLine{}, err
		}
		who, err := r.ident(b[0])
		if err != nil {
			return ParsedLine{}, err
		}
		return NewLine("-prepare", who, r.move(b[1])), nil
	case ArgActivate:
		b, err := r.take(2)
		if err != nil {
			return ParsedLine{}, err
		}
		who, err := r.ident(b[0])
		if err != nil {
			return ParsedLine{}, err
		}
		effect, err := enumName(activateEffect, b[1])
		if err != nil {
			return ParsedLine{}, err
		}
		line := NewLine("-activate", who, effect)
		if b[1] == activateSubstitute {
			line = line.With("damage", "")
		}
		return line, nil
	case ArgFieldActivate:
		return NewLine("-fieldactivate", "move: Pay Day"), nil
	case ArgStart:
		return r.decodeStart()
	case ArgEnd:
		b, err := r.take(2)
		if err != nil {
			return ParsedLine{}, err
		}
		who, err := r.ident(b[0])
		if err != nil {
			return ParsedLine{}, err
		}
		effect, err := enumName(endEffect, b[1])
		if err != nil {
			return ParsedLine{}, err
		}
		line := NewLine("-end", who, effect)
		if b[1] >= endFirstSilent {
			line = line.With("silent", "")
		}
		return line, nil
	case ArgOHKO:
		return NewLine("-ohko"), nil
	case ArgImmune:
		b, err := r.take(2)
		if err != nil {
			return ParsedLine{}, err
		}
		who, err := r.ident(b[0])
		if err != nil {
			return ParsedLine{}, err
		}
		line := NewLine("-immune", who)
		if b[1] == 1 {
			line = line.With("ohko", "")
		}
		return line, nil
	case ArgTransform:
		b, err := r.take(2)
		if err != nil {
			return ParsedLine{}, err
		}
		source, err := r.ident(b[0])
		if err != nil {
			return ParsedLine{}, err
		}
		target, err := r.ident(b[1])
		if err != nil {
			return ParsedLine{}, err
		}
		return NewLine("-transform", source, target), nil
	case ArgLastStill, ArgLastMiss:
		return ParsedLine{}, fmt.Errorf("%w: modifier %d without preceding move", ErrMalformedLog, tag)
	default:
		return ParsedLine{}, fmt.Errorf("%w: unknown tag %d", ErrMalformedLog, tag)
	}
}

var identOnlyTags = map[ArgType]string{
	ArgFaint:          "faint",
	ArgMiss:           "-miss",
	ArgMustRecharge:   "-mustrecharge",
	ArgCrit:           "-crit",
	ArgSuperEffective: "-supereffective",
	ArgResisted:       "-resisted",
}

func (r *Reader) decodeIdentOnly(tag ArgType) (ParsedLine, error) {
	b, err := r.u8()
	if err != nil {
		return ParsedLine{}, err
	}
	who, err := r.ident(b)
	if err != nil {
		return ParsedLine{}, err
	}
	return NewLine(identOnlyTags[tag], who), nil
}

// decodeMove reads a Move entry along with any LastStill / LastMiss
// modifiers immediately following it.
func (r *Reader) decodeMove() (ParsedLine, error) {
	b, err := r.take(4)
	if err != nil {
		return ParsedLine{}, err
	}
	source, err := r.ident(b[0])
	if err != nil {
		return ParsedLine{}, err
	}
	target, err := r.ident(b[2])
	if err != nil {
		return ParsedLine{}, err
	}
	line := NewLine("move", source, r.move(b[1]), target)
	switch b[3] {
	case 0:
	case 1:
		m, err := r.u8()
		if err != nil {
			return ParsedLine{}, err
		}
		line = line.With("from", r.move(m))
	default:
		return ParsedLine{}, fmt.Errorf("%w: move reason %d", ErrMalformedLog, b[3])
	}
	for r.off < len(r.buf) {
		switch ArgType(r.buf[r.off]) {
		case ArgLastStill:
			line = line.With("still", "")
		case ArgLastMiss:
			line = line.With("miss", "")
		default:
			return line, nil
		}
		r.off++
	}
	return line, nil
}

// decodeHealth reads Damage and Heal entries, which share the identity and
// HP/status body and differ in their reason tables.
func (r *Reader) decodeHealth(tag ArgType) (ParsedLine, error) {
	b, err := r.take(7)
	if err != nil {
		return ParsedLine{}, err
	}
	who, err := r.ident(b[0])
	if err != nil {
		return ParsedLine{}, err
	}
	hp := binary.LittleEndian.Uint16(b[1:])
	maxhp := binary.LittleEndian.Uint16(b[3:])
	name := "-damage"
	if tag == ArgHeal {
		name = "-heal"
	}
	line := NewLine(name, who, hpStatus(hp, maxhp, b[5]))
	reason := b[6]
	if reason == 0 {
		return line, nil
	}
	if tag == ArgHeal {
		switch reason {
		case 1:
			return line.With("silent", ""), nil
		case 2:
			of, err := r.u8()
			if err != nil {
				return ParsedLine{}, err
			}
			ident, err := r.ident(of)
			if err != nil {
				return ParsedLine{}, err
			}
			return line.With("from", "drain").With("of", ident), nil
		default:
			return ParsedLine{}, fmt.Errorf("%w: heal reason %d", ErrMalformedLog, reason)
		}
	}
	source, err := enumName(statusSources, reason-1)
	if err != nil {
		return ParsedLine{}, err
	}
	line = line.With("from", source)
	if source == "Recoil" {
		of, err := r.u8()
		if err != nil {
			return ParsedLine{}, err
		}
		ident, err := r.ident(of)
		if err != nil {
			return ParsedLine{}, err
		}
		line = line.With("of", ident)
	}
	return line, nil
}

func (r *Reader) decodeStatus() (ParsedLine, error) {
	b, err := r.take(3)
	if err != nil {
		return ParsedLine{}, err
	}
	who, err := r.ident(b[0])
	if err != nil {
		return ParsedLine{}, err
	}
	line := NewLine("-status", who, data.StatusName(b[1]))
	switch b[2] {
	case 0:
		return line, nil
	case 1:
		return line.With("silent", ""), nil
	case 2:
		m, err := r.u8()
		if err != nil {
			return ParsedLine{}, err
		}
		return line.With("from", "move: "+r.move(m)), nil
	default:
		return ParsedLine{}, fmt.Errorf("%w: status reason %d", ErrMalformedLog, b[2])
	}
}

func (r *Reader) decodeStart() (ParsedLine, error) {
	b, err := r.take(2)
	if err != nil {
		return ParsedLine{}, err
	}
	who, err := r.ident(b[0])
	if err != nil {
		return ParsedLine{}, err
	}
	effect, err := enumName(startEffect, b[1])
	if err != nil {
		return ParsedLine{}, err
	}
	line := NewLine("-start", who, effect)
	switch b[1] {
	case startConfusionSilent:
		return line.With("silent", ""), nil
	case startTypeChange:
		x, err := r.take(2)
		if err != nil {
			return ParsedLine{}, err
		}
		types := r.names.TypeName(x[0] & 0x0F)
		if second := x[0] >> 4; second != x[0]&0x0F {
			types += "/" + r.names.TypeName(second)
		}
		of, err := r.ident(x[1])
		if err != nil {
			return ParsedLine{}, err
		}
		line.Args = append(line.Args, types)
		return line.With("from", "move: Conversion").With("of", of), nil
	case startDisable, startMimic:
		m, err := r.u8()
		if err != nil {
			return ParsedLine{}, err
		}
		line.Args = append(line.Args, r.move(m))
		return line, nil
	default:
		return line, nil
	}
}
