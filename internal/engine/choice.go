package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidChoice is returned when a choice cannot be decoded or parsed.
var ErrInvalidChoice = errors.New("invalid choice")

// ChoiceType is the kind of decision a player makes, and also the kind of
// decision a Result says a player is waiting on.
type ChoiceType uint8

const (
	// ChoicePass is the empty decision (and "must wait" as a pending kind).
	ChoicePass ChoiceType = iota
	// ChoiceMove selects a move slot.
	ChoiceMove
	// ChoiceSwitch selects a party slot to switch to.
	ChoiceSwitch
)

var choiceTypeNames = [...]string{"pass", "move", "switch"}

// String returns the protocol name of the choice type.
func (t ChoiceType) String() string {
	if int(t) < len(choiceTypeNames) {
		return choiceTypeNames[t]
	}
	return fmt.Sprintf("ChoiceType(%d)", uint8(t))
}

// maxChoiceData is the largest payload representable in a choice byte.
const maxChoiceData = 0x3F

// Choice is a single decision: a type tag plus a small payload (move slot or
// party slot). Two choices are equal iff both fields are equal.
type Choice struct {
	Type ChoiceType
	Data uint8
}

// Pass returns the pass choice.
func Pass() Choice { return Choice{Type: ChoicePass} }

// Move returns a choice to use the move in slot.
func Move(slot uint8) Choice { return Choice{Type: ChoiceMove, Data: slot} }

// Switch returns a choice to switch to the party member in slot.
func Switch(slot uint8) Choice { return Choice{Type: ChoiceSwitch, Data: slot} }

// Encode packs the choice into its wire byte: the type in the low two bits
// and the payload in the upper six.
func (c Choice) Encode() byte {
	return byte(c.Type)&0x03 | (c.Data&maxChoiceData)<<2
}

// DecodeChoice unpacks a wire byte produced by Encode.
func DecodeChoice(b byte) (Choice, error) {
	t := ChoiceType(b & 0x03)
	if t > ChoiceSwitch {
		return Choice{}, fmt.Errorf("%w: byte 0x%02X", ErrInvalidChoice, b)
	}
	return Choice{Type: t, Data: b >> 2}, nil
}

// String renders the choice in the reference simulator's text syntax.
func (c Choice) String() string {
	if c.Type == ChoicePass {
		return "pass"
	}
	return c.Type.String() + " " + strconv.Itoa(int(c.Data))
}

// ParseChoice parses "pass", "move N" or "switch N".
func ParseChoice(s string) (Choice, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Choice{}, fmt.Errorf("%w: empty", ErrInvalidChoice)
	}
	var t ChoiceType
	switch fields[0] {
	case "pass":
		if len(fields) != 1 {
			return Choice{}, fmt.Errorf("%w: %q", ErrInvalidChoice, s)
		}
		return Pass(), nil
	case "move":
		t = ChoiceMove
	case "switch":
		t = ChoiceSwitch
	default:
		return Choice{}, fmt.Errorf("%w: %q", ErrInvalidChoice, s)
	}
	if len(fields) != 2 {
		return Choice{}, fmt.Errorf("%w: %q", ErrInvalidChoice, s)
	}
	n, err := strconv.ParseUint(fields[1], 10, 8)
	if err != nil || n > maxChoiceData {
		return Choice{}, fmt.Errorf("%w: %q", ErrInvalidChoice, s)
	}
	return Choice{Type: t, Data: uint8(n)}, nil
}

// Contains reports whether choice is present in set.
func Contains(set []Choice, choice Choice) bool {
	for _, c := range set {
		if c == choice {
			return true
		}
	}
	return false
}
