package engine

import (
	"errors"
	"fmt"
)

// ErrInvalidResult is returned when a result byte cannot be decoded.
var ErrInvalidResult = errors.New("invalid result")

// ResultType classifies the outcome of a round from Player 1's perspective.
type ResultType uint8

const (
	// ResultNone means the battle is still in progress.
	ResultNone ResultType = iota
	// ResultWin means Player 1 won.
	ResultWin
	// ResultLose means Player 1 lost.
	ResultLose
	// ResultTie means the battle ended in a tie.
	ResultTie
)

var resultTypeNames = [...]string{"none", "win", "lose", "tie"}

// String returns the lower-case name of the result type.
func (t ResultType) String() string {
	if int(t) < len(resultTypeNames) {
		return resultTypeNames[t]
	}
	return fmt.Sprintf("ResultType(%d)", uint8(t))
}

// Result is the outcome of applying one pair of choices. While the battle is
// in progress P1 and P2 carry the kind of decision each side must make next.
type Result struct {
	Type ResultType
	P1   ChoiceType
	P2   ChoiceType
}

// Terminal reports whether the battle has ended.
func (r Result) Terminal() bool {
	return r.Type != ResultNone
}

// Pending returns the kind of decision player must make next.
func (r Result) Pending(p Player) ChoiceType {
	if p == P2 {
		return r.P2
	}
	return r.P1
}

// Encode packs the result into its wire byte: type in the low nibble, then two
// bits per player.
func (r Result) Encode() byte {
	return byte(r.Type)&0x0F | (byte(r.P1)&0x03)<<4 | (byte(r.P2)&0x03)<<6
}

// DecodeResult unpacks a wire byte produced by Encode.
func DecodeResult(b byte) (Result, error) {
	r := Result{
		Type: ResultType(b & 0x0F),
		P1:   ChoiceType((b >> 4) & 0x03),
		P2:   ChoiceType(b >> 6),
	}
	if r.Type > ResultTie || r.P1 > ChoiceSwitch || r.P2 > ChoiceSwitch {
		return Result{}, fmt.Errorf("%w: byte 0x%02X", ErrInvalidResult, b)
	}
	return r, nil
}

// String renders the result for diagnostics.
func (r Result) String() string {
	if r.Terminal() {
		return r.Type.String()
	}
	return fmt.Sprintf("none (p1: %s, p2: %s)", r.P1, r.P2)
}
