// Package engine defines the values exchanged with a battle engine: players,
// choices, results and PRNG seeds, along with their single-byte encodings.
package engine

import "fmt"

// Player identifies one side of a battle.
type Player uint8

const (
	// P1 is the first player.
	P1 Player = iota
	// P2 is the second player.
	P2
)

// Players lists both players in protocol order.
var Players = [2]Player{P1, P2}

// String returns the protocol identifier of the player ("p1" or "p2").
func (p Player) String() string {
	if p == P2 {
		return "p2"
	}
	return "p1"
}

// Foe returns the opposing player.
func (p Player) Foe() Player {
	return p ^ 1
}

// ParsePlayer parses a protocol player identifier.
func ParsePlayer(s string) (Player, error) {
	switch s {
	case "p1":
		return P1, nil
	case "p2":
		return P2, nil
	default:
		return 0, fmt.Errorf("invalid player %q", s)
	}
}
