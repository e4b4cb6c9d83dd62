// Package choices decides what each player submits every round so that the
// reference simulator and the engine receive identical, legal input.
package choices

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/baskuit/engine/internal/engine"
	apperrors "github.com/baskuit/engine/internal/platform/errors"
)

// DefaultMaxAttempts bounds how many illegal candidates an exploratory chooser
// may propose for one player in one round.
const DefaultMaxAttempts = 64

// RequestKind is the kind of decision a player is being asked to make.
type RequestKind uint8

const (
	// RequestNone means the player has no active request.
	RequestNone RequestKind = iota
	// RequestWait means the player must wait for the opponent.
	RequestWait
	// RequestMove asks for a move (or a voluntary switch).
	RequestMove
	// RequestSwitch asks for a forced switch.
	RequestSwitch
)

var requestKindNames = [...]string{"none", "wait", "move", "switch"}

func (k RequestKind) String() string {
	if int(k) < len(requestKindNames) {
		return requestKindNames[k]
	}
	return fmt.Sprintf("RequestKind(%d)", k)
}

// ParseRequestKind parses a reference request state ("", "wait", "move",
// "switch").
func ParseRequestKind(s string) (RequestKind, error) {
	switch s {
	case "", "none":
		return RequestNone, nil
	case "wait":
		return RequestWait, nil
	case "move":
		return RequestMove, nil
	case "switch":
		return RequestSwitch, nil
	default:
		return 0, fmt.Errorf("unknown request kind %q", s)
	}
}

// Passive reports whether the only acceptable choice is pass.
func (k RequestKind) Passive() bool {
	return k == RequestNone || k == RequestWait
}

// Request is a player's pending decision as seen by a chooser.
type Request struct {
	Kind RequestKind
	// Legal is the reference's current set of legal choices.
	Legal []engine.Choice
	// Attempt counts the candidates already rejected this round.
	Attempt int
	// Raw is the reference's request payload, when it provides one.
	Raw json.RawMessage
}

// Reference is the engine whose requests are authoritative.
type Reference interface {
	// Request returns the player's active request.
	Request(ctx context.Context, p engine.Player) (Request, error)
	// Legal returns the choices the reference accepts for the player now.
	Legal(ctx context.Context, p engine.Player) ([]engine.Choice, error)
	// Attempt submits a choice to the reference's validator without
	// committing it. Submitting a choice the reference rejects refreshes the
	// player's request.
	Attempt(ctx context.Context, p engine.Player, c engine.Choice) (bool, error)
}

// Chooser proposes a choice for a request.
type Chooser interface {
	Choose(ctx context.Context, p engine.Player, req Request) (engine.Choice, error)
}

// ChooserFunc adapts a function to Chooser.
type ChooserFunc func(ctx context.Context, p engine.Player, req Request) (engine.Choice, error)

// Choose implements Chooser.
func (f ChooserFunc) Choose(ctx context.Context, p engine.Player, req Request) (engine.Choice, error) {
	return f(ctx, p, req)
}

// ChoiceSynchronizationError reports that no legal choice could be agreed
// on for a player.
type ChoiceSynchronizationError struct {
	Round  int
	Player engine.Player
	Choice engine.Choice
	Replay bool
	// Missing is set when the input log ran out before the battle ended.
	Missing  bool
	Attempts int
	Reason   string
}

func (e *ChoiceSynchronizationError) Error() string {
	source := "chooser"
	if e.Replay {
		source = "input log"
	}
	if e.Missing {
		return fmt.Sprintf("round %d: %s has no choice for %s: %s", e.Round, source, e.Player, e.Reason)
	}
	msg := fmt.Sprintf("round %d: %s choice %q for %s", e.Round, source, e.Choice, e.Player)
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	return msg + ": " + e.Reason
}

// ErrorCode implements apperrors.Coded.
func (e *ChoiceSynchronizationError) ErrorCode() apperrors.Code {
	return apperrors.CodeChoiceSynchronization
}
