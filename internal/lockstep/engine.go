// Package lockstep drives the engine under test and the reference simulator
// through the same battle one round at a time, comparing results, logs and
// PRNG state after every round.
package lockstep

import (
	"context"
	"fmt"

	"github.com/baskuit/engine/internal/engine"
	"github.com/baskuit/engine/internal/frame"
	apperrors "github.com/baskuit/engine/internal/platform/errors"
	"github.com/baskuit/engine/internal/protocol"
)

// Round is what an engine reports after starting or applying choices.
type Round struct {
	Result engine.Result
	// Battle is the decoded snapshot, nil when the engine exposes none.
	Battle *frame.Battle
	// Log is the round's parsed protocol output.
	Log []protocol.ParsedLine
	// Chunk is the raw text output, for engines that produce text.
	Chunk string
	// Seed is the PRNG state after the round.
	Seed engine.Seed
}

// Engine is one participant in a lockstep battle.
type Engine interface {
	// Start begins the battle and reports the state before any choice.
	Start(ctx context.Context) (Round, error)
	// Submit applies one choice per player.
	Submit(ctx context.Context, c1, c2 engine.Choice) (Round, error)
	// Legal returns the choices p may make given the last result.
	Legal(ctx context.Context, p engine.Player, result engine.Result) ([]engine.Choice, error)
	// Seed returns the PRNG state reported by the most recent round.
	Seed() engine.Seed
}

// Kind classifies a divergence.
type Kind string

// Divergence kinds.
const (
	KindStart       Kind = "start"
	KindResult      Kind = "result"
	KindLog         Kind = "log"
	KindSeed        Kind = "seed"
	KindChoice      Kind = "choice"
	KindTermination Kind = "termination"
)

// DivergenceError reports that the engines disagreed in a round. Round 0 is
// the battle start.
type DivergenceError struct {
	Round int
	Kind  Kind
	Want  string
	Got   string
	Cause error
}

func (e *DivergenceError) Error() string {
	msg := fmt.Sprintf("round %d: %s divergence", e.Round, e.Kind)
	if e.Want != "" || e.Got != "" {
		msg += fmt.Sprintf(": want %s, got %s", e.Want, e.Got)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the comparison error that triggered the divergence.
func (e *DivergenceError) Unwrap() error { return e.Cause }

// ErrorCode implements apperrors.Coded.
func (e *DivergenceError) ErrorCode() apperrors.Code { return apperrors.CodeDivergence }

// toFrame records a round with the choices that produced it.
func toFrame(r Round, c1, c2 engine.Choice) frame.Frame {
	return frame.Frame{
		Result: r.Result,
		C1:     c1,
		C2:     c2,
		Battle: r.Battle,
		Log:    r.Log,
		Seed:   r.Seed.Clone(),
		Chunk:  r.Chunk,
	}
}
