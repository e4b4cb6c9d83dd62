package choices

import (
	"context"
	"fmt"

	"github.com/baskuit/engine/internal/engine"
)

// Source supplies candidate choices for each round.
type Source interface {
	// Propose returns the candidate for p in round, given its request.
	Propose(ctx context.Context, round int, p engine.Player, req Request) (engine.Choice, error)
	// Retries reports whether a rejected candidate may be replaced.
	Retries() bool
}

// Replay replays recorded choices. Round n (1-based) uses Choices[n-1].
type Replay struct {
	Choices [][2]engine.Choice
}

// Propose implements Source.
func (r Replay) Propose(_ context.Context, round int, p engine.Player, _ Request) (engine.Choice, error) {
	if round < 1 || round > len(r.Choices) {
		return engine.Choice{}, &ChoiceSynchronizationError{
			Round: round, Player: p, Replay: true, Missing: true,
			Reason: fmt.Sprintf("recorded rounds: %d", len(r.Choices)),
		}
	}
	return r.Choices[round-1][p], nil
}

// Retries implements Source.
func (Replay) Retries() bool { return false }

// Explore asks a Chooser for every decision.
type Explore struct {
	Chooser Chooser
}

// Propose implements Source.
func (e Explore) Propose(ctx context.Context, _ int, p engine.Player, req Request) (engine.Choice, error) {
	return e.Chooser.Choose(ctx, p, req)
}

// Retries implements Source.
func (Explore) Retries() bool { return true }

// Synchronizer resolves one round's pair of choices against the reference.
type Synchronizer struct {
	Reference   Reference
	Source      Source
	MaxAttempts int
}

// Resolve returns the choices both players submit in round. Players without
// an active request pass. Every returned choice is legal for the reference.
func (s *Synchronizer) Resolve(ctx context.Context, round int) ([2]engine.Choice, error) {
	var out [2]engine.Choice
	for _, p := range engine.Players {
		c, err := s.resolve(ctx, round, p)
		if err != nil {
			return out, err
		}
		out[p] = c
	}
	return out, nil
}

func (s *Synchronizer) resolve(ctx context.Context, round int, p engine.Player) (engine.Choice, error) {
	req, err := s.Reference.Request(ctx, p)
	if err != nil {
		return engine.Choice{}, fmt.Errorf("request %s: %w", p, err)
	}
	if !s.Source.Retries() {
		return s.replay(ctx, round, p, req)
	}
	if req.Kind.Passive() {
		return engine.Pass(), nil
	}

	limit := s.MaxAttempts
	if limit <= 0 {
		limit = DefaultMaxAttempts
	}
	for attempt := 0; ; attempt++ {
		legal, err := s.Reference.Legal(ctx, p)
		if err != nil {
			return engine.Choice{}, fmt.Errorf("legal choices %s: %w", p, err)
		}
		req.Legal, req.Attempt = legal, attempt
		c, err := s.Source.Propose(ctx, round, p, req)
		if err != nil {
			return engine.Choice{}, fmt.Errorf("choose %s: %w", p, err)
		}
		if engine.Contains(legal, c) {
			return c, nil
		}
		if attempt+1 >= limit {
			return engine.Choice{}, &ChoiceSynchronizationError{
				Round: round, Player: p, Choice: c, Attempts: attempt + 1,
				Reason: "no legal choice proposed",
			}
		}
		accepted, err := s.Reference.Attempt(ctx, p, c)
		if err != nil {
			return engine.Choice{}, fmt.Errorf("attempt %s %s: %w", p, c, err)
		}
		if accepted {
			return engine.Choice{}, &ChoiceSynchronizationError{
				Round: round, Player: p, Choice: c, Attempts: attempt + 1,
				Reason: "reference accepted a choice outside its legal set",
			}
		}
		if req, err = s.Reference.Request(ctx, p); err != nil {
			return engine.Choice{}, fmt.Errorf("request %s: %w", p, err)
		}
		if req.Kind.Passive() {
			return engine.Pass(), nil
		}
	}
}

func (s *Synchronizer) replay(ctx context.Context, round int, p engine.Player, req Request) (engine.Choice, error) {
	c, err := s.Source.Propose(ctx, round, p, req)
	if err != nil {
		return engine.Choice{}, err
	}
	if req.Kind.Passive() {
		if c.Type != engine.ChoicePass {
			return engine.Choice{}, &ChoiceSynchronizationError{
				Round: round, Player: p, Choice: c, Replay: true,
				Reason: fmt.Sprintf("player has no active request (%s)", req.Kind),
			}
		}
		return c, nil
	}
	legal, err := s.Reference.Legal(ctx, p)
	if err != nil {
		return engine.Choice{}, fmt.Errorf("legal choices %s: %w", p, err)
	}
	if !engine.Contains(legal, c) {
		return engine.Choice{}, &ChoiceSynchronizationError{
			Round: round, Player: p, Choice: c, Replay: true,
			Reason: "not a legal choice",
		}
	}
	return c, nil
}
