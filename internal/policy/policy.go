// Package policy chooses moves with a user-supplied Lua script.
//
// The script defines a global function choose(request). The request table
// has the fields player ("p1" or "p2"), kind ("move", "switch", "wait" or
// "none"), choices (a list of choice strings the reference accepts) and
// attempt (how many candidates were already rejected this round). choose
// returns a choice string such as "move 2". Scripts may call random(n) for a
// deterministic integer in [0, n).
package policy

import (
	"context"
	"fmt"
	"sync"

	"github.com/Shopify/go-lua"

	"github.com/baskuit/engine/internal/choices"
	"github.com/baskuit/engine/internal/engine"
	"github.com/baskuit/engine/internal/random"
)

const entrypoint = "choose"

// Policy is a Lua-backed chooser. A Policy is safe for concurrent use, but
// calls are serialized.
type Policy struct {
	mu    sync.Mutex
	state *lua.State
	prng  *random.PRNG
}

var _ choices.Chooser = (*Policy)(nil)

// Load reads a policy script from path.
func Load(path string, seed engine.Seed) (*Policy, error) {
	return load(seed, func(state *lua.State) error {
		return lua.LoadFile(state, path, "")
	})
}

// New compiles a policy from source.
func New(source string, seed engine.Seed) (*Policy, error) {
	return load(seed, func(state *lua.State) error {
		return lua.LoadString(state, source)
	})
}

func load(seed engine.Seed, chunk func(*lua.State) error) (*Policy, error) {
	prng, err := random.NewPRNG(seed)
	if err != nil {
		return nil, fmt.Errorf("policy seed: %w", err)
	}
	p := &Policy{state: lua.NewState(), prng: prng}
	lua.OpenLibraries(p.state)
	p.state.Register("random", p.random)

	if err := chunk(p.state); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	if err := p.state.ProtectedCall(0, 0, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}
	p.state.Global(entrypoint)
	defined := p.state.IsFunction(-1)
	p.state.Pop(1)
	if !defined {
		return nil, fmt.Errorf("policy script must define %s(request)", entrypoint)
	}
	return p, nil
}

// Choose implements choices.Chooser.
func (p *Policy) Choose(ctx context.Context, player engine.Player, req choices.Request) (engine.Choice, error) {
	if err := ctx.Err(); err != nil {
		return engine.Choice{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	l := p.state
	l.Global(entrypoint)
	l.NewTable()
	l.PushString(player.String())
	l.SetField(-2, "player")
	l.PushString(req.Kind.String())
	l.SetField(-2, "kind")
	l.PushInteger(req.Attempt)
	l.SetField(-2, "attempt")
	l.CreateTable(len(req.Legal), 0)
	for i, c := range req.Legal {
		l.PushString(c.String())
		l.RawSetInt(-2, i+1)
	}
	l.SetField(-2, "choices")

	if err := l.ProtectedCall(1, 1, 0); err != nil {
		return engine.Choice{}, fmt.Errorf("%s for %s: %w", entrypoint, player, err)
	}
	s, ok := l.ToString(-1)
	l.Pop(1)
	if !ok {
		return engine.Choice{}, fmt.Errorf("%s for %s: expected a choice string", entrypoint, player)
	}
	return engine.ParseChoice(s)
}

func (p *Policy) random(l *lua.State) int {
	n := lua.CheckInteger(l, 1)
	lua.ArgumentCheck(l, n > 0, 1, "must be positive")
	l.PushInteger(int(p.prng.Next(uint32(n))))
	return 1
}
