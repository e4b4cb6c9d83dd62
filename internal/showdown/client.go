package showdown

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/baskuit/engine/internal/choices"
	"github.com/baskuit/engine/internal/data"
	"github.com/baskuit/engine/internal/engine"
	"github.com/baskuit/engine/internal/inputlog"
	"github.com/baskuit/engine/internal/lockstep"
	"github.com/baskuit/engine/internal/protocol"
)

// Caller performs one request against the simulator.
type Caller interface {
	Call(ctx context.Context, method string, params, result any) error
}

// Battle configures the battle a Client runs.
type Battle struct {
	Gen     data.Gen
	Seed    engine.Seed
	Players [2]inputlog.Player
	// AISeeds seed the simulator-side random players used by Choose.
	AISeeds [2]engine.Seed
}

// Client is the reference side of a lockstep battle. It also serves as the
// synchronizer's authority on requests and as a random chooser backed by the
// simulator's own AI.
type Client struct {
	conn     Caller
	battle   Battle
	seed     engine.Seed
	requests [2]choices.Request
	input    *inputlog.Log
}

var (
	_ lockstep.Engine   = (*Client)(nil)
	_ choices.Chooser   = (*Client)(nil)
	_ choices.Reference = authority{}
)

// NewClient returns a Client for one battle.
func NewClient(conn Caller, battle Battle) *Client {
	return &Client{
		conn:   conn,
		battle: battle,
		input: &inputlog.Log{
			Start:   inputlog.Start{FormatID: data.Format(battle.Gen), Seed: battle.Seed.Clone()},
			Players: battle.Players,
		},
	}
}

type startParams struct {
	FormatID string          `json:"formatid"`
	Seed     engine.Seed     `json:"seed"`
	P1       inputlog.Player `json:"p1"`
	P2       inputlog.Player `json:"p2"`
	AI       [2]engine.Seed  `json:"ai"`
}

type updateParams struct {
	P1 string `json:"p1"`
	P2 string `json:"p2"`
}

type playerParams struct {
	Player  string `json:"player"`
	Choice  string `json:"choice,omitempty"`
	Attempt int    `json:"attempt,omitempty"`
}

type requestState struct {
	State   string          `json:"state"`
	Request json.RawMessage `json:"request,omitempty"`
}

type update struct {
	Chunk    string          `json:"chunk"`
	Seed     engine.Seed     `json:"seed"`
	Ended    bool            `json:"ended"`
	Winner   string          `json:"winner"`
	Requests [2]requestState `json:"requests"`
}

type attemptResult struct {
	Accepted bool          `json:"accepted"`
	Request  *requestState `json:"request,omitempty"`
}

// Start implements lockstep.Engine.
func (c *Client) Start(ctx context.Context) (lockstep.Round, error) {
	params := startParams{
		FormatID: c.input.Start.FormatID,
		Seed:     c.battle.Seed,
		P1:       c.battle.Players[0],
		P2:       c.battle.Players[1],
		AI:       c.battle.AISeeds,
	}
	var u update
	if err := c.conn.Call(ctx, "start", params, &u); err != nil {
		return lockstep.Round{}, err
	}
	return c.apply(u)
}

// Submit implements lockstep.Engine. Submitted choices are appended to the
// input log.
func (c *Client) Submit(ctx context.Context, c1, c2 engine.Choice) (lockstep.Round, error) {
	var u update
	if err := c.conn.Call(ctx, "update", updateParams{P1: c1.String(), P2: c2.String()}, &u); err != nil {
		return lockstep.Round{}, err
	}
	c.input.Append(c1, c2)
	return c.apply(u)
}

// Legal implements lockstep.Engine. The simulator tracks its own requests,
// so result is ignored.
func (c *Client) Legal(ctx context.Context, p engine.Player, _ engine.Result) ([]engine.Choice, error) {
	return c.choices(ctx, p)
}

// Seed implements lockstep.Engine.
func (c *Client) Seed() engine.Seed {
	return c.seed
}

// Authority returns the view of the client the choice synchronizer consults.
func (c *Client) Authority() choices.Reference {
	return authority{c}
}

type authority struct{ c *Client }

func (a authority) Request(_ context.Context, p engine.Player) (choices.Request, error) {
	return a.c.requests[p], nil
}

func (a authority) Legal(ctx context.Context, p engine.Player) ([]engine.Choice, error) {
	return a.c.choices(ctx, p)
}

func (a authority) Attempt(ctx context.Context, p engine.Player, choice engine.Choice) (bool, error) {
	c := a.c
	var res attemptResult
	if err := c.conn.Call(ctx, "attempt", playerParams{Player: p.String(), Choice: choice.String()}, &res); err != nil {
		return false, err
	}
	if res.Request != nil {
		req, err := toRequest(*res.Request)
		if err != nil {
			return false, err
		}
		c.requests[p] = req
	}
	return res.Accepted, nil
}

// Choose implements choices.Chooser using the simulator's random AI for p.
func (c *Client) Choose(ctx context.Context, p engine.Player, req choices.Request) (engine.Choice, error) {
	var s string
	if err := c.conn.Call(ctx, "choose", playerParams{Player: p.String(), Attempt: req.Attempt}, &s); err != nil {
		return engine.Choice{}, err
	}
	return engine.ParseChoice(s)
}

// InputLog returns the battle's input log so far.
func (c *Client) InputLog() *inputlog.Log {
	return c.input
}

// GenerateTeam asks the simulator for a random packed team for gen.
func GenerateTeam(ctx context.Context, conn Caller, gen data.Gen, seed engine.Seed) (string, error) {
	var team string
	params := struct {
		FormatID string      `json:"formatid"`
		Seed     engine.Seed `json:"seed"`
	}{FormatID: data.Format(gen), Seed: seed}
	if err := conn.Call(ctx, "team", params, &team); err != nil {
		return "", err
	}
	return team, nil
}

func (c *Client) choices(ctx context.Context, p engine.Player) ([]engine.Choice, error) {
	var raw []string
	if err := c.conn.Call(ctx, "choices", playerParams{Player: p.String()}, &raw); err != nil {
		return nil, err
	}
	out := make([]engine.Choice, 0, len(raw))
	for _, s := range raw {
		choice, err := engine.ParseChoice(s)
		if err != nil {
			return nil, fmt.Errorf("choices for %s: %w", p, err)
		}
		out = append(out, choice)
	}
	return out, nil
}

func (c *Client) apply(u update) (lockstep.Round, error) {
	for i, rs := range u.Requests {
		req, err := toRequest(rs)
		if err != nil {
			return lockstep.Round{}, fmt.Errorf("%s request: %w", engine.Players[i], err)
		}
		c.requests[i] = req
	}
	result, err := c.toResult(u)
	if err != nil {
		return lockstep.Round{}, err
	}
	c.seed = u.Seed.Clone()
	return lockstep.Round{
		Result: result,
		Log:    protocol.ParseChunk(u.Chunk),
		Chunk:  u.Chunk,
		Seed:   c.seed,
	}, nil
}

func toRequest(rs requestState) (choices.Request, error) {
	kind, err := choices.ParseRequestKind(rs.State)
	if err != nil {
		return choices.Request{}, err
	}
	return choices.Request{Kind: kind, Raw: rs.Request}, nil
}

// toResult derives the round's result from the battle's end state or, while
// it is in progress, from each player's own request.
func (c *Client) toResult(u update) (engine.Result, error) {
	if u.Ended {
		switch u.Winner {
		case "":
			return engine.Result{Type: engine.ResultTie}, nil
		case c.battle.Players[0].Name:
			return engine.Result{Type: engine.ResultWin}, nil
		case c.battle.Players[1].Name:
			return engine.Result{Type: engine.ResultLose}, nil
		default:
			return engine.Result{}, fmt.Errorf("unknown winner %q", u.Winner)
		}
	}
	return engine.Result{
		Type: engine.ResultNone,
		P1:   pending(c.requests[0].Kind),
		P2:   pending(c.requests[1].Kind),
	}, nil
}

func pending(k choices.RequestKind) engine.ChoiceType {
	switch k {
	case choices.RequestMove:
		return engine.ChoiceMove
	case choices.RequestSwitch:
		return engine.ChoiceSwitch
	default:
		return engine.ChoicePass
	}
}
