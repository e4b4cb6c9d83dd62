package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/baskuit/engine/internal/choices"
	"github.com/baskuit/engine/internal/data"
	"github.com/baskuit/engine/internal/engine"
	"github.com/baskuit/engine/internal/inputlog"
	"github.com/baskuit/engine/internal/lockstep"
	"github.com/baskuit/engine/internal/native"
	"github.com/baskuit/engine/internal/policy"
	"github.com/baskuit/engine/internal/random"
	"github.com/baskuit/engine/internal/showdown"
)

// Setup describes one battle to start.
type Setup struct {
	Gen data.Gen
	// Input carries the start line and both players. Teams left empty are
	// generated from TeamSeed.
	Input    *inputlog.Log
	TeamSeed engine.Seed
	AISeeds  [2]engine.Seed
}

// Session is one battle's pair of engines.
type Session struct {
	Reference lockstep.Engine
	// Authority answers the synchronizer's questions about requests.
	Authority choices.Reference
	Engine    lockstep.Engine
	// Chooser proposes choices when exploring.
	Chooser choices.Chooser
	// Input returns the reference's input log so far.
	Input func() *inputlog.Log
	Close func() error
}

// Factory starts battles.
type Factory interface {
	NewSession(ctx context.Context, setup Setup) (*Session, error)
}

// Processes starts both engines as child processes.
type Processes struct {
	// Showdown runs the reference simulator bridge.
	Showdown showdown.ProcessConfig
	// Engine runs the engine's lockstep binary.
	Engine []string
	// Policy is an optional Lua script choosing for both players; by
	// default the reference's random AI chooses.
	Policy string
}

// NewSession implements Factory.
func (f Processes) NewSession(ctx context.Context, setup Setup) (*Session, error) {
	conn, err := showdown.StartProcess(ctx, f.Showdown)
	if err != nil {
		return nil, err
	}
	input := setup.Input
	var teams *random.PRNG
	for i := range input.Players {
		if input.Players[i].Team != "" {
			continue
		}
		if teams == nil {
			if teams, err = random.NewPRNG(setup.TeamSeed); err != nil {
				_ = conn.Close()
				return nil, fmt.Errorf("team seed: %w", err)
			}
		}
		team, err := showdown.GenerateTeam(ctx, conn, setup.Gen, random.Derive(teams))
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("generate %s team: %w", engine.Players[i], err)
		}
		input.Players[i].Team = team
	}

	ref := showdown.NewClient(conn, showdown.Battle{
		Gen:     setup.Gen,
		Seed:    input.Start.Seed,
		Players: input.Players,
		AISeeds: setup.AISeeds,
	})
	eng, err := native.StartProcess(ctx, f.Engine, native.Config{
		Start: native.Start{
			Gen:      setup.Gen,
			Seed:     input.Start.Seed,
			Showdown: true,
			Teams:    [2]string{input.Players[0].Team, input.Players[1].Team},
		},
		Info: input.Info(),
	})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	var chooser choices.Chooser = ref
	if f.Policy != "" {
		chooser, err = newPolicyChooser(f.Policy, setup.AISeeds)
		if err != nil {
			_ = conn.Close()
			_ = eng.Close()
			return nil, err
		}
	}

	return &Session{
		Reference: ref,
		Authority: ref.Authority(),
		Engine:    eng,
		Chooser:   chooser,
		Input:     ref.InputLog,
		Close: func() error {
			return errors.Join(eng.Close(), conn.Close())
		},
	}, nil
}

// newPolicyChooser loads one policy per player so each draws from its own
// seed.
func newPolicyChooser(path string, seeds [2]engine.Seed) (choices.Chooser, error) {
	var players [2]*policy.Policy
	for i := range players {
		p, err := policy.Load(path, seeds[i])
		if err != nil {
			return nil, err
		}
		players[i] = p
	}
	return choices.ChooserFunc(func(ctx context.Context, p engine.Player, req choices.Request) (engine.Choice, error) {
		return players[p].Choose(ctx, p, req)
	}), nil
}
