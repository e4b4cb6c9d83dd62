package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/baskuit/engine/internal/artifact"
	"github.com/baskuit/engine/internal/choices"
	"github.com/baskuit/engine/internal/engine"
	"github.com/baskuit/engine/internal/inputlog"
	"github.com/baskuit/engine/internal/lockstep"
	apperrors "github.com/baskuit/engine/internal/platform/errors"
	"github.com/baskuit/engine/internal/protocol"
	"github.com/baskuit/engine/internal/random"
)

var pending = engine.Result{P1: engine.ChoiceMove, P2: engine.ChoiceMove}

// fakeEngine plays a two-round battle ending in a tie.
type fakeEngine struct {
	round   int
	seed    engine.Seed
	diverge bool
	err     error
}

func (e *fakeEngine) Start(context.Context) (lockstep.Round, error) {
	return lockstep.Round{Result: pending, Log: []protocol.ParsedLine{protocol.NewLine("turn", "1")}, Seed: e.seed}, nil
}

func (e *fakeEngine) Submit(context.Context, engine.Choice, engine.Choice) (lockstep.Round, error) {
	e.round++
	if e.err != nil {
		return lockstep.Round{}, e.err
	}
	if e.diverge {
		e.seed = engine.Seed{9, 9, 9, 9}
	}
	if e.round >= 2 {
		return lockstep.Round{Result: engine.Result{Type: engine.ResultTie}, Log: []protocol.ParsedLine{protocol.NewLine("tie")}, Seed: e.seed}, nil
	}
	return lockstep.Round{Result: pending, Log: []protocol.ParsedLine{protocol.NewLine("turn", "2")}, Seed: e.seed}, nil
}

func (e *fakeEngine) Legal(context.Context, engine.Player, engine.Result) ([]engine.Choice, error) {
	return []engine.Choice{engine.Move(1)}, nil
}

func (e *fakeEngine) Seed() engine.Seed { return e.seed }

type authority struct{}

func (authority) Request(context.Context, engine.Player) (choices.Request, error) {
	return choices.Request{Kind: choices.RequestMove}, nil
}

func (authority) Legal(context.Context, engine.Player) ([]engine.Choice, error) {
	return []engine.Choice{engine.Move(1)}, nil
}

func (authority) Attempt(context.Context, engine.Player, engine.Choice) (bool, error) {
	return true, nil
}

type fakeFactory struct {
	mu      sync.Mutex
	setups  []Setup
	diverge bool
	err     error
	// submitErr is returned by the engine under test on every update.
	submitErr error
}

func (f *fakeFactory) NewSession(_ context.Context, setup Setup) (*Session, error) {
	f.mu.Lock()
	f.setups = append(f.setups, setup)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	seed := setup.Input.Start.Seed
	return &Session{
		Reference: &fakeEngine{seed: seed},
		Authority: authority{},
		Engine:    &fakeEngine{seed: seed, diverge: f.diverge, err: f.submitErr},
		Chooser: choices.ChooserFunc(func(context.Context, engine.Player, choices.Request) (engine.Choice, error) {
			return engine.Move(1), nil
		}),
		Input: func() *inputlog.Log { return setup.Input },
		Close: func() error { return nil },
	}, nil
}

func newRunner(t *testing.T, factory Factory, out io.Writer) (*Runner, string) {
	t.Helper()
	dir := t.TempDir()
	logger := log.New(io.Discard, "", 0)
	r, err := New(Config{
		Factory:  factory,
		Capturer: artifact.NewCapturer(artifact.Config{Dir: dir, WorkDir: dir, ErrOut: io.Discard, Logger: logger}),
		LogDir:   dir,
		Out:      out,
		Logger:   logger,
		Verbose:  true,
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return r, dir
}

func TestExploreDerivesSeedsSequentially(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{}
	var out bytes.Buffer
	r, _ := newRunner(t, factory, &out)
	seed := engine.Seed{1, 2, 3, 4}

	summary, err := r.Explore(context.Background(), ExploreOptions{Gen: 1, Seed: seed, Cycles: 3})
	if err != nil {
		t.Fatalf("explore: %v", err)
	}
	if summary.Battles != 3 || summary.Failures != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if !strings.Contains(out.String(), "3 battles, 0 failures") {
		t.Fatalf("output = %q", out.String())
	}

	root, err := random.NewPRNG(seed)
	if err != nil {
		t.Fatalf("prng: %v", err)
	}
	for i, setup := range factory.setups {
		if !setup.Input.Start.Seed.Equal(root.Seed()) {
			t.Fatalf("battle %d seed = %v, want %v", i, setup.Input.Start.Seed, root.Seed())
		}
		team, p1, p2 := random.Derive(root), random.Derive(root), random.Derive(root)
		if !setup.TeamSeed.Equal(team) || !setup.AISeeds[0].Equal(p1) || !setup.AISeeds[1].Equal(p2) {
			t.Fatalf("battle %d seeds = %+v", i, setup)
		}
		if setup.Input.Start.FormatID != "gen1customgame" {
			t.Fatalf("format = %q", setup.Input.Start.FormatID)
		}
	}
}

func TestExploreStopsAtMaxFailures(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{diverge: true}
	r, dir := newRunner(t, factory, io.Discard)

	summary, err := r.Explore(context.Background(), ExploreOptions{Seed: engine.Seed{1, 2, 3, 4}, Cycles: 10, MaxFailures: 2})
	if err != nil {
		t.Fatalf("explore: %v", err)
	}
	if summary.Failures != 2 || summary.Battles != 2 {
		t.Fatalf("summary = %+v", summary)
	}
	if _, err := os.Readlink(filepath.Join(dir, "pkmn.html")); err != nil {
		t.Fatalf("expected captured report: %v", err)
	}
}

func TestExploreCountsUndecodableEngineOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{name: "truncated", err: &protocol.TruncatedBufferError{Offset: 3, Need: 384, Have: 10}},
		{name: "malformed", err: fmt.Errorf("%w: unknown tag 99", protocol.ErrMalformedLog)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, dir := newRunner(t, &fakeFactory{submitErr: tt.err}, io.Discard)
			summary, err := r.Explore(context.Background(), ExploreOptions{Gen: 1, Seed: engine.Seed{1, 2, 3, 4}, Cycles: 3, MaxFailures: 5})
			if err != nil {
				t.Fatalf("explore: %v", err)
			}
			if summary.Battles != 3 || summary.Failures != 3 {
				t.Fatalf("summary = %+v", summary)
			}
			if _, err := os.Readlink(filepath.Join(dir, "input.log")); err != nil {
				t.Fatalf("expected captured input log: %v", err)
			}
		})
	}
}

func TestExploreParallel(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{}
	r, _ := newRunner(t, factory, io.Discard)
	summary, err := r.Explore(context.Background(), ExploreOptions{Seed: engine.Seed{4, 3, 2, 1}, Cycles: 8, Parallelism: 4})
	if err != nil {
		t.Fatalf("explore: %v", err)
	}
	if summary.Battles != 8 || len(factory.setups) != 8 {
		t.Fatalf("summary = %+v, setups = %d", summary, len(factory.setups))
	}
}

func TestExploreReturnsHarnessErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("node not found")
	r, _ := newRunner(t, &fakeFactory{err: boom}, io.Discard)
	_, err := r.Explore(context.Background(), ExploreOptions{Seed: engine.Seed{1, 2, 3, 4}, Cycles: 5})
	if !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}
}

func TestExploreCancelledBeforeStart(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, _ := newRunner(t, &fakeFactory{}, io.Discard)
	summary, err := r.Explore(ctx, ExploreOptions{Seed: engine.Seed{1, 2, 3, 4}})
	if err != nil {
		t.Fatalf("explore: %v", err)
	}
	if summary.Battles != 0 {
		t.Fatalf("battles = %d", summary.Battles)
	}
}

const recorded = `>start {"formatid":"gen1customgame","seed":[1,2,3,4]}
>player p1 {"name":"Bot 1","team":"Pikachu|||-|thunderbolt|||||||"}
>player p2 {"name":"Bot 2","team":"Gengar|||-|hypnosis|||||||"}
>p1 move 1
>p2 move 1
>p1 move 1
>p2 move 1`

func TestReplayResolvesName(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{}
	r, dir := newRunner(t, factory, io.Discard)
	if err := os.WriteFile(filepath.Join(dir, "0x1000200030004.input.log"), []byte(recorded), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := r.Replay(context.Background(), "0x1000200030004"); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(factory.setups) != 1 {
		t.Fatalf("setups = %d", len(factory.setups))
	}
	setup := factory.setups[0]
	if setup.Input.Players[1].Name != "Bot 2" || !setup.Input.Start.Seed.Equal(engine.Seed{1, 2, 3, 4}) {
		t.Fatalf("setup = %+v", setup.Input)
	}
}

func TestReplayCapturesFailure(t *testing.T) {
	t.Parallel()

	r, dir := newRunner(t, &fakeFactory{diverge: true}, io.Discard)
	path := filepath.Join(dir, "battle.log")
	if err := os.WriteFile(path, []byte(recorded), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	err := r.Replay(context.Background(), path)
	var divergence *lockstep.DivergenceError
	if !errors.As(err, &divergence) || divergence.Kind != lockstep.KindSeed {
		t.Fatalf("expected seed divergence, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "0x1000200030004.showdown.html")); err != nil {
		t.Fatalf("expected showdown report: %v", err)
	}
}

func TestReplayRejectsUnknownTeamMembers(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{}
	r, dir := newRunner(t, factory, io.Discard)
	path := filepath.Join(dir, "battle.log")
	text := strings.Replace(recorded, "hypnosis", "shadowball", 1)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	err := r.Replay(context.Background(), path)
	if apperrors.CodeOf(err) != apperrors.CodeInputLog || !strings.Contains(err.Error(), "shadowball") {
		t.Fatalf("error = %v", err)
	}
	if len(factory.setups) != 0 {
		t.Fatalf("sessions started = %d", len(factory.setups))
	}
}

func TestResolveInputLog(t *testing.T) {
	t.Parallel()

	if got := ResolveInputLog(t.TempDir(), "missing.log"); got != "missing.log" {
		t.Fatalf("resolve = %q", got)
	}
}
