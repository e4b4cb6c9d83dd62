// Package harness runs lockstep battles: replaying a recorded input log, or
// exploring freshly seeded battles in parallel until a time or failure budget
// runs out.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/baskuit/engine/internal/artifact"
	"github.com/baskuit/engine/internal/choices"
	"github.com/baskuit/engine/internal/data"
	"github.com/baskuit/engine/internal/engine"
	"github.com/baskuit/engine/internal/inputlog"
	"github.com/baskuit/engine/internal/lockstep"
	apperrors "github.com/baskuit/engine/internal/platform/errors"
	"github.com/baskuit/engine/internal/random"
)

// Modes recorded with captured failures.
const (
	ModeReplay  = "replay"
	ModeExplore = "explore"
)

// DefaultCycles is the number of battles per generation per pass when no
// duration is set. With a duration, each pass runs one battle per generation.
const DefaultCycles = 10

// Config configures a Runner.
type Config struct {
	Factory  Factory
	Capturer *artifact.Capturer
	// LogDir is searched for <name>.input.log when replaying by name.
	LogDir  string
	Out     io.Writer
	Logger  *log.Logger
	Verbose bool
	// Timeout bounds each engine call.
	Timeout time.Duration
	Tracer  trace.Tracer
	RunID   string
}

// Runner runs battles.
type Runner struct {
	factory  Factory
	capturer *artifact.Capturer
	logDir   string
	out      io.Writer
	logger   *log.Logger
	verbose  bool
	timeout  time.Duration
	tracer   trace.Tracer
	runID    string
}

// New returns a Runner with defaults applied.
func New(cfg Config) (*Runner, error) {
	if cfg.Factory == nil {
		return nil, errors.New("harness: factory is required")
	}
	r := &Runner{
		factory:  cfg.Factory,
		capturer: cfg.Capturer,
		logDir:   cfg.LogDir,
		out:      cfg.Out,
		logger:   cfg.Logger,
		verbose:  cfg.Verbose,
		timeout:  cfg.Timeout,
		tracer:   cfg.Tracer,
		runID:    cfg.RunID,
	}
	if r.logDir == "" {
		r.logDir = artifact.DefaultDir
	}
	if r.out == nil {
		r.out = os.Stdout
	}
	if r.logger == nil {
		r.logger = log.New(os.Stderr, "", 0)
	}
	if r.capturer == nil {
		r.capturer = artifact.NewCapturer(artifact.Config{Dir: r.logDir, Logger: r.logger})
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	return r, nil
}

// ResolveInputLog maps a bare name to <dir>/<name>.input.log when that file
// exists, and returns other arguments unchanged.
func ResolveInputLog(dir, arg string) string {
	candidate := filepath.Join(dir, arg+".input.log")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return arg
}

// Replay runs the battle recorded in the input log at path. Any failure is
// captured and returned.
func (r *Runner) Replay(ctx context.Context, path string) error {
	path = ResolveInputLog(r.logDir, path)
	input, err := inputlog.ReadFile(path)
	if err != nil {
		return err
	}
	if err := input.Check(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	gen, err := input.Gen()
	if err != nil {
		return err
	}
	recorded := input.Choices
	setup := Setup{Gen: gen, Input: &inputlog.Log{Start: input.Start, Players: input.Players}}
	return r.battle(ctx, setup, ModeReplay, choices.Replay{Choices: recorded})
}

// ExploreOptions configures Explore.
type ExploreOptions struct {
	// Gen restricts exploration to one generation; zero means every
	// supported generation.
	Gen data.Gen
	// Seed seeds the root PRNG; nil picks a random seed.
	Seed engine.Seed
	// Duration keeps repeating passes until it elapses; zero runs one pass.
	Duration time.Duration
	// Cycles is the number of battles per generation per pass.
	Cycles      int
	MaxFailures int
	Parallelism int
}

// Summary reports the outcome of Explore.
type Summary struct {
	Seed     engine.Seed
	Battles  int
	Failures int
	Elapsed  time.Duration
}

// Explore runs freshly seeded battles. Divergences and undecodable engine
// output are captured and counted;
// harness errors such as a process failing to start stop the run.
// Cancelling ctx stops new battles from starting but lets running ones
// finish.
func (r *Runner) Explore(ctx context.Context, opts ExploreOptions) (Summary, error) {
	seed := opts.Seed
	if seed == nil {
		var err error
		if seed, err = random.NewSeed(); err != nil {
			return Summary{}, err
		}
	}
	root, err := random.NewPRNG(seed)
	if err != nil {
		return Summary{}, err
	}
	gens, err := generations(opts.Gen)
	if err != nil {
		return Summary{}, err
	}
	cycles := opts.Cycles
	if cycles <= 0 {
		cycles = DefaultCycles
		if opts.Duration > 0 {
			cycles = 1
		}
	}
	maxFailures := opts.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 1
	}
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}

	summary := Summary{Seed: seed.Clone()}
	var battles, failures atomic.Int64
	start := time.Now()

	// sem bounds running battles; a slot is taken before the stop check so
	// that failures from finished battles are always counted first.
	sem := make(chan struct{}, parallelism)
	g, gctx := errgroup.WithContext(ctx)
	stopped := func() bool {
		return gctx.Err() != nil || failures.Load() >= int64(maxFailures)
	}

dispatch:
	for {
		for _, gen := range gens {
			for i := 0; i < cycles; i++ {
				select {
				case sem <- struct{}{}:
				case <-gctx.Done():
					break dispatch
				}
				if stopped() {
					<-sem
					break dispatch
				}
				setup := r.derive(root, gen)
				battles.Add(1)
				g.Go(func() error {
					defer func() { <-sem }()
					err := r.battle(context.WithoutCancel(gctx), setup, ModeExplore, nil)
					if err == nil {
						return nil
					}
					if isFailure(err) {
						failures.Add(1)
						return nil
					}
					return err
				})
			}
		}
		if time.Since(start) >= opts.Duration {
			break
		}
	}
	err = g.Wait()

	summary.Battles = int(battles.Load())
	summary.Failures = int(failures.Load())
	summary.Elapsed = time.Since(start)
	r.printSummary(summary)
	return summary, err
}

// derive draws one battle's seeds from the root PRNG: the battle seed is the
// root's current state, followed by the team seed and each player's AI seed.
func (r *Runner) derive(root *random.PRNG, gen data.Gen) Setup {
	battle := root.Seed()
	team := random.Derive(root)
	p1 := random.Derive(root)
	p2 := random.Derive(root)
	return Setup{
		Gen: gen,
		Input: &inputlog.Log{
			Start:   inputlog.Start{FormatID: data.Format(gen), Seed: battle},
			Players: [2]inputlog.Player{{Name: "Bot 1"}, {Name: "Bot 2"}},
		},
		TeamSeed: team,
		AISeeds:  [2]engine.Seed{p1, p2},
	}
}

// battle runs one battle and captures it when it fails. A nil source
// explores with the session's chooser.
func (r *Runner) battle(ctx context.Context, setup Setup, mode string, source choices.Source) error {
	session, err := r.factory.NewSession(ctx, setup)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			r.logger.Printf("close session: %v", cerr)
		}
	}()

	if source == nil {
		source = choices.Explore{Chooser: session.Chooser}
	}
	driver, err := lockstep.NewDriver(lockstep.Config{
		Gen:     setup.Gen,
		Timeout: r.timeout,
		Verbose: r.verbose,
		Logger:  r.logger,
		Tracer:  r.tracer,
	}, session.Reference, session.Engine, &choices.Synchronizer{Reference: session.Authority, Source: source})
	if err != nil {
		return err
	}

	runErr := driver.Run(ctx)
	if runErr == nil {
		r.logf("%s battle %s: %d rounds", mode, setup.Input.Start.Seed.Hex(), driver.Rounds())
		return nil
	}
	r.capturer.Capture(ctx, artifact.Failure{
		Gen:     setup.Gen,
		Mode:    mode,
		RunID:   r.runID,
		Err:     runErr,
		Seed:    setup.Input.Start.Seed,
		Input:   session.Input(),
		History: driver.History(),
	})
	return runErr
}

// isFailure reports whether err is a fault in the engine under test rather
// than in the harness: a disagreement between the engines or output the
// decoder cannot read.
func isFailure(err error) bool {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeDivergence, apperrors.CodeChoiceSynchronization,
		apperrors.CodeTruncatedBuffer, apperrors.CodeMalformedLog:
		return true
	}
	return false
}

func generations(only data.Gen) ([]data.Gen, error) {
	if only != 0 {
		if !data.Supported(only) {
			return nil, fmt.Errorf("unsupported generation %d", only)
		}
		return []data.Gen{only}, nil
	}
	var gens []data.Gen
	for gen := data.Gen(1); gen <= 9; gen++ {
		if data.Supported(gen) {
			gens = append(gens, gen)
		}
	}
	return gens, nil
}

func (r *Runner) printSummary(s Summary) {
	p := message.NewPrinter(language.English)
	p.Fprintf(r.out, "%d battles, %d failures in %s (seed %s)\n",
		s.Battles, s.Failures, s.Elapsed.Round(time.Millisecond), s.Seed)
}

func (r *Runner) logf(format string, args ...any) {
	if r.verbose {
		r.logger.Printf(format, args...)
	}
}
