package lockstep

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/baskuit/engine/internal/choices"
	"github.com/baskuit/engine/internal/data"
	"github.com/baskuit/engine/internal/engine"
	"github.com/baskuit/engine/internal/frame"
	"github.com/baskuit/engine/internal/normalize"
	"github.com/baskuit/engine/internal/platform/timeouts"
	"github.com/baskuit/engine/internal/protocol"
)

const tracerName = "github.com/baskuit/engine/internal/lockstep"

// State is the driver's position in a battle.
type State uint8

const (
	StateSetup State = iota
	StateAwaitingChoices
	StateApplying
	StateComparing
	StateTerminated
)

var stateNames = [...]string{"setup", "awaiting-choices", "applying", "comparing", "terminated"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// Partial holds whatever was captured of a round that did not complete.
type Partial struct {
	Round     int
	C1, C2    engine.Choice
	Reference *frame.Frame
	Engine    *frame.Frame
}

// History is the append-only record of a battle.
type History struct {
	Reference []frame.Frame
	Engine    []frame.Frame
	Partial   *Partial
}

// Config controls a Driver.
type Config struct {
	Gen data.Gen
	// Timeout bounds each engine call. Zero means timeouts.EngineCall.
	Timeout time.Duration
	Verbose bool
	Logger  *log.Logger
	Tracer  trace.Tracer
}

// Driver runs one battle in lockstep. A Driver is single-use and not safe
// for concurrent use.
type Driver struct {
	gen       data.Gen
	reference Engine
	engine    Engine
	sync      *choices.Synchronizer
	timeout   time.Duration
	verbose   bool
	logger    *log.Logger
	tracer    trace.Tracer

	state   State
	round   int
	history History
	started bool
}

// NewDriver returns a driver for one battle between reference and eng. The
// synchronizer must consult the same reference.
func NewDriver(cfg Config, reference, eng Engine, sync *choices.Synchronizer) (*Driver, error) {
	if reference == nil || eng == nil {
		return nil, errors.New("both engines are required")
	}
	if sync == nil {
		return nil, errors.New("choice synchronizer is required")
	}
	if !data.Supported(cfg.Gen) {
		return nil, fmt.Errorf("%w: %d", data.ErrUnsupportedGen, cfg.Gen)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = timeouts.EngineCall
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &Driver{
		gen:       cfg.Gen,
		reference: reference,
		engine:    eng,
		sync:      sync,
		timeout:   timeout,
		verbose:   cfg.Verbose,
		logger:    logger,
		tracer:    tracer,
	}, nil
}

// State returns the driver's current state.
func (d *Driver) State() State { return d.state }

// Rounds returns the number of rounds applied so far.
func (d *Driver) Rounds() int { return d.round }

// History returns the frames captured so far, including any partial round.
func (d *Driver) History() History { return d.history }

// Run plays the battle to completion. Any disagreement between the engines is
// returned as a *DivergenceError; the history stays available for capture.
func (d *Driver) Run(ctx context.Context) (err error) {
	if d.started {
		return errors.New("driver already used")
	}
	d.started = true
	ctx, span := d.tracer.Start(ctx, "lockstep.battle",
		trace.WithAttributes(attribute.Int("gen", int(d.gen))))
	defer func() {
		span.SetAttributes(attribute.Int("rounds", d.round))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	ref, eng, err := d.setup(ctx)
	if err != nil {
		return err
	}
	for !ref.Result.Terminal() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if ref, eng, err = d.step(ctx, ref, eng); err != nil {
			return err
		}
	}
	d.state = StateTerminated
	d.logf("battle done: %s after %d rounds", ref.Result.Type, d.round)
	return nil
}

func (d *Driver) setup(ctx context.Context) (Round, Round, error) {
	d.logf("battle start: gen %d", d.gen)
	d.history.Partial = &Partial{C1: engine.Pass(), C2: engine.Pass()}

	ref, err := d.call(ctx, d.reference.Start)
	if err != nil {
		return Round{}, Round{}, fmt.Errorf("start reference: %w", err)
	}
	f := toFrame(ref, engine.Pass(), engine.Pass())
	d.history.Reference = append(d.history.Reference, f)

	eng, err := d.call(ctx, d.engine.Start)
	if err != nil {
		return Round{}, Round{}, fmt.Errorf("start engine: %w", err)
	}
	f = toFrame(eng, engine.Pass(), engine.Pass())
	d.history.Engine = append(d.history.Engine, f)
	d.history.Partial = nil

	if ref.Result.Terminal() || eng.Result.Terminal() {
		return Round{}, Round{}, &DivergenceError{
			Kind: KindStart, Want: "battle in progress",
			Got: fmt.Sprintf("reference %s, engine %s", ref.Result, eng.Result),
		}
	}
	d.state = StateComparing
	if err := d.compare(ref, eng); err != nil {
		return Round{}, Round{}, err
	}
	d.state = StateAwaitingChoices
	return ref, eng, nil
}

func (d *Driver) step(ctx context.Context, ref, eng Round) (_ Round, _ Round, err error) {
	d.round++
	round := d.round
	ctx, span := d.tracer.Start(ctx, "lockstep.round", trace.WithAttributes(attribute.Int("round", round)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	start := time.Now()

	if eng.Result.Terminal() {
		return Round{}, Round{}, &DivergenceError{
			Round: round, Kind: KindTermination,
			Want: "battle in progress", Got: eng.Result.String(),
		}
	}

	d.state = StateAwaitingChoices
	pair, err := d.sync.Resolve(ctx, round)
	if err != nil {
		return Round{}, Round{}, err
	}
	c1, c2 := pair[engine.P1], pair[engine.P2]
	partial := &Partial{Round: round, C1: c1, C2: c2}
	d.history.Partial = partial
	span.SetAttributes(attribute.String("c1", c1.String()), attribute.String("c2", c2.String()))

	d.state = StateApplying
	next, err := d.call(ctx, func(ctx context.Context) (Round, error) {
		return d.reference.Submit(ctx, c1, c2)
	})
	if err != nil {
		return Round{}, Round{}, fmt.Errorf("round %d: submit reference: %w", round, err)
	}
	f := toFrame(next, c1, c2)
	partial.Reference = &f

	for _, p := range engine.Players {
		c := pair[p]
		legal, err := d.engine.Legal(ctx, p, eng.Result)
		if err != nil {
			return Round{}, Round{}, fmt.Errorf("round %d: engine choices for %s: %w", round, p, err)
		}
		if !engine.Contains(legal, c) {
			return Round{}, Round{}, &DivergenceError{
				Round: round, Kind: KindChoice,
				Want: fmt.Sprintf("%s %s legal", p, c), Got: fmt.Sprintf("%v", legal),
			}
		}
	}
	nextEng, err := d.call(ctx, func(ctx context.Context) (Round, error) {
		return d.engine.Submit(ctx, c1, c2)
	})
	if err != nil {
		return Round{}, Round{}, fmt.Errorf("round %d: submit engine: %w", round, err)
	}
	g := toFrame(nextEng, c1, c2)
	partial.Engine = &g

	d.state = StateComparing
	if nextEng.Result != next.Result {
		return Round{}, Round{}, &DivergenceError{
			Round: round, Kind: KindResult,
			Want: next.Result.String(), Got: nextEng.Result.String(),
		}
	}
	if err := d.compare(next, nextEng); err != nil {
		return Round{}, Round{}, err
	}

	d.history.Reference = append(d.history.Reference, f)
	d.history.Engine = append(d.history.Engine, g)
	d.history.Partial = nil
	d.state = StateAwaitingChoices
	d.logf("round %d done: %s %s -> %s (%s)", round, c1, c2, next.Result, time.Since(start))
	return next, nextEng, nil
}

// compare checks the logs and PRNG state of one round.
func (d *Driver) compare(ref, eng Round) error {
	lines := ref.Log
	if lines == nil && ref.Chunk != "" {
		lines = protocol.ParseChunk(ref.Chunk)
	}
	if err := normalize.Compare(d.gen, lines, eng.Log); err != nil {
		return &DivergenceError{Round: d.round, Kind: KindLog, Cause: err}
	}
	if !ref.Seed.Equal(eng.Seed) {
		return &DivergenceError{
			Round: d.round, Kind: KindSeed,
			Want: ref.Seed.String(), Got: eng.Seed.String(),
		}
	}
	return nil
}

func (d *Driver) call(ctx context.Context, fn func(context.Context) (Round, error)) (Round, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return fn(ctx)
}

func (d *Driver) logf(format string, args ...any) {
	if !d.verbose || d.logger == nil {
		return
	}
	d.logger.Printf(format, args...)
}
