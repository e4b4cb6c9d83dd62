// Package integration implements the integration command: lockstep battles
// between the engine and the reference simulator.
package integration

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/baskuit/engine/internal/artifact"
	"github.com/baskuit/engine/internal/data"
	"github.com/baskuit/engine/internal/harness"
	platformcmd "github.com/baskuit/engine/internal/platform/cmd"
	apperrors "github.com/baskuit/engine/internal/platform/errors"
	"github.com/baskuit/engine/internal/platform/timeouts"
	"github.com/baskuit/engine/internal/random"
	"github.com/baskuit/engine/internal/showdown"
	"github.com/baskuit/engine/internal/storage"
	"github.com/baskuit/engine/internal/storage/sqlite"
)

// Config holds integration command configuration.
type Config struct {
	Seed        string        `env:"PKMN_INTEGRATION_SEED"`
	Gen         int           `env:"PKMN_INTEGRATION_GEN"`
	Duration    string        `env:"PKMN_INTEGRATION_DURATION"`
	Cycles      int           `env:"PKMN_INTEGRATION_CYCLES"`
	MaxFailures int           `env:"PKMN_INTEGRATION_MAX_FAILURES"  envDefault:"1"`
	Parallelism int           `env:"PKMN_INTEGRATION_PARALLELISM"   envDefault:"1"`
	Policy      string        `env:"PKMN_INTEGRATION_POLICY"`
	Showdown    string        `env:"PKMN_SHOWDOWN_COMMAND"          envDefault:"node build/test/showdown/bridge.js"`
	Engine      string        `env:"PKMN_ENGINE_COMMAND"            envDefault:"zig-out/bin/pkmn-lockstep"`
	LogDir      string        `env:"PKMN_LOG_DIR"                   envDefault:"logs"`
	FailureDB   string        `env:"PKMN_FAILURE_DB"                envDefault:"logs/failures.db"`
	Verbose     bool          `env:"PKMN_INTEGRATION_VERBOSE"`
	Timeout     time.Duration `env:"PKMN_INTEGRATION_TIMEOUT"`
	// ListFailures prints the most recent recorded failures instead of
	// running battles.
	ListFailures int
	// Replay is the input log to replay, from the only positional argument.
	Replay string
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = timeouts.EngineCall
	}

	fs.StringVar(&cfg.Seed, "seed", cfg.Seed, "root seed as four comma-separated 16-bit values")
	fs.IntVar(&cfg.Gen, "gen", cfg.Gen, "only explore this generation")
	fs.StringVar(&cfg.Duration, "duration", cfg.Duration, "keep exploring for this long (e.g. 30s, 10m, 1h)")
	fs.IntVar(&cfg.Cycles, "cycles", cfg.Cycles, "battles per generation per pass")
	fs.IntVar(&cfg.MaxFailures, "max-failures", cfg.MaxFailures, "stop after this many failures")
	fs.IntVar(&cfg.Parallelism, "parallelism", cfg.Parallelism, "battles to run at once")
	fs.StringVar(&cfg.Policy, "policy", cfg.Policy, "lua script choosing for both players")
	fs.StringVar(&cfg.Showdown, "showdown", cfg.Showdown, "command running the simulator bridge")
	fs.StringVar(&cfg.Engine, "engine", cfg.Engine, "command running the engine")
	fs.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "directory for failure artifacts")
	fs.StringVar(&cfg.FailureDB, "failure-db", cfg.FailureDB, "sqlite failure index (empty disables)")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable verbose logging")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "timeout per engine call")
	fs.IntVar(&cfg.ListFailures, "failures", 0, "list this many recent failures and exit")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	switch rest := fs.Args(); len(rest) {
	case 0:
	case 1:
		cfg.Replay = rest[0]
	default:
		return Config{}, fmt.Errorf("expected at most one input log, got %d arguments", len(rest))
	}
	return cfg, nil
}

// ParseDuration parses a duration with an s, m or h unit. A bare number is
// taken as milliseconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	switch s[len(s)-1] {
	case 's', 'm', 'h':
		return time.ParseDuration(s)
	}
	return 0, fmt.Errorf("invalid duration %q: expected a number with an s, m or h unit", s)
}

// Run executes the integration command. Explore runs that find failures
// return an error carrying the divergence code.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	logger := log.New(errOut, "", 0)

	var store storage.FailureStore
	if cfg.FailureDB != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FailureDB), 0o755); err != nil {
			return fmt.Errorf("create failure index dir: %w", err)
		}
		db, err := sqlite.Open(ctx, cfg.FailureDB)
		if err != nil {
			return fmt.Errorf("open failure index: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Printf("close failure index: %v", err)
			}
		}()
		store = db
	}
	if cfg.ListFailures > 0 {
		if store == nil {
			return errors.New("listing failures requires a failure index")
		}
		return listFailures(ctx, store, cfg.ListFailures, out)
	}

	runID := uuid.NewString()
	runner, err := harness.New(harness.Config{
		Factory: harness.Processes{
			Showdown: showdown.ProcessConfig{Command: strings.Fields(cfg.Showdown), Stderr: errOut},
			Engine:   strings.Fields(cfg.Engine),
			Policy:   cfg.Policy,
		},
		Capturer: artifact.NewCapturer(artifact.Config{
			Dir:     cfg.LogDir,
			Command: "integration",
			ErrOut:  errOut,
			Logger:  logger,
			Store:   store,
		}),
		LogDir:  cfg.LogDir,
		Out:     out,
		Logger:  logger,
		Verbose: cfg.Verbose,
		Timeout: cfg.Timeout,
		RunID:   runID,
	})
	if err != nil {
		return err
	}

	if cfg.Replay != "" {
		return runner.Replay(ctx, cfg.Replay)
	}

	opts, err := exploreOptions(cfg)
	if err != nil {
		return err
	}
	summary, err := runner.Explore(ctx, opts)
	if err != nil {
		return err
	}
	if summary.Failures > 0 {
		return apperrors.WithMetadata(apperrors.CodeDivergence,
			fmt.Sprintf("%d of %d battles failed", summary.Failures, summary.Battles),
			map[string]string{"run_id": runID, "seed": summary.Seed.String()})
	}
	return nil
}

func exploreOptions(cfg Config) (harness.ExploreOptions, error) {
	duration, err := ParseDuration(cfg.Duration)
	if err != nil {
		return harness.ExploreOptions{}, err
	}
	opts := harness.ExploreOptions{
		Gen:         data.Gen(cfg.Gen),
		Duration:    duration,
		Cycles:      cfg.Cycles,
		MaxFailures: cfg.MaxFailures,
		Parallelism: cfg.Parallelism,
	}
	if cfg.Seed != "" {
		if opts.Seed, err = random.ParseSeed(cfg.Seed); err != nil {
			return harness.ExploreOptions{}, err
		}
	}
	return opts, nil
}

func listFailures(ctx context.Context, store storage.FailureStore, limit int, out io.Writer) error {
	failures, err := store.ListFailures(ctx, limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tMODE\tGEN\tSEED\tCODE\tINPUT")
	for _, f := range failures {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			humanize.Time(f.CreatedAt), f.Mode, f.Gen, f.SeedHex, f.Code, f.InputPath)
	}
	return w.Flush()
}
