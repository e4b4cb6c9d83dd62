// Package fuzz implements the fuzz command: run the engine's fuzzer and
// report any crash it finds.
package fuzz

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strconv"

	"github.com/baskuit/engine/internal/artifact"
	"github.com/baskuit/engine/internal/data"
	"github.com/baskuit/engine/internal/fuzz"
	platformcmd "github.com/baskuit/engine/internal/platform/cmd"
	apperrors "github.com/baskuit/engine/internal/platform/errors"
)

// Usage describes the positional arguments.
const Usage = "Usage: fuzz <pkmn|showdown> <GEN> <DURATION> <SEED?>"

// Config holds fuzz command configuration.
type Config struct {
	Zig     string `env:"PKMN_FUZZ_ZIG"     envDefault:"zig"`
	Dir     string `env:"PKMN_FUZZ_DIR"`
	LogDir  string `env:"PKMN_LOG_DIR"      envDefault:"logs"`
	Verbose bool   `env:"PKMN_FUZZ_VERBOSE"`

	Showdown bool
	Gen      data.Gen
	Duration string
	Seed     string
}

// ParseConfig parses flags and positional arguments into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Zig, "zig", cfg.Zig, "zig executable")
	fs.StringVar(&cfg.Dir, "dir", cfg.Dir, "engine source directory")
	fs.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "directory for crash reports")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable verbose logging")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}

	rest := fs.Args()
	if len(rest) < 3 || len(rest) > 4 {
		return Config{}, errors.New(Usage)
	}
	switch rest[0] {
	case "pkmn":
	case "showdown":
		cfg.Showdown = true
	default:
		return Config{}, fmt.Errorf("mode must be either 'pkmn' or 'showdown', received '%s'", rest[0])
	}
	gen, err := strconv.Atoi(rest[1])
	if err != nil || !data.Supported(data.Gen(gen)) {
		return Config{}, fmt.Errorf("unsupported generation %q", rest[1])
	}
	cfg.Gen = data.Gen(gen)
	cfg.Duration = rest[2]
	if len(rest) == 4 {
		cfg.Seed = rest[3]
	}
	return cfg, nil
}

// Run executes the fuzz command. A crash returns an error carrying the
// engine crash code once its report is written.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	logger := log.New(errOut, "", 0)
	runner := fuzz.New(fuzz.Config{
		Command:  cfg.Zig,
		Dir:      cfg.Dir,
		ErrOut:   errOut,
		Logger:   logger,
		Verbose:  cfg.Verbose,
		Capturer: artifact.NewCapturer(artifact.Config{Dir: cfg.LogDir, ErrOut: errOut, Logger: logger}),
	})
	outcome, err := runner.Run(ctx, fuzz.Options{
		Gen:      cfg.Gen,
		Showdown: cfg.Showdown,
		Duration: cfg.Duration,
		Seed:     cfg.Seed,
	})
	if err != nil {
		return err
	}
	if !outcome.Crashed {
		fmt.Fprintln(out, "no failures")
		return nil
	}
	fmt.Fprintln(out, outcome.Report)
	return apperrors.WithMetadata(apperrors.CodeEngineCrash, outcome.Panic,
		map[string]string{"report": outcome.Report})
}
