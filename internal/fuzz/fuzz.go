// Package fuzz runs the engine's built-in fuzzer and, when it crashes, turns
// the binary trace it leaves on stdout into an HTML report.
package fuzz

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/baskuit/engine/internal/artifact"
	"github.com/baskuit/engine/internal/data"
	"github.com/baskuit/engine/internal/frame"
	apperrors "github.com/baskuit/engine/internal/platform/errors"
)

// panicMarker starts the interesting part of a crash report.
const panicMarker = "panic: "

// SubprocessError reports that the fuzzer failed without leaving a trace.
type SubprocessError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *SubprocessError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", strings.Join(e.Args, " "), e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + lastLine(s)
	}
	return msg
}

// ErrorCode implements apperrors.Coded.
func (e *SubprocessError) ErrorCode() apperrors.Code { return apperrors.CodeSubprocess }

// Options selects what to fuzz.
type Options struct {
	Gen      data.Gen
	Showdown bool
	// Duration is passed through to the fuzzer, e.g. "30s" or "10m".
	Duration string
	// Seed is optional.
	Seed string
}

// Args returns the build arguments for opts.
func Args(opts Options) []string {
	args := []string{"build", "fuzz", "-Dtrace"}
	if opts.Showdown {
		args = append(args, "-Dshowdown")
	}
	args = append(args, "--", fmt.Sprint(opts.Gen), opts.Duration)
	if opts.Seed != "" {
		args = append(args, opts.Seed)
	}
	return args
}

// Outcome describes a fuzz run that completed or crashed with a trace.
type Outcome struct {
	// Crashed is set when the fuzzer found a failure.
	Crashed bool
	Panic   string
	Dump    *frame.Dump
	// Report is the path of the written HTML report, if any.
	Report string
}

// Config configures a Runner.
type Config struct {
	// Command is the build tool; it defaults to "zig".
	Command  string
	Dir      string
	ErrOut   io.Writer
	Logger   *log.Logger
	Verbose  bool
	Capturer *artifact.Capturer
}

// Runner runs the fuzzer.
type Runner struct {
	command  string
	dir      string
	errOut   io.Writer
	logger   *log.Logger
	verbose  bool
	capturer *artifact.Capturer
}

// New returns a Runner with defaults applied.
func New(cfg Config) *Runner {
	r := &Runner{
		command:  cfg.Command,
		dir:      cfg.Dir,
		errOut:   cfg.ErrOut,
		logger:   cfg.Logger,
		verbose:  cfg.Verbose,
		capturer: cfg.Capturer,
	}
	if r.command == "" {
		r.command = "zig"
	}
	if r.errOut == nil {
		r.errOut = os.Stderr
	}
	if r.logger == nil {
		r.logger = log.New(r.errOut, "", 0)
	}
	if r.capturer == nil {
		r.capturer = artifact.NewCapturer(artifact.Config{ErrOut: r.errOut, Logger: r.logger})
	}
	return r
}

// Run runs the fuzzer to completion. A crash that leaves a trace is reported
// through the Outcome; a crash without one is a *SubprocessError.
func (r *Runner) Run(ctx context.Context, opts Options) (*Outcome, error) {
	args := Args(opts)
	cmd := exec.CommandContext(ctx, r.command, args...)
	cmd.Dir = r.dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logf("running %s %s", r.command, strings.Join(args, " "))
	err := cmd.Run()
	if err == nil {
		return &Outcome{}, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return nil, apperrors.Wrap(apperrors.CodeSubprocess, "run "+r.command, err)
	}

	raw := stderr.String()
	fmt.Fprintln(r.errOut, raw)
	full := append([]string{r.command}, args...)
	if stdout.Len() == 0 {
		return nil, &SubprocessError{Args: full, ExitCode: exitErr.ExitCode(), Stderr: raw}
	}
	i := strings.Index(raw, panicMarker)
	if i < 0 {
		return nil, &SubprocessError{Args: full, ExitCode: exitErr.ExitCode(), Stderr: raw}
	}
	r.logf("decoding %s of trace", humanize.Bytes(uint64(stdout.Len())))
	return r.report(ctx, opts, strings.TrimSpace(raw[i:]), stdout.Bytes())
}

func (r *Runner) report(ctx context.Context, opts Options, panicMsg string, trace []byte) (*Outcome, error) {
	out := &Outcome{Crashed: true, Panic: panicMsg}
	dump, err := frame.Decode(opts.Gen, trace, frame.Options{Showdown: opts.Showdown})
	if err != nil {
		return out, fmt.Errorf("decode trace: %w", err)
	}
	out.Dump = dump
	names, err := data.Lookup(opts.Gen)
	if err != nil {
		return out, err
	}
	path, err := r.capturer.WriteReport(ctx, artifact.Report{
		Title:   "pkmn engine",
		Error:   panicMsg,
		Seed:    dump.Seed,
		Names:   names,
		Initial: dump.Initial,
		Frames:  dump.Frames,
	}, "pkmn.html")
	if err != nil {
		return out, fmt.Errorf("write report: %w", err)
	}
	out.Report = path
	fmt.Fprintf(r.errOut, "%d frames, report: %s\n", len(dump.Frames), path)
	return out, nil
}

func (r *Runner) logf(format string, args ...any) {
	if r.verbose {
		r.logger.Printf(format, args...)
	}
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
