// Package artifact writes everything needed to reproduce and debug a failed
// battle: the reference input log, an HTML report of each engine's history,
// and a row in the failure index.
package artifact

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"github.com/baskuit/engine/internal/data"
	"github.com/baskuit/engine/internal/engine"
	"github.com/baskuit/engine/internal/inputlog"
	"github.com/baskuit/engine/internal/lockstep"
	apperrors "github.com/baskuit/engine/internal/platform/errors"
	"github.com/baskuit/engine/internal/storage"
)

// DefaultDir is where artifacts are written unless configured otherwise.
const DefaultDir = "logs"

// Failure describes one failed battle.
type Failure struct {
	Gen     data.Gen
	Mode    string
	RunID   string
	Err     error
	Seed    engine.Seed
	Input   *inputlog.Log
	History lockstep.History
}

// Paths lists the artifacts that were written; a failed write leaves its
// field empty.
type Paths struct {
	Input    string
	Pkmn     string
	Showdown string
}

// Config controls a Capturer.
type Config struct {
	Dir string
	// Command is the repro command prefix printed before the input log path.
	Command string
	// WorkDir is the directory paths are printed relative to.
	WorkDir string
	ErrOut  io.Writer
	Logger  *log.Logger
	Store   storage.FailureStore
}

// Capturer writes failure artifacts.
type Capturer struct {
	dir     string
	command string
	workDir string
	errOut  io.Writer
	color   bool
	logger  *log.Logger
	store   storage.FailureStore
	now     func() time.Time
}

// NewCapturer returns a Capturer with defaults applied.
func NewCapturer(cfg Config) *Capturer {
	c := &Capturer{
		dir:     cfg.Dir,
		command: cfg.Command,
		workDir: cfg.WorkDir,
		errOut:  cfg.ErrOut,
		logger:  cfg.Logger,
		store:   cfg.Store,
		now:     time.Now,
	}
	if c.dir == "" {
		c.dir = DefaultDir
	}
	if c.command == "" {
		c.command = "integration"
	}
	if c.workDir == "" {
		c.workDir, _ = os.Getwd()
	}
	if c.errOut == nil {
		c.errOut = os.Stderr
	}
	if c.logger == nil {
		c.logger = log.New(c.errOut, "", 0)
	}
	if f, ok := c.errOut.(*os.File); ok {
		c.color = isatty.IsTerminal(f.Fd())
	}
	return c
}

// Capture writes the artifacts for f. It never fails: problems writing one
// artifact are logged and the remaining artifacts are still attempted.
func (c *Capturer) Capture(ctx context.Context, f Failure) Paths {
	var paths Paths
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		c.logger.Printf("capture: create %s: %v", c.dir, err)
		return paths
	}
	hex := f.Seed.Hex()
	errText := ""
	if f.Err != nil {
		errText = f.Err.Error()
	}
	names, _ := data.Lookup(f.Gen)

	if f.Input != nil {
		file := filepath.Join(c.dir, hex+".input.log")
		if err := c.write(file, "input.log", func(w io.Writer) error {
			_, err := f.Input.WriteTo(w)
			return err
		}); err != nil {
			c.logger.Printf("capture: input log: %v", err)
		} else {
			paths.Input = file
			fmt.Fprintln(c.errOut, box(c.command+" "+c.relative(file)))
		}
	}

	pkmn := Report{Title: "pkmn engine", Error: errText, Seed: f.Seed, Names: names, Frames: f.History.Engine}
	showdown := Report{Title: "Pokémon Showdown", Error: errText, Seed: f.Seed, Frames: f.History.Reference, Normalize: f.Gen}
	if p := f.History.Partial; p != nil {
		pkmn.Partial = &Partial{C1: p.C1, C2: p.C2, Frame: p.Engine}
		showdown.Partial = &Partial{C1: p.C1, C2: p.C2, Frame: p.Reference}
	}
	for _, r := range []struct {
		report Report
		name   string
		label  string
		dest   *string
	}{
		{report: pkmn, name: "pkmn.html", label: "pkmn engine", dest: &paths.Pkmn},
		{report: showdown, name: "showdown.html", label: "Pokémon Showdown", dest: &paths.Showdown},
	} {
		file := filepath.Join(c.dir, hex+"."+r.name)
		if err := c.write(file, r.name, func(w io.Writer) error {
			return r.report.Component().Render(ctx, w)
		}); err != nil {
			c.logger.Printf("capture: %s: %v", r.name, err)
			continue
		}
		*r.dest = file
		fmt.Fprintf(c.errOut, " ◦ %s: %s -> %s\n", r.label,
			c.pretty(filepath.Join(c.dir, r.name)), c.pretty(file))
	}

	if c.store != nil {
		c.record(ctx, f, paths)
	}
	return paths
}

// WriteReport writes a single HTML report to dir/<hex>.<name> and points the
// dir/<name> symlink at it.
func (c *Capturer) WriteReport(ctx context.Context, r Report, name string) (string, error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", c.dir, err)
	}
	file := filepath.Join(c.dir, r.Seed.Hex()+"."+name)
	if err := c.write(file, name, func(w io.Writer) error {
		return r.Component().Render(ctx, w)
	}); err != nil {
		return "", err
	}
	return file, nil
}

func (c *Capturer) record(ctx context.Context, f Failure, paths Paths) {
	runID := f.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	err := c.store.RecordFailure(context.WithoutCancel(ctx), storage.Failure{
		ID:           uuid.NewString(),
		RunID:        runID,
		SeedHex:      f.Seed.Hex(),
		Gen:          int(f.Gen),
		Mode:         f.Mode,
		Code:         string(apperrors.CodeOf(f.Err)),
		Message:      messageOf(f.Err),
		InputPath:    paths.Input,
		PkmnPath:     paths.Pkmn,
		ShowdownPath: paths.Showdown,
		CreatedAt:    c.now(),
	})
	if err != nil {
		c.logger.Printf("capture: record failure: %v", err)
	}
}

func messageOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// write renders into file, then points the link symlink next to it at the
// new file. The link is best-effort: failing to update it is logged and does
// not fail the write.
func (c *Capturer) write(file, link string, render func(io.Writer) error) error {
	out, err := os.Create(file)
	if err != nil {
		return err
	}
	if err := render(out); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if err := symlink(filepath.Base(file), filepath.Join(filepath.Dir(file), link)); err != nil {
		c.logger.Printf("capture: link %s: %v", link, err)
	}
	return nil
}

// symlink replaces link with a symlink to target. The new link is created
// under a unique name and renamed over the old one, so concurrent captures
// never observe a missing link and the last rename wins.
func symlink(target, link string) error {
	tmp := link + ".tmp-" + uuid.NewString()
	if err := os.Symlink(target, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, link); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", link, err)
	}
	return nil
}

func (c *Capturer) relative(path string) string {
	if rel, err := filepath.Rel(c.workDir, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}

func (c *Capturer) pretty(path string) string {
	rel := c.relative(path)
	if c.color {
		return "\x1b[36m" + rel + "\x1b[0m"
	}
	return rel
}

// box frames s in a single-line rounded box.
func box(s string) string {
	bar := strings.Repeat("─", utf8.RuneCountInString(s)+2)
	return "╭" + bar + "╮\n│ " + s + " │\n╰" + bar + "╯"
}

