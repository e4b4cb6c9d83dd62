// Package native drives the engine under test as a child process. The
// process reads a JSON start line, then single-byte opcodes, and answers each
// with a length-prefixed binary payload.
package native

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/baskuit/engine/internal/data"
	"github.com/baskuit/engine/internal/engine"
	"github.com/baskuit/engine/internal/frame"
	"github.com/baskuit/engine/internal/lockstep"
	apperrors "github.com/baskuit/engine/internal/platform/errors"
	"github.com/baskuit/engine/internal/platform/timeouts"
	"github.com/baskuit/engine/internal/protocol"
)

// Opcodes understood by the engine process.
const (
	OpUpdate  byte = 'U'
	OpChoices byte = 'C'
)

// ErrOutOfSync is returned by every call after one whose reply was abandoned
// or only partly read; the stream can no longer be framed.
var ErrOutOfSync = errors.New("engine stream out of sync")

// maxPayload bounds a single reply.
const maxPayload = 1 << 20

// Start is the first line sent to the engine process.
type Start struct {
	Gen      data.Gen    `json:"gen"`
	Seed     engine.Seed `json:"seed"`
	Showdown bool        `json:"showdown"`
	// Teams are in packed format, p1 first.
	Teams [2]string `json:"teams"`
}

// Config configures a Client.
type Config struct {
	Start Start
	// Info names Pokémon in decoded logs. Nil names them after their species.
	Info protocol.Info
}

// Client is the engine side of a lockstep battle.
type Client struct {
	start   Start
	decoder *frame.Decoder
	reader  *bufio.Reader
	writer  io.Writer
	mu      sync.Mutex
	broken  error
	seed    engine.Seed
	cmd     *exec.Cmd
}

var _ lockstep.Engine = (*Client)(nil)

// NewClient returns a Client speaking to an engine over r and w.
func NewClient(cfg Config, r io.Reader, w io.Writer) (*Client, error) {
	d, err := frame.NewDecoder(cfg.Start.Gen, frame.Options{Showdown: cfg.Start.Showdown, Info: cfg.Info})
	if err != nil {
		return nil, err
	}
	return &Client{start: cfg.Start, decoder: d, reader: bufio.NewReader(r), writer: w}, nil
}

// StartProcess launches the engine binary and returns a Client for it.
func StartProcess(ctx context.Context, command []string, cfg Config) (*Client, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("native: command is required")
	}
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeSubprocess, "start engine", err)
	}
	c, err := NewClient(cfg, stdout, stdin)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}
	c.cmd = cmd
	return c, nil
}

// Close stops the engine process, if there is one.
func (c *Client) Close() error {
	if c.cmd == nil || c.cmd.Process == nil {
		return nil
	}
	if closer, ok := c.writer.(io.Closer); ok {
		_ = closer.Close()
	}
	waitDone := make(chan error, 1)
	go func() {
		waitDone <- c.cmd.Wait()
	}()
	select {
	case <-waitDone:
	case <-time.After(timeouts.ProcessShutdown):
		_ = syscall.Kill(-c.cmd.Process.Pid, syscall.SIGKILL)
		<-waitDone
	}
	return nil
}

// Start implements lockstep.Engine. The reply is a record holding the
// battle before any choice.
func (c *Client) Start(ctx context.Context) (lockstep.Round, error) {
	line, err := json.Marshal(c.start)
	if err != nil {
		return lockstep.Round{}, fmt.Errorf("marshal start: %w", err)
	}
	payload, err := c.exchange(ctx, append(line, '\n'))
	if err != nil {
		return lockstep.Round{}, fmt.Errorf("start: %w", err)
	}
	return c.round(payload)
}

// Submit implements lockstep.Engine.
func (c *Client) Submit(ctx context.Context, c1, c2 engine.Choice) (lockstep.Round, error) {
	payload, err := c.exchange(ctx, []byte{OpUpdate, c1.Encode(), c2.Encode()})
	if err != nil {
		return lockstep.Round{}, fmt.Errorf("update: %w", err)
	}
	return c.round(payload)
}

// Legal implements lockstep.Engine.
func (c *Client) Legal(ctx context.Context, p engine.Player, result engine.Result) ([]engine.Choice, error) {
	payload, err := c.exchange(ctx, []byte{OpChoices, byte(p), result.Encode()})
	if err != nil {
		return nil, fmt.Errorf("choices: %w", err)
	}
	out := make([]engine.Choice, 0, len(payload))
	for _, b := range payload {
		choice, err := engine.DecodeChoice(b)
		if err != nil {
			return nil, err
		}
		out = append(out, choice)
	}
	return out, nil
}

// Seed implements lockstep.Engine.
func (c *Client) Seed() engine.Seed {
	return c.seed
}

func (c *Client) round(payload []byte) (lockstep.Round, error) {
	f, n, err := c.decoder.DecodeRecord(payload)
	if err != nil {
		return lockstep.Round{}, err
	}
	if n != len(payload) {
		return lockstep.Round{}, fmt.Errorf("%w: %d trailing bytes after record", protocol.ErrMalformedLog, len(payload)-n)
	}
	c.seed = f.Battle.RNG.Clone()
	return lockstep.Round{Result: f.Result, Battle: f.Battle, Log: f.Log, Seed: c.seed}, nil
}

// exchange writes msg and reads one length-prefixed reply.
func (c *Client) exchange(ctx context.Context, msg []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken != nil {
		return nil, c.broken
	}

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		if _, err := c.writer.Write(msg); err != nil {
			done <- result{err: fmt.Errorf("send: %w", err)}
			return
		}
		data, err := readPayload(c.reader)
		done <- result{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		// The goroutine still owns the reader.
		c.broken = fmt.Errorf("%w: reply abandoned: %v", ErrOutOfSync, ctx.Err())
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			c.broken = fmt.Errorf("%w: %v", ErrOutOfSync, res.err)
		}
		return res.data, res.err
	}
}

func readPayload(r io.Reader) ([]byte, error) {
	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return nil, fmt.Errorf("read length: %w", err)
	}
	n := binary.LittleEndian.Uint32(size[:])
	if n > maxPayload {
		return nil, fmt.Errorf("reply of %d bytes exceeds limit", n)
	}
	data := make([]byte, n)
	if m, err := io.ReadFull(r, data); err != nil {
		return nil, &frame.TruncatedBufferError{Offset: 4, Need: int(n), Have: m}
	}
	return data, nil
}
