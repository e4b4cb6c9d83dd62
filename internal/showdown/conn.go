// Package showdown talks to the reference simulator running in a Node
// process. Requests and responses are single-line JSON objects exchanged over
// the process's stdin and stdout.
package showdown

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	apperrors "github.com/baskuit/engine/internal/platform/errors"
	"github.com/baskuit/engine/internal/platform/timeouts"
)

// ErrClosed is returned by calls made after the connection's output ended.
var ErrClosed = errors.New("showdown: connection closed")

// RemoteError is an error reported by the simulator process.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("showdown %s: %s", e.Method, e.Message)
}

// ErrorCode implements apperrors.Coded.
func (e *RemoteError) ErrorCode() apperrors.Code { return apperrors.CodeSubprocess }

type request struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

type line struct {
	data []byte
	err  error
}

// Conn is a JSON-lines connection to a simulator process.
type Conn struct {
	writer io.Writer
	lines  chan line
	mu     sync.Mutex
	nextID uint64
	cmd    *exec.Cmd
}

// NewConn returns a Conn over r and w.
func NewConn(r io.Reader, w io.Writer) *Conn {
	c := &Conn{writer: w, lines: make(chan line)}
	go c.readLoop(bufio.NewReader(r))
	return c
}

// ProcessConfig describes the simulator process.
type ProcessConfig struct {
	// Command is the executable and its arguments.
	Command []string
	Dir     string
	Stderr  io.Writer
}

// StartProcess launches the simulator and connects to it.
func StartProcess(ctx context.Context, cfg ProcessConfig) (*Conn, error) {
	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("showdown: command is required")
	}
	cmd := exec.CommandContext(ctx, cfg.Command[0], cfg.Command[1:]...)
	cmd.Dir = cfg.Dir
	cmd.Stderr = cfg.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
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
		return nil, apperrors.Wrap(apperrors.CodeSubprocess, "start showdown", err)
	}

	c := NewConn(stdout, stdin)
	c.cmd = cmd
	return c, nil
}

// Close terminates the simulator process, if there is one.
func (c *Conn) Close() error {
	if c.cmd == nil || c.cmd.Process == nil {
		return nil
	}
	if closer, ok := c.writer.(io.Closer); ok {
		_ = closer.Close()
	}

	processGroupID := -c.cmd.Process.Pid
	_ = syscall.Kill(processGroupID, syscall.SIGINT)

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- c.cmd.Wait()
	}()

	select {
	case <-waitDone:
	case <-time.After(timeouts.ProcessShutdown):
		_ = syscall.Kill(processGroupID, syscall.SIGKILL)
		<-waitDone
	}
	return nil
}

// Call sends method with params and decodes the matching response's result
// into result, which may be nil. Responses to earlier abandoned calls are
// skipped.
func (c *Conn) Call(ctx context.Context, method string, params, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	data, err := json.Marshal(request{ID: id, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}
	data = append(data, '\n')
	if _, err := c.writer.Write(data); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}

	for {
		var l line
		var ok bool
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", method, ctx.Err())
		case l, ok = <-c.lines:
		}
		if !ok {
			return ErrClosed
		}
		if l.err != nil {
			return fmt.Errorf("%s: %w", method, l.err)
		}
		var resp response
		if err := json.Unmarshal(l.data, &resp); err != nil {
			return fmt.Errorf("%s: decode response: %w", method, err)
		}
		if resp.ID != id {
			continue
		}
		if resp.Error != nil {
			return &RemoteError{Method: method, Message: *resp.Error}
		}
		if result == nil || len(resp.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
		return nil
	}
}

func (c *Conn) readLoop(reader *bufio.Reader) {
	defer close(c.lines)
	for {
		data, err := readStdioLine(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.lines <- line{err: err}
			}
			return
		}
		c.lines <- line{data: data}
	}
}

func readStdioLine(reader *bufio.Reader) ([]byte, error) {
	for {
		data, err := reader.ReadBytes('\n')
		if err != nil && (len(bytes.TrimSpace(data)) == 0 || !errors.Is(err, io.EOF)) {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read line: %w", err)
		}
		data = bytes.TrimSpace(data)
		if len(data) == 0 {
			continue
		}
		return data, nil
	}
}
