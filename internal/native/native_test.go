package native

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/baskuit/engine/internal/engine"
	"github.com/baskuit/engine/internal/frame"
	"github.com/baskuit/engine/internal/protocol"
)

const battleSize = 384

func record(turn uint16, result engine.Result, log ...byte) []byte {
	out := []byte{result.Encode(), engine.Pass().Encode(), engine.Pass().Encode()}
	battle := make([]byte, battleSize)
	binary.LittleEndian.PutUint16(battle[368:], turn)
	binary.LittleEndian.PutUint64(battle[376:], uint64(turn)<<48|0x000200030004)
	out = append(out, battle...)
	return append(out, log...)
}

func frameReply(payload []byte) []byte {
	return append(binary.LittleEndian.AppendUint32(nil, uint32(len(payload))), payload...)
}

// fakeEngine plays a battle that ends in a tie on the second update.
func fakeEngine(t *testing.T, in io.Reader, out io.WriteCloser, starts chan<- Start) {
	t.Helper()
	go func() {
		defer out.Close()
		r := bufio.NewReader(in)
		line, err := r.ReadBytes('\n')
		if err != nil {
			return
		}
		var start Start
		if err := json.Unmarshal(line, &start); err != nil {
			return
		}
		starts <- start
		pending := engine.Result{P1: engine.ChoiceMove, P2: engine.ChoiceMove}
		if _, err := out.Write(frameReply(record(1, pending, byte(protocol.ArgTurn), 1, 0, byte(protocol.ArgNone)))); err != nil {
			return
		}
		turn := uint16(1)
		for {
			op, err := r.ReadByte()
			if err != nil {
				return
			}
			var args [2]byte
			if _, err := io.ReadFull(r, args[:]); err != nil {
				return
			}
			var reply []byte
			switch op {
			case OpUpdate:
				turn++
				if turn > 2 {
					reply = record(turn, engine.Result{Type: engine.ResultTie}, byte(protocol.ArgTie), byte(protocol.ArgNone))
				} else {
					reply = record(turn, pending, byte(protocol.ArgTurn), byte(turn), 0, byte(protocol.ArgNone))
				}
			case OpChoices:
				reply = []byte{engine.Move(1).Encode(), engine.Switch(2).Encode()}
			}
			if _, err := out.Write(frameReply(reply)); err != nil {
				return
			}
		}
	}()
}

func newTestClient(t *testing.T) (*Client, <-chan Start) {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	starts := make(chan Start, 1)
	fakeEngine(t, reqR, respW, starts)
	t.Cleanup(func() { reqW.Close() })
	c, err := NewClient(Config{Start: Start{Gen: 1, Seed: engine.Seed{1, 2, 3, 4}, Showdown: true, Teams: [2]string{"a", "b"}}}, respR, reqW)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, starts
}

func TestClientPlaysBattle(t *testing.T) {
	t.Parallel()

	c, starts := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	round, err := c.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if start := <-starts; start.Gen != 1 || start.Teams[1] != "b" || !start.Showdown {
		t.Fatalf("start line = %+v", start)
	}
	if round.Result.Terminal() || round.Battle.Turn != 1 || len(round.Log) != 1 {
		t.Fatalf("start round = %+v", round)
	}
	if !c.Seed().Equal(engine.Seed{1, 2, 3, 4}) {
		t.Fatalf("seed = %v", c.Seed())
	}

	legal, err := c.Legal(ctx, engine.P1, round.Result)
	if err != nil {
		t.Fatalf("legal: %v", err)
	}
	if len(legal) != 2 || legal[1] != engine.Switch(2) {
		t.Fatalf("legal = %v", legal)
	}

	if _, err := c.Submit(ctx, engine.Move(1), engine.Move(1)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	round, err = c.Submit(ctx, engine.Move(1), engine.Move(1))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if round.Result.Type != engine.ResultTie || round.Log[0].Tag() != "tie" {
		t.Fatalf("final round = %+v", round)
	}
	if !c.Seed().Equal(engine.Seed{3, 2, 3, 4}) {
		t.Fatalf("seed = %v", c.Seed())
	}
}

func TestReadPayloadTruncated(t *testing.T) {
	t.Parallel()

	buf := append(binary.LittleEndian.AppendUint32(nil, 10), 1, 2, 3)
	_, err := readPayload(bytes.NewReader(buf))
	var truncated *frame.TruncatedBufferError
	if !errors.As(err, &truncated) {
		t.Fatalf("expected TruncatedBufferError, got %v", err)
	}
	if truncated.Need != 10 || truncated.Have != 3 {
		t.Fatalf("unexpected error fields: %+v", truncated)
	}
}

func TestRoundRejectsTrailingBytes(t *testing.T) {
	t.Parallel()

	c, err := NewClient(Config{Start: Start{Gen: 1, Showdown: true}}, bytes.NewReader(nil), io.Discard)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	payload := append(record(1, engine.Result{}, byte(protocol.ArgNone)), 0xAA)
	if _, err := c.round(payload); !errors.Is(err, protocol.ErrMalformedLog) {
		t.Fatalf("expected ErrMalformedLog, got %v", err)
	}
}

func TestExchangeHonorsContext(t *testing.T) {
	t.Parallel()

	respR, _ := io.Pipe()
	c, err := NewClient(Config{Start: Start{Gen: 1, Showdown: true}}, respR, io.Discard)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := c.Submit(ctx, engine.Pass(), engine.Pass()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if _, err := c.Legal(context.Background(), engine.P1, engine.Result{}); !errors.Is(err, ErrOutOfSync) {
		t.Fatalf("expected ErrOutOfSync after abandoned reply, got %v", err)
	}
}

func TestShortReplyBreaksClient(t *testing.T) {
	t.Parallel()

	reply := []byte{10, 0, 0, 0, 1, 2, 3}
	c, err := NewClient(Config{Start: Start{Gen: 1, Showdown: true}}, bytes.NewReader(reply), io.Discard)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	var truncated *frame.TruncatedBufferError
	if _, err := c.Submit(context.Background(), engine.Pass(), engine.Pass()); !errors.As(err, &truncated) {
		t.Fatalf("expected TruncatedBufferError, got %v", err)
	}
	if _, err := c.Submit(context.Background(), engine.Pass(), engine.Pass()); !errors.Is(err, ErrOutOfSync) {
		t.Fatalf("expected ErrOutOfSync, got %v", err)
	}
}
