// Package inputlog reads and writes the reference simulator's input log: the
// start specification, both player specifications and every choice submitted,
// enough to replay a battle exactly.
package inputlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/baskuit/engine/internal/data"
	"github.com/baskuit/engine/internal/engine"
	apperrors "github.com/baskuit/engine/internal/platform/errors"
	"github.com/baskuit/engine/internal/protocol"
)

// Start is the battle specification of the first line.
type Start struct {
	FormatID string      `json:"formatid"`
	Seed     engine.Seed `json:"seed"`
}

// Player is a player specification; Team is in packed format.
type Player struct {
	Name string `json:"name"`
	Team string `json:"team"`
}

// Log is a parsed input log.
type Log struct {
	Start   Start
	Players [2]Player
	// Choices holds one pair per round, p1 first.
	Choices [][2]engine.Choice
}

// Gen returns the generation of the log's format.
func (l *Log) Gen() (data.Gen, error) {
	return data.ParseFormat(l.Start.FormatID)
}

// Rounds returns the number of recorded rounds.
func (l *Log) Rounds() int {
	return len(l.Choices)
}

// Append records one round of choices.
func (l *Log) Append(c1, c2 engine.Choice) {
	l.Choices = append(l.Choices, [2]engine.Choice{c1, c2})
}

// Info names both sides and their Pokémon the way the reference identifies
// them.
func (l *Log) Info() protocol.StaticInfo {
	var info protocol.StaticInfo
	for i, p := range l.Players {
		info[i].Name = p.Name
		for _, m := range Team(p.Team) {
			info[i].Team = append(info[i].Team, m.Name)
		}
	}
	return info
}

// Lines renders the log, one entry per line.
func (l *Log) Lines() ([]string, error) {
	start, err := json.Marshal(l.Start)
	if err != nil {
		return nil, fmt.Errorf("marshal start: %w", err)
	}
	lines := make([]string, 0, 3+2*len(l.Choices))
	lines = append(lines, ">start "+string(start))
	for _, p := range engine.Players {
		spec, err := json.Marshal(l.Players[p])
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", p, err)
		}
		lines = append(lines, ">player "+p.String()+" "+string(spec))
	}
	for _, round := range l.Choices {
		for _, p := range engine.Players {
			lines = append(lines, ">"+p.String()+" "+round[p].String())
		}
	}
	return lines, nil
}

// WriteTo writes the log to w.
func (l *Log) WriteTo(w io.Writer) (int64, error) {
	lines, err := l.Lines()
	if err != nil {
		return 0, err
	}
	n, err := io.WriteString(w, strings.Join(lines, "\n"))
	return int64(n), err
}

func malformed(line int, format string, args ...any) error {
	return apperrors.WithMetadata(apperrors.CodeInputLog,
		fmt.Sprintf("input log line %d: "+format, append([]any{line}, args...)...),
		map[string]string{"line": fmt.Sprint(line)})
}

// Parse reads an input log. Every round must list p1's choice then p2's,
// including explicit passes.
func Parse(r io.Reader) (*Log, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lines []string
	for sc.Scan() {
		if text := strings.TrimRight(sc.Text(), "\r"); text != "" {
			lines = append(lines, text)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input log: %w", err)
	}
	if len(lines) < 3 {
		return nil, malformed(len(lines)+1, "missing header")
	}

	l := &Log{}
	rest, ok := strings.CutPrefix(lines[0], ">start ")
	if !ok {
		return nil, malformed(1, "expected >start")
	}
	if err := json.Unmarshal([]byte(rest), &l.Start); err != nil {
		return nil, malformed(1, "%v", err)
	}
	if _, err := l.Gen(); err != nil {
		return nil, malformed(1, "%v", err)
	}
	for _, p := range engine.Players {
		prefix := ">player " + p.String() + " "
		rest, ok := strings.CutPrefix(lines[1+int(p)], prefix)
		if !ok {
			return nil, malformed(2+int(p), "expected %q", strings.TrimSpace(prefix))
		}
		if err := json.Unmarshal([]byte(rest), &l.Players[p]); err != nil {
			return nil, malformed(2+int(p), "%v", err)
		}
	}

	body := lines[3:]
	if len(body)%2 != 0 {
		return nil, malformed(len(lines), "round without a choice for p2")
	}
	for i := 0; i < len(body); i += 2 {
		var round [2]engine.Choice
		for _, p := range engine.Players {
			n := 4 + i + int(p)
			rest, ok := strings.CutPrefix(body[i+int(p)], ">"+p.String()+" ")
			if !ok {
				return nil, malformed(n, "expected choice for %s", p)
			}
			c, err := engine.ParseChoice(rest)
			if err != nil {
				return nil, malformed(n, "%v", err)
			}
			round[p] = c
		}
		l.Choices = append(l.Choices, round)
	}
	return l, nil
}

// ReadFile parses the input log at path.
func ReadFile(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input log: %w", err)
	}
	defer f.Close()
	return Parse(f)
}
