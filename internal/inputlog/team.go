package inputlog

import (
	"fmt"
	"strings"

	"github.com/baskuit/engine/internal/data"
	"github.com/baskuit/engine/internal/engine"
	apperrors "github.com/baskuit/engine/internal/platform/errors"
)

// Member is the identifying part of one packed team entry.
type Member struct {
	Name    string
	Species string
	Moves   []string
	Level   string
}

// Team extracts names from a packed team. Entries are separated by ']' and
// fields by '|'; an empty species field means the species equals the name.
func Team(packed string) []Member {
	if packed == "" {
		return nil
	}
	var members []Member
	for _, entry := range strings.Split(packed, "]") {
		fields := strings.Split(entry, "|")
		m := Member{Name: fields[0]}
		if len(fields) > 1 {
			m.Species = fields[1]
		}
		if m.Species == "" {
			m.Species = m.Name
		}
		if len(fields) > 4 && fields[4] != "" {
			m.Moves = strings.Split(fields[4], ",")
		}
		if len(fields) > 10 {
			m.Level = fields[10]
		}
		members = append(members, m)
	}
	return members
}

// Check resolves every species and move on both teams against the log's
// generation, so a log the engine cannot represent fails before any process
// starts. Empty teams are skipped; they are generated later.
func (l *Log) Check() error {
	gen, err := l.Gen()
	if err != nil {
		return err
	}
	names, err := data.Lookup(gen)
	if err != nil {
		return err
	}
	for _, p := range engine.Players {
		for i, m := range Team(l.Players[p].Team) {
			if _, ok := names.SpeciesID(m.Species); !ok {
				return unknown(p, i, "species", m.Species)
			}
			for _, move := range m.Moves {
				if _, ok := names.MoveID(move); !ok {
					return unknown(p, i, "move", move)
				}
			}
		}
	}
	return nil
}

func unknown(p engine.Player, slot int, kind, name string) error {
	return apperrors.WithMetadata(apperrors.CodeInputLog,
		fmt.Sprintf("%s team slot %d: unknown %s %q", p, slot+1, kind, name),
		map[string]string{"line": fmt.Sprint(2 + int(p))})
}
