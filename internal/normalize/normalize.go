// Package normalize reconciles the reference simulator's protocol output with
// the engine's before the two are compared. Only differences that are known
// and accepted are smoothed over; everything else must match exactly.
package normalize

import (
	"fmt"
	"strings"

	"github.com/baskuit/engine/internal/data"
	apperrors "github.com/baskuit/engine/internal/platform/errors"
	"github.com/baskuit/engine/internal/protocol"
)

// Filter holds the reference message tags the engine never emits. They carry
// no battle state and are dropped before comparison.
var Filter = map[string]struct{}{
	"":            {},
	"t:":          {},
	"gametype":    {},
	"player":      {},
	"teamsize":    {},
	"gen":         {},
	"tier":        {},
	"rule":        {},
	"done":        {},
	"start":       {},
	"upkeep":      {},
	"split":       {},
	"debug":       {},
	"teampreview": {},
	"clearpoke":   {},
	"poke":        {},
	"request":     {},
	"inactive":    {},
	"inactiveoff": {},
	"message":     {},
	"raw":         {},
	"html":        {},
	"j":           {},
	"c":           {},
	"l":           {},
	"n":           {},
	"chat":        {},
	"join":        {},
	"leave":       {},
}

// DivergenceError reports a reference line that contradicts an assumption
// normalization relies on.
type DivergenceError struct {
	Line   protocol.ParsedLine
	Reason string
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("unexpected reference line %s: %s", e.Line, e.Reason)
}

// ErrorCode implements apperrors.Coded.
func (e *DivergenceError) ErrorCode() apperrors.Code { return apperrors.CodeDivergence }

// MismatchError reports the first position where the normalized reference
// and engine logs differ. A missing side is nil.
type MismatchError struct {
	Index int
	Want  *protocol.ParsedLine
	Got   *protocol.ParsedLine
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("log line %d: want %s, got %s", e.Index, render(e.Want), render(e.Got))
}

// ErrorCode implements apperrors.Coded.
func (e *MismatchError) ErrorCode() apperrors.Code { return apperrors.CodeDivergence }

func render(l *protocol.ParsedLine) string {
	if l == nil {
		return "<none>"
	}
	return l.String()
}

// Line normalizes one reference line against the engine line at the same
// position (the zero line when the engine has none). It returns keep=false
// for lines that take no part in the comparison.
func Line(gen data.Gen, ref, actual protocol.ParsedLine) (protocol.ParsedLine, bool, error) {
	if _, ok := Filter[ref.Tag()]; ok {
		return protocol.ParsedLine{}, false, nil
	}
	line := ref.Clone()
	switch line.Tag() {
	case "move":
		if line.Has("from") && !actual.Has("from") {
			delete(line.KWArgs, "from")
		}
	case "switch":
		if len(line.Args) > 3 {
			line.Args[3] = hpStatus(gen, line.Args[3])
		}
	case "-damage", "-heal":
		if len(line.Args) > 2 {
			line.Args[2] = hpStatus(gen, line.Args[2])
		}
		if from, ok := line.KWArgs["from"]; ok && from != "drain" && from != "Recoil" {
			delete(line.KWArgs, "of")
		}
	case "-status", "-curestatus":
		if line.Tag() == "-status" && line.Has("silent") {
			if len(line.Args) < 3 || line.Args[2] != "psn" {
				return protocol.ParsedLine{}, false, &DivergenceError{Line: ref, Reason: "silent status other than psn"}
			}
			return protocol.ParsedLine{}, false, nil
		}
		if len(line.Args) > 2 {
			line.Args[2] = status(gen, line.Args[2])
		}
	}
	return line, true, nil
}

// Compare normalizes ref and checks it against actual line by line.
func Compare(gen data.Gen, ref, actual []protocol.ParsedLine) error {
	i := 0
	for _, r := range ref {
		var got protocol.ParsedLine
		if i < len(actual) {
			got = actual[i]
		}
		want, keep, err := Line(gen, r, got)
		if err != nil {
			return err
		}
		if !keep {
			continue
		}
		if i >= len(actual) {
			return &MismatchError{Index: i, Want: &want}
		}
		if !want.Equal(got) {
			return &MismatchError{Index: i, Want: &want, Got: &got}
		}
		i++
	}
	if i < len(actual) {
		extra := actual[i]
		return &MismatchError{Index: i, Got: &extra}
	}
	return nil
}

// Lines normalizes ref on its own, for display. Rules that depend on the
// engine's output are applied as if the engine line were absent.
func Lines(gen data.Gen, ref []protocol.ParsedLine) []protocol.ParsedLine {
	out := make([]protocol.ParsedLine, 0, len(ref))
	for _, r := range ref {
		line, keep, err := Line(gen, r, protocol.ParsedLine{})
		if err != nil || !keep {
			continue
		}
		out = append(out, line)
	}
	return out
}

func status(gen data.Gen, s string) string {
	if s == "tox" && !data.DistinctToxic(gen) {
		return "psn"
	}
	return s
}

func hpStatus(gen data.Gen, s string) string {
	if !data.DistinctToxic(gen) && strings.HasSuffix(s, "tox") {
		return strings.TrimSuffix(s, "tox") + "psn"
	}
	return s
}
