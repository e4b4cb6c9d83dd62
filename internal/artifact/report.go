package artifact

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/baskuit/engine/internal/data"
	"github.com/baskuit/engine/internal/engine"
	"github.com/baskuit/engine/internal/frame"
	"github.com/baskuit/engine/internal/normalize"
	"github.com/baskuit/engine/internal/protocol"
)

// Report is the content of one HTML failure report.
type Report struct {
	Title   string
	Error   string
	Seed    engine.Seed
	Names   *data.Names
	Initial []protocol.ParsedLine
	Frames  []frame.Frame
	// Normalize, when set, also shows each frame's log the way it is
	// compared against the engine in that generation.
	Normalize data.Gen
	// Partial is the round that failed before both engines completed it.
	Partial *Partial
}

// Partial is an incomplete round.
type Partial struct {
	C1, C2 engine.Choice
	Frame  *frame.Frame
}

const style = `body{font-family:monospace;margin:2em;background:#fafafa}
.error{white-space:pre-wrap;color:#b00020;border:1px solid #b00020;padding:1em}
.frame{border-top:1px solid #ccc;padding:.5em 0}
.partial{background:#fff3e0}
table{border-collapse:collapse}td,th{padding:0 .75em;text-align:left}
.log{margin:.5em 0;padding-left:1em;border-left:3px solid #ddd}`

// htmlWriter accumulates the first write error.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(parts ...string) {
	for _, p := range parts {
		if h.err != nil {
			return
		}
		_, h.err = io.WriteString(h.w, p)
	}
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *htmlWriter) textf(format string, args ...any) {
	h.text(fmt.Sprintf(format, args...))
}

// Component renders the report as a full HTML page.
func (r Report) Component() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
		h.text(r.Title)
		h.raw("</title><style>", style, "</style></head><body><h1>")
		h.text(r.Title)
		h.raw("</h1>")
		if len(r.Seed) > 0 {
			h.raw("<p>Seed: <code>")
			h.textf("%s (%s)", r.Seed.Hex(), r.Seed)
			h.raw("</code></p>")
		}
		if r.Error != "" {
			h.raw(`<pre class="error">`)
			h.text(r.Error)
			h.raw("</pre>")
		}
		if len(r.Initial) > 0 {
			h.raw(`<section class="frame"><h2>Initial</h2>`)
			writeLog(h, r.Initial)
			h.raw("</section>")
		}
		if h.err != nil {
			return h.err
		}
		for i, f := range r.Frames {
			if err := ctx.Err(); err != nil {
				return err
			}
			r.writeFrame(h, i, f, "frame")
		}
		if r.Partial != nil {
			h.raw(`<section class="frame partial"><h2>Partial round</h2><p>`)
			h.textf("|c1| %s |c2| %s", r.Partial.C1, r.Partial.C2)
			h.raw("</p>")
			if r.Partial.Frame != nil {
				r.writeFrame(h, len(r.Frames), *r.Partial.Frame, "partial")
			}
			h.raw("</section>")
		}
		h.raw("</body></html>\n")
		return h.err
	})
}

func (r Report) writeFrame(h *htmlWriter, i int, f frame.Frame, class string) {
	h.raw(`<section class="`, class, `"><h2>`)
	h.textf("Frame %d", i)
	h.raw("</h2><p>")
	h.textf("Result: %s", f.Result)
	if i > 0 {
		h.textf(" | c1: %s | c2: %s", f.C1, f.C2)
	}
	if len(f.Seed) > 0 {
		h.textf(" | seed: %s", f.Seed)
	}
	h.raw("</p>")
	if f.Battle != nil {
		writeBattle(h, r.Names, f.Battle)
	}
	if f.Chunk != "" {
		h.raw("<details><summary>raw</summary><pre>")
		h.text(f.Chunk)
		h.raw("</pre></details>")
	}
	lines := f.Log
	if lines == nil && f.Chunk != "" {
		lines = protocol.ParseChunk(f.Chunk)
	}
	writeLog(h, lines)
	if r.Normalize != 0 && len(lines) > 0 {
		h.raw("<details><summary>normalized</summary>")
		writeLog(h, normalize.Lines(r.Normalize, lines))
		h.raw("</details>")
	}
	h.raw("</section>")
}

func writeLog(h *htmlWriter, lines []protocol.ParsedLine) {
	if len(lines) == 0 {
		return
	}
	h.raw(`<pre class="log">`)
	for _, l := range lines {
		h.text(l.String())
		h.raw("\n")
	}
	h.raw("</pre>")
}

func writeBattle(h *htmlWriter, names *data.Names, b *frame.Battle) {
	h.raw("<p>")
	h.textf("Turn %d | last damage %d | last moves %d/%d | rng %s",
		b.Turn, b.LastDamage, b.LastMoves[0], b.LastMoves[1], b.RNG)
	h.raw("</p><table><tr><th>side</th><th>slot</th><th>species</th><th>level</th><th>hp</th><th>status</th><th>moves</th></tr>")
	for s := range b.Sides {
		side := &b.Sides[s]
		for slot, p := range side.Party() {
			h.raw("<tr><td>")
			h.text(engine.Players[s].String())
			h.raw("</td><td>")
			h.textf("%d", slot+1)
			h.raw("</td><td>")
			h.text(speciesName(names, p.Species))
			h.raw("</td><td>")
			h.textf("%d", p.Level)
			h.raw("</td><td>")
			h.textf("%d/%d", p.HP, p.Stats.HP)
			h.raw("</td><td>")
			h.text(statusText(p.Status))
			h.raw("</td><td>")
			h.text(movesText(names, p.Moves[:]))
			h.raw("</td></tr>")
		}
		a := &side.Active
		h.raw(`<tr><td></td><td>active</td><td>`)
		h.text(speciesName(names, a.Species))
		h.raw(`</td><td colspan="3">`)
		h.textf("atk %+d def %+d spe %+d spc %+d acc %+d eva %+d",
			a.Boosts.Atk, a.Boosts.Def, a.Boosts.Spe, a.Boosts.Spc, a.Boosts.Accuracy, a.Boosts.Evasion)
		h.raw("</td><td>")
		h.text(strings.Join(a.Volatiles.Flags.Names(), " "))
		h.raw("</td></tr>")
	}
	h.raw("</table>")
}

func speciesName(names *data.Names, id uint8) string {
	if names != nil {
		if n := names.SpeciesName(id); n != "" {
			return n
		}
	}
	return fmt.Sprintf("#%d", id)
}

func statusText(status uint8) string {
	name := data.StatusName(status)
	if name == "slp" {
		return fmt.Sprintf("slp (%d)", data.SleepTurns(status))
	}
	return name
}

func movesText(names *data.Names, moves []frame.MoveSlot) string {
	var parts []string
	for _, m := range moves {
		if m.ID == 0 {
			continue
		}
		name := fmt.Sprintf("#%d", m.ID)
		if names != nil {
			if n := names.MoveName(m.ID); n != "" {
				name = n
			}
		}
		parts = append(parts, fmt.Sprintf("%s (%d)", name, m.PP))
	}
	return strings.Join(parts, ", ")
}
