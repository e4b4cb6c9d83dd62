package inputlog

import (
	"errors"
	"strings"
	"testing"

	"github.com/baskuit/engine/internal/engine"
	apperrors "github.com/baskuit/engine/internal/platform/errors"
)

const sample = `>start {"formatid":"gen1customgame","seed":[1,2,3,4]}
>player p1 {"name":"Bot 1","team":"Sparky|Pikachu|||thunderbolt||||||50|]Bulbasaur||||tackle||||||"}
>player p2 {"name":"Bot 2","team":"Gengar||||hypnosis||||||"}
>p1 move 1
>p2 move 1
>p1 switch 2
>p2 pass
`

func TestParse(t *testing.T) {
	t.Parallel()

	l, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if gen, err := l.Gen(); err != nil || gen != 1 {
		t.Fatalf("gen = %d, %v", gen, err)
	}
	if !l.Start.Seed.Equal(engine.Seed{1, 2, 3, 4}) {
		t.Fatalf("seed = %v", l.Start.Seed)
	}
	if l.Rounds() != 2 {
		t.Fatalf("rounds = %d", l.Rounds())
	}
	if l.Choices[1] != [2]engine.Choice{engine.Switch(2), engine.Pass()} {
		t.Fatalf("round 2 = %v", l.Choices[1])
	}
	info := l.Info()
	if info.SideName(engine.P2) != "Bot 2" {
		t.Fatalf("p2 name = %q", info.SideName(engine.P2))
	}
	if info.PokemonName(engine.P1, 1) != "Sparky" || info.PokemonName(engine.P1, 2) != "Bulbasaur" {
		t.Fatalf("p1 team = %v", info[0].Team)
	}
}

func TestWriteToRoundTrip(t *testing.T) {
	t.Parallel()

	l, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var b strings.Builder
	if _, err := l.WriteTo(&b); err != nil {
		t.Fatalf("write: %v", err)
	}
	if b.String() != strings.TrimSuffix(sample, "\n") {
		t.Fatalf("written log differs:\n%s", b.String())
	}
}

func TestParseRejectsMalformedLogs(t *testing.T) {
	t.Parallel()

	header := strings.Join(strings.Split(sample, "\n")[:3], "\n")
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "bad start", input: ">begin {}\n>player p1 {}\n>player p2 {}"},
		{name: "bad format", input: strings.Replace(header, "gen1customgame", "randombattle", 1)},
		{name: "players swapped", input: strings.Replace(strings.Replace(header, "player p1", "player px", 1), "player p2", "player p1", 1)},
		{name: "odd round", input: header + "\n>p1 move 1"},
		{name: "bad choice", input: header + "\n>p1 move 1\n>p2 dance"},
		{name: "wrong order", input: header + "\n>p2 move 1\n>p1 move 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, apperrors.New(apperrors.CodeInputLog, "")) {
				t.Fatalf("expected input log error, got %v", err)
			}
		})
	}
}

func TestTeam(t *testing.T) {
	t.Parallel()

	got := Team("Sparky|Pikachu|||thunderbolt||||||50|]Bulbasaur||||tackle||||||")
	if len(got) != 2 {
		t.Fatalf("members = %v", got)
	}
	if m := got[0]; m.Name != "Sparky" || m.Species != "Pikachu" || m.Level != "50" || len(m.Moves) != 1 || m.Moves[0] != "thunderbolt" {
		t.Fatalf("member 0 = %+v", got[0])
	}
	if got[1].Species != "Bulbasaur" || got[1].Level != "" {
		t.Fatalf("member 1 = %+v", got[1])
	}
	if Team("") != nil {
		t.Fatal("expected no members")
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		team    string
		wantErr string
	}{
		{name: "sample", team: "Sparky|Pikachu|||thunderbolt,surf||||||50|"},
		{name: "species id", team: "Mimey|mrmime|||psychic||||||"},
		{name: "name only", team: "Farfetch'd||||peck||||||"},
		{name: "generated later", team: ""},
		{name: "unknown species", team: "Togepi||||metronome||||||", wantErr: `p1 team slot 1: unknown species "Togepi"`},
		{name: "unknown move", team: "Pikachu||||thunderbolt,voltswitch||||||", wantErr: `unknown move "voltswitch"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l := &Log{
				Start:   Start{FormatID: "gen1customgame", Seed: engine.Seed{1, 2, 3, 4}},
				Players: [2]Player{{Name: "Bot 1", Team: tt.team}, {Name: "Bot 2"}},
			}
			err := l.Check()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("check: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want %q", err, tt.wantErr)
			}
			if apperrors.CodeOf(err) != apperrors.CodeInputLog {
				t.Fatalf("code = %s", apperrors.CodeOf(err))
			}
		})
	}
}
