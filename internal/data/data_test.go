package data

import (
	"errors"
	"testing"
)

func TestLayoutGen1(t *testing.T) {
	sizes, err := Layout(1)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if sizes.Battle != 384 {
		t.Fatalf("battle size = %d, want 384", sizes.Battle)
	}
	if got := 2*sizes.Side + 16; got != sizes.Battle {
		t.Fatalf("sides + trailer = %d, want %d", got, sizes.Battle)
	}
	if got := 6*sizes.Pokemon + sizes.ActivePokemon + 8; got != sizes.Side {
		t.Fatalf("side parts = %d, want %d", got, sizes.Side)
	}
}

func TestLayoutUnsupported(t *testing.T) {
	for _, gen := range []Gen{0, 2, 9} {
		if _, err := Layout(gen); !errors.Is(err, ErrUnsupportedGen) {
			t.Fatalf("gen %d: expected ErrUnsupportedGen, got %v", gen, err)
		}
	}
}

func TestGen1Tables(t *testing.T) {
	names, err := Lookup(1)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(names.Species) != 152 {
		t.Fatalf("species = %d, want 151 + none", len(names.Species))
	}
	if len(names.Moves) != 166 {
		t.Fatalf("moves = %d, want 165 + none", len(names.Moves))
	}
	if names.SpeciesName(151) != "Mew" || names.MoveName(165) != "Struggle" {
		t.Fatal("unexpected table tail")
	}
	if names.SpeciesName(0) != "" || names.MoveName(200) != "" {
		t.Fatal("expected empty names out of range")
	}
	if id, ok := names.MoveID("thunderbolt"); !ok || names.MoveName(id) != "Thunderbolt" {
		t.Fatalf("move id lookup = %d, %v", id, ok)
	}
	if id, ok := names.SpeciesID("Farfetch'd"); !ok || id != 83 {
		t.Fatalf("species id lookup = %d, %v", id, ok)
	}
}

func TestID(t *testing.T) {
	tests := map[string]string{
		"Mr. Mime":    "mrmime",
		"Farfetch’d":  "farfetchd",
		"Flabébé":     "flabebe",
		"Double-Edge": "doubleedge",
		"Nidoran-F":   "nidoranf",
	}
	for in, want := range tests {
		if got := ID(in); got != want {
			t.Fatalf("ID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	gen, err := ParseFormat(Format(1))
	if err != nil || gen != 1 {
		t.Fatalf("parse format = %d, %v", gen, err)
	}
	if _, err := ParseFormat("ou"); err == nil {
		t.Fatal("expected error")
	}
}
