package random

import (
	"testing"

	"github.com/baskuit/engine/internal/engine"
)

func TestDeriveKnownSequence(t *testing.T) {
	t.Parallel()

	p, err := NewPRNG(engine.Seed{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("new prng: %v", err)
	}
	got := Derive(p)
	if !got.Equal(engine.Seed{30982, 57890, 43514, 8769}) {
		t.Fatalf("derive = %v", got)
	}
	if state := p.Seed(); !state.Equal(engine.Seed{8769, 17248, 37115, 18776}) {
		t.Fatalf("state after derive = %v", state)
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	t.Parallel()

	a, _ := NewPRNG(engine.Seed{0xDEAD, 0xBEEF, 0, 42})
	b, _ := NewPRNG(engine.Seed{0xDEAD, 0xBEEF, 0, 42})
	for i := 0; i < 100; i++ {
		x, y := Derive(a), Derive(b)
		if !x.Equal(y) {
			t.Fatalf("derivation %d diverged: %v != %v", i, x, y)
		}
	}
}

func TestDeriveAdvancesByFourDraws(t *testing.T) {
	t.Parallel()

	a, _ := NewPRNG(engine.Seed{5, 6, 7, 8})
	b, _ := NewPRNG(engine.Seed{5, 6, 7, 8})
	Derive(a)
	for i := 0; i < 4; i++ {
		b.Next(0x10000)
	}
	if !a.Seed().Equal(b.Seed()) {
		t.Fatalf("states differ: %v != %v", a.Seed(), b.Seed())
	}
}

func TestNextRange(t *testing.T) {
	t.Parallel()

	p, _ := NewPRNG(engine.Seed{9, 9, 9, 9})
	for i := 0; i < 1000; i++ {
		if v := p.Next(6); v >= 6 {
			t.Fatalf("next(6) = %d", v)
		}
	}
}

func TestNewPRNGRejectsCartridgeSeed(t *testing.T) {
	t.Parallel()

	if _, err := NewPRNG(make(engine.Seed, engine.CartridgeSeedSize)); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewSeed(t *testing.T) {
	t.Parallel()

	seed, err := NewSeed()
	if err != nil {
		t.Fatalf("new seed: %v", err)
	}
	if len(seed) != engine.ShowdownSeedSize {
		t.Fatalf("len = %d", len(seed))
	}
}

func TestParseSeed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    engine.Seed
		wantErr bool
	}{
		{input: "1,2,3,4", want: engine.Seed{1, 2, 3, 4}},
		{input: " 65535, 0 ,7,8", want: engine.Seed{65535, 0, 7, 8}},
		{input: "1,2,3", wantErr: true},
		{input: "1,2,3,65536", wantErr: true},
		{input: "a,b,c,d", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSeed(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse seed: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("parse seed = %v, want %v", got, tt.want)
			}
		})
	}
}
