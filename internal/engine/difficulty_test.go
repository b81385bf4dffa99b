package engine

import (
	"errors"
	"testing"
)

func TestParseDifficulty(t *testing.T) {
	for _, d := range []Difficulty{Easy, Medium, Hard} {
		got, err := ParseDifficulty(d.String())
		if err != nil || got != d {
			t.Fatalf("ParseDifficulty(%q) = %v, %v", d.String(), got, err)
		}
	}
	if got, err := ParseDifficulty(" HARD "); err != nil || got != Hard {
		t.Fatalf("expected case-insensitive parse, got %v, %v", got, err)
	}
	if _, err := ParseDifficulty("impossible"); !errors.Is(err, ErrUnknownDifficulty) {
		t.Fatalf("expected ErrUnknownDifficulty, got %v", err)
	}
}

func TestDifficultyText(t *testing.T) {
	var d Difficulty
	if err := d.UnmarshalText([]byte("medium")); err != nil || d != Medium {
		t.Fatalf("UnmarshalText: %v, %v", d, err)
	}
	if _, err := Difficulty(7).MarshalText(); err == nil {
		t.Fatalf("expected error for out-of-range difficulty")
	}
}
