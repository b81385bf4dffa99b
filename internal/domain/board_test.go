package domain

import (
	"errors"
	"slices"
	"testing"
)

// helper to build a board from its text form
func mustBoard(t *testing.T, s string) Board {
	t.Helper()
	b, err := ParseBoard(s)
	if err != nil {
		t.Fatalf("ParseBoard(%q): %v", s, err)
	}
	return b
}

func TestNewBoardIsEmpty(t *testing.T) {
	var b Board
	for i, c := range b {
		if c != Empty {
			t.Fatalf("expected empty board, cell %d = %v", i, c)
		}
	}
	if b.EmptyCount() != Size {
		t.Fatalf("expected %d empty cells, got %d", Size, b.EmptyCount())
	}
}

func TestGetOutOfRange(t *testing.T) {
	var b Board
	for _, i := range []int{-1, 9, 42} {
		if _, err := b.Get(i); !errors.Is(err, ErrIndexOutOfRange) {
			t.Fatalf("expected ErrIndexOutOfRange for %d, got %v", i, err)
		}
	}
	if m, err := b.Get(8); err != nil || m != Empty {
		t.Fatalf("Get(8) = %v, %v", m, err)
	}
}

func TestSet(t *testing.T) {
	var b Board
	if err := b.Set(4, X); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if m, _ := b.Get(4); m != X {
		t.Fatalf("expected X at 4, got %v", m)
	}

	before := b
	if err := b.Set(4, O); !errors.Is(err, ErrCellOccupied) {
		t.Fatalf("expected ErrCellOccupied, got %v", err)
	}
	if err := b.Set(9, O); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	if err := b.Set(0, Empty); !errors.Is(err, ErrInvalidMark) {
		t.Fatalf("expected ErrInvalidMark, got %v", err)
	}
	if b != before {
		t.Fatalf("rejected Set changed the board:\n%v", b)
	}
}

func TestEmptyCellsAscendingAndRestartable(t *testing.T) {
	b := mustBoard(t, "X.O.X.O..")
	want := []int{1, 3, 5, 7, 8}
	seq := b.EmptyCells()
	for round := 0; round < 2; round++ {
		if got := slices.Collect(seq); !slices.Equal(got, want) {
			t.Fatalf("round %d: got %v, want %v", round, got, want)
		}
	}

	// early stop must not panic
	for i := range seq {
		if i == 3 {
			break
		}
	}

	full := mustBoard(t, "XOXOXOOXO")
	if got := slices.Collect(full.EmptyCells()); len(got) != 0 {
		t.Fatalf("expected no empty cells, got %v", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	b := mustBoard(t, "X........")
	c := b.Clone()
	if err := c.Set(1, O); err != nil {
		t.Fatalf("Set on clone failed: %v", err)
	}
	if b[1] != Empty {
		t.Fatalf("mutating clone changed original")
	}
}

func TestParseBoard(t *testing.T) {
	b := mustBoard(t, "XO.\n_ X\nO..")
	want := Board{X, O, Empty, Empty, Empty, X, O, Empty, Empty}
	if b != want {
		t.Fatalf("got %v, want %v", b, want)
	}
	if b.String() != "XO.\n..X\nO.." {
		t.Fatalf("unexpected String(): %q", b.String())
	}
	for _, bad := range []string{"", "XXXXXXXXXX", "XOXOXOXOZ"} {
		if _, err := ParseBoard(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestTurnAt(t *testing.T) {
	if TurnAt(0) != X || TurnAt(1) != O || TurnAt(8) != X {
		t.Fatalf("unexpected turn order")
	}
	if X.Opponent() != O || O.Opponent() != X || Empty.Opponent() != Empty {
		t.Fatalf("unexpected opponents")
	}
}
