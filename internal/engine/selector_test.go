package engine

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/jaminalder/tictactoe-engine/internal/domain"
)

// fixedRand returns its values in order, modulo n.
type fixedRand struct {
	vals []int
	i    int
}

func (r *fixedRand) IntN(n int) int {
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v % n
}

func TestEasyOneEmptyCell(t *testing.T) {
	b := mustBoard(t, "XOXOX.OXO")
	s := NewSelector(rand.New(rand.NewPCG(1, 2)), nil)
	for i := 0; i < 1000; i++ {
		got, err := s.Select(b, Easy, domain.O)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if got != 5 {
			t.Fatalf("draw %d: expected 5, got %d", i, got)
		}
	}
}

func TestEasyNoLegalMoves(t *testing.T) {
	s := NewSelector(nil, nil)
	if _, err := s.Select(mustBoard(t, "XOXOXOOXO"), Easy, domain.O); !errors.Is(err, ErrNoLegalMoves) {
		t.Fatalf("expected ErrNoLegalMoves, got %v", err)
	}
}

func TestEasyUniformOverEmptyCells(t *testing.T) {
	b := mustBoard(t, "X...O....")
	s := NewSelector(rand.New(rand.NewPCG(7, 7)), nil)
	seen := map[int]int{}
	for i := 0; i < 2000; i++ {
		got, err := s.Select(b, Easy, domain.X)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if b[got] != domain.Empty {
			t.Fatalf("selected occupied cell %d", got)
		}
		seen[got]++
	}
	if len(seen) != 7 {
		t.Fatalf("expected all 7 empty cells to be drawn, got %v", seen)
	}
}

func TestMediumDelegates(t *testing.T) {
	b := mustBoard(t, "....O.XX.")

	// coin 0 -> random branch, which then takes the first empty cell
	s := NewSelector(&fixedRand{vals: []int{0, 0}}, nil)
	if got, err := s.Select(b, Medium, domain.O); err != nil || got != 0 {
		t.Fatalf("random branch: got %d, %v", got, err)
	}

	// coin 1 -> search branch blocks at 8
	s = NewSelector(&fixedRand{vals: []int{1}}, nil)
	if got, err := s.Select(b, Medium, domain.O); err != nil || got != 8 {
		t.Fatalf("search branch: got %d, %v", got, err)
	}
}

func TestMediumMixesBothStrategies(t *testing.T) {
	b := mustBoard(t, "....O.XX.")
	s := NewSelector(rand.New(rand.NewPCG(3, 4)), nil)
	blocks, others := 0, 0
	for i := 0; i < 200; i++ {
		got, err := s.Select(b, Medium, domain.O)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if got == 8 {
			blocks++
		} else {
			others++
		}
	}
	if blocks == 0 || others == 0 {
		t.Fatalf("expected both strategies, blocks=%d others=%d", blocks, others)
	}
}

func TestHardUsesSearch(t *testing.T) {
	s := NewSelector(nil, nil)
	got, err := s.Select(mustBoard(t, "OO.XX...."), Hard, domain.O)
	if err != nil || got != 2 {
		t.Fatalf("expected winning move 2, got %d, %v", got, err)
	}
	if _, err := s.Select(mustBoard(t, "XXX.OO..."), Hard, domain.O); !errors.Is(err, ErrInvalidSearchState) {
		t.Fatalf("expected ErrInvalidSearchState on a won board, got %v", err)
	}
}

func TestUnknownDifficulty(t *testing.T) {
	s := NewSelector(nil, nil)
	if _, err := s.Select(domain.Board{}, Difficulty(9), domain.O); !errors.Is(err, ErrUnknownDifficulty) {
		t.Fatalf("expected ErrUnknownDifficulty, got %v", err)
	}
}

// playAll walks every line of play for the side not controlled by the
// selector and fails if the selector's side ever loses.
func playAll(t *testing.T, s *Selector, b domain.Board, turn, ai domain.Mark, games *int) {
	t.Helper()
	out := domain.Status(b)
	if out.Terminal() {
		*games++
		if out.Result == domain.Win && out.Winner != ai {
			t.Fatalf("hard %v lost:\n%v", ai, b)
		}
		return
	}
	if turn == ai {
		i, err := s.Select(b, Hard, ai)
		if err != nil {
			t.Fatalf("Select: %v\n%v", err, b)
		}
		if err := b.Set(i, ai); err != nil {
			t.Fatalf("illegal move %d: %v", i, err)
		}
		playAll(t, s, b, turn.Opponent(), ai, games)
		return
	}
	for i := range b.EmptyCells() {
		next := b.Clone()
		next[i] = turn
		playAll(t, s, next, turn.Opponent(), ai, games)
	}
}

func TestHardNeverLoses(t *testing.T) {
	if testing.Short() {
		t.Skip("exhaustive")
	}
	s := NewSelector(nil, nil)
	for _, ai := range []domain.Mark{domain.X, domain.O} {
		games := 0
		playAll(t, s, domain.Board{}, domain.X, ai, &games)
		if games == 0 {
			t.Fatalf("no games played for %v", ai)
		}
	}
}

func TestHardNearlyFullBoards(t *testing.T) {
	// every board with one empty cell, X to move, and no winner yet
	s := NewSelector(nil, nil)
	checked := 0
	for empty := range domain.Size {
		for mask := 0; mask < 1<<8; mask++ {
			var b domain.Board
			xs, bit := 0, 0
			for i := range domain.Size {
				if i == empty {
					continue
				}
				if mask&(1<<bit) != 0 {
					b[i] = domain.X
					xs++
				} else {
					b[i] = domain.O
				}
				bit++
			}
			if xs != 4 || domain.Status(b).Terminal() {
				continue
			}
			got, err := s.Select(b, Hard, domain.X)
			if err != nil || got != empty {
				t.Fatalf("expected %d, got %d, %v\n%v", empty, got, err, b)
			}
			b[got] = domain.X
			if out := domain.Status(b); out.Result == domain.Win && out.Winner != domain.X {
				t.Fatalf("hard lost:\n%v", b)
			}
			checked++
		}
	}
	if checked == 0 {
		t.Fatalf("no boards checked")
	}
}
