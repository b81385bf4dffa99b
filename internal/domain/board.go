package domain

import (
	"errors"
	"fmt"
	"iter"
	"strings"
)

// Size is the number of cells on the board.
const Size = 9

// Errors returned by domain operations.
var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrCellOccupied    = errors.New("cell occupied")
	ErrInvalidMark     = errors.New("invalid mark")
	ErrGameOver        = errors.New("game over")
)

// Board is a fixed 3x3 board stored row-major: index = row*3 + col.
type Board [Size]Mark

// InRange reports whether i addresses a cell.
func InRange(i int) bool { return i >= 0 && i < Size }

// Get returns the mark at index i.
func (b Board) Get(i int) (Mark, error) {
	if !InRange(i) {
		return Empty, fmt.Errorf("cell %d: %w", i, ErrIndexOutOfRange)
	}
	return b[i], nil
}

// Set places m on the empty cell i. The board is untouched on error.
func (b *Board) Set(i int, m Mark) error {
	if !InRange(i) {
		return fmt.Errorf("cell %d: %w", i, ErrIndexOutOfRange)
	}
	if !m.Valid() {
		return ErrInvalidMark
	}
	if b[i] != Empty {
		return fmt.Errorf("cell %d: %w", i, ErrCellOccupied)
	}
	b[i] = m
	return nil
}

// EmptyCells yields the indices of empty cells in ascending order.
func (b Board) EmptyCells() iter.Seq[int] {
	return func(yield func(int) bool) {
		for i, m := range b {
			if m == Empty && !yield(i) {
				return
			}
		}
	}
}

// EmptyCount returns the number of empty cells.
func (b Board) EmptyCount() int {
	n := 0
	for _, m := range b {
		if m == Empty {
			n++
		}
	}
	return n
}

// Full reports whether no empty cell is left.
func (b Board) Full() bool { return b.EmptyCount() == 0 }

// Clone returns an independent copy of the board.
func (b Board) Clone() Board { return b }

func (b Board) String() string {
	var s strings.Builder
	for r := range 3 {
		for c := range 3 {
			m := b[r*3+c]
			if m == Empty {
				s.WriteByte('.')
			} else {
				s.WriteString(m.String())
			}
		}
		if r < 2 {
			s.WriteByte('\n')
		}
	}
	return s.String()
}

// ParseBoard reads 9 cells written as X, O and '.', '_' or ' ' for empty.
// Newlines are ignored.
func ParseBoard(s string) (Board, error) {
	var b Board
	i := 0
	for _, r := range s {
		if r == '\n' || r == '\r' {
			continue
		}
		if i >= Size {
			return Board{}, fmt.Errorf("parse board: more than %d cells", Size)
		}
		switch r {
		case 'X', 'x':
			b[i] = X
		case 'O', 'o':
			b[i] = O
		case '.', '_', ' ':
			b[i] = Empty
		default:
			return Board{}, fmt.Errorf("parse board: unexpected %q at cell %d", r, i)
		}
		i++
	}
	if i != Size {
		return Board{}, fmt.Errorf("parse board: got %d cells, want %d", i, Size)
	}
	return b, nil
}
