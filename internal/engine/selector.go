package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/jaminalder/tictactoe-engine/internal/domain"
)

var ErrNoLegalMoves = errors.New("no legal moves")

// Rand is the source of uniform indices. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Selector dispatches move selection by difficulty.
type Selector struct {
	rand   Rand
	logger *zap.Logger
}

// NewSelector returns a selector drawing from r. A nil r uses the global
// math/rand/v2 source; a nil logger logs nothing.
func NewSelector(r Rand, logger *zap.Logger) *Selector {
	if r == nil {
		r = globalRand{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{rand: r, logger: logger}
}

// Select returns an empty cell of b for the automated player playing mark.
func (s *Selector) Select(b domain.Board, d Difficulty, mark domain.Mark) (int, error) {
	switch d {
	case Easy:
		return s.Random(b)
	case Medium:
		// each call draws afresh
		if s.rand.IntN(2) == 0 {
			return s.Random(b)
		}
		return s.Optimal(b, mark)
	case Hard:
		return s.Optimal(b, mark)
	default:
		return -1, fmt.Errorf("select: %w", ErrUnknownDifficulty)
	}
}

// Random samples an empty cell uniformly.
func (s *Selector) Random(b domain.Board) (int, error) {
	cells := make([]int, 0, domain.Size)
	for i := range b.EmptyCells() {
		cells = append(cells, i)
	}
	if len(cells) == 0 {
		return -1, ErrNoLegalMoves
	}
	return cells[s.rand.IntN(len(cells))], nil
}

// Optimal returns the minimax move for mark.
func (s *Selector) Optimal(b domain.Board, mark domain.Mark) (int, error) {
	r, err := Search(b, mark, mark.Opponent())
	if err != nil {
		return -1, err
	}
	s.logger.Debug("search finished",
		zap.Stringer("mark", mark),
		zap.Int("index", r.Index),
		zap.Int("score", r.Score),
		zap.Int("nodes", r.Nodes))
	return r.Index, nil
}
