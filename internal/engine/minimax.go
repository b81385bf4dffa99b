// Package engine picks moves for the automated player.
package engine

import (
	"errors"
	"math"

	"github.com/jaminalder/tictactoe-engine/internal/domain"
)

// Leaf scores, from the point of view of the side the search runs for.
// Wins are not weighted by depth.
const (
	WinScore  = 10
	LossScore = -10
	DrawScore = 0
)

var ErrInvalidSearchState = errors.New("invalid search state")

// Move is a cell chosen by the search and the score it leads to.
type Move struct {
	Index int
	Score int
}

// Result is a Move plus the number of positions the search visited.
type Result struct {
	Move
	Nodes int
}

// BestMove returns the optimal move for mover on b.
// The board must not be terminal; b itself is never modified.
func BestMove(b domain.Board, mover, opponent domain.Mark) (Move, error) {
	r, err := Search(b, mover, opponent)
	return r.Move, err
}

// Search runs an exhaustive minimax without pruning. Candidates are tried in
// ascending index order and the first strictly better score is kept, so ties
// go to the lowest index.
func Search(b domain.Board, mover, opponent domain.Mark) (Result, error) {
	if !mover.Valid() || opponent != mover.Opponent() {
		return Result{}, ErrInvalidSearchState
	}
	if domain.Status(b).Terminal() {
		return Result{}, ErrInvalidSearchState
	}
	s := searcher{board: b, mover: mover, opponent: opponent}
	mv := s.minimax(mover)
	return Result{Move: mv, Nodes: s.nodes}, nil
}

type searcher struct {
	board    domain.Board
	mover    domain.Mark
	opponent domain.Mark
	nodes    int
}

// minimax returns the best move for onMove. Decided positions score without
// an index (-1).
func (s *searcher) minimax(onMove domain.Mark) Move {
	s.nodes++

	if domain.Wins(s.board, s.opponent) {
		return Move{Index: -1, Score: LossScore}
	}
	if domain.Wins(s.board, s.mover) {
		return Move{Index: -1, Score: WinScore}
	}
	if s.board.Full() {
		return Move{Index: -1, Score: DrawScore}
	}

	maximize := onMove == s.mover
	best := Move{Index: -1, Score: math.MaxInt}
	if maximize {
		best.Score = math.MinInt
	}

	for i := range s.board.EmptyCells() {
		s.board[i] = onMove
		child := s.minimax(onMove.Opponent())
		s.board[i] = domain.Empty

		if (maximize && child.Score > best.Score) || (!maximize && child.Score < best.Score) {
			best = Move{Index: i, Score: child.Score}
		}
	}
	return best
}
