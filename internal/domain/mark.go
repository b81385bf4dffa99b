package domain

// Mark is the occupant of a board cell.
type Mark uint8

const (
	Empty Mark = iota
	X
	O
)

// First is the mark that moves on even plies.
const First = X

func (m Mark) String() string {
	switch m {
	case X:
		return "X"
	case O:
		return "O"
	default:
		return ""
	}
}

// Opponent returns the other side. Empty has no opponent.
func (m Mark) Opponent() Mark {
	switch m {
	case X:
		return O
	case O:
		return X
	default:
		return Empty
	}
}

// Valid reports whether m is a player mark.
func (m Mark) Valid() bool { return m == X || m == O }

// TurnAt returns the mark on move after ply moves have been played.
func TurnAt(ply int) Mark {
	if ply%2 == 0 {
		return First
	}
	return First.Opponent()
}
