package domain

// Lines are the 8 index triples that win when held by one mark.
var Lines = [8][3]int{
	// rows
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	// cols
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	// diags
	{0, 4, 8}, {2, 4, 6},
}

// Result is the coarse status of a board.
type Result uint8

const (
	InProgress Result = iota
	Win
	Draw
)

func (r Result) String() string {
	switch r {
	case Win:
		return "win"
	case Draw:
		return "draw"
	default:
		return "in progress"
	}
}

// Outcome is the terminal status of a board. Winner is set only for Win.
type Outcome struct {
	Result Result
	Winner Mark
}

// Terminal reports whether the game is over.
func (o Outcome) Terminal() bool { return o.Result != InProgress }

func (o Outcome) String() string {
	switch o.Result {
	case Win:
		return o.Winner.String() + " wins"
	case Draw:
		return "draw"
	default:
		return "in progress"
	}
}

// Wins reports whether m holds all three cells of at least one line.
func Wins(b Board, m Mark) bool {
	if !m.Valid() {
		return false
	}
	for _, ln := range Lines {
		if b[ln[0]] == m && b[ln[1]] == m && b[ln[2]] == m {
			return true
		}
	}
	return false
}

// Status evaluates the board. The first mover is checked first; both sides
// cannot hold a line at once in a legally played game.
func Status(b Board) Outcome {
	for _, m := range [2]Mark{First, First.Opponent()} {
		if Wins(b, m) {
			return Outcome{Result: Win, Winner: m}
		}
	}
	if b.Full() {
		return Outcome{Result: Draw}
	}
	return Outcome{Result: InProgress}
}
