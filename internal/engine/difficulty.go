package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Difficulty selects how the automated player picks its moves.
type Difficulty uint8

const (
	Easy Difficulty = iota
	Medium
	Hard
)

var ErrUnknownDifficulty = errors.New("unknown difficulty")

func (d Difficulty) String() string {
	switch d {
	case Easy:
		return "easy"
	case Medium:
		return "medium"
	case Hard:
		return "hard"
	default:
		return fmt.Sprintf("difficulty(%d)", uint8(d))
	}
}

// ParseDifficulty accepts "easy", "medium" or "hard", case-insensitively.
func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return Easy, nil
	case "medium":
		return Medium, nil
	case "hard":
		return Hard, nil
	}
	return 0, fmt.Errorf("%q: %w", s, ErrUnknownDifficulty)
}

func (d Difficulty) MarshalText() ([]byte, error) {
	if d > Hard {
		return nil, fmt.Errorf("%d: %w", uint8(d), ErrUnknownDifficulty)
	}
	return []byte(d.String()), nil
}

func (d *Difficulty) UnmarshalText(b []byte) error {
	v, err := ParseDifficulty(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
