// Package target models the target face: score labels and the mapping of
// hit coordinates onto scoring rings.
package target

import (
	"fmt"
	"strings"
)

// Score is a single-arrow score label on a standard ten-ring face.
type Score string

// The fixed, ordered label set. X ranks above 10 even though both are
// worth ten points.
const (
	ScoreX    Score = "X"
	Score10   Score = "10"
	Score9    Score = "9"
	Score8    Score = "8"
	Score7    Score = "7"
	Score6    Score = "6"
	Score5    Score = "5"
	Score4    Score = "4"
	Score3    Score = "3"
	Score2    Score = "2"
	Score1    Score = "1"
	ScoreMiss Score = "M"
)

// descending order used for sorting and tie-breaks.
var scoreOrder = []Score{
	ScoreX, Score10, Score9, Score8, Score7, Score6,
	Score5, Score4, Score3, Score2, Score1, ScoreMiss,
}

// point values per label.
var scoreValues = map[Score]int{
	ScoreX: 10, Score10: 10, Score9: 9, Score8: 8, Score7: 7, Score6: 6,
	Score5: 5, Score4: 4, Score3: 3, Score2: 2, Score1: 1, ScoreMiss: 0,
}

// Value returns the point value of the score. Unknown labels are worth 0.
func (s Score) Value() int {
	return scoreValues[s]
}

// Valid reports whether s is one of the fixed labels.
func (s Score) Valid() bool {
	_, ok := scoreValues[s]
	return ok
}

// Ordinal returns the position of s in the descending label order
// (X = 0, M = 11). Unknown labels sort after M.
func (s Score) Ordinal() int {
	for i, label := range scoreOrder {
		if s == label {
			return i
		}
	}
	return len(scoreOrder)
}

// Outranks reports whether s sorts strictly before other in the
// descending label order (X outranks 10, 10 outranks 9, ...).
func (s Score) Outranks(other Score) bool {
	return s.Ordinal() < other.Ordinal()
}

// IsX reports whether the arrow hit the inner ten ring.
func (s Score) IsX() bool { return s == ScoreX }

// IsTen reports whether the arrow is worth ten points (X or 10).
func (s Score) IsTen() bool { return s == ScoreX || s == Score10 }

// ParseScore converts a textual label ("X", "10", ..., "M") to a Score.
// Matching is case-insensitive and tolerates surrounding whitespace.
func ParseScore(raw string) (Score, error) {
	s := Score(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown score label: %q", raw)
	}
	return s, nil
}

// Labels returns the full label set in descending order.
func Labels() []Score {
	out := make([]Score, len(scoreOrder))
	copy(out, scoreOrder)
	return out
}
