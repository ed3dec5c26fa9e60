package target

import "math"

// Hit coordinates are normalized to a 0-100 square with the face center
// at (50, 50). The zone mapper is a pure function over that space.
const (
	faceCenterX = 50.0
	faceCenterY = 50.0
)

// HitPosition is a normalized 2-D hit location on the target face.
type HitPosition struct {
	X float64
	Y float64
}

// DistanceFromCenter returns the Euclidean distance from the face center.
func (p HitPosition) DistanceFromCenter() float64 {
	dx := p.X - faceCenterX
	dy := p.Y - faceCenterY
	return math.Sqrt(dx*dx + dy*dy)
}

// ring pairs an outer radius with the score awarded inside it.
type ring struct {
	maxRadius float64
	score     Score
}

// Ten 5-unit rings on a 100-unit face; the X ring is the inner half of
// the ten ring. Fixed configuration, not runtime-tunable.
var rings = []ring{
	{maxRadius: 2.5, score: ScoreX},
	{maxRadius: 5, score: Score10},
	{maxRadius: 10, score: Score9},
	{maxRadius: 15, score: Score8},
	{maxRadius: 20, score: Score7},
	{maxRadius: 25, score: Score6},
	{maxRadius: 30, score: Score5},
	{maxRadius: 35, score: Score4},
	{maxRadius: 40, score: Score3},
	{maxRadius: 45, score: Score2},
	{maxRadius: 50, score: Score1},
}

// ScoreAt maps a hit position to its score label. Rings are tested from
// the smallest outward; a hit beyond the outermost ring is a miss. Total
// over all real-valued inputs, no side effects.
func ScoreAt(pos HitPosition) Score {
	distance := pos.DistanceFromCenter()
	for _, r := range rings {
		if distance <= r.maxRadius {
			return r.score
		}
	}
	return ScoreMiss
}
