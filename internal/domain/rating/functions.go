// Package rating converts raw round scores into normalized skill
// ratings and composes them into a single archer rating with a rank
// label.
package rating

// breakpoint maps a raw score threshold to a rating value.
type breakpoint struct {
	score  float64
	rating float64
}

// Fixed interpolation tables. The practice table deliberately tops out
// at 9.5: practice scores are rated more conservatively than
// competition scores.
var competitionTable = []breakpoint{
	{score: 300, rating: 0.5},
	{score: 400, rating: 2.0},
	{score: 500, rating: 3.5},
	{score: 600, rating: 5.0},
	{score: 685, rating: 9.99},
	{score: 720, rating: 10.0},
}

var practiceTable = []breakpoint{
	{score: 300, rating: 0.5},
	{score: 400, rating: 1.8},
	{score: 500, rating: 3.2},
	{score: 600, rating: 4.8},
	{score: 685, rating: 9.4},
	{score: 720, rating: 9.5},
}

// CompetitionRating maps a raw score to a rating in [0, 10].
func CompetitionRating(score float64) float64 {
	return interpolate(competitionTable, score)
}

// PracticeRating maps a raw score to a rating in [0, 9.5].
func PracticeRating(score float64) float64 {
	return interpolate(practiceTable, score)
}

// interpolate evaluates a monotone piecewise-linear table: a linear
// ramp from zero below the first breakpoint, linear interpolation
// between consecutive breakpoints, and a clamp at the table maximum.
// Total for all non-negative inputs.
func interpolate(table []breakpoint, score float64) float64 {
	if score <= 0 {
		return 0
	}

	first := table[0]
	if score < first.score {
		return score / first.score * first.rating
	}

	for i := 0; i < len(table)-1; i++ {
		lo, hi := table[i], table[i+1]
		if score <= hi.score {
			t := (score - lo.score) / (hi.score - lo.score)
			return lo.rating + t*(hi.rating-lo.rating)
		}
	}

	return table[len(table)-1].rating
}

// rankBand pairs a minimum composite rating with its rank label.
type rankBand struct {
	min   float64
	label string
}

// Descending thresholds; the first band the composite meets wins.
var rankBands = []rankBand{
	{min: 16, label: "SA"},
	{min: 13, label: "AA"},
	{min: 10, label: "A"},
	{min: 7, label: "BB"},
	{min: 5, label: "B"},
	{min: 0, label: "C"},
}

// RankLabel maps a composite rating to its rank label.
func RankLabel(composite float64) string {
	for _, band := range rankBands {
		if composite >= band.min {
			return band.label
		}
	}
	return rankBands[len(rankBands)-1].label
}
