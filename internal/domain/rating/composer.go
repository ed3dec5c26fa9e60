package rating

import (
	"context"
	"fmt"
	"sort"

	"github.com/tenring/quiver/internal/domain/model"
	"github.com/tenring/quiver/pkg/metrics"
)

// recentWindow is how many recent rounds per category feed the rating.
const recentWindow = 5

// Reader is the slice of the repository the composer needs.
type Reader interface {
	RoundsForUser(ctx context.Context, userID string) ([]model.Round, error)
}

// ArcherRating is the composed rating for one archer.
type ArcherRating struct {
	UserID string

	CompetitionCount   int
	CompetitionAverage float64
	CompetitionRating  float64

	PracticeCount   int
	PracticeAverage float64
	PracticeRating  float64

	Composite float64
	RankLabel string
}

// Composer derives archer ratings from recent completed rounds.
type Composer struct {
	store Reader
}

// Option applies a configuration option to the Composer.
type Option func(*Composer)

// NewComposer creates a Composer reading rounds from store.
func NewComposer(store Reader, opts ...Option) *Composer {
	c := &Composer{store: store}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ArcherRating computes the composite rating for one archer from the
// newest 5 completed competition rounds and the newest 5 completed
// practice rounds. An empty category contributes 0 with a count of 0;
// zero completed rounds overall yields ErrNoData.
func (c *Composer) ArcherRating(ctx context.Context, userID string) (ArcherRating, error) {
	metrics.RecordRatingQuery()

	rounds, err := c.store.RoundsForUser(ctx, userID)
	if err != nil {
		return ArcherRating{}, fmt.Errorf("load rounds: %w", err)
	}

	var competition, practice []model.Round
	for _, r := range rounds {
		if r.Status != model.StatusCompleted {
			continue
		}
		if r.Type == model.RoundCompetition {
			competition = append(competition, r)
		} else {
			practice = append(practice, r)
		}
	}

	if len(competition) == 0 && len(practice) == 0 {
		metrics.RecordRatingNoData()
		return ArcherRating{}, ErrNoData
	}

	out := ArcherRating{UserID: userID}

	out.CompetitionCount = len(competition)
	if len(competition) > 0 {
		out.CompetitionAverage = meanScore(newestN(competition, recentWindow))
		out.CompetitionRating = CompetitionRating(out.CompetitionAverage)
	}

	out.PracticeCount = len(practice)
	if len(practice) > 0 {
		out.PracticeAverage = meanScore(newestN(practice, recentWindow))
		out.PracticeRating = PracticeRating(out.PracticeAverage)
	}

	out.Composite = out.CompetitionRating + out.PracticeRating
	out.RankLabel = RankLabel(out.Composite)
	return out, nil
}

// newestN returns up to n rounds ordered by date descending with
// insertion sequence descending as the deterministic tie-break.
func newestN(rounds []model.Round, n int) []model.Round {
	sorted := make([]model.Round, len(rounds))
	copy(sorted, rounds)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.After(sorted[j].Date)
		}
		return sorted[i].Seq > sorted[j].Seq
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func meanScore(rounds []model.Round) float64 {
	if len(rounds) == 0 {
		return 0
	}
	sum := 0
	for _, r := range rounds {
		sum += r.TotalScore
	}
	return float64(sum) / float64(len(rounds))
}
