package ranking

import (
	"context"
	"sort"
	"time"

	"github.com/tenring/quiver/internal/domain/model"
	"github.com/tenring/quiver/pkg/metrics"
)

// TypeFilter selects which round types a BestScore query considers.
type TypeFilter string

const (
	// FilterAll considers every round type.
	FilterAll TypeFilter = "all"
	// FilterPractice considers personal and club rounds.
	FilterPractice TypeFilter = "practice"
	// FilterCompetition considers competition rounds only.
	FilterCompetition TypeFilter = "competition"
)

// Valid reports whether the filter is a known value.
func (f TypeFilter) Valid() bool {
	switch f {
	case FilterAll, FilterPractice, FilterCompetition:
		return true
	default:
		return false
	}
}

// matches reports whether a round type passes the filter.
func (f TypeFilter) matches(t model.RoundType) bool {
	switch f {
	case FilterPractice:
		return t.IsPractice()
	case FilterCompetition:
		return t == model.RoundCompetition
	default:
		return true
	}
}

// BestScoreEntry is one archer's best qualifying round.
type BestScoreEntry struct {
	Rank          int
	UserID        string
	Name          string
	RoundID       string
	RoundType     model.RoundType
	DistanceLabel string
	Date          time.Time
	Score         int
	TotalX        int
	Total10       int
}

// BestScoreResult is the BestScore ranking page plus an optional
// viewer row.
type BestScoreResult struct {
	Entries []BestScoreEntry
	Viewer  *BestScoreEntry
}

// BestScore ranks archers by their single best completed round under
// the given type filter and optional distance label ("" means any
// distance). Per archer the best round is the highest score, breaking
// ties by X count and then recency. Archers rank by score descending,
// then X count descending, then user id ascending.
func (e *Engine) BestScore(ctx context.Context, filter TypeFilter, distanceLabel string, limit int, viewerID string) (BestScoreResult, error) {
	started := time.Now()
	metrics.RecordRankingQuery("best_score")
	defer func() {
		metrics.RecordRankingLatency("best_score", float64(time.Since(started).Milliseconds()))
	}()

	if !filter.Valid() {
		return BestScoreResult{}, ErrInvalidFilter
	}

	rounds, err := e.store.CompletedRounds(ctx)
	if err != nil {
		return BestScoreResult{}, err
	}
	users, err := e.loadUsers(ctx)
	if err != nil {
		return BestScoreResult{}, err
	}

	best := make(map[string]model.Round)
	for _, r := range rounds {
		if !filter.matches(r.Type) {
			continue
		}
		if distanceLabel != "" && r.DistanceLabel != distanceLabel {
			continue
		}
		cur, ok := best[r.UserID]
		if !ok || betterRound(r, cur) {
			best[r.UserID] = r
		}
	}

	entries := make([]BestScoreEntry, 0, len(best))
	for userID, r := range best {
		u := users[userID]
		entries = append(entries, BestScoreEntry{
			UserID:        userID,
			Name:          u.Name,
			RoundID:       r.ID,
			RoundType:     r.Type,
			DistanceLabel: r.DistanceLabel,
			Date:          r.Date,
			Score:         r.TotalScore,
			TotalX:        r.TotalX,
			Total10:       r.Total10,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if entries[i].TotalX != entries[j].TotalX {
			return entries[i].TotalX > entries[j].TotalX
		}
		return entries[i].UserID < entries[j].UserID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	result := BestScoreResult{Entries: topN(entries, e.clampLimit(limit))}
	result.Viewer = viewerEntry(entries, viewerID, func(en BestScoreEntry) string { return en.UserID })
	return result, nil
}

// betterRound reports whether a beats b as a personal best candidate.
func betterRound(a, b model.Round) bool {
	if a.TotalScore != b.TotalScore {
		return a.TotalScore > b.TotalScore
	}
	if a.TotalX != b.TotalX {
		return a.TotalX > b.TotalX
	}
	return a.Date.After(b.Date)
}
