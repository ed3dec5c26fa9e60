package ranking

import (
	"context"
	"sort"
	"time"

	"github.com/tenring/quiver/internal/domain/model"
	"github.com/tenring/quiver/pkg/metrics"
)

// DailyEntry is one round's row in the Daily ranking. An archer who
// shoots several rounds in a day appears once per round.
type DailyEntry struct {
	Rank          int
	UserID        string
	Name          string
	RoundID       string
	RoundType     model.RoundType
	DistanceLabel string
	Score         int
	TotalX        int
	Handicap      float64
	Adjusted      float64
}

// DailyResult is the Daily ranking page plus an optional viewer row.
type DailyResult struct {
	Entries []DailyEntry
	Viewer  *DailyEntry
}

// Daily ranks all rounds completed on the UTC calendar day containing
// day. A flat per-gender handicap is added to each round's score.
// Ordering is adjusted score descending, then X count descending, then
// entry sequence ascending. The viewer row is the viewer's best-ranked
// round of the day.
func (e *Engine) Daily(ctx context.Context, day time.Time, limit int, viewerID string) (DailyResult, error) {
	started := time.Now()
	metrics.RecordRankingQuery("daily")
	defer func() {
		metrics.RecordRankingLatency("daily", float64(time.Since(started).Milliseconds()))
	}()

	rounds, err := e.store.CompletedRounds(ctx)
	if err != nil {
		return DailyResult{}, err
	}
	users, err := e.loadUsers(ctx)
	if err != nil {
		return DailyResult{}, err
	}

	dayUTC := day.UTC()
	start := time.Date(dayUTC.Year(), dayUTC.Month(), dayUTC.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	type row struct {
		DailyEntry
		seq uint64
	}
	entries := make([]row, 0)
	for _, r := range rounds {
		if r.Date.Before(start) || !r.Date.Before(end) {
			continue
		}
		u := users[r.UserID]
		handicap := e.handicap(u.Gender)
		entries = append(entries, row{
			DailyEntry: DailyEntry{
				UserID:        r.UserID,
				Name:          u.Name,
				RoundID:       r.ID,
				RoundType:     r.Type,
				DistanceLabel: r.DistanceLabel,
				Score:         r.TotalScore,
				TotalX:        r.TotalX,
				Handicap:      handicap,
				Adjusted:      float64(r.TotalScore) + handicap,
			},
			seq: r.Seq,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Adjusted != entries[j].Adjusted {
			return entries[i].Adjusted > entries[j].Adjusted
		}
		if entries[i].TotalX != entries[j].TotalX {
			return entries[i].TotalX > entries[j].TotalX
		}
		return entries[i].seq < entries[j].seq
	})

	ranked := make([]DailyEntry, len(entries))
	for i, en := range entries {
		en.DailyEntry.Rank = i + 1
		ranked[i] = en.DailyEntry
	}

	result := DailyResult{Entries: topN(ranked, e.clampLimit(limit))}
	result.Viewer = viewerEntry(ranked, viewerID, func(en DailyEntry) string { return en.UserID })
	return result, nil
}
