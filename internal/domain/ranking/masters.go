package ranking

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/tenring/quiver/pkg/metrics"
)

// MastersEntry is one archer's row in the Masters ranking.
type MastersEntry struct {
	Rank      int
	UserID    string
	Name      string
	Gender    string
	Rounds    int
	RawPoints float64
	Handicap  float64
	Points    float64
	Tier      string
}

// MastersResult is the Masters ranking page plus an optional viewer row.
type MastersResult struct {
	Entries []MastersEntry
	Viewer  *MastersEntry
}

// Masters computes the handicapped points ranking over the trailing
// window ending at now. Each completed round contributes
// round(score/maxScore * scale) * typeMultiplier; a per-gender handicap
// is added once per contributing round. Tiers are assigned from the
// raw (pre-handicap) total, ordering uses the adjusted total. Archers
// with no rounds in the window do not appear at all.
func (e *Engine) Masters(ctx context.Context, now time.Time, limit int, viewerID string) (MastersResult, error) {
	started := time.Now()
	metrics.RecordRankingQuery("masters")
	defer func() {
		metrics.RecordRankingLatency("masters", float64(time.Since(started).Milliseconds()))
	}()

	rounds, err := e.store.CompletedRounds(ctx)
	if err != nil {
		return MastersResult{}, err
	}
	users, err := e.loadUsers(ctx)
	if err != nil {
		return MastersResult{}, err
	}

	cutoff := now.Add(-e.mastersWindow)

	type acc struct {
		points float64
		rounds int
	}
	totals := make(map[string]*acc)
	for _, r := range rounds {
		if !r.Date.After(cutoff) || r.Date.After(now) {
			continue
		}
		maxScore := r.MaxScore()
		if maxScore <= 0 {
			continue
		}
		normalized := math.Round(float64(r.TotalScore) / float64(maxScore) * e.pointsScale)
		points := normalized * e.multiplier(r.Type)

		a := totals[r.UserID]
		if a == nil {
			a = &acc{}
			totals[r.UserID] = a
		}
		a.points += points
		a.rounds++
	}

	entries := make([]MastersEntry, 0, len(totals))
	for userID, a := range totals {
		u := users[userID]
		handicap := e.handicap(u.Gender) * float64(a.rounds)
		entries = append(entries, MastersEntry{
			UserID:    userID,
			Name:      u.Name,
			Gender:    u.Gender,
			Rounds:    a.rounds,
			RawPoints: a.points,
			Handicap:  handicap,
			Points:    a.points + handicap,
			Tier:      TierFor(a.points),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].UserID < entries[j].UserID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	result := MastersResult{Entries: topN(entries, e.clampLimit(limit))}
	result.Viewer = viewerEntry(entries, viewerID, func(en MastersEntry) string { return en.UserID })
	return result, nil
}

// topN returns at most n leading entries, sharing the backing array.
func topN[T any](entries []T, n int) []T {
	if len(entries) > n {
		return entries[:n]
	}
	return entries
}

// viewerEntry finds the viewer's ranked row, or nil when the viewer
// has no entry. The returned pointer is a copy.
func viewerEntry[T any](entries []T, viewerID string, userID func(T) string) *T {
	if viewerID == "" {
		return nil
	}
	for _, en := range entries {
		if userID(en) == viewerID {
			v := en
			return &v
		}
	}
	return nil
}
