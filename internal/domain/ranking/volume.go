package ranking

import (
	"context"
	"sort"
	"time"

	"github.com/tenring/quiver/pkg/metrics"
)

// Period selects the Volume ranking window.
type Period string

const (
	// PeriodWeek covers the current ISO week, Monday 00:00 UTC onward.
	PeriodWeek Period = "week"
	// PeriodMonth covers the current calendar month, the 1st 00:00 UTC onward.
	PeriodMonth Period = "month"
)

// Valid reports whether the period is a known value.
func (p Period) Valid() bool {
	return p == PeriodWeek || p == PeriodMonth
}

// VolumeEntry is one archer's shooting volume in the period.
type VolumeEntry struct {
	Rank     int
	UserID   string
	Name     string
	Arrows   int
	Sessions int
}

// VolumeResult is the Volume ranking page plus an optional viewer row.
type VolumeResult struct {
	Entries []VolumeEntry
	Viewer  *VolumeEntry
}

// Volume ranks archers by arrows shot in completed rounds since the
// start of the current week or month, evaluated at now. Ordering is
// arrows descending, then sessions descending, then user id ascending.
func (e *Engine) Volume(ctx context.Context, period Period, now time.Time, limit int, viewerID string) (VolumeResult, error) {
	started := time.Now()
	metrics.RecordRankingQuery("volume")
	defer func() {
		metrics.RecordRankingLatency("volume", float64(time.Since(started).Milliseconds()))
	}()

	if !period.Valid() {
		return VolumeResult{}, ErrInvalidPeriod
	}

	rounds, err := e.store.CompletedRounds(ctx)
	if err != nil {
		return VolumeResult{}, err
	}
	users, err := e.loadUsers(ctx)
	if err != nil {
		return VolumeResult{}, err
	}

	start := periodStart(period, now)

	type acc struct {
		arrows   int
		sessions int
	}
	totals := make(map[string]*acc)
	for _, r := range rounds {
		if r.Date.Before(start) || r.Date.After(now) {
			continue
		}
		a := totals[r.UserID]
		if a == nil {
			a = &acc{}
			totals[r.UserID] = a
		}
		a.arrows += r.TotalShots
		a.sessions++
	}

	entries := make([]VolumeEntry, 0, len(totals))
	for userID, a := range totals {
		entries = append(entries, VolumeEntry{
			UserID:   userID,
			Name:     users[userID].Name,
			Arrows:   a.arrows,
			Sessions: a.sessions,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Arrows != entries[j].Arrows {
			return entries[i].Arrows > entries[j].Arrows
		}
		if entries[i].Sessions != entries[j].Sessions {
			return entries[i].Sessions > entries[j].Sessions
		}
		return entries[i].UserID < entries[j].UserID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	result := VolumeResult{Entries: topN(entries, e.clampLimit(limit))}
	result.Viewer = viewerEntry(entries, viewerID, func(en VolumeEntry) string { return en.UserID })
	return result, nil
}

// periodStart returns the UTC start of the week (Monday 00:00) or
// month (1st 00:00) containing now.
func periodStart(period Period, now time.Time) time.Time {
	nowUTC := now.UTC()
	if period == PeriodMonth {
		return time.Date(nowUTC.Year(), nowUTC.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	daysSinceMonday := (int(nowUTC.Weekday()) + 6) % 7
	monday := nowUTC.AddDate(0, 0, -daysSinceMonday)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
}
