// Package model contains domain entities passed between layers.
package model

import (
	"time"

	"github.com/tenring/quiver/internal/domain/target"
)

// RoundType classifies a scoring session.
type RoundType string

const (
	RoundPersonal    RoundType = "personal"
	RoundClub        RoundType = "club"
	RoundCompetition RoundType = "competition"
)

// Valid reports whether t is a known round type.
func (t RoundType) Valid() bool {
	switch t {
	case RoundPersonal, RoundClub, RoundCompetition:
		return true
	}
	return false
}

// IsPractice reports whether the type counts as practice for rating and
// ranking purposes (everything that is not a competition).
func (t RoundType) IsPractice() bool {
	return t == RoundPersonal || t == RoundClub
}

// RoundStatus is the round lifecycle state.
type RoundStatus string

const (
	StatusInProgress RoundStatus = "in_progress"
	StatusCompleted  RoundStatus = "completed"
	StatusCancelled  RoundStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s RoundStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CompetitionInfo is optional metadata attached to competition rounds.
type CompetitionInfo struct {
	Name      string
	Location  string
	Weather   string
	Condition string
}

// Round is the top-level aggregate. Derived totals (TotalScore, TotalX,
// Total10, TotalShots) are pure functions of the contained shots and are
// recomputed on every mutation, never set directly.
type Round struct {
	ID     string
	UserID string

	Date          time.Time
	Distance      int // meters
	DistanceLabel string

	ArrowsPerEnd int
	TotalEnds    int
	TotalArrows  int // usually ArrowsPerEnd*TotalEnds; overridable for short formats

	Type        RoundType
	Competition *CompetitionInfo
	Status      RoundStatus

	TotalScore int
	TotalX     int
	Total10    int
	TotalShots int

	CreatedAt time.Time
	Seq       uint64 // store-assigned insertion order, used as a deterministic tie-break
}

// MaxScore returns the highest raw score the round format allows.
func (r *Round) MaxScore() int {
	return r.TotalArrows * 10
}

// End is a fixed-size batch of consecutive arrows within a round.
// EndTotal is derived from the contained shots.
type End struct {
	ID       string
	RoundID  string
	Index    int // 1-based position within the round
	EndTotal int
}

// Shot is a single recorded arrow within an end.
type Shot struct {
	ID         string
	EndID      string
	ArrowIndex int // 1-based slot within the end
	Score      target.Score
	Position   *target.HitPosition
	Timestamp  time.Time
}

// Value returns the point value of the shot.
func (s *Shot) Value() int {
	return s.Score.Value()
}

// User carries the rating-relevant archer fields. Gender feeds the
// leaderboard handicaps only; personal bests are self-reported,
// keyed by distance label and carried through ranking output as-is.
type User struct {
	ID            string
	Name          string
	Gender        string
	PersonalBests map[string]int
}

// PersonalBest returns the self-reported best for a distance label,
// or 0 when none is recorded.
func (u *User) PersonalBest(distanceLabel string) int {
	if u.PersonalBests == nil {
		return 0
	}
	return u.PersonalBests[distanceLabel]
}
