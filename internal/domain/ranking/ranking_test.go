package ranking

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/tenring/quiver/internal/domain/model"
)

type fakeReader struct {
	rounds []model.Round
	users  []model.User
	err    error
}

func (f *fakeReader) CompletedRounds(ctx context.Context) ([]model.Round, error) {
	return f.rounds, f.err
}

func (f *fakeReader) Users(ctx context.Context) ([]model.User, error) {
	return f.users, f.err
}

// completedRound builds a completed 30-arrow round (max score 300).
func completedRound(id, userID string, t model.RoundType, date time.Time, score, totalX int, seq uint64) model.Round {
	return model.Round{
		ID:            id,
		UserID:        userID,
		Date:          date,
		Distance:      70,
		DistanceLabel: "70m",
		ArrowsPerEnd:  6,
		TotalEnds:     5,
		TotalArrows:   30,
		Type:          t,
		Status:        model.StatusCompleted,
		TotalScore:    score,
		TotalX:        totalX,
		TotalShots:    30,
		Seq:           seq,
	}
}

func TestTierFor(t *testing.T) {
	Convey("Given the Masters tier ladder", t, func() {
		Convey("Totals map to the expected tiers", func() {
			So(TierFor(0), ShouldEqual, "9th Geup")
			So(TierFor(699), ShouldEqual, "9th Geup")
			So(TierFor(700), ShouldEqual, "8th Geup")
			So(TierFor(5000), ShouldEqual, "1st Geup")
			So(TierFor(5999), ShouldEqual, "1st Geup")
			So(TierFor(6000), ShouldEqual, "1st Dan")
			So(TierFor(24000), ShouldEqual, "9th Dan")
			So(TierFor(1e9), ShouldEqual, "9th Dan")
		})

		Convey("Band minimums are strictly descending", func() {
			for i := 1; i < len(mastersTiers); i++ {
				So(mastersTiers[i].min, ShouldBeLessThan, mastersTiers[i-1].min)
			}
			So(len(mastersTiers), ShouldEqual, 18)
			So(mastersTiers[len(mastersTiers)-1].min, ShouldEqual, 0)
		})
	})
}

func TestMasters(t *testing.T) {
	now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	Convey("Given archers with rounds inside and outside the window", t, func() {
		store := &fakeReader{
			users: []model.User{
				{ID: "u1", Name: "Ana", Gender: "female"},
				{ID: "u2", Name: "Ben", Gender: "male"},
				{ID: "u3", Name: "Cho"},
			},
			rounds: []model.Round{
				// 270/300 -> 900 points, personal x1.0.
				completedRound("r1", "u1", model.RoundPersonal, now.AddDate(0, 0, -10), 270, 5, 1),
				// 270/300 -> 900 points, competition x1.5 -> 1350.
				completedRound("r2", "u1", model.RoundCompetition, now.AddDate(0, 0, -20), 270, 5, 2),
				// 89 days old, still inside the window.
				completedRound("r3", "u2", model.RoundPersonal, now.AddDate(0, 0, -89), 300, 10, 3),
				// 91 days old, outside the window.
				completedRound("r4", "u3", model.RoundPersonal, now.AddDate(0, 0, -91), 300, 10, 4),
			},
		}
		engine := New(store, WithGenderHandicaps(map[string]float64{"female": 40}))

		Convey("When the Masters ranking is computed", func() {
			result, err := engine.Masters(ctx, now, 10, "")

			Convey("Then points, handicaps and window are applied", func() {
				So(err, ShouldBeNil)
				So(result.Entries, ShouldHaveLength, 2)

				So(result.Entries[0].UserID, ShouldEqual, "u1")
				So(result.Entries[0].Rank, ShouldEqual, 1)
				So(result.Entries[0].Rounds, ShouldEqual, 2)
				So(result.Entries[0].RawPoints, ShouldEqual, 2250)
				// Handicap applies once per contributing round.
				So(result.Entries[0].Handicap, ShouldEqual, 80)
				So(result.Entries[0].Points, ShouldEqual, 2330)

				So(result.Entries[1].UserID, ShouldEqual, "u2")
				So(result.Entries[1].RawPoints, ShouldEqual, 1000)
				So(result.Entries[1].Handicap, ShouldEqual, 0)
			})

			Convey("Then the archer with only stale rounds is absent", func() {
				for _, en := range result.Entries {
					So(en.UserID, ShouldNotEqual, "u3")
				}
			})

			Convey("Then tiers come from raw points", func() {
				So(result.Entries[0].Tier, ShouldEqual, "5th Geup")
				So(result.Entries[1].Tier, ShouldEqual, "8th Geup")
			})
		})

		Convey("When the viewer is outside the returned page", func() {
			result, err := engine.Masters(ctx, now, 1, "u2")

			Convey("Then the viewer row carries the full-ranking rank", func() {
				So(err, ShouldBeNil)
				So(result.Entries, ShouldHaveLength, 1)
				So(result.Viewer, ShouldNotBeNil)
				So(result.Viewer.UserID, ShouldEqual, "u2")
				So(result.Viewer.Rank, ShouldEqual, 2)
			})
		})

		Convey("When the viewer has no rounds in the window", func() {
			result, err := engine.Masters(ctx, now, 10, "u3")

			Convey("Then no viewer row is fabricated", func() {
				So(err, ShouldBeNil)
				So(result.Viewer, ShouldBeNil)
			})
		})
	})

	Convey("Given two archers tied on adjusted points", t, func() {
		store := &fakeReader{
			users: []model.User{{ID: "b", Name: "B"}, {ID: "a", Name: "A"}},
			rounds: []model.Round{
				completedRound("r1", "b", model.RoundPersonal, now.AddDate(0, 0, -1), 270, 0, 1),
				completedRound("r2", "a", model.RoundPersonal, now.AddDate(0, 0, -2), 270, 0, 2),
			},
		}
		engine := New(store)

		Convey("Then the lower user id ranks first", func() {
			result, err := engine.Masters(ctx, now, 10, "")
			So(err, ShouldBeNil)
			So(result.Entries[0].UserID, ShouldEqual, "a")
			So(result.Entries[1].UserID, ShouldEqual, "b")
		})
	})

	Convey("Given a failing store", t, func() {
		boom := errors.New("boom")
		engine := New(&fakeReader{err: boom})

		Convey("Then the error is propagated", func() {
			_, err := engine.Masters(ctx, now, 10, "")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestDaily(t *testing.T) {
	day := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	Convey("Given rounds around the day boundary", t, func() {
		store := &fakeReader{
			users: []model.User{
				{ID: "u1", Name: "Ana", Gender: "female"},
				{ID: "u2", Name: "Ben"},
			},
			rounds: []model.Round{
				completedRound("late", "u1", model.RoundPersonal, day.Add(23*time.Hour+59*time.Minute+59*time.Second), 250, 3, 1),
				completedRound("next", "u2", model.RoundPersonal, day.Add(24*time.Hour), 300, 10, 2),
				completedRound("noon", "u2", model.RoundClub, day.Add(12*time.Hour), 260, 4, 3),
			},
		}
		engine := New(store, WithGenderHandicaps(map[string]float64{"female": 15}))

		Convey("When the Daily ranking is computed", func() {
			result, err := engine.Daily(ctx, day.Add(9*time.Hour), 10, "")

			Convey("Then 23:59:59 is included and next-day 00:00 is excluded", func() {
				So(err, ShouldBeNil)
				So(result.Entries, ShouldHaveLength, 2)
				for _, en := range result.Entries {
					So(en.RoundID, ShouldNotEqual, "next")
				}
			})

			Convey("Then the flat handicap decides the order", func() {
				// 250+15 beats 260+0.
				So(result.Entries[0].RoundID, ShouldEqual, "late")
				So(result.Entries[0].Adjusted, ShouldEqual, 265)
				So(result.Entries[1].RoundID, ShouldEqual, "noon")
				So(result.Entries[1].Adjusted, ShouldEqual, 260)
			})
		})
	})

	Convey("Given rounds tied on adjusted score", t, func() {
		store := &fakeReader{
			users: []model.User{{ID: "u1", Name: "Ana"}, {ID: "u2", Name: "Ben"}},
			rounds: []model.Round{
				completedRound("r5x", "u1", model.RoundPersonal, day.Add(10*time.Hour), 280, 5, 1),
				completedRound("r7x", "u2", model.RoundPersonal, day.Add(11*time.Hour), 280, 7, 2),
			},
		}
		engine := New(store)

		Convey("Then the higher X count ranks first", func() {
			result, err := engine.Daily(ctx, day, 10, "")
			So(err, ShouldBeNil)
			So(result.Entries[0].RoundID, ShouldEqual, "r7x")
			So(result.Entries[1].RoundID, ShouldEqual, "r5x")
		})
	})

	Convey("Given an archer with several rounds in the day", t, func() {
		store := &fakeReader{
			users: []model.User{{ID: "u1", Name: "Ana"}, {ID: "u2", Name: "Ben"}},
			rounds: []model.Round{
				completedRound("low", "u1", model.RoundPersonal, day.Add(8*time.Hour), 200, 0, 1),
				completedRound("top", "u2", model.RoundPersonal, day.Add(9*time.Hour), 290, 8, 2),
				completedRound("high", "u1", model.RoundPersonal, day.Add(10*time.Hour), 280, 5, 3),
			},
		}
		engine := New(store)

		Convey("Then every round gets its own entry", func() {
			result, err := engine.Daily(ctx, day, 10, "")
			So(err, ShouldBeNil)
			So(result.Entries, ShouldHaveLength, 3)
		})

		Convey("Then the viewer row is their best round", func() {
			result, err := engine.Daily(ctx, day, 1, "u1")
			So(err, ShouldBeNil)
			So(result.Entries, ShouldHaveLength, 1)
			So(result.Viewer, ShouldNotBeNil)
			So(result.Viewer.RoundID, ShouldEqual, "high")
			So(result.Viewer.Rank, ShouldEqual, 2)
		})
	})
}

func TestBestScore(t *testing.T) {
	now := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	Convey("Given a mixed round history", t, func() {
		store := &fakeReader{
			users: []model.User{
				{ID: "u1", Name: "Ana"},
				{ID: "u2", Name: "Ben"},
			},
			rounds: []model.Round{
				completedRound("p1", "u1", model.RoundPersonal, now.AddDate(0, 0, -5), 270, 6, 1),
				completedRound("c1", "u1", model.RoundCompetition, now.AddDate(0, 0, -4), 265, 3, 2),
				completedRound("k1", "u2", model.RoundClub, now.AddDate(0, 0, -3), 280, 7, 3),
				completedRound("c2", "u2", model.RoundCompetition, now.AddDate(0, 0, -2), 240, 1, 4),
			},
		}
		engine := New(store)

		Convey("When filtering for practice rounds", func() {
			result, err := engine.BestScore(ctx, FilterPractice, "", 10, "")

			Convey("Then only personal and club rounds qualify", func() {
				So(err, ShouldBeNil)
				So(result.Entries, ShouldHaveLength, 2)
				So(result.Entries[0].RoundID, ShouldEqual, "k1")
				So(result.Entries[1].RoundID, ShouldEqual, "p1")
			})
		})

		Convey("When filtering for competition rounds", func() {
			result, err := engine.BestScore(ctx, FilterCompetition, "", 10, "")

			Convey("Then each archer's best competition round ranks", func() {
				So(err, ShouldBeNil)
				So(result.Entries, ShouldHaveLength, 2)
				So(result.Entries[0].RoundID, ShouldEqual, "c1")
				So(result.Entries[1].RoundID, ShouldEqual, "c2")
			})
		})

		Convey("When filtering by distance label", func() {
			other := completedRound("d1", "u1", model.RoundPersonal, now.AddDate(0, 0, -1), 299, 20, 5)
			other.DistanceLabel = "50m"
			store.rounds = append(store.rounds, other)

			result, err := engine.BestScore(ctx, FilterAll, "70m", 10, "")

			Convey("Then rounds at other distances are ignored", func() {
				So(err, ShouldBeNil)
				for _, en := range result.Entries {
					So(en.DistanceLabel, ShouldEqual, "70m")
				}
			})
		})

		Convey("When the filter is unknown", func() {
			_, err := engine.BestScore(ctx, TypeFilter("weird"), "", 10, "")

			Convey("Then ErrInvalidFilter is returned", func() {
				So(errors.Is(err, ErrInvalidFilter), ShouldBeTrue)
			})
		})
	})

	Convey("Given archers tied on best score", t, func() {
		store := &fakeReader{
			users: []model.User{{ID: "u1", Name: "Ana"}, {ID: "u2", Name: "Ben"}},
			rounds: []model.Round{
				completedRound("a", "u1", model.RoundPersonal, now, 280, 5, 1),
				completedRound("b", "u2", model.RoundPersonal, now, 280, 7, 2),
			},
		}
		engine := New(store)

		Convey("Then the higher X count wins the tie", func() {
			result, err := engine.BestScore(ctx, FilterAll, "", 10, "")
			So(err, ShouldBeNil)
			So(result.Entries[0].UserID, ShouldEqual, "u2")
			So(result.Entries[1].UserID, ShouldEqual, "u1")
		})
	})
}

func TestVolume(t *testing.T) {
	// A Wednesday.
	now := time.Date(2025, time.June, 18, 12, 0, 0, 0, time.UTC)
	monday := time.Date(2025, time.June, 16, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	Convey("Given rounds inside and outside the week", t, func() {
		store := &fakeReader{
			users: []model.User{
				{ID: "u1", Name: "Ana"},
				{ID: "u2", Name: "Ben"},
			},
			rounds: []model.Round{
				completedRound("w1", "u1", model.RoundPersonal, monday.Add(time.Hour), 250, 0, 1),
				completedRound("w2", "u1", model.RoundClub, monday.AddDate(0, 0, 1), 260, 0, 2),
				// Sunday before the week started.
				completedRound("old", "u1", model.RoundPersonal, monday.Add(-time.Hour), 300, 0, 3),
				completedRound("w3", "u2", model.RoundPersonal, monday.AddDate(0, 0, 2), 200, 0, 4),
			},
		}
		engine := New(store)

		Convey("When the weekly Volume ranking is computed", func() {
			result, err := engine.Volume(ctx, PeriodWeek, now, 10, "")

			Convey("Then arrows and sessions count from Monday 00:00 UTC", func() {
				So(err, ShouldBeNil)
				So(result.Entries, ShouldHaveLength, 2)
				So(result.Entries[0].UserID, ShouldEqual, "u1")
				So(result.Entries[0].Arrows, ShouldEqual, 60)
				So(result.Entries[0].Sessions, ShouldEqual, 2)
				So(result.Entries[1].UserID, ShouldEqual, "u2")
				So(result.Entries[1].Arrows, ShouldEqual, 30)
			})
		})

		Convey("When the monthly Volume ranking is computed", func() {
			result, err := engine.Volume(ctx, PeriodMonth, now, 10, "")

			Convey("Then the pre-Monday round counts too", func() {
				So(err, ShouldBeNil)
				So(result.Entries[0].UserID, ShouldEqual, "u1")
				So(result.Entries[0].Arrows, ShouldEqual, 90)
				So(result.Entries[0].Sessions, ShouldEqual, 3)
			})
		})

		Convey("When the period is unknown", func() {
			_, err := engine.Volume(ctx, Period("quarter"), now, 10, "")

			Convey("Then ErrInvalidPeriod is returned", func() {
				So(errors.Is(err, ErrInvalidPeriod), ShouldBeTrue)
			})
		})
	})

	Convey("Given a Monday morning evaluation", t, func() {
		store := &fakeReader{
			users: []model.User{{ID: "u1", Name: "Ana"}},
			rounds: []model.Round{
				completedRound("r1", "u1", model.RoundPersonal, monday.Add(30*time.Minute), 250, 0, 1),
			},
		}
		engine := New(store)

		Convey("Then the week starts at the same Monday", func() {
			result, err := engine.Volume(ctx, PeriodWeek, monday.Add(time.Hour), 10, "")
			So(err, ShouldBeNil)
			So(result.Entries, ShouldHaveLength, 1)
		})
	})

	Convey("Given archers tied on arrows", t, func() {
		store := &fakeReader{
			users: []model.User{{ID: "u1", Name: "Ana"}, {ID: "u2", Name: "Ben"}},
			rounds: []model.Round{
				completedRound("a1", "u1", model.RoundPersonal, monday.Add(time.Hour), 250, 0, 1),
				completedRound("b1", "u2", model.RoundPersonal, monday.Add(time.Hour), 150, 0, 2),
				completedRound("b2", "u2", model.RoundPersonal, monday.Add(2*time.Hour), 140, 0, 3),
			},
		}
		// Give u2 two 15-shot rounds so arrows tie at 30 against u1's one round.
		store.rounds[1].TotalShots = 15
		store.rounds[2].TotalShots = 15
		store.rounds[0].TotalShots = 30
		engine := New(store)

		Convey("Then more sessions ranks first", func() {
			result, err := engine.Volume(ctx, PeriodWeek, now, 10, "")
			So(err, ShouldBeNil)
			So(result.Entries[0].UserID, ShouldEqual, "u2")
			So(result.Entries[0].Sessions, ShouldEqual, 2)
			So(result.Entries[1].UserID, ShouldEqual, "u1")
		})
	})
}
