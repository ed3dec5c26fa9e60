package repository_test

import (
	"context"
	"testing"
	"time"

	repository "github.com/tenring/quiver/internal/adapters/repository"
	"github.com/tenring/quiver/internal/domain/model"
	"github.com/tenring/quiver/internal/domain/target"
	. "github.com/smartystreets/goconvey/convey"
)

func openTestDB(t *testing.T) *repository.SQLiteStore {
	t.Helper()
	store, err := repository.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	Convey("Given an empty sqlite store", t, func() {
		ctx := context.Background()
		store := openTestDB(t)

		Convey("When storing a user with personal bests", func() {
			u := model.User{ID: "u1", Name: "Park", Gender: "male",
				PersonalBests: map[string]int{"70m": 620, "30m": 350}}
			So(store.PutUser(ctx, u), ShouldBeNil)

			got, err := store.User(ctx, "u1")
			So(err, ShouldBeNil)
			So(got.Name, ShouldEqual, "Park")
			So(got.PersonalBest("30m"), ShouldEqual, 350)

			Convey("And updates overwrite in place", func() {
				u.Name = "Park J."
				So(store.PutUser(ctx, u), ShouldBeNil)
				got, err := store.User(ctx, "u1")
				So(err, ShouldBeNil)
				So(got.Name, ShouldEqual, "Park J.")
				So(store.CountUsers(ctx), ShouldEqual, 1)
			})
		})

		Convey("When storing a full round aggregate", func() {
			date := time.Date(2026, 6, 7, 23, 59, 59, 0, time.UTC)
			pos := target.HitPosition{X: 48.5, Y: 51.25}
			tree := newTree("r1", "u1", date, model.StatusCompleted)
			tree.Round.Type = model.RoundCompetition
			tree.Round.Competition = &model.CompetitionInfo{
				Name: "City Open", Location: "Riverside field",
				Weather: "windy", Condition: "outdoor",
			}
			tree.Shots = []model.Shot{
				{ID: "s1", EndID: "r1-e1", ArrowIndex: 1, Score: target.ScoreX,
					Position: &pos, Timestamp: date},
				{ID: "s2", EndID: "r1-e2", ArrowIndex: 1, Score: target.ScoreMiss,
					Timestamp: date},
			}
			tree.Recompute()
			So(store.CreateRound(ctx, tree), ShouldBeNil)

			Convey("Then the aggregate reads back without loss", func() {
				got, err := store.RoundTree(ctx, "r1")
				So(err, ShouldBeNil)

				So(got.Round.Date.Equal(date), ShouldBeTrue)
				So(got.Round.Type, ShouldEqual, model.RoundCompetition)
				So(got.Round.Competition, ShouldNotBeNil)
				So(got.Round.Competition.Weather, ShouldEqual, "windy")
				So(got.Round.TotalScore, ShouldEqual, 10)
				So(got.Round.TotalX, ShouldEqual, 1)
				So(got.Round.Seq, ShouldEqual, 1)

				So(got.Ends, ShouldHaveLength, 2)
				So(got.Shots, ShouldHaveLength, 2)
				So(got.Shot("s1").Position, ShouldNotBeNil)
				So(got.Shot("s1").Position.X, ShouldEqual, 48.5)
				So(got.Shot("s2").Position, ShouldBeNil)
				So(got.Shot("s2").Score, ShouldEqual, target.ScoreMiss)
			})

			Convey("Then reverse lookups resolve", func() {
				roundID, err := store.RoundIDForEnd(ctx, "r1-e2")
				So(err, ShouldBeNil)
				So(roundID, ShouldEqual, "r1")

				roundID, err = store.RoundIDForShot(ctx, "s2")
				So(err, ShouldBeNil)
				So(roundID, ShouldEqual, "r1")

				_, err = store.RoundIDForEnd(ctx, "ghost")
				So(err, ShouldEqual, repository.ErrEndNotFound)
				_, err = store.RoundIDForShot(ctx, "ghost")
				So(err, ShouldEqual, repository.ErrShotNotFound)
			})

			Convey("When the tree is replaced", func() {
				got, err := store.RoundTree(ctx, "r1")
				So(err, ShouldBeNil)
				got.Shots = got.Shots[:1]
				got.Recompute()
				So(store.ReplaceRoundTree(ctx, got), ShouldBeNil)

				again, err := store.RoundTree(ctx, "r1")
				So(err, ShouldBeNil)
				So(again.Shots, ShouldHaveLength, 1)
				So(again.Round.TotalShots, ShouldEqual, 1)
				So(again.Round.Seq, ShouldEqual, 1)
			})

			Convey("When the round is deleted", func() {
				So(store.DeleteRound(ctx, "r1"), ShouldBeNil)

				_, err := store.Round(ctx, "r1")
				So(err, ShouldEqual, repository.ErrRoundNotFound)
				ends, err := store.EndsForRound(ctx, "r1")
				So(err, ShouldBeNil)
				So(ends, ShouldBeEmpty)
				shots, err := store.ShotsForEnd(ctx, "r1-e1")
				So(err, ShouldBeNil)
				So(shots, ShouldBeEmpty)
				So(store.CountRounds(ctx), ShouldEqual, 0)
			})
		})

		Convey("When touching unknown rounds", func() {
			_, err := store.Round(ctx, "ghost")
			So(err, ShouldEqual, repository.ErrRoundNotFound)
			So(store.DeleteRound(ctx, "ghost"), ShouldEqual, repository.ErrRoundNotFound)
			ghost := newTree("ghost", "u1", time.Now().UTC(), model.StatusInProgress)
			So(store.ReplaceRoundTree(ctx, ghost), ShouldEqual, repository.ErrRoundNotFound)
		})
	})
}

func TestSQLiteStoreQueries(t *testing.T) {
	Convey("Given several persisted rounds", t, func() {
		ctx := context.Background()
		store := openTestDB(t)
		base := time.Date(2026, 4, 6, 10, 0, 0, 0, time.UTC)

		trees := []model.RoundTree{
			newTree("r1", "u1", base, model.StatusCompleted),
			newTree("r2", "u1", base.AddDate(0, 0, 2), model.StatusCompleted),
			newTree("r3", "u2", base.AddDate(0, 0, 1), model.StatusCompleted),
			newTree("r4", "u1", base.AddDate(0, 0, 3), model.StatusInProgress),
		}
		for _, tr := range trees {
			So(store.CreateRound(ctx, tr), ShouldBeNil)
		}

		Convey("Then RoundsForUser is newest first", func() {
			rounds, err := store.RoundsForUser(ctx, "u1")
			So(err, ShouldBeNil)
			So(rounds, ShouldHaveLength, 3)
			So(rounds[0].ID, ShouldEqual, "r4")
			So(rounds[1].ID, ShouldEqual, "r2")
			So(rounds[2].ID, ShouldEqual, "r1")
		})

		Convey("Then CompletedRounds filters by status", func() {
			rounds, err := store.CompletedRounds(ctx)
			So(err, ShouldBeNil)
			So(rounds, ShouldHaveLength, 3)
			So(rounds[0].ID, ShouldEqual, "r2")
		})

		Convey("Then AllRoundTrees exports in insertion order", func() {
			all, err := store.AllRoundTrees(ctx)
			So(err, ShouldBeNil)
			So(all, ShouldHaveLength, 4)
			So(all[0].Round.ID, ShouldEqual, "r1")
			So(all[0].Round.Seq, ShouldEqual, 1)
			So(all[3].Round.ID, ShouldEqual, "r4")
			So(all[3].Round.Seq, ShouldEqual, 4)
		})
	})
}
