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

func newTree(roundID, userID string, date time.Time, status model.RoundStatus) model.RoundTree {
	return model.RoundTree{
		Round: model.Round{
			ID:            roundID,
			UserID:        userID,
			Date:          date,
			Distance:      70,
			DistanceLabel: "70m",
			ArrowsPerEnd:  3,
			TotalEnds:     2,
			TotalArrows:   6,
			Type:          model.RoundPersonal,
			Status:        status,
			CreatedAt:     date,
		},
		Ends: []model.End{
			{ID: roundID + "-e1", RoundID: roundID, Index: 1},
			{ID: roundID + "-e2", RoundID: roundID, Index: 2},
		},
	}
}

func TestMemStoreUsers(t *testing.T) {
	Convey("Given an empty in-memory store", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()

		Convey("When fetching an unknown user", func() {
			_, err := store.User(ctx, "ghost")
			So(err, ShouldEqual, repository.ErrUserNotFound)
		})

		Convey("When storing and reading back a user", func() {
			u := model.User{ID: "u1", Name: "Kim", Gender: "female",
				PersonalBests: map[string]int{"70m": 640}}
			So(store.PutUser(ctx, u), ShouldBeNil)

			got, err := store.User(ctx, "u1")
			So(err, ShouldBeNil)
			So(got.Name, ShouldEqual, "Kim")
			So(got.PersonalBest("70m"), ShouldEqual, 640)

			Convey("Then mutating the returned copy does not leak into the store", func() {
				got.PersonalBests["70m"] = 1
				again, err := store.User(ctx, "u1")
				So(err, ShouldBeNil)
				So(again.PersonalBest("70m"), ShouldEqual, 640)
			})
		})

		Convey("When listing users", func() {
			So(store.PutUser(ctx, model.User{ID: "b"}), ShouldBeNil)
			So(store.PutUser(ctx, model.User{ID: "a"}), ShouldBeNil)

			users, err := store.Users(ctx)
			So(err, ShouldBeNil)
			So(users, ShouldHaveLength, 2)
			So(users[0].ID, ShouldEqual, "a")
			So(store.CountUsers(ctx), ShouldEqual, 2)
		})
	})
}

func TestMemStoreRounds(t *testing.T) {
	Convey("Given an in-memory store with one round", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		date := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
		tree := newTree("r1", "u1", date, model.StatusInProgress)
		So(store.CreateRound(ctx, tree), ShouldBeNil)

		Convey("Then creating the same id again fails", func() {
			So(store.CreateRound(ctx, tree), ShouldEqual, repository.ErrDuplicateID)
		})

		Convey("Then the round and its ends read back", func() {
			r, err := store.Round(ctx, "r1")
			So(err, ShouldBeNil)
			So(r.DistanceLabel, ShouldEqual, "70m")
			So(r.Seq, ShouldEqual, 1)

			ends, err := store.EndsForRound(ctx, "r1")
			So(err, ShouldBeNil)
			So(ends, ShouldHaveLength, 2)
			So(ends[0].Index, ShouldEqual, 1)

			roundID, err := store.RoundIDForEnd(ctx, "r1-e2")
			So(err, ShouldBeNil)
			So(roundID, ShouldEqual, "r1")
		})

		Convey("When the tree is replaced with recorded shots", func() {
			updated, err := store.RoundTree(ctx, "r1")
			So(err, ShouldBeNil)
			updated.Shots = []model.Shot{
				{ID: "s1", EndID: "r1-e1", ArrowIndex: 1, Score: target.ScoreX, Timestamp: date},
				{ID: "s2", EndID: "r1-e1", ArrowIndex: 2, Score: target.Score9, Timestamp: date},
			}
			updated.Recompute()
			So(store.ReplaceRoundTree(ctx, updated), ShouldBeNil)

			Convey("Then shot lookups and totals are visible", func() {
				shots, err := store.ShotsForEnd(ctx, "r1-e1")
				So(err, ShouldBeNil)
				So(shots, ShouldHaveLength, 2)

				roundID, err := store.RoundIDForShot(ctx, "s2")
				So(err, ShouldBeNil)
				So(roundID, ShouldEqual, "r1")

				r, err := store.Round(ctx, "r1")
				So(err, ShouldBeNil)
				So(r.TotalScore, ShouldEqual, 19)
			})

			Convey("Then deletion cascades over children", func() {
				So(store.DeleteRound(ctx, "r1"), ShouldBeNil)

				_, err := store.Round(ctx, "r1")
				So(err, ShouldEqual, repository.ErrRoundNotFound)
				_, err = store.RoundIDForEnd(ctx, "r1-e1")
				So(err, ShouldEqual, repository.ErrEndNotFound)
				_, err = store.RoundIDForShot(ctx, "s1")
				So(err, ShouldEqual, repository.ErrShotNotFound)
				So(store.CountRounds(ctx), ShouldEqual, 0)
			})
		})

		Convey("When replacing an unknown round", func() {
			ghost := newTree("r9", "u1", date, model.StatusInProgress)
			So(store.ReplaceRoundTree(ctx, ghost), ShouldEqual, repository.ErrRoundNotFound)
		})

		Convey("When deleting an unknown round", func() {
			So(store.DeleteRound(ctx, "r9"), ShouldEqual, repository.ErrRoundNotFound)
		})
	})
}

func TestMemStoreQueries(t *testing.T) {
	Convey("Given rounds across two users", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

		older := newTree("r1", "u1", base, model.StatusCompleted)
		newer := newTree("r2", "u1", base.AddDate(0, 0, 3), model.StatusCompleted)
		open := newTree("r3", "u1", base.AddDate(0, 0, 4), model.StatusInProgress)
		other := newTree("r4", "u2", base.AddDate(0, 0, 1), model.StatusCompleted)
		sameDay := newTree("r5", "u1", base, model.StatusCompleted)

		for _, tr := range []model.RoundTree{older, newer, open, other, sameDay} {
			So(store.CreateRound(ctx, tr), ShouldBeNil)
		}

		Convey("Then RoundsForUser is newest first with seq tie-break", func() {
			rounds, err := store.RoundsForUser(ctx, "u1")
			So(err, ShouldBeNil)
			So(rounds, ShouldHaveLength, 4)
			So(rounds[0].ID, ShouldEqual, "r3")
			So(rounds[1].ID, ShouldEqual, "r2")
			// r5 was inserted after r1 on the same date, so it sorts first
			So(rounds[2].ID, ShouldEqual, "r5")
			So(rounds[3].ID, ShouldEqual, "r1")
		})

		Convey("Then CompletedRounds excludes in-progress rounds", func() {
			rounds, err := store.CompletedRounds(ctx)
			So(err, ShouldBeNil)
			So(rounds, ShouldHaveLength, 4)
			for _, r := range rounds {
				So(r.Status, ShouldEqual, model.StatusCompleted)
			}
		})

		Convey("Then AllRoundTrees exports in insertion order", func() {
			trees, err := store.AllRoundTrees(ctx)
			So(err, ShouldBeNil)
			So(trees, ShouldHaveLength, 5)
			So(trees[0].Round.ID, ShouldEqual, "r1")
			So(trees[4].Round.ID, ShouldEqual, "r5")
		})
	})
}
