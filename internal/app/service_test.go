package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/tenring/quiver/internal/adapters/repository"
	service "github.com/tenring/quiver/internal/app"
	"github.com/tenring/quiver/internal/domain/model"
	"github.com/tenring/quiver/internal/domain/ranking"
	"github.com/tenring/quiver/internal/domain/rating"
	"github.com/tenring/quiver/internal/domain/scorekeeper"
	"github.com/tenring/quiver/pkg/logger"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func startedService(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()
	ctx := context.Background()

	durable, err := repository.OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open durable store: %v", err)
	}

	opts = append([]service.Option{service.WithDurableStore(durable)}, opts...)
	svc := service.New(opts...)
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithFlushWorkerCount(2),
			service.WithFlushQueueSize(500),
			service.WithMaxRankingLimit(25),
			service.WithMastersWindowDays(30),
		)

		Convey("Then it should be created successfully", func() {
			So(svc, ShouldNotBeNil)
		})
	})
}

func TestService_ScoringFlow(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service", t, func() {
		svc := startedService(t)

		So(svc.PutUser(ctx, model.User{ID: "archer-1", Name: "Ana"}), ShouldBeNil)

		Convey("When a round is scored end to end", func() {
			round, err := svc.StartRound(ctx, scorekeeper.StartRoundParams{
				UserID:        "archer-1",
				Distance:      70,
				DistanceLabel: "70m",
				ArrowsPerEnd:  3,
				TotalEnds:     2,
				Type:          model.RoundPersonal,
			})
			So(err, ShouldBeNil)

			for end := 1; end <= 2; end++ {
				for arrow := 1; arrow <= 3; arrow++ {
					_, err := svc.RecordShot(ctx, round.ID, scorekeeper.ShotEntry{
						EndIndex:   end,
						ArrowIndex: arrow,
						Score:      "9",
					})
					So(err, ShouldBeNil)
				}
			}

			completed, err := svc.CompleteRound(ctx, round.ID)
			So(err, ShouldBeNil)

			Convey("Then the live round carries recomputed totals", func() {
				So(completed.Status, ShouldEqual, model.StatusCompleted)

				tree, err := svc.RoundTree(ctx, round.ID)
				So(err, ShouldBeNil)
				So(tree.Round.TotalScore, ShouldEqual, 54)
				So(tree.Round.TotalShots, ShouldEqual, 6)
			})

			Convey("Then the round reaches the durable store", func() {
				stats := svc.GetStats(ctx)
				So(stats.Rounds, ShouldEqual, 1)
				So(stats.Users, ShouldEqual, 1)

				waitFor(t, 2*time.Second, func() bool {
					return svc.GetStats(ctx).PendingFlushes == 0
				})
			})

			Convey("Then the archer gets a rating", func() {
				got, err := svc.ArcherRating(ctx, "archer-1")
				So(err, ShouldBeNil)
				So(got.PracticeCount, ShouldEqual, 1)
				So(got.Composite, ShouldBeGreaterThan, 0)
			})

			Convey("Then the round shows up in the rankings", func() {
				now := time.Now()

				masters, err := svc.Masters(ctx, now, 10, "archer-1")
				So(err, ShouldBeNil)
				So(masters.Entries, ShouldHaveLength, 1)
				So(masters.Viewer, ShouldNotBeNil)

				daily, err := svc.Daily(ctx, round.Date, 10, "")
				So(err, ShouldBeNil)
				So(daily.Entries, ShouldHaveLength, 1)

				best, err := svc.BestScore(ctx, ranking.FilterAll, "", 10, "")
				So(err, ShouldBeNil)
				So(best.Entries[0].Score, ShouldEqual, 54)

				volume, err := svc.Volume(ctx, ranking.PeriodWeek, now, 10, "")
				So(err, ShouldBeNil)
				So(volume.Entries[0].Arrows, ShouldEqual, 6)
			})
		})

		Convey("When an unknown archer's rating is requested", func() {
			_, err := svc.ArcherRating(ctx, "ghost")

			Convey("Then ErrNoData is returned", func() {
				So(errors.Is(err, rating.ErrNoData), ShouldBeTrue)
			})
		})
	})
}

func TestService_DurablePersistence(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service writing to a database file", t, func() {
		path := filepath.Join(t.TempDir(), "quiver.db")

		svc := service.New(service.WithStorePath(path))
		So(svc.Start(ctx), ShouldBeNil)

		So(svc.PutUser(ctx, model.User{ID: "archer-1", Name: "Ana"}), ShouldBeNil)
		round, err := svc.StartRound(ctx, scorekeeper.StartRoundParams{
			UserID:       "archer-1",
			Distance:     18,
			ArrowsPerEnd: 3,
			TotalEnds:    1,
			Type:         model.RoundClub,
		})
		So(err, ShouldBeNil)
		_, err = svc.RecordShot(ctx, round.ID, scorekeeper.ShotEntry{EndIndex: 1, ArrowIndex: 1, Score: "X"})
		So(err, ShouldBeNil)
		_, err = svc.CompleteRound(ctx, round.ID)
		So(err, ShouldBeNil)

		svc.Stop()

		Convey("When a new service hydrates from the same file", func() {
			revived := service.New(service.WithStorePath(path))
			So(revived.Start(ctx), ShouldBeNil)
			defer revived.Stop()

			Convey("Then the round and user survive the restart", func() {
				tree, err := revived.RoundTree(ctx, round.ID)
				So(err, ShouldBeNil)
				So(tree.Round.Status, ShouldEqual, model.StatusCompleted)
				So(tree.Round.TotalX, ShouldEqual, 1)

				u, err := revived.User(ctx, "archer-1")
				So(err, ShouldBeNil)
				So(u.Name, ShouldEqual, "Ana")
			})
		})
	})
}

func TestService_DeleteFlushesDurably(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service with a persisted round", t, func() {
		path := filepath.Join(t.TempDir(), "quiver.db")

		svc := service.New(service.WithStorePath(path))
		So(svc.Start(ctx), ShouldBeNil)

		So(svc.PutUser(ctx, model.User{ID: "archer-1", Name: "Ana"}), ShouldBeNil)
		round, err := svc.StartRound(ctx, scorekeeper.StartRoundParams{
			UserID:       "archer-1",
			Distance:     18,
			ArrowsPerEnd: 3,
			TotalEnds:    1,
			Type:         model.RoundPersonal,
		})
		So(err, ShouldBeNil)

		Convey("When the round is deleted and the service restarts", func() {
			So(svc.DeleteRound(ctx, round.ID), ShouldBeNil)
			svc.Stop()

			revived := service.New(service.WithStorePath(path))
			So(revived.Start(ctx), ShouldBeNil)
			defer revived.Stop()

			Convey("Then the round is gone from the durable store", func() {
				_, err := revived.RoundTree(ctx, round.ID)
				So(errors.Is(err, repository.ErrRoundNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_StopDrainsAfterStartContextCancel(t *testing.T) {
	Convey("Given a service whose start context has been cancelled", t, func() {
		path := filepath.Join(t.TempDir(), "quiver.db")

		startCtx, cancel := context.WithCancel(context.Background())
		svc := service.New(service.WithStorePath(path))
		So(svc.Start(startCtx), ShouldBeNil)
		cancel()

		ctx := context.Background()
		So(svc.PutUser(ctx, model.User{ID: "archer-1", Name: "Ana"}), ShouldBeNil)
		round, err := svc.StartRound(ctx, scorekeeper.StartRoundParams{
			UserID:       "archer-1",
			Distance:     18,
			ArrowsPerEnd: 3,
			TotalEnds:    1,
			Type:         model.RoundPersonal,
		})
		So(err, ShouldBeNil)
		_, err = svc.RecordShot(ctx, round.ID, scorekeeper.ShotEntry{EndIndex: 1, ArrowIndex: 1, Score: "10"})
		So(err, ShouldBeNil)
		_, err = svc.CompleteRound(ctx, round.ID)
		So(err, ShouldBeNil)

		Convey("When the service stops and a new one hydrates the file", func() {
			svc.Stop()

			revived := service.New(service.WithStorePath(path))
			So(revived.Start(ctx), ShouldBeNil)
			defer revived.Stop()

			Convey("Then the completed round reached the durable store", func() {
				tree, err := revived.RoundTree(ctx, round.ID)
				So(err, ShouldBeNil)
				So(tree.Round.Status, ShouldEqual, model.StatusCompleted)
				So(tree.Round.TotalScore, ShouldEqual, 10)
			})
		})
	})
}

func TestService_StartStopIdempotent(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service", t, func() {
		svc := startedService(t)

		Convey("Then starting again is a no-op", func() {
			So(svc.Start(ctx), ShouldBeNil)
		})

		Convey("Then stopping twice is safe", func() {
			svc.Stop()
			svc.Stop()
		})
	})
}
