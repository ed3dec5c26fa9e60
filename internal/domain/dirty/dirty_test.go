package dirty_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/tenring/quiver/internal/domain/dirty"
)

func TestMarkPending(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty tracker", t, func() {
		tracker := dirty.NewInMemoryTracker()

		Convey("When a round is marked for the first time", func() {
			newly := tracker.MarkPending(ctx, "round-1")

			Convey("Then it reports newly marked", func() {
				So(newly, ShouldBeTrue)
				So(tracker.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a round is marked twice", func() {
			tracker.MarkPending(ctx, "round-1")
			again := tracker.MarkPending(ctx, "round-1")

			Convey("Then the second signal coalesces", func() {
				So(again, ShouldBeFalse)
				So(tracker.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a cleared round is marked again", func() {
			tracker.MarkPending(ctx, "round-1")
			tracker.Clear(ctx, "round-1")
			newly := tracker.MarkPending(ctx, "round-1")

			Convey("Then it is pending again", func() {
				So(newly, ShouldBeTrue)
				So(tracker.Size(), ShouldEqual, 1)
			})
		})

		Convey("When an unknown round is cleared", func() {
			tracker.Clear(ctx, "never-marked")

			Convey("Then the tracker is unchanged", func() {
				So(tracker.Size(), ShouldEqual, 0)
			})
		})
	})
}

func TestConcurrentMarking(t *testing.T) {
	ctx := context.Background()

	Convey("Given many goroutines marking the same rounds", t, func() {
		tracker := dirty.NewInMemoryTracker(dirty.WithInitialCapacity(64))

		const rounds = 20
		const signalsPerRound = 50

		var wg sync.WaitGroup
		var newlyMarked atomic.Int64
		for r := 0; r < rounds; r++ {
			id := fmt.Sprintf("round-%d", r)
			for s := 0; s < signalsPerRound; s++ {
				wg.Add(1)
				go func(id string) {
					defer wg.Done()
					if tracker.MarkPending(ctx, id) {
						newlyMarked.Add(1)
					}
				}(id)
			}
		}
		wg.Wait()

		Convey("Then each round is newly marked exactly once", func() {
			So(tracker.Size(), ShouldEqual, rounds)
			So(newlyMarked.Load(), ShouldEqual, rounds)
		})
	})
}
