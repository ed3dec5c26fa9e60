// Package scorekeeper owns all mutations of round aggregates: round
// lifecycle, shot entry, revision, removal and undo. Every mutation
// runs under a per-round lock, recomputes the derived totals from
// scratch and signals the round dirty for the write-behind flusher.
package scorekeeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tenring/quiver/internal/adapters/repository"
	"github.com/tenring/quiver/internal/domain/model"
	"github.com/tenring/quiver/internal/domain/target"
	"github.com/tenring/quiver/pkg/metrics"
)

// Store is the slice of the repository the keeper writes through.
type Store interface {
	CreateRound(ctx context.Context, tree model.RoundTree) error
	RoundTree(ctx context.Context, roundID string) (model.RoundTree, error)
	ReplaceRoundTree(ctx context.Context, tree model.RoundTree) error
	DeleteRound(ctx context.Context, roundID string) error
	RoundIDForShot(ctx context.Context, shotID string) (string, error)
}

// Notifier receives dirty-round signals after each successful mutation.
type Notifier interface {
	MarkDirty(roundID string)
}

// noopNotifier drops all signals; used when no flusher is attached.
type noopNotifier struct{}

func (noopNotifier) MarkDirty(string) {}

// Keeper applies scoring mutations to round aggregates.
type Keeper struct {
	store  Store
	notify Notifier
	locks  *roundLocks
	now    func() time.Time
	newID  func() string
}

// Option applies a configuration option to the Keeper.
type Option func(*Keeper)

// WithNotifier attaches a dirty-round signal sink.
func WithNotifier(n Notifier) Option {
	return func(k *Keeper) {
		if n != nil {
			k.notify = n
		}
	}
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(k *Keeper) {
		if now != nil {
			k.now = now
		}
	}
}

// WithIDGenerator overrides entity id generation, for tests.
func WithIDGenerator(newID func() string) Option {
	return func(k *Keeper) {
		if newID != nil {
			k.newID = newID
		}
	}
}

// New creates a Keeper writing through the given store.
func New(store Store, opts ...Option) *Keeper {
	k := &Keeper{
		store:  store,
		notify: noopNotifier{},
		locks:  newRoundLocks(),
		now:    time.Now,
		newID:  uuid.NewString,
	}

	for _, opt := range opts {
		opt(k)
	}

	return k
}

// StartRoundParams describes a new round. TotalArrows defaults to
// ArrowsPerEnd*TotalEnds when zero; Date defaults to now.
type StartRoundParams struct {
	UserID        string
	Date          time.Time
	Distance      int
	DistanceLabel string
	ArrowsPerEnd  int
	TotalEnds     int
	TotalArrows   int
	Type          model.RoundType
	Competition   *model.CompetitionInfo
}

// StartRound creates an in-progress round with all ends pre-allocated
// and zero totals.
func (k *Keeper) StartRound(ctx context.Context, params StartRoundParams) (model.Round, error) {
	if params.UserID == "" || params.ArrowsPerEnd <= 0 || params.TotalEnds <= 0 || params.Distance <= 0 {
		return model.Round{}, ErrInvalidRound
	}
	if !params.Type.Valid() {
		return model.Round{}, fmt.Errorf("%w: unknown round type %q", ErrInvalidRound, params.Type)
	}
	totalArrows := params.TotalArrows
	if totalArrows == 0 {
		totalArrows = params.ArrowsPerEnd * params.TotalEnds
	}
	if totalArrows < 0 || totalArrows > params.ArrowsPerEnd*params.TotalEnds {
		return model.Round{}, fmt.Errorf("%w: total arrows out of range", ErrInvalidRound)
	}
	date := params.Date
	if date.IsZero() {
		date = k.now()
	}

	round := model.Round{
		ID:            k.newID(),
		UserID:        params.UserID,
		Date:          date,
		Distance:      params.Distance,
		DistanceLabel: params.DistanceLabel,
		ArrowsPerEnd:  params.ArrowsPerEnd,
		TotalEnds:     params.TotalEnds,
		TotalArrows:   totalArrows,
		Type:          params.Type,
		Competition:   params.Competition,
		Status:        model.StatusInProgress,
		CreatedAt:     k.now(),
	}

	tree := model.RoundTree{Round: round}
	for i := 1; i <= params.TotalEnds; i++ {
		tree.Ends = append(tree.Ends, model.End{
			ID:      k.newID(),
			RoundID: round.ID,
			Index:   i,
		})
	}

	if err := k.store.CreateRound(ctx, tree); err != nil {
		return model.Round{}, err
	}

	k.notify.MarkDirty(round.ID)
	metrics.RecordRoundStarted()
	return round, nil
}

// ShotEntry addresses one arrow slot and carries the scored value,
// either an explicit label or a target position the value derives from.
type ShotEntry struct {
	EndIndex   int
	ArrowIndex int
	Score      string
	Position   *target.HitPosition
}

// RecordShot enters a shot into an in-progress round. Re-entering an
// occupied slot overwrites it, which covers corrections during live
// entry. Terminal rounds reject entry with ErrRoundClosed.
func (k *Keeper) RecordShot(ctx context.Context, roundID string, entry ShotEntry) (model.Shot, error) {
	unlock := k.locks.acquire(roundID)
	defer unlock()

	tree, err := k.store.RoundTree(ctx, roundID)
	if err != nil {
		return model.Shot{}, err
	}
	if tree.Round.Status.Terminal() {
		return model.Shot{}, ErrRoundClosed
	}

	score, err := resolveScore(entry.Score, entry.Position)
	if err != nil {
		return model.Shot{}, err
	}
	end, err := locateEnd(&tree, entry.EndIndex, entry.ArrowIndex)
	if err != nil {
		return model.Shot{}, err
	}

	var shot model.Shot
	if existing := tree.ShotAt(end.ID, entry.ArrowIndex); existing != nil {
		existing.Score = score
		existing.Position = entry.Position
		existing.Timestamp = k.now()
		shot = *existing
	} else {
		shot = model.Shot{
			ID:         k.newID(),
			EndID:      end.ID,
			ArrowIndex: entry.ArrowIndex,
			Score:      score,
			Position:   entry.Position,
			Timestamp:  k.now(),
		}
		tree.Shots = append(tree.Shots, shot)
	}

	if err := k.commit(ctx, tree); err != nil {
		return model.Shot{}, err
	}
	metrics.RecordShotRecorded()
	return shot, nil
}

// ShotRevision carries the fields a revision changes. Nil fields keep
// their current value. Score and position update independently, which
// covers the two-phase workflow of scoring first and attaching the
// physical hit coordinates later.
type ShotRevision struct {
	Score    *string
	Position *target.HitPosition
}

// ReviseShot updates a recorded shot. Unlike RecordShot it is allowed
// on completed rounds, covering post-round scorecard corrections.
// Cancelled rounds stay closed.
func (k *Keeper) ReviseShot(ctx context.Context, shotID string, rev ShotRevision) (model.Shot, error) {
	roundID, err := k.store.RoundIDForShot(ctx, shotID)
	if err != nil {
		return model.Shot{}, err
	}

	unlock := k.locks.acquire(roundID)
	defer unlock()

	tree, err := k.store.RoundTree(ctx, roundID)
	if err != nil {
		return model.Shot{}, err
	}
	if tree.Round.Status == model.StatusCancelled {
		return model.Shot{}, ErrRoundClosed
	}
	shot := tree.Shot(shotID)
	if shot == nil {
		return model.Shot{}, repository.ErrShotNotFound
	}

	if rev.Position != nil {
		shot.Position = rev.Position
	}
	if rev.Score != nil {
		score, perr := target.ParseScore(*rev.Score)
		if perr != nil {
			return model.Shot{}, fmt.Errorf("%w: %q", ErrInvalidScore, *rev.Score)
		}
		shot.Score = score
	}
	shot.Timestamp = k.now()

	revised := *shot
	if err := k.commit(ctx, tree); err != nil {
		return model.Shot{}, err
	}
	metrics.RecordShotRevised()
	return revised, nil
}

// RemoveShot deletes a recorded shot and recomputes totals. Like
// ReviseShot it works on completed rounds.
func (k *Keeper) RemoveShot(ctx context.Context, shotID string) error {
	roundID, err := k.store.RoundIDForShot(ctx, shotID)
	if err != nil {
		return err
	}

	unlock := k.locks.acquire(roundID)
	defer unlock()

	tree, err := k.store.RoundTree(ctx, roundID)
	if err != nil {
		return err
	}
	if tree.Round.Status == model.StatusCancelled {
		return ErrRoundClosed
	}
	if !removeShot(&tree, shotID) {
		return repository.ErrShotNotFound
	}

	if err := k.commit(ctx, tree); err != nil {
		return err
	}
	metrics.RecordShotRemoved()
	return nil
}

// UndoLastShot removes the most recently positioned shot, the highest
// occupied arrow slot of the highest occupied end. Only in-progress
// rounds can undo.
func (k *Keeper) UndoLastShot(ctx context.Context, roundID string) (model.Shot, error) {
	unlock := k.locks.acquire(roundID)
	defer unlock()

	tree, err := k.store.RoundTree(ctx, roundID)
	if err != nil {
		return model.Shot{}, err
	}
	if tree.Round.Status.Terminal() {
		return model.Shot{}, ErrRoundClosed
	}
	last := tree.LastFilledShot()
	if last == nil {
		return model.Shot{}, ErrNothingToUndo
	}

	undone := *last
	removeShot(&tree, last.ID)

	if err := k.commit(ctx, tree); err != nil {
		return model.Shot{}, err
	}
	metrics.RecordShotRemoved()
	return undone, nil
}

// CompleteRound transitions an in-progress round to completed.
func (k *Keeper) CompleteRound(ctx context.Context, roundID string) (model.Round, error) {
	round, err := k.transition(ctx, roundID, model.StatusCompleted)
	if err != nil {
		return model.Round{}, err
	}
	metrics.RecordRoundCompleted()
	return round, nil
}

// CancelRound transitions an in-progress round to cancelled. Cancelled
// rounds keep their shots but are invisible to ratings and rankings.
func (k *Keeper) CancelRound(ctx context.Context, roundID string) (model.Round, error) {
	round, err := k.transition(ctx, roundID, model.StatusCancelled)
	if err != nil {
		return model.Round{}, err
	}
	metrics.RecordRoundCancelled()
	return round, nil
}

// DeleteRound removes a round and all of its ends and shots in one
// atomic cascade, regardless of status.
func (k *Keeper) DeleteRound(ctx context.Context, roundID string) error {
	unlock := k.locks.acquire(roundID)
	defer unlock()

	if err := k.store.DeleteRound(ctx, roundID); err != nil {
		return err
	}

	k.notify.MarkDirty(roundID)
	metrics.RecordRoundDeleted()
	return nil
}

// transition moves an in-progress round into a terminal status.
func (k *Keeper) transition(ctx context.Context, roundID string, next model.RoundStatus) (model.Round, error) {
	unlock := k.locks.acquire(roundID)
	defer unlock()

	tree, err := k.store.RoundTree(ctx, roundID)
	if err != nil {
		if errors.Is(err, repository.ErrRoundNotFound) {
			return model.Round{}, fmt.Errorf("%w: %s", ErrInvalidTransition, roundID)
		}
		return model.Round{}, err
	}
	if tree.Round.Status.Terminal() {
		return model.Round{}, fmt.Errorf("%w: round already %s", ErrInvalidTransition, tree.Round.Status)
	}

	tree.Round.Status = next
	if err := k.commit(ctx, tree); err != nil {
		return model.Round{}, err
	}
	return tree.Round, nil
}

// commit recomputes derived totals, swaps the stored tree and signals
// the round dirty.
func (k *Keeper) commit(ctx context.Context, tree model.RoundTree) error {
	started := time.Now()
	tree.Recompute()
	if err := k.store.ReplaceRoundTree(ctx, tree); err != nil {
		return err
	}
	metrics.RecordRecomputeLatency(float64(time.Since(started).Milliseconds()))
	k.notify.MarkDirty(tree.Round.ID)
	return nil
}

// resolveScore derives the shot score from a position when one is
// given, otherwise parses the explicit label.
func resolveScore(label string, pos *target.HitPosition) (target.Score, error) {
	if pos != nil {
		if label == "" {
			return target.ScoreAt(*pos), nil
		}
		score, err := target.ParseScore(label)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidScore, label)
		}
		return score, nil
	}
	score, err := target.ParseScore(label)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidScore, label)
	}
	return score, nil
}

// locateEnd validates the slot address against the round format.
func locateEnd(tree *model.RoundTree, endIndex, arrowIndex int) (*model.End, error) {
	if endIndex < 1 || endIndex > tree.Round.TotalEnds {
		return nil, fmt.Errorf("%w: end %d of %d", ErrCapacityExceeded, endIndex, tree.Round.TotalEnds)
	}
	if arrowIndex < 1 || arrowIndex > tree.Round.ArrowsPerEnd {
		return nil, fmt.Errorf("%w: arrow %d of %d", ErrCapacityExceeded, arrowIndex, tree.Round.ArrowsPerEnd)
	}
	end := tree.EndByIndex(endIndex)
	if end == nil {
		return nil, repository.ErrEndNotFound
	}
	return end, nil
}

// removeShot drops a shot from the tree, reporting whether it existed.
func removeShot(tree *model.RoundTree, shotID string) bool {
	for i := range tree.Shots {
		if tree.Shots[i].ID == shotID {
			tree.Shots = append(tree.Shots[:i], tree.Shots[i+1:]...)
			return true
		}
	}
	return false
}
