// Package service wires the scoring stack together: the live in-memory
// store serves every read and write, while dirty rounds drain through a
// bounded queue and a flush worker pool into the durable SQLite store.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	flushqueue "github.com/tenring/quiver/internal/adapters/mq/queue"
	workerpool "github.com/tenring/quiver/internal/adapters/mq/worker"
	"github.com/tenring/quiver/internal/adapters/repository"
	"github.com/tenring/quiver/internal/config"
	"github.com/tenring/quiver/internal/domain/dirty"
	"github.com/tenring/quiver/internal/domain/model"
	"github.com/tenring/quiver/internal/domain/ranking"
	"github.com/tenring/quiver/internal/domain/rating"
	"github.com/tenring/quiver/internal/domain/scorekeeper"
	"github.com/tenring/quiver/pkg/logger"
	"github.com/tenring/quiver/pkg/metrics"
)

// Service owns the component lifecycle and exposes the scoring, rating
// and ranking operations.
type Service struct {
	mu sync.RWMutex

	// Core components
	live    *repository.MemStore
	durable repository.Store
	tracker dirty.Tracker
	queue   flushqueue.Queue
	pool    *workerpool.Pool
	keeper  *scorekeeper.Keeper
	rater   *rating.Composer
	ranker  *ranking.Engine

	// Configuration
	storePath            string
	flushQueueSize       int
	flushWorkerCount     int
	pendingFlushCapacity int
	maxRankingLimit      int
	mastersWindowDays    int
	typeMultipliers      map[string]float64
	defaultMultiplier    float64
	genderHandicaps      map[string]float64

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStorePath sets the SQLite database file.
func WithStorePath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.storePath = path
		}
	}
}

// WithDurableStore injects a durable store, replacing the SQLite one
// the service would otherwise open. Useful for tests.
func WithDurableStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.durable = store
		}
	}
}

// WithFlushQueueSize sets the maximum size of the flush queue.
func WithFlushQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.flushQueueSize = size
		}
	}
}

// WithFlushWorkerCount sets the number of flush workers.
func WithFlushWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.flushWorkerCount = count
		}
	}
}

// WithPendingFlushCapacity presizes the dirty-round tracker.
func WithPendingFlushCapacity(capacity int) Option {
	return func(s *Service) {
		if capacity > 0 {
			s.pendingFlushCapacity = capacity
		}
	}
}

// WithMaxRankingLimit caps the entries returned per ranking query.
func WithMaxRankingLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxRankingLimit = limit
		}
	}
}

// WithMastersWindowDays sets the trailing window of the Masters ranking.
func WithMastersWindowDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.mastersWindowDays = days
		}
	}
}

// WithTypeMultipliers sets the Masters point multipliers per round type.
func WithTypeMultipliers(multipliers map[string]float64) Option {
	return func(s *Service) {
		if multipliers != nil {
			s.typeMultipliers = multipliers
		}
	}
}

// WithDefaultMultiplier sets the multiplier for unknown round types.
func WithDefaultMultiplier(m float64) Option {
	return func(s *Service) {
		if m > 0 {
			s.defaultMultiplier = m
		}
	}
}

// WithGenderHandicaps sets the additive handicap per declared gender.
func WithGenderHandicaps(handicaps map[string]float64) Option {
	return func(s *Service) {
		if handicaps != nil {
			s.genderHandicaps = handicaps
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	defaults := config.New()
	s := &Service{
		storePath:            defaults.StorePath,
		flushQueueSize:       defaults.FlushQueueSize,
		flushWorkerCount:     runtime.NumCPU() * 2,
		pendingFlushCapacity: defaults.PendingFlushCapacity,
		maxRankingLimit:      defaults.MaxRankingLimit,
		mastersWindowDays:    defaults.MastersWindowDays,
		typeMultipliers:      defaults.TypeMultipliers,
		defaultMultiplier:    defaults.DefaultMultiplier,
		genderHandicaps:      defaults.GenderHandicaps,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start opens the durable store, hydrates the live store from it and
// starts the flush pipeline.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting scoring service...")

	if s.durable == nil {
		durable, err := repository.OpenSQLite(ctx, s.storePath)
		if err != nil {
			return fmt.Errorf("open durable store: %w", err)
		}
		s.durable = durable
	}

	s.live = repository.NewMemStore()
	if err := s.hydrate(ctx); err != nil {
		return fmt.Errorf("hydrate live store: %w", err)
	}

	s.tracker = dirty.NewInMemoryTracker(
		dirty.WithInitialCapacity(s.pendingFlushCapacity),
	)
	s.queue = flushqueue.NewInMemoryQueue(
		flushqueue.WithCapacity(s.flushQueueSize),
		flushqueue.WithBufferSize(s.flushQueueSize),
	)

	s.keeper = scorekeeper.New(s.live, scorekeeper.WithNotifier(s))
	s.rater = rating.NewComposer(s.live)
	s.ranker = ranking.New(s.live,
		ranking.WithMastersWindow(time.Duration(s.mastersWindowDays)*24*time.Hour),
		ranking.WithTypeMultipliers(s.typeMultipliers),
		ranking.WithDefaultMultiplier(s.defaultMultiplier),
		ranking.WithGenderHandicaps(s.genderHandicaps),
		ranking.WithMaxLimit(s.maxRankingLimit),
	)

	// Workers run detached from the start context. The queue close in
	// Stop is what ends their loops, so a cancelled start context
	// cannot abandon queued flushes.
	s.pool = workerpool.NewPool(s.flushWorkerCount, s.queue, s)
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "scoring service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.flushQueueSize),
		logger.Int("rounds", s.live.CountRounds(ctx)),
		logger.Int("users", s.live.CountUsers(ctx)),
	)

	return nil
}

// hydrate copies the durable dataset into the live store.
func (s *Service) hydrate(ctx context.Context) error {
	users, err := s.durable.Users(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if err := s.live.PutUser(ctx, u); err != nil {
			return err
		}
	}

	trees, err := s.durable.AllRoundTrees(ctx)
	if err != nil {
		return err
	}
	for _, tree := range trees {
		if err := s.live.CreateRound(ctx, tree); err != nil {
			return err
		}
	}

	metrics.UpdateStoreRounds(len(trees))
	metrics.UpdateStoreUsers(len(users))
	return nil
}

// Stop drains the flush pipeline and closes the durable store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping scoring service...")

	// Shutdown closes the queue and waits for the workers to drain it,
	// so every signalled round reaches the durable store.
	if s.pool != nil {
		_ = s.pool.Shutdown(ctx)
	}

	if closer, ok := s.durable.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			s.logger.Error(ctx, "error closing durable store", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "scoring service stopped")
}

// MarkDirty receives dirty-round signals from the scorekeeper. Repeated
// signals for a round already awaiting flush coalesce into one request.
func (s *Service) MarkDirty(roundID string) {
	ctx := context.Background()
	if !s.tracker.MarkPending(ctx, roundID) {
		metrics.RecordFlushCoalesced()
		return
	}

	ok := s.queue.Enqueue(ctx, flushqueue.FlushRequest{
		RoundID:    roundID,
		EnqueuedAt: time.Now(),
	})
	if !ok {
		// Let a later signal retry instead of losing the round.
		s.tracker.Clear(ctx, roundID)
		s.logger.Warn(ctx, "flush queue full, dropping signal",
			logger.String("round_id", roundID),
		)
	}
}

// FlushRound reconciles one round from the live store into the durable
// one. A round missing from the live store is deleted durably.
func (s *Service) FlushRound(ctx context.Context, roundID string) error {
	// Clear before snapshotting so signals racing with the flush
	// re-mark the round.
	s.tracker.Clear(ctx, roundID)

	tree, err := s.live.RoundTree(ctx, roundID)
	if errors.Is(err, repository.ErrRoundNotFound) {
		if derr := s.durable.DeleteRound(ctx, roundID); derr != nil && !errors.Is(derr, repository.ErrRoundNotFound) {
			return derr
		}
		return nil
	}
	if err != nil {
		return err
	}

	err = s.durable.ReplaceRoundTree(ctx, tree)
	if errors.Is(err, repository.ErrRoundNotFound) {
		err = s.durable.CreateRound(ctx, tree)
	}
	if err != nil {
		return err
	}

	metrics.UpdateStoreRounds(s.durable.CountRounds(ctx))
	return nil
}

// PutUser creates or updates an archer in both stores.
func (s *Service) PutUser(ctx context.Context, u model.User) error {
	if err := s.live.PutUser(ctx, u); err != nil {
		return err
	}
	if err := s.durable.PutUser(ctx, u); err != nil {
		return err
	}
	metrics.UpdateStoreUsers(s.live.CountUsers(ctx))
	return nil
}

// User returns an archer by id.
func (s *Service) User(ctx context.Context, id string) (model.User, error) {
	return s.live.User(ctx, id)
}

// Users returns all archers.
func (s *Service) Users(ctx context.Context) ([]model.User, error) {
	return s.live.Users(ctx)
}

// StartRound creates an in-progress round.
func (s *Service) StartRound(ctx context.Context, params scorekeeper.StartRoundParams) (model.Round, error) {
	return s.keeper.StartRound(ctx, params)
}

// RecordShot enters a shot into an in-progress round.
func (s *Service) RecordShot(ctx context.Context, roundID string, entry scorekeeper.ShotEntry) (model.Shot, error) {
	return s.keeper.RecordShot(ctx, roundID, entry)
}

// ReviseShot updates a recorded shot, also on completed rounds.
func (s *Service) ReviseShot(ctx context.Context, shotID string, rev scorekeeper.ShotRevision) (model.Shot, error) {
	return s.keeper.ReviseShot(ctx, shotID, rev)
}

// RemoveShot deletes a recorded shot.
func (s *Service) RemoveShot(ctx context.Context, shotID string) error {
	return s.keeper.RemoveShot(ctx, shotID)
}

// UndoLastShot removes the most recently positioned shot.
func (s *Service) UndoLastShot(ctx context.Context, roundID string) (model.Shot, error) {
	return s.keeper.UndoLastShot(ctx, roundID)
}

// CompleteRound finishes an in-progress round.
func (s *Service) CompleteRound(ctx context.Context, roundID string) (model.Round, error) {
	return s.keeper.CompleteRound(ctx, roundID)
}

// CancelRound abandons an in-progress round.
func (s *Service) CancelRound(ctx context.Context, roundID string) (model.Round, error) {
	return s.keeper.CancelRound(ctx, roundID)
}

// DeleteRound removes a round and all of its children.
func (s *Service) DeleteRound(ctx context.Context, roundID string) error {
	return s.keeper.DeleteRound(ctx, roundID)
}

// Round returns a round header by id.
func (s *Service) Round(ctx context.Context, id string) (model.Round, error) {
	return s.live.Round(ctx, id)
}

// RoundTree returns a round with all of its ends and shots.
func (s *Service) RoundTree(ctx context.Context, id string) (model.RoundTree, error) {
	return s.live.RoundTree(ctx, id)
}

// RoundsForUser returns an archer's rounds, newest first.
func (s *Service) RoundsForUser(ctx context.Context, userID string) ([]model.Round, error) {
	return s.live.RoundsForUser(ctx, userID)
}

// ArcherRating composes an archer's practice and competition ratings.
func (s *Service) ArcherRating(ctx context.Context, userID string) (rating.ArcherRating, error) {
	return s.rater.ArcherRating(ctx, userID)
}

// Masters evaluates the trailing-window handicapped points ranking.
func (s *Service) Masters(ctx context.Context, now time.Time, limit int, viewerID string) (ranking.MastersResult, error) {
	return s.ranker.Masters(ctx, now, limit, viewerID)
}

// Daily evaluates the single-day ranking.
func (s *Service) Daily(ctx context.Context, day time.Time, limit int, viewerID string) (ranking.DailyResult, error) {
	return s.ranker.Daily(ctx, day, limit, viewerID)
}

// BestScore evaluates the best-round ranking.
func (s *Service) BestScore(ctx context.Context, filter ranking.TypeFilter, distanceLabel string, limit int, viewerID string) (ranking.BestScoreResult, error) {
	return s.ranker.BestScore(ctx, filter, distanceLabel, limit, viewerID)
}

// Volume evaluates the practice-volume ranking.
func (s *Service) Volume(ctx context.Context, period ranking.Period, now time.Time, limit int, viewerID string) (ranking.VolumeResult, error) {
	return s.ranker.Volume(ctx, period, now, limit, viewerID)
}

// Stats is a point-in-time snapshot of the service internals.
type Stats struct {
	Rounds         int
	Users          int
	QueueDepth     int
	PendingFlushes int64
	Workers        int
}

// GetStats reports live counters for monitoring.
func (s *Service) GetStats(ctx context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return Stats{}
	}
	return Stats{
		Rounds:         s.live.CountRounds(ctx),
		Users:          s.live.CountUsers(ctx),
		QueueDepth:     s.queue.Len(ctx),
		PendingFlushes: s.tracker.Size(),
		Workers:        s.pool.Size(),
	}
}
