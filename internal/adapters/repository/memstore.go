package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tenring/quiver/internal/domain/model"
	"github.com/tenring/quiver/pkg/metrics"
)

// MemStore is the in-memory live Store. Every round is held as a full
// aggregate tree; secondary indexes map ends and shots back to their
// owning round. A single RWMutex guards the maps; the scorekeeper
// additionally serializes writers per round.
type MemStore struct {
	mu sync.RWMutex

	users map[string]model.User
	trees map[string]model.RoundTree

	endToRound  map[string]string
	shotToRound map[string]string

	seq uint64
}

// Option applies a configuration option to the MemStore.
type Option func(*MemStore)

// NewMemStore creates an empty in-memory store.
func NewMemStore(opts ...Option) *MemStore {
	s := &MemStore{
		users:       make(map[string]model.User),
		trees:       make(map[string]model.RoundTree),
		endToRound:  make(map[string]string),
		shotToRound: make(map[string]string),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// PutUser inserts or replaces a user record.
func (s *MemStore) PutUser(ctx context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[u.ID] = cloneUser(u)
	metrics.UpdateStoreUsers(len(s.users))
	return nil
}

// User returns a user by id.
func (s *MemStore) User(ctx context.Context, id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, ErrUserNotFound
	}
	return cloneUser(u), nil
}

// Users returns all users ordered by id.
func (s *MemStore) Users(ctx context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateRound stores a new round aggregate and assigns its insertion
// sequence. The round id must be unused.
func (s *MemStore) CreateRound(ctx context.Context, tree model.RoundTree) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreWriteLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trees[tree.Round.ID]; exists {
		return ErrDuplicateID
	}

	stored := tree.Clone()
	if stored.Round.Seq == 0 {
		s.seq++
		stored.Round.Seq = s.seq
	} else if stored.Round.Seq > s.seq {
		s.seq = stored.Round.Seq
	}

	s.index(&stored)
	s.trees[stored.Round.ID] = stored
	metrics.UpdateStoreRounds(len(s.trees))
	return nil
}

// Round returns the round header by id.
func (s *MemStore) Round(ctx context.Context, id string) (model.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tree, ok := s.trees[id]
	if !ok {
		return model.Round{}, ErrRoundNotFound
	}
	return tree.Clone().Round, nil
}

// RoundTree returns the full aggregate for a round.
func (s *MemStore) RoundTree(ctx context.Context, roundID string) (model.RoundTree, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	tree, ok := s.trees[roundID]
	if !ok {
		return model.RoundTree{}, ErrRoundNotFound
	}
	return tree.Clone(), nil
}

// ReplaceRoundTree atomically swaps a round aggregate and reindexes its
// children. The previous sequence number is preserved.
func (s *MemStore) ReplaceRoundTree(ctx context.Context, tree model.RoundTree) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreWriteLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.trees[tree.Round.ID]
	if !ok {
		return ErrRoundNotFound
	}

	stored := tree.Clone()
	stored.Round.Seq = old.Round.Seq

	s.unindex(&old)
	s.index(&stored)
	s.trees[stored.Round.ID] = stored
	return nil
}

// DeleteRound removes a round and cascades over its ends and shots.
// The swap of the whole tree makes the cascade atomic to readers.
func (s *MemStore) DeleteRound(ctx context.Context, roundID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tree, ok := s.trees[roundID]
	if !ok {
		return ErrRoundNotFound
	}

	s.unindex(&tree)
	delete(s.trees, roundID)
	metrics.UpdateStoreRounds(len(s.trees))
	return nil
}

// RoundIDForEnd resolves the round owning an end.
func (s *MemStore) RoundIDForEnd(ctx context.Context, endID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roundID, ok := s.endToRound[endID]
	if !ok {
		return "", ErrEndNotFound
	}
	return roundID, nil
}

// RoundIDForShot resolves the round owning a shot.
func (s *MemStore) RoundIDForShot(ctx context.Context, shotID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roundID, ok := s.shotToRound[shotID]
	if !ok {
		return "", ErrShotNotFound
	}
	return roundID, nil
}

// RoundsForUser returns all rounds owned by a user, newest first with
// insertion order as the deterministic tie-break.
func (s *MemStore) RoundsForUser(ctx context.Context, userID string) ([]model.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Round
	for id := range s.trees {
		tree := s.trees[id]
		if tree.Round.UserID == userID {
			out = append(out, tree.Clone().Round)
		}
	}
	sortRoundsNewestFirst(out)
	return out, nil
}

// CompletedRounds returns every completed round, newest first.
func (s *MemStore) CompletedRounds(ctx context.Context) ([]model.Round, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Round
	for id := range s.trees {
		tree := s.trees[id]
		if tree.Round.Status == model.StatusCompleted {
			out = append(out, tree.Clone().Round)
		}
	}
	sortRoundsNewestFirst(out)
	return out, nil
}

// EndsForRound returns the ends of a round ordered by end index.
func (s *MemStore) EndsForRound(ctx context.Context, roundID string) ([]model.End, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tree, ok := s.trees[roundID]
	if !ok {
		return nil, ErrRoundNotFound
	}

	clone := tree.Clone()
	sort.Slice(clone.Ends, func(i, j int) bool { return clone.Ends[i].Index < clone.Ends[j].Index })
	return clone.Ends, nil
}

// ShotsForEnd returns the shots of an end ordered by arrow index.
func (s *MemStore) ShotsForEnd(ctx context.Context, endID string) ([]model.Shot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roundID, ok := s.endToRound[endID]
	if !ok {
		return nil, ErrEndNotFound
	}
	tree := s.trees[roundID]
	clone := tree.Clone()
	return clone.ShotsForEnd(endID), nil
}

// AllRoundTrees exports every aggregate ordered by insertion sequence.
func (s *MemStore) AllRoundTrees(ctx context.Context) ([]model.RoundTree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.RoundTree, 0, len(s.trees))
	for id := range s.trees {
		tree := s.trees[id]
		out = append(out, tree.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Round.Seq < out[j].Round.Seq })
	return out, nil
}

// CountRounds returns the number of stored rounds.
func (s *MemStore) CountRounds(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trees)
}

// CountUsers returns the number of stored users.
func (s *MemStore) CountUsers(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// index and unindex maintain the child-to-round lookups.
// Must be called with s.mu held.
func (s *MemStore) index(tree *model.RoundTree) {
	for i := range tree.Ends {
		s.endToRound[tree.Ends[i].ID] = tree.Round.ID
	}
	for i := range tree.Shots {
		s.shotToRound[tree.Shots[i].ID] = tree.Round.ID
	}
}

func (s *MemStore) unindex(tree *model.RoundTree) {
	for i := range tree.Ends {
		delete(s.endToRound, tree.Ends[i].ID)
	}
	for i := range tree.Shots {
		delete(s.shotToRound, tree.Shots[i].ID)
	}
}

func cloneUser(u model.User) model.User {
	out := u
	if u.PersonalBests != nil {
		out.PersonalBests = make(map[string]int, len(u.PersonalBests))
		for k, v := range u.PersonalBests {
			out.PersonalBests[k] = v
		}
	}
	return out
}

// sortRoundsNewestFirst orders by date descending, then insertion
// sequence descending so the ordering is total.
func sortRoundsNewestFirst(rounds []model.Round) {
	sort.Slice(rounds, func(i, j int) bool {
		if !rounds[i].Date.Equal(rounds[j].Date) {
			return rounds[i].Date.After(rounds[j].Date)
		}
		return rounds[i].Seq > rounds[j].Seq
	})
}
