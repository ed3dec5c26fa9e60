// Package repository defines the round/user store contract and its
// implementations: an in-memory live store and a durable SQLite store.
package repository

import (
	"context"

	"github.com/tenring/quiver/internal/domain/model"
)

// Store provides read/write access to the round and user dataset. All
// entities round-trip their fields without loss; timestamps keep at
// least day-level precision for the date-window rankings.
type Store interface {
	// Users.
	PutUser(ctx context.Context, u model.User) error
	User(ctx context.Context, id string) (model.User, error)
	Users(ctx context.Context) ([]model.User, error)

	// Round aggregates. CreateRound persists a round together with its
	// pre-allocated ends; ReplaceRoundTree atomically swaps the round and
	// all of its children; DeleteRound cascades over ends and shots.
	CreateRound(ctx context.Context, tree model.RoundTree) error
	Round(ctx context.Context, id string) (model.Round, error)
	RoundTree(ctx context.Context, roundID string) (model.RoundTree, error)
	ReplaceRoundTree(ctx context.Context, tree model.RoundTree) error
	DeleteRound(ctx context.Context, roundID string) error

	// Reverse lookups from child entities to the owning round.
	RoundIDForEnd(ctx context.Context, endID string) (string, error)
	RoundIDForShot(ctx context.Context, shotID string) (string, error)

	// Indexed reads used by rating and ranking engines.
	RoundsForUser(ctx context.Context, userID string) ([]model.Round, error)
	CompletedRounds(ctx context.Context) ([]model.Round, error)
	EndsForRound(ctx context.Context, roundID string) ([]model.End, error)
	ShotsForEnd(ctx context.Context, endID string) ([]model.Shot, error)

	// Full-dataset export, used to hydrate the live store at startup.
	AllRoundTrees(ctx context.Context) ([]model.RoundTree, error)

	// Counts for monitoring.
	CountRounds(ctx context.Context) int
	CountUsers(ctx context.Context) int
}
