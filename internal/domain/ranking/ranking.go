// Package ranking implements the four read-time leaderboard engines:
// Masters (90-day handicapped points), Daily (single UTC day),
// BestScore (best round per archer) and Volume (practice arrows per
// period). All engines are pure projections over the completed round
// history; none mutate state.
package ranking

import (
	"context"
	"fmt"
	"time"

	"github.com/tenring/quiver/internal/domain/model"
)

// Default engine configuration constants.
const (
	defaultMastersWindowDays = 90
	defaultPointsScale       = 1000
	defaultMaxLimit          = 100

	defaultCompetitionMultiplier = 1.5
	defaultClubMultiplier        = 1.2
	defaultPersonalMultiplier    = 1.0
)

// Reader is the slice of the repository the engines need.
type Reader interface {
	CompletedRounds(ctx context.Context) ([]model.Round, error)
	Users(ctx context.Context) ([]model.User, error)
}

// Engine evaluates ranking queries against the round history.
type Engine struct {
	store Reader

	mastersWindow     time.Duration
	pointsScale       float64
	multipliers       map[model.RoundType]float64
	defaultMultiplier float64
	handicaps         map[string]float64
	maxLimit          int
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithMastersWindow sets the trailing window of the Masters ranking.
func WithMastersWindow(window time.Duration) Option {
	return func(e *Engine) {
		if window > 0 {
			e.mastersWindow = window
		}
	}
}

// WithPointsScale sets the normalization scale of Masters round points.
func WithPointsScale(scale float64) Option {
	return func(e *Engine) {
		if scale > 0 {
			e.pointsScale = scale
		}
	}
}

// WithTypeMultipliers sets the per-round-type point multipliers.
func WithTypeMultipliers(multipliers map[string]float64) Option {
	return func(e *Engine) {
		e.multipliers = make(map[model.RoundType]float64, len(multipliers))
		for roundType, m := range multipliers {
			if m > 0 {
				e.multipliers[model.RoundType(roundType)] = m
			}
		}
	}
}

// WithDefaultMultiplier sets the multiplier for unknown round types.
func WithDefaultMultiplier(m float64) Option {
	return func(e *Engine) {
		if m > 0 {
			e.defaultMultiplier = m
		}
	}
}

// WithGenderHandicaps sets the additive handicap per declared gender.
func WithGenderHandicaps(handicaps map[string]float64) Option {
	return func(e *Engine) {
		e.handicaps = make(map[string]float64, len(handicaps))
		for gender, h := range handicaps {
			e.handicaps[gender] = h
		}
	}
}

// WithMaxLimit caps the number of returned entries per query.
func WithMaxLimit(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.maxLimit = limit
		}
	}
}

// New creates an Engine with default configuration.
func New(store Reader, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		mastersWindow: defaultMastersWindowDays * 24 * time.Hour,
		pointsScale:   defaultPointsScale,
		multipliers: map[model.RoundType]float64{
			model.RoundCompetition: defaultCompetitionMultiplier,
			model.RoundClub:        defaultClubMultiplier,
			model.RoundPersonal:    defaultPersonalMultiplier,
		},
		defaultMultiplier: defaultPersonalMultiplier,
		handicaps:         map[string]float64{},
		maxLimit:          defaultMaxLimit,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// multiplier returns the point multiplier for a round type.
func (e *Engine) multiplier(t model.RoundType) float64 {
	if m, ok := e.multipliers[t]; ok {
		return m
	}
	return e.defaultMultiplier
}

// handicap returns the additive handicap for a declared gender. Unknown
// or undeclared genders get 0.
func (e *Engine) handicap(gender string) float64 {
	return e.handicaps[gender]
}

// clampLimit normalizes a requested top-N limit.
func (e *Engine) clampLimit(limit int) int {
	if limit <= 0 || limit > e.maxLimit {
		return e.maxLimit
	}
	return limit
}

// loadUsers fetches all users keyed by id.
func (e *Engine) loadUsers(ctx context.Context) (map[string]model.User, error) {
	users, err := e.store.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	byID := make(map[string]model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}
