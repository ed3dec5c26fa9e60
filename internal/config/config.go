// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults, Load(ctx) to layer sources.
// - External errors must be wrapped via this package's error helpers.
package config

import "runtime"

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address for metrics and health,
	// e.g. ":9090".
	Addr string `koanf:"addr"`

	// StorePath is the SQLite database file. ":memory:" keeps
	// everything in process, useful for tests and demos.
	StorePath string `koanf:"store_path"`

	// FlushQueueSize bounds the in-memory flush queue.
	FlushQueueSize int `koanf:"flush_queue_size"`

	// FlushWorkerCount sets the number of flush workers.
	FlushWorkerCount int `koanf:"flush_worker_count"`

	// PendingFlushCapacity presizes the dirty-round tracker.
	PendingFlushCapacity int `koanf:"pending_flush_capacity"`

	// MaxRankingLimit caps the entries returned per ranking query.
	MaxRankingLimit int `koanf:"max_ranking_limit"`

	// MastersWindowDays sets the trailing window of the Masters ranking.
	MastersWindowDays int `koanf:"masters_window_days"`

	// TypeMultipliers maps round types to Masters point multipliers.
	TypeMultipliers map[string]float64 `koanf:"type_multipliers"`

	// DefaultMultiplier is used for unknown round types.
	DefaultMultiplier float64 `koanf:"default_multiplier"`

	// GenderHandicaps maps declared genders to additive handicap points.
	GenderHandicaps map[string]float64 `koanf:"gender_handicaps"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9090",
		StorePath:            "quiver.db",
		FlushQueueSize:       10_000,
		FlushWorkerCount:     runtime.NumCPU() * 2,
		PendingFlushCapacity: 1024,
		MaxRankingLimit:      100,
		MastersWindowDays:    90,
		TypeMultipliers: map[string]float64{
			"competition": 1.5,
			"club":        1.2,
			"personal":    1.0,
		},
		DefaultMultiplier: 1.0,
		GenderHandicaps:   map[string]float64{},
	}
}
