// Package config defines service configuration and how it is loaded.
//
// Values are layered: defaults from New, then an optional YAML file named by
// DOSETRACK_CONFIG, then DOSETRACK_* environment variables.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/okian/dosetrack/internal/domain/model"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// History store backends.
const (
	HistoryRepository = "repository"
	HistoryRedis      = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// Timezone is the IANA zone calendar days are evaluated in. "Local" uses the host zone.
	Timezone string `koanf:"timezone" validate:"required"`

	// ToleranceMinutes is the dose matching window on either side of a due slot.
	ToleranceMinutes int `koanf:"tolerance_minutes" validate:"gte=1,lte=720"`

	// UpcomingLimit is the default size of the upcoming view.
	UpcomingLimit int `koanf:"upcoming_limit" validate:"gte=1,lte=100"`

	// RetentionDays is one of 14, 30, 90, 180, 365, 730, or 0 to keep history forever.
	RetentionDays int `koanf:"retention_days" validate:"oneof=0 14 30 90 180 365 730"`

	// MaxStreakDays bounds the backward streak walk.
	MaxStreakDays int `koanf:"max_streak_days" validate:"gte=1"`

	// WorkerCount sets the number of background job workers.
	WorkerCount int `koanf:"worker_count" validate:"gte=1"`

	// QueueSize bounds the background job queue.
	QueueSize int `koanf:"queue_size" validate:"gte=1"`

	// DedupeSize bounds how many swept slots are remembered; 0 is unbounded.
	DedupeSize int `koanf:"dedupe_size" validate:"gte=0"`

	// Storage selects the repository backend.
	Storage     string `koanf:"storage" validate:"oneof=memory postgres"`
	DatabaseURL string `koanf:"database_url" validate:"required_if=Storage postgres"`

	// HistoryStore selects where dose history lives: the storage backend or Redis.
	HistoryStore  string `koanf:"history_store" validate:"oneof=repository redis"`
	RedisAddr     string `koanf:"redis_addr" validate:"required_if=HistoryStore redis"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db" validate:"gte=0,lte=15"`

	// PruneIntervalMinutes and SweepIntervalMinutes schedule background jobs; 0 disables.
	PruneIntervalMinutes int `koanf:"prune_interval_minutes" validate:"gte=0"`
	SweepIntervalMinutes int `koanf:"sweep_interval_minutes" validate:"gte=0"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9080",
		Timezone:             "Local",
		ToleranceMinutes:     30,
		UpcomingLimit:        5,
		RetentionDays:        0,
		MaxStreakDays:        3650,
		WorkerCount:          runtime.NumCPU(),
		QueueSize:            64,
		DedupeSize:           50_000,
		Storage:              StorageMemory,
		HistoryStore:         HistoryRepository,
		RedisDB:              0,
		PruneIntervalMinutes: 60,
		SweepIntervalMinutes: 15,
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %w", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) Tolerance() time.Duration {
	return time.Duration(c.ToleranceMinutes) * time.Minute
}

// Retention maps RetentionDays onto a supported period.
func (c *Config) Retention() (model.RetentionPeriod, error) {
	p, err := model.ParseRetention(c.RetentionDays)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return p, nil
}

func (c *Config) PruneInterval() time.Duration {
	return time.Duration(c.PruneIntervalMinutes) * time.Minute
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}
