package redis

import "time"

const (
	defaultKeyPrefix   = "dosetrack:"
	defaultDialTimeout = 5 * time.Second
)

// Config holds Redis connection settings.
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns settings for a local Redis.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		PoolSize:     10,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Option configures a HistoryStore.
type Option func(*HistoryStore)

// WithKeyPrefix namespaces every key the store touches.
func WithKeyPrefix(prefix string) Option {
	return func(s *HistoryStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}
