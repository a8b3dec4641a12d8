package queue

import (
	"log/slog"
	"time"
)

// Config holds queue configuration
type Config struct {
	MaxAttempts int
	Backoff     Backoff
	Clock       func() time.Time
	Logger      *slog.Logger
}

// Option is a function that modifies queue configuration
type Option func(*Config)

// defaultConfig returns default configuration
func defaultConfig() *Config {
	return &Config{
		MaxAttempts: 5,
		Backoff:     DefaultBackoff(),
		Clock:       time.Now,
	}
}

// WithMaxAttempts sets how many times an item may be re-queued before it fails
func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.MaxAttempts = n
		}
	}
}

// WithBackoff sets the retry delay policy
func WithBackoff(b Backoff) Option {
	return func(c *Config) {
		c.Backoff = b
	}
}

// WithClock sets the time source used for timestamps and backoff
func WithClock(clock func() time.Time) Option {
	return func(c *Config) {
		if clock != nil {
			c.Clock = clock
		}
	}
}

// WithLogger sets the logger used by the queue and its event bus
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
