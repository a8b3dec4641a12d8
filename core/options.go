package core

import (
	"time"

	"github.com/BranchIntl/postqueue/queue"
)

// Config holds engine configuration
type Config struct {
	Concurrency     int
	ShutdownTimeout time.Duration
	PollInterval    time.Duration
	PublishTimeout  time.Duration
	QueueOptions    []queue.Option
	ResultHandler   ResultHandler
}

// EngineOption is a function that modifies engine configuration
type EngineOption func(*Config)

// defaultConfig returns default configuration
func defaultConfig() *Config {
	return &Config{
		Concurrency:     4,
		ShutdownTimeout: 30 * time.Second,
		PollInterval:    time.Second,
		PublishTimeout:  30 * time.Second,
	}
}

// WithConcurrency sets the number of concurrent workers
func WithConcurrency(n int) EngineOption {
	return func(c *Config) {
		c.Concurrency = n
	}
}

// WithShutdownTimeout sets the graceful shutdown timeout
func WithShutdownTimeout(d time.Duration) EngineOption {
	return func(c *Config) {
		c.ShutdownTimeout = d
	}
}

// WithPollInterval sets how often idle workers re-check the queue
func WithPollInterval(d time.Duration) EngineOption {
	return func(c *Config) {
		c.PollInterval = d
	}
}

// WithPublishTimeout bounds a single publish attempt
func WithPublishTimeout(d time.Duration) EngineOption {
	return func(c *Config) {
		c.PublishTimeout = d
	}
}

// WithQueueOptions configures the engine's queue
func WithQueueOptions(opts ...queue.Option) EngineOption {
	return func(c *Config) {
		c.QueueOptions = append(c.QueueOptions, opts...)
	}
}

// WithResultHandler registers a callback for every publish outcome
func WithResultHandler(h ResultHandler) EngineOption {
	return func(c *Config) {
		c.ResultHandler = h
	}
}
