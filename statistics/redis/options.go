package redis

import (
	redisconn "github.com/BranchIntl/postqueue/internal/redis"
)

// Options for Redis statistics
type Options struct {
	redisconn.Options

	// Namespace is the key prefix in Redis
	Namespace string

	// MaxFailures bounds the failure log; zero keeps every entry
	MaxFailures int
}

// DefaultOptions returns default Redis statistics options
func DefaultOptions() Options {
	return Options{
		Options:     redisconn.DefaultOptions(),
		Namespace:   "postqueue:",
		MaxFailures: 1000,
	}
}
