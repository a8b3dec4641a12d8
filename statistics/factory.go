package statistics

import (
	"fmt"

	"github.com/BranchIntl/postqueue/core"
	"github.com/BranchIntl/postqueue/errors"
	"github.com/BranchIntl/postqueue/statistics/noop"
	"github.com/BranchIntl/postqueue/statistics/redis"
)

// StatsType represents the type of statistics backend
type StatsType string

const (
	// Redis statistics type
	Redis StatsType = "redis"
	// NoOp statistics type
	NoOp StatsType = "noop"
)

// Config is a generic statistics configuration
type Config struct {
	Type        StatsType
	URI         string
	Namespace   string
	MaxFailures int
}

// NewStatistics creates a statistics backend based on the configuration
func NewStatistics(config Config) (core.Statistics, error) {
	switch config.Type {
	case Redis:
		opts := redis.DefaultOptions()
		if config.URI != "" {
			opts.URI = config.URI
		}
		if config.Namespace != "" {
			opts.Namespace = config.Namespace
		}
		if config.MaxFailures > 0 {
			opts.MaxFailures = config.MaxFailures
		}
		return redis.NewStatistics(opts), nil

	case NoOp, "":
		return noop.NewStatistics(), nil

	default:
		return nil, fmt.Errorf("%w: unsupported statistics type %q", errors.ErrInvalidConfig, config.Type)
	}
}
