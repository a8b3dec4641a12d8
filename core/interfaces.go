package core

import (
	"context"
	"time"

	"github.com/BranchIntl/postqueue/connector"
	"github.com/BranchIntl/postqueue/queue"
)

// Statistics interface defines what core needs from a statistics backend
type Statistics interface {
	// Worker lifecycle
	RegisterWorker(ctx context.Context, worker WorkerInfo) error
	UnregisterWorker(ctx context.Context, workerID string) error

	// Job metrics
	RecordJobStarted(ctx context.Context, job JobInfo, worker WorkerInfo) error
	RecordJobCompleted(ctx context.Context, job JobInfo, worker WorkerInfo, duration time.Duration) error
	RecordJobFailed(ctx context.Context, job JobInfo, worker WorkerInfo, err error, duration time.Duration) error

	// Statistics queries
	GetWorkerStats(ctx context.Context, workerID string) (WorkerStats, error)
	GetTargetStats(ctx context.Context, target string) (TargetStats, error)
	GetGlobalStats(ctx context.Context) (GlobalStats, error)

	// Health and connection
	Connect(ctx context.Context) error
	Close() error
	Health() error
	Type() string
}

// Registry interface defines what core needs from a connector registry
type Registry interface {
	// Register binds a connector to a publish target
	Register(target string, c connector.Connector) error

	// Get retrieves the connector for a target
	Get(target string) (connector.Connector, bool)
}

// ResultHandler receives the outcome of every publish attempt
type ResultHandler func(item queue.Item[PublishJob], result connector.PostResult)

// Supporting types used by the interfaces

// JobInfo describes one attempt at a queued publish job
type JobInfo struct {
	ID       string
	Target   string
	Priority int
	Attempt  int
}

// WorkerInfo describes a worker
type WorkerInfo struct {
	ID       string
	Hostname string
	Pid      int
	Started  time.Time
}

// WorkerStats contains statistics for a worker
type WorkerStats struct {
	ID         string
	Processed  int64
	Failed     int64
	InProgress int64
	StartTime  time.Time
	LastJob    time.Time
}

// TargetStats contains statistics for a publish target
type TargetStats struct {
	Target    string
	Processed int64
	Failed    int64
}

// GlobalStats contains global statistics
type GlobalStats struct {
	TotalProcessed int64
	TotalFailed    int64
	ActiveWorkers  int64
	TargetStats    map[string]TargetStats
}

// HealthStatus represents the health of the engine
type HealthStatus struct {
	Healthy       bool
	StatsHealth   error
	ActiveWorkers int
	QueuedJobs    map[queue.Status]int
	LastCheck     time.Time
}
