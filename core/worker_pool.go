package core

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/BranchIntl/postqueue/queue"
	"golang.org/x/sync/errgroup"
)

// WorkerPool manages a pool of workers
type WorkerPool struct {
	queue         *queue.Queue[PublishJob]
	registry      Registry
	stats         Statistics
	concurrency   int
	timeout       time.Duration
	onResult      ResultHandler
	wake          <-chan struct{}
	activeWorkers int32
	workers       []*Worker
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(
	q *queue.Queue[PublishJob],
	registry Registry,
	stats Statistics,
	concurrency int,
	timeout time.Duration,
	onResult ResultHandler,
	wake <-chan struct{},
) *WorkerPool {
	workers := make([]*Worker, 0, concurrency)
	for i := 0; i < concurrency; i++ {
		workers = append(workers, NewWorker(strconv.Itoa(i), q, registry, stats, timeout, onResult))
	}

	return &WorkerPool{
		queue:       q,
		registry:    registry,
		stats:       stats,
		concurrency: concurrency,
		timeout:     timeout,
		onResult:    onResult,
		wake:        wake,
		workers:     workers,
	}
}

// Start runs every worker and blocks until all of them have stopped
func (wp *WorkerPool) Start(ctx context.Context) error {
	slog.Info("Starting worker pool", "workers", wp.concurrency)

	g, gctx := errgroup.WithContext(ctx)
	for _, worker := range wp.workers {
		w := worker
		g.Go(func() error {
			atomic.AddInt32(&wp.activeWorkers, 1)
			defer atomic.AddInt32(&wp.activeWorkers, -1)

			return w.Work(gctx, wp.wake)
		})
	}

	err := g.Wait()
	slog.Info("Worker pool stopped")
	return err
}

// ActiveWorkers returns the number of active workers
func (wp *WorkerPool) ActiveWorkers() int {
	return int(atomic.LoadInt32(&wp.activeWorkers))
}

// GetWorkerStats returns statistics for all workers
func (wp *WorkerPool) GetWorkerStats() []WorkerStats {
	stats := make([]WorkerStats, 0, len(wp.workers))
	for _, worker := range wp.workers {
		stats = append(stats, worker.GetStats())
	}
	return stats
}
